package lexer

import (
	"regexp"
	"strings"
	"unicode"

	"repoknow/internal/model"
)

const maxSignatureLen = 200

// declPattern recognizes one declaration style on a single line.
type declPattern struct {
	re *regexp.Regexp
	// build converts submatches into a record; returning false drops the match.
	build func(m []string, line string) (model.FunctionRecord, bool)
}

var jsKeywords = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "catch": true,
	"function": true, "return": true, "constructor": true, "else": true,
	"do": true, "try": true, "with": true, "new": true, "typeof": true,
	"super": true, "import": true, "await": true, "yield": true,
}

var functionPatterns = map[Family][]declPattern{
	FamilyJavaScript: {
		{
			re: regexp.MustCompile(`^\s*(export\s+)?(?:default\s+)?(async\s+)?function\s*\*?\s*([A-Za-z_$][\w$]*)\s*(?:<[^>(]*>)?\s*\(([^)]*)\)?\s*(?::\s*([^{]+?))?\s*(?:\{.*)?$`),
			build: func(m []string, line string) (model.FunctionRecord, bool) {
				return model.FunctionRecord{
					Name:       m[3],
					Parameters: parseParams(m[4], FamilyJavaScript),
					ReturnType: strings.TrimSpace(m[5]),
					Async:      m[2] != "",
					Exported:   m[1] != "",
					Visibility: "public",
				}, true
			},
		},
		{
			re: regexp.MustCompile(`^\s*(export\s+)?(?:const|let|var)\s+([A-Za-z_$][\w$]*)\s*(?::\s*[^=]+)?=\s*(async\s+)?(?:function\s*\*?\s*[\w$]*\s*)?(?:<[^>(]*>)?\s*(?:\(([^)]*)\)|([A-Za-z_$][\w$]*))\s*(?::\s*([^=]+?))?\s*(?:=>|\{)`),
			build: func(m []string, line string) (model.FunctionRecord, bool) {
				params := m[4]
				if params == "" {
					params = m[5]
				}
				if !strings.Contains(line, "=>") && !strings.Contains(line, "function") {
					return model.FunctionRecord{}, false
				}
				return model.FunctionRecord{
					Name:       m[2],
					Parameters: parseParams(params, FamilyJavaScript),
					ReturnType: strings.TrimSpace(m[6]),
					Async:      m[3] != "",
					Exported:   m[1] != "",
					Visibility: "public",
				}, true
			},
		},
		{
			re: regexp.MustCompile(`^\s+(?:(public|private|protected)\s+)?(?:static\s+)?(?:readonly\s+)?(async\s+)?(#?[A-Za-z_$][\w$]*)\s*(?:<[^>(]*>)?\s*\(([^)]*)\)\s*(?::\s*([^{]+?))?\s*\{\s*$`),
			build: func(m []string, line string) (model.FunctionRecord, bool) {
				name := m[3]
				if jsKeywords[name] {
					return model.FunctionRecord{}, false
				}
				visibility := m[1]
				if visibility == "" {
					visibility = "public"
				}
				if strings.HasPrefix(name, "#") {
					name = strings.TrimPrefix(name, "#")
					visibility = "private"
				}
				return model.FunctionRecord{
					Name:       name,
					Parameters: parseParams(m[4], FamilyJavaScript),
					ReturnType: strings.TrimSpace(m[5]),
					Async:      m[2] != "",
					Exported:   false,
					Visibility: visibility,
				}, true
			},
		},
	},
	FamilyGo: {
		{
			re: regexp.MustCompile(`^func\s+(\([^)]*\)\s*)?([A-Za-z_]\w*)\s*(?:\[[^\]]*\])?\s*\(([^)]*)\)\s*(.*?)\s*(?:\{.*)?$`),
			build: func(m []string, line string) (model.FunctionRecord, bool) {
				name := m[2]
				exported := isUpper(name)
				visibility := "private"
				if exported {
					visibility = "public"
				}
				return model.FunctionRecord{
					Name:       name,
					Parameters: parseParams(m[3], FamilyGo),
					ReturnType: strings.TrimSpace(m[4]),
					Exported:   exported,
					Visibility: visibility,
				}, true
			},
		},
	},
	FamilyPython: {
		{
			re: regexp.MustCompile(`^(\s*)(async\s+)?def\s+([A-Za-z_]\w*)\s*\(([^)]*)\)?\s*(?:->\s*([^:]+))?:?`),
			build: func(m []string, line string) (model.FunctionRecord, bool) {
				name := m[3]
				visibility := "public"
				if strings.HasPrefix(name, "_") {
					visibility = "private"
				}
				return model.FunctionRecord{
					Name:       name,
					Parameters: parseParams(m[4], FamilyPython),
					ReturnType: strings.TrimSpace(m[5]),
					Async:      m[2] != "",
					Exported:   m[1] == "" && visibility == "public",
					Visibility: visibility,
				}, true
			},
		},
	},
	FamilyRust: {
		{
			re: regexp.MustCompile(`^\s*(pub(?:\([^)]*\))?\s+)?(?:const\s+)?(async\s+)?(?:unsafe\s+)?fn\s+([A-Za-z_]\w*)\s*(?:<[^>(]*>)?\s*\(([^)]*)\)?\s*(?:->\s*([^{]+?))?\s*(?:where\b[^{]*)?(?:\{.*)?$`),
			build: func(m []string, line string) (model.FunctionRecord, bool) {
				visibility := "private"
				if m[1] != "" {
					visibility = "public"
				}
				return model.FunctionRecord{
					Name:       m[3],
					Parameters: parseParams(m[4], FamilyRust),
					ReturnType: strings.TrimSpace(m[5]),
					Async:      m[2] != "",
					Exported:   m[1] != "",
					Visibility: visibility,
				}, true
			},
		},
	},
	FamilyJava: {
		{
			re: regexp.MustCompile(`^\s*((?:public|private|protected)\s+)?(?:(?:static|final|abstract|synchronized|override|suspend)\s+)*(?:fun\s+|[\w<>\[\],\s]+?\s+)([A-Za-z_]\w*)\s*\(([^)]*)\)\s*(?::\s*([^{=]+?))?\s*(?:throws\s+[\w.,\s]+)?(?:\{.*)?$`),
			build: func(m []string, line string) (model.FunctionRecord, bool) {
				name := m[2]
				if jsKeywords[name] || strings.HasPrefix(strings.TrimSpace(line), "return") || strings.Contains(line, " new ") {
					return model.FunctionRecord{}, false
				}
				visibility := strings.TrimSpace(m[1])
				if visibility == "" {
					visibility = "package"
				}
				return model.FunctionRecord{
					Name:       name,
					Parameters: parseParams(m[3], FamilyJava),
					ReturnType: strings.TrimSpace(m[4]),
					Exported:   visibility == "public",
					Visibility: visibility,
				}, true
			},
		},
	},
}

// ExtractFunctions returns functions declared in content, in source order.
// FilePath must be relative to the repository root; it is copied into every
// record and drives categorization.
func ExtractFunctions(filePath, content string) []model.FunctionRecord {
	family := FamilyFor(filePath)
	patterns := functionPatterns[family]
	if len(patterns) == 0 {
		return nil
	}

	lines := splitLines(content)
	exportedNames := namedExports(family, content)

	var records []model.FunctionRecord

	for i, line := range lines {
		if isCommentLine(line, family) {
			continue
		}
		for _, p := range patterns {
			m := p.re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			rec, ok := p.build(m, line)
			if !ok {
				continue
			}

			rec.FilePath = filePath
			rec.Line = i + 1
			rec.Signature = signatureOf(line)
			rec.DocComment = docCommentAbove(lines, i, family)
			if exportedNames[rec.Name] {
				rec.Exported = true
			}
			body := ExtractFunctionBody(content, rec.Line)
			rec.Category = CategorizeFunction(rec.Name, filePath, body)
			records = append(records, rec)
			break
		}
	}

	return records
}

func signatureOf(line string) string {
	sig := strings.TrimSpace(line)
	sig = strings.TrimSpace(strings.TrimSuffix(sig, "{"))
	if idx := strings.Index(sig, "=>"); idx >= 0 {
		sig = strings.TrimSpace(sig[:idx+2])
	}
	if len(sig) > maxSignatureLen {
		sig = sig[:maxSignatureLen] + "..."
	}
	return sig
}

// docCommentAbove collects the comment block that ends on the line directly
// above index i. Blank lines break the association.
func docCommentAbove(lines []string, i int, family Family) string {
	j := i - 1
	// Skip decorators and annotations sitting between the comment and the declaration.
	for j >= 0 && isAnnotation(strings.TrimSpace(lines[j])) {
		j--
	}
	if j < 0 {
		return ""
	}

	prev := strings.TrimSpace(lines[j])
	if strings.HasSuffix(prev, "*/") {
		end := j
		for j >= 0 && !strings.Contains(lines[j], "/*") {
			j--
		}
		if j < 0 {
			return ""
		}
		return cleanBlockComment(lines[j : end+1])
	}

	marker := "//"
	if family == FamilyPython {
		marker = "#"
	}
	var collected []string
	for j >= 0 {
		trimmed := strings.TrimSpace(lines[j])
		if !strings.HasPrefix(trimmed, marker) {
			break
		}
		text := strings.TrimPrefix(trimmed, marker)
		text = strings.TrimPrefix(text, "/") // rust doc comments
		collected = append([]string{strings.TrimSpace(text)}, collected...)
		j--
	}
	return strings.TrimSpace(strings.Join(collected, "\n"))
}

func isAnnotation(line string) bool {
	return strings.HasPrefix(line, "@") || strings.HasPrefix(line, "#[")
}

func cleanBlockComment(block []string) string {
	var out []string
	for _, l := range block {
		l = strings.TrimSpace(l)
		l = strings.TrimPrefix(l, "/**")
		l = strings.TrimPrefix(l, "/*")
		l = strings.TrimSuffix(l, "*/")
		l = strings.TrimPrefix(strings.TrimSpace(l), "*")
		l = strings.TrimSpace(l)
		if l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

func isCommentLine(line string, family Family) bool {
	t := strings.TrimSpace(line)
	if family == FamilyPython {
		return strings.HasPrefix(t, "#")
	}
	return strings.HasPrefix(t, "//") || strings.HasPrefix(t, "*") || strings.HasPrefix(t, "/*")
}

func isUpper(name string) bool {
	for _, r := range name {
		return unicode.IsUpper(r)
	}
	return false
}

func splitLines(content string) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	return strings.Split(content, "\n")
}
