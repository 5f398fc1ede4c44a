package lexer

import (
	"regexp"
	"slices"
	"strings"

	"repoknow/internal/model"
)

// languagePatterns holds the per-family regex passes. Each regex captures the
// interesting name in group 1.
type languagePatterns struct {
	imports    []*regexp.Regexp
	exports    []*regexp.Regexp
	classes    []*regexp.Regexp
	interfaces []*regexp.Regexp
	types      []*regexp.Regexp
}

var builtinPatterns = map[Family]*languagePatterns{
	FamilyJavaScript: {
		imports: []*regexp.Regexp{
			regexp.MustCompile(`^\s*import\s+(?:type\s+)?[^'"]*?\s+from\s+['"]([^'"]+)['"]`),
			regexp.MustCompile(`^\s*import\s+['"]([^'"]+)['"]`),
			regexp.MustCompile(`^\s*\}\s*from\s+['"]([^'"]+)['"]`), // closing line of a multi-line import
			regexp.MustCompile(`^\s*export\s+[^'"]*?\s+from\s+['"]([^'"]+)['"]`),
			regexp.MustCompile(`require\s*\(\s*['"]([^'"]+)['"]\s*\)`),
			regexp.MustCompile(`import\s*\(\s*['"]([^'"]+)['"]\s*\)`), // Dynamic import
		},
		exports: []*regexp.Regexp{
			regexp.MustCompile(`^\s*export\s+(?:default\s+)?(?:declare\s+)?(?:abstract\s+)?(?:async\s+)?(?:function\s*\*?|class|const|let|var|interface|type|enum)\s+([A-Za-z_$][\w$]*)`),
			regexp.MustCompile(`^\s*exports\.([A-Za-z_$][\w$]*)\s*=`),
			regexp.MustCompile(`^\s*module\.exports\s*=\s*([A-Za-z_$][\w$]*)\s*;?\s*$`),
			regexp.MustCompile(`^\s*export\s+default\s+([A-Za-z_$][\w$]*)\s*;?\s*$`),
		},
		classes: []*regexp.Regexp{
			regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:abstract\s+)?class\s+([A-Za-z_$][\w$]*)`),
		},
		interfaces: []*regexp.Regexp{
			regexp.MustCompile(`^\s*(?:export\s+)?(?:declare\s+)?interface\s+([A-Za-z_$][\w$]*)`),
		},
		types: []*regexp.Regexp{
			regexp.MustCompile(`^\s*(?:export\s+)?(?:declare\s+)?type\s+([A-Za-z_$][\w$]*)\s*(?:<[^=]*>)?\s*=`),
			regexp.MustCompile(`^\s*(?:export\s+)?(?:declare\s+)?(?:const\s+)?enum\s+([A-Za-z_$][\w$]*)`),
		},
	},
	FamilyGo: {
		imports: []*regexp.Regexp{
			// Single line: import "path"
			regexp.MustCompile(`^\s*import\s+(?:[\w.]+\s+)?"([^"]+)"`),
		},
		exports: []*regexp.Regexp{
			regexp.MustCompile(`^func\s+(?:\([^)]*\)\s*)?([A-Z]\w*)`),
			regexp.MustCompile(`^type\s+([A-Z]\w*)`),
			regexp.MustCompile(`^(?:var|const)\s+([A-Z]\w*)`),
		},
		classes: []*regexp.Regexp{
			regexp.MustCompile(`^type\s+([A-Za-z_]\w*)\s+struct\b`),
		},
		interfaces: []*regexp.Regexp{
			regexp.MustCompile(`^type\s+([A-Za-z_]\w*)\s+interface\b`),
		},
	},
	FamilyPython: {
		imports: []*regexp.Regexp{
			regexp.MustCompile(`^\s*from\s+([^\s]+)\s+import`),
			regexp.MustCompile(`^\s*import\s+([^\s,;]+)`),
		},
		exports: []*regexp.Regexp{
			regexp.MustCompile(`^(?:async\s+)?def\s+([A-Za-z]\w*)`),
			regexp.MustCompile(`^class\s+([A-Za-z]\w*)`),
		},
		classes: []*regexp.Regexp{
			regexp.MustCompile(`^\s*class\s+([A-Za-z_]\w*)`),
		},
		types: []*regexp.Regexp{
			regexp.MustCompile(`^([A-Z]\w*)\s*(?::\s*TypeAlias\s*)?=\s*(?:Union|Optional|Literal|TypedDict|NewType|Callable|dict|list)\b`),
		},
	},
	FamilyRust: {
		imports: []*regexp.Regexp{
			regexp.MustCompile(`^\s*(?:pub\s+)?use\s+([^;{]+)`),
			regexp.MustCompile(`^\s*extern\s+crate\s+([^;]+)`),
		},
		exports: []*regexp.Regexp{
			regexp.MustCompile(`^\s*pub\s+(?:async\s+)?(?:fn|struct|enum|trait|type|const|static|mod)\s+([A-Za-z_]\w*)`),
		},
		classes: []*regexp.Regexp{
			regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?struct\s+([A-Za-z_]\w*)`),
		},
		interfaces: []*regexp.Regexp{
			regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?trait\s+([A-Za-z_]\w*)`),
		},
		types: []*regexp.Regexp{
			regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?(?:enum|type)\s+([A-Za-z_]\w*)`),
		},
	},
	FamilyJava: {
		imports: []*regexp.Regexp{
			regexp.MustCompile(`^\s*import\s+(?:static\s+)?([^;\s]+);?`),
		},
		exports: []*regexp.Regexp{
			regexp.MustCompile(`^\s*public\s+(?:final\s+|abstract\s+)*(?:class|interface|enum|record)\s+([A-Za-z_]\w*)`),
		},
		classes: []*regexp.Regexp{
			regexp.MustCompile(`^\s*(?:(?:public|private|protected|final|abstract|data|open|sealed)\s+)*class\s+([A-Za-z_]\w*)`),
		},
		interfaces: []*regexp.Regexp{
			regexp.MustCompile(`^\s*(?:(?:public|private|protected|sealed|fun)\s+)*interface\s+([A-Za-z_]\w*)`),
		},
		types: []*regexp.Regexp{
			regexp.MustCompile(`^\s*(?:(?:public|private|protected)\s+)*(?:enum|record)\s+(?:class\s+)?([A-Za-z_]\w*)`),
		},
	},
}

var (
	goTypeDecl        = regexp.MustCompile(`^type\s+([A-Za-z_]\w*)\s+(?:=\s*)?([\w.*\[\]]+)`)
	goImportBlockLine = regexp.MustCompile(`^\s*(?:[\w.]+\s+)?"([^"]+)"`)
	jsNamedExportList = regexp.MustCompile(`^\s*export\s*\{([^}]*)\}`)
	pythonAll         = regexp.MustCompile(`__all__\s*=\s*[\[(]([^\])]*)[\])]`)
)

// Analyze returns the lexical facts for one file. Unknown file types yield
// empty details.
func Analyze(filePath, content string) model.CodeDetails {
	details := model.CodeDetails{
		Imports:    []string{},
		Exports:    []string{},
		Functions:  []string{},
		Classes:    []string{},
		Interfaces: []string{},
		Types:      []string{},
		Patterns:   []string{},
	}

	family := FamilyFor(filePath)
	patterns, ok := builtinPatterns[family]
	if !ok {
		return details
	}

	lines := splitLines(content)
	inGoImportBlock := false

	for _, line := range lines {
		if isCommentLine(line, family) {
			continue
		}

		if family == FamilyGo {
			trimmed := strings.TrimSpace(line)
			if strings.HasPrefix(trimmed, "import (") {
				inGoImportBlock = true
				continue
			}
			if inGoImportBlock {
				if trimmed == ")" {
					inGoImportBlock = false
				} else if m := goImportBlockLine.FindStringSubmatch(line); m != nil {
					details.Imports = appendUnique(details.Imports, m[1])
				}
				continue
			}
			if m := goTypeDecl.FindStringSubmatch(line); m != nil && m[2] != "struct" && m[2] != "interface" {
				details.Types = appendUnique(details.Types, m[1])
			}
		}

		details.Imports = collect(details.Imports, patterns.imports, line)
		details.Exports = collect(details.Exports, patterns.exports, line)
		details.Classes = collect(details.Classes, patterns.classes, line)
		details.Interfaces = collect(details.Interfaces, patterns.interfaces, line)
		details.Types = collect(details.Types, patterns.types, line)
	}

	for name := range namedExports(family, content) {
		details.Exports = appendUnique(details.Exports, name)
	}
	slices.Sort(details.Exports)

	for _, fn := range ExtractFunctions(filePath, content) {
		details.Functions = appendUnique(details.Functions, fn.Name)
	}

	details.Patterns = DetectPatterns(filePath, content)
	return details
}

// namedExports returns names exported by list syntax that declaration
// patterns cannot see: `export { a, b as c }` and Python's __all__.
func namedExports(family Family, content string) map[string]bool {
	names := make(map[string]bool)
	switch family {
	case FamilyJavaScript:
		for _, line := range splitLines(content) {
			m := jsNamedExportList.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			for _, item := range strings.Split(m[1], ",") {
				item = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(item), "type "))
				if item == "" {
					continue
				}
				local, alias, found := strings.Cut(item, " as ")
				if found {
					names[strings.TrimSpace(alias)] = true
					names[strings.TrimSpace(local)] = true
				} else {
					names[item] = true
				}
			}
		}
	case FamilyPython:
		if m := pythonAll.FindStringSubmatch(content); m != nil {
			for _, item := range strings.Split(m[1], ",") {
				item = strings.Trim(strings.TrimSpace(item), `'"`)
				if item != "" {
					names[item] = true
				}
			}
		}
	}
	return names
}

func collect(dst []string, res []*regexp.Regexp, line string) []string {
	for _, re := range res {
		for _, m := range re.FindAllStringSubmatch(line, -1) {
			if len(m) > 1 {
				dst = appendUnique(dst, strings.TrimSpace(m[1]))
			}
		}
	}
	return dst
}

func appendUnique(dst []string, value string) []string {
	if value == "" || slices.Contains(dst, value) {
		return dst
	}
	return append(dst, value)
}
