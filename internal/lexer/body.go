package lexer

import "strings"

const (
	// Lines scanned after the declaration looking for the opening brace.
	openBraceLookahead = 10
	// Upper bound on captured body length; longer bodies are truncated.
	maxBodyLines = 400
)

// ExtractFunctionBody returns the source of the function declared at line
// (1-based). Brace-delimited languages are captured by counting braces from
// the declaration until the count returns to zero, skipping braces inside
// string literals and comments. Python bodies are captured by indentation.
//
// This is a heuristic. Braces inside regex literals or template expressions
// can shift the balance, in which case the capture runs long or stops early.
// When no opening brace is found near the declaration only the declaration
// line is returned.
func ExtractFunctionBody(content string, line int) string {
	lines := splitLines(content)
	if line < 1 || line > len(lines) {
		return ""
	}
	start := line - 1

	if isIndentBlock(lines[start]) {
		return indentBody(lines, start)
	}

	var b braceBalance
	opened := false
	for i := start; i < len(lines) && i-start < maxBodyLines; i++ {
		b.feed(lines[i])
		if b.opens > 0 {
			opened = true
		}
		if !opened && i-start >= openBraceLookahead {
			return lines[start]
		}
		if opened && b.depth <= 0 {
			return strings.Join(lines[start:i+1], "\n")
		}
	}

	if !opened {
		return lines[start]
	}
	end := min(len(lines), start+maxBodyLines)
	return strings.Join(lines[start:end], "\n")
}

// braceBalance is a tiny lexer state machine carried across lines.
type braceBalance struct {
	depth        int
	opens        int
	inBlock      bool // inside /* */
	inTemplate   bool // inside a backtick string, which may span lines
	templateHole int  // depth of ${ } nesting inside a template
}

func (b *braceBalance) feed(line string) {
	var quote byte
	for i := 0; i < len(line); i++ {
		c := line[i]

		if b.inBlock {
			if c == '*' && i+1 < len(line) && line[i+1] == '/' {
				b.inBlock = false
				i++
			}
			continue
		}

		if b.inTemplate && b.templateHole == 0 {
			switch {
			case c == '\\':
				i++
			case c == '`':
				b.inTemplate = false
			case c == '$' && i+1 < len(line) && line[i+1] == '{':
				b.templateHole++
				i++
			}
			continue
		}

		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}

		switch c {
		case '"', '\'':
			quote = c
		case '`':
			b.inTemplate = true
		case '/':
			if i+1 < len(line) {
				if line[i+1] == '/' {
					return
				}
				if line[i+1] == '*' {
					b.inBlock = true
					i++
				}
			}
		case '{':
			b.depth++
			b.opens++
		case '}':
			if b.inTemplate && b.templateHole > 0 {
				b.templateHole--
				continue
			}
			b.depth--
		}
	}
}

func isIndentBlock(decl string) bool {
	t := strings.TrimSpace(decl)
	return (strings.HasPrefix(t, "def ") || strings.HasPrefix(t, "async def ")) && !strings.Contains(t, "{")
}

func indentBody(lines []string, start int) string {
	baseIndent := indentOf(lines[start])
	end := start + 1
	for end < len(lines) && end-start < maxBodyLines {
		l := lines[end]
		if strings.TrimSpace(l) != "" && indentOf(l) <= baseIndent && !continuesSignature(lines, start, end) {
			break
		}
		end++
	}
	for end > start+1 && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return strings.Join(lines[start:end], "\n")
}

// continuesSignature reports whether line end still belongs to a signature
// that spans several lines, such as a closing "):" at the def indentation.
func continuesSignature(lines []string, start, end int) bool {
	for i := start; i < end; i++ {
		if strings.HasSuffix(strings.TrimSpace(lines[i]), ":") {
			return false
		}
	}
	return true
}

func indentOf(line string) int {
	n := 0
	for _, r := range line {
		switch r {
		case ' ':
			n++
		case '\t':
			n += 4
		default:
			return n
		}
	}
	return n
}
