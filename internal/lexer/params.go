package lexer

import (
	"strings"

	"repoknow/internal/model"
)

// splitTopLevel splits s on sep, ignoring separators nested in brackets.
func splitTopLevel(s string, sep rune) []string {
	var parts []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '(', '[', '{', '<':
			depth++
		case ')', ']', '}', '>':
			if depth > 0 {
				depth--
			}
		case sep:
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + len(string(r))
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}

func parseParams(raw string, family Family) []model.Parameter {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []model.Parameter{}
	}

	params := []model.Parameter{}
	for _, part := range splitTopLevel(raw, ',') {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		var p model.Parameter
		switch family {
		case FamilyGo:
			p = parseGoParam(part)
		case FamilyPython:
			p = parseColonParam(part, "=")
			if p.Name == "self" || p.Name == "cls" {
				continue
			}
		case FamilyRust:
			p = parseColonParam(part, "")
			if strings.Contains(p.Name, "self") {
				continue
			}
		case FamilyJava:
			p = parseJavaParam(part)
		default:
			p = parseColonParam(part, "=")
		}
		params = append(params, p)
	}

	if family == FamilyGo {
		shareGoTypes(params)
	}
	return params
}

// parseColonParam handles "name?: Type = default" styles.
func parseColonParam(part, defaultSep string) model.Parameter {
	p := model.Parameter{}
	if defaultSep != "" {
		if before, _, found := cutTopLevel(part, defaultSep); found {
			part = before
			p.Optional = true
		}
	}

	name, typ, hasType := cutTopLevel(part, ":")
	name = strings.TrimSpace(name)
	if strings.HasSuffix(name, "?") {
		name = strings.TrimSuffix(name, "?")
		p.Optional = true
	}
	name = strings.TrimPrefix(name, "...")
	name = strings.TrimLeft(name, "*&")
	name = strings.TrimPrefix(name, "mut ")
	p.Name = strings.TrimSpace(name)
	if hasType {
		p.Type = strings.TrimSpace(typ)
	}
	return p
}

func parseGoParam(part string) model.Parameter {
	fields := strings.Fields(part)
	switch len(fields) {
	case 0:
		return model.Parameter{}
	case 1:
		// Either an unnamed parameter type or a name sharing the next type.
		return model.Parameter{Name: fields[0]}
	default:
		return model.Parameter{Name: fields[0], Type: strings.Join(fields[1:], " ")}
	}
}

// shareGoTypes applies "a, b int" grouping: a name without a type takes the
// type of the next parameter that has one.
func shareGoTypes(params []model.Parameter) {
	next := ""
	for i := len(params) - 1; i >= 0; i-- {
		if params[i].Type != "" {
			next = params[i].Type
			continue
		}
		if next != "" {
			params[i].Type = next
		}
	}
}

func parseJavaParam(part string) model.Parameter {
	if name, typ, found := cutTopLevel(part, ":"); found {
		// Kotlin: name: Type = default
		p := parseColonParam(name+":"+typ, "=")
		return p
	}
	fields := strings.Fields(part)
	if len(fields) < 2 {
		return model.Parameter{Name: part}
	}
	filtered := fields[:0]
	for _, f := range fields {
		if f != "final" && !strings.HasPrefix(f, "@") {
			filtered = append(filtered, f)
		}
	}
	if len(filtered) < 2 {
		return model.Parameter{Name: strings.Join(filtered, " ")}
	}
	return model.Parameter{
		Name: filtered[len(filtered)-1],
		Type: strings.Join(filtered[:len(filtered)-1], " "),
	}
}

func cutTopLevel(s, sep string) (string, string, bool) {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[', '{', '<':
			depth++
		case ')', ']', '}', '>':
			if depth > 0 {
				depth--
			}
		default:
			if depth == 0 && strings.HasPrefix(s[i:], sep) {
				// "=>" inside default arrow values is not a default separator.
				if sep == "=" && i+1 < len(s) && s[i+1] == '>' {
					continue
				}
				return s[:i], s[i+len(sep):], true
			}
		}
	}
	return s, "", false
}
