package lexer

import (
	"path"
	"regexp"
	"strings"

	"repoknow/internal/model"
)

var (
	routeCall = regexp.MustCompile(`\b(?:app|router)\.(get|post|put|patch|delete|options|head|all)\s*\(\s*['"` + "`" + `]([^'"` + "`" + `]+)['"` + "`" + `]\s*(?:,(.*))?`)

	fileRouteHandler = regexp.MustCompile(`^\s*export\s+(?:(?:async\s+)?function\s+|const\s+)(GET|POST|PUT|PATCH|DELETE|OPTIONS|HEAD)\b`)

	fileRoutePath = regexp.MustCompile(`(?:^|/)api((?:/[^/]+)*)/route\.(?:ts|tsx|js|jsx|mjs)$`)

	identifier = regexp.MustCompile(`^[A-Za-z_$][\w$.]*$`)
)

// ExtractRoutes finds HTTP routes registered imperatively on app or router
// objects, and verb-named handlers exported from file-based api/.../route files.
func ExtractRoutes(filePath, content string) []model.RouteRecord {
	if FamilyFor(filePath) != FamilyJavaScript {
		return nil
	}

	var routes []model.RouteRecord
	lines := splitLines(content)

	for i, line := range lines {
		if isCommentLine(line, FamilyJavaScript) {
			continue
		}
		for _, m := range routeCall.FindAllStringSubmatch(line, -1) {
			handler, middleware := splitHandlerArgs(m[3])
			routes = append(routes, model.RouteRecord{
				Method:     strings.ToUpper(m[1]),
				Path:       m[2],
				Handler:    handler,
				Middleware: middleware,
				FilePath:   filePath,
				Line:       i + 1,
			})
		}
	}

	if routePath, ok := FileRoutePath(filePath); ok {
		for i, line := range lines {
			m := fileRouteHandler.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			routes = append(routes, model.RouteRecord{
				Method:   m[1],
				Path:     routePath,
				Handler:  m[1],
				FilePath: filePath,
				Line:     i + 1,
			})
		}
	}

	return routes
}

// FileRoutePath derives the URL path for a file-based route module such as
// app/api/users/[id]/route.ts, which maps to /api/users/:id. Route groups in
// parentheses are dropped and catch-all segments become :name*.
func FileRoutePath(filePath string) (string, bool) {
	m := fileRoutePath.FindStringSubmatch(path.Clean("/" + filePath))
	if m == nil {
		return "", false
	}

	segments := []string{"api"}
	for _, seg := range strings.Split(strings.Trim(m[1], "/"), "/") {
		switch {
		case seg == "":
			continue
		case strings.HasPrefix(seg, "(") && strings.HasSuffix(seg, ")"):
			continue
		case strings.HasPrefix(seg, "[[...") && strings.HasSuffix(seg, "]]"):
			segments = append(segments, ":"+seg[5:len(seg)-2]+"*")
		case strings.HasPrefix(seg, "[...") && strings.HasSuffix(seg, "]"):
			segments = append(segments, ":"+seg[4:len(seg)-1]+"*")
		case strings.HasPrefix(seg, "[") && strings.HasSuffix(seg, "]"):
			segments = append(segments, ":"+seg[1:len(seg)-1])
		default:
			segments = append(segments, seg)
		}
	}
	return "/" + strings.Join(segments, "/"), true
}

// splitHandlerArgs reads the arguments after the route path. Identifier
// arguments before the last one are middleware; the last is the handler.
// Inline functions are reported as "anonymous".
func splitHandlerArgs(rest string) (string, []string) {
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return "", nil
	}
	rest = strings.TrimSuffix(rest, ";")
	rest = strings.TrimSpace(rest)
	if balance(rest) < 0 {
		rest = strings.TrimSuffix(rest, ")")
	}

	args := splitTopLevel(rest, ',')
	var names []string
	for _, a := range args {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		switch {
		case identifier.MatchString(a):
			names = append(names, a)
		case strings.Contains(a, "=>") || strings.HasPrefix(a, "function") || strings.HasPrefix(a, "async"):
			names = append(names, "anonymous")
		default:
			// Calls such as auth("admin") are middleware factories.
			if idx := strings.Index(a, "("); idx > 0 && identifier.MatchString(a[:idx]) {
				names = append(names, a[:idx])
			}
		}
	}

	if len(names) == 0 {
		return "", nil
	}
	handler := names[len(names)-1]
	var middleware []string
	if len(names) > 1 {
		middleware = names[:len(names)-1]
	}
	return handler, middleware
}

func balance(s string) int {
	return strings.Count(s, "(") - strings.Count(s, ")")
}
