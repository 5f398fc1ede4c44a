package lexer

import (
	"path"
	"regexp"
	"strings"

	"repoknow/internal/model"
)

// categoryRule is one entry of the categorization decision list.
type categoryRule struct {
	category model.FunctionCategory
	matches  func(name, filePath, code string) bool
}

var jsxReturn = regexp.MustCompile(`return\s*\(?\s*<[A-Za-z>]`)

func containsAny(s string, markers ...string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// categoryRules is evaluated in order; the first match wins. Name and path are
// lowercased before matching.
var categoryRules = []categoryRule{
	{model.CategoryUtility, func(name, filePath, _ string) bool {
		return containsAny(name, "util", "helper") ||
			containsAny(filePath, "/utils/", "/util/", "/helpers/", "/helper/", "utils.", "util.", "helpers.")
	}},
	{model.CategoryService, func(name, filePath, _ string) bool {
		return strings.Contains(name, "service") || strings.Contains(filePath, "service")
	}},
	{model.CategoryComponent, func(name, filePath, code string) bool {
		return strings.Contains(name, "component") || strings.Contains(filePath, "component") ||
			(isJSX(filePath) && jsxReturn.MatchString(code))
	}},
	{model.CategoryHandler, func(name, filePath, _ string) bool {
		return name == "execute" || strings.HasPrefix(name, "handle") || strings.Contains(name, "handler") ||
			containsAny(filePath, "handler", "controller")
	}},
	{model.CategoryMiddleware, func(name, filePath, _ string) bool {
		return strings.Contains(name, "middleware") || strings.Contains(filePath, "middleware")
	}},
	{model.CategoryHelper, func(name, _, _ string) bool {
		return containsAny(name, "format", "parse", "transform", "validate")
	}},
}

// CategorizeFunction classifies a function by name and path markers. Code is
// optional and only consulted to spot JSX-returning components.
func CategorizeFunction(name, filePath, code string) model.FunctionCategory {
	lowerName := strings.ToLower(name)
	lowerPath := strings.ToLower(path.Clean("/" + filePath))

	for _, rule := range categoryRules {
		if rule.matches(lowerName, lowerPath, code) {
			return rule.category
		}
	}
	return model.CategoryOther
}
