package lexer

import (
	"path"
	"strings"
)

// Family groups languages that share declaration syntax.
type Family string

const (
	FamilyUnknown    Family = ""
	FamilyJavaScript Family = "javascript" // JavaScript and TypeScript, including JSX
	FamilyGo         Family = "go"
	FamilyPython     Family = "python"
	FamilyRust       Family = "rust"
	FamilyJava       Family = "java"
)

var familyByExt = map[string]Family{
	".ts":   FamilyJavaScript,
	".tsx":  FamilyJavaScript,
	".mts":  FamilyJavaScript,
	".cts":  FamilyJavaScript,
	".js":   FamilyJavaScript,
	".jsx":  FamilyJavaScript,
	".mjs":  FamilyJavaScript,
	".cjs":  FamilyJavaScript,
	".go":   FamilyGo,
	".py":   FamilyPython,
	".pyx":  FamilyPython,
	".rs":   FamilyRust,
	".java": FamilyJava,
	".kt":   FamilyJava,
}

// FamilyFor returns the language family for a file path based on its extension.
func FamilyFor(filePath string) Family {
	return familyByExt[strings.ToLower(path.Ext(filePath))]
}

// IsSource reports whether the lexer understands the file.
func IsSource(filePath string) bool {
	return FamilyFor(filePath) != FamilyUnknown
}

// IsTestFile reports whether the path follows a common test file convention.
func IsTestFile(filePath string) bool {
	lower := strings.ToLower(filePath)
	base := path.Base(lower)
	switch {
	case strings.Contains(base, ".test."), strings.Contains(base, ".spec."):
		return true
	case strings.HasSuffix(base, "_test.go"):
		return true
	case strings.HasPrefix(base, "test_") && strings.HasSuffix(base, ".py"):
		return true
	case strings.Contains("/"+lower, "/__tests__/"):
		return true
	}
	return false
}

func isJSX(filePath string) bool {
	ext := strings.ToLower(path.Ext(filePath))
	return ext == ".tsx" || ext == ".jsx"
}
