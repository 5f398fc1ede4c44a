package structure

import (
	"path"
	"slices"
	"strings"
	"unicode"

	"repoknow/internal/lexer"
	"repoknow/internal/model"
)

// Naming conventions recognized by classifyCase.
const (
	CaseCamel     = "camelCase"
	CasePascal    = "PascalCase"
	CaseKebab     = "kebab-case"
	CaseSnake     = "snake_case"
	CaseScreaming = "SCREAMING_SNAKE_CASE"
)

// tally is a vote counter; winner breaks ties as mixed.
type tally map[string]int

func (t tally) add(option string) {
	if option != "" {
		t[option]++
	}
}

func (t tally) winner() string {
	best, bestN, tie := "", 0, false
	for option, n := range t {
		switch {
		case n > bestN:
			best, bestN, tie = option, n, false
		case n == bestN:
			tie = true
		}
	}
	switch {
	case bestN == 0:
		return model.StandardUnknown
	case tie:
		return model.StandardMixed
	}
	return best
}

// classifyCase returns the naming convention of name, or "" when the name is
// compatible with several conventions (a single lowercase word).
func classifyCase(name string) string {
	name = strings.Trim(name, "_$")
	if name == "" {
		return ""
	}
	hasUpper := strings.IndexFunc(name, unicode.IsUpper) >= 0
	hasLower := strings.IndexFunc(name, unicode.IsLower) >= 0

	switch {
	case strings.Contains(name, "-"):
		if !hasUpper {
			return CaseKebab
		}
	case strings.Contains(name, "_"):
		if !hasLower {
			return CaseScreaming
		}
		if !hasUpper {
			return CaseSnake
		}
	case !hasUpper:
	case unicode.IsUpper([]rune(name)[0]):
		if hasLower {
			return CasePascal
		}
	default:
		return CaseCamel
	}
	return ""
}

// fileStem strips every extension: "data.service.ts" becomes "data".
func fileStem(p string) string {
	base := path.Base(p)
	if i := strings.Index(base, "."); i >= 0 {
		return base[:i]
	}
	return base
}

var (
	featureSegments  = map[string]bool{"features": true, "feature": true, "modules": true, "domains": true}
	containerSegment = map[string]bool{"src": true, "lib": true, "app": true, "internal": true, "pkg": true}
	aliasPrefixes    = []string{"@/", "~/", "#", "src/", "$lib/"}
)

// standardsInput gathers what coding standards are inferred from.
type standardsInput struct {
	files      []model.FileRecord
	deps       model.Dependencies
	modulePath string
}

// InferCodingStandards derives coding standards by plurality vote over the
// observed files. Ties yield "mixed" and no evidence yields "unknown".
func InferCodingStandards(files []model.FileRecord, deps model.Dependencies) model.CodingStandards {
	return inferCodingStandards(standardsInput{files: files, deps: deps})
}

func inferCodingStandards(in standardsInput) model.CodingStandards {
	fileNames, functions, classes, variables := tally{}, tally{}, tally{}, tally{}
	organization, importStyle, importOrder, errorStyle, tests := tally{}, tally{}, tally{}, tally{}, tally{}

	for _, f := range in.files {
		if f.Kind == model.KindDirectory || !lexer.IsSource(f.Path) {
			continue
		}
		family := lexer.FamilyFor(f.Path)

		fileNames.add(classifyCase(fileStem(f.Path)))
		organization.add(organizationOf(f.Path, family))

		if lexer.IsTestFile(f.Path) {
			tests.add(testFrameworkOf(f, family))
		}

		d := f.Details
		if d == nil {
			continue
		}
		for _, name := range d.Functions {
			functions.add(classifyCase(name))
		}
		for _, name := range d.Classes {
			classes.add(classifyCase(name))
		}
		for _, name := range d.Exports {
			if slices.Contains(d.Functions, name) || slices.Contains(d.Classes, name) ||
				slices.Contains(d.Interfaces, name) || slices.Contains(d.Types, name) {
				continue
			}
			variables.add(classifyCase(name))
		}
		for _, imp := range d.Imports {
			importStyle.add(importStyleOf(imp, family, in.modulePath))
		}
		importOrder.add(importOrderingOf(d.Imports, family))
		for _, tag := range d.Patterns {
			switch tag {
			case lexer.PatternTryCatch, lexer.PatternPromiseCatch, lexer.PatternErrorReturns:
				errorStyle.add(tag)
			}
		}
	}

	framework := testFrameworkFromDependencies(in.deps)
	if framework == "" {
		framework = tests.winner()
	}

	return model.CodingStandards{
		Naming: model.NamingConventions{
			Files:     fileNames.winner(),
			Functions: functions.winner(),
			Classes:   classes.winner(),
			Variables: variables.winner(),
		},
		FileOrganization: organization.winner(),
		ImportStyle:      importStyle.winner(),
		ImportOrdering:   importOrder.winner(),
		ErrorHandling:    errorStyle.winner(),
		TestFramework:    framework,
	}
}

// organizationOf votes feature-based, layer-based, package-based or flat for
// one source file.
func organizationOf(p string, family lexer.Family) string {
	segs := dirSegments(p)
	if len(segs) > 0 && containerSegment[strings.ToLower(segs[0])] {
		segs = segs[1:]
	}
	for _, seg := range segs {
		if featureSegments[strings.ToLower(seg)] {
			return "feature-based"
		}
	}
	for _, seg := range segs {
		if layerOf(seg) != "" {
			return "layer-based"
		}
	}
	if len(segs) == 0 {
		return "flat"
	}
	if family == lexer.FamilyGo {
		return "package-based"
	}
	return ""
}

func importStyleOf(imp string, family lexer.Family, modulePath string) string {
	switch family {
	case lexer.FamilyJavaScript:
		if strings.HasPrefix(imp, ".") {
			return "relative"
		}
		for _, prefix := range aliasPrefixes {
			if strings.HasPrefix(imp, prefix) {
				return "alias"
			}
		}
	case lexer.FamilyPython:
		if strings.HasPrefix(imp, ".") {
			return "relative"
		}
	case lexer.FamilyGo:
		if modulePath != "" && (imp == modulePath || strings.HasPrefix(imp, modulePath+"/")) {
			return "absolute"
		}
	case lexer.FamilyRust:
		switch {
		case strings.HasPrefix(imp, "crate::"):
			return "absolute"
		case strings.HasPrefix(imp, "super::"), strings.HasPrefix(imp, "self::"):
			return "relative"
		}
	}
	return ""
}

// importOrderingOf compares the positions of external and project imports in
// a JavaScript or Python file. Files with only one kind do not vote.
func importOrderingOf(imports []string, family lexer.Family) string {
	if family != lexer.FamilyJavaScript && family != lexer.FamilyPython {
		return ""
	}
	lastExternal, firstExternal := -1, -1
	lastInternal, firstInternal := -1, -1
	for i, imp := range imports {
		internal := importStyleOf(imp, family, "") != ""
		if internal {
			if firstInternal < 0 {
				firstInternal = i
			}
			lastInternal = i
		} else {
			if firstExternal < 0 {
				firstExternal = i
			}
			lastExternal = i
		}
	}
	switch {
	case firstExternal < 0 || firstInternal < 0:
		return ""
	case lastExternal < firstInternal:
		return "external-first"
	case lastInternal < firstExternal:
		return "internal-first"
	}
	return "unordered"
}

// testFrameworkDeps are checked in order against declared dependencies.
var testFrameworkDeps = []struct {
	dep       string
	framework string
}{
	{"vitest", "vitest"},
	{"jest", "jest"},
	{"@jest/globals", "jest"},
	{"mocha", "mocha"},
	{"jasmine", "jasmine"},
	{"ava", "ava"},
	{"@playwright/test", "playwright"},
	{"cypress", "cypress"},
	{"pytest", "pytest"},
	{"github.com/stretchr/testify", "testify"},
	{"github.com/onsi/ginkgo/v2", "ginkgo"},
}

func testFrameworkFromDependencies(deps model.Dependencies) string {
	for _, candidate := range testFrameworkDeps {
		if hasAnyDependency(deps, []string{candidate.dep}) {
			return candidate.framework
		}
	}
	return ""
}

// testFrameworkOf guesses the framework of a single test file from its
// imports and language.
func testFrameworkOf(f model.FileRecord, family lexer.Family) string {
	var imports []string
	if f.Details != nil {
		imports = f.Details.Imports
	}
	for _, imp := range imports {
		switch {
		case imp == "vitest":
			return "vitest"
		case imp == "@jest/globals":
			return "jest"
		case imp == "pytest":
			return "pytest"
		case imp == "unittest":
			return "unittest"
		case imp == "github.com/stretchr/testify/assert", imp == "github.com/stretchr/testify/require":
			return "testify"
		}
	}
	switch family {
	case lexer.FamilyGo:
		return "go-testing"
	case lexer.FamilyRust:
		return "cargo-test"
	case lexer.FamilyPython:
		return "pytest"
	}
	return ""
}
