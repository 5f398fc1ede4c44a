package structure

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"repoknow/internal/model"
)

func TestClassifyCase(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"userProfile", CaseCamel},
		{"getX", CaseCamel},
		{"UserProfile", CasePascal},
		{"XMLParser", CasePascal},
		{"user-profile", CaseKebab},
		{"user_profile", CaseSnake},
		{"MAX_SIZE", CaseScreaming},
		{"user", ""},
		{"__init__", ""},
		{"API", ""},
		{"Mixed-Case", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyCase(tt.name))
		})
	}
}

func TestTallyWinner(t *testing.T) {
	assert.Equal(t, model.StandardUnknown, tally{}.winner())

	votes := tally{}
	votes.add("a")
	votes.add("b")
	votes.add("")
	assert.Equal(t, model.StandardMixed, votes.winner())

	votes.add("b")
	assert.Equal(t, "b", votes.winner())
}

func sampleSourceFiles() []model.FileRecord {
	return []model.FileRecord{
		{
			Path: "src/components/UserCard.tsx",
			Kind: model.KindFile,
			Details: &model.CodeDetails{
				Imports:   []string{"react", "./styles"},
				Exports:   []string{"DEFAULT_SIZE", "UserCard"},
				Functions: []string{"UserCard"},
				Patterns:  []string{"error-handling", "try-catch"},
			},
		},
		{
			Path: "src/components/NavBar.tsx",
			Kind: model.KindFile,
			Details: &model.CodeDetails{
				Imports:   []string{"react", "@/lib/api", "./nav"},
				Functions: []string{"NavBar", "handleClick", "useNav"},
				Patterns:  []string{"error-handling", "try-catch"},
			},
		},
		{
			Path: "src/utils/format-date.ts",
			Kind: model.KindFile,
			Details: &model.CodeDetails{
				Imports:   []string{"./locale", "dayjs"},
				Exports:   []string{"MAX_LEN", "formatDate"},
				Functions: []string{"formatDate"},
				Patterns:  []string{"promise-catch"},
			},
		},
		{
			Path: "src/utils/format-date.test.ts",
			Kind: model.KindFile,
			Details: &model.CodeDetails{
				Imports: []string{"vitest", "./format-date"},
			},
		},
		{Path: "README.md", Kind: model.KindFile},
	}
}

func TestInferCodingStandards(t *testing.T) {
	got := InferCodingStandards(sampleSourceFiles(), newDependencies())

	assert.Equal(t, model.StandardMixed, got.Naming.Files, "two PascalCase and two kebab-case files tie")
	assert.Equal(t, CaseCamel, got.Naming.Functions)
	assert.Equal(t, model.StandardUnknown, got.Naming.Classes)
	assert.Equal(t, CaseScreaming, got.Naming.Variables)
	assert.Equal(t, "layer-based", got.FileOrganization)
	assert.Equal(t, "relative", got.ImportStyle)
	assert.Equal(t, "external-first", got.ImportOrdering)
	assert.Equal(t, "try-catch", got.ErrorHandling)
	assert.Equal(t, "vitest", got.TestFramework)
}

func TestInferCodingStandards_DependencyTestFramework(t *testing.T) {
	deps := newDependencies()
	deps.Dev["jest"] = "^29.0.0"

	got := InferCodingStandards(sampleSourceFiles(), deps)
	assert.Equal(t, "jest", got.TestFramework)
}

func TestInferCodingStandards_NoEvidence(t *testing.T) {
	got := InferCodingStandards(records("README.md", "docs/guide.md"), newDependencies())

	assert.Equal(t, model.StandardUnknown, got.Naming.Files)
	assert.Equal(t, model.StandardUnknown, got.FileOrganization)
	assert.Equal(t, model.StandardUnknown, got.ImportStyle)
	assert.Equal(t, model.StandardUnknown, got.ErrorHandling)
	assert.Equal(t, model.StandardUnknown, got.TestFramework)
}

func TestFileNamingMajority(t *testing.T) {
	files := records("src/user-card.ts", "src/nav-bar.ts", "src/ApiClient.ts", "src/index.ts")

	got := InferCodingStandards(files, newDependencies())
	assert.Equal(t, CaseKebab, got.Naming.Files)
	assert.Equal(t, "flat", got.FileOrganization)
}

func TestImportOrderingOf(t *testing.T) {
	tests := []struct {
		name    string
		imports []string
		want    string
	}{
		{"external first", []string{"react", "lodash", "./a"}, "external-first"},
		{"internal first", []string{"./a", "@/b", "react"}, "internal-first"},
		{"interleaved", []string{"react", "./a", "lodash"}, "unordered"},
		{"one kind only", []string{"react", "lodash"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, importOrderingOf(tt.imports, "javascript"))
		})
	}
}
