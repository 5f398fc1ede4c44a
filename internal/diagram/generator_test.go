package diagram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repoknow/internal/logging"
	"repoknow/internal/model"
	"repoknow/internal/structure"
)

func file(p string, imports ...string) model.FileRecord {
	return model.FileRecord{
		Path:    p,
		Kind:    model.KindFile,
		Details: &model.CodeDetails{Imports: imports},
	}
}

func sampleAnalysis() *model.ComprehensiveAnalysis {
	files := []model.FileRecord{
		file("src/routes/users.ts", "express", "../services/user"),
		file("src/services/user.ts", "../models/user", "lodash/merge"),
		file("src/models/user.ts"),
		file("src/index.ts", "./routes/users", "express"),
	}
	return &model.ComprehensiveAnalysis{
		Repository: model.RepositoryInfo{Name: "demo"},
		Files:      files,
		Structure: model.Structure{
			FolderTree: structure.BuildFolderTree("demo", files),
			Architecture: model.Architecture{
				Layers:   structure.DetectLayers(files),
				Patterns: []string{"layered"},
			},
			Dependencies: model.Dependencies{
				Runtime: map[string]string{"express": "^4.0.0", "lodash": "^4.17.0"},
			},
		},
	}
}

func TestGenerate(t *testing.T) {
	logger, _ := logging.NewTestLogger()
	a := sampleAnalysis()

	diagrams, err := NewGenerator(logger).Generate(a.Repository, a.Structure, a)
	require.NoError(t, err)
	require.Len(t, diagrams, 4)

	kinds := []model.DiagramKind{}
	for _, d := range diagrams {
		kinds = append(kinds, d.Kind)
		assert.Equal(t, FormatMermaid, d.Format)
		assert.NotEmpty(t, d.Title)
	}
	assert.Equal(t, []model.DiagramKind{
		model.DiagramFolderStructure,
		model.DiagramFileDependency,
		model.DiagramArchitecture,
		model.DiagramModuleDependency,
	}, kinds)

	t.Run("folder structure", func(t *testing.T) {
		content := diagrams[0].Content
		assert.Contains(t, content, "graph TD\n")
		assert.Contains(t, content, `demo (4 files)`)
		assert.Contains(t, content, `src/ (4 files)`)
		assert.Contains(t, content, `routes/ (1 file)`)
	})

	t.Run("file dependency", func(t *testing.T) {
		d := diagrams[1]
		assert.Contains(t, d.Content, `["src/routes/users.ts"]`)
		assert.Contains(t, d.Content, `["src/services/user.ts"]`)
		assert.Equal(t, "3 internal imports between 4 units.", d.Description)
	})

	t.Run("architecture", func(t *testing.T) {
		d := diagrams[2]
		assert.Contains(t, d.Content, "%% patterns: layered")
		assert.Contains(t, d.Content, `-->|1 import|`)
		assert.Contains(t, d.Description, "3 layers with 2 cross-layer dependencies.")
	})

	t.Run("module dependency", func(t *testing.T) {
		d := diagrams[3]
		assert.Contains(t, d.Content, `["express (external)"]`)
		assert.Contains(t, d.Content, `["lodash (external)"]`)
		assert.Contains(t, d.Content, `["src/routes"]`)
	})
}

func TestGenerate_NoData(t *testing.T) {
	diagrams, err := NewGenerator(nil).Generate(model.RepositoryInfo{Name: "empty"}, model.Structure{}, nil)

	require.NoError(t, err)
	assert.Empty(t, diagrams)
}

func TestGenerate_FailureIsIsolated(t *testing.T) {
	s := model.Structure{
		FolderTree:   &model.FolderNode{Name: "broken", Children: []*model.FolderNode{nil}},
		Architecture: model.Architecture{Layers: []string{"services"}},
	}

	diagrams, err := NewGenerator(nil).Generate(model.RepositoryInfo{Name: "broken"}, s, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "folder-structure diagram")
	require.Len(t, diagrams, 1)
	assert.Equal(t, model.DiagramArchitecture, diagrams[0].Kind)
}

func TestResolveEdges_Python(t *testing.T) {
	files := []model.FileRecord{
		file("app/models.py"),
		file("app/views.py", ".models", "os"),
	}

	edges, externals := resolveEdges(files)

	require.Len(t, edges, 1)
	assert.Equal(t, "app/views.py", edges[0].from)
	assert.Equal(t, "app/models.py", edges[0].to)
	require.Len(t, externals, 1)
	assert.Equal(t, "os", externals[0].name)
}

func TestResolveEdges_GoPackages(t *testing.T) {
	files := []model.FileRecord{
		file("internal/store/store.go"),
		file("cmd/app/main.go", "example.com/x/internal/store", "fmt", "github.com/spf13/cobra"),
	}

	edges, externals := resolveEdges(files)

	require.Len(t, edges, 1)
	assert.Equal(t, edge{from: "cmd/app", to: "internal/store", fromDir: "cmd/app", toDir: "internal/store"}, edges[0])
	require.Len(t, externals, 1)
	assert.Equal(t, "github.com/spf13/cobra", externals[0].name)
}

func TestDeclaredName(t *testing.T) {
	deps := model.Dependencies{Runtime: map[string]string{"github.com/spf13/cobra": "v1.9.1"}}

	name, ok := declaredName("github.com/spf13/cobra/doc", deps)
	assert.True(t, ok)
	assert.Equal(t, "github.com/spf13/cobra", name)

	_, ok = declaredName("os", deps)
	assert.False(t, ok)

	name, ok = declaredName("os", model.Dependencies{})
	assert.True(t, ok)
	assert.Equal(t, "os", name)
}

func TestPluralLabels(t *testing.T) {
	assert.Equal(t, "1 file", pluralFiles(1))
	assert.Equal(t, "2,500 files", pluralFiles(2500))
	assert.Equal(t, "1 import", pluralImports(1))
	assert.Equal(t, "0 imports", pluralImports(0))
}
