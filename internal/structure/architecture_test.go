package structure

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"repoknow/internal/model"
)

func records(paths ...string) []model.FileRecord {
	out := make([]model.FileRecord, 0, len(paths))
	for _, p := range paths {
		out = append(out, model.FileRecord{Path: p, Kind: model.KindFile})
	}
	return out
}

func TestDetectLayers(t *testing.T) {
	files := records(
		"src/services/user.ts",
		"src/middleware/auth.ts",
		"tools/gen.ts",
		"src/app.ts",
		"src/service.ts",
	)

	assert.Equal(t, []string{"middleware", "services", "tools"}, DetectLayers(files))
}

func TestDetectLayers_Aliases(t *testing.T) {
	files := records("pkg/handler/http.go", "infra/db.go", "lib/helpers/fmt.ts")

	assert.Equal(t, []string{"infrastructure", "handlers", "utils"}, DetectLayers(files))
}

func TestDetectArchitecture(t *testing.T) {
	tests := []struct {
		name     string
		files    []model.FileRecord
		deps     model.Dependencies
		contains []string
		excludes []string
	}{
		{
			name: "web application",
			files: records(
				"src/models/user.ts",
				"src/controllers/user.ts",
				"src/routes/index.ts",
				"src/services/user.ts",
				"src/components/Button.tsx",
				"Dockerfile",
				"app/api/users/route.ts",
				"cmd/tool/main.go",
			),
			deps: model.Dependencies{Runtime: map[string]string{"@modelcontextprotocol/sdk": "^1.0.0"}},
			contains: []string{
				"mvc", "layered", "nextjs-app-router", "component-based", "mcp-server", "cli", "containerized",
			},
			excludes: []string{"monorepo", "clean-architecture", "hexagonal"},
		},
		{
			name:     "monorepo",
			files:    records("packages/a/package.json", "packages/b/package.json", "package.json"),
			contains: []string{"monorepo"},
		},
		{
			name:     "microservices",
			files:    records("services/auth/Dockerfile", "services/billing/go.mod"),
			contains: []string{"microservices"},
			excludes: []string{"monorepo", "layered"},
		},
		{
			name: "clean architecture",
			files: records(
				"src/domain/user.ts",
				"src/application/create-user.ts",
				"src/infrastructure/db.ts",
				"src/adapters/http.ts",
				"src/ports/repo.ts",
			),
			contains: []string{"clean-architecture", "hexagonal"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			arch := DetectArchitecture(tt.files, tt.deps)
			for _, p := range tt.contains {
				assert.Contains(t, arch.Patterns, p)
			}
			for _, p := range tt.excludes {
				assert.NotContains(t, arch.Patterns, p)
			}
		})
	}
}

func TestDetectArchitecture_PatternOrder(t *testing.T) {
	files := records(
		"src/models/user.ts",
		"src/controllers/user.ts",
		"src/routes/index.ts",
		"src/services/user.ts",
		"Dockerfile",
	)

	arch := DetectArchitecture(files, model.Dependencies{})
	assert.Equal(t, []string{"mvc", "layered", "containerized"}, arch.Patterns)
	assert.Equal(t, []string{"routes", "controllers", "services", "models"}, arch.Layers)
}

func TestLayerOfDir(t *testing.T) {
	assert.Equal(t, "services", LayerOfDir("src/services/billing"))
	assert.Equal(t, "handlers", LayerOfDir("internal/handler"))
	assert.Equal(t, "", LayerOfDir("src/lib"))
	assert.Equal(t, "", LayerOfDir("."))
}
