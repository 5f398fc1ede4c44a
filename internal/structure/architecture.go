package structure

import (
	"path"
	"slices"
	"strings"

	"repoknow/internal/model"
)

// canonicalLayers is the report order of architecture layers.
var canonicalLayers = []string{
	"presentation",
	"application",
	"domain",
	"infrastructure",
	"core",
	"api",
	"routes",
	"controllers",
	"handlers",
	"middleware",
	"services",
	"repositories",
	"models",
	"components",
	"tools",
	"utils",
	"config",
}

// layerAliases maps directory names onto canonical layer names.
var layerAliases = map[string]string{
	"presentation":   "presentation",
	"application":    "application",
	"domain":         "domain",
	"infrastructure": "infrastructure",
	"infra":          "infrastructure",
	"core":           "core",
	"api":            "api",
	"routes":         "routes",
	"route":          "routes",
	"routers":        "routes",
	"controllers":    "controllers",
	"controller":     "controllers",
	"handlers":       "handlers",
	"handler":        "handlers",
	"middleware":     "middleware",
	"middlewares":    "middleware",
	"services":       "services",
	"service":        "services",
	"repositories":   "repositories",
	"repository":     "repositories",
	"models":         "models",
	"model":          "models",
	"entities":       "models",
	"components":     "components",
	"tools":          "tools",
	"utils":          "utils",
	"util":           "utils",
	"helpers":        "utils",
	"config":         "config",
	"configs":        "config",
}

// mcpDependencies mark a project as a Model Context Protocol server.
var mcpDependencies = []string{
	"@modelcontextprotocol/sdk",
	"github.com/mark3labs/mcp-go",
	"github.com/modelcontextprotocol/go-sdk",
	"mcp",
	"fastmcp",
}

// dirSegments returns the directory segments of a slash separated path.
func dirSegments(p string) []string {
	dir := path.Dir(strings.Trim(p, "/"))
	if dir == "." || dir == "" {
		return nil
	}
	return strings.Split(dir, "/")
}

// layerOf returns the canonical layer of a directory name, or "".
func layerOf(segment string) string {
	return layerAliases[strings.ToLower(segment)]
}

// DetectLayers reports every canonical layer that at least one file's
// directory path passes through.
func DetectLayers(files []model.FileRecord) []string {
	found := make(map[string]bool)
	for _, f := range files {
		for _, seg := range dirSegments(f.Path) {
			if layer := layerOf(seg); layer != "" {
				found[layer] = true
			}
		}
	}

	layers := []string{}
	for _, layer := range canonicalLayers {
		if found[layer] {
			layers = append(layers, layer)
		}
	}
	return layers
}

// DetectArchitecture derives layers and high-level patterns from paths and
// declared dependencies.
func DetectArchitecture(files []model.FileRecord, deps model.Dependencies) model.Architecture {
	layers := DetectLayers(files)
	has := func(layer string) bool { return slices.Contains(layers, layer) }

	dirNames := make(map[string]bool)
	baseNames := make(map[string]bool)
	nestedManifests := 0
	serviceUnits := make(map[string]bool)
	appRouter, pagesRouter, cmdMain := false, false, false

	for _, f := range files {
		p := strings.Trim(f.Path, "/")
		segs := dirSegments(p)
		for _, seg := range segs {
			dirNames[strings.ToLower(seg)] = true
		}
		base := path.Base(p)
		if len(segs) == 0 {
			baseNames[strings.ToLower(base)] = true
		}

		switch base {
		case "package.json", "go.mod", "Cargo.toml", "pyproject.toml":
			if len(segs) > 0 {
				nestedManifests++
			}
		}
		if len(segs) >= 2 && layerOf(segs[0]) == "services" {
			switch base {
			case "Dockerfile", "package.json", "go.mod", "pyproject.toml":
				serviceUnits[segs[1]] = true
			}
		}

		lower := strings.ToLower(p)
		if isAppRouterFile(lower) {
			appRouter = true
		}
		if strings.HasPrefix(lower, "pages/api/") || strings.HasPrefix(lower, "src/pages/api/") {
			pagesRouter = true
		}
		if len(segs) == 2 && segs[0] == "cmd" && base == "main.go" {
			cmdMain = true
		}
	}

	patterns := []string{}
	add := func(p string) {
		if !slices.Contains(patterns, p) {
			patterns = append(patterns, p)
		}
	}

	if has("domain") && has("application") && has("infrastructure") {
		add("clean-architecture")
	}
	if dirNames["ports"] && dirNames["adapters"] {
		add("hexagonal")
	}
	if has("models") && has("controllers") && (dirNames["views"] || has("routes")) {
		add("mvc")
	}
	if has("services") && (has("controllers") || has("handlers") || has("routes")) && (has("models") || has("repositories")) {
		add("layered")
	}
	if nestedManifests >= 2 || baseNames["pnpm-workspace.yaml"] || baseNames["lerna.json"] ||
		baseNames["turbo.json"] || baseNames["nx.json"] || baseNames["go.work"] {
		add("monorepo")
	}
	if len(serviceUnits) >= 2 {
		add("microservices")
	}
	if appRouter {
		add("nextjs-app-router")
	}
	if pagesRouter {
		add("nextjs-pages-router")
	}
	if has("components") {
		add("component-based")
	}
	if hasAnyDependency(deps, mcpDependencies) {
		add("mcp-server")
	}
	if cmdMain || (len(deps.Scripts) > 0 && dirNames["bin"]) {
		add("cli")
	}
	if baseNames["serverless.yml"] || baseNames["serverless.yaml"] {
		add("serverless")
	}
	if baseNames["dockerfile"] || baseNames["docker-compose.yml"] || baseNames["docker-compose.yaml"] || baseNames["compose.yaml"] {
		add("containerized")
	}

	return model.Architecture{Layers: layers, Patterns: patterns}
}

func isAppRouterFile(lower string) bool {
	for _, prefix := range []string{"app/", "src/app/"} {
		if !strings.HasPrefix(lower, prefix) {
			continue
		}
		base := path.Base(lower)
		stem := strings.TrimSuffix(base, path.Ext(base))
		if stem == "page" || stem == "layout" || stem == "route" {
			return true
		}
	}
	return false
}

func hasAnyDependency(deps model.Dependencies, names []string) bool {
	for _, name := range names {
		if _, ok := deps.Runtime[name]; ok {
			return true
		}
		if _, ok := deps.Dev[name]; ok {
			return true
		}
	}
	return false
}

// LayerOfDir returns the first canonical layer among the segments of a
// slash separated directory path, or "".
func LayerOfDir(dir string) string {
	dir = strings.Trim(dir, "/")
	if dir == "" || dir == "." {
		return ""
	}
	for _, seg := range strings.Split(dir, "/") {
		if layer := layerOf(seg); layer != "" {
			return layer
		}
	}
	return ""
}
