package structure

import (
	"path"
	"slices"
	"strings"

	"repoknow/internal/model"
)

// entryPatterns are path.Match patterns for conventional entry files.
var entryPatterns = []string{
	"main.go",
	"cmd/*/main.go",
	"main.ts", "index.ts",
	"src/main.ts", "src/index.ts",
	"main.js", "index.js",
	"src/main.js", "src/index.js",
	"cli.ts", "cli.js", "server.ts", "server.js",
	"src/server.ts", "src/server.js",
	"app.py", "main.py", "__main__.py", "manage.py",
	"*/__main__.py",
	"src/main.rs", "src/lib.rs", "src/bin/*.rs",
	"lib/main.dart",
}

// EntryPoints lists entry files found by convention plus the package.json
// main, module and bin fields. The result is sorted and unique.
func EntryPoints(files []model.FileRecord, pkg *packageJSON) []string {
	entries := []string{}
	for _, f := range files {
		if f.Kind == model.KindDirectory {
			continue
		}
		p := strings.Trim(f.Path, "/")
		for _, pattern := range entryPatterns {
			if ok, _ := path.Match(pattern, p); ok {
				entries = append(entries, p)
				break
			}
		}
	}

	if pkg != nil {
		declared := append([]string{pkg.Main, pkg.Module}, pkg.bins()...)
		for _, p := range declared {
			if p = cleanManifestPath(p); p != "" {
				entries = append(entries, p)
			}
		}
	}

	slices.Sort(entries)
	return slices.Compact(entries)
}

func cleanManifestPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = path.Clean(strings.TrimPrefix(p, "./"))
	if p == "." || strings.HasPrefix(p, "../") || strings.HasPrefix(p, "/") {
		return ""
	}
	return p
}
