package diagram

import (
	"path"
	"strings"

	"repoknow/internal/lexer"
	"repoknow/internal/model"
)

var (
	jsExtensions = []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs", ".mts"}
	jsAliases    = map[string]string{"@/": "src/", "~/": "src/"}
)

// edge is an import between two units. A unit is a file, or a package
// directory for Go.
type edge struct {
	from, to       string
	fromDir, toDir string
}

// resolveEdges links imports to files of the repository. Unresolved imports
// are returned separately as external references keyed by importing unit.
func resolveEdges(files []model.FileRecord) ([]edge, []external) {
	index := make(map[string]bool, len(files))
	goDirs := make(map[string]bool)
	for _, f := range files {
		if f.Kind == model.KindDirectory {
			continue
		}
		index[f.Path] = true
		if lexer.FamilyFor(f.Path) == lexer.FamilyGo {
			if dir := path.Dir(f.Path); dir != "." {
				goDirs[dir] = true
			}
		}
	}

	var edges []edge
	var externals []external
	seen := make(map[edge]bool)

	for _, f := range files {
		if f.Details == nil {
			continue
		}
		family := lexer.FamilyFor(f.Path)
		from, fromDir := f.Path, path.Dir(f.Path)
		if family == lexer.FamilyGo {
			from = fromDir
		}

		for _, imp := range f.Details.Imports {
			target, isDir, ok := resolveImport(f.Path, imp, family, index, goDirs)
			if !ok {
				if name := externalName(imp, family); name != "" {
					externals = append(externals, external{unitDir: fromDir, name: name})
				}
				continue
			}
			toDir := path.Dir(target)
			if isDir {
				toDir = target
			}
			e := edge{from: from, to: target, fromDir: fromDir, toDir: toDir}
			if e.from == e.to || seen[e] {
				continue
			}
			seen[e] = true
			edges = append(edges, e)
		}
	}
	return edges, externals
}

// resolveImport maps an import to a repository file, or to a package
// directory when isDir is set.
func resolveImport(fromFile, imp string, family lexer.Family, index, goDirs map[string]bool) (target string, isDir, ok bool) {
	switch family {
	case lexer.FamilyJavaScript:
		var base string
		switch {
		case strings.HasPrefix(imp, "."):
			base = path.Join(path.Dir(fromFile), imp)
		default:
			for alias, dir := range jsAliases {
				if strings.HasPrefix(imp, alias) {
					base = dir + strings.TrimPrefix(imp, alias)
				}
			}
		}
		if base == "" {
			return "", false, false
		}
		if index[base] {
			return base, false, true
		}
		for _, ext := range jsExtensions {
			if index[base+ext] {
				return base + ext, false, true
			}
		}
		for _, ext := range jsExtensions {
			if index[base+"/index"+ext] {
				return base + "/index" + ext, false, true
			}
		}

	case lexer.FamilyPython:
		rel := imp
		dir := ""
		if strings.HasPrefix(imp, ".") {
			dots := len(imp) - len(strings.TrimLeft(imp, "."))
			dir = path.Dir(fromFile)
			for i := 1; i < dots; i++ {
				dir = path.Dir(dir)
			}
			rel = imp[dots:]
		}
		base := path.Join(dir, strings.ReplaceAll(rel, ".", "/"))
		for _, candidate := range []string{base + ".py", base + "/__init__.py"} {
			if index[candidate] {
				return candidate, false, true
			}
		}

	case lexer.FamilyGo:
		best := ""
		for dir := range goDirs {
			if (imp == dir || strings.HasSuffix(imp, "/"+dir)) && len(dir) > len(best) {
				best = dir
			}
		}
		if best != "" {
			return best, true, true
		}
	}
	return "", false, false
}

// external is an import that did not resolve inside the repository.
type external struct {
	unitDir string
	name    string
}

// externalName reduces an unresolved import to its package name. Relative
// imports, standard library packages and node builtins yield "".
func externalName(imp string, family lexer.Family) string {
	switch family {
	case lexer.FamilyJavaScript:
		if strings.HasPrefix(imp, ".") || strings.HasPrefix(imp, "node:") {
			return ""
		}
		for alias := range jsAliases {
			if strings.HasPrefix(imp, alias) {
				return ""
			}
		}
		parts := strings.Split(imp, "/")
		if strings.HasPrefix(imp, "@") && len(parts) >= 2 {
			return parts[0] + "/" + parts[1]
		}
		return parts[0]
	case lexer.FamilyPython:
		if strings.HasPrefix(imp, ".") {
			return ""
		}
		name, _, _ := strings.Cut(imp, ".")
		return name
	case lexer.FamilyGo:
		first, _, _ := strings.Cut(imp, "/")
		if !strings.Contains(first, ".") {
			return ""
		}
		return imp
	}
	return ""
}
