package structure

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"golang.org/x/mod/modfile"

	"repoknow/internal/model"
)

// packageJSON is the subset of an npm manifest the builder reads.
type packageJSON struct {
	Name            string            `json:"name"`
	Main            string            `json:"main"`
	Module          string            `json:"module"`
	Bin             json.RawMessage   `json:"bin"`
	Scripts         map[string]string `json:"scripts"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

// bins returns the executables declared by "bin", which is either a single
// path or a name to path map.
func (p *packageJSON) bins() []string {
	if p == nil || len(p.Bin) == 0 {
		return nil
	}
	var single string
	if err := json.Unmarshal(p.Bin, &single); err == nil {
		return []string{single}
	}
	var named map[string]string
	if err := json.Unmarshal(p.Bin, &named); err != nil {
		return nil
	}
	names := make([]string, 0, len(named))
	for name := range named {
		names = append(names, name)
	}
	slices.Sort(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, named[name])
	}
	return out
}

type cargoManifest struct {
	Dependencies    map[string]any `toml:"dependencies"`
	DevDependencies map[string]any `toml:"dev-dependencies"`
}

type pyprojectManifest struct {
	Project struct {
		Dependencies         []string            `toml:"dependencies"`
		OptionalDependencies map[string][]string `toml:"optional-dependencies"`
		Scripts              map[string]string   `toml:"scripts"`
	} `toml:"project"`
	Tool struct {
		Poetry struct {
			Dependencies    map[string]any    `toml:"dependencies"`
			DevDependencies map[string]any    `toml:"dev-dependencies"`
			Scripts         map[string]string `toml:"scripts"`
			Group           map[string]struct {
				Dependencies map[string]any `toml:"dependencies"`
			} `toml:"group"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

// manifestFacts carries manifest details used beyond the dependency lists.
type manifestFacts struct {
	pkg        *packageJSON
	modulePath string
}

func newDependencies() model.Dependencies {
	return model.Dependencies{
		Runtime:   make(map[string]string),
		Dev:       make(map[string]string),
		Scripts:   make(map[string]string),
		Manifests: []string{},
	}
}

// readDependencies collects dependencies from every recognized manifest at
// the repository root. Malformed manifests are logged and skipped.
func (b *Builder) readDependencies() (model.Dependencies, manifestFacts) {
	deps := newDependencies()
	var facts manifestFacts

	parsers := []struct {
		name  string
		parse func(data []byte) error
	}{
		{"package.json", func(data []byte) error {
			pkg, err := parsePackageJSON(data, &deps)
			facts.pkg = pkg
			return err
		}},
		{"go.mod", func(data []byte) error {
			modulePath, err := parseGoMod(data, &deps)
			facts.modulePath = modulePath
			return err
		}},
		{"Cargo.toml", func(data []byte) error { return parseCargo(data, &deps) }},
		{"pyproject.toml", func(data []byte) error { return parsePyproject(data, &deps) }},
		{"requirements.txt", func(data []byte) error {
			parseRequirements(string(data), deps.Runtime)
			return nil
		}},
		{"requirements-dev.txt", func(data []byte) error {
			parseRequirements(string(data), deps.Dev)
			return nil
		}},
	}

	for _, p := range parsers {
		data, err := fs.ReadFile(b.fsys, p.name)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				b.debug("Failed to read manifest", "manifest", p.name, "error", err)
			}
			continue
		}
		if err := p.parse(data); err != nil {
			b.warn("Skipping malformed manifest", "manifest", p.name, "error", err)
			continue
		}
		deps.Manifests = append(deps.Manifests, p.name)
	}

	return deps, facts
}

func parsePackageJSON(data []byte, deps *model.Dependencies) (*packageJSON, error) {
	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, fmt.Errorf("failed to parse package.json: %w", err)
	}
	for name, version := range pkg.Dependencies {
		deps.Runtime[name] = version
	}
	for name, version := range pkg.DevDependencies {
		deps.Dev[name] = version
	}
	for name, script := range pkg.Scripts {
		deps.Scripts[name] = script
	}
	return &pkg, nil
}

// parseGoMod records direct requirements and returns the module path.
func parseGoMod(data []byte, deps *model.Dependencies) (string, error) {
	f, err := modfile.Parse("go.mod", data, nil)
	if err != nil {
		return "", fmt.Errorf("failed to parse go.mod: %w", err)
	}
	for _, req := range f.Require {
		if req.Indirect {
			continue
		}
		deps.Runtime[req.Mod.Path] = req.Mod.Version
	}
	if f.Module == nil {
		return "", nil
	}
	return f.Module.Mod.Path, nil
}

func parseCargo(data []byte, deps *model.Dependencies) error {
	var cargo cargoManifest
	if err := toml.Unmarshal(data, &cargo); err != nil {
		return fmt.Errorf("failed to parse Cargo.toml: %w", err)
	}
	for name, spec := range cargo.Dependencies {
		deps.Runtime[name] = tableVersion(spec)
	}
	for name, spec := range cargo.DevDependencies {
		deps.Dev[name] = tableVersion(spec)
	}
	return nil
}

func parsePyproject(data []byte, deps *model.Dependencies) error {
	var py pyprojectManifest
	if err := toml.Unmarshal(data, &py); err != nil {
		return fmt.Errorf("failed to parse pyproject.toml: %w", err)
	}

	for _, req := range py.Project.Dependencies {
		if name, version := parseRequirement(req); name != "" {
			deps.Runtime[name] = version
		}
	}
	for _, reqs := range py.Project.OptionalDependencies {
		for _, req := range reqs {
			if name, version := parseRequirement(req); name != "" {
				deps.Dev[name] = version
			}
		}
	}
	for name, script := range py.Project.Scripts {
		deps.Scripts[name] = script
	}

	poetry := py.Tool.Poetry
	for name, spec := range poetry.Dependencies {
		if name == "python" {
			continue
		}
		deps.Runtime[name] = tableVersion(spec)
	}
	for name, spec := range poetry.DevDependencies {
		deps.Dev[name] = tableVersion(spec)
	}
	for _, group := range poetry.Group {
		for name, spec := range group.Dependencies {
			deps.Dev[name] = tableVersion(spec)
		}
	}
	for name, script := range poetry.Scripts {
		deps.Scripts[name] = script
	}
	return nil
}

// tableVersion renders a TOML dependency value, which is either a version
// string or an inline table.
func tableVersion(spec any) string {
	switch v := spec.(type) {
	case string:
		return v
	case map[string]any:
		if version, ok := v["version"].(string); ok {
			return version
		}
		if p, ok := v["path"].(string); ok {
			return "path:" + p
		}
		if git, ok := v["git"].(string); ok {
			return "git:" + git
		}
	}
	return "*"
}

func parseRequirements(content string, into map[string]string) {
	for _, line := range strings.Split(content, "\n") {
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "-") {
			continue
		}
		if name, version := parseRequirement(line); name != "" {
			into[name] = version
		}
	}
}

// parseRequirement splits a PEP 508 requirement into name and version
// constraint. Extras and environment markers are dropped.
func parseRequirement(req string) (name, version string) {
	req, _, _ = strings.Cut(req, ";")
	req = strings.TrimSpace(req)
	i := strings.IndexAny(req, "=<>!~[ @(")
	if i < 0 {
		return req, "*"
	}
	name = strings.TrimSpace(req[:i])
	rest := req[i:]
	if strings.HasPrefix(rest, "[") {
		if j := strings.Index(rest, "]"); j >= 0 {
			rest = rest[j+1:]
		}
	}
	version = strings.Trim(strings.TrimSpace(rest), "()")
	if version == "" {
		version = "*"
	}
	return name, version
}
