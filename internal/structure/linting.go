package structure

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"repoknow/internal/model"
)

// Config formats of lint tool files.
const (
	FormatJSON       = "json"
	FormatYAML       = "yaml"
	FormatTOML       = "toml"
	FormatJavaScript = "javascript"
	FormatINI        = "ini"
	FormatDirectory  = "directory"

	// formatJSONOrYAML marks extensionless rc files which may hold either.
	formatJSONOrYAML = "json-or-yaml"
)

const maxLintConfigSize = 256 * 1024

type lintCandidate struct {
	tool   string
	file   string
	format string
}

// lintCandidates are checked at the repository root in order. The first file
// found wins for each tool.
var lintCandidates = []lintCandidate{
	{"eslint", "eslint.config.js", FormatJavaScript},
	{"eslint", "eslint.config.mjs", FormatJavaScript},
	{"eslint", "eslint.config.cjs", FormatJavaScript},
	{"eslint", "eslint.config.ts", FormatJavaScript},
	{"eslint", ".eslintrc.json", FormatJSON},
	{"eslint", ".eslintrc", formatJSONOrYAML},
	{"eslint", ".eslintrc.yml", FormatYAML},
	{"eslint", ".eslintrc.yaml", FormatYAML},
	{"eslint", ".eslintrc.js", FormatJavaScript},
	{"eslint", ".eslintrc.cjs", FormatJavaScript},

	{"prettier", ".prettierrc", formatJSONOrYAML},
	{"prettier", ".prettierrc.json", FormatJSON},
	{"prettier", ".prettierrc.yml", FormatYAML},
	{"prettier", ".prettierrc.yaml", FormatYAML},
	{"prettier", ".prettierrc.toml", FormatTOML},
	{"prettier", ".prettierrc.js", FormatJavaScript},
	{"prettier", ".prettierrc.cjs", FormatJavaScript},
	{"prettier", ".prettierrc.mjs", FormatJavaScript},
	{"prettier", "prettier.config.js", FormatJavaScript},
	{"prettier", "prettier.config.cjs", FormatJavaScript},
	{"prettier", "prettier.config.mjs", FormatJavaScript},

	{"tslint", "tslint.json", FormatJSON},
	{"tslint", "tslint.yaml", FormatYAML},

	{"stylelint", ".stylelintrc", formatJSONOrYAML},
	{"stylelint", ".stylelintrc.json", FormatJSON},
	{"stylelint", ".stylelintrc.yml", FormatYAML},
	{"stylelint", ".stylelintrc.yaml", FormatYAML},
	{"stylelint", ".stylelintrc.js", FormatJavaScript},
	{"stylelint", "stylelint.config.js", FormatJavaScript},
	{"stylelint", "stylelint.config.cjs", FormatJavaScript},

	{"biome", "biome.json", FormatJSON},
	{"biome", "biome.jsonc", FormatJSON},

	{"lint-staged", ".lintstagedrc", formatJSONOrYAML},
	{"lint-staged", ".lintstagedrc.json", FormatJSON},
	{"lint-staged", ".lintstagedrc.yml", FormatYAML},
	{"lint-staged", ".lintstagedrc.yaml", FormatYAML},
	{"lint-staged", ".lintstagedrc.js", FormatJavaScript},
	{"lint-staged", "lint-staged.config.js", FormatJavaScript},

	{"commitlint", ".commitlintrc.json", FormatJSON},
	{"commitlint", ".commitlintrc.yml", FormatYAML},
	{"commitlint", "commitlint.config.js", FormatJavaScript},

	{"golangci-lint", ".golangci.yml", FormatYAML},
	{"golangci-lint", ".golangci.yaml", FormatYAML},
	{"golangci-lint", ".golangci.toml", FormatTOML},
	{"golangci-lint", ".golangci.json", FormatJSON},

	{"ruff", "ruff.toml", FormatTOML},
	{"ruff", ".ruff.toml", FormatTOML},

	{"rustfmt", "rustfmt.toml", FormatTOML},
	{"rustfmt", ".rustfmt.toml", FormatTOML},

	{"editorconfig", ".editorconfig", FormatINI},
}

// packageJSONLintKeys are tool configurations embedded in package.json.
var packageJSONLintKeys = []struct {
	key  string
	tool string
}{
	{"eslintConfig", "eslint"},
	{"prettier", "prettier"},
	{"stylelint", "stylelint"},
	{"lint-staged", "lint-staged"},
	{"husky", "husky"},
	{"commitlint", "commitlint"},
}

// pyprojectLintTools are tool tables read from pyproject.toml.
var pyprojectLintTools = []string{"ruff", "black", "isort", "flake8", "mypy", "pylint"}

// DetectLinting reports lint and format tooling configured at the repository
// root. Structured configs are parsed; others are recorded as present with
// Parsed false.
func (b *Builder) DetectLinting() []model.LintingTool {
	tools := []model.LintingTool{}
	seen := make(map[string]bool)

	for _, c := range lintCandidates {
		if seen[c.tool] {
			continue
		}
		info, err := fs.Stat(b.fsys, c.file)
		if err != nil || info.IsDir() {
			continue
		}
		seen[c.tool] = true
		tools = append(tools, b.loadLintConfig(c, info.Size()))
	}

	if !seen["husky"] {
		if hooks, ok := b.huskyHooks(); ok {
			seen["husky"] = true
			tools = append(tools, model.LintingTool{
				Tool:       "husky",
				ConfigFile: ".husky",
				Parsed:     true,
				Format:     FormatDirectory,
				Config:     map[string]any{"hooks": hooks},
			})
		}
	}

	tools = append(tools, b.embeddedLintConfigs(seen)...)
	return tools
}

func (b *Builder) loadLintConfig(c lintCandidate, size int64) model.LintingTool {
	tool := model.LintingTool{Tool: c.tool, ConfigFile: c.file, Format: c.format}
	switch c.format {
	case FormatJavaScript, FormatINI:
		return tool
	}
	if size > maxLintConfigSize {
		b.debug("Lint config too large to parse", "file", c.file, "size", size)
		return tool
	}

	data, err := fs.ReadFile(b.fsys, c.file)
	if err != nil {
		b.debug("Failed to read lint config", "file", c.file, "error", err)
		return tool
	}

	config, format, err := parseStructured(data, c.format)
	if err != nil {
		b.debug("Lint config left unparsed", "file", c.file, "error", err)
		if c.format == formatJSONOrYAML {
			tool.Format = "unknown"
		}
		return tool
	}
	tool.Format = format
	tool.Parsed = true
	tool.Config = config
	return tool
}

// parseStructured decodes a config document into a map and reports the format
// that succeeded.
func parseStructured(data []byte, format string) (map[string]any, string, error) {
	var out map[string]any
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(stripJSONComments(data), &out); err != nil {
			return nil, "", fmt.Errorf("invalid json: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &out); err != nil {
			return nil, "", fmt.Errorf("invalid yaml: %w", err)
		}
	case FormatTOML:
		if err := toml.Unmarshal(data, &out); err != nil {
			return nil, "", fmt.Errorf("invalid toml: %w", err)
		}
	case formatJSONOrYAML:
		if err := json.Unmarshal(data, &out); err == nil {
			return out, FormatJSON, nil
		}
		return parseStructured(data, FormatYAML)
	default:
		return nil, "", fmt.Errorf("unsupported format %q", format)
	}
	if out == nil {
		return nil, "", fmt.Errorf("empty %s document", format)
	}
	return out, format, nil
}

// stripJSONComments removes whole-line // comments, which biome.jsonc and
// tsconfig-style files commonly contain.
func stripJSONComments(data []byte) []byte {
	lines := strings.Split(string(data), "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "//") {
			continue
		}
		kept = append(kept, line)
	}
	return []byte(strings.Join(kept, "\n"))
}

// huskyHooks lists git hook scripts in .husky, skipping husky's own
// internals.
func (b *Builder) huskyHooks() ([]string, bool) {
	entries, err := fs.ReadDir(b.fsys, ".husky")
	if err != nil {
		return nil, false
	}
	hooks := []string{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
			continue
		}
		hooks = append(hooks, name)
	}
	return hooks, true
}

// embeddedLintConfigs reads tool sections from package.json and
// pyproject.toml for tools without a dedicated config file.
func (b *Builder) embeddedLintConfigs(seen map[string]bool) []model.LintingTool {
	var tools []model.LintingTool

	if data, err := fs.ReadFile(b.fsys, "package.json"); err == nil {
		var raw map[string]any
		if err := json.Unmarshal(data, &raw); err == nil {
			for _, k := range packageJSONLintKeys {
				value, ok := raw[k.key]
				if !ok || seen[k.tool] {
					continue
				}
				seen[k.tool] = true
				tools = append(tools, model.LintingTool{
					Tool:       k.tool,
					ConfigFile: "package.json#" + k.key,
					Parsed:     true,
					Format:     FormatJSON,
					Config:     asConfigMap(value),
				})
			}
		}
	}

	if data, err := fs.ReadFile(b.fsys, "pyproject.toml"); err == nil {
		var py struct {
			Tool map[string]any `toml:"tool"`
		}
		if err := toml.Unmarshal(data, &py); err == nil {
			for _, name := range pyprojectLintTools {
				value, ok := py.Tool[name]
				if !ok || seen[name] {
					continue
				}
				seen[name] = true
				tools = append(tools, model.LintingTool{
					Tool:       name,
					ConfigFile: "pyproject.toml#tool." + name,
					Parsed:     true,
					Format:     FormatTOML,
					Config:     asConfigMap(value),
				})
			}
		}
	}

	return tools
}

// asConfigMap wraps non-object values, such as a shared config name, so the
// result is always a map.
func asConfigMap(value any) map[string]any {
	if m, ok := value.(map[string]any); ok {
		return m
	}
	return map[string]any{"value": value}
}
