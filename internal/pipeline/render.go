package pipeline

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/muesli/reflow/wordwrap"

	"repoknow/internal/docs"
	"repoknow/internal/model"
	"repoknow/internal/structure"
)

// proseWidth is the wrap width for generated paragraphs.
const proseWidth = 80

func wrap(text string) string {
	return wordwrap.String(text, proseWidth)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func renderDiagram(d model.Diagram) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", d.Title)
	if d.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", wrap(d.Description))
	}
	fmt.Fprintf(&b, "```%s\n%s\n```\n", d.Format, strings.TrimRight(d.Content, "\n"))
	return b.String()
}

func renderCodingStandards(a *model.ComprehensiveAnalysis) string {
	cs := a.Structure.CodingStandards
	var b strings.Builder
	fmt.Fprintf(&b, "# Coding standards: %s\n\n", a.Repository.Name)
	b.WriteString(wrap("Conventions below are inferred by majority vote over the files in the repository. "+
		"\"mixed\" means no convention won; \"unknown\" means nothing was observed.") + "\n\n")

	b.WriteString("## Naming\n\n")
	b.WriteString("| Kind | Convention |\n|------|------------|\n")
	fmt.Fprintf(&b, "| Files | %s |\n", orDash(cs.Naming.Files))
	fmt.Fprintf(&b, "| Functions | %s |\n", orDash(cs.Naming.Functions))
	fmt.Fprintf(&b, "| Classes | %s |\n", orDash(cs.Naming.Classes))
	fmt.Fprintf(&b, "| Variables | %s |\n\n", orDash(cs.Naming.Variables))

	b.WriteString("## Code organization\n\n")
	fmt.Fprintf(&b, "- File organization: %s\n", orDash(cs.FileOrganization))
	fmt.Fprintf(&b, "- Import style: %s\n", orDash(cs.ImportStyle))
	fmt.Fprintf(&b, "- Import ordering: %s\n", orDash(cs.ImportOrdering))
	fmt.Fprintf(&b, "- Error handling: %s\n", orDash(cs.ErrorHandling))
	fmt.Fprintf(&b, "- Test framework: %s\n\n", orDash(cs.TestFramework))

	b.WriteString("## Linting and formatting\n\n")
	if len(a.Structure.Linting) == 0 {
		b.WriteString("No linter or formatter configuration was found.\n")
		return b.String()
	}
	for _, tool := range a.Structure.Linting {
		status := "parsed"
		if !tool.Parsed {
			status = "present, format unparsed"
		}
		fmt.Fprintf(&b, "- **%s** (`%s`, %s, %s)\n", tool.Tool, tool.ConfigFile, tool.Format, status)
		if tool.Parsed && len(tool.Config) > 0 {
			keys := slices.Sorted(maps.Keys(tool.Config))
			fmt.Fprintf(&b, "  - keys: %s\n", strings.Join(keys, ", "))
		}
	}
	return b.String()
}

func renderRoutes(a *model.ComprehensiveAnalysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# API routes: %s\n\n", a.Repository.Name)
	fmt.Fprintf(&b, "%s discovered.\n\n", pluralCount(len(a.Routes), "route"))
	b.WriteString("| Method | Path | Handler | Middleware | Source |\n")
	b.WriteString("|--------|------|---------|------------|--------|\n")
	for _, rt := range a.Routes {
		fmt.Fprintf(&b, "| %s | `%s` | %s | %s | %s:%d |\n",
			rt.Method, rt.Path, orDash(rt.Handler), orDash(strings.Join(rt.Middleware, ", ")), rt.FilePath, rt.Line)
	}
	return b.String()
}

func renderFolderStructure(a *model.ComprehensiveAnalysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Folder structure: %s\n\n", a.Repository.Name)
	files, dirs := structure.CountNodes(a.Structure.FolderTree)
	fmt.Fprintf(&b, "%s in %s.\n\n", pluralCount(files, "file"), pluralCount(dirs, "directory"))
	b.WriteString("```\n")
	writeTree(&b, a.Structure.FolderTree)
	b.WriteString("```\n")
	return b.String()
}

// writeTree renders a folder tree with box-drawing connectors.
func writeTree(b *strings.Builder, root *model.FolderNode) {
	if root == nil {
		return
	}
	b.WriteString(root.Name + "/\n")
	var walk func(nodes []*model.FolderNode, prefix string)
	walk = func(nodes []*model.FolderNode, prefix string) {
		for i, n := range nodes {
			connector, next := "├── ", "│   "
			if i == len(nodes)-1 {
				connector, next = "└── ", "    "
			}
			name := n.Name
			if n.Kind == model.KindDirectory {
				name += "/"
			}
			b.WriteString(prefix + connector + name + "\n")
			walk(n.Children, prefix+next)
		}
	}
	walk(root.Children, "")
}

// renderOverview is the main documentation page of a repository.
func renderOverview(a *model.ComprehensiveAnalysis) string {
	repo := a.Repository
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", repo.Name)
	if a.Insights != nil && a.Insights.Summary != "" {
		fmt.Fprintf(&b, "%s\n\n", wrap(a.Insights.Summary))
	}

	b.WriteString("## Repository\n\n")
	if repo.RemoteURL != "" {
		fmt.Fprintf(&b, "- Remote: %s\n", repo.RemoteURL)
	}
	fmt.Fprintf(&b, "- Branch: %s (default %s)\n", orDash(repo.CurrentBranch), orDash(repo.DefaultBranch))
	fmt.Fprintf(&b, "- Branch pattern: %s\n", orDash(repo.BranchPattern))
	if repo.CommitHash != "" {
		fmt.Fprintf(&b, "- Commit: `%s`\n", shortHash(repo.CommitHash))
	}
	b.WriteString("\n")

	writeLanguages(&b, a)

	if len(a.Structure.EntryPoints) > 0 {
		b.WriteString("## Entry points\n\n")
		for _, e := range a.Structure.EntryPoints {
			fmt.Fprintf(&b, "- `%s`\n", e)
		}
		b.WriteString("\n")
	}

	if len(a.Documentation) > 0 {
		b.WriteString("## Documentation\n\n")
		for _, d := range a.Documentation {
			fmt.Fprintf(&b, "- %s\n", docs.Summary(d))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func writeLanguages(b *strings.Builder, a *model.ComprehensiveAnalysis) {
	stats := a.LanguageStats()
	if len(stats) == 0 {
		return
	}
	langs := slices.SortedFunc(maps.Keys(stats), func(x, y string) int {
		if stats[x] != stats[y] {
			return stats[y] - stats[x]
		}
		return strings.Compare(x, y)
	})
	b.WriteString("## Languages\n\n")
	for _, lang := range langs {
		fmt.Fprintf(b, "- %s: %s\n", lang, pluralCount(stats[lang], "file"))
	}
	b.WriteString("\n")
}

// RenderReport is the detailed analysis document: architecture,
// dependencies and recovered code facts.
func RenderReport(a *model.ComprehensiveAnalysis) string {
	s := a.Structure
	var b strings.Builder
	fmt.Fprintf(&b, "# Analysis report: %s\n\n", a.Repository.Name)

	b.WriteString("## Architecture\n\n")
	fmt.Fprintf(&b, "- Layers: %s\n", orDash(strings.Join(s.Architecture.Layers, ", ")))
	fmt.Fprintf(&b, "- Patterns: %s\n\n", orDash(strings.Join(s.Architecture.Patterns, ", ")))

	b.WriteString("## Dependencies\n\n")
	if len(s.Dependencies.Manifests) > 0 {
		fmt.Fprintf(&b, "Declared in %s.\n\n", strings.Join(s.Dependencies.Manifests, ", "))
	}
	writeDependencyTable(&b, "Runtime", s.Dependencies.Runtime)
	writeDependencyTable(&b, "Development", s.Dependencies.Dev)
	if len(s.Dependencies.Scripts) > 0 {
		b.WriteString("### Scripts\n\n")
		for _, name := range slices.Sorted(maps.Keys(s.Dependencies.Scripts)) {
			fmt.Fprintf(&b, "- `%s`: `%s`\n", name, s.Dependencies.Scripts[name])
		}
		b.WriteString("\n")
	}

	b.WriteString("## Functions\n\n")
	fmt.Fprintf(&b, "%s recovered, %s exported.\n\n",
		pluralCount(len(a.Functions), "function"), humanize.Comma(int64(len(a.ExportedFunctions()))))
	categories := []model.FunctionCategory{
		model.CategoryUtility, model.CategoryHelper, model.CategoryService, model.CategoryComponent,
		model.CategoryHandler, model.CategoryMiddleware, model.CategoryOther,
	}
	b.WriteString("| Category | Count |\n|----------|-------|\n")
	for _, c := range categories {
		if n := len(a.FunctionsByCategory(c)); n > 0 {
			fmt.Fprintf(&b, "| %s | %s |\n", c, humanize.Comma(int64(n)))
		}
	}
	b.WriteString("\n")

	if patterns := patternCounts(a.Files); len(patterns) > 0 {
		b.WriteString("## Detected patterns\n\n")
		for _, p := range slices.Sorted(maps.Keys(patterns)) {
			fmt.Fprintf(&b, "- %s: %s\n", p, pluralCount(patterns[p], "file"))
		}
		b.WriteString("\n")
	}

	if a.Insights != nil {
		writeInsights(&b, a.Insights)
	}
	return b.String()
}

func writeDependencyTable(b *strings.Builder, title string, deps map[string]string) {
	if len(deps) == 0 {
		return
	}
	fmt.Fprintf(b, "### %s (%s)\n\n", title, humanize.Comma(int64(len(deps))))
	b.WriteString("| Package | Version |\n|---------|---------|\n")
	for _, name := range slices.Sorted(maps.Keys(deps)) {
		fmt.Fprintf(b, "| %s | %s |\n", name, orDash(deps[name]))
	}
	b.WriteString("\n")
}

func patternCounts(files []model.FileRecord) map[string]int {
	counts := make(map[string]int)
	for _, f := range files {
		if f.Details == nil {
			continue
		}
		for _, p := range f.Details.Patterns {
			counts[p]++
		}
	}
	return counts
}

func writeInsights(b *strings.Builder, in *model.Insights) {
	b.WriteString("## Insights\n\n")
	if in.Summary != "" {
		fmt.Fprintf(b, "%s\n\n", wrap(in.Summary))
	}
	sections := []struct {
		title string
		items []string
	}{
		{"Strengths", in.Strengths},
		{"Concerns", in.Concerns},
		{"Suggestions", in.Suggestions},
	}
	for _, s := range sections {
		if len(s.items) == 0 {
			continue
		}
		fmt.Fprintf(b, "### %s\n\n", s.title)
		for _, item := range s.items {
			fmt.Fprintf(b, "- %s\n", item)
		}
		b.WriteString("\n")
	}
}

// RenderSummary is a short overview suitable for listings and terminals.
func RenderSummary(a *model.ComprehensiveAnalysis) string {
	var size int64
	for _, f := range a.Files {
		size += f.Size
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s summary\n\n", a.Repository.Name)
	fmt.Fprintf(&b, "- Files: %s (%s)\n", humanize.Comma(int64(len(a.Files))), humanize.Bytes(uint64(size)))
	fmt.Fprintf(&b, "- Functions: %s\n", humanize.Comma(int64(len(a.Functions))))
	fmt.Fprintf(&b, "- Routes: %s\n", humanize.Comma(int64(len(a.Routes))))
	fmt.Fprintf(&b, "- Documentation files: %s\n", humanize.Comma(int64(len(a.Documentation))))
	fmt.Fprintf(&b, "- Diagrams: %s\n", humanize.Comma(int64(len(a.Diagrams))))
	if layers := a.Structure.Architecture.Layers; len(layers) > 0 {
		fmt.Fprintf(&b, "- Layers: %s\n", strings.Join(layers, ", "))
	}
	if patterns := a.Structure.Architecture.Patterns; len(patterns) > 0 {
		fmt.Fprintf(&b, "- Architecture: %s\n", strings.Join(patterns, ", "))
	}
	if !a.AnalyzedAt.IsZero() {
		fmt.Fprintf(&b, "- Analyzed: %s\n", a.AnalyzedAt.UTC().Format("2006-01-02 15:04 UTC"))
	}
	b.WriteString("\n")

	if a.Insights != nil && a.Insights.Summary != "" {
		fmt.Fprintf(&b, "%s\n", wrap(a.Insights.Summary))
	}
	return b.String()
}

func pluralCount(n int, singular string) string {
	plural := ""
	if singular == "directory" {
		plural = "directories"
	}
	return humanize.Comma(int64(n)) + " " + english.PluralWord(n, singular, plural)
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
