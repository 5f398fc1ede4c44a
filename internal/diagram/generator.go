package diagram

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"

	"repoknow/internal/logging"
	"repoknow/internal/model"
	"repoknow/internal/structure"
)

// FormatMermaid is the only diagram format produced.
const FormatMermaid = "mermaid"

// ErrNoData is returned by a diagram builder when the repository has nothing
// for that diagram to show. Such diagrams are skipped, not failed.
var ErrNoData = errors.New("not enough data for diagram")

const (
	defaultMaxDepth     = 3
	defaultMaxNodes     = 80
	defaultMaxEdges     = 120
	defaultMaxExternals = 12
)

// Generator renders Mermaid diagrams from an analysis.
type Generator struct {
	logger       *logging.AppLogger
	maxDepth     int
	maxNodes     int
	maxEdges     int
	maxExternals int
}

// NewGenerator creates a Generator with default size limits. The logger may
// be nil.
func NewGenerator(logger *logging.AppLogger) *Generator {
	return &Generator{
		logger:       logger,
		maxDepth:     defaultMaxDepth,
		maxNodes:     defaultMaxNodes,
		maxEdges:     defaultMaxEdges,
		maxExternals: defaultMaxExternals,
	}
}

type graphInput struct {
	repo      model.RepositoryInfo
	structure model.Structure
	files     []model.FileRecord
	edges     []edge
	externals []external
}

type diagramBuilder struct {
	kind  model.DiagramKind
	build func(in *graphInput) (model.Diagram, error)
}

// Generate builds every diagram independently. Diagrams without data are
// skipped; failures are joined into the returned error while the remaining
// diagrams are still produced. analysis may be nil.
func (g *Generator) Generate(repo model.RepositoryInfo, s model.Structure, analysis *model.ComprehensiveAnalysis) ([]model.Diagram, error) {
	in := &graphInput{repo: repo, structure: s}
	if analysis != nil {
		in.files = analysis.Files
	}
	in.edges, in.externals = resolveEdges(in.files)

	builders := []diagramBuilder{
		{model.DiagramFolderStructure, g.folderStructure},
		{model.DiagramFileDependency, g.fileDependency},
		{model.DiagramArchitecture, g.architecture},
		{model.DiagramModuleDependency, g.moduleDependency},
	}

	diagrams := []model.Diagram{}
	var errs []error
	for _, b := range builders {
		d, err := safeBuild(b, in)
		if errors.Is(err, ErrNoData) {
			g.debug("Skipping diagram", "kind", b.kind, "reason", err)
			continue
		}
		if err != nil {
			g.warn("Diagram generation failed", "kind", b.kind, "error", err)
			errs = append(errs, fmt.Errorf("%s diagram: %w", b.kind, err))
			continue
		}
		d.Kind = b.kind
		d.Format = FormatMermaid
		diagrams = append(diagrams, d)
	}

	g.debug("Diagrams generated", "count", len(diagrams), "failed", len(errs))
	return diagrams, errors.Join(errs...)
}

// safeBuild turns a panic in one builder into an error for that diagram.
func safeBuild(b diagramBuilder, in *graphInput) (d model.Diagram, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return b.build(in)
}

func (g *Generator) folderStructure(in *graphInput) (model.Diagram, error) {
	root := in.structure.FolderTree
	if root == nil || len(root.Children) == 0 {
		return model.Diagram{}, ErrNoData
	}

	name := root.Name
	if name == "" {
		name = in.repo.Name
	}

	m := newMermaid("TD")
	files, _ := structure.CountNodes(root)
	rootID := m.node("", fmt.Sprintf("%s (%s files)", name, humanize.Comma(int64(files))))
	truncated := false

	var walk func(node *model.FolderNode, parentID string, depth int)
	walk = func(node *model.FolderNode, parentID string, depth int) {
		for _, child := range node.Children {
			if child.Kind != model.KindDirectory {
				continue
			}
			if m.nodeCount() >= g.maxNodes {
				truncated = true
				return
			}
			count, _ := structure.CountNodes(child)
			id := m.node(child.Path, fmt.Sprintf("%s/ (%s)", child.Name, pluralFiles(count)))
			m.edge(parentID, id, "")
			if depth < g.maxDepth {
				walk(child, id, depth+1)
			}
		}
	}
	walk(root, rootID, 1)

	description := fmt.Sprintf("Directory layout of %s to depth %d.", name, g.maxDepth)
	if truncated {
		description += fmt.Sprintf(" Truncated at %d nodes.", g.maxNodes)
	}
	return model.Diagram{
		Title:       "Folder Structure",
		Description: description,
		Content:     m.String(),
	}, nil
}

func (g *Generator) fileDependency(in *graphInput) (model.Diagram, error) {
	if len(in.edges) == 0 {
		return model.Diagram{}, ErrNoData
	}

	m := newMermaid("LR")
	shown := 0
	for _, e := range in.edges {
		if shown >= g.maxEdges {
			break
		}
		m.edge(m.node(e.from, e.from), m.node(e.to, e.to), "")
		shown++
	}

	description := fmt.Sprintf("%d internal imports between %d units.", shown, m.nodeCount())
	if shown < len(in.edges) {
		description = fmt.Sprintf("First %d of %d internal imports.", shown, len(in.edges))
	}
	return model.Diagram{
		Title:       "File Dependencies",
		Description: description,
		Content:     m.String(),
	}, nil
}

func (g *Generator) architecture(in *graphInput) (model.Diagram, error) {
	layers := in.structure.Architecture.Layers
	if len(layers) == 0 {
		return model.Diagram{}, ErrNoData
	}

	m := newMermaid("TB")
	if len(in.structure.Architecture.Patterns) > 0 {
		m.comment("patterns: " + strings.Join(in.structure.Architecture.Patterns, ", "))
	}
	for _, layer := range layers {
		m.node(layer, layer)
	}

	counts := make(map[[2]string]int)
	for _, e := range in.edges {
		from, to := structure.LayerOfDir(e.fromDir), structure.LayerOfDir(e.toDir)
		if from == "" || to == "" || from == to {
			continue
		}
		counts[[2]string{from, to}]++
	}
	for _, pair := range sortedPairs(counts) {
		m.edge(m.node(pair[0], pair[0]), m.node(pair[1], pair[1]), pluralImports(counts[pair]))
	}

	description := fmt.Sprintf("%d layers with %d cross-layer dependencies.", len(layers), len(counts))
	if len(in.structure.Architecture.Patterns) > 0 {
		description += " Patterns: " + strings.Join(in.structure.Architecture.Patterns, ", ") + "."
	}
	return model.Diagram{
		Title:       "Architecture Layers",
		Description: description,
		Content:     m.String(),
	}, nil
}

func (g *Generator) moduleDependency(in *graphInput) (model.Diagram, error) {
	internal := make(map[[2]string]int)
	for _, e := range in.edges {
		from, to := moduleOf(e.fromDir), moduleOf(e.toDir)
		if from != to {
			internal[[2]string{from, to}]++
		}
	}

	externalCounts := make(map[string]int)
	usage := make(map[[2]string]int)
	for _, ext := range in.externals {
		name, ok := declaredName(ext.name, in.structure.Dependencies)
		if !ok {
			continue
		}
		externalCounts[name]++
		usage[[2]string{moduleOf(ext.unitDir), name}]++
	}
	top := topExternals(externalCounts, g.maxExternals)

	if len(internal) == 0 && len(top) == 0 {
		return model.Diagram{}, ErrNoData
	}

	m := newMermaid("LR")
	for _, pair := range sortedPairs(internal) {
		m.edge(m.node("mod:"+pair[0], pair[0]), m.node("mod:"+pair[1], pair[1]), pluralImports(internal[pair]))
	}
	for _, pair := range sortedPairs(usage) {
		if !slices.Contains(top, pair[1]) {
			continue
		}
		m.edge(m.node("mod:"+pair[0], pair[0]), m.node("ext:"+pair[1], pair[1]+" (external)"), "")
	}

	return model.Diagram{
		Title: "Module Dependencies",
		Description: fmt.Sprintf("%d internal module links and the %d most used external packages.",
			len(internal), len(top)),
		Content: m.String(),
	}, nil
}

// moduleOf names the top-level module of a directory. Conventional source
// containers are looked through.
func moduleOf(dir string) string {
	dir = strings.Trim(dir, "/")
	if dir == "" || dir == "." {
		return "(root)"
	}
	segs := strings.Split(dir, "/")
	switch segs[0] {
	case "src", "internal", "pkg", "lib", "app":
		if len(segs) > 1 {
			return segs[0] + "/" + segs[1]
		}
	}
	return segs[0]
}

// declaredName matches an external import against declared dependencies.
// With no manifests every import counts. Go imports collapse onto their
// module path.
func declaredName(name string, deps model.Dependencies) (string, bool) {
	if len(deps.Runtime) == 0 && len(deps.Dev) == 0 {
		return name, true
	}
	for _, set := range []map[string]string{deps.Runtime, deps.Dev} {
		if _, ok := set[name]; ok {
			return name, true
		}
		for dep := range set {
			if strings.HasPrefix(name, dep+"/") {
				return dep, true
			}
		}
	}
	return "", false
}

func topExternals(counts map[string]int, limit int) []string {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	slices.SortFunc(names, func(a, b string) int {
		if counts[a] != counts[b] {
			return counts[b] - counts[a]
		}
		return strings.Compare(a, b)
	})
	if len(names) > limit {
		names = names[:limit]
	}
	return names
}

func sortedPairs(counts map[[2]string]int) [][2]string {
	pairs := make([][2]string, 0, len(counts))
	for pair := range counts {
		pairs = append(pairs, pair)
	}
	slices.SortFunc(pairs, func(a, b [2]string) int {
		if c := strings.Compare(a[0], b[0]); c != 0 {
			return c
		}
		return strings.Compare(a[1], b[1])
	})
	return pairs
}

func pluralFiles(n int) string {
	return humanize.Comma(int64(n)) + " " + english.PluralWord(n, "file", "")
}

func pluralImports(n int) string {
	return humanize.Comma(int64(n)) + " " + english.PluralWord(n, "import", "")
}

func (g *Generator) debug(msg string, keyvals ...interface{}) {
	if g.logger != nil {
		g.logger.Debug(msg, keyvals...)
	}
}

func (g *Generator) warn(msg string, keyvals ...interface{}) {
	if g.logger != nil {
		g.logger.Warn(msg, keyvals...)
	}
}
