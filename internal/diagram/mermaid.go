package diagram

import (
	"fmt"
	"strings"
)

// mermaid accumulates a Mermaid flowchart. Nodes are keyed so repeated
// references reuse the same id.
type mermaid struct {
	b   strings.Builder
	ids map[string]string
}

func newMermaid(direction string) *mermaid {
	m := &mermaid{ids: make(map[string]string)}
	m.b.WriteString("graph " + direction + "\n")
	return m
}

// node declares a node once and returns its id.
func (m *mermaid) node(key, label string) string {
	if id, ok := m.ids[key]; ok {
		return id
	}
	id := fmt.Sprintf("n%d", len(m.ids))
	m.ids[key] = id
	fmt.Fprintf(&m.b, "    %s[\"%s\"]\n", id, escapeLabel(label))
	return id
}

func (m *mermaid) edge(fromID, toID, label string) {
	if label == "" {
		fmt.Fprintf(&m.b, "    %s --> %s\n", fromID, toID)
		return
	}
	fmt.Fprintf(&m.b, "    %s -->|%s| %s\n", fromID, escapeLabel(label), toID)
}

func (m *mermaid) comment(text string) {
	fmt.Fprintf(&m.b, "    %%%% %s\n", text)
}

func (m *mermaid) nodeCount() int {
	return len(m.ids)
}

func (m *mermaid) String() string {
	return m.b.String()
}

// escapeLabel replaces characters that terminate a quoted Mermaid label.
func escapeLabel(s string) string {
	return strings.NewReplacer(`"`, "#quot;", "\n", " ", "|", "#124;").Replace(s)
}
