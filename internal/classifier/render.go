package classifier

import (
	"strconv"
	"strings"
)

// NameLookup resolves a dataset id to its display name.
type NameLookup interface {
	DisplayNameFor(id string) string
}

// MapNames is a NameLookup backed by a map. Unknown ids render as themselves.
type MapNames map[string]string

func (m MapNames) DisplayNameFor(id string) string {
	if name, ok := m[id]; ok {
		return name
	}
	return id
}

// LineKind distinguishes category lines from dataset lines.
type LineKind int

const (
	LineCategory LineKind = iota
	LineDataset
)

// Line is one row of a rendered tree.
type Line struct {
	Kind      LineKind
	Depth     int // 0 for top-level categories
	Text      string
	Count     int    // category lines only
	DatasetID string // dataset lines only
}

// Indent formats the line with unit repeated Depth times in front.
func (l Line) Indent(unit string) string {
	var b strings.Builder
	b.WriteString(strings.Repeat(unit, l.Depth))
	b.WriteString(l.Text)
	if l.Kind == LineCategory {
		b.WriteString(" (")
		b.WriteString(strconv.Itoa(l.Count))
		b.WriteString(")")
	}
	return b.String()
}

// Render walks the tree top to bottom. Build closes the node set under
// prefixes and sorts it, so each node follows its parent and yields exactly
// one category line; each dataset whose path ends at a node follows that node
// as a leaf line.
func Render(t *Tree, names NameLookup) []Line {
	var lines []Line
	for _, n := range t.Nodes {
		lines = append(lines, Line{Kind: LineCategory, Depth: n.Depth - 1, Text: n.Name(), Count: n.Count})

		for _, id := range n.Terminal {
			lines = append(lines, Line{
				Kind:      LineDataset,
				Depth:     n.Depth,
				Text:      names.DisplayNameFor(id),
				DatasetID: id,
			})
		}
	}
	return lines
}
