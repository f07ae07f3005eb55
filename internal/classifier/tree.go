package classifier

import (
	"slices"
	"strings"
)

// Entry is one stored dataset's classifier path.
type Entry struct {
	Path      string
	DatasetID string
}

// Options controls how paths are split.
type Options struct {
	// DropRoot removes the first segment of every path.
	DropRoot bool
}

// Node is a category: one distinct path prefix.
type Node struct {
	Path  []string
	Depth int // len(Path)
	// DatasetIDs holds every dataset filed under this node or below it, in input order.
	DatasetIDs []string
	Count      int
	// Terminal holds the datasets whose full path is exactly this node.
	Terminal []string
}

// Name returns the last path segment.
func (n *Node) Name() string {
	return n.Path[len(n.Path)-1]
}

// Tree is the sorted prefix closure of a set of classifier paths.
type Tree struct {
	Nodes []*Node
	// Unclassified lists datasets whose path had no segments left.
	Unclassified []string

	index map[string]*Node
}

// Split breaks a classifier path into trimmed, non-empty segments.
func Split(path string, dropRoot bool) []string {
	var segs []string
	for _, s := range strings.Split(path, "/") {
		if s = strings.TrimSpace(s); s != "" {
			segs = append(segs, s)
		}
	}
	if dropRoot && len(segs) > 0 {
		segs = segs[1:]
	}
	return segs
}

func key(path []string) string {
	return strings.Join(path, "/")
}

// Build derives the category tree. Every non-empty prefix of every path
// becomes exactly one node; nodes are ordered segment by segment.
func Build(entries []Entry, opts Options) *Tree {
	t := &Tree{index: make(map[string]*Node)}
	seen := make(map[string]map[string]struct{})

	for _, e := range entries {
		segs := Split(e.Path, opts.DropRoot)
		if len(segs) == 0 {
			t.Unclassified = append(t.Unclassified, e.DatasetID)
			continue
		}

		for depth := 1; depth <= len(segs); depth++ {
			k := key(segs[:depth])
			n, ok := t.index[k]
			if !ok {
				n = &Node{Path: slices.Clone(segs[:depth]), Depth: depth}
				t.index[k] = n
				t.Nodes = append(t.Nodes, n)
				seen[k] = make(map[string]struct{})
			}
			if _, dup := seen[k][e.DatasetID]; dup {
				continue
			}
			seen[k][e.DatasetID] = struct{}{}
			n.DatasetIDs = append(n.DatasetIDs, e.DatasetID)
			n.Count++
			if depth == len(segs) {
				n.Terminal = append(n.Terminal, e.DatasetID)
			}
		}
	}

	slices.SortFunc(t.Nodes, func(a, b *Node) int {
		return slices.Compare(a.Path, b.Path)
	})
	return t
}

// Find returns the node for the given segments.
func (t *Tree) Find(path ...string) (*Node, bool) {
	n, ok := t.index[key(path)]
	return n, ok
}

// Roots returns the top-level nodes in order.
func (t *Tree) Roots() []*Node {
	var roots []*Node
	for _, n := range t.Nodes {
		if n.Depth == 1 {
			roots = append(roots, n)
		}
	}
	return roots
}
