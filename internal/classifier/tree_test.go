package classifier

import (
	"reflect"
	"strings"
	"testing"
)

func TestBuild_Example(t *testing.T) {
	tree := Build([]Entry{
		{Path: "A/B/C", DatasetID: "1"},
		{Path: "A/B/D", DatasetID: "2"},
		{Path: "A/E", DatasetID: "3"},
		{Path: "F", DatasetID: "4"},
		{Path: "F", DatasetID: "5"},
	}, Options{})

	want := []struct {
		path  string
		count int
	}{
		{"A", 3},
		{"A/B", 2},
		{"A/B/C", 1},
		{"A/B/D", 1},
		{"A/E", 1},
		{"F", 2},
	}

	if len(tree.Nodes) != len(want) {
		t.Fatalf("got %d nodes, want %d", len(tree.Nodes), len(want))
	}
	for i, w := range want {
		n := tree.Nodes[i]
		if got := strings.Join(n.Path, "/"); got != w.path || n.Count != w.count {
			t.Errorf("node %d = %s(%d), want %s(%d)", i, got, n.Count, w.path, w.count)
		}
	}

	a, ok := tree.Find("A")
	if !ok {
		t.Fatal("Find(A) missed")
	}
	if !reflect.DeepEqual(a.DatasetIDs, []string{"1", "2", "3"}) || len(a.Terminal) != 0 {
		t.Errorf("A ids = %v terminal = %v", a.DatasetIDs, a.Terminal)
	}
	f, _ := tree.Find("F")
	if !reflect.DeepEqual(f.Terminal, []string{"4", "5"}) {
		t.Errorf("F terminal = %v, want [4 5]", f.Terminal)
	}
	if _, ok := tree.Find("A", "X"); ok {
		t.Error("Find(A, X) hit a missing node")
	}
	if roots := tree.Roots(); len(roots) != 2 || roots[0].Name() != "A" || roots[1].Name() != "F" {
		t.Errorf("Roots() = %v", roots)
	}
}

func TestBuild_Invariants(t *testing.T) {
	entries := []Entry{
		{Path: "Население / Доходы / Среднедушевые", DatasetID: "a"},
		{Path: "Население/Доходы", DatasetID: "b"},
		{Path: "Население//Занятость/", DatasetID: "c"},
		{Path: "  Экономика /Цены/Индексы", DatasetID: "d"},
		{Path: "Экономика/Цены/Индексы", DatasetID: "e"},
		{Path: "Экономика", DatasetID: "f"},
		{Path: "Население/Доходы/Среднедушевые", DatasetID: "a"},
	}
	tree := Build(entries, Options{})

	// node set equals the union of prefixes
	prefixes := map[string]bool{}
	for _, e := range entries {
		segs := Split(e.Path, false)
		for i := 1; i <= len(segs); i++ {
			prefixes[strings.Join(segs[:i], "/")] = true
		}
	}
	nodes := map[string]bool{}
	for _, n := range tree.Nodes {
		k := strings.Join(n.Path, "/")
		if nodes[k] {
			t.Errorf("duplicate node %q", k)
		}
		nodes[k] = true
		if n.Depth != len(n.Path) {
			t.Errorf("node %q depth %d", k, n.Depth)
		}
	}
	if !reflect.DeepEqual(prefixes, nodes) {
		t.Errorf("nodes = %v, want %v", nodes, prefixes)
	}

	// counts never grow going down, and equal the datasets under the prefix
	for _, n := range tree.Nodes {
		if n.Depth > 1 {
			parent, ok := tree.Find(n.Path[:n.Depth-1]...)
			if !ok {
				t.Fatalf("missing parent of %v", n.Path)
			}
			if parent.Count < n.Count {
				t.Errorf("parent %v count %d < child %v count %d", parent.Path, parent.Count, n.Path, n.Count)
			}
		}
		if n.Count != len(n.DatasetIDs) {
			t.Errorf("node %v count %d != ids %d", n.Path, n.Count, len(n.DatasetIDs))
		}
	}

	// "a" is listed twice with the same path and counts once
	top, _ := tree.Find("Население")
	if !reflect.DeepEqual(top.DatasetIDs, []string{"a", "b", "c"}) {
		t.Errorf("Население ids = %v", top.DatasetIDs)
	}
	idx, _ := tree.Find("Экономика", "Цены", "Индексы")
	if !reflect.DeepEqual(idx.Terminal, []string{"d", "e"}) {
		t.Errorf("Индексы terminal = %v", idx.Terminal)
	}
}

func TestBuild_DropRoot(t *testing.T) {
	tree := Build([]Entry{
		{Path: "Официальная статистика/Население/Доходы", DatasetID: "1"},
		{Path: "Официальная статистика", DatasetID: "2"},
		{Path: "", DatasetID: "3"},
	}, Options{DropRoot: true})

	var got []string
	for _, n := range tree.Nodes {
		got = append(got, strings.Join(n.Path, "/"))
	}
	if want := []string{"Население", "Население/Доходы"}; !reflect.DeepEqual(got, want) {
		t.Errorf("nodes = %v, want %v", got, want)
	}
	if !reflect.DeepEqual(tree.Unclassified, []string{"2", "3"}) {
		t.Errorf("Unclassified = %v, want [2 3]", tree.Unclassified)
	}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		in       string
		dropRoot bool
		want     []string
	}{
		{"A/B/C", false, []string{"A", "B", "C"}},
		{" A / B ", false, []string{"A", "B"}},
		{"/A//B/", false, []string{"A", "B"}},
		{"Root/A", true, []string{"A"}},
		{"", false, nil},
		{" / ", true, nil},
	}
	for _, tt := range tests {
		if got := Split(tt.in, tt.dropRoot); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Split(%q, %v) = %v, want %v", tt.in, tt.dropRoot, got, tt.want)
		}
	}
}
