package classifier

import (
	"reflect"
	"testing"
)

func TestRender(t *testing.T) {
	tree := Build([]Entry{
		{Path: "A/B/C", DatasetID: "1"},
		{Path: "A/B/D", DatasetID: "2"},
		{Path: "A/E", DatasetID: "3"},
		{Path: "F", DatasetID: "4"},
		{Path: "F", DatasetID: "5"},
	}, Options{})
	names := MapNames{"1": "Dataset one", "2": "Dataset two", "3": "Dataset three", "4": "Dataset four"}

	var got []string
	for _, l := range Render(tree, names) {
		got = append(got, l.Indent(".."))
	}

	want := []string{
		"A (3)",
		"..B (2)",
		"....C (1)",
		"......Dataset one",
		"....D (1)",
		"......Dataset two",
		"..E (1)",
		"....Dataset three",
		"F (2)",
		"..Dataset four",
		"..5",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Render() =\n%v\nwant\n%v", got, want)
	}
}

func TestRender_LineKinds(t *testing.T) {
	lines := Render(Build([]Entry{{Path: "A/B", DatasetID: "x"}}, Options{}), MapNames{})
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	if lines[0].Kind != LineCategory || lines[1].Kind != LineCategory || lines[2].Kind != LineDataset {
		t.Errorf("kinds = %v %v %v", lines[0].Kind, lines[1].Kind, lines[2].Kind)
	}
	if lines[2].DatasetID != "x" || lines[2].Text != "x" || lines[2].Depth != 2 {
		t.Errorf("dataset line = %+v", lines[2])
	}
	if Render(Build(nil, Options{}), MapNames{}) != nil {
		t.Error("Render(empty) returned lines")
	}
}

func TestRender_CategoryCountsMatchNodes(t *testing.T) {
	tree := Build([]Entry{
		{Path: "Росстат/Население/Доходы", DatasetID: "1"},
		{Path: "Росстат/Население", DatasetID: "2"},
		{Path: "Росстат/Экономика/Цены", DatasetID: "3"},
		{Path: " Росстат / Экономика / Цены ", DatasetID: "4"},
	}, Options{})

	var categories []Line
	for _, l := range Render(tree, MapNames{}) {
		if l.Kind == LineCategory {
			categories = append(categories, l)
		}
	}
	if len(categories) != len(tree.Nodes) {
		t.Fatalf("got %d category lines, want one per node (%d)", len(categories), len(tree.Nodes))
	}
	for i, n := range tree.Nodes {
		l := categories[i]
		if l.Text != n.Name() || l.Depth != n.Depth-1 || l.Count != n.Count {
			t.Errorf("category %d = %+v, want %s at depth %d with count %d", i, l, n.Name(), n.Depth-1, n.Count)
		}
	}
	if root := categories[0]; root.Count != 4 {
		t.Errorf("root count = %d, want 4", root.Count)
	}
}
