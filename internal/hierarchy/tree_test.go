package hierarchy

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"classifieds/internal/models"
)

// shape is a compact nested view of a forest for comparison.
type shape struct {
	ID       int64
	Depth    int
	Children []shape
}

func shapeOf(forest []models.TreeNode) []shape {
	out := make([]shape, 0, len(forest))
	for _, n := range forest {
		out = append(out, shape{ID: n.ID, Depth: n.Depth, Children: shapeOf(n.Children)})
	}
	return out
}

func TestBuildTree(t *testing.T) {
	// Deliberately unordered input.
	flat := []models.Node{
		node(5, ptr[int64](1), "Tablets", 2),
		node(3, ptr[int64](1), "Laptops", 1),
		node(4, nil, "Vehicles", 1),
		node(2, ptr[int64](1), "Phones", 0),
		node(1, nil, "Electronics", 0),
		node(6, ptr[int64](2), "Smartphones", 0),
		node(7, ptr[int64](4), "Cars", 0),
	}

	forest, unreachable := BuildTree(flat)
	if unreachable != 0 {
		t.Errorf("unreachable: got %d, want 0", unreachable)
	}

	want := []shape{
		{ID: 1, Depth: 0, Children: []shape{
			{ID: 2, Depth: 1, Children: []shape{{ID: 6, Depth: 2, Children: []shape{}}}},
			{ID: 3, Depth: 1, Children: []shape{}},
			{ID: 5, Depth: 1, Children: []shape{}},
		}},
		{ID: 4, Depth: 0, Children: []shape{{ID: 7, Depth: 1, Children: []shape{}}}},
	}
	if diff := cmp.Diff(want, shapeOf(forest)); diff != "" {
		t.Errorf("tree mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildTreeSiblingTieBreak(t *testing.T) {
	flat := []models.Node{
		node(9, nil, "C", 0),
		node(3, nil, "B", 0),
		node(7, nil, "A", 0),
	}
	forest, _ := BuildTree(flat)

	var got []int64
	for _, n := range forest {
		got = append(got, n.ID)
	}
	if diff := cmp.Diff([]int64{3, 7, 9}, got); diff != "" {
		t.Errorf("tie-break by id (-want +got):\n%s", diff)
	}
}

func TestBuildTreeUnreachable(t *testing.T) {
	flat := []models.Node{
		node(1, nil, "Root", 0),
		node(2, ptr[int64](99), "Orphan", 0),
		// 3 and 4 point at each other.
		node(3, ptr[int64](4), "Loop A", 0),
		node(4, ptr[int64](3), "Loop B", 0),
	}
	forest, unreachable := BuildTree(flat)
	if len(forest) != 1 {
		t.Errorf("roots: got %d, want 1", len(forest))
	}
	if unreachable != 3 {
		t.Errorf("unreachable: got %d, want 3", unreachable)
	}
}

func TestBuildTreeZeroParentIsNotRoot(t *testing.T) {
	flat := []models.Node{
		node(1, nil, "Root", 0),
		node(2, ptr[int64](0), "Points at id 0", 0),
	}
	forest, unreachable := BuildTree(flat)
	if len(forest) != 1 || forest[0].ID != 1 {
		t.Fatalf("roots: got %+v, want only node 1", forest)
	}
	if unreachable != 1 {
		t.Errorf("unreachable: got %d, want 1", unreachable)
	}
}

func TestBuildTreeEmpty(t *testing.T) {
	forest, unreachable := BuildTree(nil)
	if len(forest) != 0 || unreachable != 0 {
		t.Errorf("empty input: got %d roots, %d unreachable", len(forest), unreachable)
	}
}

func TestPruneInactive(t *testing.T) {
	inactive := node(2, ptr[int64](1), "Hidden", 0)
	inactive.IsActive = false

	forest, _ := BuildTree([]models.Node{
		node(1, nil, "Root", 0),
		inactive,
		node(3, ptr[int64](2), "Under hidden", 0),
		node(4, ptr[int64](1), "Visible", 1),
	})

	want := []shape{{ID: 1, Children: []shape{{ID: 4, Depth: 1, Children: []shape{}}}}}
	if diff := cmp.Diff(want, shapeOf(PruneInactive(forest))); diff != "" {
		t.Errorf("pruned tree (-want +got):\n%s", diff)
	}

	// The input forest is untouched.
	if len(forest[0].Children) != 2 {
		t.Errorf("input mutated: root has %d children, want 2", len(forest[0].Children))
	}
}

func TestFlatten(t *testing.T) {
	forest, _ := BuildTree([]models.Node{
		node(1, nil, "Electronics", 0),
		node(2, ptr[int64](1), "Phones", 0),
		node(3, ptr[int64](1), "Laptops", 1),
		node(4, nil, "Vehicles", 1),
	})

	flat := Flatten(forest)

	var gotIDs []int64
	var gotDepths []int
	for _, n := range flat {
		gotIDs = append(gotIDs, n.ID)
		gotDepths = append(gotDepths, n.Depth)
		if n.Children != nil {
			t.Errorf("node %d: flattened node should not carry children", n.ID)
		}
	}
	if diff := cmp.Diff([]int64{1, 2, 3, 4}, gotIDs); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{0, 1, 1, 0}, gotDepths); diff != "" {
		t.Errorf("depths (-want +got):\n%s", diff)
	}
}

func TestCloneForestIsDeep(t *testing.T) {
	forest, _ := BuildTree([]models.Node{
		node(1, nil, "Root", 0),
		node(2, ptr[int64](1), "Child", 0),
	})

	clone := CloneForest(forest)
	clone[0].Name = "Changed"
	clone[0].Children[0].Name = "Changed too"
	*clone[0].Children[0].ParentID = 42

	if forest[0].Name != "Root" || forest[0].Children[0].Name != "Child" {
		t.Error("clone shares names with the original")
	}
	if *forest[0].Children[0].ParentID != 1 {
		t.Error("clone shares ParentID pointer with the original")
	}
}
