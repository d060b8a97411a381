// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package hierarchy

import (
	"cmp"
	"slices"

	"classifieds/internal/models"
)

// compareSiblings orders by sort_order, then id.
func compareSiblings(a, b models.Node) int {
	if c := cmp.Compare(a.SortOrder, b.SortOrder); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// SortSiblings sorts nodes in sibling display order in place.
func SortSiblings(nodes []models.Node) {
	slices.SortFunc(nodes, compareSiblings)
}

// BuildTree assembles a forest from a flat, unordered node list. Grouping by
// parent is a single pass, and every reachable node is attached exactly once.
// Roots are kept apart from the parent groups, so no id value can pass for
// "no parent". The second return value counts nodes that could not be
// reached from a root (a dangling parent_id or a cycle in the data).
func BuildTree(flat []models.Node) ([]models.TreeNode, int) {
	var roots []models.Node
	byParent := make(map[int64][]models.Node, len(flat))
	for _, n := range flat {
		if n.IsRoot() {
			roots = append(roots, n)
			continue
		}
		byParent[*n.ParentID] = append(byParent[*n.ParentID], n)
	}
	SortSiblings(roots)
	for k := range byParent {
		SortSiblings(byParent[k])
	}

	attached := 0
	var attach func(nodes []models.Node, depth int) []models.TreeNode
	attach = func(nodes []models.Node, depth int) []models.TreeNode {
		result := make([]models.TreeNode, 0, len(nodes))
		for _, n := range nodes {
			attached++
			kids := byParent[n.ID]
			// Each group is consumed once, so a cycle cannot recurse forever.
			delete(byParent, n.ID)
			result = append(result, models.TreeNode{
				Node:     n,
				Depth:    depth,
				Children: attach(kids, depth+1),
			})
		}
		return result
	}

	forest := attach(roots, 0)
	return forest, len(flat) - attached
}

// CloneForest deep-copies a forest so callers cannot mutate cached state.
func CloneForest(forest []models.TreeNode) []models.TreeNode {
	if forest == nil {
		return nil
	}
	out := make([]models.TreeNode, len(forest))
	for i, n := range forest {
		out[i] = n
		out[i].Node = cloneNode(n.Node)
		out[i].Children = CloneForest(n.Children)
	}
	return out
}

func cloneNode(n models.Node) models.Node {
	if n.ParentID != nil {
		p := *n.ParentID
		n.ParentID = &p
	}
	return n
}

func cloneNodes(nodes []models.Node) []models.Node {
	if nodes == nil {
		return nil
	}
	out := make([]models.Node, len(nodes))
	for i, n := range nodes {
		out[i] = cloneNode(n)
	}
	return out
}

// PruneInactive returns a copy of forest without inactive nodes. An
// inactive node hides its whole subtree.
func PruneInactive(forest []models.TreeNode) []models.TreeNode {
	out := make([]models.TreeNode, 0, len(forest))
	for _, n := range forest {
		if !n.IsActive {
			continue
		}
		n.Node = cloneNode(n.Node)
		n.Children = PruneInactive(n.Children)
		out = append(out, n)
	}
	return out
}

// Flatten walks a forest depth-first and returns nodes in display order
// with Depth preserved. Useful for <select> dropdowns.
func Flatten(forest []models.TreeNode) []models.TreeNode {
	var result []models.TreeNode
	flattenInto(forest, &result)
	return result
}

func flattenInto(forest []models.TreeNode, result *[]models.TreeNode) {
	for _, n := range forest {
		kids := n.Children
		n.Children = nil
		*result = append(*result, n)
		if len(kids) > 0 {
			flattenInto(kids, result)
		}
	}
}

// findInForest returns the subtree rooted at id, if present.
func findInForest(forest []models.TreeNode, id int64) (models.TreeNode, bool) {
	for _, n := range forest {
		if n.ID == id {
			return n, true
		}
		if found, ok := findInForest(n.Children, id); ok {
			return found, true
		}
	}
	return models.TreeNode{}, false
}

func countDescendants(n models.TreeNode) int {
	total := len(n.Children)
	for _, c := range n.Children {
		total += countDescendants(c)
	}
	return total
}
