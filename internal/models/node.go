// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import "time"

// Node is a single row of a taxonomy table (a category or a location).
// Listings reference exactly one category and one location.
type Node struct {
	ID        int64        `json:"id"`
	ParentID  *int64       `json:"parent_id"`
	Name      string       `json:"name"`
	Slug      string       `json:"slug"`
	SortOrder int          `json:"sort_order"`
	IsActive  bool         `json:"is_active"`
	Type      LocationType `json:"type,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// IsRoot reports whether the node has no parent.
func (n Node) IsRoot() bool {
	return n.ParentID == nil
}

// TreeNode is a Node with its children attached. It is only ever produced
// by tree assembly and is never written back to the database.
type TreeNode struct {
	Node
	Depth    int        `json:"depth"`
	Children []TreeNode `json:"children"`
}

// NodeInput carries the fields accepted when creating a node.
// A nil SortOrder means "append after the last sibling".
type NodeInput struct {
	ParentID  *int64
	Name      string
	SortOrder *int
	IsActive  bool
	Type      LocationType
}

// NodePatch is a partial update. Nil fields are left untouched.
// A parent change is only applied when MoveParent is set, so that a nil
// ParentID can mean "move to root".
type NodePatch struct {
	Name       *string
	SortOrder  *int
	IsActive   *bool
	Type       *LocationType
	MoveParent bool
	ParentID   *int64
}

// HasFieldChanges reports whether the patch touches any non-structural field.
func (p NodePatch) HasFieldChanges() bool {
	return p.Name != nil || p.SortOrder != nil || p.IsActive != nil || p.Type != nil
}

// ReorderItem represents a single item in a reorder request.
type ReorderItem struct {
	ID       int64  `json:"id"`
	ParentID *int64 `json:"parent_id"`
	Order    int    `json:"order"`
}

// NodeMeta is derived information about a node's position in its tree.
type NodeMeta struct {
	NodeID          int64    `json:"node_id"`
	Depth           int      `json:"depth"`
	ChildCount      int      `json:"child_count"`
	DescendantCount int      `json:"descendant_count"`
	Path            []string `json:"path"`
}
