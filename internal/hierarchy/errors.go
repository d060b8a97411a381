// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package hierarchy

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a node id does not exist in the store.
	ErrNotFound = errors.New("node not found")

	// ErrBrokenChain means an ancestor walk hit a parent_id that points at
	// a missing row. This is data corruption, not a normal miss.
	ErrBrokenChain = errors.New("broken ancestor chain")

	// ErrHasChildren is returned when deleting a node that still has children.
	ErrHasChildren = errors.New("node has children")

	// ErrCycle is returned when a move would make a node its own ancestor.
	ErrCycle = errors.New("move would create a cycle")

	// ErrInvalidType is returned when a location type does not fit its parent.
	ErrInvalidType = errors.New("invalid location type for parent")

	// ErrInvalidInput is returned for empty names and similar input problems.
	ErrInvalidInput = errors.New("invalid node input")
)

// BrokenChainError identifies the dangling reference found during an
// ancestor walk. It matches ErrBrokenChain with errors.Is.
type BrokenChainError struct {
	NodeID          int64
	MissingParentID int64
}

func (e *BrokenChainError) Error() string {
	return fmt.Sprintf("broken ancestor chain: node %d references missing parent %d", e.NodeID, e.MissingParentID)
}

func (e *BrokenChainError) Unwrap() error {
	return ErrBrokenChain
}
