// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package hierarchy answers tree-shaped queries over a taxonomy (categories
// or locations) with cache-first reads, and keeps its cache coherent with the
// store on every admin mutation. Reads populate narrow cache entries; any
// structural mutation clears the whole cache.
package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"classifieds/internal/models"
)

// Store is the persistence collaborator. Implementations must be atomic per
// call; the service adds no retries.
type Store interface {
	// ListAll returns every node, in no particular order.
	ListAll(ctx context.Context) ([]models.Node, error)
	// ListChildren returns direct children of parentID (roots for nil),
	// ordered by sort_order then id.
	ListChildren(ctx context.Context, parentID *int64) ([]models.Node, error)
	// GetByID returns ErrNotFound for unknown ids.
	GetByID(ctx context.Context, id int64) (*models.Node, error)
	Create(ctx context.Context, in models.NodeInput) (*models.Node, error)
	// Update applies the non-structural fields of p.
	Update(ctx context.Context, id int64, p models.NodePatch) (*models.Node, error)
	// Delete returns ErrHasChildren if the node still has children.
	Delete(ctx context.Context, id int64) error
	Move(ctx context.Context, id int64, parentID *int64) (*models.Node, error)
	Reorder(ctx context.Context, items []models.ReorderItem) error
}

// Notifier tells other processes that a domain's cache must be dropped.
type Notifier interface {
	Publish(ctx context.Context, domain string) error
}

// Options configures a Service.
type Options struct {
	// Domain names the taxonomy ("categories", "locations") in logs and
	// notifications.
	Domain string
	// Typed enables location type rules: roots are countries and each
	// child is exactly one level below its parent.
	Typed bool
	// Notifier is optional.
	Notifier Notifier
}

// Service is the cache-aware front of a taxonomy store.
type Service struct {
	store    Store
	cache    *Cache
	domain   string
	typed    bool
	notifier Notifier
}

// NewService wires a store and its cache together.
func NewService(store Store, cache *Cache, opts Options) *Service {
	return &Service{
		store:    store,
		cache:    cache,
		domain:   opts.Domain,
		typed:    opts.Typed,
		notifier: opts.Notifier,
	}
}

// Domain returns the taxonomy name this service manages.
func (s *Service) Domain() string {
	return s.domain
}

// Tree returns the whole forest, active and inactive nodes alike.
func (s *Service) Tree(ctx context.Context) ([]models.TreeNode, error) {
	forest, err := s.forest(ctx)
	if err != nil {
		return nil, err
	}
	return CloneForest(forest), nil
}

// forest returns the cached forest itself. Callers must not modify it.
func (s *Service) forest(ctx context.Context) ([]models.TreeNode, error) {
	if v, ok := s.cache.Get(keyAllNodes); ok {
		if forest, ok := v.([]models.TreeNode); ok {
			return forest, nil
		}
	}

	gen := s.cache.Generation()
	flat, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	forest, unreachable := BuildTree(flat)
	if unreachable > 0 {
		slog.Warn("taxonomy nodes unreachable from any root",
			"domain", s.domain,
			"count", unreachable,
		)
	}

	s.cache.SetIfGeneration(keyAllNodes, forest, gen)
	return forest, nil
}

// ActiveTree returns the forest with inactive nodes and their subtrees removed.
func (s *Service) ActiveTree(ctx context.Context) ([]models.TreeNode, error) {
	forest, err := s.activeForest(ctx)
	if err != nil {
		return nil, err
	}
	return CloneForest(forest), nil
}

// activeForest is the shared pruned forest behind every public read.
func (s *Service) activeForest(ctx context.Context) ([]models.TreeNode, error) {
	if v, ok := s.cache.Get(keyActiveNodes); ok {
		if forest, ok := v.([]models.TreeNode); ok {
			return forest, nil
		}
	}

	gen := s.cache.Generation()
	forest, err := s.forest(ctx)
	if err != nil {
		return nil, err
	}
	active := PruneInactive(forest)
	s.cache.SetIfGeneration(keyActiveNodes, active, gen)
	return active, nil
}

// visible returns the subtree of id in the public view. Missing nodes and
// nodes below an inactive ancestor are both ErrNotFound.
func (s *Service) visible(ctx context.Context, id int64) (models.TreeNode, error) {
	forest, err := s.activeForest(ctx)
	if err != nil {
		return models.TreeNode{}, err
	}
	sub, ok := findInForest(forest, id)
	if !ok {
		return models.TreeNode{}, fmt.Errorf("node %d: %w", id, ErrNotFound)
	}
	return sub, nil
}

// Children returns the ordered direct children of parentID (roots for nil).
func (s *Service) Children(ctx context.Context, parentID *int64) ([]models.Node, error) {
	key := keyChildren(parentID)
	if v, ok := s.cache.Get(key); ok {
		if nodes, ok := v.([]models.Node); ok {
			return cloneNodes(nodes), nil
		}
	}

	gen := s.cache.Generation()
	nodes, err := s.store.ListChildren(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if nodes == nil {
		nodes = []models.Node{}
	}
	SortSiblings(nodes)

	s.cache.SetIfGeneration(key, nodes, gen)
	return cloneNodes(nodes), nil
}

// ActiveChildren is Children in the public view: a hidden parent is
// ErrNotFound and inactive children are left out.
func (s *Service) ActiveChildren(ctx context.Context, parentID *int64) ([]models.Node, error) {
	if parentID != nil {
		if _, err := s.visible(ctx, *parentID); err != nil {
			return nil, err
		}
	}
	nodes, err := s.Children(ctx, parentID)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(nodes, func(n models.Node) bool { return !n.IsActive }), nil
}

// AncestorPath returns the nodes from the root down to id, inclusive.
// It fails with ErrNotFound when id does not exist and with a
// *BrokenChainError when a parent reference dangles.
func (s *Service) AncestorPath(ctx context.Context, id int64) ([]models.Node, error) {
	key := keyPath(id)
	if v, ok := s.cache.Get(key); ok {
		if path, ok := v.([]models.Node); ok {
			return cloneNodes(path), nil
		}
	}

	gen := s.cache.Generation()
	path, err := s.walkAncestors(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cache.SetIfGeneration(key, path, gen)
	return cloneNodes(path), nil
}

// ActivePath is AncestorPath in the public view. A chain through an
// inactive node is ErrNotFound.
func (s *Service) ActivePath(ctx context.Context, id int64) ([]models.Node, error) {
	path, err := s.AncestorPath(ctx, id)
	if err != nil {
		return nil, err
	}
	return activeOnly(id, path)
}

func activeOnly(id int64, path []models.Node) ([]models.Node, error) {
	for _, n := range path {
		if !n.IsActive {
			return nil, fmt.Errorf("node %d: %w", id, ErrNotFound)
		}
	}
	return path, nil
}

// walkAncestors reads the chain from the store, bypassing the cache.
func (s *Service) walkAncestors(ctx context.Context, id int64) ([]models.Node, error) {
	node, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	chain := []models.Node{*node}
	seen := map[int64]bool{node.ID: true}
	cur := *node
	for cur.ParentID != nil {
		parentID := *cur.ParentID
		if seen[parentID] {
			return nil, fmt.Errorf("ancestor path of %d: %w", id, ErrCycle)
		}
		parent, err := s.store.GetByID(ctx, parentID)
		if errors.Is(err, ErrNotFound) {
			return nil, &BrokenChainError{NodeID: cur.ID, MissingParentID: parentID}
		}
		if err != nil {
			return nil, err
		}
		seen[parent.ID] = true
		chain = append(chain, *parent)
		cur = *parent
	}

	slices.Reverse(chain)
	return chain, nil
}

// Breadcrumb is AncestorPath for display. A broken chain is logged as a
// data-integrity alarm and degrades to the node alone.
func (s *Service) Breadcrumb(ctx context.Context, id int64) ([]models.Node, error) {
	path, err := s.AncestorPath(ctx, id)
	if err == nil {
		return path, nil
	}

	var broken *BrokenChainError
	if !errors.As(err, &broken) {
		return nil, err
	}

	slog.Error("taxonomy data integrity alarm",
		"domain", s.domain,
		"node_id", broken.NodeID,
		"missing_parent_id", broken.MissingParentID,
	)

	node, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return []models.Node{*node}, nil
}

// ActiveBreadcrumb is Breadcrumb in the public view.
func (s *Service) ActiveBreadcrumb(ctx context.Context, id int64) ([]models.Node, error) {
	path, err := s.Breadcrumb(ctx, id)
	if err != nil {
		return nil, err
	}
	return activeOnly(id, path)
}

// Metadata returns depth, child counts, and the root-first name path of id,
// counting inactive descendants too.
func (s *Service) Metadata(ctx context.Context, id int64) (*models.NodeMeta, error) {
	return s.metadata(ctx, id, false)
}

// ActiveMetadata is Metadata in the public view: hidden nodes are
// ErrNotFound and only visible descendants are counted.
func (s *Service) ActiveMetadata(ctx context.Context, id int64) (*models.NodeMeta, error) {
	return s.metadata(ctx, id, true)
}

func (s *Service) metadata(ctx context.Context, id int64, active bool) (*models.NodeMeta, error) {
	key := keyMeta(id, active)
	if v, ok := s.cache.Get(key); ok {
		if meta, ok := v.(models.NodeMeta); ok {
			meta.Path = slices.Clone(meta.Path)
			return &meta, nil
		}
	}

	gen := s.cache.Generation()
	path, err := s.AncestorPath(ctx, id)
	if err != nil {
		return nil, err
	}

	var sub models.TreeNode
	if active {
		if _, err := activeOnly(id, path); err != nil {
			return nil, err
		}
		if sub, err = s.visible(ctx, id); err != nil {
			return nil, err
		}
	} else {
		forest, err := s.forest(ctx)
		if err != nil {
			return nil, err
		}
		var ok bool
		if sub, ok = findInForest(forest, id); !ok {
			// The path resolved but the tree does not contain the node, so
			// the store changed between the two reads.
			return nil, fmt.Errorf("metadata of %d: %w", id, ErrNotFound)
		}
	}

	names := make([]string, len(path))
	for i, n := range path {
		names[i] = n.Name
	}

	meta := models.NodeMeta{
		NodeID:          id,
		Depth:           sub.Depth,
		ChildCount:      len(sub.Children),
		DescendantCount: countDescendants(sub),
		Path:            names,
	}
	s.cache.SetIfGeneration(key, meta, gen)

	meta.Path = slices.Clone(names)
	return &meta, nil
}

// Create validates and inserts a node, then invalidates the cache.
func (s *Service) Create(ctx context.Context, in models.NodeInput) (*models.Node, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, fmt.Errorf("name is required: %w", ErrInvalidInput)
	}

	var parent *models.Node
	if in.ParentID != nil {
		p, err := s.store.GetByID(ctx, *in.ParentID)
		if err != nil {
			return nil, fmt.Errorf("parent %d: %w", *in.ParentID, err)
		}
		parent = p
	}
	if err := s.checkType(parent, in.Type); err != nil {
		return nil, err
	}
	if !s.typed {
		in.Type = ""
	}

	node, err := s.store.Create(ctx, in)
	if err != nil {
		return nil, err
	}

	s.Invalidate(ctx, node.ID)
	return node, nil
}

// Update applies a partial update. A parent change is carried out as a Move
// first, with the same cycle and type checks.
func (s *Service) Update(ctx context.Context, id int64, p models.NodePatch) (*models.Node, error) {
	if p.Name != nil {
		trimmed := strings.TrimSpace(*p.Name)
		if trimmed == "" {
			return nil, fmt.Errorf("name is required: %w", ErrInvalidInput)
		}
		p.Name = &trimmed
	}

	existing, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.typed && p.Type != nil && *p.Type != existing.Type {
		if err := s.checkRetype(ctx, existing, p, *p.Type); err != nil {
			return nil, err
		}
	}
	if !s.typed {
		p.Type = nil
	}

	result := existing
	if p.MoveParent && !sameParent(existing.ParentID, p.ParentID) {
		moved, err := s.move(ctx, existing, p.ParentID, p.Type)
		if err != nil {
			return nil, err
		}
		result = moved
	}

	if p.HasFieldChanges() {
		updated, err := s.store.Update(ctx, id, p)
		if err != nil {
			// The move (if any) already landed.
			s.Invalidate(ctx, id)
			return nil, err
		}
		result = updated
	}

	s.Invalidate(ctx, id)
	return result, nil
}

// checkRetype validates a type change against the (possibly new) parent and
// rejects it when existing children would no longer fit.
func (s *Service) checkRetype(ctx context.Context, existing *models.Node, p models.NodePatch, newType models.LocationType) error {
	parentID := existing.ParentID
	if p.MoveParent {
		parentID = p.ParentID
	}

	var parent *models.Node
	if parentID != nil {
		pn, err := s.store.GetByID(ctx, *parentID)
		if err != nil {
			return fmt.Errorf("parent %d: %w", *parentID, err)
		}
		parent = pn
	}
	if err := s.checkType(parent, newType); err != nil {
		return err
	}

	kids, err := s.store.ListChildren(ctx, &existing.ID)
	if err != nil {
		return err
	}
	if len(kids) > 0 {
		return fmt.Errorf("cannot change type of %d with children: %w", existing.ID, ErrInvalidType)
	}
	return nil
}

// Move re-parents id under parentID (nil moves it to the root level).
func (s *Service) Move(ctx context.Context, id int64, parentID *int64) (*models.Node, error) {
	existing, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sameParent(existing.ParentID, parentID) {
		return existing, nil
	}

	moved, err := s.move(ctx, existing, parentID, nil)
	if err != nil {
		return nil, err
	}

	s.Invalidate(ctx, id)
	return moved, nil
}

// move checks that parentID is not the node itself or one of its
// descendants, then delegates to the store. newType overrides the node's
// type for the type check when a retype accompanies the move.
func (s *Service) move(ctx context.Context, node *models.Node, parentID *int64, newType *models.LocationType) (*models.Node, error) {
	var parent *models.Node
	if parentID != nil {
		if *parentID == node.ID {
			return nil, fmt.Errorf("move %d under itself: %w", node.ID, ErrCycle)
		}
		chain, err := s.walkAncestors(ctx, *parentID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, fmt.Errorf("parent %d: %w", *parentID, err)
			}
			return nil, err
		}
		for _, a := range chain {
			if a.ID == node.ID {
				return nil, fmt.Errorf("move %d under descendant %d: %w", node.ID, *parentID, ErrCycle)
			}
		}
		parent = &chain[len(chain)-1]
	}

	t := node.Type
	if newType != nil {
		t = *newType
	}
	if err := s.checkType(parent, t); err != nil {
		return nil, err
	}

	return s.store.Move(ctx, node.ID, parentID)
}

// Delete removes a leaf node. Nodes with children are rejected with
// ErrHasChildren; callers must move or delete the children first.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.store.GetByID(ctx, id); err != nil {
		return err
	}

	kids, err := s.store.ListChildren(ctx, &id)
	if err != nil {
		return err
	}
	if len(kids) > 0 {
		return fmt.Errorf("delete %d: %w", id, ErrHasChildren)
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	s.Invalidate(ctx, id)
	return nil
}

// Reorder rewrites sort order and parents for a batch of nodes, as produced
// by a drag-and-drop tree editor. The resulting shape is validated in memory
// before anything is written.
func (s *Service) Reorder(ctx context.Context, items []models.ReorderItem) error {
	if len(items) == 0 {
		return nil
	}

	flat, err := s.store.ListAll(ctx)
	if err != nil {
		return err
	}

	byID := make(map[int64]int, len(flat))
	for i, n := range flat {
		byID[n.ID] = i
	}
	for _, item := range items {
		i, ok := byID[item.ID]
		if !ok {
			return fmt.Errorf("reorder %d: %w", item.ID, ErrNotFound)
		}
		if item.ParentID != nil {
			if _, ok := byID[*item.ParentID]; !ok {
				return fmt.Errorf("reorder parent %d: %w", *item.ParentID, ErrNotFound)
			}
		}
		flat[i].ParentID = item.ParentID
		flat[i].SortOrder = item.Order
	}

	if _, unreachable := BuildTree(flat); unreachable > 0 {
		return fmt.Errorf("reorder: %w", ErrCycle)
	}
	if s.typed {
		for _, n := range flat {
			var parent *models.Node
			if n.ParentID != nil {
				parent = &flat[byID[*n.ParentID]]
			}
			if err := s.checkType(parent, n.Type); err != nil {
				return fmt.Errorf("reorder %d: %w", n.ID, err)
			}
		}
	}

	if err := s.store.Reorder(ctx, items); err != nil {
		return err
	}

	s.Invalidate(ctx, items[0].ID)
	return nil
}

// Invalidate drops every cached view after a mutation touching nodeID and
// tells other processes to do the same. Paths through the node cannot be
// found without a reverse index, so the whole cache goes.
func (s *Service) Invalidate(ctx context.Context, nodeID int64) {
	s.cache.Clear()
	slog.Debug("taxonomy cache invalidated", "domain", s.domain, "node_id", nodeID)

	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, s.domain); err != nil {
		slog.Warn("taxonomy invalidation publish failed",
			"domain", s.domain,
			"node_id", nodeID,
			"error", err,
		)
	}
}

// ClearCache drops the local cache without notifying other processes.
func (s *Service) ClearCache() {
	s.cache.Clear()
}

// checkType enforces location levels. It is a no-op for untyped domains.
func (s *Service) checkType(parent *models.Node, t models.LocationType) error {
	if !s.typed {
		return nil
	}
	if !t.Valid() {
		return fmt.Errorf("unknown location type %q: %w", t, ErrInvalidType)
	}
	if parent == nil {
		if t != models.RootLocationType() {
			return fmt.Errorf("root location must be %q, got %q: %w", models.RootLocationType(), t, ErrInvalidType)
		}
		return nil
	}
	next, ok := parent.Type.Next()
	if !ok {
		return fmt.Errorf("%q locations cannot have children: %w", parent.Type, ErrInvalidType)
	}
	if t != next {
		return fmt.Errorf("child of %q must be %q, got %q: %w", parent.Type, next, t, ErrInvalidType)
	}
	return nil
}

func sameParent(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
