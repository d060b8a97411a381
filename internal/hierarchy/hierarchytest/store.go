// Package hierarchytest provides an in-memory hierarchy.Store for tests of
// packages that sit above the service layer.
package hierarchytest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"classifieds/internal/hierarchy"
	"classifieds/internal/models"
	"classifieds/internal/slug"
)

// Store is a goroutine-safe in-memory hierarchy.Store. It mimics the
// database store: ids are assigned on create, a nil sort order appends,
// and moves append after the new siblings.
type Store struct {
	mu     sync.Mutex
	nodes  map[int64]models.Node
	nextID int64
	err    error
}

var _ hierarchy.Store = (*Store)(nil)

// NewStore returns a store preloaded with nodes.
func NewStore(nodes ...models.Node) *Store {
	s := &Store{nodes: make(map[int64]models.Node)}
	for _, n := range nodes {
		s.Put(n)
	}
	return s
}

// Put writes n as-is, bypassing every check.
func (s *Store) Put(n models.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.Slug == "" {
		n.Slug = slug.Generate(n.Name)
	}
	s.nodes[n.ID] = n
	if n.ID > s.nextID {
		s.nextID = n.ID
	}
}

// FailWith makes every subsequent call return err. Pass nil to recover.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Len returns the number of stored nodes.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.nodes)
}

func (s *Store) ListAll(_ context.Context) ([]models.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make([]models.Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, n)
	}
	return out, nil
}

func (s *Store) ListChildren(_ context.Context, parentID *int64) ([]models.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.children(parentID), nil
}

func (s *Store) children(parentID *int64) []models.Node {
	var out []models.Node
	for _, n := range s.nodes {
		if sameID(n.ParentID, parentID) {
			out = append(out, n)
		}
	}
	hierarchy.SortSiblings(out)
	return out
}

func (s *Store) GetByID(_ context.Context, id int64) (*models.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	n, ok := s.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node %d: %w", id, hierarchy.ErrNotFound)
	}
	return &n, nil
}

func (s *Store) Create(_ context.Context, in models.NodeInput) (*models.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if in.ParentID != nil {
		if _, ok := s.nodes[*in.ParentID]; !ok {
			return nil, fmt.Errorf("parent %d: %w", *in.ParentID, hierarchy.ErrNotFound)
		}
	}

	order := s.nextOrder(in.ParentID, 0)
	if in.SortOrder != nil {
		order = *in.SortOrder
	}

	s.nextID++
	now := time.Now()
	n := models.Node{
		ID:        s.nextID,
		ParentID:  in.ParentID,
		Name:      in.Name,
		Slug:      slug.Generate(in.Name),
		SortOrder: order,
		IsActive:  in.IsActive,
		Type:      in.Type,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.nodes[n.ID] = n
	return &n, nil
}

func (s *Store) Update(_ context.Context, id int64, p models.NodePatch) (*models.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	n, ok := s.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node %d: %w", id, hierarchy.ErrNotFound)
	}
	if p.Name != nil {
		n.Name = *p.Name
		n.Slug = slug.Generate(*p.Name)
	}
	if p.SortOrder != nil {
		n.SortOrder = *p.SortOrder
	}
	if p.IsActive != nil {
		n.IsActive = *p.IsActive
	}
	if p.Type != nil {
		n.Type = *p.Type
	}
	n.UpdatedAt = time.Now()
	s.nodes[id] = n
	return &n, nil
}

func (s *Store) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if _, ok := s.nodes[id]; !ok {
		return fmt.Errorf("node %d: %w", id, hierarchy.ErrNotFound)
	}
	if len(s.children(&id)) > 0 {
		return fmt.Errorf("node %d: %w", id, hierarchy.ErrHasChildren)
	}
	delete(s.nodes, id)
	return nil
}

func (s *Store) Move(_ context.Context, id int64, parentID *int64) (*models.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	n, ok := s.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node %d: %w", id, hierarchy.ErrNotFound)
	}
	if parentID != nil {
		if _, ok := s.nodes[*parentID]; !ok {
			return nil, fmt.Errorf("parent %d: %w", *parentID, hierarchy.ErrNotFound)
		}
	}
	n.SortOrder = s.nextOrder(parentID, id)
	n.ParentID = parentID
	n.UpdatedAt = time.Now()
	s.nodes[id] = n
	return &n, nil
}

// Reorder is all-or-nothing, like the transactional database version.
func (s *Store) Reorder(_ context.Context, items []models.ReorderItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	for _, it := range items {
		if _, ok := s.nodes[it.ID]; !ok {
			return fmt.Errorf("node %d: %w", it.ID, hierarchy.ErrNotFound)
		}
	}
	for _, it := range items {
		n := s.nodes[it.ID]
		n.ParentID = it.ParentID
		n.SortOrder = it.Order
		s.nodes[it.ID] = n
	}
	return nil
}

// nextOrder returns one past the highest sort order under parentID,
// ignoring the node skip.
func (s *Store) nextOrder(parentID *int64, skip int64) int {
	next := 0
	for _, n := range s.children(parentID) {
		if n.ID != skip && n.SortOrder >= next {
			next = n.SortOrder + 1
		}
	}
	return next
}

func sameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
