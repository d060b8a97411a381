package hierarchy

import (
	"context"
	"errors"
	"sync"

	"classifieds/internal/models"
)

// fakeStore is an in-memory Store that counts calls.
type fakeStore struct {
	mu     sync.Mutex
	nodes  map[int64]models.Node
	nextID int64
	calls  map[string]int
	failOn map[string]error
	// afterListAll runs once ListAll has its snapshot, outside the lock, so
	// a test can hold a read open while writes go through.
	afterListAll func()
}

func newFakeStore(nodes ...models.Node) *fakeStore {
	fs := &fakeStore{
		nodes:  make(map[int64]models.Node),
		calls:  make(map[string]int),
		failOn: make(map[string]error),
	}
	for _, n := range nodes {
		fs.nodes[n.ID] = n
		if n.ID >= fs.nextID {
			fs.nextID = n.ID
		}
	}
	return fs
}

func (f *fakeStore) record(op string) error {
	f.calls[op]++
	return f.failOn[op]
}

func (f *fakeStore) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeStore) ListAll(_ context.Context) ([]models.Node, error) {
	f.mu.Lock()
	if err := f.record("ListAll"); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	out := make([]models.Node, 0, len(f.nodes))
	for _, n := range f.nodes {
		out = append(out, n)
	}
	hook := f.afterListAll
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return out, nil
}

func (f *fakeStore) onListAll(hook func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.afterListAll = hook
}

func (f *fakeStore) ListChildren(_ context.Context, parentID *int64) ([]models.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ListChildren"); err != nil {
		return nil, err
	}
	var out []models.Node
	for _, n := range f.nodes {
		if sameParent(n.ParentID, parentID) {
			out = append(out, n)
		}
	}
	SortSiblings(out)
	return out, nil
}

func (f *fakeStore) GetByID(_ context.Context, id int64) (*models.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("GetByID"); err != nil {
		return nil, err
	}
	n, ok := f.nodes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &n, nil
}

func (f *fakeStore) Create(_ context.Context, in models.NodeInput) (*models.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("Create"); err != nil {
		return nil, err
	}
	f.nextID++
	n := models.Node{
		ID:       f.nextID,
		ParentID: in.ParentID,
		Name:     in.Name,
		IsActive: in.IsActive,
		Type:     in.Type,
	}
	if in.SortOrder != nil {
		n.SortOrder = *in.SortOrder
	}
	f.nodes[n.ID] = n
	return &n, nil
}

func (f *fakeStore) Update(_ context.Context, id int64, p models.NodePatch) (*models.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("Update"); err != nil {
		return nil, err
	}
	n, ok := f.nodes[id]
	if !ok {
		return nil, ErrNotFound
	}
	if p.Name != nil {
		n.Name = *p.Name
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
	f.nodes[id] = n
	return &n, nil
}

func (f *fakeStore) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("Delete"); err != nil {
		return err
	}
	if _, ok := f.nodes[id]; !ok {
		return ErrNotFound
	}
	for _, n := range f.nodes {
		if n.ParentID != nil && *n.ParentID == id {
			return ErrHasChildren
		}
	}
	delete(f.nodes, id)
	return nil
}

func (f *fakeStore) Move(_ context.Context, id int64, parentID *int64) (*models.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("Move"); err != nil {
		return nil, err
	}
	n, ok := f.nodes[id]
	if !ok {
		return nil, ErrNotFound
	}
	n.ParentID = parentID
	f.nodes[id] = n
	return &n, nil
}

func (f *fakeStore) Reorder(_ context.Context, items []models.ReorderItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("Reorder"); err != nil {
		return err
	}
	for _, item := range items {
		n, ok := f.nodes[item.ID]
		if !ok {
			return errors.New("reorder: unknown node")
		}
		n.ParentID = item.ParentID
		n.SortOrder = item.Order
		f.nodes[item.ID] = n
	}
	return nil
}

// put writes a node directly, bypassing the service (simulates another
// writer or data corruption).
func (f *fakeStore) put(n models.Node) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nodes[n.ID] = n
}

type fakeNotifier struct {
	mu      sync.Mutex
	domains []string
	err     error
}

func (n *fakeNotifier) Publish(_ context.Context, domain string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.domains = append(n.domains, domain)
	return n.err
}

func ptr[T any](v T) *T { return &v }

func node(id int64, parent *int64, name string, order int) models.Node {
	return models.Node{ID: id, ParentID: parent, Name: name, SortOrder: order, IsActive: true}
}
