package catalog

import (
	"context"
	"sort"
	"sync"

	id "medvault/pkg/domain"
	"medvault/pkg/platform/sentinel"
)

// InMemoryStore keeps the catalog in a map. Suitable for tests and for
// deployments where the collaborator feeds items at startup.
type InMemoryStore struct {
	mu    sync.RWMutex
	items map[id.ItemID]*Item
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{items: make(map[id.ItemID]*Item)}
}

func (s *InMemoryStore) Resolve(_ context.Context, itemID id.ItemID) (*Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[itemID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *item
	return &copied, nil
}

func (s *InMemoryStore) List(_ context.Context) ([]*Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Item, 0, len(s.items))
	for _, item := range s.items {
		copied := *item
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (s *InMemoryStore) Add(_ context.Context, item *Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[item.ID]; exists {
		return sentinel.ErrConflict
	}
	copied := *item
	s.items[item.ID] = &copied
	return nil
}
