package todo

import (
	"context"
	"sync"
)

// MemStore is an in-process append-only Store. Items are held in insertion
// order with a per-owner index so reads do not scan the whole log. Contents
// do not survive a process restart.
type MemStore struct {
	mu      sync.RWMutex
	items   []Item
	byOwner map[string][]int
}

var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{byOwner: make(map[string][]int)}
}

func (s *MemStore) Append(_ context.Context, item Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byOwner[item.Owner] = append(s.byOwner[item.Owner], len(s.items))
	s.items = append(s.items, item)
	return nil
}

// ListByOwner returns a snapshot of the owner's items in insertion order.
// The returned slice is a copy; callers may retain it freely.
func (s *MemStore) ListByOwner(_ context.Context, owner string) ([]Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.byOwner[owner]
	out := make([]Item, 0, len(idx))
	for _, i := range idx {
		out = append(out, s.items[i])
	}
	return out, nil
}

// Len reports the total number of items across all owners.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
