package store

import (
	"context"
	"fmt"
	"sync"

	"grimm.is/policyctl/internal/rules"
)

// MemoryStore is an in-memory implementation of rules.Store.
type MemoryStore struct {
	collections map[rules.Owner][]rules.Rule
	unsupported map[rules.Owner]bool
	mu          sync.RWMutex
}

var _ rules.Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[rules.Owner][]rules.Rule),
		unsupported: make(map[rules.Owner]bool),
	}
}

// Seed sets an owner's collection without going through the wire form.
func (s *MemoryStore) Seed(owner rules.Owner, rs ...rules.Rule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[owner] = append([]rules.Rule{}, rs...)
}

// MarkUnsupported makes every call for owner fail with ErrNotSupported.
func (s *MemoryStore) MarkUnsupported(owner rules.Owner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsupported[owner] = true
}

func (s *MemoryStore) ListRules(_ context.Context, owner rules.Owner) ([]rules.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.unsupported[owner] {
		return nil, fmt.Errorf("%s: %w", owner, rules.ErrNotSupported)
	}
	return append([]rules.Rule{}, s.collections[owner]...), nil
}

func (s *MemoryStore) ReplaceRules(_ context.Context, owner rules.Owner, wire []rules.WireRule) ([]rules.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unsupported[owner] {
		return nil, fmt.Errorf("%s: %w", owner, rules.ErrNotSupported)
	}
	stored := fromWire(wire)
	s.collections[owner] = stored
	return append([]rules.Rule{}, stored...), nil
}
