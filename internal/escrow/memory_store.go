package escrow

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]*Escrow
	ordered []string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]*Escrow)}
}

func clone(e *Escrow) *Escrow {
	c := *e
	return &c
}

func (s *MemoryStore) Create(ctx context.Context, esc *Escrow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[esc.ID] = clone(esc)
	s.ordered = append(s.ordered, esc.ID)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Escrow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[id]
	if !ok {
		return nil, ErrEscrowNotFound
	}
	return clone(e), nil
}

func (s *MemoryStore) FindHeldByMilestone(ctx context.Context, contractID, milestoneID string) (*Escrow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.ordered {
		e := s.byID[id]
		if e.ContractID == contractID && e.MilestoneID == milestoneID && e.Status == StatusHeld {
			return clone(e), nil
		}
	}
	return nil, ErrEscrowNotFound
}

func (s *MemoryStore) Resolve(ctx context.Context, id string, to Status, at time.Time) (*Escrow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[id]
	if !ok {
		return nil, ErrEscrowNotFound
	}
	if e.Status != StatusHeld {
		return nil, ErrAlreadyResolved
	}
	e.Status = to
	e.UpdatedAt = at
	switch to {
	case StatusReleased:
		e.ReleasedAt = &at
	case StatusRefunded:
		e.RefundedAt = &at
	}
	return clone(e), nil
}

func (s *MemoryStore) ListByContract(ctx context.Context, contractID string, limit int) ([]*Escrow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Escrow
	for i := len(s.ordered) - 1; i >= 0 && len(out) < limit; i-- {
		e := s.byID[s.ordered[i]]
		if e.ContractID == contractID {
			out = append(out, clone(e))
		}
	}
	return out, nil
}
