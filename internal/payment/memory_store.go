package payment

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]*Payment
	ordered []string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]*Payment)}
}

func clone(p *Payment) *Payment {
	c := *p
	return &c
}

func (s *MemoryStore) Create(ctx context.Context, p *Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[p.ID] = clone(p)
	s.ordered = append(s.ordered, p.ID)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byID[id]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	return clone(p), nil
}

func (s *MemoryStore) Finalize(ctx context.Context, id string, to Status, payload string) (*FinalizeResult, error) {
	if !to.IsTerminal() {
		return nil, ErrInvalidStatus
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	if p.Status.IsTerminal() {
		return &FinalizeResult{Payment: clone(p), AlreadyTerminal: true}, nil
	}
	now := time.Now().UTC()
	p.Status = to
	p.GatewayPayload = payload
	if to == StatusSuccess {
		p.PaidAt = &now
	} else {
		p.FailureReason = FailureReason(to, payload)
	}
	p.UpdatedAt = now
	return &FinalizeResult{Payment: clone(p)}, nil
}

func (s *MemoryStore) ListByContract(ctx context.Context, contractID string, limit int) ([]*Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Payment
	for i := len(s.ordered) - 1; i >= 0 && len(out) < limit; i-- {
		p := s.byID[s.ordered[i]]
		if p.ContractID == contractID {
			out = append(out, clone(p))
		}
	}
	return out, nil
}
