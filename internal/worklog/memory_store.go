package worklog

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory worklog store for demo/development mode.
type MemoryStore struct {
	worklogs map[string]*Worklog
	mu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory worklog store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{worklogs: make(map[string]*Worklog)}
}

func (m *MemoryStore) Create(ctx context.Context, w *Worklog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *w
	now := time.Now()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	m.worklogs[cp.ID] = &cp
	return nil
}

func (m *MemoryStore) GetByID(ctx context.Context, id string) (*Worklog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	w, ok := m.worklogs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func (m *MemoryStore) ListForAutoPay(ctx context.Context, before time.Time, limit int) ([]*Worklog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Worklog
	for _, w := range m.worklogs {
		if w.Status != StatusApproved {
			continue
		}
		if w.DisputeWindowEndsAt == nil || w.DisputeWindowEndsAt.After(before) {
			continue
		}
		cp := *w
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MemoryStore) Claim(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.worklogs[id]
	if !ok {
		return ErrNotFound
	}
	if w.Status != StatusApproved {
		return ErrAlreadyClaimed
	}
	w.Status = StatusProcessing
	w.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) ReleaseClaim(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.worklogs[id]
	if !ok {
		return ErrNotFound
	}
	if w.Status == StatusProcessing {
		w.Status = StatusApproved
		w.UpdatedAt = time.Now()
	}
	return nil
}

func (m *MemoryStore) UpdateStatus(ctx context.Context, id string, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.worklogs[id]
	if !ok {
		return ErrNotFound
	}
	w.Status = status
	w.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) UpdateDisputeWindowEnd(ctx context.Context, id string, endsAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.worklogs[id]
	if !ok {
		return ErrNotFound
	}
	end := endsAt
	w.DisputeWindowEndsAt = &end
	w.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) CountByContract(ctx context.Context, contractID string) (Counts, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var c Counts
	for _, w := range m.worklogs {
		if w.ContractID != contractID {
			continue
		}
		switch w.Status {
		case StatusPending:
			c.Pending++
		case StatusApproved, StatusProcessing:
			c.Approved++
		case StatusPaid:
			c.Paid++
		case StatusRejected:
			c.Rejected++
		case StatusDisputed:
			c.Disputed++
		}
	}
	return c, nil
}
