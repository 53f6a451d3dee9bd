package contract

import (
	"context"
	"sync"
	"time"

	"github.com/talentora/talentora/internal/money"
)

// MemoryStore is an in-memory contract store for demo/development mode.
type MemoryStore struct {
	contracts map[string]*Contract
	mu        sync.RWMutex
}

// NewMemoryStore creates a new in-memory contract store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{contracts: make(map[string]*Contract)}
}

func (m *MemoryStore) Create(ctx context.Context, c *Contract) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := cloneContract(c)
	if cp.TotalFunded == "" {
		cp.TotalFunded = "0.00"
	}
	if cp.Balance == "" {
		cp.Balance = "0.00"
	}
	now := time.Now()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	m.contracts[cp.ID] = cp
	return nil
}

func (m *MemoryStore) FindByID(ctx context.Context, id string) (*Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.contracts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneContract(c), nil
}

func (m *MemoryStore) ApplyFunding(ctx context.Context, id, amount string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.contracts[id]
	if !ok {
		return ErrNotFound
	}
	c.TotalFunded = money.Add(c.TotalFunded, amount)
	c.Balance = money.Add(c.Balance, amount)
	c.Funded = true
	c.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) DebitBalance(ctx context.Context, id, amount string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.contracts[id]
	if !ok {
		return ErrNotFound
	}
	c.Balance = money.Sub(c.Balance, amount)
	c.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) UpdateStatus(ctx context.Context, id string, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.contracts[id]
	if !ok {
		return ErrNotFound
	}
	c.Status = status
	c.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) UpdateMilestoneStatus(ctx context.Context, contractID, milestoneID string, status MilestoneStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.contracts[contractID]
	if !ok {
		return ErrNotFound
	}
	ms := c.MilestoneByID(milestoneID)
	if ms == nil {
		return ErrMilestoneNotFound
	}
	ms.Status = status
	c.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) UpdateMilestoneFundedAmount(ctx context.Context, contractID, milestoneID, amount string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.contracts[contractID]
	if !ok {
		return ErrNotFound
	}
	ms := c.MilestoneByID(milestoneID)
	if ms == nil {
		return ErrMilestoneNotFound
	}
	ms.FundedAmount = money.Add(ms.FundedAmount, amount)
	if ms.Status == MilestonePending {
		ms.Status = MilestoneFunded
	}
	c.UpdatedAt = time.Now()
	return nil
}

func cloneContract(c *Contract) *Contract {
	cp := *c
	cp.Milestones = make([]Milestone, len(c.Milestones))
	copy(cp.Milestones, c.Milestones)
	return &cp
}
