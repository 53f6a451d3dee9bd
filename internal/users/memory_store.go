package users

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory user store for demo/development mode.
type MemoryStore struct {
	users map[string]*User
	mu    sync.RWMutex
}

// NewMemoryStore creates a new in-memory user store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]*User)}
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	if u.Bank != nil {
		bank := *u.Bank
		cp.Bank = &bank
	}
	return &cp, nil
}

func (m *MemoryStore) Upsert(ctx context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *u
	if u.Bank != nil {
		bank := *u.Bank
		cp.Bank = &bank
	}
	if cp.WalletBalance == "" {
		cp.WalletBalance = "0.00"
	}
	cp.UpdatedAt = time.Now()
	m.users[cp.ID] = &cp
	return nil
}

func (m *MemoryStore) SetBankDetails(ctx context.Context, id string, bank BankDetails) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	b := bank
	u.Bank = &b
	u.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) UpdateWalletMirror(ctx context.Context, id, balance string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.WalletBalance = balance
	u.UpdatedAt = time.Now()
	return nil
}
