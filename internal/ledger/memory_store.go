package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/talentora/talentora/internal/money"
	"github.com/talentora/talentora/internal/pagination"
)

// MemoryStore is an in-memory Store for development and tests.
type MemoryStore struct {
	mu                sync.RWMutex
	entries           []*Entry
	byID              map[string]*Entry
	clientWallets     map[string]*ClientWallet
	freelancerWallets map[string]*FreelancerWallet
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:              make(map[string]*Entry),
		clientWallets:     make(map[string]*ClientWallet),
		freelancerWallets: make(map[string]*FreelancerWallet),
	}
}

func cloneEntry(e *Entry) *Entry {
	c := *e
	if e.Metadata != nil {
		c.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

func (s *MemoryStore) appendLocked(e *Entry) {
	c := cloneEntry(e)
	s.entries = append(s.entries, c)
	s.byID[c.ID] = c
}

// balanceLocked computes the contract aggregate in one pass over entries.
func (s *MemoryStore) balanceLocked(contractID string) *ContractBalance {
	b := &ContractBalance{
		ContractID: contractID,
		Funding:    "0.00", ActiveHolds: "0.00", Released: "0.00",
		Refunded: "0.00", Commission: "0.00", ReturnedToContract: "0.00",
	}
	for _, e := range s.entries {
		if e.ContractID != contractID {
			continue
		}
		switch e.Purpose {
		case PurposeFunding:
			b.Funding = money.Add(b.Funding, e.Amount)
		case PurposeRelease:
			b.Released = money.Add(b.Released, e.Amount)
		case PurposeRefund:
			b.Refunded = money.Add(b.Refunded, e.Amount)
		case PurposeCommission:
			b.Commission = money.Add(b.Commission, e.Amount)
		case PurposeHold:
			switch e.Status {
			case StatusActiveHold, StatusFrozenDispute:
				b.ActiveHolds = money.Add(b.ActiveHolds, e.Amount)
			case StatusReleasedBackToContract:
				b.ReturnedToContract = money.Add(b.ReturnedToContract, e.Amount)
			}
		}
	}
	avail := b.Funding
	for _, sub := range []string{b.ActiveHolds, b.Released, b.Refunded, b.Commission, b.ReturnedToContract} {
		avail = money.Sub(avail, sub)
	}
	b.Available = avail
	return b
}

func (s *MemoryStore) ensureClientLocked(ownerID string) *ClientWallet {
	w, ok := s.clientWallets[ownerID]
	if !ok {
		w = &ClientWallet{OwnerID: ownerID, Balance: "0.00", TotalFunded: "0.00", TotalRefunded: "0.00"}
		s.clientWallets[ownerID] = w
	}
	return w
}

func (s *MemoryStore) ensureFreelancerLocked(ownerID string) *FreelancerWallet {
	w, ok := s.freelancerWallets[ownerID]
	if !ok {
		w = &FreelancerWallet{
			OwnerID: ownerID,
			Balance: "0.00", TotalEarned: "0.00", TotalWithdrawn: "0.00", TotalCommissionPaid: "0.00",
		}
		s.freelancerWallets[ownerID] = w
	}
	return w
}

func (s *MemoryStore) Record(ctx context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(e)
	return nil
}

func (s *MemoryStore) RecordFunding(ctx context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(e)
	w := s.ensureClientLocked(e.ClientID)
	w.Balance = money.Add(w.Balance, e.Amount)
	w.TotalFunded = money.Add(w.TotalFunded, e.Amount)
	w.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) RecordHold(ctx context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.balanceLocked(e.ContractID)
	if money.Cmp(e.Amount, b.Available) > 0 {
		return ErrNegativeBalance
	}
	s.appendLocked(e)
	return nil
}

func (s *MemoryStore) RecordRefund(ctx context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.balanceLocked(e.ContractID)
	if money.Cmp(e.Amount, b.Available) > 0 {
		return ErrNegativeBalance
	}
	s.appendLocked(e)
	w := s.ensureClientLocked(e.ClientID)
	w.TotalRefunded = money.Add(w.TotalRefunded, e.Amount)
	w.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) GetEntry(ctx context.Context, id string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[id]
	if !ok {
		return nil, ErrEntryNotFound
	}
	return cloneEntry(e), nil
}

func (s *MemoryStore) ContractBalance(ctx context.Context, contractID string) (*ContractBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balanceLocked(contractID), nil
}

func (s *MemoryStore) EntriesByContract(ctx context.Context, contractID string, limit int) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Entry
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if s.entries[i].ContractID == contractID {
			out = append(out, cloneEntry(s.entries[i]))
		}
	}
	return out, nil
}

func (s *MemoryStore) OwnerEntries(ctx context.Context, ownerID string, role Role) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Entry
	for _, e := range s.entries {
		if e.Purpose == PurposeWithdrawal && e.Role != role {
			continue
		}
		if role == RoleClient && e.ClientID == ownerID {
			out = append(out, cloneEntry(e))
		} else if role == RoleFreelancer && e.FreelancerID == ownerID {
			out = append(out, cloneEntry(e))
		}
	}
	return out, nil
}

func (s *MemoryStore) FindOpenHold(ctx context.Context, contractID string, ref HoldRef) (*Entry, error) {
	if ref.WorklogID == "" && ref.MilestoneID == "" {
		return nil, ErrHoldNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.ContractID != contractID || e.Purpose != PurposeHold {
			continue
		}
		if e.Status != StatusActiveHold && e.Status != StatusFrozenDispute {
			continue
		}
		if ref.WorklogID != "" && e.WorklogID != ref.WorklogID {
			continue
		}
		if ref.MilestoneID != "" && e.MilestoneID != ref.MilestoneID {
			continue
		}
		return cloneEntry(e), nil
	}
	return nil, ErrHoldNotFound
}

// holdForTransitionLocked fetches a hold still eligible for its single
// status transition.
func (s *MemoryStore) holdForTransitionLocked(holdID string) (*Entry, error) {
	e, ok := s.byID[holdID]
	if !ok || e.Purpose != PurposeHold {
		return nil, ErrHoldNotFound
	}
	if e.Status != StatusActiveHold && e.Status != StatusFrozenDispute {
		return nil, ErrHoldAlreadyResolved
	}
	return e, nil
}

func (s *MemoryStore) FreezeHold(ctx context.Context, holdID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[holdID]
	if !ok || e.Purpose != PurposeHold {
		return ErrHoldNotFound
	}
	if e.Status != StatusActiveHold {
		return ErrHoldAlreadyResolved
	}
	e.Status = StatusFrozenDispute
	return nil
}

func (s *MemoryStore) SettleHold(ctx context.Context, holdID string, release, commission *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	hold, err := s.holdForTransitionLocked(holdID)
	if err != nil {
		return err
	}
	hold.Status = StatusReleasedToFreelancer
	s.appendLocked(release)
	s.appendLocked(commission)

	gross := money.Add(release.Amount, commission.Amount)
	cw := s.ensureClientLocked(release.ClientID)
	cw.Balance = money.Sub(cw.Balance, gross)
	cw.UpdatedAt = time.Now().UTC()

	fw := s.ensureFreelancerLocked(release.FreelancerID)
	fw.Balance = money.Add(fw.Balance, release.Amount)
	fw.TotalEarned = money.Add(fw.TotalEarned, gross)
	fw.TotalCommissionPaid = money.Add(fw.TotalCommissionPaid, commission.Amount)
	fw.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) RefundHold(ctx context.Context, holdID string, refund *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	hold, err := s.holdForTransitionLocked(holdID)
	if err != nil {
		return err
	}
	hold.Status = StatusRefundedBackToClient
	s.appendLocked(refund)
	w := s.ensureClientLocked(refund.ClientID)
	w.TotalRefunded = money.Add(w.TotalRefunded, refund.Amount)
	w.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) ReturnHoldToContract(ctx context.Context, holdID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	hold, err := s.holdForTransitionLocked(holdID)
	if err != nil {
		return err
	}
	hold.Status = StatusReleasedBackToContract
	return nil
}

func (s *MemoryStore) SplitHold(ctx context.Context, holdID string, refund, release *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	hold, err := s.holdForTransitionLocked(holdID)
	if err != nil {
		return err
	}
	hold.Status = StatusAmountSplit
	s.appendLocked(refund)
	s.appendLocked(release)

	cw := s.ensureClientLocked(refund.ClientID)
	cw.Balance = money.Sub(cw.Balance, release.Amount)
	cw.TotalRefunded = money.Add(cw.TotalRefunded, refund.Amount)
	cw.UpdatedAt = time.Now().UTC()

	fw := s.ensureFreelancerLocked(release.FreelancerID)
	fw.Balance = money.Add(fw.Balance, release.Amount)
	fw.TotalEarned = money.Add(fw.TotalEarned, release.Amount)
	fw.UpdatedAt = time.Now().UTC()
	return nil
}

// availableForWithdrawalLocked sums releases (freelancer) or refunds
// (client) minus requested and approved withdrawals.
func (s *MemoryStore) availableForWithdrawalLocked(ownerID string, role Role) string {
	earned := "0.00"
	withdrawn := "0.00"
	for _, e := range s.entries {
		switch {
		case role == RoleFreelancer && e.Purpose == PurposeRelease && e.FreelancerID == ownerID:
			earned = money.Add(earned, e.Amount)
		case role == RoleClient && e.Purpose == PurposeRefund && e.ClientID == ownerID:
			earned = money.Add(earned, e.Amount)
		case e.Purpose == PurposeWithdrawal && e.Role == role:
			owner := e.FreelancerID
			if role == RoleClient {
				owner = e.ClientID
			}
			if owner != ownerID {
				continue
			}
			if e.Status == StatusWithdrawalRequested || e.Status == StatusWithdrawalApproved {
				withdrawn = money.Add(withdrawn, e.Amount)
			}
		}
	}
	return money.Sub(earned, withdrawn)
}

func (s *MemoryStore) AvailableForWithdrawal(ctx context.Context, ownerID string, role Role) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.availableForWithdrawalLocked(ownerID, role), nil
}

func (s *MemoryStore) RequestWithdrawal(ctx context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	owner := e.FreelancerID
	if e.Role == RoleClient {
		owner = e.ClientID
	}
	available := s.availableForWithdrawalLocked(owner, e.Role)
	if money.Cmp(e.Amount, available) > 0 {
		return ErrNegativeBalance
	}
	s.appendLocked(e)
	return nil
}

func (s *MemoryStore) ResolveWithdrawal(ctx context.Context, entryID string, approve bool) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[entryID]
	if !ok || e.Purpose != PurposeWithdrawal {
		return nil, ErrWithdrawalNotFound
	}
	if e.Status != StatusWithdrawalRequested {
		return nil, ErrWithdrawalResolved
	}
	if !approve {
		e.Status = StatusWithdrawalRejected
		return cloneEntry(e), nil
	}
	e.Status = StatusWithdrawalApproved
	if e.Role == RoleClient {
		w := s.ensureClientLocked(e.ClientID)
		w.Balance = money.Sub(w.Balance, e.Amount)
		w.UpdatedAt = time.Now().UTC()
	} else {
		w := s.ensureFreelancerLocked(e.FreelancerID)
		w.Balance = money.Sub(w.Balance, e.Amount)
		w.TotalWithdrawn = money.Add(w.TotalWithdrawn, e.Amount)
		w.UpdatedAt = time.Now().UTC()
	}
	return cloneEntry(e), nil
}

func (s *MemoryStore) GetWithdrawal(ctx context.Context, entryID string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[entryID]
	if !ok || e.Purpose != PurposeWithdrawal {
		return nil, ErrWithdrawalNotFound
	}
	return cloneEntry(e), nil
}

func (s *MemoryStore) ListWithdrawals(ctx context.Context, ownerID string, role Role, cursor *pagination.Cursor, limit int) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Entry
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit+1; i-- {
		e := s.entries[i]
		if e.Purpose != PurposeWithdrawal || e.Role != role {
			continue
		}
		owner := e.FreelancerID
		if role == RoleClient {
			owner = e.ClientID
		}
		if owner != ownerID {
			continue
		}
		if cursor != nil {
			if e.CreatedAt.After(cursor.CreatedAt) {
				continue
			}
			if e.CreatedAt.Equal(cursor.CreatedAt) && e.ID >= cursor.ID {
				continue
			}
		}
		out = append(out, cloneEntry(e))
	}
	return out, nil
}

func (s *MemoryStore) EnsureClientWallet(ctx context.Context, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureClientLocked(ownerID)
	return nil
}

func (s *MemoryStore) EnsureFreelancerWallet(ctx context.Context, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureFreelancerLocked(ownerID)
	return nil
}

func (s *MemoryStore) GetClientWallet(ctx context.Context, ownerID string) (*ClientWallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.clientWallets[ownerID]
	if !ok {
		return &ClientWallet{OwnerID: ownerID, Balance: "0.00", TotalFunded: "0.00", TotalRefunded: "0.00"}, nil
	}
	c := *w
	return &c, nil
}

func (s *MemoryStore) GetFreelancerWallet(ctx context.Context, ownerID string) (*FreelancerWallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.freelancerWallets[ownerID]
	if !ok {
		return &FreelancerWallet{
			OwnerID: ownerID,
			Balance: "0.00", TotalEarned: "0.00", TotalWithdrawn: "0.00", TotalCommissionPaid: "0.00",
		}, nil
	}
	c := *w
	return &c, nil
}
