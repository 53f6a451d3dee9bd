// Package ledger is the source of truth for all money movement between
// clients and freelancers.
//
// Flow:
//  1. A client funds a contract -> `funding` entry, client wallet credited
//  2. Work is earmarked -> `hold` entry (active_hold)
//  3. Settlement resolves the hold -> `release` + `commission` entries
//  4. Cancellation or dispute resolves it the other way -> `refund` entries
//  5. Users withdraw -> `withdrawal` entries (requested -> approved/rejected)
//
// Entries are append-only. The single permitted mutation is the hold or
// withdrawal status transition, and it happens exactly once per entry.
// Wallets are derived caches updated in the same atomic unit as the entries
// that justify them: on divergence the ledger wins.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/talentora/talentora/internal/idgen"
	"github.com/talentora/talentora/internal/metrics"
	"github.com/talentora/talentora/internal/money"
	"github.com/talentora/talentora/internal/pagination"
)

var (
	ErrEntryNotFound       = errors.New("ledger entry not found")
	ErrHoldNotFound        = errors.New("funding hold not found")
	ErrHoldAlreadyResolved = errors.New("hold already resolved")
	ErrDuplicateHold       = errors.New("an open hold already exists for this unit of work")
	ErrNegativeBalance     = errors.New("operation would make contract balance negative")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrSplitMismatch       = errors.New("split amounts do not add up to hold amount")
	ErrWithdrawalNotFound  = errors.New("withdrawal not found")
	ErrWithdrawalResolved  = errors.New("withdrawal already resolved")
)

// Purpose classifies what a ledger entry records.
type Purpose string

const (
	PurposeFunding    Purpose = "funding"
	PurposeRelease    Purpose = "release"
	PurposeCommission Purpose = "commission"
	PurposeRefund     Purpose = "refund"
	PurposeHold       Purpose = "hold"
	PurposeWithdrawal Purpose = "withdrawal"
)

// Role identifies which party a withdrawal entry debits.
type Role string

const (
	RoleClient     Role = "client"
	RoleFreelancer Role = "freelancer"
)

// EntryStatus is the resolvable state of hold and withdrawal entries.
// Everything else is written as StatusCompleted and never changes.
type EntryStatus string

const (
	StatusActiveHold             EntryStatus = "active_hold"
	StatusFrozenDispute          EntryStatus = "frozen_dispute"
	StatusReleasedToFreelancer   EntryStatus = "released_to_freelancer"
	StatusRefundedBackToClient   EntryStatus = "refunded_back_to_client"
	StatusReleasedBackToContract EntryStatus = "released_back_to_contract"
	StatusAmountSplit            EntryStatus = "amount_split_between_parties"
	StatusWithdrawalRequested    EntryStatus = "withdrawal_requested"
	StatusWithdrawalApproved     EntryStatus = "withdrawal_approved"
	StatusWithdrawalRejected     EntryStatus = "withdrawal_rejected"
	StatusCompleted              EntryStatus = "completed"
)

// Entry represents one immutable money movement.
type Entry struct {
	ID           string            `json:"id"`
	ContractID   string            `json:"contractId"`
	PaymentID    string            `json:"paymentId,omitempty"`
	MilestoneID  string            `json:"milestoneId,omitempty"`
	WorklogID    string            `json:"worklogId,omitempty"`
	ClientID     string            `json:"clientId"`
	FreelancerID string            `json:"freelancerId"`
	Amount       string            `json:"amount"`
	Purpose      Purpose           `json:"purpose"`
	Role         Role              `json:"role,omitempty"` // withdrawal entries only
	Status       EntryStatus       `json:"status"`
	Description  string            `json:"description,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
}

// HoldRef locates the unique open hold for a unit of work. Exactly one of
// the fields is set.
type HoldRef struct {
	WorklogID   string
	MilestoneID string
}

// ContractBalance is the aggregate view of one contract's ledger, computed
// in a single aggregation pass. Available must never be negative.
type ContractBalance struct {
	ContractID         string `json:"contractId"`
	Funding            string `json:"funding"`
	ActiveHolds        string `json:"activeHolds"`
	Released           string `json:"released"`
	Refunded           string `json:"refunded"`
	Commission         string `json:"commission"`
	ReturnedToContract string `json:"returnedToContract"`
	Available          string `json:"available"`
}

// ClientWallet is the derived running balance for a client.
type ClientWallet struct {
	OwnerID       string    `json:"ownerId"`
	Balance       string    `json:"balance"`
	TotalFunded   string    `json:"totalFunded"`
	TotalRefunded string    `json:"totalRefunded"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// FreelancerWallet is the derived running balance for a freelancer.
type FreelancerWallet struct {
	OwnerID             string    `json:"ownerId"`
	Balance             string    `json:"balance"`
	TotalEarned         string    `json:"totalEarned"`
	TotalWithdrawn      string    `json:"totalWithdrawn"`
	TotalCommissionPaid string    `json:"totalCommissionPaid"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// Store persists ledger entries and derived wallets. Every method that both
// writes an entry and mutates a wallet does so in one atomic unit.
type Store interface {
	// Record appends a completed entry with no wallet side effect.
	Record(ctx context.Context, e *Entry) error
	// RecordFunding appends a funding entry and credits the client wallet.
	RecordFunding(ctx context.Context, e *Entry) error
	// RecordHold appends an active_hold entry, failing closed with
	// ErrNegativeBalance when the contract's available balance cannot
	// cover it.
	RecordHold(ctx context.Context, e *Entry) error
	// RecordRefund appends a refund entry, guarded the same way, and bumps
	// the client wallet's lifetime refunded total.
	RecordRefund(ctx context.Context, e *Entry) error

	GetEntry(ctx context.Context, id string) (*Entry, error)
	ContractBalance(ctx context.Context, contractID string) (*ContractBalance, error)
	EntriesByContract(ctx context.Context, contractID string, limit int) ([]*Entry, error)
	OwnerEntries(ctx context.Context, ownerID string, role Role) ([]*Entry, error)

	// FindOpenHold locates the unique unresolved hold for a unit of work.
	FindOpenHold(ctx context.Context, contractID string, ref HoldRef) (*Entry, error)
	// FreezeHold flips active_hold -> frozen_dispute while a dispute runs.
	FreezeHold(ctx context.Context, holdID string) error
	// SettleHold resolves a hold to released_to_freelancer and appends the
	// release/commission pair, debiting the client wallet by the gross and
	// crediting the freelancer wallet by the net.
	SettleHold(ctx context.Context, holdID string, release, commission *Entry) error
	// RefundHold resolves a hold to refunded_back_to_client and appends
	// the refund entry.
	RefundHold(ctx context.Context, holdID string, refund *Entry) error
	// ReturnHoldToContract resolves a hold to released_back_to_contract.
	ReturnHoldToContract(ctx context.Context, holdID string) error
	// SplitHold resolves a hold to amount_split_between_parties, appending
	// a refund entry for the client and a release entry for the
	// freelancer.
	SplitHold(ctx context.Context, holdID string, refund, release *Entry) error

	// AvailableForWithdrawal computes the withdrawable balance from the
	// ledger alone: releases (freelancer) or refunds (client) minus
	// requested and approved withdrawals.
	AvailableForWithdrawal(ctx context.Context, ownerID string, role Role) (string, error)
	// RequestWithdrawal guards against the same aggregate and appends a
	// withdrawal_requested entry in one atomic unit.
	RequestWithdrawal(ctx context.Context, e *Entry) error
	// ResolveWithdrawal transitions withdrawal_requested exactly once to
	// approved or rejected; approval debits the owner's wallet.
	ResolveWithdrawal(ctx context.Context, entryID string, approve bool) (*Entry, error)
	GetWithdrawal(ctx context.Context, entryID string) (*Entry, error)
	// ListWithdrawals returns up to limit+1 withdrawal entries newest
	// first; callers compute the page cursor from the overflow item.
	ListWithdrawals(ctx context.Context, ownerID string, role Role, cursor *pagination.Cursor, limit int) ([]*Entry, error)

	EnsureClientWallet(ctx context.Context, ownerID string) error
	EnsureFreelancerWallet(ctx context.Context, ownerID string) error
	GetClientWallet(ctx context.Context, ownerID string) (*ClientWallet, error)
	GetFreelancerWallet(ctx context.Context, ownerID string) (*FreelancerWallet, error)
}

// Ledger manages the transaction ledger and derived wallets.
type Ledger struct {
	store Store
}

// New creates a new ledger service.
func New(store Store) *Ledger {
	return &Ledger{store: store}
}

// Store exposes the underlying store to the settlement orchestrator, which
// composes it into larger atomic units.
func (l *Ledger) Store() Store { return l.store }

// prepare fills in defaults common to all writes.
func prepare(e *Entry) error {
	if !money.IsPositive(e.Amount) {
		return ErrInvalidAmount
	}
	if e.ID == "" {
		e.ID = idgen.WithPrefix(idgen.PrefixLedger)
	}
	if e.Status == "" {
		e.Status = StatusCompleted
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return nil
}

// Record appends a completed entry.
func (l *Ledger) Record(ctx context.Context, e *Entry) (*Entry, error) {
	if err := prepare(e); err != nil {
		return nil, err
	}
	if err := l.store.Record(ctx, e); err != nil {
		return nil, err
	}
	metrics.LedgerEntriesTotal.WithLabelValues(string(e.Purpose)).Inc()
	return e, nil
}

// RecordHold earmarks contract funds against a unit of work.
func (l *Ledger) RecordHold(ctx context.Context, e *Entry) (*Entry, error) {
	e.Purpose = PurposeHold
	e.Status = StatusActiveHold
	if err := prepare(e); err != nil {
		return nil, err
	}
	if err := l.store.RecordHold(ctx, e); err != nil {
		return nil, err
	}
	metrics.LedgerEntriesTotal.WithLabelValues(string(PurposeHold)).Inc()
	return e, nil
}

// ContractBalance returns the aggregate balance view for a contract.
func (l *Ledger) ContractBalance(ctx context.Context, contractID string) (*ContractBalance, error) {
	return l.store.ContractBalance(ctx, contractID)
}

// History returns recent entries for a contract, newest first.
func (l *Ledger) History(ctx context.Context, contractID string, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	return l.store.EntriesByContract(ctx, contractID, limit)
}

// FindOpenHold locates the unresolved hold for a worklog or milestone.
func (l *Ledger) FindOpenHold(ctx context.Context, contractID string, ref HoldRef) (*Entry, error) {
	return l.store.FindOpenHold(ctx, contractID, ref)
}

// FreezeHold parks a hold while a dispute is resolved by a human.
func (l *Ledger) FreezeHold(ctx context.Context, holdID string) error {
	return l.store.FreezeHold(ctx, holdID)
}

// ResolveHoldSplit splits a disputed hold between the parties. The two
// amounts must sum to the hold amount exactly; no rounding leakage.
func (l *Ledger) ResolveHoldSplit(ctx context.Context, holdID, clientRefund, freelancerRelease string) (refund, release *Entry, err error) {
	hold, err := l.store.GetEntry(ctx, holdID)
	if err != nil {
		return nil, nil, err
	}
	if hold.Purpose != PurposeHold {
		return nil, nil, ErrHoldNotFound
	}
	if !money.IsPositive(clientRefund) || !money.IsPositive(freelancerRelease) {
		return nil, nil, ErrInvalidAmount
	}
	if money.Cmp(money.Add(clientRefund, freelancerRelease), hold.Amount) != 0 {
		return nil, nil, ErrSplitMismatch
	}

	refund = &Entry{
		ContractID:   hold.ContractID,
		PaymentID:    hold.PaymentID,
		WorklogID:    hold.WorklogID,
		MilestoneID:  hold.MilestoneID,
		ClientID:     hold.ClientID,
		FreelancerID: hold.FreelancerID,
		Amount:       clientRefund,
		Purpose:      PurposeRefund,
		Description:  "dispute split: refunded to client",
	}
	release = &Entry{
		ContractID:   hold.ContractID,
		PaymentID:    hold.PaymentID,
		WorklogID:    hold.WorklogID,
		MilestoneID:  hold.MilestoneID,
		ClientID:     hold.ClientID,
		FreelancerID: hold.FreelancerID,
		Amount:       freelancerRelease,
		Purpose:      PurposeRelease,
		Description:  "dispute split: released to freelancer",
	}
	if err := prepare(refund); err != nil {
		return nil, nil, err
	}
	if err := prepare(release); err != nil {
		return nil, nil, err
	}

	if err := l.store.SplitHold(ctx, holdID, refund, release); err != nil {
		return nil, nil, err
	}
	metrics.LedgerEntriesTotal.WithLabelValues(string(PurposeRefund)).Inc()
	metrics.LedgerEntriesTotal.WithLabelValues(string(PurposeRelease)).Inc()
	return refund, release, nil
}

// AvailableForWithdrawal computes the withdrawable balance from the ledger.
func (l *Ledger) AvailableForWithdrawal(ctx context.Context, ownerID string, role Role) (string, error) {
	return l.store.AvailableForWithdrawal(ctx, ownerID, role)
}

// GetClientWallet returns a client's derived wallet.
func (l *Ledger) GetClientWallet(ctx context.Context, ownerID string) (*ClientWallet, error) {
	return l.store.GetClientWallet(ctx, ownerID)
}

// GetFreelancerWallet returns a freelancer's derived wallet.
func (l *Ledger) GetFreelancerWallet(ctx context.Context, ownerID string) (*FreelancerWallet, error) {
	return l.store.GetFreelancerWallet(ctx, ownerID)
}
