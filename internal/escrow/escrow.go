// Package escrow tracks per-milestone funding holds.
//
// Escrow records predate the unified ledger and still back milestone-funded
// contracts: each funded milestone gets one record that is held, then
// released to the freelancer or refunded to the client, exactly once. The
// money movement itself is recorded in the ledger; an escrow record is the
// milestone-level view of the same hold.
package escrow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/talentora/talentora/internal/idgen"
	"github.com/talentora/talentora/internal/money"
)

var (
	ErrEscrowNotFound  = errors.New("escrow not found")
	ErrAlreadyResolved = errors.New("escrow already resolved")
	ErrInvalidAmount   = errors.New("invalid amount")
)

// Status represents the state of an escrow record.
type Status string

const (
	StatusHeld     Status = "held"     // Funds locked against a milestone
	StatusReleased Status = "released" // Paid out to the freelancer
	StatusRefunded Status = "refunded" // Returned to the client
)

// Escrow represents one milestone's funding hold.
type Escrow struct {
	ID           string     `json:"id"`
	ContractID   string     `json:"contractId"`
	PaymentID    string     `json:"paymentId,omitempty"`
	MilestoneID  string     `json:"milestoneId"`
	ClientID     string     `json:"clientId"`
	FreelancerID string     `json:"freelancerId"`
	Amount       string     `json:"amount"`
	Status       Status     `json:"status"`
	HeldAt       time.Time  `json:"heldAt"`
	ReleasedAt   *time.Time `json:"releasedAt,omitempty"`
	RefundedAt   *time.Time `json:"refundedAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// IsResolved returns true once the escrow has left held.
func (e *Escrow) IsResolved() bool {
	return e.Status != StatusHeld
}

// Store persists escrow records. Resolve must be a conditional transition:
// it succeeds at most once per record regardless of concurrent callers.
type Store interface {
	Create(ctx context.Context, esc *Escrow) error
	Get(ctx context.Context, id string) (*Escrow, error)
	FindHeldByMilestone(ctx context.Context, contractID, milestoneID string) (*Escrow, error)
	Resolve(ctx context.Context, id string, to Status, at time.Time) (*Escrow, error)
	ListByContract(ctx context.Context, contractID string, limit int) ([]*Escrow, error)
}

// HoldRequest contains the parameters for creating an escrow hold.
type HoldRequest struct {
	ContractID   string `json:"contractId" binding:"required"`
	PaymentID    string `json:"paymentId"`
	MilestoneID  string `json:"milestoneId" binding:"required"`
	ClientID     string `json:"clientId" binding:"required"`
	FreelancerID string `json:"freelancerId" binding:"required"`
	Amount       string `json:"amount" binding:"required"`
}

// Service implements escrow business logic.
type Service struct {
	store Store
	locks sync.Map // per-escrow ID locks to prevent racing transitions
}

// NewService creates a new escrow service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) escrowLock(id string) *sync.Mutex {
	v, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// Hold creates a held escrow record for a funded milestone.
func (s *Service) Hold(ctx context.Context, req HoldRequest) (*Escrow, error) {
	if !money.IsPositive(req.Amount) {
		return nil, ErrInvalidAmount
	}
	now := time.Now().UTC()
	esc := &Escrow{
		ID:           idgen.WithPrefix(idgen.PrefixEscrow),
		ContractID:   req.ContractID,
		PaymentID:    req.PaymentID,
		MilestoneID:  req.MilestoneID,
		ClientID:     req.ClientID,
		FreelancerID: req.FreelancerID,
		Amount:       req.Amount,
		Status:       StatusHeld,
		HeldAt:       now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, esc); err != nil {
		return nil, err
	}
	return esc, nil
}

// Release resolves the escrow to the freelancer.
func (s *Service) Release(ctx context.Context, id string) (*Escrow, error) {
	mu := s.escrowLock(id)
	mu.Lock()
	defer mu.Unlock()
	return s.store.Resolve(ctx, id, StatusReleased, time.Now().UTC())
}

// Refund resolves the escrow back to the client.
func (s *Service) Refund(ctx context.Context, id string) (*Escrow, error) {
	mu := s.escrowLock(id)
	mu.Lock()
	defer mu.Unlock()
	return s.store.Resolve(ctx, id, StatusRefunded, time.Now().UTC())
}

// Get returns an escrow by ID.
func (s *Service) Get(ctx context.Context, id string) (*Escrow, error) {
	return s.store.Get(ctx, id)
}

// FindHeldByMilestone locates the open escrow for a milestone, if any.
func (s *Service) FindHeldByMilestone(ctx context.Context, contractID, milestoneID string) (*Escrow, error) {
	return s.store.FindHeldByMilestone(ctx, contractID, milestoneID)
}

// ListByContract returns escrow records for a contract.
func (s *Service) ListByContract(ctx context.Context, contractID string, limit int) ([]*Escrow, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.ListByContract(ctx, contractID, limit)
}
