// Package worklog holds the hourly worklog collaborator consumed by the
// auto-settlement job and the cancellation policies.
package worklog

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound       = errors.New("worklog not found")
	ErrAlreadyClaimed = errors.New("worklog already claimed for settlement")
	ErrNotPending     = errors.New("worklog is no longer pending")
)

// Status is the worklog lifecycle state.
type Status string

const (
	StatusPending  Status = "pending"  // Submitted, awaiting client review
	StatusApproved Status = "approved" // Approved, eligible for auto-pay after dispute window
	StatusRejected Status = "rejected" // Rejected by client
	StatusDisputed Status = "disputed" // Freelancer contested a rejection
	// StatusProcessing is the claim state: one auto-settlement run owns the
	// worklog while its unit of work executes. Prevents double-settlement
	// when runs overlap.
	StatusProcessing Status = "processing"
	StatusPaid       Status = "paid"
)

// Worklog is one unit of tracked hourly work.
type Worklog struct {
	ID                  string     `json:"id"`
	ContractID          string     `json:"contractId"`
	ClientID            string     `json:"clientId"`
	FreelancerID        string     `json:"freelancerId"`
	Description         string     `json:"description,omitempty"`
	DurationMinutes     int64      `json:"durationMinutes"`
	Status              Status     `json:"status"`
	DisputeWindowEndsAt *time.Time `json:"disputeWindowEndsAt,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// Counts summarizes a contract's worklogs per status. Cancellation policy
// only needs to know whether work exists, not what it says.
type Counts struct {
	Pending  int
	Approved int
	Paid     int
	Rejected int
	Disputed int
}

// Any reports whether any work product exists at all.
func (c Counts) Any() bool {
	return c.Pending+c.Approved+c.Paid+c.Rejected+c.Disputed > 0
}

// Store persists worklogs.
type Store interface {
	Create(ctx context.Context, w *Worklog) error
	GetByID(ctx context.Context, id string) (*Worklog, error)
	// ListForAutoPay returns approved worklogs whose dispute window has
	// passed, oldest first.
	ListForAutoPay(ctx context.Context, before time.Time, limit int) ([]*Worklog, error)
	// Claim atomically flips approved -> processing. Returns
	// ErrAlreadyClaimed when the worklog is not in approved state, which
	// means another run owns it (or it was already settled).
	Claim(ctx context.Context, id string) error
	// ReleaseClaim flips processing -> approved after a failed settlement
	// unit so a later sweep retries it.
	ReleaseClaim(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, id string, status Status) error
	UpdateDisputeWindowEnd(ctx context.Context, id string, endsAt time.Time) error
	CountByContract(ctx context.Context, contractID string) (Counts, error)
}
