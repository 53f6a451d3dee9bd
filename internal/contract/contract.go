// Package contract holds the contract collaborator consumed by the
// settlement engine. Only the surface the settlement flows need is modeled
// here; proposal/job CRUD lives elsewhere.
package contract

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("contract not found")
	ErrMilestoneNotFound = errors.New("milestone not found")
)

// PaymentType determines which funding, settlement, and cancellation rules
// apply to a contract.
type PaymentType string

const (
	PaymentTypeHourly    PaymentType = "hourly"
	PaymentTypeFixed     PaymentType = "fixed"
	PaymentTypeMilestone PaymentType = "milestone"
)

// Status is the contract lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"   // Awaiting funding
	StatusActive    Status = "active"    // Funded, work in progress
	StatusHeld      Status = "held"      // Funded but balance below upcoming weekly cost
	StatusCancelled Status = "cancelled" // Cancelled, dispute pending or not required
	StatusRefunded  Status = "refunded"  // Cancelled with funds returned to client
	StatusDisputed  Status = "disputed"  // Escalated to human dispute resolution
	StatusCompleted Status = "completed"
)

// MilestoneStatus is the per-milestone lifecycle state.
type MilestoneStatus string

const (
	MilestonePending   MilestoneStatus = "pending"
	MilestoneFunded    MilestoneStatus = "funded"
	MilestoneSubmitted MilestoneStatus = "submitted"
	MilestoneApproved  MilestoneStatus = "approved"
	MilestonePaid      MilestoneStatus = "paid"
)

// Milestone is one deliverable unit of a milestone-funded contract.
type Milestone struct {
	ID           string          `json:"id"`
	ContractID   string          `json:"contractId"`
	Title        string          `json:"title"`
	Amount       string          `json:"amount"`
	FundedAmount string          `json:"fundedAmount"`
	Status       MilestoneStatus `json:"status"`
}

// Contract is the settlement-relevant view of a marketplace contract.
type Contract struct {
	ID                   string      `json:"id"`
	ClientID             string      `json:"clientId"`
	FreelancerID         string      `json:"freelancerId"`
	PaymentType          PaymentType `json:"paymentType"`
	Status               Status      `json:"status"`
	Budget               string      `json:"budget,omitempty"`     // fixed contracts
	HourlyRate           string      `json:"hourlyRate,omitempty"` // hourly contracts
	EstimatedWeeklyHours int64       `json:"estimatedWeeklyHours,omitempty"`
	Milestones           []Milestone `json:"milestones,omitempty"`
	Funded               bool        `json:"funded"`
	TotalFunded          string      `json:"totalFunded"`
	Balance              string      `json:"balance"`
	DeliverableCount     int         `json:"deliverableCount"` // submitted deliverables (fixed contracts)
	CreatedAt            time.Time   `json:"createdAt"`
	UpdatedAt            time.Time   `json:"updatedAt"`
}

// MilestoneByID returns the named milestone, or nil when absent.
func (c *Contract) MilestoneByID(id string) *Milestone {
	for i := range c.Milestones {
		if c.Milestones[i].ID == id {
			return &c.Milestones[i]
		}
	}
	return nil
}

// Store persists contracts for the settlement engine.
type Store interface {
	Create(ctx context.Context, c *Contract) error
	FindByID(ctx context.Context, id string) (*Contract, error)
	// ApplyFunding increments the contract's funded/balance totals and marks
	// it funded. Amount is a decimal string.
	ApplyFunding(ctx context.Context, id, amount string) error
	// DebitBalance decreases the running balance (worklog settlement).
	DebitBalance(ctx context.Context, id, amount string) error
	UpdateStatus(ctx context.Context, id string, status Status) error
	UpdateMilestoneStatus(ctx context.Context, contractID, milestoneID string, status MilestoneStatus) error
	UpdateMilestoneFundedAmount(ctx context.Context, contractID, milestoneID, amount string) error
}
