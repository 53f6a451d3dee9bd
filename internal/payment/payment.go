// Package payment tracks gateway payment attempts for contract funding.
//
// A Payment is created pending when the client is redirected to the gateway
// and reaches exactly one terminal status (success, failed, cancelled) via
// the gateway callback. Terminal is terminal: gateways retry callback
// delivery, so finalization must be idempotent.
package payment

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/talentora/talentora/internal/idgen"
)

var (
	ErrPaymentNotFound = errors.New("payment not found")
	ErrInvalidStatus   = errors.New("invalid payment status")
)

// Purpose classifies what a payment funds.
type Purpose string

const (
	PurposeContractFunding  Purpose = "contract_funding"
	PurposeMilestoneFunding Purpose = "milestone_funding"
	PurposeHourlyAdvance    Purpose = "hourly_advance"
)

// Status is the payment lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// IsTerminal returns true for statuses a payment can never leave.
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusCancelled
}

// Payment represents one funding attempt through the payment gateway. The
// payment ID doubles as the gateway transaction id.
type Payment struct {
	ID             string     `json:"id"`
	ContractID     string     `json:"contractId"`
	MilestoneID    string     `json:"milestoneId,omitempty"`
	ClientID       string     `json:"clientId"`
	FreelancerID   string     `json:"freelancerId"`
	Amount         string     `json:"amount"`
	Purpose        Purpose    `json:"purpose"`
	Status         Status     `json:"status"`
	GatewayPayload string     `json:"gatewayPayload,omitempty"` // raw callback form, terminal only
	PaidAt         *time.Time `json:"paidAt,omitempty"`
	FailureReason  string     `json:"failureReason,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// New creates a pending payment with a fresh gateway transaction id.
func New(contractID, milestoneID, clientID, freelancerID, amount string, purpose Purpose) *Payment {
	now := time.Now().UTC()
	return &Payment{
		ID:           idgen.WithPrefix(idgen.PrefixPayment),
		ContractID:   contractID,
		MilestoneID:  milestoneID,
		ClientID:     clientID,
		FreelancerID: freelancerID,
		Amount:       amount,
		Purpose:      purpose,
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// FailureReason extracts the gateway's human-readable error from the raw
// callback payload. Empty for successful payments.
func FailureReason(to Status, payload string) string {
	if to == StatusSuccess {
		return ""
	}
	v, err := url.ParseQuery(payload)
	if err != nil {
		return ""
	}
	if msg := v.Get("error_Message"); msg != "" {
		return msg
	}
	return v.Get("error")
}

// FinalizeResult reports what a Finalize call did.
type FinalizeResult struct {
	Payment *Payment
	// AlreadyTerminal is true when the payment had reached a terminal
	// status before this call; the caller must treat that as a no-op
	// success, not an error.
	AlreadyTerminal bool
}

// Store persists payments. Finalize is a conditional transition on pending.
type Store interface {
	Create(ctx context.Context, p *Payment) error
	Get(ctx context.Context, id string) (*Payment, error)
	// Finalize moves a pending payment to a terminal status, attaching the
	// raw gateway payload and stamping the paid time (success) or the
	// gateway's failure reason. A payment already terminal is reported via
	// FinalizeResult, not an error.
	Finalize(ctx context.Context, id string, to Status, payload string) (*FinalizeResult, error)
	ListByContract(ctx context.Context, contractID string, limit int) ([]*Payment, error)
}
