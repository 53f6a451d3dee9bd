// Package cancellation decides what happens to funds when a contract is
// cancelled.
//
// The policy across all payment types: a refund is only automatic when zero
// work product exists. Any sign of delivered or in-review work forces human
// dispute resolution instead of an automatic money movement — paying out
// unreviewed work and freezing client funds are both failure modes.
package cancellation

import (
	"errors"
	"fmt"

	"github.com/talentora/talentora/internal/contract"
	"github.com/talentora/talentora/internal/worklog"
)

// ErrUnsupportedPaymentType means no strategy claims the contract's payment
// type; that is a configuration error, never a silent fallback.
var ErrUnsupportedPaymentType = errors.New("no cancellation strategy for contract payment type")

// Outcome is a cancellation verdict.
type Outcome struct {
	RequiresRefund  bool   `json:"requiresRefund"`
	RefundAmount    string `json:"refundAmount,omitempty"`
	RequiresDispute bool   `json:"requiresDispute"`
	Reason          string `json:"reason"`
}

// Context carries everything a strategy may inspect.
type Context struct {
	Contract    *contract.Contract
	Worklogs    worklog.Counts
	TotalFunded string
}

// Strategy evaluates a cancellation request for one payment type.
type Strategy interface {
	Supports(t contract.PaymentType) bool
	Evaluate(ctx Context) Outcome
}

// FixedStrategy handles fixed-price contracts without milestones.
type FixedStrategy struct{}

func (FixedStrategy) Supports(t contract.PaymentType) bool {
	return t == contract.PaymentTypeFixed
}

func (FixedStrategy) Evaluate(ctx Context) Outcome {
	if ctx.Contract.DeliverableCount > 0 {
		return Outcome{
			RequiresDispute: true,
			Reason:          "deliverables exist and may be in review",
		}
	}
	return Outcome{
		RequiresRefund: true,
		RefundAmount:   ctx.TotalFunded,
		Reason:         "no deliverables submitted",
	}
}

// HourlyStrategy handles hourly contracts.
type HourlyStrategy struct{}

func (HourlyStrategy) Supports(t contract.PaymentType) bool {
	return t == contract.PaymentTypeHourly
}

func (HourlyStrategy) Evaluate(ctx Context) Outcome {
	w := ctx.Worklogs
	// Rejected-only timesheets carry no payable work; everything else
	// means work was performed or awaits review.
	if w.Pending > 0 || w.Approved > 0 || w.Paid > 0 || w.Disputed > 0 {
		return Outcome{
			RequiresDispute: true,
			Reason:          "timesheets exist that are pending, approved, paid or disputed",
		}
	}
	return Outcome{
		RequiresRefund: true,
		RefundAmount:   ctx.TotalFunded,
		Reason:         "no payable timesheets logged",
	}
}

// MilestoneStrategy handles fixed contracts with milestones.
type MilestoneStrategy struct{}

func (MilestoneStrategy) Supports(t contract.PaymentType) bool {
	return t == contract.PaymentTypeMilestone
}

func (MilestoneStrategy) Evaluate(ctx Context) Outcome {
	funded := 0
	for _, m := range ctx.Contract.Milestones {
		switch m.Status {
		case contract.MilestonePaid, contract.MilestoneSubmitted, contract.MilestoneApproved:
			return Outcome{
				RequiresDispute: true,
				Reason:          fmt.Sprintf("milestone %s is %s", m.ID, m.Status),
			}
		case contract.MilestoneFunded:
			funded++
		}
	}
	if funded == 0 {
		return Outcome{
			RequiresRefund: true,
			RefundAmount:   ctx.TotalFunded,
			Reason:         "no milestones funded",
		}
	}
	return Outcome{
		RequiresRefund: true,
		RefundAmount:   ctx.TotalFunded,
		Reason:         "funded milestones are untouched",
	}
}

var strategies = []Strategy{
	FixedStrategy{},
	HourlyStrategy{},
	MilestoneStrategy{},
}

// StrategyFor selects the first strategy supporting the payment type.
func StrategyFor(t contract.PaymentType) (Strategy, error) {
	for _, s := range strategies {
		if s.Supports(t) {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedPaymentType, t)
}
