package payment

import (
	"errors"
	"fmt"

	"github.com/talentora/talentora/internal/contract"
	"github.com/talentora/talentora/internal/money"
)

var (
	ErrUnsupportedPaymentType = errors.New("no payment strategy for contract payment type")
	ErrHourlyTermsUnset       = errors.New("hourly rate or estimated weekly hours not set")
	ErrBudgetUnset            = errors.New("contract budget not set")
)

// AmountContext carries the inputs a strategy may need.
type AmountContext struct {
	Contract    *contract.Contract
	MilestoneID string
}

// AmountStrategy computes the funding amount for a contract payment type.
type AmountStrategy interface {
	Supports(t contract.PaymentType) bool
	Calculate(ctx AmountContext) (string, error)
}

// HourlyStrategy funds one week of work up front.
type HourlyStrategy struct{}

func (HourlyStrategy) Supports(t contract.PaymentType) bool {
	return t == contract.PaymentTypeHourly
}

func (HourlyStrategy) Calculate(ctx AmountContext) (string, error) {
	c := ctx.Contract
	if !money.IsPositive(c.HourlyRate) || c.EstimatedWeeklyHours <= 0 {
		return "", ErrHourlyTermsUnset
	}
	amount, ok := money.MulInt(c.HourlyRate, c.EstimatedWeeklyHours)
	if !ok {
		return "", ErrHourlyTermsUnset
	}
	return amount, nil
}

// FixedStrategy funds the whole budget at once.
type FixedStrategy struct{}

func (FixedStrategy) Supports(t contract.PaymentType) bool {
	return t == contract.PaymentTypeFixed
}

func (FixedStrategy) Calculate(ctx AmountContext) (string, error) {
	if !money.IsPositive(ctx.Contract.Budget) {
		return "", ErrBudgetUnset
	}
	return ctx.Contract.Budget, nil
}

// MilestoneStrategy funds one named milestone. A milestone id that does not
// exist yields zero; callers reject zero amounts upstream.
type MilestoneStrategy struct{}

func (MilestoneStrategy) Supports(t contract.PaymentType) bool {
	return t == contract.PaymentTypeMilestone
}

func (MilestoneStrategy) Calculate(ctx AmountContext) (string, error) {
	m := ctx.Contract.MilestoneByID(ctx.MilestoneID)
	if m == nil {
		return "0.00", nil
	}
	return m.Amount, nil
}

var strategies = []AmountStrategy{
	HourlyStrategy{},
	FixedStrategy{},
	MilestoneStrategy{},
}

// StrategyFor selects the first strategy supporting the payment type. No
// match is a configuration error, never a silent fallback.
func StrategyFor(t contract.PaymentType) (AmountStrategy, error) {
	for _, s := range strategies {
		if s.Supports(t) {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedPaymentType, t)
}
