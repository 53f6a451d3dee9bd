package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentora/talentora/internal/contract"
)

func TestStrategyFor(t *testing.T) {
	tests := []struct {
		paymentType contract.PaymentType
		want        AmountStrategy
	}{
		{contract.PaymentTypeHourly, HourlyStrategy{}},
		{contract.PaymentTypeFixed, FixedStrategy{}},
		{contract.PaymentTypeMilestone, MilestoneStrategy{}},
	}
	for _, tt := range tests {
		got, err := StrategyFor(tt.paymentType)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := StrategyFor(contract.PaymentType("barter"))
	assert.ErrorIs(t, err, ErrUnsupportedPaymentType)
}

func TestHourlyStrategy(t *testing.T) {
	s := HourlyStrategy{}

	amount, err := s.Calculate(AmountContext{Contract: &contract.Contract{
		PaymentType:          contract.PaymentTypeHourly,
		HourlyRate:           "100.00",
		EstimatedWeeklyHours: 40,
	}})
	require.NoError(t, err)
	assert.Equal(t, "4000.00", amount)

	_, err = s.Calculate(AmountContext{Contract: &contract.Contract{
		PaymentType: contract.PaymentTypeHourly,
		HourlyRate:  "100.00",
	}})
	assert.ErrorIs(t, err, ErrHourlyTermsUnset)

	_, err = s.Calculate(AmountContext{Contract: &contract.Contract{
		PaymentType:          contract.PaymentTypeHourly,
		EstimatedWeeklyHours: 40,
	}})
	assert.ErrorIs(t, err, ErrHourlyTermsUnset)
}

func TestFixedStrategy(t *testing.T) {
	s := FixedStrategy{}

	amount, err := s.Calculate(AmountContext{Contract: &contract.Contract{
		PaymentType: contract.PaymentTypeFixed,
		Budget:      "1500.00",
	}})
	require.NoError(t, err)
	assert.Equal(t, "1500.00", amount)

	_, err = s.Calculate(AmountContext{Contract: &contract.Contract{
		PaymentType: contract.PaymentTypeFixed,
	}})
	assert.ErrorIs(t, err, ErrBudgetUnset)
}

func TestMilestoneStrategy(t *testing.T) {
	s := MilestoneStrategy{}
	c := &contract.Contract{
		PaymentType: contract.PaymentTypeMilestone,
		Milestones: []contract.Milestone{
			{ID: "milestone-1", Title: "Design", Amount: "400.00"},
			{ID: "milestone-2", Title: "Build", Amount: "600.00"},
		},
	}

	amount, err := s.Calculate(AmountContext{Contract: c, MilestoneID: "milestone-2"})
	require.NoError(t, err)
	assert.Equal(t, "600.00", amount)

	// Unknown milestone is zero, rejected by the caller, not an error here.
	amount, err = s.Calculate(AmountContext{Contract: c, MilestoneID: "milestone-9"})
	require.NoError(t, err)
	assert.Equal(t, "0.00", amount)
}
