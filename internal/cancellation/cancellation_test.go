package cancellation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentora/talentora/internal/contract"
	"github.com/talentora/talentora/internal/worklog"
)

func TestStrategyFor(t *testing.T) {
	for _, pt := range []contract.PaymentType{
		contract.PaymentTypeFixed,
		contract.PaymentTypeHourly,
		contract.PaymentTypeMilestone,
	} {
		s, err := StrategyFor(pt)
		require.NoError(t, err)
		assert.True(t, s.Supports(pt))
	}

	_, err := StrategyFor(contract.PaymentType("equity"))
	assert.ErrorIs(t, err, ErrUnsupportedPaymentType)
}

func TestFixedCancellation(t *testing.T) {
	s := FixedStrategy{}

	out := s.Evaluate(Context{
		Contract:    &contract.Contract{PaymentType: contract.PaymentTypeFixed},
		TotalFunded: "1500.00",
	})
	assert.True(t, out.RequiresRefund)
	assert.Equal(t, "1500.00", out.RefundAmount)
	assert.False(t, out.RequiresDispute)

	out = s.Evaluate(Context{
		Contract: &contract.Contract{
			PaymentType:      contract.PaymentTypeFixed,
			DeliverableCount: 1,
		},
		TotalFunded: "1500.00",
	})
	assert.False(t, out.RequiresRefund)
	assert.True(t, out.RequiresDispute)
}

func TestHourlyCancellation(t *testing.T) {
	s := HourlyStrategy{}
	c := &contract.Contract{PaymentType: contract.PaymentTypeHourly}

	tests := []struct {
		name    string
		counts  worklog.Counts
		refund  bool
		dispute bool
	}{
		{"no timesheets", worklog.Counts{}, true, false},
		{"pending timesheet", worklog.Counts{Pending: 1}, false, true},
		{"approved timesheet", worklog.Counts{Approved: 2}, false, true},
		{"paid timesheet", worklog.Counts{Paid: 1}, false, true},
		{"disputed timesheet", worklog.Counts{Disputed: 1}, false, true},
		{"rejected only", worklog.Counts{Rejected: 3}, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := s.Evaluate(Context{Contract: c, Worklogs: tt.counts, TotalFunded: "800.00"})
			assert.Equal(t, tt.refund, out.RequiresRefund)
			assert.Equal(t, tt.dispute, out.RequiresDispute)
			if tt.refund {
				assert.Equal(t, "800.00", out.RefundAmount)
			}
		})
	}
}

func TestMilestoneCancellation(t *testing.T) {
	s := MilestoneStrategy{}

	milestoneContract := func(statuses ...contract.MilestoneStatus) *contract.Contract {
		c := &contract.Contract{PaymentType: contract.PaymentTypeMilestone}
		for i, st := range statuses {
			c.Milestones = append(c.Milestones, contract.Milestone{
				ID:     string(rune('a' + i)),
				Amount: "100.00",
				Status: st,
			})
		}
		return c
	}

	out := s.Evaluate(Context{Contract: milestoneContract(contract.MilestonePending, contract.MilestonePending), TotalFunded: "0.00"})
	assert.True(t, out.RequiresRefund)
	assert.False(t, out.RequiresDispute)

	out = s.Evaluate(Context{Contract: milestoneContract(contract.MilestoneFunded, contract.MilestonePending), TotalFunded: "100.00"})
	assert.True(t, out.RequiresRefund, "funded but untouched milestones refund in full")
	assert.False(t, out.RequiresDispute)

	for _, st := range []contract.MilestoneStatus{
		contract.MilestoneSubmitted, contract.MilestoneApproved, contract.MilestonePaid,
	} {
		out = s.Evaluate(Context{Contract: milestoneContract(contract.MilestoneFunded, st), TotalFunded: "200.00"})
		assert.False(t, out.RequiresRefund, "status %s", st)
		assert.True(t, out.RequiresDispute, "status %s", st)
	}
}
