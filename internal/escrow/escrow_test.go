package escrow

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func holdFixture(t *testing.T, s *Service) *Escrow {
	t.Helper()
	esc, err := s.Hold(context.Background(), HoldRequest{
		ContractID:   "contract-1",
		MilestoneID:  "milestone-1",
		ClientID:     "client-1",
		FreelancerID: "freelancer-1",
		Amount:       "250.00",
	})
	require.NoError(t, err)
	return esc
}

func TestHoldCreatesHeldEscrow(t *testing.T) {
	s := NewService(NewMemoryStore())
	esc := holdFixture(t, s)

	assert.True(t, strings.HasPrefix(esc.ID, "#ESC"))
	assert.Equal(t, StatusHeld, esc.Status)
	assert.False(t, esc.HeldAt.IsZero())
	assert.False(t, esc.IsResolved())
}

func TestHoldRejectsInvalidAmount(t *testing.T) {
	s := NewService(NewMemoryStore())
	for _, amount := range []string{"", "0.00", "-1.00", "x"} {
		_, err := s.Hold(context.Background(), HoldRequest{
			ContractID: "contract-1", MilestoneID: "milestone-1",
			ClientID: "client-1", FreelancerID: "freelancer-1", Amount: amount,
		})
		assert.ErrorIs(t, err, ErrInvalidAmount, "amount %q", amount)
	}
}

func TestReleaseTransitionsOnce(t *testing.T) {
	s := NewService(NewMemoryStore())
	esc := holdFixture(t, s)

	released, err := s.Release(context.Background(), esc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusReleased, released.Status)
	require.NotNil(t, released.ReleasedAt)
	assert.True(t, released.IsResolved())

	_, err = s.Release(context.Background(), esc.ID)
	assert.ErrorIs(t, err, ErrAlreadyResolved)
	_, err = s.Refund(context.Background(), esc.ID)
	assert.ErrorIs(t, err, ErrAlreadyResolved)
}

func TestRefundTransitionsOnce(t *testing.T) {
	s := NewService(NewMemoryStore())
	esc := holdFixture(t, s)

	refunded, err := s.Refund(context.Background(), esc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRefunded, refunded.Status)
	require.NotNil(t, refunded.RefundedAt)

	_, err = s.Release(context.Background(), esc.ID)
	assert.ErrorIs(t, err, ErrAlreadyResolved)
}

func TestResolveUnknownEscrow(t *testing.T) {
	s := NewService(NewMemoryStore())
	_, err := s.Release(context.Background(), "#ESCdeadbeefdeadbeefdeadbeef")
	assert.ErrorIs(t, err, ErrEscrowNotFound)
}

func TestFindHeldByMilestone(t *testing.T) {
	s := NewService(NewMemoryStore())
	esc := holdFixture(t, s)

	found, err := s.FindHeldByMilestone(context.Background(), "contract-1", "milestone-1")
	require.NoError(t, err)
	assert.Equal(t, esc.ID, found.ID)

	_, err = s.Release(context.Background(), esc.ID)
	require.NoError(t, err)

	_, err = s.FindHeldByMilestone(context.Background(), "contract-1", "milestone-1")
	assert.ErrorIs(t, err, ErrEscrowNotFound, "resolved escrows are no longer held")
}

func TestConcurrentResolutionIsSingleWinner(t *testing.T) {
	s := NewService(NewMemoryStore())
	esc := holdFixture(t, s)

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, errs[i] = s.Release(context.Background(), esc.ID)
			} else {
				_, errs[i] = s.Refund(context.Background(), esc.ID)
			}
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, ErrAlreadyResolved)
		}
	}
	assert.Equal(t, 1, winners)
}

func TestListByContract(t *testing.T) {
	s := NewService(NewMemoryStore())
	for _, m := range []string{"milestone-1", "milestone-2", "milestone-3"} {
		_, err := s.Hold(context.Background(), HoldRequest{
			ContractID: "contract-1", MilestoneID: m,
			ClientID: "client-1", FreelancerID: "freelancer-1", Amount: "100.00",
		})
		require.NoError(t, err)
	}

	out, err := s.ListByContract(context.Background(), "contract-1", 2)
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Equal(t, "milestone-3", out[0].MilestoneID, "newest first")
}
