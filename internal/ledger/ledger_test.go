package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger() *Ledger {
	return New(NewMemoryStore())
}

func fundContract(t *testing.T, l *Ledger, contractID, clientID, freelancerID, amount string) {
	t.Helper()
	_, err := l.Record(context.Background(), &Entry{
		ContractID:   contractID,
		ClientID:     clientID,
		FreelancerID: freelancerID,
		Amount:       amount,
		Purpose:      PurposeFunding,
	})
	require.NoError(t, err)
}

func TestFundingCreditsClientWallet(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()

	_, err := l.Record(ctx, &Entry{
		ContractID:   "contract-1",
		ClientID:     "client-1",
		FreelancerID: "freelancer-1",
		Amount:       "500.00",
		Purpose:      PurposeFunding,
	})
	require.NoError(t, err)
	// Record alone has no wallet side effect; funding goes through the
	// store's fused write.
	require.NoError(t, l.Store().RecordFunding(ctx, &Entry{
		ID: "#CTXaaaaaaaaaaaaaaaaaaaaaaab", ContractID: "contract-2",
		ClientID: "client-1", FreelancerID: "freelancer-1",
		Amount: "250.00", Purpose: PurposeFunding, Status: StatusCompleted,
	}))

	w, err := l.GetClientWallet(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, "250.00", w.Balance)
	assert.Equal(t, "250.00", w.TotalFunded)

	b, err := l.ContractBalance(ctx, "contract-1")
	require.NoError(t, err)
	assert.Equal(t, "500.00", b.Funding)
	assert.Equal(t, "500.00", b.Available)
}

func TestHoldReducesAvailable(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()
	fundContract(t, l, "contract-1", "client-1", "freelancer-1", "500.00")

	hold, err := l.RecordHold(ctx, &Entry{
		ContractID:   "contract-1",
		WorklogID:    "worklog-1",
		ClientID:     "client-1",
		FreelancerID: "freelancer-1",
		Amount:       "200.00",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusActiveHold, hold.Status)

	b, err := l.ContractBalance(ctx, "contract-1")
	require.NoError(t, err)
	assert.Equal(t, "200.00", b.ActiveHolds)
	assert.Equal(t, "300.00", b.Available)
}

func TestHoldBeyondAvailableFailsClosed(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()
	fundContract(t, l, "contract-1", "client-1", "freelancer-1", "100.00")

	_, err := l.RecordHold(ctx, &Entry{
		ContractID:   "contract-1",
		WorklogID:    "worklog-1",
		ClientID:     "client-1",
		FreelancerID: "freelancer-1",
		Amount:       "100.01",
	})
	assert.ErrorIs(t, err, ErrNegativeBalance)

	b, err := l.ContractBalance(ctx, "contract-1")
	require.NoError(t, err)
	assert.Equal(t, "0.00", b.ActiveHolds)
	assert.Equal(t, "100.00", b.Available)
}

func TestSettleHold(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()
	holdID := settleScenario(t, l)

	// 2 hours at rate 100, 15% commission: gross 200, commission 30, net 170.
	release := &Entry{
		ID: "#CTXbbbbbbbbbbbbbbbbbbbbbbbb", ContractID: "contract-1",
		WorklogID: "worklog-1", ClientID: "client-1", FreelancerID: "freelancer-1",
		Amount: "170.00", Purpose: PurposeRelease, Status: StatusCompleted,
	}
	commission := &Entry{
		ID: "#CTXcccccccccccccccccccccccc", ContractID: "contract-1",
		WorklogID: "worklog-1", ClientID: "client-1", FreelancerID: "freelancer-1",
		Amount: "30.00", Purpose: PurposeCommission, Status: StatusCompleted,
	}
	require.NoError(t, l.Store().SettleHold(ctx, holdID, release, commission))

	hold, err := l.Store().GetEntry(ctx, holdID)
	require.NoError(t, err)
	assert.Equal(t, StatusReleasedToFreelancer, hold.Status)

	b, err := l.ContractBalance(ctx, "contract-1")
	require.NoError(t, err)
	assert.Equal(t, "0.00", b.ActiveHolds)
	assert.Equal(t, "170.00", b.Released)
	assert.Equal(t, "30.00", b.Commission)
	// Settling a hold does not change what is available: the hold amount
	// is fully consumed by the release/commission pair.
	assert.Equal(t, "300.00", b.Available)

	fw, err := l.GetFreelancerWallet(ctx, "freelancer-1")
	require.NoError(t, err)
	assert.Equal(t, "170.00", fw.Balance)
	assert.Equal(t, "200.00", fw.TotalEarned)
	assert.Equal(t, "30.00", fw.TotalCommissionPaid)

	// Second settlement attempt must fail: single transition only.
	err = l.Store().SettleHold(ctx, holdID, release, commission)
	assert.ErrorIs(t, err, ErrHoldAlreadyResolved)
}

func settleScenario(t *testing.T, l *Ledger) string {
	t.Helper()
	ctx := context.Background()
	fundContract(t, l, "contract-1", "client-1", "freelancer-1", "500.00")
	hold, err := l.RecordHold(ctx, &Entry{
		ContractID:   "contract-1",
		WorklogID:    "worklog-1",
		ClientID:     "client-1",
		FreelancerID: "freelancer-1",
		Amount:       "200.00",
	})
	require.NoError(t, err)
	return hold.ID
}

func TestRefundHold(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()
	holdID := settleScenario(t, l)

	refund := &Entry{
		ID: "#CTXdddddddddddddddddddddddd", ContractID: "contract-1",
		WorklogID: "worklog-1", ClientID: "client-1", FreelancerID: "freelancer-1",
		Amount: "200.00", Purpose: PurposeRefund, Status: StatusCompleted,
	}
	require.NoError(t, l.Store().RefundHold(ctx, holdID, refund))

	b, err := l.ContractBalance(ctx, "contract-1")
	require.NoError(t, err)
	assert.Equal(t, "200.00", b.Refunded)
	assert.Equal(t, "300.00", b.Available)

	cw, err := l.GetClientWallet(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, "200.00", cw.TotalRefunded)

	err = l.Store().RefundHold(ctx, holdID, refund)
	assert.ErrorIs(t, err, ErrHoldAlreadyResolved)
}

func TestSplitHold(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()

	fundContract(t, l, "contract-1", "client-1", "freelancer-1", "500.00")
	hold, err := l.RecordHold(ctx, &Entry{
		ContractID:   "contract-1",
		WorklogID:    "worklog-9",
		ClientID:     "client-1",
		FreelancerID: "freelancer-1",
		Amount:       "300.00",
	})
	require.NoError(t, err)

	_, _, err = l.ResolveHoldSplit(ctx, hold.ID, "100.00", "150.00")
	assert.ErrorIs(t, err, ErrSplitMismatch)

	refund, release, err := l.ResolveHoldSplit(ctx, hold.ID, "100.00", "200.00")
	require.NoError(t, err)
	assert.Equal(t, "100.00", refund.Amount)
	assert.Equal(t, PurposeRefund, refund.Purpose)
	assert.Equal(t, "200.00", release.Amount)
	assert.Equal(t, PurposeRelease, release.Purpose)

	got, err := l.Store().GetEntry(ctx, hold.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAmountSplit, got.Status)
	assert.Equal(t, "300.00", got.Amount, "original hold amount is never edited")

	b, err := l.ContractBalance(ctx, "contract-1")
	require.NoError(t, err)
	assert.Equal(t, "200.00", b.Available)

	_, _, err = l.ResolveHoldSplit(ctx, hold.ID, "100.00", "200.00")
	assert.ErrorIs(t, err, ErrHoldAlreadyResolved)
}

func TestFreezeHoldThenSettle(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()
	holdID := settleScenario(t, l)

	require.NoError(t, l.FreezeHold(ctx, holdID))
	assert.ErrorIs(t, l.FreezeHold(ctx, holdID), ErrHoldAlreadyResolved)

	// A frozen hold still counts against available and can still settle.
	b, err := l.ContractBalance(ctx, "contract-1")
	require.NoError(t, err)
	assert.Equal(t, "200.00", b.ActiveHolds)

	release := &Entry{
		ID: "#CTXeeeeeeeeeeeeeeeeeeeeeeee", ContractID: "contract-1",
		WorklogID: "worklog-1", ClientID: "client-1", FreelancerID: "freelancer-1",
		Amount: "170.00", Purpose: PurposeRelease, Status: StatusCompleted,
	}
	commission := &Entry{
		ID: "#CTXffffffffffffffffffffffff", ContractID: "contract-1",
		WorklogID: "worklog-1", ClientID: "client-1", FreelancerID: "freelancer-1",
		Amount: "30.00", Purpose: PurposeCommission, Status: StatusCompleted,
	}
	require.NoError(t, l.Store().SettleHold(ctx, holdID, release, commission))
}

func TestReturnHoldToContract(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()
	holdID := settleScenario(t, l)

	require.NoError(t, l.Store().ReturnHoldToContract(ctx, holdID))
	got, err := l.Store().GetEntry(ctx, holdID)
	require.NoError(t, err)
	assert.Equal(t, StatusReleasedBackToContract, got.Status)

	err = l.Store().ReturnHoldToContract(ctx, holdID)
	assert.ErrorIs(t, err, ErrHoldAlreadyResolved)
}

func TestFindOpenHold(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()
	holdID := settleScenario(t, l)

	found, err := l.FindOpenHold(ctx, "contract-1", HoldRef{WorklogID: "worklog-1"})
	require.NoError(t, err)
	assert.Equal(t, holdID, found.ID)

	_, err = l.FindOpenHold(ctx, "contract-1", HoldRef{WorklogID: "worklog-2"})
	assert.ErrorIs(t, err, ErrHoldNotFound)

	require.NoError(t, l.Store().ReturnHoldToContract(ctx, holdID))
	_, err = l.FindOpenHold(ctx, "contract-1", HoldRef{WorklogID: "worklog-1"})
	assert.ErrorIs(t, err, ErrHoldNotFound, "resolved holds are no longer open")
}

func TestFindOpenHoldRejectsEmptyRef(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()
	settleScenario(t, l) // leaves one open hold on contract-1

	// An empty ref names no unit of work; matching an arbitrary open hold
	// would let one worklog's settlement consume another's money.
	_, err := l.FindOpenHold(ctx, "contract-1", HoldRef{})
	assert.ErrorIs(t, err, ErrHoldNotFound)
}

func TestWithdrawalLifecycle(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()

	// Freelancer earned 170.00 net across one settlement.
	holdID := settleScenario(t, l)
	release := &Entry{
		ID: "#CTX111111111111111111111111", ContractID: "contract-1",
		WorklogID: "worklog-1", ClientID: "client-1", FreelancerID: "freelancer-1",
		Amount: "170.00", Purpose: PurposeRelease, Status: StatusCompleted,
	}
	commission := &Entry{
		ID: "#CTX222222222222222222222222", ContractID: "contract-1",
		WorklogID: "worklog-1", ClientID: "client-1", FreelancerID: "freelancer-1",
		Amount: "30.00", Purpose: PurposeCommission, Status: StatusCompleted,
	}
	require.NoError(t, l.Store().SettleHold(ctx, holdID, release, commission))

	available, err := l.AvailableForWithdrawal(ctx, "freelancer-1", RoleFreelancer)
	require.NoError(t, err)
	assert.Equal(t, "170.00", available)

	// Over-withdrawal is rejected with no ledger write.
	err = l.Store().RequestWithdrawal(ctx, &Entry{
		ID: "#WTH333333333333333333333333", ContractID: "contract-1",
		FreelancerID: "freelancer-1", Amount: "170.01",
		Purpose: PurposeWithdrawal, Role: RoleFreelancer,
		Status: StatusWithdrawalRequested,
	})
	assert.ErrorIs(t, err, ErrNegativeBalance)
	available, err = l.AvailableForWithdrawal(ctx, "freelancer-1", RoleFreelancer)
	require.NoError(t, err)
	assert.Equal(t, "170.00", available)

	req := &Entry{
		ID: "#WTH444444444444444444444444", ContractID: "contract-1",
		FreelancerID: "freelancer-1", Amount: "100.00",
		Purpose: PurposeWithdrawal, Role: RoleFreelancer,
		Status: StatusWithdrawalRequested,
	}
	require.NoError(t, l.Store().RequestWithdrawal(ctx, req))

	// A pending request already reduces what can be requested again.
	available, err = l.AvailableForWithdrawal(ctx, "freelancer-1", RoleFreelancer)
	require.NoError(t, err)
	assert.Equal(t, "70.00", available)

	resolved, err := l.Store().ResolveWithdrawal(ctx, req.ID, true)
	require.NoError(t, err)
	assert.Equal(t, StatusWithdrawalApproved, resolved.Status)

	fw, err := l.GetFreelancerWallet(ctx, "freelancer-1")
	require.NoError(t, err)
	assert.Equal(t, "70.00", fw.Balance)
	assert.Equal(t, "100.00", fw.TotalWithdrawn)

	// Terminal either way: a second resolution attempt fails.
	_, err = l.Store().ResolveWithdrawal(ctx, req.ID, false)
	assert.ErrorIs(t, err, ErrWithdrawalResolved)
}

func TestRejectedWithdrawalRestoresAvailability(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()
	holdID := settleScenario(t, l)
	release := &Entry{
		ID: "#CTX555555555555555555555555", ContractID: "contract-1",
		WorklogID: "worklog-1", ClientID: "client-1", FreelancerID: "freelancer-1",
		Amount: "170.00", Purpose: PurposeRelease, Status: StatusCompleted,
	}
	commission := &Entry{
		ID: "#CTX666666666666666666666666", ContractID: "contract-1",
		WorklogID: "worklog-1", ClientID: "client-1", FreelancerID: "freelancer-1",
		Amount: "30.00", Purpose: PurposeCommission, Status: StatusCompleted,
	}
	require.NoError(t, l.Store().SettleHold(ctx, holdID, release, commission))

	req := &Entry{
		ID: "#WTH777777777777777777777777", ContractID: "contract-1",
		FreelancerID: "freelancer-1", Amount: "170.00",
		Purpose: PurposeWithdrawal, Role: RoleFreelancer,
		Status: StatusWithdrawalRequested,
	}
	require.NoError(t, l.Store().RequestWithdrawal(ctx, req))

	resolved, err := l.Store().ResolveWithdrawal(ctx, req.ID, false)
	require.NoError(t, err)
	assert.Equal(t, StatusWithdrawalRejected, resolved.Status)

	// Rejection needs no wallet mutation: the aggregate excludes rejected
	// requests by status.
	available, err := l.AvailableForWithdrawal(ctx, "freelancer-1", RoleFreelancer)
	require.NoError(t, err)
	assert.Equal(t, "170.00", available)

	fw, err := l.GetFreelancerWallet(ctx, "freelancer-1")
	require.NoError(t, err)
	assert.Equal(t, "170.00", fw.Balance)
	assert.Equal(t, "0.00", fw.TotalWithdrawn)
}

func TestWalletReconciliation(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()

	require.NoError(t, l.Store().RecordFunding(ctx, &Entry{
		ID: "#CTX888888888888888888888888", ContractID: "contract-1",
		ClientID: "client-1", FreelancerID: "freelancer-1",
		Amount: "500.00", Purpose: PurposeFunding, Status: StatusCompleted,
	}))
	hold, err := l.RecordHold(ctx, &Entry{
		ContractID: "contract-1", WorklogID: "worklog-1",
		ClientID: "client-1", FreelancerID: "freelancer-1", Amount: "200.00",
	})
	require.NoError(t, err)
	require.NoError(t, l.Store().SettleHold(ctx, hold.ID,
		&Entry{
			ID: "#CTX999999999999999999999999", ContractID: "contract-1",
			WorklogID: "worklog-1", ClientID: "client-1", FreelancerID: "freelancer-1",
			Amount: "170.00", Purpose: PurposeRelease, Status: StatusCompleted,
		},
		&Entry{
			ID: "#CTXaaaaaaaaaaaaaaaaaaaaaaaa", ContractID: "contract-1",
			WorklogID: "worklog-1", ClientID: "client-1", FreelancerID: "freelancer-1",
			Amount: "30.00", Purpose: PurposeCommission, Status: StatusCompleted,
		}))

	cr, err := l.ReconcileClientWallet(ctx, "client-1")
	require.NoError(t, err)
	assert.True(t, cr.Match)
	assert.Equal(t, "300.00", cr.ReplayBalance)

	fr, err := l.ReconcileFreelancerWallet(ctx, "freelancer-1")
	require.NoError(t, err)
	assert.True(t, fr.Match)
	assert.Equal(t, "170.00", fr.ReplayBalance)
}

func TestInvalidAmountsRejected(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()

	for _, amount := range []string{"", "0.00", "-5.00", "abc", "1.2.3"} {
		_, err := l.Record(ctx, &Entry{
			ContractID: "contract-1", ClientID: "client-1",
			FreelancerID: "freelancer-1", Amount: amount, Purpose: PurposeFunding,
		})
		assert.ErrorIs(t, err, ErrInvalidAmount, "amount %q", amount)
	}
}
