package withdrawal

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentora/talentora/internal/ledger"
	"github.com/talentora/talentora/internal/users"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	ledger *ledger.Ledger
	users  *users.MemoryStore
	svc    *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ledger: ledger.New(ledger.NewMemoryStore()),
		users:  users.NewMemoryStore(),
	}
	f.svc = NewService(f.ledger, f.users, testLogger())

	ctx := context.Background()
	require.NoError(t, f.users.Upsert(ctx, &users.User{
		ID:   "freelancer-1",
		Role: "freelancer",
		Bank: &users.BankDetails{AccountName: "A Freelancer", AccountNumber: "0123456789", BankName: "GTB", Verified: true},
	}))
	require.NoError(t, f.users.Upsert(ctx, &users.User{
		ID:   "freelancer-2",
		Role: "freelancer",
		Bank: &users.BankDetails{AccountName: "B Freelancer", AccountNumber: "9876543210", BankName: "GTB"},
	}))
	require.NoError(t, f.users.Upsert(ctx, &users.User{
		ID:   "client-1",
		Role: "client",
		Bank: &users.BankDetails{AccountName: "A Client", AccountNumber: "1111111111", BankName: "UBA", Verified: true},
	}))
	return f
}

// earn settles one 200.00 hold so freelancer-1 has 170.00 withdrawable and
// client-1 holds the remaining contract funds.
func (f *fixture) earn(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.ledger.Store().RecordFunding(ctx, &ledger.Entry{
		ID: "#CTXfund00000000000000000000", ContractID: "contract-1",
		ClientID: "client-1", FreelancerID: "freelancer-1",
		Amount: "500.00", Purpose: ledger.PurposeFunding, Status: ledger.StatusCompleted,
	}))
	hold, err := f.ledger.RecordHold(ctx, &ledger.Entry{
		ContractID: "contract-1", WorklogID: "worklog-1",
		ClientID: "client-1", FreelancerID: "freelancer-1",
		Amount: "200.00",
	})
	require.NoError(t, err)
	release := &ledger.Entry{
		ID: "#CTXrel000000000000000000000", ContractID: "contract-1",
		WorklogID: "worklog-1", ClientID: "client-1", FreelancerID: "freelancer-1",
		Amount: "170.00", Purpose: ledger.PurposeRelease, Status: ledger.StatusCompleted,
	}
	commission := &ledger.Entry{
		ID: "#CTXcom000000000000000000000", ContractID: "contract-1",
		WorklogID: "worklog-1", ClientID: "client-1", FreelancerID: "freelancer-1",
		Amount: "30.00", Purpose: ledger.PurposeCommission, Status: ledger.StatusCompleted,
	}
	require.NoError(t, f.ledger.Store().SettleHold(ctx, hold.ID, release, commission))
}

func TestRequestRequiresVerifiedBank(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.earn(t)

	_, err := f.svc.Request(ctx, "freelancer-2", ledger.RoleFreelancer, "10.00")
	assert.ErrorIs(t, err, ErrNoVerifiedBank)

	_, err = f.svc.Request(ctx, "nobody", ledger.RoleFreelancer, "10.00")
	assert.ErrorIs(t, err, users.ErrNotFound)
}

func TestRequestValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Request(ctx, "freelancer-1", ledger.Role("admin"), "10.00")
	assert.ErrorIs(t, err, ErrInvalidRole)

	_, err = f.svc.Request(ctx, "freelancer-1", ledger.RoleFreelancer, "-5.00")
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	_, err = f.svc.Request(ctx, "freelancer-1", ledger.RoleFreelancer, "0.00")
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
}

func TestRequestExceedingAvailableIsDenied(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.earn(t)

	_, err := f.svc.Request(ctx, "freelancer-1", ledger.RoleFreelancer, "170.01")
	assert.ErrorIs(t, err, ErrInsufficientFund)

	available, err := f.svc.Available(ctx, "freelancer-1", ledger.RoleFreelancer)
	require.NoError(t, err)
	assert.Equal(t, "170.00", available)
}

func TestPendingRequestReducesAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.earn(t)

	e, err := f.svc.Request(ctx, "freelancer-1", ledger.RoleFreelancer, "100.00")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusWithdrawalRequested, e.Status)
	assert.Equal(t, "freelancer-1", e.FreelancerID)

	available, err := f.svc.Available(ctx, "freelancer-1", ledger.RoleFreelancer)
	require.NoError(t, err)
	assert.Equal(t, "70.00", available)

	// The remaining 70.00 cannot cover another 100.00.
	_, err = f.svc.Request(ctx, "freelancer-1", ledger.RoleFreelancer, "100.00")
	assert.ErrorIs(t, err, ErrInsufficientFund)
}

func TestApproveDebitsWalletAndRefreshesMirror(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.earn(t)

	e, err := f.svc.Request(ctx, "freelancer-1", ledger.RoleFreelancer, "100.00")
	require.NoError(t, err)

	approved, err := f.svc.Approve(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusWithdrawalApproved, approved.Status)

	w, err := f.ledger.GetFreelancerWallet(ctx, "freelancer-1")
	require.NoError(t, err)
	assert.Equal(t, "70.00", w.Balance)
	assert.Equal(t, "100.00", w.TotalWithdrawn)

	u, err := f.users.Get(ctx, "freelancer-1")
	require.NoError(t, err)
	assert.Equal(t, "70.00", u.WalletBalance)

	// Approved money stays withdrawn.
	available, err := f.svc.Available(ctx, "freelancer-1", ledger.RoleFreelancer)
	require.NoError(t, err)
	assert.Equal(t, "70.00", available)

	_, err = f.svc.Approve(ctx, e.ID)
	assert.ErrorIs(t, err, ledger.ErrWithdrawalResolved)
	_, err = f.svc.Reject(ctx, e.ID)
	assert.ErrorIs(t, err, ledger.ErrWithdrawalResolved)
}

func TestRejectRestoresAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.earn(t)

	e, err := f.svc.Request(ctx, "freelancer-1", ledger.RoleFreelancer, "170.00")
	require.NoError(t, err)

	rejected, err := f.svc.Reject(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusWithdrawalRejected, rejected.Status)

	available, err := f.svc.Available(ctx, "freelancer-1", ledger.RoleFreelancer)
	require.NoError(t, err)
	assert.Equal(t, "170.00", available)

	// Wallet untouched: nothing was paid out.
	w, err := f.ledger.GetFreelancerWallet(ctx, "freelancer-1")
	require.NoError(t, err)
	assert.Equal(t, "170.00", w.Balance)
	assert.Equal(t, "0.00", w.TotalWithdrawn)

	_, err = f.svc.Request(ctx, "freelancer-1", ledger.RoleFreelancer, "170.00")
	require.NoError(t, err)
}

func TestClientWithdrawsRefundedFunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.ledger.Store().RecordFunding(ctx, &ledger.Entry{
		ID: "#CTXfund11111111111111111111", ContractID: "contract-2",
		ClientID: "client-1", FreelancerID: "freelancer-1",
		Amount: "300.00", Purpose: ledger.PurposeFunding, Status: ledger.StatusCompleted,
	}))
	require.NoError(t, f.ledger.Store().RecordRefund(ctx, &ledger.Entry{
		ID: "#CTXref000000000000000000000", ContractID: "contract-2",
		ClientID: "client-1", FreelancerID: "freelancer-1",
		Amount: "300.00", Purpose: ledger.PurposeRefund, Status: ledger.StatusCompleted,
	}))

	available, err := f.svc.Available(ctx, "client-1", ledger.RoleClient)
	require.NoError(t, err)
	assert.Equal(t, "300.00", available)

	e, err := f.svc.Request(ctx, "client-1", ledger.RoleClient, "300.00")
	require.NoError(t, err)
	assert.Equal(t, "client-1", e.ClientID)
	assert.Equal(t, ledger.RoleClient, e.Role)

	_, err = f.svc.Approve(ctx, e.ID)
	require.NoError(t, err)
	w, err := f.ledger.GetClientWallet(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, "0.00", w.Balance)
	assert.Equal(t, "300.00", w.TotalRefunded)
}

func TestHistoryPagination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.earn(t)

	var ids []string
	for _, amount := range []string{"10.00", "20.00", "30.00"} {
		e, err := f.svc.Request(ctx, "freelancer-1", ledger.RoleFreelancer, amount)
		require.NoError(t, err)
		ids = append(ids, e.ID)
		time.Sleep(time.Millisecond)
	}

	page, cursor, more, err := f.svc.History(ctx, "freelancer-1", ledger.RoleFreelancer, "", 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.True(t, more)
	require.NotEmpty(t, cursor)
	// Newest first.
	assert.Equal(t, ids[2], page[0].ID)
	assert.Equal(t, ids[1], page[1].ID)

	page, _, more, err = f.svc.History(ctx, "freelancer-1", ledger.RoleFreelancer, cursor, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.False(t, more)
	assert.Equal(t, ids[0], page[0].ID)

	_, _, _, err = f.svc.History(ctx, "freelancer-1", ledger.Role("admin"), "", 2)
	assert.ErrorIs(t, err, ErrInvalidRole)
}
