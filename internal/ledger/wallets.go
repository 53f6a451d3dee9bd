package ledger

import (
	"context"

	"github.com/talentora/talentora/internal/money"
)

// WalletReconciliation holds the outcome of replaying entries vs the stored
// wallet row.
type WalletReconciliation struct {
	OwnerID       string `json:"ownerId"`
	Role          Role   `json:"role"`
	Match         bool   `json:"match"`
	ReplayBalance string `json:"replayBalance"`
	ActualBalance string `json:"actualBalance"`
}

// RebuildClientWallet replays every entry naming the owner into a fresh
// wallet image. The stored wallet is a cache; this is the recovery path.
func RebuildClientWallet(ownerID string, entries []*Entry) *ClientWallet {
	w := &ClientWallet{
		OwnerID:       ownerID,
		Balance:       "0.00",
		TotalFunded:   "0.00",
		TotalRefunded: "0.00",
	}
	for _, e := range entries {
		switch e.Purpose {
		case PurposeFunding:
			w.Balance = money.Add(w.Balance, e.Amount)
			w.TotalFunded = money.Add(w.TotalFunded, e.Amount)
		case PurposeRelease, PurposeCommission:
			w.Balance = money.Sub(w.Balance, e.Amount)
		case PurposeRefund:
			w.TotalRefunded = money.Add(w.TotalRefunded, e.Amount)
		case PurposeWithdrawal:
			if e.Role == RoleClient && e.Status == StatusWithdrawalApproved {
				w.Balance = money.Sub(w.Balance, e.Amount)
			}
		}
	}
	return w
}

// RebuildFreelancerWallet replays every entry naming the owner into a fresh
// wallet image.
func RebuildFreelancerWallet(ownerID string, entries []*Entry) *FreelancerWallet {
	w := &FreelancerWallet{
		OwnerID:             ownerID,
		Balance:             "0.00",
		TotalEarned:         "0.00",
		TotalWithdrawn:      "0.00",
		TotalCommissionPaid: "0.00",
	}
	for _, e := range entries {
		switch e.Purpose {
		case PurposeRelease:
			w.Balance = money.Add(w.Balance, e.Amount)
			w.TotalEarned = money.Add(w.TotalEarned, e.Amount)
		case PurposeCommission:
			// Commission is part of what the freelancer earned gross,
			// retained by the platform.
			w.TotalEarned = money.Add(w.TotalEarned, e.Amount)
			w.TotalCommissionPaid = money.Add(w.TotalCommissionPaid, e.Amount)
		case PurposeWithdrawal:
			if e.Role == RoleFreelancer && e.Status == StatusWithdrawalApproved {
				w.Balance = money.Sub(w.Balance, e.Amount)
				w.TotalWithdrawn = money.Add(w.TotalWithdrawn, e.Amount)
			}
		}
	}
	return w
}

// ReconcileClientWallet compares the stored client wallet with a replay of
// the owner's entries.
func (l *Ledger) ReconcileClientWallet(ctx context.Context, ownerID string) (*WalletReconciliation, error) {
	entries, err := l.store.OwnerEntries(ctx, ownerID, RoleClient)
	if err != nil {
		return nil, err
	}
	replay := RebuildClientWallet(ownerID, entries)
	actual, err := l.store.GetClientWallet(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return &WalletReconciliation{
		OwnerID:       ownerID,
		Role:          RoleClient,
		Match:         money.Cmp(replay.Balance, actual.Balance) == 0,
		ReplayBalance: replay.Balance,
		ActualBalance: actual.Balance,
	}, nil
}

// ReconcileFreelancerWallet compares the stored freelancer wallet with a
// replay of the owner's entries.
func (l *Ledger) ReconcileFreelancerWallet(ctx context.Context, ownerID string) (*WalletReconciliation, error) {
	entries, err := l.store.OwnerEntries(ctx, ownerID, RoleFreelancer)
	if err != nil {
		return nil, err
	}
	replay := RebuildFreelancerWallet(ownerID, entries)
	actual, err := l.store.GetFreelancerWallet(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return &WalletReconciliation{
		OwnerID:       ownerID,
		Role:          RoleFreelancer,
		Match:         money.Cmp(replay.Balance, actual.Balance) == 0,
		ReplayBalance: replay.Balance,
		ActualBalance: actual.Balance,
	}, nil
}
