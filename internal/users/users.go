// Package users holds the user/bank collaborator: verified bank details
// (withdrawal precondition) and the denormalized wallet-balance mirror kept
// on the profile for dashboard reads.
package users

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("user not found")

// BankDetails is the payout destination for withdrawals.
type BankDetails struct {
	AccountName   string `json:"accountName"`
	AccountNumber string `json:"accountNumber"`
	BankName      string `json:"bankName"`
	Verified      bool   `json:"verified"`
}

// User is the settlement-relevant slice of a marketplace profile.
type User struct {
	ID            string       `json:"id"`
	Role          string       `json:"role"` // "client" or "freelancer"
	Bank          *BankDetails `json:"bank,omitempty"`
	WalletBalance string       `json:"walletBalance"` // mirror only, ledger wins
	UpdatedAt     time.Time    `json:"updatedAt"`
}

// HasVerifiedBank reports whether the user can receive payouts.
func (u *User) HasVerifiedBank() bool {
	return u.Bank != nil && u.Bank.Verified
}

// Store persists users.
type Store interface {
	Get(ctx context.Context, id string) (*User, error)
	Upsert(ctx context.Context, u *User) error
	SetBankDetails(ctx context.Context, id string, bank BankDetails) error
	// UpdateWalletMirror refreshes the denormalized balance shown on the
	// profile. Best-effort: never consulted for authorization.
	UpdateWalletMirror(ctx context.Context, id, balance string) error
}
