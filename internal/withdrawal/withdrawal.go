// Package withdrawal handles payout requests against earned (freelancer) or
// refunded (client) balances. A withdrawal is a ledger entry: requested
// funds are excluded from the withdrawable aggregate immediately, approval
// debits the wallet, rejection releases the funds for a new request. The
// verified-bank precondition lives in the users collaborator.
package withdrawal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/talentora/talentora/internal/idgen"
	"github.com/talentora/talentora/internal/ledger"
	"github.com/talentora/talentora/internal/metrics"
	"github.com/talentora/talentora/internal/money"
	"github.com/talentora/talentora/internal/pagination"
	"github.com/talentora/talentora/internal/users"
)

var (
	ErrNoVerifiedBank   = errors.New("owner has no verified bank details")
	ErrInsufficientFund = errors.New("withdrawable balance cannot cover the request")
	ErrInvalidRole      = errors.New("role must be client or freelancer")
)

// Service manages the withdrawal lifecycle on top of the ledger.
type Service struct {
	ledger *ledger.Ledger
	users  users.Store
	logger *slog.Logger
}

// NewService creates a withdrawal service.
func NewService(l *ledger.Ledger, u users.Store, logger *slog.Logger) *Service {
	return &Service{ledger: l, users: u, logger: logger.With("component", "withdrawal")}
}

// Request asks to pay out part of the owner's withdrawable balance. The
// ledger store re-checks the aggregate inside the same unit that writes the
// entry, so two racing requests cannot both fit into one balance.
func (s *Service) Request(ctx context.Context, ownerID string, role ledger.Role, amount string) (*ledger.Entry, error) {
	if role != ledger.RoleClient && role != ledger.RoleFreelancer {
		return nil, ErrInvalidRole
	}
	if !money.IsPositive(amount) {
		return nil, ledger.ErrInvalidAmount
	}

	u, err := s.users.Get(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if !u.HasVerifiedBank() {
		metrics.WithdrawalsTotal.WithLabelValues("denied").Inc()
		return nil, ErrNoVerifiedBank
	}

	available, err := s.ledger.AvailableForWithdrawal(ctx, ownerID, role)
	if err != nil {
		return nil, err
	}
	if money.Cmp(amount, available) > 0 {
		metrics.WithdrawalsTotal.WithLabelValues("denied").Inc()
		return nil, fmt.Errorf("%w: requested %s, available %s", ErrInsufficientFund, amount, available)
	}

	e := &ledger.Entry{
		ID:          idgen.WithPrefix(idgen.PrefixWithdrawal),
		Amount:      amount,
		Purpose:     ledger.PurposeWithdrawal,
		Role:        role,
		Status:      ledger.StatusWithdrawalRequested,
		Description: "Withdrawal requested",
		CreatedAt:   time.Now().UTC(),
	}
	switch role {
	case ledger.RoleClient:
		e.ClientID = ownerID
	case ledger.RoleFreelancer:
		e.FreelancerID = ownerID
	}
	if err := s.ledger.Store().RequestWithdrawal(ctx, e); err != nil {
		return nil, err
	}
	metrics.WithdrawalsTotal.WithLabelValues("requested").Inc()
	s.logger.Info("withdrawal requested",
		"withdrawal_id", e.ID, "owner_id", ownerID, "role", role, "amount", amount)
	return e, nil
}

// Get returns one withdrawal entry.
func (s *Service) Get(ctx context.Context, id string) (*ledger.Entry, error) {
	return s.ledger.Store().GetWithdrawal(ctx, id)
}

// Approve resolves a requested withdrawal and debits the owner's wallet.
// The profile's denormalized balance mirror is refreshed best-effort.
func (s *Service) Approve(ctx context.Context, id string) (*ledger.Entry, error) {
	e, err := s.ledger.Store().ResolveWithdrawal(ctx, id, true)
	if err != nil {
		return nil, err
	}
	metrics.WithdrawalsTotal.WithLabelValues("approved").Inc()

	ownerID, balance := s.ownerBalance(ctx, e)
	if ownerID != "" {
		if err := s.users.UpdateWalletMirror(ctx, ownerID, balance); err != nil {
			s.logger.Warn("wallet mirror refresh failed", "owner_id", ownerID, "error", err)
		}
	}
	s.logger.Info("withdrawal approved", "withdrawal_id", e.ID, "amount", e.Amount)
	return e, nil
}

// Reject resolves a requested withdrawal without moving money; the amount
// becomes requestable again.
func (s *Service) Reject(ctx context.Context, id string) (*ledger.Entry, error) {
	e, err := s.ledger.Store().ResolveWithdrawal(ctx, id, false)
	if err != nil {
		return nil, err
	}
	metrics.WithdrawalsTotal.WithLabelValues("rejected").Inc()
	s.logger.Info("withdrawal rejected", "withdrawal_id", e.ID, "amount", e.Amount)
	return e, nil
}

// Available returns the owner's current withdrawable balance.
func (s *Service) Available(ctx context.Context, ownerID string, role ledger.Role) (string, error) {
	if role != ledger.RoleClient && role != ledger.RoleFreelancer {
		return "", ErrInvalidRole
	}
	return s.ledger.AvailableForWithdrawal(ctx, ownerID, role)
}

// History returns a page of the owner's withdrawal entries, newest first.
func (s *Service) History(ctx context.Context, ownerID string, role ledger.Role, cursorStr string, limit int) ([]*ledger.Entry, string, bool, error) {
	if role != ledger.RoleClient && role != ledger.RoleFreelancer {
		return nil, "", false, ErrInvalidRole
	}
	limit = pagination.ClampLimit(limit)
	var cursor *pagination.Cursor
	if cursorStr != "" {
		c, err := pagination.Decode(cursorStr)
		if err != nil {
			return nil, "", false, err
		}
		cursor = c
	}
	entries, err := s.ledger.Store().ListWithdrawals(ctx, ownerID, role, cursor, limit)
	if err != nil {
		return nil, "", false, err
	}
	page, next, more := pagination.ComputePage(entries, limit, func(e *ledger.Entry) (time.Time, string) {
		return e.CreatedAt, e.ID
	})
	return page, next, more, nil
}

func (s *Service) ownerBalance(ctx context.Context, e *ledger.Entry) (string, string) {
	switch e.Role {
	case ledger.RoleClient:
		w, err := s.ledger.GetClientWallet(ctx, e.ClientID)
		if err != nil {
			return "", ""
		}
		return e.ClientID, w.Balance
	case ledger.RoleFreelancer:
		w, err := s.ledger.GetFreelancerWallet(ctx, e.FreelancerID)
		if err != nil {
			return "", ""
		}
		return e.FreelancerID, w.Balance
	}
	return "", ""
}
