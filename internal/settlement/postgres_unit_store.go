package settlement

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/talentora/talentora/internal/contract"
	"github.com/talentora/talentora/internal/escrow"
	"github.com/talentora/talentora/internal/ledger"
	"github.com/talentora/talentora/internal/money"
	"github.com/talentora/talentora/internal/payment"
	"github.com/talentora/talentora/internal/worklog"
)

// PostgresUnitStore runs each unit of work inside one serializable
// transaction, composing the collaborator packages' transaction helpers. A
// failure anywhere rolls the whole unit back.
type PostgresUnitStore struct {
	db *sql.DB
}

// NewPostgresUnitStore creates a unit store on the given database handle.
func NewPostgresUnitStore(db *sql.DB) *PostgresUnitStore {
	return &PostgresUnitStore{db: db}
}

func (s *PostgresUnitStore) begin(ctx context.Context) (*sql.Tx, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("begin unit: %w", err)
	}
	return tx, nil
}

func (s *PostgresUnitStore) ApplyPaymentSuccess(ctx context.Context, paymentID, amount, payload string) (*FundingOutcome, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	res, err := payment.FinalizeTx(ctx, tx, paymentID, payment.StatusSuccess, payload)
	if err != nil {
		return nil, err
	}
	if res.AlreadyTerminal {
		return &FundingOutcome{Payment: res.Payment, AlreadyTerminal: true}, nil
	}
	p := res.Payment
	if money.Cmp(p.Amount, amount) != 0 {
		return nil, fmt.Errorf("%w: payment %s expects %s, gateway reported %s",
			ErrAmountMismatch, p.ID, p.Amount, amount)
	}

	c, err := contract.FindByIDTx(ctx, tx, p.ContractID)
	if err != nil {
		return nil, err
	}

	entry := fundingEntry(p)
	if err := ledger.InsertEntryTx(ctx, tx, entry); err != nil {
		return nil, err
	}
	if err := ledger.CreditClientWalletTx(ctx, tx, p.ClientID, p.Amount); err != nil {
		return nil, err
	}
	if err := contract.ApplyFundingTx(ctx, tx, c.ID, p.Amount); err != nil {
		return nil, err
	}

	status := c.Status
	if c.Status == contract.StatusPending || c.Status == contract.StatusHeld {
		status = ActivationStatus(c, money.Add(c.Balance, p.Amount))
		if status != c.Status {
			if err := contract.UpdateStatusTx(ctx, tx, c.ID, status); err != nil {
				return nil, err
			}
		}
	}

	out := &FundingOutcome{Payment: p, ContractStatus: status, Entry: entry}
	if p.Purpose == payment.PurposeMilestoneFunding {
		if err := contract.UpdateMilestoneFundedAmountTx(ctx, tx, c.ID, p.MilestoneID, p.Amount); err != nil {
			return nil, err
		}
		hold := milestoneHoldEntry(p)
		bal, err := ledger.ContractBalanceTx(ctx, tx, c.ID)
		if err != nil {
			return nil, err
		}
		if money.Cmp(bal.Available, hold.Amount) < 0 {
			return nil, ledger.ErrNegativeBalance
		}
		if err := ledger.InsertEntryTx(ctx, tx, hold); err != nil {
			return nil, err
		}
		esc := milestoneEscrow(p)
		if err := escrow.InsertTx(ctx, tx, esc); err != nil {
			return nil, err
		}
		out.Hold = hold
		out.Escrow = esc
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit funding unit: %w", err)
	}
	return out, nil
}

func (s *PostgresUnitStore) ApproveWorklog(ctx context.Context, u *WorklogApproval) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// A retried approval must not earmark the same worklog twice.
	if _, err := ledger.FindOpenHoldTx(ctx, tx, u.Hold.ContractID, ledger.HoldRef{WorklogID: u.Worklog.ID}); err == nil {
		return ledger.ErrDuplicateHold
	} else if !errors.Is(err, ledger.ErrHoldNotFound) {
		return err
	}
	bal, err := ledger.ContractBalanceTx(ctx, tx, u.Hold.ContractID)
	if err != nil {
		return err
	}
	if money.Cmp(bal.Available, u.Hold.Amount) < 0 {
		return ledger.ErrNegativeBalance
	}
	if err := ledger.InsertEntryTx(ctx, tx, u.Hold); err != nil {
		return err
	}
	if err := worklog.ApproveTx(ctx, tx, u.Worklog.ID, u.WindowEndsAt); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit worklog approval: %w", err)
	}
	return nil
}

func (s *PostgresUnitStore) SettleWorklog(ctx context.Context, u *WorklogSettlement) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// The conditional processing -> paid update doubles as the claim
	// check; zero rows means another run took over and aborts the unit.
	if err := worklog.MarkPaidTx(ctx, tx, u.Worklog.ID); err != nil {
		return err
	}
	if err := s.settleHold(ctx, tx, u.HoldID, u.Gross, u.Release, u.Commission); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit worklog settlement: %w", err)
	}
	return nil
}

func (s *PostgresUnitStore) ReleaseMilestone(ctx context.Context, u *MilestoneRelease) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.settleHold(ctx, tx, u.HoldID, u.Gross, u.Release, u.Commission); err != nil {
		return err
	}
	if u.EscrowID != "" {
		if _, err := escrow.ResolveTx(ctx, tx, u.EscrowID, escrow.StatusReleased, u.Release.CreatedAt); err != nil {
			return err
		}
	}
	if err := contract.UpdateMilestoneStatusTx(ctx, tx, u.Contract.ID, u.MilestoneID, contract.MilestonePaid); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit milestone release: %w", err)
	}
	return nil
}

// settleHold resolves a hold to the freelancer inside tx: status
// transition, release/commission pair, both wallets, contract balance.
func (s *PostgresUnitStore) settleHold(ctx context.Context, tx *sql.Tx, holdID, gross string, release, commission *ledger.Entry) error {
	if err := ledger.TransitionHoldTx(ctx, tx, holdID, ledger.StatusReleasedToFreelancer); err != nil {
		return err
	}
	if err := ledger.InsertEntryTx(ctx, tx, release); err != nil {
		return err
	}
	if err := ledger.InsertEntryTx(ctx, tx, commission); err != nil {
		return err
	}
	if err := ledger.SettleWalletsTx(ctx, tx,
		release.ClientID, release.FreelancerID, release.Amount, commission.Amount); err != nil {
		return err
	}
	return contract.DebitBalanceTx(ctx, tx, release.ContractID, gross)
}

func (s *PostgresUnitStore) RefundContract(ctx context.Context, u *ContractRefund) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, h := range u.Holds {
		if err := ledger.TransitionHoldTx(ctx, tx, h.HoldID, ledger.StatusRefundedBackToClient); err != nil {
			return err
		}
		if err := ledger.InsertEntryTx(ctx, tx, h.Entry); err != nil {
			return err
		}
		if err := ledger.BumpClientRefundTx(ctx, tx, h.Entry.ClientID, h.Entry.Amount); err != nil {
			return err
		}
		if h.EscrowID != "" {
			if _, err := escrow.ResolveTx(ctx, tx, h.EscrowID, escrow.StatusRefunded, h.Entry.CreatedAt); err != nil {
				return err
			}
		}
	}
	if u.Residual != nil {
		// Refunding a hold moves its amount from active_holds to refunded,
		// so the available figure the residual is guarded by is unchanged.
		bal, err := ledger.ContractBalanceTx(ctx, tx, u.Contract.ID)
		if err != nil {
			return err
		}
		if money.Cmp(bal.Available, u.Residual.Amount) < 0 {
			return ledger.ErrNegativeBalance
		}
		if err := ledger.InsertEntryTx(ctx, tx, u.Residual); err != nil {
			return err
		}
		if err := ledger.BumpClientRefundTx(ctx, tx, u.Residual.ClientID, u.Residual.Amount); err != nil {
			return err
		}
	}
	if err := contract.UpdateStatusTx(ctx, tx, u.Contract.ID, contract.StatusRefunded); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit contract refund: %w", err)
	}
	return nil
}
