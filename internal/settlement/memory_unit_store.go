package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/talentora/talentora/internal/contract"
	"github.com/talentora/talentora/internal/escrow"
	"github.com/talentora/talentora/internal/ledger"
	"github.com/talentora/talentora/internal/money"
	"github.com/talentora/talentora/internal/payment"
	"github.com/talentora/talentora/internal/syncutil"
	"github.com/talentora/talentora/internal/worklog"
)

// MemoryUnitStore composes the in-memory collaborator stores into units of
// work, serialized per contract. It cannot roll back a half-applied unit
// the way the Postgres store can; steps are ordered so the guarded ledger
// write runs first and any later failure leaves money accounted for rather
// than lost. Development and test use only.
type MemoryUnitStore struct {
	contracts contract.Store
	worklogs  worklog.Store
	payments  payment.Store
	ledger    ledger.Store
	escrows   escrow.Store

	locks *syncutil.ContextShardedMutex // keyed by contract ID
}

// NewMemoryUnitStore wires the in-memory unit store.
func NewMemoryUnitStore(contracts contract.Store, worklogs worklog.Store, payments payment.Store, lstore ledger.Store, escrows escrow.Store) *MemoryUnitStore {
	return &MemoryUnitStore{
		contracts: contracts,
		worklogs:  worklogs,
		payments:  payments,
		ledger:    lstore,
		escrows:   escrows,
		locks:     syncutil.NewContextShardedMutex(),
	}
}

func (m *MemoryUnitStore) ApplyPaymentSuccess(ctx context.Context, paymentID, amount, payload string) (*FundingOutcome, error) {
	p, err := m.payments.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	unlock, err := m.locks.LockContext(ctx, p.ContractID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if money.Cmp(p.Amount, amount) != 0 {
		return nil, fmt.Errorf("%w: payment %s expects %s, gateway reported %s",
			ErrAmountMismatch, p.ID, p.Amount, amount)
	}

	res, err := m.payments.Finalize(ctx, paymentID, payment.StatusSuccess, payload)
	if err != nil {
		return nil, err
	}
	if res.AlreadyTerminal {
		return &FundingOutcome{Payment: res.Payment, AlreadyTerminal: true}, nil
	}
	p = res.Payment

	c, err := m.contracts.FindByID(ctx, p.ContractID)
	if err != nil {
		return nil, err
	}

	entry := fundingEntry(p)
	if err := m.ledger.RecordFunding(ctx, entry); err != nil {
		return nil, err
	}
	if err := m.contracts.ApplyFunding(ctx, c.ID, p.Amount); err != nil {
		return nil, err
	}

	status := c.Status
	if c.Status == contract.StatusPending || c.Status == contract.StatusHeld {
		status = ActivationStatus(c, money.Add(c.Balance, p.Amount))
		if status != c.Status {
			if err := m.contracts.UpdateStatus(ctx, c.ID, status); err != nil {
				return nil, err
			}
		}
	}

	out := &FundingOutcome{Payment: p, ContractStatus: status, Entry: entry}
	if p.Purpose == payment.PurposeMilestoneFunding {
		if err := m.contracts.UpdateMilestoneFundedAmount(ctx, c.ID, p.MilestoneID, p.Amount); err != nil {
			return nil, err
		}
		hold := milestoneHoldEntry(p)
		if err := m.ledger.RecordHold(ctx, hold); err != nil {
			return nil, err
		}
		esc := milestoneEscrow(p)
		if err := m.escrows.Create(ctx, esc); err != nil {
			return nil, err
		}
		out.Hold = hold
		out.Escrow = esc
	}
	return out, nil
}

func (m *MemoryUnitStore) ApproveWorklog(ctx context.Context, u *WorklogApproval) error {
	unlock, err := m.locks.LockContext(ctx, u.Hold.ContractID)
	if err != nil {
		return err
	}
	defer unlock()

	w, err := m.worklogs.GetByID(ctx, u.Worklog.ID)
	if err != nil {
		return err
	}
	if w.Status != worklog.StatusPending {
		return worklog.ErrNotPending
	}
	if _, err := m.ledger.FindOpenHold(ctx, u.Hold.ContractID, ledger.HoldRef{WorklogID: w.ID}); err == nil {
		return ledger.ErrDuplicateHold
	} else if !errors.Is(err, ledger.ErrHoldNotFound) {
		return err
	}
	if err := m.ledger.RecordHold(ctx, u.Hold); err != nil {
		return err
	}
	if err := m.worklogs.UpdateDisputeWindowEnd(ctx, w.ID, u.WindowEndsAt); err != nil {
		return err
	}
	return m.worklogs.UpdateStatus(ctx, w.ID, worklog.StatusApproved)
}

func (m *MemoryUnitStore) SettleWorklog(ctx context.Context, u *WorklogSettlement) error {
	unlock, err := m.locks.LockContext(ctx, u.Worklog.ContractID)
	if err != nil {
		return err
	}
	defer unlock()

	w, err := m.worklogs.GetByID(ctx, u.Worklog.ID)
	if err != nil {
		return err
	}
	if w.Status != worklog.StatusProcessing {
		return worklog.ErrAlreadyClaimed
	}
	if err := m.ledger.SettleHold(ctx, u.HoldID, u.Release, u.Commission); err != nil {
		return err
	}
	if err := m.contracts.DebitBalance(ctx, w.ContractID, u.Gross); err != nil {
		return err
	}
	return m.worklogs.UpdateStatus(ctx, w.ID, worklog.StatusPaid)
}

func (m *MemoryUnitStore) ReleaseMilestone(ctx context.Context, u *MilestoneRelease) error {
	unlock, err := m.locks.LockContext(ctx, u.Contract.ID)
	if err != nil {
		return err
	}
	defer unlock()

	if err := m.ledger.SettleHold(ctx, u.HoldID, u.Release, u.Commission); err != nil {
		return err
	}
	if err := m.contracts.DebitBalance(ctx, u.Contract.ID, u.Gross); err != nil {
		return err
	}
	if u.EscrowID != "" {
		if _, err := m.escrows.Resolve(ctx, u.EscrowID, escrow.StatusReleased, u.Release.CreatedAt); err != nil {
			return err
		}
	}
	return m.contracts.UpdateMilestoneStatus(ctx, u.Contract.ID, u.MilestoneID, contract.MilestonePaid)
}

func (m *MemoryUnitStore) RefundContract(ctx context.Context, u *ContractRefund) error {
	unlock, err := m.locks.LockContext(ctx, u.Contract.ID)
	if err != nil {
		return err
	}
	defer unlock()

	for _, h := range u.Holds {
		if err := m.ledger.RefundHold(ctx, h.HoldID, h.Entry); err != nil {
			return err
		}
		if h.EscrowID != "" {
			if _, err := m.escrows.Resolve(ctx, h.EscrowID, escrow.StatusRefunded, h.Entry.CreatedAt); err != nil {
				return err
			}
		}
	}
	if u.Residual != nil {
		if err := m.ledger.RecordRefund(ctx, u.Residual); err != nil {
			return err
		}
	}
	return m.contracts.UpdateStatus(ctx, u.Contract.ID, contract.StatusRefunded)
}
