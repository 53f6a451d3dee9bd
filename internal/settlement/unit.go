package settlement

import (
	"context"
	"time"

	"github.com/talentora/talentora/internal/contract"
	"github.com/talentora/talentora/internal/escrow"
	"github.com/talentora/talentora/internal/idgen"
	"github.com/talentora/talentora/internal/ledger"
	"github.com/talentora/talentora/internal/money"
	"github.com/talentora/talentora/internal/payment"
	"github.com/talentora/talentora/internal/worklog"
)

// FundingOutcome reports what ApplyPaymentSuccess did.
type FundingOutcome struct {
	Payment *payment.Payment
	// AlreadyTerminal means the gateway retried a callback for a payment
	// that was finalized earlier; nothing was written.
	AlreadyTerminal bool
	ContractStatus  contract.Status
	Entry           *ledger.Entry  // funding entry, nil when AlreadyTerminal
	Hold            *ledger.Entry  // milestone funding only
	Escrow          *escrow.Escrow // milestone funding only
}

// WorklogSettlement is one fully-computed worklog payout: the claimed
// worklog, its open hold, and the prepared release/commission pair.
type WorklogSettlement struct {
	Worklog    *worklog.Worklog
	HoldID     string
	Gross      string
	Release    *ledger.Entry
	Commission *ledger.Entry
}

// MilestoneRelease is one fully-computed milestone payout. EscrowID may be
// empty when no legacy escrow record exists for the milestone.
type MilestoneRelease struct {
	Contract    *contract.Contract
	MilestoneID string
	EscrowID    string
	HoldID      string
	Gross       string
	Release     *ledger.Entry
	Commission  *ledger.Entry
}

// WorklogApproval is one approved worklog: the hold earmarking its pay and
// the dispute window end that auto-pay waits out.
type WorklogApproval struct {
	Worklog      *worklog.Worklog
	Hold         *ledger.Entry
	WindowEndsAt time.Time
}

// HoldRefund resolves one open hold back to the client during cancellation.
// EscrowID may be empty when no escrow record accompanies the hold.
type HoldRefund struct {
	HoldID   string
	EscrowID string
	Entry    *ledger.Entry
}

// ContractRefund returns a cancelled contract's funds to the client: every
// funded-but-untouched hold refunds in full, then whatever the ledger still
// shows as available follows as the residual. Residual is nil when nothing
// beyond the holds remains.
type ContractRefund struct {
	Contract *contract.Contract
	Holds    []HoldRefund
	Residual *ledger.Entry
}

// UnitStore executes the engine's multi-step money movements. Each method is
// one unit of work: it either applies completely or leaves no trace.
type UnitStore interface {
	// ApplyPaymentSuccess finalizes a pending payment and applies its
	// funding side effects: contract totals, funding ledger entry, client
	// wallet credit, activation decision, and for milestone funding the
	// milestone hold plus escrow record. amount is the gateway-reported
	// figure and must match the payment row exactly.
	ApplyPaymentSuccess(ctx context.Context, paymentID, amount, payload string) (*FundingOutcome, error)
	// ApproveWorklog earmarks the hold, sets the dispute window end and
	// flips the worklog to approved in one unit. The hold is guarded
	// against the contract's available balance and against a duplicate
	// open hold for the same worklog, so a retried approval cannot earmark
	// twice.
	ApproveWorklog(ctx context.Context, u *WorklogApproval) error
	// SettleWorklog pays out one claimed worklog: flip it to paid, resolve
	// the hold, append the release/commission pair, move both wallets and
	// debit the contract balance by the gross.
	SettleWorklog(ctx context.Context, u *WorklogSettlement) error
	// ReleaseMilestone pays out one funded milestone the same way, and
	// resolves the legacy escrow record when one exists.
	ReleaseMilestone(ctx context.Context, u *MilestoneRelease) error
	// RefundContract resolves each listed hold back to the client along
	// with its escrow record, records the residual refund entry, bumps the
	// client wallet's lifetime refunded total and marks the contract
	// refunded. The residual is guarded by the contract's available
	// balance.
	RefundContract(ctx context.Context, u *ContractRefund) error
}

// ActivationStatus decides the post-funding status for a contract that is
// not yet running. Hourly contracts with a balance below one week's
// estimated cost park in held rather than active so the contract cannot be
// run straight into a negative balance.
func ActivationStatus(c *contract.Contract, balance string) contract.Status {
	if c.PaymentType != contract.PaymentTypeHourly {
		return contract.StatusActive
	}
	weekly, ok := money.MulInt(c.HourlyRate, c.EstimatedWeeklyHours)
	if !ok || !money.IsPositive(weekly) {
		return contract.StatusActive
	}
	if money.Cmp(balance, weekly) < 0 {
		return contract.StatusHeld
	}
	return contract.StatusActive
}

// fundingEntry builds the ledger entry matching a successful payment.
func fundingEntry(p *payment.Payment) *ledger.Entry {
	return &ledger.Entry{
		ID:           idgen.WithPrefix(idgen.PrefixLedger),
		ContractID:   p.ContractID,
		PaymentID:    p.ID,
		MilestoneID:  p.MilestoneID,
		ClientID:     p.ClientID,
		FreelancerID: p.FreelancerID,
		Amount:       p.Amount,
		Purpose:      ledger.PurposeFunding,
		Status:       ledger.StatusCompleted,
		Description:  "Contract funding via payment gateway",
		CreatedAt:    time.Now().UTC(),
	}
}

// milestoneHoldEntry earmarks freshly-funded milestone money against the
// milestone until the client releases it.
func milestoneHoldEntry(p *payment.Payment) *ledger.Entry {
	return &ledger.Entry{
		ID:           idgen.WithPrefix(idgen.PrefixLedger),
		ContractID:   p.ContractID,
		PaymentID:    p.ID,
		MilestoneID:  p.MilestoneID,
		ClientID:     p.ClientID,
		FreelancerID: p.FreelancerID,
		Amount:       p.Amount,
		Purpose:      ledger.PurposeHold,
		Status:       ledger.StatusActiveHold,
		Description:  "Milestone funding held",
		CreatedAt:    time.Now().UTC(),
	}
}

// milestoneEscrow builds the legacy escrow record that coexists with the
// ledger hold for milestone-funded contracts.
func milestoneEscrow(p *payment.Payment) *escrow.Escrow {
	now := time.Now().UTC()
	return &escrow.Escrow{
		ID:           idgen.WithPrefix(idgen.PrefixEscrow),
		ContractID:   p.ContractID,
		PaymentID:    p.ID,
		MilestoneID:  p.MilestoneID,
		ClientID:     p.ClientID,
		FreelancerID: p.FreelancerID,
		Amount:       p.Amount,
		Status:       escrow.StatusHeld,
		HeldAt:       now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// settlementPair builds the release/commission pair resolving a hold. The
// release carries the freelancer's net; the commission carries the platform
// cut. Together they consume the hold exactly.
func settlementPair(hold *ledger.Entry, net, commission, description string) (release, cut *ledger.Entry) {
	now := time.Now().UTC()
	release = &ledger.Entry{
		ID:           idgen.WithPrefix(idgen.PrefixLedger),
		ContractID:   hold.ContractID,
		PaymentID:    hold.PaymentID,
		MilestoneID:  hold.MilestoneID,
		WorklogID:    hold.WorklogID,
		ClientID:     hold.ClientID,
		FreelancerID: hold.FreelancerID,
		Amount:       net,
		Purpose:      ledger.PurposeRelease,
		Status:       ledger.StatusCompleted,
		Description:  description,
		CreatedAt:    now,
	}
	cut = &ledger.Entry{
		ID:           idgen.WithPrefix(idgen.PrefixLedger),
		ContractID:   hold.ContractID,
		PaymentID:    hold.PaymentID,
		MilestoneID:  hold.MilestoneID,
		WorklogID:    hold.WorklogID,
		ClientID:     hold.ClientID,
		FreelancerID: hold.FreelancerID,
		Amount:       commission,
		Purpose:      ledger.PurposeCommission,
		Status:       ledger.StatusCompleted,
		Description:  "Platform commission",
		CreatedAt:    now,
	}
	return release, cut
}

// approvalHoldEntry earmarks an approved worklog's pay against the contract
// until the dispute window passes.
func approvalHoldEntry(c *contract.Contract, w *worklog.Worklog, amount string, now time.Time) *ledger.Entry {
	return &ledger.Entry{
		ID:           idgen.WithPrefix(idgen.PrefixLedger),
		ContractID:   c.ID,
		WorklogID:    w.ID,
		ClientID:     c.ClientID,
		FreelancerID: c.FreelancerID,
		Amount:       amount,
		Purpose:      ledger.PurposeHold,
		Status:       ledger.StatusActiveHold,
		Description:  "Worklog approved, funds held for auto-pay",
		CreatedAt:    now,
	}
}

// holdRefundEntry builds the refund entry resolving a hold back to the
// client during cancellation.
func holdRefundEntry(hold *ledger.Entry, reason string) *ledger.Entry {
	return &ledger.Entry{
		ID:           idgen.WithPrefix(idgen.PrefixLedger),
		ContractID:   hold.ContractID,
		PaymentID:    hold.PaymentID,
		MilestoneID:  hold.MilestoneID,
		WorklogID:    hold.WorklogID,
		ClientID:     hold.ClientID,
		FreelancerID: hold.FreelancerID,
		Amount:       hold.Amount,
		Purpose:      ledger.PurposeRefund,
		Status:       ledger.StatusCompleted,
		Description:  reason,
		CreatedAt:    time.Now().UTC(),
	}
}

// refundEntry builds the refund entry for a cancelled contract.
func refundEntry(c *contract.Contract, amount, reason string) *ledger.Entry {
	return &ledger.Entry{
		ID:           idgen.WithPrefix(idgen.PrefixLedger),
		ContractID:   c.ID,
		ClientID:     c.ClientID,
		FreelancerID: c.FreelancerID,
		Amount:       amount,
		Purpose:      ledger.PurposeRefund,
		Status:       ledger.StatusCompleted,
		Description:  reason,
		CreatedAt:    time.Now().UTC(),
	}
}
