// Package settlement is the contract financial settlement engine: it
// orchestrates funding through the payment gateway, worklog and milestone
// payouts, and cancellation, composing the contract, worklog, payment,
// ledger and escrow collaborators into atomic units of work.
//
// The engine never sums balances in application code for authorization
// decisions; guards run against the ledger aggregate inside the same unit
// that writes.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/talentora/talentora/internal/cancellation"
	"github.com/talentora/talentora/internal/contract"
	"github.com/talentora/talentora/internal/escrow"
	"github.com/talentora/talentora/internal/gateway"
	"github.com/talentora/talentora/internal/idgen"
	"github.com/talentora/talentora/internal/ledger"
	"github.com/talentora/talentora/internal/metrics"
	"github.com/talentora/talentora/internal/money"
	"github.com/talentora/talentora/internal/payment"
	"github.com/talentora/talentora/internal/traces"
	"github.com/talentora/talentora/internal/worklog"
)

var (
	ErrNotContractClient     = errors.New("actor is not the contract's client")
	ErrNotContractFreelancer = errors.New("actor is not the contract's freelancer")
	ErrNotFundable           = errors.New("contract is not in a fundable state")
	ErrContractClosed        = errors.New("contract is already closed")
	ErrZeroAmount            = errors.New("computed payment amount is not positive")
	ErrMilestoneNotFundable  = errors.New("milestone is not in a fundable state")
	ErrMilestoneNotPayable   = errors.New("milestone has no unreleased funding")
	ErrAmountMismatch        = errors.New("callback amount does not match payment")
	ErrNoFundingHold         = errors.New("no open funding hold for unit of work")
	ErrInvalidWorklogState   = errors.New("worklog is not in a state that allows this action")
	ErrInvalidDuration       = errors.New("worklog duration must be positive")
)

// Deps collects the engine's collaborators.
type Deps struct {
	Contracts contract.Store
	Worklogs  worklog.Store
	Payments  payment.Store
	Ledger    *ledger.Ledger
	Escrows   *escrow.Service
	Gateway   *gateway.Client
	Units     UnitStore

	CommissionRateBps int64
	DisputeWindow     time.Duration
	Logger            *slog.Logger
}

// Service is the settlement engine.
type Service struct {
	contracts contract.Store
	worklogs  worklog.Store
	payments  payment.Store
	ledger    *ledger.Ledger
	escrows   *escrow.Service
	gw        *gateway.Client
	units     UnitStore

	commissionRateBps int64
	disputeWindow     time.Duration
	logger            *slog.Logger
}

// NewService creates the settlement engine.
func NewService(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		contracts:         d.Contracts,
		worklogs:          d.Worklogs,
		payments:          d.Payments,
		ledger:            d.Ledger,
		escrows:           d.Escrows,
		gw:                d.Gateway,
		units:             d.Units,
		commissionRateBps: d.CommissionRateBps,
		disputeWindow:     d.DisputeWindow,
		logger:            logger.With("component", "settlement"),
	}
}

// InitiateRequest starts a funding payment for a contract.
type InitiateRequest struct {
	ContractID  string `json:"contractId" binding:"required"`
	MilestoneID string `json:"milestoneId,omitempty"`
	ClientID    string `json:"clientId" binding:"required"`
	FirstName   string `json:"firstName" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	Phone       string `json:"phone,omitempty"`
}

// InitiatePayment computes the funding amount for the contract's payment
// type, records a pending payment and returns the signed gateway form the
// client posts. No money moves until the gateway calls back.
func (s *Service) InitiatePayment(ctx context.Context, req InitiateRequest) (*payment.Payment, *gateway.PaymentRequest, error) {
	c, err := s.contracts.FindByID(ctx, req.ContractID)
	if err != nil {
		return nil, nil, err
	}
	if c.ClientID != req.ClientID {
		return nil, nil, ErrNotContractClient
	}
	switch c.Status {
	case contract.StatusPending, contract.StatusActive, contract.StatusHeld:
	default:
		return nil, nil, fmt.Errorf("%w: status %s", ErrNotFundable, c.Status)
	}

	purpose := payment.PurposeContractFunding
	switch c.PaymentType {
	case contract.PaymentTypeHourly:
		purpose = payment.PurposeHourlyAdvance
	case contract.PaymentTypeMilestone:
		purpose = payment.PurposeMilestoneFunding
		m := c.MilestoneByID(req.MilestoneID)
		if m == nil {
			return nil, nil, contract.ErrMilestoneNotFound
		}
		if m.Status != contract.MilestonePending {
			return nil, nil, fmt.Errorf("%w: status %s", ErrMilestoneNotFundable, m.Status)
		}
	}

	strat, err := payment.StrategyFor(c.PaymentType)
	if err != nil {
		return nil, nil, err
	}
	amount, err := strat.Calculate(payment.AmountContext{Contract: c, MilestoneID: req.MilestoneID})
	if err != nil {
		return nil, nil, err
	}
	if !money.IsPositive(amount) {
		return nil, nil, ErrZeroAmount
	}

	p := payment.New(c.ID, req.MilestoneID, c.ClientID, c.FreelancerID, amount, purpose)
	if err := s.payments.Create(ctx, p); err != nil {
		return nil, nil, err
	}

	form := s.gw.BuildPaymentRequest(gateway.PaymentParams{
		TxnID:       p.ID,
		Amount:      amount,
		ProductInfo: "Contract funding",
		FirstName:   req.FirstName,
		Email:       req.Email,
		Phone:       req.Phone,
		UDF1:        c.ID,
		UDF2:        string(purpose),
		UDF3:        req.MilestoneID,
	})

	s.logger.Info("payment initiated",
		"payment_id", p.ID,
		"contract_id", c.ID,
		"purpose", purpose,
		"amount", amount)
	return p, form, nil
}

// CallbackResult reports how a gateway callback was handled. RedirectURL is
// always set: the payer's browser gets a redirect no matter what went wrong
// on our side.
type CallbackResult struct {
	RedirectURL string
	// Outcome is applied, duplicate or rejected.
	Outcome string
	Payment *payment.Payment
}

const (
	outcomeApplied   = "applied"
	outcomeDuplicate = "duplicate"
	outcomeRejected  = "rejected"
)

// HandleCallback verifies and applies one gateway callback. Success
// callbacks run the funding unit; failure callbacks finalize the payment
// with no money movement. A retried callback for an already-terminal
// payment is a no-op success.
func (s *Service) HandleCallback(ctx context.Context, form url.Values) *CallbackResult {
	txnID := form.Get("txnid")
	ctx, span := traces.StartSpan(ctx, "settlement.HandleCallback", traces.PaymentID(txnID))
	defer span.End()
	cb, err := s.gw.VerifyCallback(form)
	if err != nil {
		s.logger.Warn("callback rejected", "txn_id", txnID, "error", err)
		metrics.CallbacksTotal.WithLabelValues(outcomeRejected).Inc()
		return &CallbackResult{
			RedirectURL: s.gw.RedirectURL(false, txnID),
			Outcome:     outcomeRejected,
		}
	}

	if !cb.Success() {
		return s.applyFailedPayment(ctx, cb)
	}

	out, err := s.units.ApplyPaymentSuccess(ctx, cb.TxnID, cb.Amount, cb.Raw)
	if err != nil {
		s.logger.Error("callback funding unit failed",
			"txn_id", cb.TxnID, "amount", cb.Amount, "error", err)
		metrics.CallbacksTotal.WithLabelValues(outcomeRejected).Inc()
		return &CallbackResult{
			RedirectURL: s.gw.RedirectURL(false, cb.TxnID),
			Outcome:     outcomeRejected,
		}
	}
	if out.AlreadyTerminal {
		metrics.CallbacksTotal.WithLabelValues(outcomeDuplicate).Inc()
		return &CallbackResult{
			RedirectURL: s.gw.RedirectURL(out.Payment.Status == payment.StatusSuccess, cb.TxnID),
			Outcome:     outcomeDuplicate,
			Payment:     out.Payment,
		}
	}

	metrics.CallbacksTotal.WithLabelValues(outcomeApplied).Inc()
	metrics.PaymentsTotal.WithLabelValues(string(payment.StatusSuccess)).Inc()
	s.logger.Info("payment applied",
		"payment_id", out.Payment.ID,
		"contract_id", out.Payment.ContractID,
		"amount", out.Payment.Amount,
		"contract_status", out.ContractStatus)
	return &CallbackResult{
		RedirectURL: s.gw.RedirectURL(true, cb.TxnID),
		Outcome:     outcomeApplied,
		Payment:     out.Payment,
	}
}

func (s *Service) applyFailedPayment(ctx context.Context, cb *gateway.Callback) *CallbackResult {
	res, err := s.payments.Finalize(ctx, cb.TxnID, payment.StatusFailed, cb.Raw)
	if err != nil {
		s.logger.Warn("failure callback for unknown payment", "txn_id", cb.TxnID, "error", err)
		metrics.CallbacksTotal.WithLabelValues(outcomeRejected).Inc()
		return &CallbackResult{
			RedirectURL: s.gw.RedirectURL(false, cb.TxnID),
			Outcome:     outcomeRejected,
		}
	}
	if res.AlreadyTerminal {
		metrics.CallbacksTotal.WithLabelValues(outcomeDuplicate).Inc()
		return &CallbackResult{
			RedirectURL: s.gw.RedirectURL(res.Payment.Status == payment.StatusSuccess, cb.TxnID),
			Outcome:     outcomeDuplicate,
			Payment:     res.Payment,
		}
	}
	metrics.CallbacksTotal.WithLabelValues(outcomeApplied).Inc()
	metrics.PaymentsTotal.WithLabelValues(string(payment.StatusFailed)).Inc()
	s.logger.Info("payment failed", "payment_id", res.Payment.ID, "contract_id", res.Payment.ContractID)
	return &CallbackResult{
		RedirectURL: s.gw.RedirectURL(false, cb.TxnID),
		Outcome:     outcomeApplied,
		Payment:     res.Payment,
	}
}

// SubmitWorklogRequest logs hours against an hourly contract.
type SubmitWorklogRequest struct {
	ContractID      string `json:"contractId" binding:"required"`
	FreelancerID    string `json:"freelancerId" binding:"required"`
	DurationMinutes int64  `json:"durationMinutes" binding:"required"`
	Description     string `json:"description,omitempty"`
}

// SubmitWorklog records a pending worklog awaiting client review.
func (s *Service) SubmitWorklog(ctx context.Context, req SubmitWorklogRequest) (*worklog.Worklog, error) {
	c, err := s.contracts.FindByID(ctx, req.ContractID)
	if err != nil {
		return nil, err
	}
	if c.FreelancerID != req.FreelancerID {
		return nil, ErrNotContractFreelancer
	}
	if c.PaymentType != contract.PaymentTypeHourly {
		return nil, fmt.Errorf("%w: %s contract", ErrInvalidWorklogState, c.PaymentType)
	}
	if c.Status != contract.StatusActive {
		return nil, fmt.Errorf("%w: contract is %s", ErrInvalidWorklogState, c.Status)
	}
	if req.DurationMinutes <= 0 {
		return nil, ErrInvalidDuration
	}
	now := time.Now().UTC()
	w := &worklog.Worklog{
		ID:              idgen.New(),
		ContractID:      c.ID,
		ClientID:        c.ClientID,
		FreelancerID:    c.FreelancerID,
		Description:     req.Description,
		DurationMinutes: req.DurationMinutes,
		Status:          worklog.StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.worklogs.Create(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// ApproveWorklog accepts a pending worklog: a hold for rate x duration is
// earmarked against the contract and the dispute window starts, in one unit
// so a partial approval can never strand a hold. Auto-pay picks the worklog
// up once the window passes. Fails closed with ErrNegativeBalance when the
// contract cannot cover the hold; the client must top up first.
func (s *Service) ApproveWorklog(ctx context.Context, worklogID, clientID string) (*worklog.Worklog, error) {
	ctx, span := traces.StartSpan(ctx, "settlement.ApproveWorklog", traces.WorklogID(worklogID))
	defer span.End()

	w, err := s.worklogs.GetByID(ctx, worklogID)
	if err != nil {
		return nil, err
	}
	if w.ClientID != clientID {
		return nil, ErrNotContractClient
	}
	if w.Status != worklog.StatusPending {
		return nil, fmt.Errorf("%w: worklog is %s", ErrInvalidWorklogState, w.Status)
	}
	c, err := s.contracts.FindByID(ctx, w.ContractID)
	if err != nil {
		return nil, err
	}
	amount, ok := money.MulHours(c.HourlyRate, w.DurationMinutes)
	if !ok || !money.IsPositive(amount) {
		return nil, ErrZeroAmount
	}

	now := time.Now().UTC()
	u := &WorklogApproval{
		Worklog:      w,
		Hold:         approvalHoldEntry(c, w, amount, now),
		WindowEndsAt: now.Add(s.disputeWindow),
	}
	if err := s.units.ApproveWorklog(ctx, u); err != nil {
		return nil, err
	}
	metrics.LedgerEntriesTotal.WithLabelValues(string(ledger.PurposeHold)).Inc()
	s.logger.Info("worklog approved",
		"worklog_id", w.ID, "contract_id", c.ID, "amount", amount,
		"dispute_window_ends_at", u.WindowEndsAt)
	return s.worklogs.GetByID(ctx, w.ID)
}

// RejectWorklog declines a pending worklog. No money has moved yet, so
// nothing is held or released; the freelancer may dispute.
func (s *Service) RejectWorklog(ctx context.Context, worklogID, clientID string) (*worklog.Worklog, error) {
	w, err := s.worklogs.GetByID(ctx, worklogID)
	if err != nil {
		return nil, err
	}
	if w.ClientID != clientID {
		return nil, ErrNotContractClient
	}
	if w.Status != worklog.StatusPending {
		return nil, fmt.Errorf("%w: worklog is %s", ErrInvalidWorklogState, w.Status)
	}
	if err := s.worklogs.UpdateStatus(ctx, w.ID, worklog.StatusRejected); err != nil {
		return nil, err
	}
	return s.worklogs.GetByID(ctx, w.ID)
}

// DisputeWorklog escalates a worklog to human resolution. Two paths exist:
// the freelancer contests a rejection, or the client contests an approved
// worklog before auto-pay fires. The second path freezes the hold so the
// settlement job cannot release it mid-dispute.
func (s *Service) DisputeWorklog(ctx context.Context, worklogID, actorID string) (*worklog.Worklog, error) {
	w, err := s.worklogs.GetByID(ctx, worklogID)
	if err != nil {
		return nil, err
	}
	switch {
	case w.Status == worklog.StatusRejected && actorID == w.FreelancerID:
		// no hold exists yet
	case w.Status == worklog.StatusApproved && actorID == w.ClientID:
		hold, err := s.ledger.FindOpenHold(ctx, w.ContractID, ledger.HoldRef{WorklogID: w.ID})
		if err != nil {
			return nil, fmt.Errorf("%w: worklog %s", ErrNoFundingHold, w.ID)
		}
		if err := s.ledger.FreezeHold(ctx, hold.ID); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: worklog is %s", ErrInvalidWorklogState, w.Status)
	}
	if err := s.worklogs.UpdateStatus(ctx, w.ID, worklog.StatusDisputed); err != nil {
		return nil, err
	}
	s.logger.Info("worklog disputed", "worklog_id", w.ID, "actor_id", actorID)
	return s.worklogs.GetByID(ctx, w.ID)
}

// SettleWorklog pays out one eligible worklog. The claim flip to processing
// is the cross-run lock: when two sweeps overlap, exactly one wins the claim
// and the other sees ErrAlreadyClaimed. A failed unit releases the claim so
// a later sweep retries.
func (s *Service) SettleWorklog(ctx context.Context, w *worklog.Worklog) error {
	ctx, span := traces.StartSpan(ctx, "settlement.SettleWorklog",
		traces.WorklogID(w.ID), traces.ContractID(w.ContractID))
	defer span.End()

	if err := s.worklogs.Claim(ctx, w.ID); err != nil {
		return err
	}
	if err := s.settleClaimed(ctx, w); err != nil {
		if relErr := s.worklogs.ReleaseClaim(ctx, w.ID); relErr != nil {
			s.logger.Error("releasing worklog claim failed",
				"worklog_id", w.ID, "error", relErr)
		}
		return err
	}
	return nil
}

func (s *Service) settleClaimed(ctx context.Context, w *worklog.Worklog) error {
	hold, err := s.ledger.FindOpenHold(ctx, w.ContractID, ledger.HoldRef{WorklogID: w.ID})
	if err != nil {
		if errors.Is(err, ledger.ErrHoldNotFound) {
			return fmt.Errorf("%w: worklog %s", ErrNoFundingHold, w.ID)
		}
		return err
	}
	if hold.Status != ledger.StatusActiveHold {
		// frozen_dispute: leave for human resolution
		return fmt.Errorf("%w: hold %s is %s", ErrInvalidWorklogState, hold.ID, hold.Status)
	}

	// The hold amount was computed from the same rate and duration at
	// approval time and is the authoritative gross.
	gross := hold.Amount
	commission, net, ok := money.Commission(gross, s.commissionRateBps)
	if !ok {
		return fmt.Errorf("computing commission on %q", gross)
	}
	release, cut := settlementPair(hold, net, commission, "Worklog auto-settlement")
	u := &WorklogSettlement{
		Worklog:    w,
		HoldID:     hold.ID,
		Gross:      gross,
		Release:    release,
		Commission: cut,
	}
	if err := s.units.SettleWorklog(ctx, u); err != nil {
		return err
	}
	s.logger.Info("worklog settled",
		"worklog_id", w.ID,
		"contract_id", w.ContractID,
		"gross", gross,
		"net", net,
		"commission", commission)
	return nil
}

// ReleaseMilestone pays out a funded milestone: the client accepts the
// deliverable, the milestone's hold resolves to the freelancer with the
// platform cut split off, and the legacy escrow record resolves alongside.
func (s *Service) ReleaseMilestone(ctx context.Context, contractID, milestoneID, clientID string) (*MilestoneRelease, error) {
	ctx, span := traces.StartSpan(ctx, "settlement.ReleaseMilestone",
		traces.ContractID(contractID), traces.Reference(milestoneID))
	defer span.End()

	c, err := s.contracts.FindByID(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if c.ClientID != clientID {
		return nil, ErrNotContractClient
	}
	m := c.MilestoneByID(milestoneID)
	if m == nil {
		return nil, contract.ErrMilestoneNotFound
	}
	if m.Status == contract.MilestonePending || m.Status == contract.MilestonePaid {
		return nil, fmt.Errorf("%w: milestone is %s", ErrMilestoneNotPayable, m.Status)
	}

	hold, err := s.ledger.FindOpenHold(ctx, contractID, ledger.HoldRef{MilestoneID: milestoneID})
	if err != nil {
		return nil, fmt.Errorf("%w: milestone %s", ErrNoFundingHold, milestoneID)
	}
	gross := hold.Amount
	commission, net, ok := money.Commission(gross, s.commissionRateBps)
	if !ok {
		return nil, fmt.Errorf("computing commission on %q", gross)
	}

	escrowID := ""
	if esc, err := s.escrows.FindHeldByMilestone(ctx, contractID, milestoneID); err == nil {
		escrowID = esc.ID
	} else if !errors.Is(err, escrow.ErrEscrowNotFound) {
		return nil, err
	}

	release, cut := settlementPair(hold, net, commission, "Milestone released")
	u := &MilestoneRelease{
		Contract:    c,
		MilestoneID: milestoneID,
		EscrowID:    escrowID,
		HoldID:      hold.ID,
		Gross:       gross,
		Release:     release,
		Commission:  cut,
	}
	if err := s.units.ReleaseMilestone(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Info("milestone released",
		"contract_id", contractID,
		"milestone_id", milestoneID,
		"gross", gross,
		"net", net,
		"commission", commission)
	return u, nil
}

// CancelContract applies the cancellation policy for the contract's payment
// type. Zero work product refunds the remaining balance; any delivered or
// in-review work escalates to a dispute instead of moving money.
func (s *Service) CancelContract(ctx context.Context, contractID, actorID string) (*cancellation.Outcome, error) {
	ctx, span := traces.StartSpan(ctx, "settlement.CancelContract", traces.ContractID(contractID))
	defer span.End()

	c, err := s.contracts.FindByID(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if c.ClientID != actorID {
		return nil, ErrNotContractClient
	}
	switch c.Status {
	case contract.StatusCancelled, contract.StatusRefunded,
		contract.StatusDisputed, contract.StatusCompleted:
		return nil, fmt.Errorf("%w: status %s", ErrContractClosed, c.Status)
	}

	counts, err := s.worklogs.CountByContract(ctx, contractID)
	if err != nil {
		return nil, err
	}
	strat, err := cancellation.StrategyFor(c.PaymentType)
	if err != nil {
		return nil, err
	}
	out := strat.Evaluate(cancellation.Context{
		Contract:    c,
		Worklogs:    counts,
		TotalFunded: c.TotalFunded,
	})

	if out.RequiresDispute {
		if err := s.contracts.UpdateStatus(ctx, contractID, contract.StatusDisputed); err != nil {
			return nil, err
		}
		metrics.CancellationsTotal.WithLabelValues("disputed").Inc()
		s.logger.Info("cancellation escalated to dispute",
			"contract_id", contractID, "reason", out.Reason)
		return &out, nil
	}

	// Refund path: the policy only fires with zero work product, so
	// everything the contract still carries goes back. Funded-but-untouched
	// milestone holds resolve to the client inside the same unit; whatever
	// the ledger still shows as available follows as the residual.
	holds, holdTotal, err := s.refundableHolds(ctx, c, "Contract cancelled: "+out.Reason)
	if err != nil {
		return nil, err
	}
	bal, err := s.ledger.ContractBalance(ctx, contractID)
	if err != nil {
		return nil, err
	}
	total := holdTotal
	var residual *ledger.Entry
	if money.IsPositive(bal.Available) {
		residual = refundEntry(c, bal.Available, "Contract cancelled: "+out.Reason)
		total = money.Add(total, bal.Available)
	}
	if !money.IsPositive(total) {
		if err := s.contracts.UpdateStatus(ctx, contractID, contract.StatusCancelled); err != nil {
			return nil, err
		}
		out.RefundAmount = "0.00"
		metrics.CancellationsTotal.WithLabelValues("cancelled").Inc()
		return &out, nil
	}

	u := &ContractRefund{Contract: c, Holds: holds, Residual: residual}
	if err := s.units.RefundContract(ctx, u); err != nil {
		return nil, err
	}
	out.RefundAmount = total
	metrics.CancellationsTotal.WithLabelValues("refunded").Inc()
	s.logger.Info("contract cancelled with refund",
		"contract_id", contractID, "amount", total, "reason", out.Reason)
	return &out, nil
}

// refundableHolds collects the open hold, and escrow record when one exists,
// for each funded milestone so cancellation can return the money. Frozen
// holds are skipped; those belong to dispute resolution.
func (s *Service) refundableHolds(ctx context.Context, c *contract.Contract, reason string) ([]HoldRefund, string, error) {
	total := "0.00"
	if c.PaymentType != contract.PaymentTypeMilestone {
		return nil, total, nil
	}
	var holds []HoldRefund
	for _, m := range c.Milestones {
		if m.Status != contract.MilestoneFunded {
			continue
		}
		hold, err := s.ledger.FindOpenHold(ctx, c.ID, ledger.HoldRef{MilestoneID: m.ID})
		if err != nil {
			if errors.Is(err, ledger.ErrHoldNotFound) {
				continue
			}
			return nil, "", err
		}
		if hold.Status != ledger.StatusActiveHold {
			continue
		}
		hr := HoldRefund{HoldID: hold.ID, Entry: holdRefundEntry(hold, reason)}
		if esc, err := s.escrows.FindHeldByMilestone(ctx, c.ID, m.ID); err == nil {
			hr.EscrowID = esc.ID
		} else if !errors.Is(err, escrow.ErrEscrowNotFound) {
			return nil, "", err
		}
		holds = append(holds, hr)
		total = money.Add(total, hold.Amount)
	}
	return holds, total, nil
}

// ResolveWorklogDispute settles a disputed worklog by releasing its hold to
// the freelancer or refunding it to the client. Splits go through the
// ledger's split operation directly.
func (s *Service) ResolveWorklogDispute(ctx context.Context, worklogID string, releaseToFreelancer bool) error {
	w, err := s.worklogs.GetByID(ctx, worklogID)
	if err != nil {
		return err
	}
	if w.Status != worklog.StatusDisputed {
		return fmt.Errorf("%w: worklog is %s", ErrInvalidWorklogState, w.Status)
	}
	hold, err := s.ledger.FindOpenHold(ctx, w.ContractID, ledger.HoldRef{WorklogID: w.ID})
	if err != nil {
		if !errors.Is(err, ledger.ErrHoldNotFound) {
			return err
		}
		// Rejected-then-disputed worklogs never had a hold. Releasing
		// without one is impossible; refusing costs nothing.
		if releaseToFreelancer {
			return fmt.Errorf("%w: worklog %s", ErrNoFundingHold, w.ID)
		}
		return s.worklogs.UpdateStatus(ctx, w.ID, worklog.StatusRejected)
	}

	if releaseToFreelancer {
		commission, net, ok := money.Commission(hold.Amount, s.commissionRateBps)
		if !ok {
			return fmt.Errorf("computing commission on %q", hold.Amount)
		}
		release, cut := settlementPair(hold, net, commission, "Dispute resolved to freelancer")
		u := &WorklogSettlement{
			Worklog:    w,
			HoldID:     hold.ID,
			Gross:      hold.Amount,
			Release:    release,
			Commission: cut,
		}
		// The unit expects a claimed worklog; disputed skips the
		// auto-pay claim, so flip it here.
		if err := s.worklogs.UpdateStatus(ctx, w.ID, worklog.StatusProcessing); err != nil {
			return err
		}
		if err := s.units.SettleWorklog(ctx, u); err != nil {
			if relErr := s.worklogs.UpdateStatus(ctx, w.ID, worklog.StatusDisputed); relErr != nil {
				s.logger.Error("restoring disputed worklog failed",
					"worklog_id", w.ID, "error", relErr)
			}
			return err
		}
		return nil
	}

	refund := &ledger.Entry{
		ID:           idgen.WithPrefix(idgen.PrefixLedger),
		ContractID:   hold.ContractID,
		WorklogID:    hold.WorklogID,
		ClientID:     hold.ClientID,
		FreelancerID: hold.FreelancerID,
		Amount:       hold.Amount,
		Purpose:      ledger.PurposeRefund,
		Status:       ledger.StatusCompleted,
		Description:  "Dispute resolved to client",
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.ledger.Store().RefundHold(ctx, hold.ID, refund); err != nil {
		return err
	}
	return s.worklogs.UpdateStatus(ctx, w.ID, worklog.StatusRejected)
}
