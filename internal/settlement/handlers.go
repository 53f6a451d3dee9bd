package settlement

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/talentora/talentora/internal/contract"
	"github.com/talentora/talentora/internal/ledger"
	"github.com/talentora/talentora/internal/payment"
	"github.com/talentora/talentora/internal/worklog"
)

// Handler provides the settlement engine's HTTP surface: payment
// initiation, the gateway callback, worklog review, milestone release and
// contract cancellation.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler creates a new settlement handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes sets up settlement routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/payments/initiate", h.InitiatePayment)
	r.POST("/payments/callback", h.Callback)
	r.GET("/payments/:id", h.GetPayment)
	r.GET("/contracts/:id/payments", h.ListContractPayments)
	r.POST("/contracts/:id/cancel", h.CancelContract)
	r.POST("/contracts/:id/milestones/:milestoneId/release", h.ReleaseMilestone)
	r.POST("/worklogs", h.SubmitWorklog)
	r.POST("/worklogs/:id/approve", h.ApproveWorklog)
	r.POST("/worklogs/:id/reject", h.RejectWorklog)
	r.POST("/worklogs/:id/dispute", h.DisputeWorklog)
}

// RegisterAdminRoutes sets up admin-only settlement routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.POST("/admin/worklogs/:id/resolve", h.ResolveWorklogDispute)
}

// InitiatePayment handles POST /payments/initiate
func (h *Handler) InitiatePayment(c *gin.Context) {
	var req InitiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	p, form, err := h.service.InitiatePayment(c.Request.Context(), req)
	switch {
	case errors.Is(err, contract.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "contract_not_found", "message": "Contract not found"})
	case errors.Is(err, contract.ErrMilestoneNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "milestone_not_found", "message": "Milestone not found"})
	case errors.Is(err, ErrNotContractClient):
		c.JSON(http.StatusForbidden, gin.H{"error": "not_contract_client", "message": "Only the contract's client can fund it"})
	case errors.Is(err, ErrNotFundable), errors.Is(err, ErrMilestoneNotFundable),
		errors.Is(err, ErrZeroAmount), errors.Is(err, payment.ErrHourlyTermsUnset),
		errors.Is(err, payment.ErrBudgetUnset):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "not_fundable", "message": err.Error()})
	case err != nil:
		h.logger.Error("payment initiation failed", "contract", req.ContractID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "initiate_error", "message": "Failed to initiate payment"})
	default:
		c.JSON(http.StatusCreated, gin.H{"payment": p, "gateway": form})
	}
}

// Callback handles POST /payments/callback
//
// The gateway posts the payer's browser here after the payment page. The
// response is always a redirect; the target encodes the outcome so the
// frontend can react without parsing backend errors.
func (h *Handler) Callback(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		h.logger.Warn("unparseable gateway callback", "error", err)
	}
	res := h.service.HandleCallback(c.Request.Context(), c.Request.Form)
	c.Redirect(http.StatusFound, res.RedirectURL)
}

// GetPayment handles GET /payments/:id
func (h *Handler) GetPayment(c *gin.Context) {
	id := c.Param("id")
	p, err := h.service.payments.Get(c.Request.Context(), id)
	switch {
	case errors.Is(err, payment.ErrPaymentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "payment_not_found", "message": "Payment not found"})
	case err != nil:
		h.logger.Error("payment query failed", "payment", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "payment_error", "message": "Failed to retrieve payment"})
	default:
		c.JSON(http.StatusOK, p)
	}
}

// ListContractPayments handles GET /contracts/:id/payments
func (h *Handler) ListContractPayments(c *gin.Context) {
	id := c.Param("id")
	payments, err := h.service.payments.ListByContract(c.Request.Context(), id, 50)
	if err != nil {
		h.logger.Error("payment list failed", "contract", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "payment_error", "message": "Failed to list payments"})
		return
	}
	if payments == nil {
		payments = []*payment.Payment{}
	}
	c.JSON(http.StatusOK, gin.H{"contractId": id, "payments": payments, "count": len(payments)})
}

type actorRequest struct {
	ActorID string `json:"actorId" binding:"required"`
}

// CancelContract handles POST /contracts/:id/cancel
func (h *Handler) CancelContract(c *gin.Context) {
	var req actorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	id := c.Param("id")
	out, err := h.service.CancelContract(c.Request.Context(), id, req.ActorID)
	switch {
	case errors.Is(err, contract.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "contract_not_found", "message": "Contract not found"})
	case errors.Is(err, ErrNotContractClient):
		c.JSON(http.StatusForbidden, gin.H{"error": "not_contract_client", "message": "Only the contract's client can cancel it"})
	case errors.Is(err, ErrContractClosed):
		c.JSON(http.StatusConflict, gin.H{"error": "contract_closed", "message": err.Error()})
	case err != nil:
		h.logger.Error("cancellation failed", "contract", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cancel_error", "message": "Failed to cancel contract"})
	default:
		c.JSON(http.StatusOK, out)
	}
}

// ReleaseMilestone handles POST /contracts/:id/milestones/:milestoneId/release
func (h *Handler) ReleaseMilestone(c *gin.Context) {
	var req actorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	contractID := c.Param("id")
	milestoneID := c.Param("milestoneId")
	u, err := h.service.ReleaseMilestone(c.Request.Context(), contractID, milestoneID, req.ActorID)
	switch {
	case errors.Is(err, contract.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "contract_not_found", "message": "Contract not found"})
	case errors.Is(err, contract.ErrMilestoneNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "milestone_not_found", "message": "Milestone not found"})
	case errors.Is(err, ErrNotContractClient):
		c.JSON(http.StatusForbidden, gin.H{"error": "not_contract_client", "message": "Only the contract's client can release a milestone"})
	case errors.Is(err, ErrMilestoneNotPayable), errors.Is(err, ErrNoFundingHold):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "not_releasable", "message": err.Error()})
	case errors.Is(err, ledger.ErrHoldAlreadyResolved):
		c.JSON(http.StatusConflict, gin.H{"error": "hold_resolved", "message": "Milestone hold already resolved"})
	case err != nil:
		h.logger.Error("milestone release failed",
			"contract", contractID, "milestone", milestoneID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "release_error", "message": "Failed to release milestone"})
	default:
		c.JSON(http.StatusOK, gin.H{
			"contractId":  contractID,
			"milestoneId": milestoneID,
			"gross":       u.Gross,
			"release":     u.Release,
			"commission":  u.Commission,
		})
	}
}

// SubmitWorklog handles POST /worklogs
func (h *Handler) SubmitWorklog(c *gin.Context) {
	var req SubmitWorklogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	w, err := h.service.SubmitWorklog(c.Request.Context(), req)
	switch {
	case errors.Is(err, contract.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "contract_not_found", "message": "Contract not found"})
	case errors.Is(err, ErrNotContractFreelancer):
		c.JSON(http.StatusForbidden, gin.H{"error": "not_contract_freelancer", "message": "Only the contract's freelancer can log work"})
	case errors.Is(err, ErrInvalidWorklogState), errors.Is(err, ErrInvalidDuration):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid_worklog", "message": err.Error()})
	case err != nil:
		h.logger.Error("worklog submission failed", "contract", req.ContractID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "worklog_error", "message": "Failed to submit worklog"})
	default:
		c.JSON(http.StatusCreated, w)
	}
}

func (h *Handler) reviewWorklog(c *gin.Context, review func(ctx *gin.Context, id, actor string) (*worklog.Worklog, error)) {
	var req actorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	id := c.Param("id")
	w, err := review(c, id, req.ActorID)
	switch {
	case errors.Is(err, worklog.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "worklog_not_found", "message": "Worklog not found"})
	case errors.Is(err, ErrNotContractClient), errors.Is(err, ErrNotContractFreelancer):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "Actor may not review this worklog"})
	case errors.Is(err, ErrInvalidWorklogState), errors.Is(err, worklog.ErrNotPending),
		errors.Is(err, ledger.ErrDuplicateHold):
		c.JSON(http.StatusConflict, gin.H{"error": "invalid_state", "message": err.Error()})
	case errors.Is(err, ledger.ErrNegativeBalance):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "insufficient_balance",
			"message": "Contract balance cannot cover this worklog; fund the contract first",
		})
	case err != nil:
		h.logger.Error("worklog review failed", "worklog", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "worklog_error", "message": "Failed to update worklog"})
	default:
		c.JSON(http.StatusOK, w)
	}
}

// ApproveWorklog handles POST /worklogs/:id/approve
func (h *Handler) ApproveWorklog(c *gin.Context) {
	h.reviewWorklog(c, func(ctx *gin.Context, id, actor string) (*worklog.Worklog, error) {
		return h.service.ApproveWorklog(ctx.Request.Context(), id, actor)
	})
}

// RejectWorklog handles POST /worklogs/:id/reject
func (h *Handler) RejectWorklog(c *gin.Context) {
	h.reviewWorklog(c, func(ctx *gin.Context, id, actor string) (*worklog.Worklog, error) {
		return h.service.RejectWorklog(ctx.Request.Context(), id, actor)
	})
}

// DisputeWorklog handles POST /worklogs/:id/dispute
func (h *Handler) DisputeWorklog(c *gin.Context) {
	h.reviewWorklog(c, func(ctx *gin.Context, id, actor string) (*worklog.Worklog, error) {
		return h.service.DisputeWorklog(ctx.Request.Context(), id, actor)
	})
}

type resolveDisputeRequest struct {
	// Resolution is "release" (pay the freelancer) or "refund" (return the
	// hold to the client).
	Resolution string `json:"resolution" binding:"required,oneof=release refund"`
}

// ResolveWorklogDispute handles POST /admin/worklogs/:id/resolve
func (h *Handler) ResolveWorklogDispute(c *gin.Context) {
	var req resolveDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	id := c.Param("id")
	err := h.service.ResolveWorklogDispute(c.Request.Context(), id, req.Resolution == "release")
	switch {
	case errors.Is(err, worklog.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "worklog_not_found", "message": "Worklog not found"})
	case errors.Is(err, ErrInvalidWorklogState):
		c.JSON(http.StatusConflict, gin.H{"error": "invalid_state", "message": err.Error()})
	case errors.Is(err, ErrNoFundingHold):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "no_funding_hold", "message": err.Error()})
	case err != nil:
		h.logger.Error("dispute resolution failed", "worklog", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "resolve_error", "message": "Failed to resolve dispute"})
	default:
		h.logger.Info("worklog dispute resolved", "worklog", id, "resolution", req.Resolution)
		c.JSON(http.StatusOK, gin.H{"worklogId": id, "resolution": req.Resolution})
	}
}
