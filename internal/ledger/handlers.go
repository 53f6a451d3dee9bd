package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/talentora/talentora/internal/validation"
)

// Handler provides HTTP endpoints for ledger queries and admin resolution.
type Handler struct {
	ledger *Ledger
	logger *slog.Logger
}

// NewHandler creates a new ledger handler.
func NewHandler(ledger *Ledger, logger *slog.Logger) *Handler {
	return &Handler{ledger: ledger, logger: logger}
}

// RegisterRoutes sets up ledger read routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/contracts/:id/balance", h.GetContractBalance)
	r.GET("/contracts/:id/ledger", h.GetHistory)
	r.GET("/wallets/clients/:owner", h.GetClientWallet)
	r.GET("/wallets/freelancers/:owner", h.GetFreelancerWallet)
}

// RegisterAdminRoutes sets up admin-only ledger routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.GET("/admin/wallets/:role/:owner/reconcile", h.Reconcile)
	r.POST("/admin/holds/:id/freeze", h.FreezeHold)
	r.POST("/admin/holds/:id/split", h.SplitHold)
}

// GetContractBalance handles GET /contracts/:id/balance
func (h *Handler) GetContractBalance(c *gin.Context) {
	id := c.Param("id")
	balance, err := h.ledger.ContractBalance(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("contract balance query failed", "contract", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "balance_error",
			"message": "Failed to compute contract balance",
		})
		return
	}
	c.JSON(http.StatusOK, balance)
}

// GetHistory handles GET /contracts/:id/ledger
func (h *Handler) GetHistory(c *gin.Context) {
	id := c.Param("id")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	entries, err := h.ledger.History(c.Request.Context(), id, limit)
	if err != nil {
		h.logger.Error("ledger history query failed", "contract", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "history_error",
			"message": "Failed to retrieve ledger history",
		})
		return
	}
	if entries == nil {
		entries = []*Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"contractId": id, "entries": entries, "count": len(entries)})
}

// GetClientWallet handles GET /wallets/clients/:owner
func (h *Handler) GetClientWallet(c *gin.Context) {
	owner := c.Param("owner")
	if !validation.IsValidOwnerID(owner) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_owner", "message": "Invalid owner identifier"})
		return
	}
	w, err := h.ledger.GetClientWallet(c.Request.Context(), owner)
	if err != nil {
		h.logger.Error("client wallet query failed", "owner", owner, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "wallet_error", "message": "Failed to retrieve wallet"})
		return
	}
	c.JSON(http.StatusOK, w)
}

// GetFreelancerWallet handles GET /wallets/freelancers/:owner
func (h *Handler) GetFreelancerWallet(c *gin.Context) {
	owner := c.Param("owner")
	if !validation.IsValidOwnerID(owner) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_owner", "message": "Invalid owner identifier"})
		return
	}
	w, err := h.ledger.GetFreelancerWallet(c.Request.Context(), owner)
	if err != nil {
		h.logger.Error("freelancer wallet query failed", "owner", owner, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "wallet_error", "message": "Failed to retrieve wallet"})
		return
	}
	c.JSON(http.StatusOK, w)
}

// Reconcile handles GET /admin/wallets/:role/:owner/reconcile
//
// Replays the owner's entries and compares against the stored wallet. The
// ledger is the source of truth; a mismatch means the wallet cache drifted.
func (h *Handler) Reconcile(c *gin.Context) {
	owner := c.Param("owner")
	role := Role(c.Param("role"))

	var (
		result *WalletReconciliation
		err    error
	)
	switch role {
	case RoleClient:
		result, err = h.ledger.ReconcileClientWallet(c.Request.Context(), owner)
	case RoleFreelancer:
		result, err = h.ledger.ReconcileFreelancerWallet(c.Request.Context(), owner)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_role", "message": "Role must be client or freelancer"})
		return
	}
	if err != nil {
		h.logger.Error("wallet reconciliation failed", "owner", owner, "role", role, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reconcile_error", "message": "Reconciliation failed"})
		return
	}
	if !result.Match {
		h.logger.Warn("wallet drift detected",
			"owner", owner, "role", role,
			"replay", result.ReplayBalance, "actual", result.ActualBalance)
	}
	c.JSON(http.StatusOK, result)
}

// FreezeHold handles POST /admin/holds/:id/freeze
func (h *Handler) FreezeHold(c *gin.Context) {
	id := c.Param("id")
	if !validation.IsValidRecordID(id) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_id", "message": "Invalid hold identifier"})
		return
	}
	err := h.ledger.FreezeHold(c.Request.Context(), id)
	switch {
	case errors.Is(err, ErrHoldNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "hold_not_found", "message": "Hold not found"})
	case errors.Is(err, ErrHoldAlreadyResolved):
		c.JSON(http.StatusConflict, gin.H{"error": "hold_resolved", "message": "Hold already resolved"})
	case err != nil:
		h.logger.Error("hold freeze failed", "hold", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "freeze_error", "message": "Failed to freeze hold"})
	default:
		h.logger.Info("hold frozen for dispute", "hold", id)
		c.JSON(http.StatusOK, gin.H{"holdId": id, "status": StatusFrozenDispute})
	}
}

type splitRequest struct {
	ClientRefund      string `json:"clientRefund" binding:"required"`
	FreelancerRelease string `json:"freelancerRelease" binding:"required"`
}

// SplitHold handles POST /admin/holds/:id/split
func (h *Handler) SplitHold(c *gin.Context) {
	id := c.Param("id")
	if !validation.IsValidRecordID(id) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_id", "message": "Invalid hold identifier"})
		return
	}
	var req splitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	refund, release, err := h.ledger.ResolveHoldSplit(c.Request.Context(), id, req.ClientRefund, req.FreelancerRelease)
	switch {
	case errors.Is(err, ErrEntryNotFound), errors.Is(err, ErrHoldNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "hold_not_found", "message": "Hold not found"})
	case errors.Is(err, ErrHoldAlreadyResolved):
		c.JSON(http.StatusConflict, gin.H{"error": "hold_resolved", "message": "Hold already resolved"})
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrSplitMismatch):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_split", "message": err.Error()})
	case err != nil:
		h.logger.Error("hold split failed", "hold", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "split_error", "message": "Failed to split hold"})
	default:
		h.logger.Info("hold split between parties",
			"hold", id, "refund", refund.Amount, "release", release.Amount)
		c.JSON(http.StatusOK, gin.H{
			"holdId":  id,
			"status":  StatusAmountSplit,
			"refund":  refund,
			"release": release,
		})
	}
}
