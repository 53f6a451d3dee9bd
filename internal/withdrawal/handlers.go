package withdrawal

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/talentora/talentora/internal/ledger"
	"github.com/talentora/talentora/internal/users"
	"github.com/talentora/talentora/internal/validation"
)

// Handler provides the withdrawal HTTP surface.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler creates a new withdrawal handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes sets up withdrawal routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/withdrawals", h.Request)
	r.GET("/withdrawals/:id", h.Get)
	r.GET("/wallets/:role/:owner/withdrawable", h.Available)
	r.GET("/wallets/:role/:owner/withdrawals", h.History)
}

// RegisterAdminRoutes sets up admin-only withdrawal routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.POST("/admin/withdrawals/:id/approve", h.Approve)
	r.POST("/admin/withdrawals/:id/reject", h.Reject)
}

type requestBody struct {
	OwnerID string `json:"ownerId" binding:"required"`
	Role    string `json:"role" binding:"required,oneof=client freelancer"`
	Amount  string `json:"amount" binding:"required"`
}

// Request handles POST /withdrawals
func (h *Handler) Request(c *gin.Context) {
	var req requestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	e, err := h.service.Request(c.Request.Context(), req.OwnerID, ledger.Role(req.Role), req.Amount)
	switch {
	case errors.Is(err, users.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "owner_not_found", "message": "Owner not found"})
	case errors.Is(err, ErrNoVerifiedBank):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "no_verified_bank", "message": "Verified bank details are required for withdrawals"})
	case errors.Is(err, ErrInsufficientFund), errors.Is(err, ledger.ErrNegativeBalance):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "insufficient_funds", "message": err.Error()})
	case errors.Is(err, ledger.ErrInvalidAmount), errors.Is(err, ErrInvalidRole):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
	case err != nil:
		h.logger.Error("withdrawal request failed", "owner", req.OwnerID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "withdrawal_error", "message": "Failed to request withdrawal"})
	default:
		c.JSON(http.StatusCreated, e)
	}
}

// Get handles GET /withdrawals/:id
func (h *Handler) Get(c *gin.Context) {
	id := c.Param("id")
	if !validation.IsValidRecordID(id) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_id", "message": "Invalid withdrawal identifier"})
		return
	}
	e, err := h.service.Get(c.Request.Context(), id)
	switch {
	case errors.Is(err, ledger.ErrWithdrawalNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "withdrawal_not_found", "message": "Withdrawal not found"})
	case err != nil:
		h.logger.Error("withdrawal query failed", "withdrawal", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "withdrawal_error", "message": "Failed to retrieve withdrawal"})
	default:
		c.JSON(http.StatusOK, e)
	}
}

// Available handles GET /wallets/:role/:owner/withdrawable
func (h *Handler) Available(c *gin.Context) {
	owner := c.Param("owner")
	role := ledger.Role(c.Param("role"))
	if !validation.IsValidOwnerID(owner) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_owner", "message": "Invalid owner identifier"})
		return
	}
	amount, err := h.service.Available(c.Request.Context(), owner, role)
	switch {
	case errors.Is(err, ErrInvalidRole):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_role", "message": "Role must be client or freelancer"})
	case err != nil:
		h.logger.Error("withdrawable query failed", "owner", owner, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "withdrawal_error", "message": "Failed to compute withdrawable balance"})
	default:
		c.JSON(http.StatusOK, gin.H{"ownerId": owner, "role": role, "withdrawable": amount})
	}
}

// History handles GET /wallets/:role/:owner/withdrawals
func (h *Handler) History(c *gin.Context) {
	owner := c.Param("owner")
	role := ledger.Role(c.Param("role"))
	if !validation.IsValidOwnerID(owner) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_owner", "message": "Invalid owner identifier"})
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	entries, next, more, err := h.service.History(c.Request.Context(), owner, role, c.Query("cursor"), limit)
	switch {
	case errors.Is(err, ErrInvalidRole):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_role", "message": "Role must be client or freelancer"})
	case err != nil:
		h.logger.Error("withdrawal history failed", "owner", owner, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "withdrawal_error", "message": "Failed to list withdrawals"})
		return
	default:
		if entries == nil {
			entries = []*ledger.Entry{}
		}
		c.JSON(http.StatusOK, gin.H{
			"withdrawals": entries,
			"nextCursor":  next,
			"hasMore":     more,
		})
	}
}

type resolveHandler func(ctx *gin.Context, id string) (*ledger.Entry, error)

func (h *Handler) resolve(c *gin.Context, action string, fn resolveHandler) {
	id := c.Param("id")
	if !validation.IsValidRecordID(id) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_id", "message": "Invalid withdrawal identifier"})
		return
	}
	e, err := fn(c, id)
	switch {
	case errors.Is(err, ledger.ErrWithdrawalNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "withdrawal_not_found", "message": "Withdrawal not found"})
	case errors.Is(err, ledger.ErrWithdrawalResolved):
		c.JSON(http.StatusConflict, gin.H{"error": "withdrawal_resolved", "message": "Withdrawal already resolved"})
	case err != nil:
		h.logger.Error("withdrawal resolution failed", "withdrawal", id, "action", action, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "withdrawal_error", "message": "Failed to resolve withdrawal"})
	default:
		c.JSON(http.StatusOK, e)
	}
}

// Approve handles POST /admin/withdrawals/:id/approve
func (h *Handler) Approve(c *gin.Context) {
	h.resolve(c, "approve", func(ctx *gin.Context, id string) (*ledger.Entry, error) {
		return h.service.Approve(ctx.Request.Context(), id)
	})
}

// Reject handles POST /admin/withdrawals/:id/reject
func (h *Handler) Reject(c *gin.Context) {
	h.resolve(c, "reject", func(ctx *gin.Context, id string) (*ledger.Entry, error) {
		return h.service.Reject(ctx.Request.Context(), id)
	})
}
