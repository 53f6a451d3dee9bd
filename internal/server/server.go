// Package server sets up the HTTP server with all routes
package server

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/talentora/talentora/internal/config"
	"github.com/talentora/talentora/internal/contract"
	"github.com/talentora/talentora/internal/escrow"
	"github.com/talentora/talentora/internal/gateway"
	"github.com/talentora/talentora/internal/health"
	"github.com/talentora/talentora/internal/ledger"
	"github.com/talentora/talentora/internal/logging"
	"github.com/talentora/talentora/internal/metrics"
	"github.com/talentora/talentora/internal/payment"
	"github.com/talentora/talentora/internal/ratelimit"
	"github.com/talentora/talentora/internal/security"
	"github.com/talentora/talentora/internal/settlement"
	"github.com/talentora/talentora/internal/traces"
	"github.com/talentora/talentora/internal/users"
	"github.com/talentora/talentora/internal/validation"
	"github.com/talentora/talentora/internal/withdrawal"
	"github.com/talentora/talentora/internal/worklog"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg *config.Config

	contracts contract.Store
	worklogs  worklog.Store
	payments  payment.Store
	users     users.Store
	ledger    *ledger.Ledger
	escrows   *escrow.Service

	settlement   *settlement.Service
	autoPay      *settlement.Timer
	withdrawals  *withdrawal.Service
	rateLimiter  *ratelimit.Limiter
	healthChecks *health.Registry

	db           *sql.DB // nil if using in-memory
	router       *gin.Engine
	httpSrv      *http.Server
	logger       *slog.Logger
	cancelRunCtx context.CancelFunc // cancels background goroutines started in Run
	traceStop    func(context.Context) error

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:          cfg,
		logger:       logging.New(cfg.LogLevel, "json"),
		healthChecks: health.NewRegistry(),
	}

	for _, opt := range opts {
		opt(s)
	}

	// Initialize storage (Postgres if DATABASE_URL set, otherwise in-memory)
	var units settlement.UnitStore
	var lstore ledger.Store
	var estore escrow.Store
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		// Configure connection pool
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		s.db = db
		s.contracts = contract.NewPostgresStore(db)
		s.worklogs = worklog.NewPostgresStore(db)
		s.payments = payment.NewPostgresStore(db)
		s.users = users.NewPostgresStore(db)
		lstore = ledger.NewPostgresStore(db)
		estore = escrow.NewPostgresStore(db)
		units = settlement.NewPostgresUnitStore(db)
		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))

		s.healthChecks.Register("database", func(ctx context.Context) health.Status {
			ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				return health.Status{Name: "database", Healthy: false, Detail: err.Error()}
			}
			return health.Status{Name: "database", Healthy: true}
		})
	} else {
		s.contracts = contract.NewMemoryStore()
		s.worklogs = worklog.NewMemoryStore()
		s.payments = payment.NewMemoryStore()
		s.users = users.NewMemoryStore()
		ms := ledger.NewMemoryStore()
		es := escrow.NewMemoryStore()
		lstore = ms
		estore = es
		units = settlement.NewMemoryUnitStore(s.contracts, s.worklogs, s.payments, ms, es)
		s.logger.Info("using in-memory storage (data will not persist)")

		s.healthChecks.Register("storage", func(ctx context.Context) health.Status {
			return health.Status{Name: "storage", Healthy: true, Detail: "in-memory"}
		})
	}

	s.ledger = ledger.New(lstore)
	s.escrows = escrow.NewService(estore)

	gw := gateway.New(gateway.Config{
		MerchantKey:  cfg.GatewayMerchantKey,
		MerchantSalt: cfg.GatewayMerchantSalt,
		BaseURL:      cfg.GatewayBaseURL,
		CallbackURL:  cfg.CallbackBaseURL + "/v1/payments/callback",
		SuccessURL:   cfg.PaymentSuccessURL,
		FailureURL:   cfg.PaymentFailureURL,
	})

	s.settlement = settlement.NewService(settlement.Deps{
		Contracts:         s.contracts,
		Worklogs:          s.worklogs,
		Payments:          s.payments,
		Ledger:            s.ledger,
		Escrows:           s.escrows,
		Gateway:           gw,
		Units:             units,
		CommissionRateBps: cfg.CommissionRateBps,
		DisputeWindow:     time.Duration(cfg.DisputeWindowDays) * 24 * time.Hour,
		Logger:            s.logger,
	})
	s.autoPay = settlement.NewTimer(s.settlement, s.worklogs, cfg.AutoPayInterval, s.logger)
	s.withdrawals = withdrawal.NewService(s.ledger, s.users, s.logger)
	s.logger.Info("settlement engine enabled",
		"commission_bps", cfg.CommissionRateBps,
		"autopay_interval", cfg.AutoPayInterval,
		"dispute_window_days", cfg.DisputeWindowDays,
	)

	// Configure gin
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

// maskDSN hides password in connection string for logging
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	// Security headers
	s.router.Use(security.HeadersMiddleware())

	// CORS (allow all origins for development - restrict in production)
	s.router.Use(security.CORSMiddleware([]string{"*"}))

	// Request size limit (1MB)
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	// Rate limiting
	rlCfg := ratelimit.DefaultConfig()
	if s.cfg.RateLimitRPS > 0 {
		rlCfg.RequestsPerMinute = s.cfg.RateLimitRPS * 60
	}
	// The gateway retries callbacks; probes poll the health endpoints.
	rlCfg.ExemptPaths = []string{
		"/v1/payments/callback",
		"/health",
		"/health/live",
		"/health/ready",
	}
	s.rateLimiter = ratelimit.New(rlCfg)
	s.router.Use(s.rateLimiter.Middleware())

	// Prometheus metrics
	s.router.Use(metrics.Middleware())

	// Request ID
	s.router.Use(s.requestIDMiddleware())

	// Logging
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := logging.L(c.Request.Context())

		// Log level based on status code
		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

// requireAdmin checks the X-Admin-Secret header against configuration. In
// development with no secret configured, admin routes stay open for local
// testing.
func (s *Server) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.AdminSecret == "" {
			if s.cfg.IsProduction() {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
					"error":   "admin_disabled",
					"message": "Admin API is not configured",
				})
				return
			}
			c.Next()
			return
		}
		secret := c.GetHeader("X-Admin-Secret")
		if subtle.ConstantTimeCompare([]byte(secret), []byte(s.cfg.AdminSecret)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "Admin secret required",
			})
			return
		}
		c.Next()
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// Health & metrics endpoints
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	// API info
	s.router.GET("/api", s.infoHandler)

	// V1 API group
	v1 := s.router.Group("/v1")

	// Contract records land here from the marketplace; settlement only
	// reads them outside of these two endpoints.
	v1.GET("/contracts/:id", s.getContract)

	// Bank details (withdrawal precondition)
	v1.PUT("/users/:id/bank", s.submitBankDetails)

	ledgerHandler := ledger.NewHandler(s.ledger, s.logger)
	ledgerHandler.RegisterRoutes(v1)

	settlementHandler := settlement.NewHandler(s.settlement, s.logger)
	settlementHandler.RegisterRoutes(v1)

	withdrawalHandler := withdrawal.NewHandler(s.withdrawals, s.logger)
	withdrawalHandler.RegisterRoutes(v1)

	// Admin routes (dispute resolution, withdrawal review, wallet
	// reconciliation, marketplace sync)
	admin := v1.Group("")
	admin.Use(s.requireAdmin())
	{
		admin.POST("/admin/contracts", s.upsertContract)
		admin.POST("/admin/users/:id/bank/verify", s.verifyBankDetails)
		ledgerHandler.RegisterAdminRoutes(admin)
		settlementHandler.RegisterAdminRoutes(admin)
		withdrawalHandler.RegisterAdminRoutes(admin)
	}
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

func (s *Server) infoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "Talentora Settlement",
		"description": "Contract financial settlement engine",
		"version":     "0.1.0",
	})
}

// upsertContract handles POST /v1/admin/contracts. The marketplace service
// pushes the settlement-relevant slice of each contract through here.
func (s *Server) upsertContract(c *gin.Context) {
	var req contract.Contract
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	errs := validation.Validate(
		validation.Required("id", req.ID),
		validation.ValidOwner("clientId", req.ClientID),
		validation.ValidOwner("freelancerId", req.FreelancerID),
	)
	if len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_failed",
			"message": errs.Error(),
		})
		return
	}

	switch req.PaymentType {
	case contract.PaymentTypeHourly, contract.PaymentTypeFixed, contract.PaymentTypeMilestone:
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_payment_type",
			"message": "paymentType must be hourly, fixed, or milestone",
		})
		return
	}
	if req.Status == "" {
		req.Status = contract.StatusPending
	}

	if err := s.contracts.Create(c.Request.Context(), &req); err != nil {
		s.logger.Error("contract sync failed", "contract", req.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "contract_error",
			"message": "Failed to store contract",
		})
		return
	}
	c.JSON(http.StatusCreated, req)
}

// getContract handles GET /v1/contracts/:id
func (s *Server) getContract(c *gin.Context) {
	id := c.Param("id")
	ct, err := s.contracts.FindByID(c.Request.Context(), id)
	switch {
	case errors.Is(err, contract.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "contract_not_found",
			"message": "Contract not found",
		})
	case err != nil:
		s.logger.Error("contract query failed", "contract", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "contract_error",
			"message": "Failed to retrieve contract",
		})
	default:
		c.JSON(http.StatusOK, ct)
	}
}

type bankDetailsRequest struct {
	Role          string `json:"role" binding:"required,oneof=client freelancer"`
	AccountName   string `json:"accountName" binding:"required"`
	AccountNumber string `json:"accountNumber" binding:"required"`
	BankName      string `json:"bankName" binding:"required"`
}

// submitBankDetails handles PUT /v1/users/:id/bank. Submitted details are
// unverified until an operator confirms them; only verified details unlock
// withdrawals.
func (s *Server) submitBankDetails(c *gin.Context) {
	id := c.Param("id")
	if !validation.IsValidOwnerID(id) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_owner",
			"message": "Invalid user identifier",
		})
		return
	}
	var req bankDetailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}

	ctx := c.Request.Context()
	if _, err := s.users.Get(ctx, id); errors.Is(err, users.ErrNotFound) {
		if err := s.users.Upsert(ctx, &users.User{ID: id, Role: req.Role}); err != nil {
			s.logger.Error("user create failed", "user", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "user_error",
				"message": "Failed to store user",
			})
			return
		}
	} else if err != nil {
		s.logger.Error("user query failed", "user", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "user_error",
			"message": "Failed to retrieve user",
		})
		return
	}

	bank := users.BankDetails{
		AccountName:   validation.SanitizeString(req.AccountName, 200),
		AccountNumber: validation.SanitizeString(req.AccountNumber, 34),
		BankName:      validation.SanitizeString(req.BankName, 200),
		Verified:      false,
	}
	if err := s.users.SetBankDetails(ctx, id, bank); err != nil {
		s.logger.Error("bank details update failed", "user", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "user_error",
			"message": "Failed to store bank details",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"userId":   id,
		"verified": false,
		"message":  "Bank details submitted for verification",
	})
}

// verifyBankDetails handles POST /v1/admin/users/:id/bank/verify
func (s *Server) verifyBankDetails(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()
	u, err := s.users.Get(ctx, id)
	switch {
	case errors.Is(err, users.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "user_not_found",
			"message": "User not found",
		})
		return
	case err != nil:
		s.logger.Error("user query failed", "user", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "user_error",
			"message": "Failed to retrieve user",
		})
		return
	}
	if u.Bank == nil {
		c.JSON(http.StatusConflict, gin.H{
			"error":   "no_bank_details",
			"message": "User has not submitted bank details",
		})
		return
	}

	bank := *u.Bank
	bank.Verified = true
	if err := s.users.SetBankDetails(ctx, id, bank); err != nil {
		s.logger.Error("bank verification failed", "user", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "user_error",
			"message": "Failed to verify bank details",
		})
		return
	}
	s.logger.Info("bank details verified", "user", id)
	c.JSON(http.StatusOK, gin.H{"userId": id, "verified": true})
}

// HealthResponse for health check endpoints
type HealthResponse struct {
	Status    string          `json:"status"`
	Version   string          `json:"version"`
	Checks    []health.Status `json:"checks,omitempty"`
	Timestamp string          `json:"timestamp"`
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	healthy, checks := s.healthChecks.CheckAll(ctx)

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, HealthResponse{
		Status:    status,
		Version:   "0.1.0",
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	// Cancellable context for background goroutines so Shutdown() can stop them.
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	if s.cfg.OTLPEndpoint != "" {
		stop, err := traces.Init(runCtx, s.cfg.OTLPEndpoint, s.logger)
		if err != nil {
			s.logger.Warn("tracing disabled", "error", err)
		} else {
			s.traceStop = stop
		}
	}

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Channel to catch server errors
	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("starting server", "port", s.cfg.Port, "env", s.cfg.Env)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Start worklog auto-settlement sweeps
	if s.autoPay != nil {
		go s.autoPay.Start(runCtx)
	}

	// Feed connection pool stats into prometheus
	if s.db != nil {
		go metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
	}

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	// Wait for shutdown signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	// Cancel the context for all background goroutines
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	// Stop auto-settlement timer
	if s.autoPay != nil {
		s.autoPay.Stop()
		s.logger.Info("auto-settlement timer stopped")
	}

	// Stop rate limiter cleanup goroutine
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
		s.logger.Info("rate limiter stopped")
	}

	// Flush pending trace spans
	if s.traceStop != nil {
		if err := s.traceStop(ctx); err != nil {
			s.logger.Error("tracer shutdown error", "error", err)
		}
	}

	// Close database connection pool
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func generateRequestID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based ID
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}
