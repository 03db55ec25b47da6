package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"finledger/internal/core"
	"finledger/internal/log"
	"finledger/internal/middleware/auth"
	"finledger/internal/middleware/ratelimit"
	"finledger/internal/middleware/security"
	"finledger/internal/middleware/trace"
	"finledger/internal/services"
)

// Services are the application services behind the API. Imports and
// Receipts may be nil when their collaborators are not configured.
type Services struct {
	Accounts  *services.AccountService
	Ledger    *services.LedgerService
	Budgets   *services.BudgetService
	Dashboard *services.DashboardService
	Imports   *services.ImportService
	Receipts  *services.ReceiptService
}

type Options struct {
	JWTSecret      string
	RateLimitRPM   int
	TrustedProxies []string
	// Ready reports dependency health for /readyz; nil means always ready.
	Ready func(ctx context.Context) error
}

type Server struct {
	http.Server
	svc      Services
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	ready    func(ctx context.Context) error
	started  time.Time
	logger   *log.Logger
	now      func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, svc Services, opts Options) *Server {
	mux := http.NewServeMux()
	detector := security.NewDetector()
	logger := log.ForComponent(log.ComponentHTTP)
	for _, cidr := range opts.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", log.FieldError, err)
		}
	}

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		svc:      svc,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitRPM}),
		detector: detector,
		tracer:   trace.NewMiddleware(detector.ExtractClientIP),
		ready:    opts.Ready,
		started:  time.Now(),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}

	authn := auth.NewMiddleware(opts.JWTSecret, svc.Accounts, func(w http.ResponseWriter, r *http.Request, err error) {
		if errors.Is(err, core.ErrUnauthorized) {
			UnauthorizedError(err.Error()).Write(w)
			return
		}
		ErrorResponse(http.StatusServiceUnavailable, "could not resolve user, please try again later").Write(w)
	})
	protect := func(h http.HandlerFunc) http.Handler {
		return authn.Middleware(h)
	}
	limited := func(h http.HandlerFunc) http.Handler {
		perUser := s.limiter.Middleware(func(r *http.Request) string {
			return auth.UserID(r.Context())
		}, func(w http.ResponseWriter, r *http.Request) {
			TooManyRequestsError().Write(w)
		})
		return authn.Middleware(perUser(h))
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.Handle("GET /api/accounts", protect(s.handleListAccounts))
	mux.Handle("POST /api/accounts", protect(s.handleCreateAccount))
	mux.Handle("GET /api/accounts/{id}", protect(s.handleGetAccount))
	mux.Handle("PUT /api/accounts/{id}", protect(s.handleUpdateAccount))
	mux.Handle("POST /api/accounts/{id}/default", protect(s.handleSetDefaultAccount))
	mux.Handle("DELETE /api/accounts/{id}", protect(s.handleDeleteAccount))

	mux.Handle("GET /api/transactions", protect(s.handleListTransactions))
	mux.Handle("POST /api/transactions", limited(s.handleCreateTransaction))
	mux.Handle("GET /api/transactions/{id}", protect(s.handleGetTransaction))
	mux.Handle("PUT /api/transactions/{id}", protect(s.handleUpdateTransaction))
	mux.Handle("DELETE /api/transactions/{id}", protect(s.handleDeleteTransaction))
	mux.Handle("POST /api/transactions/bulk-delete", protect(s.handleBulkDeleteTransactions))

	mux.Handle("GET /api/budgets", protect(s.handleGetBudget))
	mux.Handle("PUT /api/budgets", protect(s.handleUpdateBudget))

	mux.Handle("GET /api/dashboard", protect(s.handleDashboard))

	mux.Handle("POST /api/import", limited(s.handleImportCSV))
	mux.Handle("POST /api/import/sheet", limited(s.handleImportSheet))
	mux.Handle("POST /api/receipts/scan", limited(s.handleScanReceipt))

	mux.Handle("GET /api/reports/statement.pdf", protect(s.handleStatementPDF))

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	s.Handler = detector.Middleware(s.tracer.Middleware(headers.Middleware(mux)))
	return s
}

// Shutdown stops the listener and the rate limiter cleanup.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
