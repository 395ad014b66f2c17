// Package http exposes the finance services as a JSON API.
package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"finhouse/internal/core"
	"finhouse/internal/docstore"
	"finhouse/internal/log"
	"finhouse/internal/middleware/ratelimit"
	"finhouse/internal/middleware/security"
	"finhouse/internal/middleware/trace"
	"finhouse/internal/services"
)

// Services are the use cases the API serves.
type Services struct {
	Transactions *services.TransactionService
	Accounts     *services.AccountService
	Cards        *services.CardService
	Billing      *services.BillingService
}

type Options struct {
	Logger    *log.Logger
	RateLimit ratelimit.Config
	// Location interprets plain YYYY-MM-DD dates. Defaults to UTC.
	Location *time.Location
	Now      func() time.Time
	// Ready reports whether dependencies are reachable for /readyz.
	Ready func(ctx context.Context) error
}

type Server struct {
	http.Server
	svc     Services
	schemas schemaSet
	limiter *ratelimit.Limiter
	tracer  *trace.Middleware
	logger  *log.Logger
	loc     *time.Location
	now     func() time.Time
	ready   func(ctx context.Context) error

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, svc Services, opts Options) (*Server, error) {
	schemas, err := loadSchemas()
	if err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentHTTP)
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Server{
		svc:     svc,
		schemas: schemas,
		limiter: ratelimit.NewLimiter(opts.RateLimit),
		tracer:  trace.NewMiddleware(),
		logger:  opts.Logger,
		loc:     opts.Location,
		now:     opts.Now,
		ready:   opts.Ready,
	}

	mux := http.NewServeMux()
	s.routes(mux)

	var handler http.Handler = mux
	handler = s.limiter.Middleware(rateLimitKey, func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").Write(w)
	})(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = log.AccessLog(clientIP)(handler)
	handler = log.RequestIDMiddleware(trace.RequestID)(handler)
	handler = log.Middleware(s.logger)(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s, nil
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /stats", s.handleStats)

	mux.HandleFunc("POST /transactions", s.handleCreateTransaction)
	mux.HandleFunc("GET /transactions", s.handleListTransactions)
	mux.HandleFunc("GET /transactions/{id}", s.handleGetTransaction)
	mux.HandleFunc("PATCH /transactions/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /transactions/{id}", s.handleDeleteTransaction)
	mux.HandleFunc("GET /transactions/{id}/split", s.handleTransactionSplit)
	mux.HandleFunc("GET /summary", s.handleSummary)

	mux.HandleFunc("POST /accounts", s.handleCreateAccount)
	mux.HandleFunc("GET /accounts", s.handleListAccounts)
	mux.HandleFunc("GET /accounts/{id}", s.handleGetAccount)
	mux.HandleFunc("PATCH /accounts/{id}", s.handleUpdateAccount)
	mux.HandleFunc("DELETE /accounts/{id}", s.handleDeactivateAccount)

	mux.HandleFunc("POST /cards", s.handleCreateCard)
	mux.HandleFunc("GET /cards", s.handleListCards)
	mux.HandleFunc("GET /cards/{id}", s.handleGetCard)
	mux.HandleFunc("PATCH /cards/{id}", s.handleUpdateCard)
	mux.HandleFunc("DELETE /cards/{id}", s.handleDeactivateCard)
	mux.HandleFunc("GET /cards/{id}/bill", s.handleCardSnapshot)
	mux.HandleFunc("GET /cards/{id}/bills", s.handleCardBills)

	mux.HandleFunc("GET /bills", s.handleCurrentBills)
	mux.HandleFunc("POST /bills/{id}/payments", s.handlePayBill)
	mux.HandleFunc("POST /bills/{id}/close", s.handleCloseBill)
}

// Shutdown stops background work and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			ErrorResponse(http.StatusServiceUnavailable, "not ready").Write(w)
			return
		}
	}
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
}

type statsResponse struct {
	Requests       int64  `json:"requests"`
	InFlight       int64  `json:"inFlight"`
	ServerErrors   int64  `json:"serverErrors"`
	AverageLatency string `json:"averageLatency"`
	RateLimited    int64  `json:"rateLimited"`
	BillLookupHits int64  `json:"billLookupHits"`
	BillLookupMiss int64  `json:"billLookupMisses"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	tm := s.tracer.GetMetrics()
	resp := statsResponse{
		Requests:       tm.TotalRequests,
		InFlight:       tm.InFlight,
		ServerErrors:   tm.ServerErrors,
		AverageLatency: tm.AverageResponseTime.String(),
		RateLimited:    s.limiter.GetMetrics().Rejected,
	}
	if s.svc.Billing != nil {
		g := s.svc.Billing.Materializer().Inflight()
		resp.BillLookupHits = g.Hits()
		resp.BillLookupMiss = g.Misses()
	}
	NewJSONResponse().Body(resp).Write(w)
}

// writeError maps err to a status code. Unexpected errors are logged and
// answered with a generic message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr):
		ErrorResponse(reqErr.status, reqErr.message, reqErr.details...).Write(w)
	case isNotFound(err):
		NotFoundError(err.Error()).Write(w)
	case isValidation(err):
		UnprocessableEntityError(err.Error()).Write(w)
	case errors.Is(err, docstore.ErrConflict):
		ConflictError("conflicting write, retry the request").Write(w)
	default:
		logger := log.FromContext(r.Context())
		logger.Failure(r.Context(), "Request failed", err, r.Method+" "+r.URL.Path, log.ErrorTypeInternal)
		InternalServerError("internal server error").Write(w)
	}
}

var notFoundErrors = []error{
	core.ErrTransactionNotFound,
	core.ErrAccountNotFound,
	core.ErrCardNotFound,
	core.ErrBillNotFound,
	docstore.ErrNotFound,
}

var validationErrors = []error{
	core.ErrInvalidDay,
	core.ErrInvalidAmount,
	core.ErrInvalidLastFour,
	core.ErrInvalidLimit,
	core.ErrEmptyName,
	core.ErrEmptyTitle,
	core.ErrInvalidType,
	core.ErrInvalidTarget,
	core.ErrInvalidAccount,
	core.ErrInvalidPayment,
	core.ErrZeroDate,
	core.ErrOverpayment,
	core.ErrInsufficientFunds,
	core.ErrInvalidSplit,
	docstore.ErrInvalidField,
}

func isNotFound(err error) bool   { return matchesAny(err, notFoundErrors) }
func isValidation(err error) bool { return matchesAny(err, validationErrors) }

func matchesAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// clientIP prefers proxy headers over the socket address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return strings.TrimSpace(realIP)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// rateLimitKey budgets by user when known, by address otherwise.
func rateLimitKey(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(headerUserID)); id != "" {
		return "user:" + id
	}
	return "ip:" + clientIP(r)
}

func pathID(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		return "", badRequest("missing id")
	}
	return id, nil
}

func logAction(r *http.Request, msg string, args ...any) {
	log.FromContext(r.Context()).InfoContext(r.Context(), msg, args...)
}
