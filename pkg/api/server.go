// Package api exposes the approval workflows over HTTP.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"approval-ledger/pkg/logging"
	"approval-ledger/pkg/metrics"
	"approval-ledger/pkg/upload"
	"approval-ledger/pkg/workflow"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server serves the workflow routes plus health and metrics endpoints.
type Server struct {
	transactions *workflow.TransactionService
	credentials  *workflow.CredentialService
	balances     *workflow.BalanceAccessor
	uploads      upload.Sink

	metrics  metrics.MetricsCollector
	gatherer prometheus.Gatherer
	checks   []HealthCheck
	logger   *logging.Logger

	router  *mux.Router
	handler http.Handler
	server  *http.Server
	config  ServerConfig
	started time.Time
}

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	// Address to listen on (e.g., ":8080")
	Address string

	// ReadTimeout for HTTP requests
	ReadTimeout time.Duration

	// WriteTimeout for HTTP responses
	WriteTimeout time.Duration

	IdleTimeout time.Duration

	// CORSOrigins lists allowed origins; "*" allows any
	CORSOrigins []string

	// MaxUploadSize caps multipart bodies, file parts included
	MaxUploadSize int64

	// MaxBodySize caps JSON bodies
	MaxBodySize int64
}

// DefaultServerConfig returns a default configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Address:       ":8080",
		ReadTimeout:   15 * time.Second,
		WriteTimeout:  15 * time.Second,
		IdleTimeout:   60 * time.Second,
		CORSOrigins:   []string{"*"},
		MaxUploadSize: 10 << 20,
		MaxBodySize:   1 << 20,
	}
}

// Services are the workflow components behind the routes.
type Services struct {
	Transactions *workflow.TransactionService
	Credentials  *workflow.CredentialService
	Balances     *workflow.BalanceAccessor
	Uploads      upload.Sink
}

// HealthCheck probes one dependency for /status.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics records per-route request metrics.
func WithMetrics(m metrics.MetricsCollector) Option {
	return func(s *Server) { s.metrics = m }
}

// WithGatherer serves g on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithHealthCheck adds a dependency probe to /status.
func WithHealthCheck(name string, check func(ctx context.Context) error) Option {
	return func(s *Server) { s.checks = append(s.checks, HealthCheck{Name: name, Check: check}) }
}

// WithLogger sets the base request logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer creates the API server.
func NewServer(svc Services, config ServerConfig, opts ...Option) *Server {
	defaults := DefaultServerConfig()
	if config.MaxUploadSize <= 0 {
		config.MaxUploadSize = defaults.MaxUploadSize
	}
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = defaults.MaxBodySize
	}

	s := &Server{
		transactions: svc.Transactions,
		credentials:  svc.Credentials,
		balances:     svc.Balances,
		uploads:      svc.Uploads,
		metrics:      &metrics.NoOpCollector{},
		config:       config,
		started:      time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.Global()
	}
	s.logger = s.logger.Named("api")

	s.router = mux.NewRouter()
	s.routes()

	// CORS wraps the router so preflight requests never hit method matching
	s.handler = s.cors(s.router)

	s.server = &http.Server{
		Addr:         config.Address,
		Handler:      s.handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start binds the listen address and serves in a goroutine. Bind errors
// are returned; serve errors are sent on the returned channel.
func (s *Server) Start() (<-chan error, error) {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return nil, err
	}

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", zap.Error(err))
			errCh <- err
		}
	}()

	s.logger.Info("API server listening", zap.String("address", ln.Addr().String()))
	return errCh, nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	r := s.router
	r.Use(s.requestID, s.requestLogger, s.recordMetrics, s.recoverPanic)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api").Subrouter()

	// Transactions
	api.HandleFunc("/transactions/create", s.handleCreateDeposit).Methods(http.MethodPost)
	api.HandleFunc("/transactions/create-by-id", s.handleCreateWalletDeposit).Methods(http.MethodPost)
	api.HandleFunc("/transactions/create-withdrawal", s.handleCreateWithdrawal).Methods(http.MethodPost)
	api.HandleFunc("/transactions/accept/{id}", s.handleAcceptTransaction).Methods(http.MethodPatch)
	api.HandleFunc("/transactions/reject/{id}", s.handleRejectTransaction).Methods(http.MethodPatch)
	api.HandleFunc("/transactions/update", s.handleUpdateTransaction).Methods(http.MethodPatch)
	api.HandleFunc("/transactions/export", s.handleExportTransactions).Methods(http.MethodGet)
	api.HandleFunc("/transactions", s.handleListTransactions(false)).Methods(http.MethodGet)

	// Credential requests
	api.HandleFunc("/credential-requests/create", s.handleCreateCredential).Methods(http.MethodPost)
	api.HandleFunc("/credential-requests/accept", s.handleAcceptCredential).Methods(http.MethodPost)
	api.HandleFunc("/credential-requests/reject", s.handleRejectCredential).Methods(http.MethodPost)
	api.HandleFunc("/credential-requests/change-password", s.handleChangePassword).Methods(http.MethodPost)
	api.HandleFunc("/credential-requests", s.handleListCredentials(false)).Methods(http.MethodGet)

	// Balance
	api.HandleFunc("/balance/{userId}", s.handleGetBalance).Methods(http.MethodGet)
	api.HandleFunc("/balance/{id}", s.handleSetBalance).Methods(http.MethodPatch)

	// Legacy user routes
	api.HandleFunc("/user/create-transaction", s.handleCreateDeposit).Methods(http.MethodPost)
	api.HandleFunc("/user/create-transaction-id", s.handleCreateWalletDeposit).Methods(http.MethodPost)
	api.HandleFunc("/user/create-withdrawal-transaction", s.handleCreateWithdrawal).Methods(http.MethodPost)
	api.HandleFunc("/user/deposit-transaction", s.handleListTransactions(true)).Methods(http.MethodGet)
	api.HandleFunc("/user/create-id", s.handleCreateCredential).Methods(http.MethodPost)
	api.HandleFunc("/user/change-id-password", s.handleChangePassword).Methods(http.MethodPost)
	api.HandleFunc("/user/get-all-ids", s.handleListCredentials(true)).Methods(http.MethodGet)
	api.HandleFunc("/user/get-balance/{userId}", s.handleGetBalance).Methods(http.MethodGet)

	// Legacy admin routes
	api.HandleFunc("/admin/admin-transaction", s.handleListTransactions(false)).Methods(http.MethodGet)
	api.HandleFunc("/admin/update-transaction", s.handleUpdateTransaction).Methods(http.MethodPatch)
	api.HandleFunc("/admin/accept-transaction/{id}", s.handleAcceptTransaction).Methods(http.MethodPatch)
	api.HandleFunc("/admin/reject-transaction/{id}", s.handleRejectTransaction).Methods(http.MethodPatch)
	api.HandleFunc("/admin/get-all-ids", s.handleListCredentials(false)).Methods(http.MethodGet)
	api.HandleFunc("/admin/accept-id", s.handleAcceptCredential).Methods(http.MethodPost)
	api.HandleFunc("/admin/update-id", s.handleAcceptCredential).Methods(http.MethodPatch)
	api.HandleFunc("/admin/reject-id", s.handleRejectCredential).Methods(http.MethodPost)
	api.HandleFunc("/admin/update-user-balance/{id}", s.handleSetBalance).Methods(http.MethodPatch)
}

// handleHealth returns a simple health check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	})
}

// handleStatus runs the dependency probes. Any failure turns the response into a 503.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status, code := "running", http.StatusOK
	checks := make(map[string]string, len(s.checks))
	for _, c := range s.checks {
		if err := c.Check(ctx); err != nil {
			checks[c.Name] = err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		checks[c.Name] = "ok"
	}

	writeJSON(w, code, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Unix(),
		"uptime":    time.Since(s.started).String(),
		"checks":    checks,
	})
}
