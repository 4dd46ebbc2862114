// Package server exposes the wallet session and the TrustPay contract actions
// over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"trustpay/internal/actions"
	"trustpay/internal/authcookie"
	"trustpay/internal/config"
	"trustpay/internal/idempotency"
	"trustpay/internal/notify"
	"trustpay/internal/session"
	"trustpay/internal/wallet"
)

const requestIDHeader = "X-Request-Id"

type Server struct {
	cfg           *config.AppConfig
	session       *session.Session
	client        actions.Client
	store         idempotency.Store
	cookies       *authcookie.Issuer
	feed          *notify.Feed
	logger        *zap.Logger
	metrics       *metricsRegistry
	employer      *session.Tracker
	employee      *session.Tracker
	httpServer    *http.Server
	storeHealthFn func(context.Context) error
	rpcHealthFn   func(context.Context) error
	now           func() time.Time
}

type Option func(*Server)

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithFeed exposes the notification feed at /api/v1/notifications.
func WithFeed(feed *notify.Feed) Option {
	return func(s *Server) { s.feed = feed }
}

// WithRPCHealth sets the probe reported under "rpc" by the health endpoint.
func WithRPCHealth(fn func(context.Context) error) Option {
	return func(s *Server) { s.rpcHealthFn = fn }
}

func NewServer(cfg *config.AppConfig, sess *session.Session, client actions.Client, store idempotency.Store, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg,
		session: sess,
		client:  client,
		store:   store,
		cookies: &authcookie.Issuer{
			Secret:  cfg.Service.CookieSecret,
			MaxAge:  cfg.Service.CookieMaxAge,
			MaxSkew: cfg.Service.CookieMaxSkew,
			Secure:  cfg.Service.CookieSecure,
		},
		logger:   zap.NewNop(),
		metrics:  newMetricsRegistry(),
		employer: sess.Tracker("employer"),
		employee: sess.Tracker("employee"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if checker, ok := store.(interface{ Ping(context.Context) error }); ok {
		s.storeHealthFn = checker.Ping
	}

	chainID := cfg.Chain.ID
	sess.Connector().Subscribe(func(st wallet.ConnectionState) {
		s.metrics.setConnected(st.IsConnected && st.OnChain(chainID))
	})

	readHeaderTimeout := cfg.Service.ReadHeaderTimeout
	if readHeaderTimeout <= 0 {
		readHeaderTimeout = 15 * time.Second
	}
	s.httpServer = &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Service.HTTPPort),
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s
}

// Handler returns the full middleware chain around the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.routes(mux)
	return requestIDMiddleware(s.loggingMiddleware(s.cookies.Gate(mux)))
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/session", s.handleConnect)
	mux.HandleFunc("DELETE /api/v1/session", s.handleDisconnect)
	mux.HandleFunc("GET /api/v1/session", s.handleSession)
	mux.HandleFunc("GET /api/v1/role", s.handleResolveRole)
	mux.HandleFunc("GET /api/v1/chain", s.handleChain)
	mux.HandleFunc("GET /api/v1/notifications", s.handleNotifications)
	mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	mux.Handle("GET /api/v1/metrics", s.metrics.handler())

	mux.HandleFunc("POST /employer/register", s.idempotent(s.handleRegisterEmployer))
	mux.HandleFunc("POST /employer/payroll/schedule", s.idempotent(s.handleSetPayrollSchedule))
	mux.HandleFunc("POST /employer/payroll/disburse", s.idempotent(s.handleProcessPayroll))
	mux.HandleFunc("POST /employer/payroll/batch", s.idempotent(s.handleProcessBatchPayroll))
	mux.HandleFunc("POST /employer/collateral/lock", s.idempotent(s.handleLockCollateral))
	mux.HandleFunc("POST /employer/collateral/release", s.idempotent(s.handleReleaseCollateral))
	mux.HandleFunc("GET /employer/collateral", s.handleCollateralStatus)
	mux.HandleFunc("POST /employer/kyc/verify", s.idempotent(s.handleVerifyUser))
	mux.HandleFunc("GET /employer/kyc/{address}", s.handleCheckKYC)
	mux.HandleFunc("POST /employer/yield/distribute", s.idempotent(s.handleDistributeYield))
	mux.HandleFunc("POST /employer/roles/revoke", s.idempotent(s.handleRevokeRole))
	mux.HandleFunc("GET /employer/roles/{role}/{address}", s.handleCheckRole)
	mux.HandleFunc("POST /employer/pause", s.idempotent(s.handlePause))
	mux.HandleFunc("POST /employer/unpause", s.idempotent(s.handleUnpause))

	mux.HandleFunc("POST /employee/register", s.idempotent(s.handleRegisterEmployee))
	mux.HandleFunc("GET /employee/balances", s.handleBalances)
	mux.HandleFunc("POST /employee/transfer", s.idempotent(s.handleTransfer))
	mux.HandleFunc("POST /employee/invest", s.idempotent(s.handleInvest))
	mux.HandleFunc("POST /employee/withdraw", s.idempotent(s.handleWithdrawInvestment))
	mux.HandleFunc("GET /employee/investment", s.handleInvestment)
	mux.HandleFunc("POST /employee/savings/lock", s.idempotent(s.handleLockSavings))
	mux.HandleFunc("POST /employee/savings/withdraw", s.idempotent(s.handleWithdrawSavings))
	mux.HandleFunc("GET /employee/savings", s.handleSavings)
	mux.HandleFunc("GET /employee/yield", s.handleYield)
	mux.HandleFunc("GET /employee/role", s.handleEmployeeRole)
	mux.HandleFunc("POST /employee/roles/renounce", s.idempotent(s.handleRenounceRole))
}

func (s *Server) Start() error {
	s.logger.Info("API listening", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	overallHealthy := true

	rpcInfo := struct {
		Connected bool    `json:"connected"`
		LatencyMs float64 `json:"latency_ms"`
		Error     string  `json:"error,omitempty"`
	}{}

	if s.rpcHealthFn != nil {
		start := time.Now()
		rpcCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := s.rpcHealthFn(rpcCtx); err != nil {
			rpcInfo.Error = err.Error()
			overallHealthy = false
		} else {
			rpcInfo.Connected = true
			rpcInfo.LatencyMs = float64(time.Since(start).Microseconds()) / 1000.0
		}
	} else {
		rpcInfo.Connected = true
	}

	storeInfo := struct {
		Backend   string `json:"backend"`
		Connected bool   `json:"connected"`
		Error     string `json:"error,omitempty"`
	}{Backend: s.cfg.Store.Backend, Connected: true}
	if storeInfo.Backend == "" {
		storeInfo.Backend = "memory"
	}

	if s.storeHealthFn != nil {
		storeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := s.storeHealthFn(storeCtx); err != nil {
			storeInfo.Connected = false
			storeInfo.Error = err.Error()
			overallHealthy = false
		}
	}

	state := s.session.Connector().State()
	status := "healthy"
	if !overallHealthy {
		status = "degraded"
	}

	resp := struct {
		Status string      `json:"status"`
		RPC    interface{} `json:"rpc"`
		Store  interface{} `json:"store"`
		Wallet interface{} `json:"wallet"`
	}{
		Status: status,
		RPC:    rpcInfo,
		Store:  storeInfo,
		Wallet: struct {
			Connected     bool `json:"connected"`
			OnTargetChain bool `json:"on_target_chain"`
		}{state.IsConnected, state.IsConnected && state.OnChain(s.cfg.Chain.ID)},
	}

	w.Header().Set("Content-Type", "application/json")
	if !overallHealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(requestIDHeader, id)
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		s.metrics.requestDuration.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Observe(elapsed.Seconds())
		s.logger.Debug("request",
			zap.String("request_id", r.Header.Get(requestIDHeader)),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", elapsed),
		)
	})
}
