// Package server exposes the panic button over HTTP: the control panel
// entry page, the published configuration and the two guarded actions.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/netutil"

	"github.com/msfocb/panicbutton/internal/action"
	"github.com/msfocb/panicbutton/internal/config"
	perrors "github.com/msfocb/panicbutton/internal/errors"
	"github.com/msfocb/panicbutton/internal/logging"
	"github.com/msfocb/panicbutton/internal/middleware"
	"github.com/msfocb/panicbutton/internal/monitoring"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 30 * time.Second
)

// Performer runs an action. *action.Gateway satisfies it.
type Performer interface {
	Perform(ctx context.Context, kind action.Kind, mock bool) action.Outcome
}

// Dependencies holds everything the server needs. Config, Gateway and
// Checker are required.
type Dependencies struct {
	Config  *config.Config
	Gateway Performer
	Checker middleware.KeyChecker
	Logger  logging.Logger
	Metrics *monitoring.Metrics
	// Health backs /healthz. Nil serves a report with no checks.
	Health *monitoring.HealthMonitor
}

// Server handles HTTP lifecycle and route registration.
//
// Invariants:
// - mux and handler are fixed after construction
// - httpServer is nil until Serve and is guarded by mu
type Server struct {
	config    *config.Config
	published config.Published
	gateway   Performer
	checker   middleware.KeyChecker
	limiter   *middleware.RateLimiter
	logger    logging.Logger
	metrics   *monitoring.Metrics
	health    *monitoring.HealthMonitor
	errs      *perrors.ErrorHandler

	mux     *http.ServeMux
	handler http.Handler

	mu         sync.Mutex
	httpServer *http.Server
	isShutdown bool
}

// New creates a server with all routes registered.
//
// Panics if a required dependency is nil.
func New(deps Dependencies) *Server {
	if deps.Config == nil {
		panic("server: config cannot be nil")
	}
	if deps.Gateway == nil {
		panic("server: gateway cannot be nil")
	}
	if deps.Checker == nil {
		panic("server: checker cannot be nil")
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}
	if deps.Health == nil {
		deps.Health = monitoring.NewHealthMonitor(deps.Logger)
	}

	logger := deps.Logger.WithComponent("server")
	s := &Server{
		config:    deps.Config,
		published: deps.Config.Published(),
		gateway:   deps.Gateway,
		checker:   deps.Checker,
		logger:    logger,
		metrics:   deps.Metrics,
		health:    deps.Health,
		errs:      perrors.NewErrorHandler(logger),
		mux:       http.NewServeMux(),
	}

	if deps.Config.Server.RateLimit > 0 {
		s.limiter = middleware.NewRateLimiter(deps.Config.Server.RateLimit, deps.Config.Server.RateBurst)
	}

	s.registerRoutes()

	chain := middleware.NewMiddlewareChain(middleware.MiddlewareDependencies{
		Logger:         deps.Logger,
		Metrics:        deps.Metrics,
		AllowedOrigins: deps.Config.Server.AllowedOrigins,
	})
	s.handler = chain.Apply(s.mux)

	return s
}

// registerRoutes registers all HTTP routes with their handlers
func (s *Server) registerRoutes() {
	// Control panel
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(s.config.Server.StaticDir))))

	// API
	s.mux.HandleFunc("GET /api/config", s.handleConfig)
	s.mux.Handle("POST /api/lock", s.guarded(action.Lock))
	s.mux.Handle("GET /api/verify", s.guarded(action.Verify))

	// Operations
	s.mux.Handle("GET /healthz", s.health.HTTPHandler())
	s.mux.Handle("GET /metrics", s.metrics.Handler())
}

// guarded wraps the action handler for kind with the optional rate limit
// and the key guard.
func (s *Server) guarded(kind action.Kind) http.Handler {
	var h http.Handler = s.actionHandler(kind)
	h = middleware.KeyGuard(s.checker, s.rejectHandler(kind))(h)
	if s.limiter != nil {
		h = s.limiter.Middleware(h)
	}
	return h
}

// Handler returns the root handler with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on the configured address and serves until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr())
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", s.config.Addr(), err)
	}

	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled or the server fails. When
// max_connections is set the listener is capped to that many concurrent
// connections.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if limit := s.config.Server.MaxConnections; limit > 0 {
		ln = netutil.LimitListener(ln, limit)
	}

	s.mu.Lock()
	if s.isShutdown {
		s.mu.Unlock()
		_ = ln.Close()
		return errors.New("server: already shut down")
	}
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	s.httpServer = srv
	s.mu.Unlock()

	s.logger.Info(ctx, "Listening", "addr", ln.Addr().String())

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)

	case err, ok := <-errChan:
		if !ok {
			return nil
		}
		return err
	}
}

// Shutdown stops accepting connections and waits for in-flight requests.
// Calling it more than once is safe.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isShutdown {
		return nil
	}
	s.isShutdown = true

	if s.httpServer == nil {
		return nil
	}

	s.logger.Info(ctx, "Shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}

	return nil
}
