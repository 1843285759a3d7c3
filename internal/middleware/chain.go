package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzhttp"
	"github.com/samber/lo"

	"github.com/msfocb/panicbutton/internal/logging"
	"github.com/msfocb/panicbutton/internal/monitoring"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// MiddlewareChain manages the HTTP middleware stack following the Chain of
// Responsibility pattern.
//
// Middleware Execution Order:
// - Middlewares execute in order of addition (first added, outermost)
// - Request flows: Outer -> Middle -> Inner -> Handler
// - Response flows: Handler -> Inner -> Middle -> Outer
//
// Standard Middleware Stack (outer to inner):
// 1. Request ID (generated or propagated)
// 2. Logging & Metrics (request/response tracking)
// 3. CORS (cross-origin request handling)
// 4. Compression
//
// Per-route stages (rate limiting, key guard) are applied by the server on
// the routes that need them, not here.
type MiddlewareChain struct {
	logger         logging.Logger
	metrics        *monitoring.Metrics
	allowedOrigins []string
	middlewares    []Middleware
}

// Middleware represents a single middleware function
type Middleware func(http.Handler) http.Handler

// MiddlewareDependencies contains all dependencies needed for middleware construction
type MiddlewareDependencies struct {
	Logger         logging.Logger
	Metrics        *monitoring.Metrics
	AllowedOrigins []string
}

// NewMiddlewareChain creates a new middleware chain with the standard stack.
func NewMiddlewareChain(deps MiddlewareDependencies) *MiddlewareChain {
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}

	chain := &MiddlewareChain{
		logger:         deps.Logger.WithComponent("http"),
		metrics:        deps.Metrics,
		allowedOrigins: deps.AllowedOrigins,
		middlewares:    make([]Middleware, 0, 4),
	}

	chain.buildDefaultStack()

	return chain
}

// buildDefaultStack constructs the standard middleware stack
func (mc *MiddlewareChain) buildDefaultStack() {
	mc.AddMiddleware(RequestID)
	mc.AddMiddleware(mc.createLoggingMiddleware())
	mc.AddMiddleware(mc.createCORSMiddleware())
	mc.AddMiddleware(Compress)
}

// AddMiddleware appends a middleware inside the ones already added.
func (mc *MiddlewareChain) AddMiddleware(middleware Middleware) {
	mc.middlewares = append(mc.middlewares, middleware)
}

// Apply wraps handler with every middleware in the chain. The first
// middleware added ends up outermost.
//
// Safe for concurrent use; Apply does not modify the chain.
func (mc *MiddlewareChain) Apply(handler http.Handler) http.Handler {
	if handler == nil {
		panic("MiddlewareChain.Apply: handler cannot be nil")
	}

	wrapped := handler
	for i := len(mc.middlewares) - 1; i >= 0; i-- {
		middleware := mc.middlewares[i]
		if middleware == nil {
			panic(fmt.Sprintf("MiddlewareChain.Apply: middleware at index %d is nil", i))
		}
		wrapped = middleware(wrapped)
	}

	return wrapped
}

// Len returns the number of middlewares in the chain
func (mc *MiddlewareChain) Len() int {
	return len(mc.middlewares)
}

// RequestID propagates the caller's X-Request-ID or generates one, echoes
// it on the response and stores it in the request context for logging.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(RequestIDHeader)
		if reqID == "" || len(reqID) > 128 {
			reqID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, reqID)
		ctx := logging.ContextWithRequestID(r.Context(), reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Compress gzips responses for clients that accept it.
func Compress(next http.Handler) http.Handler {
	return gzhttp.GzipHandler(next)
}

// statusRecorder captures the status code written by inner handlers.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// createLoggingMiddleware creates the logging and request tracking middleware
func (mc *MiddlewareChain) createLoggingMiddleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			// ServeMux fills in Pattern on the request it was handed.
			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			mc.metrics.ServerRequest(r.Method, route, rec.status)

			// The query string carries the key, so only the path is logged.
			mc.logger.Info(r.Context(), "Request served",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start).String())
		})
	}
}

// CORSPathPrefix scopes cross-origin access to the API routes.
const CORSPathPrefix = "/api/"

// createCORSMiddleware creates the CORS handling middleware
func (mc *MiddlewareChain) createCORSMiddleware() Middleware {
	wildcard := lo.Contains(mc.allowedOrigins, "*")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, CORSPathPrefix) {
				next.ServeHTTP(w, r)
				return
			}

			origin := r.Header.Get("Origin")

			switch {
			case origin == "":
			case wildcard:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case lo.Contains(mc.allowedOrigins, origin):
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}

			// Handle preflight requests
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+RequestIDHeader)
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
