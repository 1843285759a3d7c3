package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msfocb/panicbutton/internal/logging"
	"github.com/msfocb/panicbutton/internal/monitoring"
)

func newTestChain(origins ...string) (*MiddlewareChain, *monitoring.Metrics) {
	metrics := monitoring.NewMetrics()
	chain := NewMiddlewareChain(MiddlewareDependencies{
		Logger:         logging.NewNop(),
		Metrics:        metrics,
		AllowedOrigins: origins,
	})
	return chain, metrics
}

func TestMiddlewareChainOrder(t *testing.T) {
	chain := &MiddlewareChain{}
	var order []string

	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	chain.AddMiddleware(mark("outer"))
	chain.AddMiddleware(mark("inner"))

	handler := chain.Apply(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestMiddlewareChainApplyPanics(t *testing.T) {
	chain := &MiddlewareChain{}
	assert.Panics(t, func() { chain.Apply(nil) })

	chain.AddMiddleware(nil)
	assert.Panics(t, func() { chain.Apply(http.NotFoundHandler()) })
}

func TestDefaultStack(t *testing.T) {
	chain, _ := newTestChain("*")
	assert.Equal(t, 4, chain.Len())
}

func TestRequestIDGenerated(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logging.RequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
}

func TestRequestIDPropagated(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logging.RequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestLoggingMiddlewareRecordsRoute(t *testing.T) {
	chain, metrics := newTestChain("*")

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/config", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := chain.Apply(mux)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/config", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues("GET", "GET /api/config", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues("GET", "unmatched", "404")))
}

func TestCORS(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	t.Run("wildcard", func(t *testing.T) {
		chain, _ := newTestChain("*")
		req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
		req.Header.Set("Origin", "https://anything.example")
		rec := httptest.NewRecorder()
		chain.Apply(ok).ServeHTTP(rec, req)

		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("listed origin echoed", func(t *testing.T) {
		chain, _ := newTestChain("https://panel.example.com")
		req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
		req.Header.Set("Origin", "https://panel.example.com")
		rec := httptest.NewRecorder()
		chain.Apply(ok).ServeHTTP(rec, req)

		assert.Equal(t, "https://panel.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rec.Header().Values("Vary"), "Origin")
	})

	t.Run("unlisted origin", func(t *testing.T) {
		chain, _ := newTestChain("https://panel.example.com")
		req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
		req.Header.Set("Origin", "https://evil.example")
		rec := httptest.NewRecorder()
		chain.Apply(ok).ServeHTTP(rec, req)

		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		chain, _ := newTestChain("*")
		called := false
		req := httptest.NewRequest(http.MethodOptions, "/api/lock", nil)
		req.Header.Set("Origin", "https://panel.example.com")
		req.Header.Set("Access-Control-Request-Method", "POST")
		rec := httptest.NewRecorder()
		chain.Apply(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		})).ServeHTTP(rec, req)

		assert.False(t, called)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
	})

	t.Run("non api paths untouched", func(t *testing.T) {
		chain, _ := newTestChain("*")
		for _, path := range []string{"/healthz", "/metrics", "/"} {
			called := false
			req := httptest.NewRequest(http.MethodOptions, path, nil)
			req.Header.Set("Origin", "https://panel.example.com")
			req.Header.Set("Access-Control-Request-Method", "GET")
			rec := httptest.NewRecorder()
			chain.Apply(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusMethodNotAllowed)
			})).ServeHTTP(rec, req)

			assert.True(t, called, path)
			assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, path)
			assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"), path)
		}
	})
}

func TestCompress(t *testing.T) {
	body := strings.Repeat("panic button ", 1000)
	handler := Compress(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(body))
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	assert.Less(t, rec.Body.Len(), len(body))
}
