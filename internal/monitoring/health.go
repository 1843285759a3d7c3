package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/msfocb/panicbutton/internal/logging"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
)

// HealthCheck represents a single health check
type HealthCheck struct {
	Name     string        `json:"name"`
	Status   HealthStatus  `json:"status"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration"`
	Critical bool          `json:"critical"`
}

// HealthChecker defines the interface for health check functions
type HealthChecker interface {
	Check(ctx context.Context) HealthCheck
	Name() string
	IsCritical() bool
}

// HealthCheckFunc adapts a function to HealthChecker.
type HealthCheckFunc struct {
	name     string
	checkFn  func(ctx context.Context) (HealthStatus, string)
	critical bool
}

// NewHealthCheckFunc creates a health check from fn.
func NewHealthCheckFunc(name string, critical bool, fn func(ctx context.Context) (HealthStatus, string)) *HealthCheckFunc {
	return &HealthCheckFunc{name: name, checkFn: fn, critical: critical}
}

// Check executes the health check function
func (h *HealthCheckFunc) Check(ctx context.Context) HealthCheck {
	status, message := h.checkFn(ctx)
	return HealthCheck{Name: h.name, Status: status, Message: message, Critical: h.critical}
}

// Name returns the health check name
func (h *HealthCheckFunc) Name() string { return h.name }

// IsCritical returns whether this check is critical
func (h *HealthCheckFunc) IsCritical() bool { return h.critical }

// HealthResponse represents the overall health response
type HealthResponse struct {
	Status    HealthStatus           `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Uptime    string                 `json:"uptime"`
	Checks    map[string]HealthCheck `json:"checks"`
}

// HealthMonitor runs registered checks on demand. Checks are cheap local
// probes, so there is no background loop.
type HealthMonitor struct {
	mu      sync.RWMutex
	checks  map[string]HealthChecker
	logger  logging.Logger
	timeout time.Duration
	started time.Time
}

// NewHealthMonitor creates a new health monitor
func NewHealthMonitor(logger logging.Logger) *HealthMonitor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &HealthMonitor{
		checks:  make(map[string]HealthChecker),
		logger:  logger.WithComponent("health"),
		timeout: 5 * time.Second,
		started: time.Now(),
	}
}

// RegisterCheck registers a health check, replacing one with the same name.
func (hm *HealthMonitor) RegisterCheck(checker HealthChecker) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checks[checker.Name()] = checker
}

// GetHealth runs every check concurrently and aggregates the results.
func (hm *HealthMonitor) GetHealth(ctx context.Context) HealthResponse {
	hm.mu.RLock()
	checks := make([]HealthChecker, 0, len(hm.checks))
	for _, c := range hm.checks {
		checks = append(checks, c)
	}
	hm.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, hm.timeout)
	defer cancel()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make(map[string]HealthCheck, len(checks))
	)
	for _, checker := range checks {
		wg.Add(1)
		go func(checker HealthChecker) {
			defer wg.Done()

			start := time.Now()
			result := checker.Check(ctx)
			result.Duration = time.Since(start)

			mu.Lock()
			results[result.Name] = result
			mu.Unlock()
		}(checker)
	}
	wg.Wait()

	for _, result := range results {
		if result.Status != HealthStatusHealthy {
			hm.logger.Warn(ctx, nil, "Health check failed",
				"name", result.Name,
				"status", string(result.Status),
				"message", result.Message)
		}
	}

	return HealthResponse{
		Status:    overallStatus(results),
		Timestamp: time.Now(),
		Uptime:    time.Since(hm.started).Round(time.Second).String(),
		Checks:    results,
	}
}

// overallStatus is unhealthy if a critical check fails and degraded if
// anything else is not healthy.
func overallStatus(checks map[string]HealthCheck) HealthStatus {
	status := HealthStatusHealthy
	for _, check := range checks {
		switch {
		case check.Status == HealthStatusHealthy:
		case check.Critical && check.Status == HealthStatusUnhealthy:
			return HealthStatusUnhealthy
		default:
			status = HealthStatusDegraded
		}
	}
	return status
}

// HTTPHandler serves the health report. Unhealthy maps to 503 so load
// balancers stop routing to the instance.
func (hm *HealthMonitor) HTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := hm.GetHealth(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if health.Status == HealthStatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}

		if err := json.NewEncoder(w).Encode(health); err != nil {
			hm.logger.Error(r.Context(), err, "Failed to encode health response")
		}
	}
}

// Predefined health checks

// CommandHealthChecker verifies the executable of command can be resolved.
// A missing lock command means every real lock request will fail.
func CommandHealthChecker(name, command string) HealthChecker {
	return NewHealthCheckFunc(name, true, func(ctx context.Context) (HealthStatus, string) {
		fields := strings.Fields(command)
		if len(fields) == 0 {
			return HealthStatusUnhealthy, "no command configured"
		}
		path, err := exec.LookPath(fields[0])
		if err != nil {
			return HealthStatusUnhealthy, fmt.Sprintf("cannot resolve %s: %v", fields[0], err)
		}
		return HealthStatusHealthy, path
	})
}

// StaticDirHealthChecker verifies the control panel entry page exists.
// The API keeps working without it, so the check is not critical.
func StaticDirHealthChecker(dir string) HealthChecker {
	return NewHealthCheckFunc("static", false, func(ctx context.Context) (HealthStatus, string) {
		index := filepath.Join(dir, "index.html")
		if _, err := os.Stat(index); err != nil {
			return HealthStatusDegraded, fmt.Sprintf("control panel unavailable: %v", err)
		}
		return HealthStatusHealthy, index
	})
}

// GoroutineHealthChecker checks for goroutine leaks
func GoroutineHealthChecker(limit int) HealthChecker {
	return NewHealthCheckFunc("goroutines", false, func(ctx context.Context) (HealthStatus, string) {
		n := runtime.NumGoroutine()
		if n > limit {
			return HealthStatusDegraded, fmt.Sprintf("high goroutine count: %d", n)
		}
		return HealthStatusHealthy, fmt.Sprintf("%d goroutines", n)
	})
}
