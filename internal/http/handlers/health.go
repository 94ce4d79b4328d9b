package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/wolfman30/pharmacy-order-relay/pkg/logging"
)

// CheckFunc probes one dependency.
type CheckFunc func(ctx context.Context) error

// HealthHandler serves liveness and readiness.
type HealthHandler struct {
	checks  map[string]CheckFunc
	timeout time.Duration
	logger  *logging.Logger
}

func NewHealthHandler(checks map[string]CheckFunc, timeout time.Duration, logger *logging.Logger) *HealthHandler {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &HealthHandler{checks: checks, timeout: timeout, logger: logger}
}

// Live always reports ok while the process serves requests.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready runs every check concurrently and returns 503 if any fails.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]string, len(h.checks))
		healthy = true
	)
	for name, check := range h.checks {
		name, check := name, check
		wg.Add(1)
		go func() {
			defer wg.Done()
			status := "ok"
			if err := check(ctx); err != nil {
				h.logger.Warn("readiness check failed", "check", name, "error", err)
				status = "unavailable"
			}
			mu.Lock()
			results[name] = status
			if status != "ok" {
				healthy = false
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	code, status := http.StatusOK, "ok"
	if !healthy {
		code, status = http.StatusServiceUnavailable, "degraded"
	}
	writeJSON(w, code, map[string]any{"status": status, "checks": results})
}
