package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Build-time variables injected via ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

// HealthResponse is the JSON response for the liveness endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

// ReadinessResponse is the JSON response for the readiness endpoint.
type ReadinessResponse struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
}

// CheckResult is the result of a single readiness check.
type CheckResult struct {
	Status    string `json:"status"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// HealthChecker can verify its own health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ReadinessChecks holds the dependency checkers for the readiness endpoint.
// Nil checkers are skipped.
type ReadinessChecks struct {
	Store            HealthChecker
	IdempotencyStore HealthChecker
}

const checkTimeout = 2 * time.Second

// HandleHealth returns an HTTP handler for the liveness endpoint.
func HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(HealthResponse{
			Status:  "ok",
			Version: Version,
			Commit:  Commit,
		})
	}
}

// HandleReady returns an HTTP handler for the readiness endpoint. It runs
// each configured check with a short timeout and reports 503 if any fails.
func HandleReady(checks ReadinessChecks) http.HandlerFunc {
	named := map[string]HealthChecker{
		"store":             checks.Store,
		"idempotency_store": checks.IdempotencyStore,
	}

	return func(w http.ResponseWriter, r *http.Request) {
		results := make(map[string]CheckResult, len(named))
		allOK := true

		for name, checker := range named {
			if checker == nil {
				continue
			}
			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			start := time.Now()
			err := checker.HealthCheck(ctx)
			cancel()

			result := CheckResult{
				Status:    "ok",
				LatencyMs: time.Since(start).Milliseconds(),
			}
			if err != nil {
				result.Status = "failed"
				result.Error = err.Error()
				allOK = false
			}
			results[name] = result
		}

		status := "ready"
		code := http.StatusOK
		if !allOK {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(ReadinessResponse{Status: status, Checks: results})
	}
}
