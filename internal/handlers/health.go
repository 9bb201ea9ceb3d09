package handlers

import (
	"net/http"
	"time"

	domain "github.com/vendormart/api/internal/domain"
	"github.com/vendormart/api/internal/platform/httpx"
	"github.com/vendormart/api/internal/repositories"
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version     string
	CommitSHA   string
	Environment string
	StartedAt   time.Time
}

// HealthHandlers serves liveness and readiness probes.
type HealthHandlers struct {
	build  BuildInfo
	health repositories.HealthRepository
	clock  func() time.Time
}

// HealthOption customises HealthHandlers.
type HealthOption func(*HealthHandlers)

// WithHealthBuildInfo sets the build metadata reported by both probes.
func WithHealthBuildInfo(info BuildInfo) HealthOption {
	return func(h *HealthHandlers) { h.build = info }
}

// WithHealthRepository enables dependency checks on /readyz.
func WithHealthRepository(repo repositories.HealthRepository) HealthOption {
	return func(h *HealthHandlers) { h.health = repo }
}

// WithHealthClock overrides the clock used for uptime.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// NewHealthHandlers constructs HealthHandlers.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	if h.build.StartedAt.IsZero() {
		h.build.StartedAt = h.clock()
	}
	return h
}

type healthResponse struct {
	Status      domain.HealthStatus          `json:"status"`
	Version     string                       `json:"version,omitempty"`
	CommitSHA   string                       `json:"commitSha,omitempty"`
	Environment string                       `json:"environment,omitempty"`
	Uptime      string                       `json:"uptime"`
	Timestamp   string                       `json:"timestamp"`
	Checks      map[string]healthCheckResult `json:"checks,omitempty"`
}

type healthCheckResult struct {
	Status    domain.HealthStatus `json:"status"`
	LatencyMS int64               `json:"latencyMs"`
	Error     string              `json:"error,omitempty"`
}

// Healthz reports liveness without touching dependencies.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, h.baseResponse(domain.HealthStatusOK))
}

// Readyz runs the dependency checks and returns 503 unless every check is ok.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.health == nil {
		httpx.WriteJSON(w, http.StatusOK, h.baseResponse(domain.HealthStatusOK))
		return
	}
	report, err := h.health.Collect(r.Context())
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("health_check_failed", "unable to collect health report", http.StatusServiceUnavailable))
		return
	}

	resp := h.baseResponse(report.Status)
	resp.Checks = make(map[string]healthCheckResult, len(report.Checks))
	for name, check := range report.Checks {
		resp.Checks[name] = healthCheckResult{
			Status:    check.Status,
			LatencyMS: check.Latency.Milliseconds(),
			Error:     check.Error,
		}
	}
	status := http.StatusOK
	if report.Status != domain.HealthStatusOK {
		status = http.StatusServiceUnavailable
	}
	httpx.WriteJSON(w, status, resp)
}

func (h *HealthHandlers) baseResponse(status domain.HealthStatus) healthResponse {
	now := h.clock().UTC()
	return healthResponse{
		Status:      status,
		Version:     h.build.Version,
		CommitSHA:   h.build.CommitSHA,
		Environment: h.build.Environment,
		Uptime:      now.Sub(h.build.StartedAt).Truncate(time.Second).String(),
		Timestamp:   now.Format(time.RFC3339),
	}
}
