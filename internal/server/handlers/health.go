package handlers

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/errors"

	"github.com/weirdgate/weirdgate/internal/metrics"
)

// Check results.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
	StatusTimeout   = "timeout"
)

// ErrDegraded marks a check failure that leaves the service able to serve
// traffic, such as a sampling ledger evicting windows at capacity.
var ErrDegraded = stderrors.New("degraded")

// Degraded wraps a reason so the check reports degraded rather than unhealthy.
func Degraded(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDegraded, fmt.Sprintf(format, args...))
}

// HealthResponse represents the aggregate health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
	Reasons   map[string]string `json:"reasons,omitempty"`
}

// ProbeResponse represents individual probe response
type ProbeResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthChecker defines interface for health checkable components
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// probe timeouts
var probeTimeouts = map[string]time.Duration{
	"aggregate": 5 * time.Second,
	"live":      2 * time.Second,
	"ready":     5 * time.Second,
	"startup":   3 * time.Second,
}

// HealthManager manages health checks and probe states
type HealthManager struct {
	mu       sync.RWMutex
	checkers map[string]HealthChecker
	version  string
}

// NewHealthManager creates a new health manager
func NewHealthManager(version string) *HealthManager {
	return &HealthManager{
		checkers: make(map[string]HealthChecker),
		version:  version,
	}
}

// RegisterChecker registers a health checker, replacing any with the same name.
func (hm *HealthManager) RegisterChecker(name string, checker HealthChecker) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checkers[name] = checker
}

type checkResults struct {
	status  map[string]string
	reasons map[string]string
}

// runHealthChecks executes registered checks in name order. Checks not
// reached before ctx expires are reported as timeouts.
func (hm *HealthManager) runHealthChecks(ctx context.Context) checkResults {
	hm.mu.RLock()
	names := make([]string, 0, len(hm.checkers))
	checkers := make(map[string]HealthChecker, len(hm.checkers))
	for name, c := range hm.checkers {
		names = append(names, name)
		checkers[name] = c
	}
	hm.mu.RUnlock()
	sort.Strings(names)

	res := checkResults{status: make(map[string]string, len(names)), reasons: map[string]string{}}
	for _, name := range names {
		if ctx.Err() != nil {
			res.status[name] = StatusTimeout
			continue
		}
		started := time.Now()
		err := checkers[name].CheckHealth(ctx)
		switch {
		case err == nil:
			res.status[name] = StatusHealthy
		case stderrors.Is(err, ErrDegraded):
			res.status[name] = StatusDegraded
			res.reasons[name] = err.Error()
		default:
			res.status[name] = StatusUnhealthy
			res.reasons[name] = err.Error()
		}
		metrics.RecordHealthCheck(name, res.status[name], time.Since(started))
	}
	return res
}

// determineOverallStatus determines overall health status
func (hm *HealthManager) determineOverallStatus(checks map[string]string) string {
	degraded := false
	for _, status := range checks {
		if status == StatusUnhealthy {
			return StatusUnhealthy
		}
		if status == StatusDegraded || status == StatusTimeout {
			degraded = true
		}
	}
	if degraded {
		return StatusDegraded
	}
	return StatusHealthy
}

// probe runs the checks under the probe's timeout and writes either the
// success body built by ok or a SERVICE_UNAVAILABLE envelope.
func (hm *HealthManager) probe(w http.ResponseWriter, r *http.Request, name string, ok func(status string, res checkResults) any) {
	ctx, cancel := context.WithTimeout(r.Context(), probeTimeouts[name])
	defer cancel()

	res := hm.runHealthChecks(ctx)
	status := hm.determineOverallStatus(res.status)

	if status == StatusUnhealthy {
		envelope := errors.NewErrorEnvelope("SERVICE_UNAVAILABLE", probeFailureMessage(name))
		envelope = enrichHealthEnvelope(envelope, name, status, res)
		respondWithError(w, r, envelope)
		return
	}

	writeJSON(w, http.StatusOK, ok(status, res))
}

func probeFailureMessage(name string) string {
	switch name {
	case "aggregate":
		return "aggregate health check failed"
	case "live":
		return "liveness probe failed"
	case "ready":
		return "readiness probe failed"
	default:
		return name + " probe failed"
	}
}

func probeOK(status string, _ checkResults) any {
	return ProbeResponse{Status: status, Timestamp: time.Now().UTC()}
}

// HealthHandler handles aggregate health check requests
func (hm *HealthManager) HealthHandler(w http.ResponseWriter, r *http.Request) {
	hm.probe(w, r, "aggregate", func(status string, res checkResults) any {
		resp := HealthResponse{
			Status:    status,
			Version:   hm.version,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Checks:    res.status,
		}
		if len(res.reasons) > 0 {
			resp.Reasons = res.reasons
		}
		return resp
	})
}

// LivenessHandler reports whether the process is running.
func (hm *HealthManager) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	hm.probe(w, r, "live", probeOK)
}

// ReadinessHandler reports whether raised weirds can be decided.
func (hm *HealthManager) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	hm.probe(w, r, "ready", probeOK)
}

// StartupHandler reports whether initialization has completed.
func (hm *HealthManager) StartupHandler(w http.ResponseWriter, r *http.Request) {
	hm.probe(w, r, "startup", probeOK)
}

func enrichHealthEnvelope(envelope *errors.ErrorEnvelope, probe, status string, res checkResults) *errors.ErrorEnvelope {
	if envelope == nil {
		return nil
	}

	details := map[string]interface{}{
		"status": status,
	}
	if len(res.status) > 0 {
		details["checks"] = res.status
	}
	if len(res.reasons) > 0 {
		details["reasons"] = res.reasons
	}
	if probe != "" {
		details["probe"] = probe
	}
	envelope = envelope.WithDetails(details)

	contextData := map[string]interface{}{
		"status": status,
	}
	if probe != "" {
		contextData["probe"] = probe
	}

	var unhealthy []string
	for name, result := range res.status {
		if result != StatusHealthy {
			unhealthy = append(unhealthy, name)
		}
	}
	if len(unhealthy) > 0 {
		sort.Strings(unhealthy)
		contextData["unhealthy_checks"] = unhealthy
	}

	envelope, _ = envelope.WithContext(contextData)
	return envelope
}

var globalHealthManager *HealthManager

// InitHealthManager initializes the global health manager
func InitHealthManager(version string) {
	globalHealthManager = NewHealthManager(version)
}

// GetHealthManager returns the global health manager
func GetHealthManager() *HealthManager {
	return globalHealthManager
}

func withGlobalManager(probe string, serve func(*HealthManager, http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if globalHealthManager != nil {
			serve(globalHealthManager, w, r)
			return
		}
		envelope := errors.NewErrorEnvelope("SERVICE_UNAVAILABLE", "health manager not initialized")
		envelope = enrichHealthEnvelope(envelope, probe, "unknown", checkResults{})
		respondWithError(w, r, envelope)
	}
}

// Route handlers backed by the global manager.
var (
	HealthHandler    = withGlobalManager("aggregate", (*HealthManager).HealthHandler)
	LivenessHandler  = withGlobalManager("live", (*HealthManager).LivenessHandler)
	ReadinessHandler = withGlobalManager("ready", (*HealthManager).ReadinessHandler)
	StartupHandler   = withGlobalManager("startup", (*HealthManager).StartupHandler)
)
