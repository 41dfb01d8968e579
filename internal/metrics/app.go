package metrics

import (
	"context"
	"errors"
	"time"

	gferrors "github.com/fulmenhq/gofulmen/errors"

	"github.com/weirdgate/weirdgate/internal/observability"
)

// Application-level metrics following Prometheus conventions
var (
	// Store operations: ledger snapshot/restore, settings persistence.
	OperationsTotal       = "app_operations_total"
	OperationsErrorsTotal = "app_operations_errors_total"

	// Health check metrics
	HealthCheckTotal    = "app_health_check_total"
	HealthCheckDuration = "app_health_check_duration_ms"

	// Server lifecycle metrics
	ServerStartTime = "app_server_start_time_seconds"
	ServerUptime    = "app_server_uptime_seconds"
)

// RecordOperation counts one run of operation. A non-nil err is also
// counted against the error type it carries.
func RecordOperation(operation string, err error) {
	if observability.TelemetrySystem == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "failure"
	}
	_ = observability.TelemetrySystem.Counter(OperationsTotal, 1, map[string]string{
		"operation": operation,
		"status":    status,
	})

	if err != nil {
		_ = observability.TelemetrySystem.Counter(OperationsErrorsTotal, 1, map[string]string{
			"operation":  operation,
			"error_type": errorType(err),
		})
	}
}

func errorType(err error) string {
	var envelope *gferrors.ErrorEnvelope
	switch {
	case errors.As(err, &envelope) && envelope.Code != "":
		return envelope.Code
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}

// RecordHealthCheck records a health check execution
func RecordHealthCheck(checkName string, status string, duration time.Duration) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(HealthCheckTotal, 1, map[string]string{
		"check":  checkName,
		"status": status,
	})
	_ = observability.TelemetrySystem.Histogram(HealthCheckDuration, duration, map[string]string{
		"check": checkName,
	})
}

// SetServerStartTime records the server start time (Unix timestamp)
func SetServerStartTime(timestamp int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(ServerStartTime, float64(timestamp), nil)
	}
}

// SetServerUptime records the server uptime in seconds
func SetServerUptime(seconds int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(ServerUptime, float64(seconds), nil)
	}
}
