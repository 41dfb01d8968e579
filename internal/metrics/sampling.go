package metrics

import (
	"github.com/weirdgate/weirdgate/internal/core"
	"github.com/weirdgate/weirdgate/internal/observability"
)

// Sampling metrics
const (
	DecisionsTotal        = "weird_decisions_total"
	ObjectsNotFoundTotal  = "weird_objects_not_found_total"
	LedgerEvictionsTotal  = "weird_ledger_evictions_total"
	LedgerSweptTotal      = "weird_ledger_swept_total"
	LedgerKeys            = "weird_ledger_keys"
	RegisteredObjectsName = "weird_objects_registered"
)

// RecordDecision counts one sampling decision. Exempt passes are labelled
// separately so they can be told apart from threshold and rate passes.
func RecordDecision(decision core.Decision, exempt bool) {
	label := decision.String()
	if exempt {
		label = "exempt"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			DecisionsTotal,
			1,
			map[string]string{
				"decision": label,
			},
		)
	}
}

// RecordObjectNotFound counts an object-scoped weird whose object was unknown.
func RecordObjectNotFound() {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(ObjectsNotFoundTotal, 1, nil)
	}
}

// RecordEvictions counts windows dropped because the ledger was full.
func RecordEvictions(n int) {
	if n <= 0 {
		return
	}
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(LedgerEvictionsTotal, float64(n), nil)
	}
}

// RecordSwept counts windows dropped by idle expiry.
func RecordSwept(n int) {
	if n <= 0 {
		return
	}
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(LedgerSweptTotal, float64(n), nil)
	}
}

// SetLedgerKeys records the number of tracked windows.
func SetLedgerKeys(n int) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(LedgerKeys, float64(n), nil)
	}
}

// SetRegisteredObjects records the size of the object index.
func SetRegisteredObjects(n int) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(RegisteredObjectsName, float64(n), nil)
	}
}
