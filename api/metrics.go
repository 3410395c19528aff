package api

import (
	"sync"
	"time"
)

// AlertType identifies the kind of anomaly detected.
type AlertType string

const (
	AlertAuthFailureSpike AlertType = "auth_failure_spike"
)

// AlertEvent describes an anomaly that triggered an alert.
type AlertEvent struct {
	Type      AlertType `json:"type"`
	Message   string    `json:"message"`
	Count     int       `json:"count"`
	Threshold int       `json:"threshold"`
	Timestamp time.Time `json:"timestamp"`
}

// AlertFunc is the callback invoked when an anomaly is detected.
type AlertFunc func(AlertEvent)

// metricsCollector tracks a sliding window of auth failures. A spike of
// mismatched sync tokens across accounts is the signature of an online
// guessing sweep, which per-account rate limiting alone cannot see.
type metricsCollector struct {
	mu sync.Mutex

	authFailures []time.Time
	window       time.Duration
	threshold    int

	alertFn AlertFunc
}

const (
	defaultAuthFailureWindow    = 1 * time.Minute
	defaultAuthFailureThreshold = 50
)

func newMetricsCollector(alertFn AlertFunc) *metricsCollector {
	return &metricsCollector{
		window:    defaultAuthFailureWindow,
		threshold: defaultAuthFailureThreshold,
		alertFn:   alertFn,
	}
}

func (mc *metricsCollector) recordEvent(event AuditEvent) {
	if event != AuditAuthFailure {
		return
	}

	mc.mu.Lock()
	now := time.Now()
	mc.authFailures = append(mc.authFailures, now)
	mc.authFailures = pruneBefore(mc.authFailures, now.Add(-mc.window))
	count := len(mc.authFailures)
	fire := count >= mc.threshold
	if fire {
		// Reset so the alert fires once per spike, not per request.
		mc.authFailures = nil
	}
	alertFn := mc.alertFn
	mc.mu.Unlock()

	if fire && alertFn != nil {
		alertFn(AlertEvent{
			Type:      AlertAuthFailureSpike,
			Message:   "auth failure rate exceeded threshold",
			Count:     count,
			Threshold: mc.threshold,
			Timestamp: now,
		})
	}
}

func pruneBefore(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for ; i < len(ts); i++ {
		if ts[i].After(cutoff) {
			break
		}
	}
	return ts[i:]
}
