package portalauth

import (
	"sync/atomic"
	"time"
)

// MetricID names one engine counter.
type MetricID uint16

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricLoginRateLimited
	MetricLoginValidationFailed
	MetricCSRFRejected
	MetricCredentialMigrated
	MetricProfileNotAssigned
	MetricDataQualityFlag
	MetricStoreUnavailable
	MetricSessionCreated
	MetricSessionCheckSuccess
	MetricSessionCheckFailure
	MetricSessionBindingMismatch
	MetricSessionInvalidated
	MetricLogout
	MetricCSRFRotated
	MetricAuditDropped
	// MetricLoginLatency is the only histogram.
	MetricLoginLatency
)

var metricNames = [...]string{
	MetricLoginSuccess:           "login_success_total",
	MetricLoginFailure:           "login_failure_total",
	MetricLoginRateLimited:       "login_rate_limited_total",
	MetricLoginValidationFailed:  "login_validation_failed_total",
	MetricCSRFRejected:           "csrf_rejected_total",
	MetricCredentialMigrated:     "credential_migrated_total",
	MetricProfileNotAssigned:     "profile_not_assigned_total",
	MetricDataQualityFlag:        "data_quality_flag_total",
	MetricStoreUnavailable:       "store_unavailable_total",
	MetricSessionCreated:         "session_created_total",
	MetricSessionCheckSuccess:    "session_check_success_total",
	MetricSessionCheckFailure:    "session_check_failure_total",
	MetricSessionBindingMismatch: "session_binding_mismatch_total",
	MetricSessionInvalidated:     "session_invalidated_total",
	MetricLogout:                 "logout_total",
	MetricCSRFRotated:            "csrf_rotated_total",
	MetricAuditDropped:           "audit_dropped_total",
	MetricLoginLatency:           "login_latency_seconds",
}

// String is the exported series name without the namespace prefix.
func (id MetricID) String() string {
	if int(id) < len(metricNames) {
		return metricNames[id]
	}
	return "unknown"
}

// MetricIDs lists the counter ids in declaration order, excluding the
// latency histogram.
func MetricIDs() []MetricID {
	ids := make([]MetricID, MetricLoginLatency)
	for i := range ids {
		ids[i] = MetricID(i)
	}
	return ids
}

// HistogramBounds are the upper bounds of the login latency buckets. One
// more bucket past the last bound catches everything slower.
var HistogramBounds = [...]time.Duration{
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
	time.Second,
	2500 * time.Millisecond,
	5 * time.Second,
}

const latencyBuckets = len(HistogramBounds) + 1

// Metrics is the engine's counter set. Every method is safe on a nil
// receiver and lock-free.
type Metrics struct {
	on      bool
	latency bool
	counts  [MetricLoginLatency]atomic.Uint64
	hist    [latencyBuckets]atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of every counter. Histogram
// buckets are per bucket, not cumulative.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{on: cfg.Enabled, latency: cfg.Enabled && cfg.EnableLatencyHistograms}
}

func (m *Metrics) Enabled() bool        { return m != nil && m.on }
func (m *Metrics) LatencyEnabled() bool { return m != nil && m.latency }

// Inc adds one to a counter. Unknown ids and the histogram id are ignored.
func (m *Metrics) Inc(id MetricID) {
	if !m.Enabled() || id >= MetricLoginLatency {
		return
	}
	m.counts[id].Add(1)
}

// Observe files d into the latency histogram. Only MetricLoginLatency is
// accepted.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if !m.LatencyEnabled() || id != MetricLoginLatency {
		return
	}
	slot := len(HistogramBounds)
	for i, upper := range HistogramBounds {
		if d <= upper {
			slot = i
			break
		}
	}
	m.hist[slot].Add(1)
}

// Value reads one counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= MetricLoginLatency {
		return 0
	}
	return m.counts[id].Load()
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Counters:   map[MetricID]uint64{},
		Histograms: map[MetricID][]uint64{},
	}
	if !m.Enabled() {
		return snap
	}
	for _, id := range MetricIDs() {
		snap.Counters[id] = m.counts[id].Load()
	}
	if m.latency {
		buckets := make([]uint64, latencyBuckets)
		for i := range buckets {
			buckets[i] = m.hist[i].Load()
		}
		snap.Histograms[MetricLoginLatency] = buckets
	}
	return snap
}
