package twofactor

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter.
type MetricID uint16

const (
	// MetricSetupStarted counts BeginSetup calls that stored a pending secret.
	MetricSetupStarted MetricID = iota
	// MetricSetupCompleted counts successful CompleteSetup calls.
	MetricSetupCompleted
	// MetricSetupFailed counts CompleteSetup calls with a wrong code.
	MetricSetupFailed
	// MetricTOTPSuccess counts accepted TOTP codes.
	MetricTOTPSuccess
	// MetricTOTPFailure counts rejected TOTP codes, replays included.
	MetricTOTPFailure
	// MetricTOTPReplay counts codes rejected because their step was already used.
	MetricTOTPReplay
	// MetricLockoutTriggered counts failures that locked a user.
	MetricLockoutTriggered
	// MetricLockedRejected counts attempts refused while locked.
	MetricLockedRejected
	// MetricBackupCodeUsed counts consumed backup codes.
	MetricBackupCodeUsed
	// MetricBackupCodeFailed counts rejected backup codes.
	MetricBackupCodeFailed
	// MetricBackupCodesRegenerated counts replaced backup code sets.
	MetricBackupCodesRegenerated
	// MetricDisabled counts successful Disable calls.
	MetricDisabled
	// MetricGateAllowed counts gate checks that let the request through.
	MetricGateAllowed
	// MetricGateRejected counts gate checks that returned ErrSessionUnverified.
	MetricGateRejected
	// MetricSessionRevoked counts verification rows dropped on logout.
	MetricSessionRevoked
	// MetricStoreError counts profile or verification store failures.
	MetricStoreError
	// MetricGateLatency is the latency histogram of RequireVerified.
	MetricGateLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a fixed set of lock-free counters plus one latency histogram.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of every counter. Histograms holds
// bucket counts (not cumulative) for MetricGateLatency when enabled.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns a counter set configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the gate latency histogram is recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter of id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram of id. Only MetricGateLatency carries a
// histogram; other ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricGateLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current count of id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and, when enabled, the latency buckets.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricGateLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricGateLatency].buckets[i])
		}
		s.Histograms[MetricGateLatency] = buckets
	}

	return s
}

// Bucket upper bounds in milliseconds: 1, 2, 5, 10, 25, 50, 100, +Inf.
func bucketIndex(d time.Duration) int {
	us := d.Microseconds()

	switch {
	case us <= 1000:
		return 0
	case us <= 2000:
		return 1
	case us <= 5000:
		return 2
	case us <= 10000:
		return 3
	case us <= 25000:
		return 4
	case us <= 50000:
		return 5
	case us <= 100000:
		return 6
	default:
		return 7
	}
}
