package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	eventsApplied   atomic.Uint64
	eventsRejected  atomic.Uint64 // malformed payloads dropped at the wire boundary
	eventsIgnored   atomic.Uint64 // push types the engine does not consume
	journalFailures atomic.Uint64
	sessionResets   atomic.Uint64

	// Latency tracking
	latencySumNs atomic.Int64
	latencyCount atomic.Uint64

	// Gauges
	activeConnections atomic.Int32
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordEvent records an applied event with its apply latency.
func (m *Metrics) RecordEvent(latencyNs int64) {
	m.eventsApplied.Add(1)
	m.latencySumNs.Add(latencyNs)
	m.latencyCount.Add(1)
}

// RecordRejected records a malformed push message.
func (m *Metrics) RecordRejected() {
	m.eventsRejected.Add(1)
}

// RecordIgnored records a push message outside the engine's scope.
func (m *Metrics) RecordIgnored() {
	m.eventsIgnored.Add(1)
}

// RecordJournalFailure records a failed journal append.
func (m *Metrics) RecordJournalFailure() {
	m.journalFailures.Add(1)
}

// RecordReset records a discarded session state.
func (m *Metrics) RecordReset() {
	m.sessionResets.Add(1)
}

// IncrementConnections increments active connections by 1.
func (m *Metrics) IncrementConnections() {
	m.activeConnections.Add(1)
}

// DecrementConnections decrements active connections by 1.
func (m *Metrics) DecrementConnections() {
	m.activeConnections.Add(-1)
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	EventsApplied     uint64
	EventsRejected    uint64
	EventsIgnored     uint64
	JournalFailures   uint64
	SessionResets     uint64
	AvgLatencyNs      int64
	ActiveConnections int32
	Timestamp         time.Time
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgLatency int64
	count := m.latencyCount.Load()
	if count > 0 {
		avgLatency = m.latencySumNs.Load() / int64(count)
	}

	return MetricsSnapshot{
		EventsApplied:     m.eventsApplied.Load(),
		EventsRejected:    m.eventsRejected.Load(),
		EventsIgnored:     m.eventsIgnored.Load(),
		JournalFailures:   m.journalFailures.Load(),
		SessionResets:     m.sessionResets.Load(),
		AvgLatencyNs:      avgLatency,
		ActiveConnections: m.activeConnections.Load(),
		Timestamp:         time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.eventsApplied.Store(0)
	m.eventsRejected.Store(0)
	m.eventsIgnored.Store(0)
	m.journalFailures.Store(0)
	m.sessionResets.Store(0)
	m.latencySumNs.Store(0)
	m.latencyCount.Store(0)
	m.activeConnections.Store(0)
}
