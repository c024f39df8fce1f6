package telemetry

import "sync/atomic"

// Metrics collects bridge runtime counters.
type Metrics struct {
	// Counters
	MessagesSynced      int64
	SyncFailures        int64
	ContextFetches      int64
	ContextCacheHits    int64
	SessionsInitialized int64
	APIRequests         int64
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// IncMessagesSynced increments the synced-message counter.
func (m *Metrics) IncMessagesSynced() {
	atomic.AddInt64(&m.MessagesSynced, 1)
}

// IncSyncFailures increments the failed-sync counter.
func (m *Metrics) IncSyncFailures() {
	atomic.AddInt64(&m.SyncFailures, 1)
}

// IncContextFetches increments the remote context-fetch counter.
func (m *Metrics) IncContextFetches() {
	atomic.AddInt64(&m.ContextFetches, 1)
}

// IncContextCacheHits increments the context-cache hit counter.
func (m *Metrics) IncContextCacheHits() {
	atomic.AddInt64(&m.ContextCacheHits, 1)
}

// IncSessionsInitialized increments the session-init counter.
func (m *Metrics) IncSessionsInitialized() {
	atomic.AddInt64(&m.SessionsInitialized, 1)
}

// IncAPIRequests increments the outbound API request counter.
func (m *Metrics) IncAPIRequests() {
	atomic.AddInt64(&m.APIRequests, 1)
}

// Snapshot returns a point-in-time copy of all counters.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"messages_synced":      atomic.LoadInt64(&m.MessagesSynced),
		"sync_failures":        atomic.LoadInt64(&m.SyncFailures),
		"context_fetches":      atomic.LoadInt64(&m.ContextFetches),
		"context_cache_hits":   atomic.LoadInt64(&m.ContextCacheHits),
		"sessions_initialized": atomic.LoadInt64(&m.SessionsInitialized),
		"api_requests":         atomic.LoadInt64(&m.APIRequests),
	}
}
