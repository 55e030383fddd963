package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu            sync.Mutex
	requestCount  map[string]int64
	requestMillis map[string]int64
	errorCount    map[string]int64
	syncCount     map[string]int64
	pushFailures  int64
	transitions   map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:  make(map[string]int64),
		requestMillis: make(map[string]int64),
		errorCount:    make(map[string]int64),
		syncCount:     make(map[string]int64),
		transitions:   make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
	m.requestMillis[key] += duration.Milliseconds()
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordSync adds one batch run's tallies under job ("sync_recent" or "check_replies").
func (m *Metrics) RecordSync(job string, scanned, matched, updated, errors int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncCount[job+"|runs"]++
	m.syncCount[job+"|scanned"] += int64(scanned)
	m.syncCount[job+"|matched"] += int64(matched)
	m.syncCount[job+"|updated"] += int64(updated)
	m.syncCount[job+"|errors"] += int64(errors)
}

// RecordTransition counts a genuine status change.
func (m *Metrics) RecordTransition(to string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions[to]++
}

// RecordPushFailure counts a swallowed push delivery error.
func (m *Metrics) RecordPushFailure() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pushFailures++
}

// Snapshot is a point-in-time copy of every counter.
type Snapshot struct {
	Requests     map[string]int64 `json:"requests"`
	RequestMs    map[string]int64 `json:"request_ms"`
	Errors       map[string]int64 `json:"errors"`
	Sync         map[string]int64 `json:"sync"`
	Transitions  map[string]int64 `json:"transitions"`
	PushFailures int64            `json:"push_failures"`
}

// Snapshot copies the counters.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Requests:     copyCounts(m.requestCount),
		RequestMs:    copyCounts(m.requestMillis),
		Errors:       copyCounts(m.errorCount),
		Sync:         copyCounts(m.syncCount),
		Transitions:  copyCounts(m.transitions),
		PushFailures: m.pushFailures,
	}
}

func copyCounts(src map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
