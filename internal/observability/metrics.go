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
	errorCount    map[string]int64
	mutationCount map[string]int64
	totalRequests int64
	totalErrors   int64
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Requests  int64            `json:"total"`
	Errors    int64            `json:"errors"`
	Mutations map[string]int64 `json:"-"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:  make(map[string]int64),
		errorCount:    make(map[string]int64),
		mutationCount: make(map[string]int64),
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
	m.totalRequests++
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
	m.totalErrors++
}

// RecordContactEvent counts a committed contact mutation by operation.
func (m *Metrics) RecordContactEvent(operation string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mutationCount[operation]++
}

// Snapshot returns totals safe to serialize.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{Mutations: map[string]int64{}}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	mutations := make(map[string]int64, len(m.mutationCount))
	for k, v := range m.mutationCount {
		mutations[k] = v
	}
	return Snapshot{
		Requests:  m.totalRequests,
		Errors:    m.totalErrors,
		Mutations: mutations,
	}
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
