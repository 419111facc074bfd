package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	HTTPRequests           uint64
	SnapshotRefreshes      map[string]uint64 // keyed "query/status"
	SnapshotRefreshCount   uint64
	SnapshotRefreshTotalNs int64
	SnapshotLoads          map[string]uint64
	DBQueries              uint64
	DBErrors               map[string]uint64 // keyed "op/class"
	CommentsCreated        uint64
	CommentsUpdated        uint64
	CommentsDeleted        uint64
	CostReportsSucceeded   uint64
	CostReportsFailed      uint64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	httpRequests           uint64
	snapshotRefreshCount   uint64
	snapshotRefreshTotalNs int64
	dbQueries              uint64
	commentsCreated        uint64
	commentsUpdated        uint64
	commentsDeleted        uint64
	costReportsSucceeded   uint64
	costReportsFailed      uint64

	mu        sync.Mutex
	refreshes map[string]uint64
	loads     map[string]uint64
	dbErrors  map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		refreshes: make(map[string]uint64),
		loads:     make(map[string]uint64),
		dbErrors:  make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		HTTPRequests:           atomic.LoadUint64(&m.httpRequests),
		SnapshotRefreshes:      copyCounts(m.refreshes),
		SnapshotRefreshCount:   atomic.LoadUint64(&m.snapshotRefreshCount),
		SnapshotRefreshTotalNs: atomic.LoadInt64(&m.snapshotRefreshTotalNs),
		SnapshotLoads:          copyCounts(m.loads),
		DBQueries:              atomic.LoadUint64(&m.dbQueries),
		DBErrors:               copyCounts(m.dbErrors),
		CommentsCreated:        atomic.LoadUint64(&m.commentsCreated),
		CommentsUpdated:        atomic.LoadUint64(&m.commentsUpdated),
		CommentsDeleted:        atomic.LoadUint64(&m.commentsDeleted),
		CostReportsSucceeded:   atomic.LoadUint64(&m.costReportsSucceeded),
		CostReportsFailed:      atomic.LoadUint64(&m.costReportsFailed),
	}
}

func copyCounts(src map[string]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func (m *InMemoryRecorder) inc(counts map[string]uint64, key string) {
	m.mu.Lock()
	counts[key]++
	m.mu.Unlock()
}

// ObserveHTTPRequest counts a served request.
func (m *InMemoryRecorder) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	atomic.AddUint64(&m.httpRequests, 1)
}

// IncSnapshotRefresh counts a query refresh outcome.
func (m *InMemoryRecorder) IncSnapshotRefresh(query, status string) {
	m.inc(m.refreshes, query+"/"+status)
}

// ObserveSnapshotRefreshDuration records a full refresh run.
func (m *InMemoryRecorder) ObserveSnapshotRefreshDuration(duration time.Duration) {
	atomic.AddUint64(&m.snapshotRefreshCount, 1)
	atomic.AddInt64(&m.snapshotRefreshTotalNs, duration.Nanoseconds())
}

// IncSnapshotLoad counts where a startup snapshot came from.
func (m *InMemoryRecorder) IncSnapshotLoad(source string) {
	m.inc(m.loads, source)
}

// ObserveDBQuery counts a database operation.
func (m *InMemoryRecorder) ObserveDBQuery(op, status string, duration time.Duration) {
	atomic.AddUint64(&m.dbQueries, 1)
}

// IncDBError counts a classified database error.
func (m *InMemoryRecorder) IncDBError(op, class string) {
	m.inc(m.dbErrors, op+"/"+class)
}

// IncCommentCreated increments comment created counter.
func (m *InMemoryRecorder) IncCommentCreated() {
	atomic.AddUint64(&m.commentsCreated, 1)
}

// IncCommentUpdated increments comment updated counter.
func (m *InMemoryRecorder) IncCommentUpdated() {
	atomic.AddUint64(&m.commentsUpdated, 1)
}

// IncCommentDeleted increments comment deleted counter.
func (m *InMemoryRecorder) IncCommentDeleted() {
	atomic.AddUint64(&m.commentsDeleted, 1)
}

// IncCostReport counts a cost report outcome.
func (m *InMemoryRecorder) IncCostReport(status string) {
	if status == "success" {
		atomic.AddUint64(&m.costReportsSucceeded, 1)
		return
	}
	atomic.AddUint64(&m.costReportsFailed, 1)
}
