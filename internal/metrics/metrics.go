// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations expose these to Prometheus or keep them in memory for tests.
type Recorder interface {
	// HTTP metrics
	ObserveHTTPRequest(method, route string, status int, duration time.Duration)

	// Snapshot store metrics
	IncSnapshotRefresh(query, status string) // status: "success" or "failed"
	ObserveSnapshotRefreshDuration(duration time.Duration)
	IncSnapshotLoad(source string) // source: "redis", "database" or "missing"

	// Database metrics
	ObserveDBQuery(op, status string, duration time.Duration)
	IncDBError(op, class string)

	// Admin comment metrics
	IncCommentCreated()
	IncCommentUpdated()
	IncCommentDeleted()

	// Cost report metrics
	IncCostReport(status string) // status: "success" or "failed"
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
