package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {}

func (n *NoopRecorder) IncSnapshotRefresh(query, status string) {}

func (n *NoopRecorder) ObserveSnapshotRefreshDuration(duration time.Duration) {}

func (n *NoopRecorder) IncSnapshotLoad(source string) {}

func (n *NoopRecorder) ObserveDBQuery(op, status string, duration time.Duration) {}

func (n *NoopRecorder) IncDBError(op, class string) {}

func (n *NoopRecorder) IncCommentCreated() {}

func (n *NoopRecorder) IncCommentUpdated() {}

func (n *NoopRecorder) IncCommentDeleted() {}

func (n *NoopRecorder) IncCostReport(status string) {}
