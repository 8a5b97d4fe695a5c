package metrics

import "time"

// S3Metrics records object store calls. Pass nil to disable.
//
// Example usage:
//
//	start := time.Now()
//	_, err := client.PutObject(ctx, input)
//	metrics.ObserveOperation(m, "PutObject", time.Since(start), err)
type S3Metrics interface {
	// ObserveOperation records an S3 API call with its duration and outcome.
	ObserveOperation(operation string, duration time.Duration, err error)

	// RecordBytes records payload bytes moved by operation.
	RecordBytes(operation string, bytes int64)
}

// ObserveOperation forwards to m when it is non-nil.
func ObserveOperation(m S3Metrics, operation string, duration time.Duration, err error) {
	if m != nil {
		m.ObserveOperation(operation, duration, err)
	}
}

// RecordBytes forwards to m when it is non-nil.
func RecordBytes(m S3Metrics, operation string, bytes int64) {
	if m != nil {
		m.RecordBytes(operation, bytes)
	}
}
