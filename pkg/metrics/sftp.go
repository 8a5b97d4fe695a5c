package metrics

import "time"

// SFTPMetrics provides observability for the SFTP adapter.
//
// It doubles as the connection lifecycle recorder of the base adapter.
// Pass nil to disable collection.
type SFTPMetrics interface {
	// RecordRequest records a completed request.
	//
	// Parameters:
	//   - operation: packet name (e.g., "OPEN", "READ")
	//   - duration: handler time, excluding queueing behind the same handle
	//   - status: SFTP status name ("ok", "eof", "no such file", ...)
	RecordRequest(operation string, duration time.Duration, status string)

	// RecordRequestStart and RecordRequestEnd track in-flight handlers.
	RecordRequestStart(operation string)
	RecordRequestEnd(operation string)

	// RecordBytes records payload bytes; direction is "read" or "write".
	RecordBytes(direction string, bytes int64)

	// RecordAuth records a public key authentication attempt.
	RecordAuth(result string)

	RecordConnectionAccepted()
	RecordConnectionClosed()
	RecordConnectionForceClosed()
	SetActiveConnections(count int32)
}
