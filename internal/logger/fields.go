package logger

import "log/slog"

// Standard field keys. Use them consistently so logs can be aggregated.
const (
	// Tracing
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// Protocol
	KeyProtocol  = "protocol"
	KeyProcedure = "procedure"
	KeyRequestID = "request_id"
	KeyHandle    = "handle"
	KeyStatus    = "status"
	KeyStatusMsg = "status_msg"
	KeyVersion   = "version"

	// Filesystem
	KeyPath    = "path"
	KeyOldPath = "old_path"
	KeyNewPath = "new_path"
	KeySize    = "size"
	KeyFlags   = "flags"

	// I/O
	KeyOffset       = "offset"
	KeyCount        = "count"
	KeyBytesRead    = "bytes_read"
	KeyBytesWritten = "bytes_written"
	KeyEntries      = "entries"

	// Client
	KeyClientIP    = "client_ip"
	KeyUsername    = "username"
	KeyFingerprint = "fingerprint"

	// Session and connection
	KeySessionID    = "session_id"
	KeyConnectionID = "connection_id"
	KeyChannel      = "channel"

	// Storage
	KeyStoreType = "store_type"
	KeyBucket    = "bucket"
	KeyKey       = "key"
	KeyPrefix    = "prefix"
	KeyRegion    = "region"
	KeyEndpoint  = "endpoint"

	// Metadata
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyOperation  = "operation"
	KeyAddress    = "address"
)

// Err returns a slog.Attr for an error. A nil error yields an empty attribute.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

func Handle(h string) slog.Attr {
	return slog.String(KeyHandle, h)
}

func Key(k string) slog.Attr {
	return slog.String(KeyKey, k)
}

func Offset(off uint64) slog.Attr {
	return slog.Uint64(KeyOffset, off)
}

func Count(n int) slog.Attr {
	return slog.Int(KeyCount, n)
}

func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}
