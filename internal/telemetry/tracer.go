package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys. Filesystem-level keys use the "fs." prefix.
const (
	AttrClientIP   = "client.ip"
	AttrProtocol   = "protocol.name"
	AttrSessionID  = "session.id"
	AttrUsername   = "user.name"
	AttrOperation  = "fs.operation"
	AttrHandle     = "fs.handle"
	AttrPath       = "fs.path"
	AttrOffset     = "fs.offset"
	AttrCount      = "fs.count"
	AttrStatus     = "fs.status"
	AttrBytesRead  = "fs.bytes_read"
	AttrBytesWrite = "fs.bytes_written"

	AttrSFTPRequestID = "sftp.request_id"

	AttrBucket = "storage.bucket"
	AttrKey    = "storage.key"
)

// Span names.
const (
	SpanSFTPSession = "sftp.session"
	SpanSSHAuth     = "ssh.auth"
)

func ClientIP(ip string) attribute.KeyValue     { return attribute.String(AttrClientIP, ip) }
func SessionID(id string) attribute.KeyValue    { return attribute.String(AttrSessionID, id) }
func Username(name string) attribute.KeyValue   { return attribute.String(AttrUsername, name) }
func FSHandle(h string) attribute.KeyValue      { return attribute.String(AttrHandle, h) }
func FSPath(p string) attribute.KeyValue        { return attribute.String(AttrPath, p) }
func FSOffset(off uint64) attribute.KeyValue    { return attribute.Int64(AttrOffset, int64(off)) }
func FSCount(n uint32) attribute.KeyValue       { return attribute.Int64(AttrCount, int64(n)) }
func FSStatus(status string) attribute.KeyValue { return attribute.String(AttrStatus, status) }
func BytesRead(n int) attribute.KeyValue        { return attribute.Int(AttrBytesRead, n) }
func BytesWritten(n int) attribute.KeyValue     { return attribute.Int(AttrBytesWrite, n) }
func Bucket(name string) attribute.KeyValue     { return attribute.String(AttrBucket, name) }
func StorageKey(key string) attribute.KeyValue  { return attribute.String(AttrKey, key) }

// StartSFTPSpan starts the span for one SFTP request, named "sftp.<OP>".
func StartSFTPSpan(ctx context.Context, operation string, requestID uint32, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := make([]attribute.KeyValue, 0, len(attrs)+3)
	all = append(all,
		attribute.String(AttrProtocol, "sftp"),
		attribute.String(AttrOperation, operation),
		attribute.Int64(AttrSFTPRequestID, int64(requestID)),
	)
	all = append(all, attrs...)
	return StartSpan(ctx, "sftp."+operation, trace.WithAttributes(all...), trace.WithSpanKind(trace.SpanKindServer))
}
