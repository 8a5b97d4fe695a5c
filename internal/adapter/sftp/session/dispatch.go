package session

import (
	"context"
	"time"

	"github.com/marmos91/dray/internal/logger"
	"github.com/marmos91/dray/internal/protocol/sftp"
	"github.com/marmos91/dray/internal/telemetry"
)

// ============================================================================
// Handler Result
// ============================================================================

// Result is the outcome of one handler: the response sent to the client and
// metadata used for metrics and logging.
type Result struct {
	// Response is the single packet answering the request.
	Response sftp.Packet

	// Status is the SFTP status of the operation. Successful non-STATUS
	// responses (HANDLE, DATA, NAME, ATTRS) report StatusOK.
	Status sftp.StatusCode

	// Err is the underlying error for failed operations. Never sent to the
	// client verbatim.
	Err error

	BytesRead    int
	BytesWritten int
}

func ok(resp sftp.Packet) Result {
	return Result{Response: resp, Status: sftp.StatusOK}
}

func okStatus(id uint32) Result {
	return ok(sftp.NewStatus(id, sftp.StatusOK, ""))
}

func fail(id uint32, err error) Result {
	code := StatusFor(err)
	return Result{
		Response: sftp.NewStatus(id, code, StatusMessage(err)),
		Status:   code,
		Err:      err,
	}
}

// ============================================================================
// Dispatch Table
// ============================================================================

type handlerFunc func(s *Session, ctx context.Context, req sftp.Request) Result

type procedure struct {
	Name    string
	Handler handlerFunc
}

// bind adapts a typed handler to the dispatch table.
func bind[P sftp.Request](h func(*Session, context.Context, P) Result) handlerFunc {
	return func(s *Session, ctx context.Context, req sftp.Request) Result {
		return h(s, ctx, req.(P))
	}
}

var dispatchTable = map[sftp.PacketType]*procedure{
	sftp.TypeOpen:     {Name: "OPEN", Handler: bind((*Session).handleOpen)},
	sftp.TypeClose:    {Name: "CLOSE", Handler: bind((*Session).handleClose)},
	sftp.TypeRead:     {Name: "READ", Handler: bind((*Session).handleRead)},
	sftp.TypeWrite:    {Name: "WRITE", Handler: bind((*Session).handleWrite)},
	sftp.TypeLstat:    {Name: "LSTAT", Handler: bind((*Session).handleLstat)},
	sftp.TypeStat:     {Name: "STAT", Handler: bind((*Session).handleStat)},
	sftp.TypeFstat:    {Name: "FSTAT", Handler: bind((*Session).handleFstat)},
	sftp.TypeSetstat:  {Name: "SETSTAT", Handler: bind((*Session).handleSetstat)},
	sftp.TypeFsetstat: {Name: "FSETSTAT", Handler: bind((*Session).handleFsetstat)},
	sftp.TypeOpendir:  {Name: "OPENDIR", Handler: bind((*Session).handleOpendir)},
	sftp.TypeReaddir:  {Name: "READDIR", Handler: bind((*Session).handleReaddir)},
	sftp.TypeRemove:   {Name: "REMOVE", Handler: bind((*Session).handleRemove)},
	sftp.TypeMkdir:    {Name: "MKDIR", Handler: bind((*Session).handleMkdir)},
	sftp.TypeRmdir:    {Name: "RMDIR", Handler: bind((*Session).handleRmdir)},
	sftp.TypeRealpath: {Name: "REALPATH", Handler: bind((*Session).handleRealpath)},
	sftp.TypeRename:   {Name: "RENAME", Handler: bind((*Session).handleRename)},
	sftp.TypeReadlink: {Name: "READLINK", Handler: bind((*Session).handleReadlink)},
	sftp.TypeSymlink:  {Name: "SYMLINK", Handler: bind((*Session).handleSymlink)},
	sftp.TypeExtended: {Name: "EXTENDED", Handler: bind((*Session).handleExtended)},
}

// ============================================================================
// Dispatch
// ============================================================================

// Dispatch runs one request and returns exactly one response packet. Handler
// failures are always converted to STATUS; Dispatch never returns nil.
//
// Dispatch is safe for concurrent use once the session is Ready.
func (s *Session) Dispatch(ctx context.Context, req sftp.Request) sftp.Packet {
	name := req.Type().String()
	id := req.RequestID()

	ctx, span := telemetry.StartSFTPSpan(ctx, name, id,
		telemetry.SessionID(s.id),
		telemetry.Username(s.identity.Username))
	defer span.End()

	lc := s.logCtx.ForRequest(name, id).WithTrace(telemetry.TraceID(ctx), telemetry.SpanID(ctx))
	ctx = logger.WithContext(ctx, lc)

	if s.State() != StateReady {
		res := Result{Response: s.Reject(req), Status: sftp.StatusBadMessage}
		s.finish(ctx, name, lc, res)
		return res.Response
	}

	recordStart(s, name)
	defer recordEnd(s, name)

	var res Result
	if proc, found := dispatchTable[req.Type()]; found {
		res = proc.Handler(s, ctx, req)
	} else {
		res = fail(id, ErrNotImplemented)
	}
	s.finish(ctx, name, lc, res)
	return res.Response
}

func (s *Session) finish(ctx context.Context, name string, lc *logger.LogContext, res Result) {
	status := res.Status.String()
	elapsed := time.Since(lc.StartTime)

	telemetry.SetAttributes(ctx, telemetry.FSStatus(status))
	if res.BytesRead > 0 {
		telemetry.SetAttributes(ctx, telemetry.BytesRead(res.BytesRead))
	}
	if res.BytesWritten > 0 {
		telemetry.SetAttributes(ctx, telemetry.BytesWritten(res.BytesWritten))
	}

	if s.metrics != nil {
		s.metrics.RecordRequest(name, elapsed, status)
		if res.BytesRead > 0 {
			s.metrics.RecordBytes("read", int64(res.BytesRead))
		}
		if res.BytesWritten > 0 {
			s.metrics.RecordBytes("write", int64(res.BytesWritten))
		}
	}

	switch res.Status {
	case sftp.StatusOK, sftp.StatusEOF:
		logger.DebugCtx(ctx, "SFTP request done",
			logger.KeyStatus, status,
			logger.KeyDurationMs, logger.Duration(lc.StartTime))
	case sftp.StatusFailure:
		telemetry.RecordError(ctx, res.Err)
		logger.WarnCtx(ctx, "SFTP request failed",
			logger.KeyStatus, status,
			logger.KeyDurationMs, logger.Duration(lc.StartTime),
			logger.Err(res.Err))
	default:
		logger.DebugCtx(ctx, "SFTP request rejected",
			logger.KeyStatus, status,
			logger.Err(res.Err))
	}
}

func recordStart(s *Session, name string) {
	if s.metrics != nil {
		s.metrics.RecordRequestStart(name)
	}
}

func recordEnd(s *Session, name string) {
	if s.metrics != nil {
		s.metrics.RecordRequestEnd(name)
	}
}
