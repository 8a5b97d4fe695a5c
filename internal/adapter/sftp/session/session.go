// Package session implements the per-connection SFTP state machine and
// request dispatch.
//
// A Session starts in StateAwaitingInit. HandleInit moves it to StateReady,
// after which Dispatch may be called concurrently from any number of
// goroutines. Ordering between requests that name the same handle is the
// caller's job (see handle.Sequencer); the Session serializes access to each
// handle's cursor but does not reorder requests.
package session

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/marmos91/dray/internal/adapter/sftp/handle"
	"github.com/marmos91/dray/internal/logger"
	"github.com/marmos91/dray/internal/protocol/sftp"
	"github.com/marmos91/dray/pkg/auth"
	"github.com/marmos91/dray/pkg/metrics"
	"github.com/marmos91/dray/pkg/objectfs"
)

// DefaultMaxReadLength caps the payload of one DATA response. OpenSSH asks
// for 32KiB at a time but other clients request up to 256KiB.
const DefaultMaxReadLength = 256 * 1024

// State is the lifecycle state of a session.
type State int32

const (
	StateAwaitingInit State = iota
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAwaitingInit:
		return "awaiting_init"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

var (
	// ErrAlreadyInitialized is returned by HandleInit after the first INIT.
	ErrAlreadyInitialized = errors.New("session already initialized")

	// ErrClosed is returned once the session has been closed.
	ErrClosed = errors.New("session closed")

	// ErrNotImplemented marks operations the server deliberately does not
	// support on an object store.
	ErrNotImplemented = errors.New("operation not implemented")
)

// Config carries the collaborators of a session.
type Config struct {
	Identity   auth.Identity
	FS         *objectfs.FS
	Authorizer *auth.Authorizer
	ClientIP   string

	// Metrics may be nil.
	Metrics metrics.SFTPMetrics

	// MaxReadLength caps READ lengths; zero selects DefaultMaxReadLength.
	MaxReadLength uint32
}

// cursor is the per-handle state. Exactly one of reader, writer or lister
// is set.
type cursor struct {
	path   string
	reader *objectfs.Reader
	writer *objectfs.Writer
	lister *objectfs.Lister
}

// Session is the state of one SFTP connection.
type Session struct {
	id       string
	identity auth.Identity
	fs       *objectfs.FS
	az       *auth.Authorizer
	metrics  metrics.SFTPMetrics
	maxRead  uint32

	handles *handle.Table[*cursor]
	state   atomic.Int32

	clientVersion atomic.Uint32
	logCtx        *logger.LogContext
}

func New(cfg Config) *Session {
	maxRead := cfg.MaxReadLength
	if maxRead == 0 {
		maxRead = DefaultMaxReadLength
	}

	s := &Session{
		id:       uuid.NewString(),
		identity: cfg.Identity,
		fs:       cfg.FS,
		az:       cfg.Authorizer,
		metrics:  cfg.Metrics,
		maxRead:  maxRead,
		handles:  handle.New[*cursor](),
	}
	s.logCtx = logger.NewLogContext(cfg.ClientIP)
	s.logCtx.SessionID = s.id
	s.logCtx.Username = cfg.Identity.Username
	return s
}

func (s *Session) ID() string              { return s.id }
func (s *Session) Identity() auth.Identity { return s.identity }
func (s *Session) State() State            { return State(s.state.Load()) }
func (s *Session) OpenHandles() int        { return s.handles.Len() }

// ClientVersion returns the version proposed by the client in INIT.
func (s *Session) ClientVersion() uint32 { return s.clientVersion.Load() }

// Context returns ctx annotated with the session's logging fields.
func (s *Session) Context(ctx context.Context) context.Context {
	return logger.WithContext(ctx, s.logCtx)
}

// HandleInit answers INIT. The server always replies with version 3.
func (s *Session) HandleInit(ctx context.Context, p *sftp.InitPacket) (*sftp.VersionPacket, error) {
	if !s.state.CompareAndSwap(int32(StateAwaitingInit), int32(StateReady)) {
		if s.State() == StateClosed {
			return nil, ErrClosed
		}
		return nil, ErrAlreadyInitialized
	}
	s.clientVersion.Store(p.Version)

	logger.InfoCtx(s.Context(ctx), "SFTP session ready",
		logger.KeyVersion, p.Version,
		"home", s.identity.Home)
	return &sftp.VersionPacket{Version: sftp.ProtocolVersion}, nil
}

// Reject builds the BAD_MESSAGE response for a request received before
// INIT. The connection is expected to be closed afterwards.
func (s *Session) Reject(p sftp.Packet) *sftp.StatusPacket {
	var id uint32
	if req, ok := p.(sftp.Request); ok {
		id = req.RequestID()
	}
	return sftp.NewStatus(id, sftp.StatusBadMessage, "expected INIT")
}

// Unsupported builds the OP_UNSUPPORTED response for a request the codec
// could not decode but whose id is known.
func (s *Session) Unsupported(id uint32) *sftp.StatusPacket {
	return sftp.NewStatus(id, sftp.StatusOpUnsupported, "")
}

// Close marks the session closed and drops every open handle. Buffered
// writes that were not committed by CLOSE are discarded.
func (s *Session) Close(ctx context.Context) {
	if State(s.state.Swap(int32(StateClosed))) == StateClosed {
		return
	}
	if n := s.handles.Drain(); n > 0 {
		logger.WarnCtx(s.Context(ctx), "SFTP session closed with open handles; uncommitted writes dropped",
			logger.KeyCount, n)
		return
	}
	logger.DebugCtx(s.Context(ctx), "SFTP session closed")
}
