package sftp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/marmos91/dray/internal/adapter/sftp/handle"
	"github.com/marmos91/dray/internal/adapter/sftp/session"
	"github.com/marmos91/dray/internal/logger"
	proto "github.com/marmos91/dray/internal/protocol/sftp"
)

// StreamConfig bounds one SFTP byte stream.
type StreamConfig struct {
	MaxPacketSize uint32
	MaxRequests   int
	IdleTimeout   time.Duration
}

// Stream drives one session over a byte stream: frames are read and
// decoded in arrival order, handlers run concurrently, and responses are
// written whole under a mutex.
//
// Requests that name the same handle are executed in arrival order. All
// others may complete in any order; clients match responses by request id.
type Stream struct {
	rw   io.ReadWriteCloser
	sess *session.Session
	cfg  StreamConfig

	seq *handle.Sequencer
	sem *semaphore.Weighted

	writeMu sync.Mutex
	wg      sync.WaitGroup

	idle *time.Timer
}

func NewStream(rw io.ReadWriteCloser, sess *session.Session, cfg StreamConfig) *Stream {
	if cfg.MaxPacketSize == 0 {
		cfg.MaxPacketSize = proto.DefaultMaxPacketSize
	}
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = DefaultMaxRequestsPerConnection
	}
	return &Stream{
		rw:   rw,
		sess: sess,
		cfg:  cfg,
		seq:  handle.NewSequencer(),
		sem:  semaphore.NewWeighted(int64(cfg.MaxRequests)),
	}
}

// Serve runs until the stream ends, ctx is cancelled or a fatal protocol
// error occurs. It waits for in-flight handlers and closes the session
// before returning. The stream itself is closed only on cancellation or
// idle timeout; otherwise closing it is left to the caller.
//
// Returns:
//   - nil when the client closed the stream
//   - ErrNotInitialized when a request preceded INIT
//   - *proto.ProtocolError for undecodable frames
//   - the read error otherwise
func (s *Stream) Serve(ctx context.Context) (err error) {
	ctx = s.sess.Context(ctx)
	ctx, cancel := context.WithCancel(ctx)

	stop := context.AfterFunc(ctx, func() { _ = s.rw.Close() })
	if s.cfg.IdleTimeout > 0 {
		s.idle = time.AfterFunc(s.cfg.IdleTimeout, func() {
			logger.DebugCtx(ctx, "SFTP channel idle, closing", "timeout", s.cfg.IdleTimeout)
			cancel()
		})
	}

	defer func() {
		if r := recover(); r != nil {
			logger.ErrorCtx(ctx, "Panic in SFTP stream", "error", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("sftp stream panic: %v", r)
		}
		if s.idle != nil {
			s.idle.Stop()
		}
		stop()
		cancel()
		s.wg.Wait()
		s.sess.Close(context.WithoutCancel(ctx))
	}()

	for {
		pkt, err := s.next()
		if err != nil {
			return s.readError(ctx, err)
		}

		switch p := pkt.(type) {
		case *proto.InitPacket:
			version, err := s.sess.HandleInit(ctx, p)
			if err != nil {
				_ = s.send(proto.NewStatus(0, proto.StatusBadMessage, "duplicate INIT"))
				return err
			}
			if err := s.send(version); err != nil {
				return err
			}

		case proto.Request:
			if s.sess.State() != session.StateReady {
				_ = s.send(s.sess.Reject(p))
				logger.WarnCtx(ctx, "SFTP request before INIT", logger.KeyProcedure, p.Type().String())
				return ErrNotInitialized
			}
			if err := s.schedule(ctx, p); err != nil {
				return nil
			}

		default:
			return &proto.ProtocolError{Type: pkt.Type(), Reason: "not a client packet"}
		}
	}
}

// next reads and decodes one frame. Unknown packet types with a readable
// request id are answered in place once the session is ready. Before INIT
// they are rejected with BAD_MESSAGE and end the stream.
func (s *Stream) next() (proto.Packet, error) {
	for {
		frame, err := proto.ReadFrame(s.rw, s.cfg.MaxPacketSize)
		if err != nil {
			return nil, err
		}
		if s.idle != nil {
			s.idle.Reset(s.cfg.IdleTimeout)
		}

		pkt, err := proto.Decode(frame)
		if err == nil {
			return pkt, nil
		}
		var pe *proto.ProtocolError
		if errors.As(err, &pe) && pe.Unknown && pe.HasID && s.sess.State() == session.StateReady {
			if err := s.send(s.sess.Unsupported(pe.RequestID)); err != nil {
				return nil, err
			}
			continue
		}
		if pe != nil && pe.Unknown && s.sess.State() == session.StateAwaitingInit {
			_ = s.send(proto.NewStatus(pe.RequestID, proto.StatusBadMessage, "expected INIT"))
		}
		return nil, err
	}
}

func (s *Stream) readError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, io.EOF):
		logger.DebugCtx(ctx, "SFTP stream closed by client")
		return nil
	case ctx.Err() != nil:
		logger.DebugCtx(ctx, "SFTP stream cancelled", logger.Err(ctx.Err()))
		return nil
	case proto.IsProtocolError(err):
		logger.WarnCtx(ctx, "SFTP protocol error", logger.Err(err))
	default:
		logger.DebugCtx(ctx, "SFTP stream read failed", logger.Err(err))
	}
	return err
}

// schedule reserves the request's place in its handle queue (when it has
// one) and starts it once a handler slot is free.
func (s *Stream) schedule(ctx context.Context, req proto.Request) error {
	var turn *handle.Turn
	if hr, ok := req.(proto.HandleRequest); ok {
		turn = s.seq.Reserve(hr.HandleID())
	}
	if err := s.sem.Acquire(ctx, 1); err != nil {
		if turn != nil {
			turn.Done()
		}
		return err
	}

	s.wg.Add(1)
	go s.run(ctx, req, turn)
	return nil
}

func (s *Stream) run(ctx context.Context, req proto.Request, turn *handle.Turn) {
	defer s.wg.Done()
	defer s.sem.Release(1)
	if turn != nil {
		defer turn.Done()
		if err := turn.Wait(ctx); err != nil {
			return
		}
	}
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorCtx(ctx, "Panic in SFTP handler",
				logger.KeyProcedure, req.Type().String(),
				logger.KeyRequestID, req.RequestID(),
				"error", r,
				"stack", string(debug.Stack()))
			_ = s.send(proto.NewStatus(req.RequestID(), proto.StatusFailure, "internal error"))
		}
	}()

	if err := s.send(s.sess.Dispatch(ctx, req)); err != nil {
		logger.DebugCtx(ctx, "Error sending SFTP response",
			logger.KeyRequestID, req.RequestID(), logger.Err(err))
	}
}

// send writes one response frame. Frames are never interleaved.
func (s *Stream) send(p proto.Packet) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return proto.WriteFrame(s.rw, p)
}
