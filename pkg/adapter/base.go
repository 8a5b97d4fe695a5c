package adapter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/dray/internal/logger"
)

// ConnectionHandler serves one accepted connection. Serve blocks until the
// connection is finished or ctx is cancelled.
type ConnectionHandler interface {
	Serve(ctx context.Context)
}

// ConnectionFactory wraps accepted connections in protocol handlers.
type ConnectionFactory interface {
	NewConnection(conn net.Conn) ConnectionHandler
}

// BaseConfig holds the listener settings shared by every adapter.
type BaseConfig struct {
	// Listen is the TCP address to bind, e.g. ":2022" or "127.0.0.1:0".
	Listen string

	// MaxConnections limits concurrent client connections. 0 means unlimited.
	MaxConnections int

	// ShutdownTimeout bounds how long shutdown waits for active
	// connections before force-closing them.
	ShutdownTimeout time.Duration

	// MetricsLogInterval enables a periodic connection count log line.
	// 0 disables it.
	MetricsLogInterval time.Duration
}

// MetricsRecorder records connection lifecycle events.
// metrics.SFTPMetrics satisfies it.
type MetricsRecorder interface {
	RecordConnectionAccepted()
	RecordConnectionClosed()
	RecordConnectionForceClosed()
	SetActiveConnections(count int32)
}

// BaseAdapter runs the accept loop and owns graceful shutdown: the listener,
// connection tracking, the connection limit and the request cancellation
// context. Protocol adapters embed it and supply a ConnectionFactory.
//
// Thread safety:
// All exported methods are safe for concurrent use. Shutdown is guarded by
// sync.Once so Stop can be called any number of times.
type BaseAdapter struct {
	Config BaseConfig

	protocolName string

	// Metrics is optional; nil disables connection metrics.
	Metrics MetricsRecorder

	listener   net.Listener
	listenerMu sync.RWMutex

	// ListenerReady is closed once the listener accepts connections.
	ListenerReady chan struct{}
	readyOnce     sync.Once

	activeConns  sync.WaitGroup
	shutdownOnce sync.Once

	// Shutdown is closed when shutdown begins.
	Shutdown chan struct{}

	// ConnCount is the number of connections currently being served.
	ConnCount atomic.Int32

	// connSemaphore holds one slot per connection when MaxConnections > 0.
	connSemaphore chan struct{}

	// ShutdownCtx is handed to every connection and cancelled on shutdown
	// so in-flight backend calls abort.
	ShutdownCtx    context.Context
	CancelRequests context.CancelFunc

	// ActiveConnections maps remote address to net.Conn for forced closure.
	ActiveConnections sync.Map
}

// NewBaseAdapter returns a stopped adapter. Call ServeWithFactory to start.
func NewBaseAdapter(config BaseConfig, protocol string) *BaseAdapter {
	var connSemaphore chan struct{}
	if config.MaxConnections > 0 {
		connSemaphore = make(chan struct{}, config.MaxConnections)
		logger.Debug(protocol+" connection limit", "max_connections", config.MaxConnections)
	} else {
		logger.Debug(protocol+" connection limit", "max_connections", "unlimited")
	}

	shutdownCtx, cancelRequests := context.WithCancel(context.Background())

	return &BaseAdapter{
		Config:         config,
		protocolName:   protocol,
		Shutdown:       make(chan struct{}),
		connSemaphore:  connSemaphore,
		ShutdownCtx:    shutdownCtx,
		CancelRequests: cancelRequests,
		ListenerReady:  make(chan struct{}),
	}
}

// ServeWithFactory listens on Config.Listen and serves connections until
// ctx is cancelled or Stop is called.
//
// Parameters:
//   - ctx: cancellation triggers graceful shutdown
//   - factory: builds the protocol handler for each accepted connection
//
// Returns:
//   - nil on graceful shutdown
//   - error if the listener cannot be created or shutdown timed out
func (b *BaseAdapter) ServeWithFactory(ctx context.Context, factory ConnectionFactory) error {
	ln, err := net.Listen("tcp", b.Config.Listen)
	if err != nil {
		return fmt.Errorf("failed to create %s listener on %s: %w", b.protocolName, b.Config.Listen, err)
	}
	return b.ServeListener(ctx, ln, factory)
}

// ServeListener is ServeWithFactory on an existing listener, which the
// adapter takes ownership of.
func (b *BaseAdapter) ServeListener(ctx context.Context, ln net.Listener, factory ConnectionFactory) error {
	b.listenerMu.Lock()
	b.listener = ln
	b.listenerMu.Unlock()
	b.readyOnce.Do(func() { close(b.ListenerReady) })

	logger.Info(b.protocolName+" server listening", logger.KeyAddress, ln.Addr().String())

	go func() {
		select {
		case <-ctx.Done():
			logger.Info(b.protocolName+" shutdown signal received", logger.Err(ctx.Err()))
			b.initiateShutdown()
		case <-b.Shutdown:
		}
	}()

	if b.Config.MetricsLogInterval > 0 {
		go b.logMetrics(ctx)
	}

	for {
		if b.connSemaphore != nil {
			select {
			case b.connSemaphore <- struct{}{}:
			case <-b.Shutdown:
				return b.gracefulShutdown()
			}
		}

		conn, err := ln.Accept()
		if err != nil {
			if b.connSemaphore != nil {
				<-b.connSemaphore
			}
			select {
			case <-b.Shutdown:
				return b.gracefulShutdown()
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("%s listener closed: %w", b.protocolName, err)
			}
			logger.Debug("Error accepting "+b.protocolName+" connection", logger.Err(err))
			continue
		}

		if tcp, ok := conn.(*net.TCPConn); ok {
			if err := tcp.SetNoDelay(true); err != nil {
				logger.Debug("Failed to set TCP_NODELAY", logger.Err(err))
			}
		}

		b.track(conn, factory.NewConnection(conn))
	}
}

// track registers conn and serves it on its own goroutine.
func (b *BaseAdapter) track(conn net.Conn, handler ConnectionHandler) {
	addr := conn.RemoteAddr().String()

	b.activeConns.Add(1)
	current := b.ConnCount.Add(1)
	b.ActiveConnections.Store(addr, conn)

	if b.Metrics != nil {
		b.Metrics.RecordConnectionAccepted()
		b.Metrics.SetActiveConnections(current)
	}
	logger.Debug(b.protocolName+" connection accepted", logger.KeyClientIP, addr, "active", current)

	go func() {
		defer func() {
			b.ActiveConnections.Delete(addr)
			_ = conn.Close()

			remaining := b.ConnCount.Add(-1)
			if b.Metrics != nil {
				b.Metrics.RecordConnectionClosed()
				b.Metrics.SetActiveConnections(remaining)
			}
			logger.Debug(b.protocolName+" connection closed", logger.KeyClientIP, addr, "active", remaining)

			if b.connSemaphore != nil {
				<-b.connSemaphore
			}
			b.activeConns.Done()
		}()

		handler.Serve(b.ShutdownCtx)
	}()
}

// initiateShutdown closes the listener, interrupts blocked reads and
// cancels ShutdownCtx. It runs at most once.
func (b *BaseAdapter) initiateShutdown() {
	b.shutdownOnce.Do(func() {
		logger.Debug(b.protocolName + " shutdown initiated")
		close(b.Shutdown)

		b.listenerMu.Lock()
		if b.listener != nil {
			if err := b.listener.Close(); err != nil {
				logger.Debug("Error closing "+b.protocolName+" listener", logger.Err(err))
			}
		}
		b.listenerMu.Unlock()

		b.interruptBlockingReads()
		b.CancelRequests()
	})
}

// interruptBlockingReads sets a short read deadline on every connection so
// idle read loops notice the shutdown.
func (b *BaseAdapter) interruptBlockingReads() {
	deadline := time.Now().Add(100 * time.Millisecond)

	b.ActiveConnections.Range(func(key, value any) bool {
		if conn, ok := value.(net.Conn); ok {
			if err := conn.SetReadDeadline(deadline); err != nil {
				logger.Debug("Error setting shutdown deadline on connection",
					logger.KeyClientIP, key, logger.Err(err))
			}
		}
		return true
	})
}

// waitConnections returns a channel closed when every connection is done.
func (b *BaseAdapter) waitConnections() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		b.activeConns.Wait()
		close(done)
	}()
	return done
}

// gracefulShutdown waits up to ShutdownTimeout, then force-closes.
func (b *BaseAdapter) gracefulShutdown() error {
	active := b.ConnCount.Load()
	logger.Info(b.protocolName+" graceful shutdown: waiting for active connections",
		"active", active, "timeout", b.Config.ShutdownTimeout)

	var timeout <-chan time.Time
	if b.Config.ShutdownTimeout > 0 {
		timer := time.NewTimer(b.Config.ShutdownTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-b.waitConnections():
		logger.Info(b.protocolName + " graceful shutdown complete")
		return nil

	case <-timeout:
		remaining := b.ConnCount.Load()
		logger.Warn(b.protocolName+" shutdown timeout exceeded, forcing closure",
			"active", remaining, "timeout", b.Config.ShutdownTimeout)
		b.forceCloseConnections()
		return fmt.Errorf("%s: %w: %d connections force-closed", b.protocolName, ErrShutdownTimeout, remaining)
	}
}

func (b *BaseAdapter) forceCloseConnections() {
	closed := 0
	b.ActiveConnections.Range(func(key, value any) bool {
		conn := value.(net.Conn)
		if err := conn.Close(); err != nil {
			logger.Debug("Error force-closing connection", logger.KeyClientIP, key, logger.Err(err))
			return true
		}
		closed++
		if b.Metrics != nil {
			b.Metrics.RecordConnectionForceClosed()
		}
		return true
	})
	if closed > 0 {
		logger.Info("Force-closed "+b.protocolName+" connections", logger.KeyCount, closed)
	}
}

// Stop initiates shutdown and waits for active connections until ctx is
// done. A nil ctx waits up to ShutdownTimeout instead.
func (b *BaseAdapter) Stop(ctx context.Context) error {
	b.initiateShutdown()

	if ctx == nil {
		return b.gracefulShutdown()
	}

	select {
	case <-b.waitConnections():
		return nil
	case <-ctx.Done():
		remaining := b.ConnCount.Load()
		logger.Warn(b.protocolName+" shutdown context cancelled",
			"active", remaining, logger.Err(ctx.Err()))
		b.forceCloseConnections()
		return ctx.Err()
	}
}

func (b *BaseAdapter) logMetrics(ctx context.Context) {
	ticker := time.NewTicker(b.Config.MetricsLogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.Shutdown:
			return
		case <-ticker.C:
			logger.Info(b.protocolName+" metrics", "active_connections", b.ConnCount.Load())
		}
	}
}

// GetActiveConnections returns the current number of active connections.
func (b *BaseAdapter) GetActiveConnections() int32 {
	return b.ConnCount.Load()
}

// Addr blocks until the listener is ready and returns its address.
func (b *BaseAdapter) Addr() string {
	<-b.ListenerReady

	b.listenerMu.RLock()
	defer b.listenerMu.RUnlock()
	if b.listener == nil {
		return ""
	}
	return b.listener.Addr().String()
}

// Protocol returns the protocol name ("SFTP").
func (b *BaseAdapter) Protocol() string {
	return b.protocolName
}
