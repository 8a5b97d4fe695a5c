package sftp

import (
	"context"
	"net"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/marmos91/dray/internal/adapter/sftp/session"
	"github.com/marmos91/dray/internal/logger"
	"github.com/marmos91/dray/internal/telemetry"
	"github.com/marmos91/dray/pkg/auth"
)

// Connection is one SSH connection. It may carry several session channels;
// each one that starts the sftp subsystem gets its own Session.
type Connection struct {
	adapter *Adapter
	conn    net.Conn
	id      uint64
}

// Serve runs the SSH handshake and serves channels until the client
// disconnects or ctx is cancelled.
func (c *Connection) Serve(ctx context.Context) {
	clientIP := remoteIP(c.conn.RemoteAddr())
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic in SSH connection handler",
				logger.KeyClientIP, clientIP,
				"error", r,
				"stack", string(debug.Stack()))
		}
		_ = c.conn.Close()
	}()

	if t := c.adapter.config.HandshakeTimeout; t > 0 {
		_ = c.conn.SetDeadline(time.Now().Add(t))
	}
	sconn, chans, reqs, err := ssh.NewServerConn(c.conn, c.adapter.sshConfig)
	if err != nil {
		logger.Debug("SSH handshake failed", logger.KeyClientIP, clientIP, logger.Err(err))
		return
	}
	defer sconn.Close()
	_ = c.conn.SetDeadline(time.Time{})

	id, ok := identityFrom(sconn.Permissions)
	if !ok {
		logger.Warn("SSH connection without identity", logger.KeyClientIP, clientIP)
		return
	}

	logger.Info("SSH connection established",
		logger.KeyConnectionID, c.id,
		logger.KeyUsername, id.Username,
		logger.KeyClientIP, clientIP,
		"client_version", string(sconn.ClientVersion()))

	go ssh.DiscardRequests(reqs)

	// Closing the server connection ends the chans loop below.
	stop := context.AfterFunc(ctx, func() { _ = sconn.Close() })
	defer stop()

	var wg sync.WaitGroup
	for nc := range chans {
		if nc.ChannelType() != "session" {
			logger.Debug("Rejecting SSH channel", logger.KeyChannel, nc.ChannelType(), logger.KeyClientIP, clientIP)
			_ = nc.Reject(ssh.UnknownChannelType, "only session channels are supported")
			continue
		}
		ch, chReqs, err := nc.Accept()
		if err != nil {
			logger.Debug("Could not accept SSH channel", logger.KeyClientIP, clientIP, logger.Err(err))
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.serveChannel(ctx, ch, chReqs, id, clientIP)
		}()
	}
	wg.Wait()
	logger.Info("SSH connection closed", logger.KeyConnectionID, c.id, logger.KeyUsername, id.Username)
}

// serveChannel waits for an sftp subsystem request, then runs the SFTP
// stream. Every other request is refused.
func (c *Connection) serveChannel(ctx context.Context, ch ssh.Channel, reqs <-chan *ssh.Request, id auth.Identity, clientIP string) {
	defer ch.Close()

	start := make(chan struct{})
	ended := make(chan struct{})
	go func() {
		defer close(ended)
		started := false
		for req := range reqs {
			ok := !started && isSFTPSubsystem(req)
			if req.WantReply {
				_ = req.Reply(ok, nil)
			}
			if ok {
				started = true
				close(start)
			} else {
				logger.Debug("Refused channel request", logger.KeyChannel, req.Type, logger.KeyClientIP, clientIP)
			}
		}
	}()

	select {
	case <-start:
	case <-ended:
		return
	case <-ctx.Done():
		return
	}

	cfg := c.adapter.config
	sess := session.New(session.Config{
		Identity:      id,
		FS:            c.adapter.deps.FS,
		Authorizer:    c.adapter.deps.Authorizer,
		ClientIP:      clientIP,
		Metrics:       c.adapter.deps.Metrics,
		MaxReadLength: cfg.MaxReadLength,
	})

	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanSFTPSession)
	telemetry.SetAttributes(ctx,
		telemetry.SessionID(sess.ID()),
		telemetry.Username(id.Username),
		telemetry.ClientIP(clientIP))
	defer span.End()

	stream := NewStream(ch, sess, StreamConfig{
		MaxPacketSize: cfg.MaxPacketSize,
		MaxRequests:   cfg.MaxRequestsPerConnection,
		IdleTimeout:   cfg.IdleTimeout,
	})
	status := uint32(0)
	if err := stream.Serve(ctx); err != nil {
		status = 1
		telemetry.RecordError(ctx, err)
		logger.InfoCtx(sess.Context(ctx), "SFTP session ended with error", logger.Err(err))
	}
	_, _ = ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{status}))
}

func isSFTPSubsystem(req *ssh.Request) bool {
	if req.Type != "subsystem" {
		return false
	}
	var msg struct{ Name string }
	if err := ssh.Unmarshal(req.Payload, &msg); err != nil {
		return false
	}
	return msg.Name == "sftp"
}
