// Package sftp serves SFTP version 3 over SSH.
//
// Each accepted TCP connection runs an SSH handshake that authenticates
// the user by public key. Session channels requesting the "sftp" subsystem
// are then handed to a Stream bound to a fresh session.Session.
package sftp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/marmos91/dray/internal/logger"
	"github.com/marmos91/dray/internal/telemetry"
	"github.com/marmos91/dray/pkg/adapter"
	"github.com/marmos91/dray/pkg/auth"
	"github.com/marmos91/dray/pkg/metrics"
	"github.com/marmos91/dray/pkg/objectfs"
)

// Permission extension keys carrying the authenticated identity from the
// public key callback to the connection.
const (
	extUsername    = "dray-username"
	extHome        = "dray-home"
	extFingerprint = "dray-fingerprint"
)

// Deps are the collaborators shared by every connection.
type Deps struct {
	FS            *objectfs.FS
	Authenticator *auth.Authenticator
	Authorizer    *auth.Authorizer
	HostKeys      []ssh.Signer

	// Metrics is optional.
	Metrics metrics.SFTPMetrics
}

// Adapter is the SFTP server. It embeds BaseAdapter for the accept loop
// and shutdown, and acts as the ConnectionFactory.
type Adapter struct {
	*adapter.BaseAdapter

	config    Config
	deps      Deps
	sshConfig *ssh.ServerConfig

	nextConnID atomic.Uint64
}

var _ adapter.Adapter = (*Adapter)(nil)

func New(cfg Config, deps Deps) (*Adapter, error) {
	cfg.applyDefaults()
	if deps.FS == nil || deps.Authenticator == nil || deps.Authorizer == nil {
		return nil, errors.New("sftp: filesystem, authenticator and authorizer are required")
	}
	if len(deps.HostKeys) == 0 {
		return nil, ErrNoHostKeys
	}

	a := &Adapter{
		BaseAdapter: adapter.NewBaseAdapter(adapter.BaseConfig{
			Listen:          cfg.Listen,
			MaxConnections:  cfg.MaxConnections,
			ShutdownTimeout: cfg.ShutdownTimeout,
		}, "SFTP"),
		config: cfg,
		deps:   deps,
	}
	if deps.Metrics != nil {
		a.Metrics = deps.Metrics
	}

	a.sshConfig = &ssh.ServerConfig{
		PublicKeyCallback: a.publicKeyCallback,
		ServerVersion:     cfg.ServerVersion(),
	}
	for _, k := range deps.HostKeys {
		a.sshConfig.AddHostKey(k)
	}
	return a, nil
}

// Serve listens on Config.Listen until ctx is cancelled.
func (a *Adapter) Serve(ctx context.Context) error {
	return a.ServeWithFactory(ctx, a)
}

// NewConnection implements adapter.ConnectionFactory.
func (a *Adapter) NewConnection(conn net.Conn) adapter.ConnectionHandler {
	return &Connection{
		adapter: a,
		conn:    conn,
		id:      a.nextConnID.Add(1),
	}
}

// publicKeyCallback authenticates key for the connecting user. The
// resulting identity travels in the permission extensions.
func (a *Adapter) publicKeyCallback(meta ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
	ctx, cancel := context.WithTimeout(a.ShutdownCtx, a.config.HandshakeTimeout)
	defer cancel()

	clientIP := remoteIP(meta.RemoteAddr())
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanSSHAuth)
	defer span.End()
	telemetry.SetAttributes(ctx, telemetry.ClientIP(clientIP), telemetry.Username(meta.User()))

	start := time.Now()
	res, err := a.deps.Authenticator.Authenticate(ctx, meta.User(), key)
	if err != nil {
		a.recordAuth("failure")
		telemetry.RecordError(ctx, err)
		logger.Info("SSH public key rejected",
			logger.KeyUsername, meta.User(),
			logger.KeyClientIP, clientIP,
			logger.KeyFingerprint, ssh.FingerprintSHA256(key),
			logger.KeyDurationMs, logger.Duration(start),
			logger.Err(err))
		return nil, fmt.Errorf("public key rejected for %q", meta.User())
	}

	a.recordAuth("success")
	logger.Debug("SSH public key accepted",
		logger.KeyUsername, res.Identity.Username,
		logger.KeyClientIP, clientIP,
		logger.KeyFingerprint, res.Identity.Fingerprint,
		"provider", res.Provider)
	return &ssh.Permissions{Extensions: map[string]string{
		extUsername:    res.Identity.Username,
		extHome:        res.Identity.Home,
		extFingerprint: res.Identity.Fingerprint,
	}}, nil
}

func (a *Adapter) recordAuth(result string) {
	if a.deps.Metrics != nil {
		a.deps.Metrics.RecordAuth(result)
	}
}

// identityFrom restores the identity stored by publicKeyCallback.
func identityFrom(p *ssh.Permissions) (auth.Identity, bool) {
	if p == nil || p.Extensions[extUsername] == "" {
		return auth.Identity{}, false
	}
	return auth.Identity{
		Username:    p.Extensions[extUsername],
		Home:        p.Extensions[extHome],
		Fingerprint: p.Extensions[extFingerprint],
	}, true
}

func remoteIP(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
