package sftp

import (
	"time"

	proto "github.com/marmos91/dray/internal/protocol/sftp"
)

const (
	DefaultListen                   = ":2022"
	DefaultMaxRequestsPerConnection = 64
	DefaultHandshakeTimeout         = 30 * time.Second
	DefaultShutdownTimeout          = 30 * time.Second
)

// Config holds the SFTP adapter settings.
type Config struct {
	// Listen is the TCP address, e.g. ":2022".
	Listen string

	// MaxConnections limits concurrent SSH connections. 0 means unlimited.
	MaxConnections int

	// MaxPacketSize bounds the declared length of incoming frames.
	MaxPacketSize uint32

	// MaxRequestsPerConnection bounds concurrently running handlers on one
	// SFTP channel. Further requests wait in the decode loop.
	MaxRequestsPerConnection int

	// MaxReadLength caps the data returned by a single READ.
	MaxReadLength uint32

	// IdleTimeout closes a channel that receives no frame for this long.
	// 0 disables it.
	IdleTimeout time.Duration

	// HandshakeTimeout bounds the SSH handshake including authentication.
	HandshakeTimeout time.Duration

	// ShutdownTimeout bounds graceful shutdown before connections are
	// force-closed.
	ShutdownTimeout time.Duration

	// Version is appended to the SSH identification string
	// ("SSH-2.0-dray_<version>").
	Version string
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.MaxPacketSize == 0 {
		c.MaxPacketSize = proto.DefaultMaxPacketSize
	}
	if c.MaxRequestsPerConnection <= 0 {
		c.MaxRequestsPerConnection = DefaultMaxRequestsPerConnection
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.Version == "" {
		c.Version = "dev"
	}
}

// ServerVersion returns the SSH identification string.
func (c *Config) ServerVersion() string {
	return "SSH-2.0-dray_" + c.Version
}
