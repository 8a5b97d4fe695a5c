// Package adapter defines the lifecycle contract of dray's network front
// ends and the TCP accept loop they share.
package adapter

import "context"

// Adapter is a protocol server that can be started and stopped by the
// server command.
//
// Lifecycle:
//  1. Creation: the adapter is built from its protocol configuration and
//     the backend it serves
//  2. Startup: Serve() listens and blocks until shutdown
//  3. Shutdown: Stop() closes the listener and drains connections
//
// Thread safety:
// Stop may be called concurrently with Serve, and more than once.
type Adapter interface {
	// Serve listens and handles connections until ctx is cancelled or an
	// unrecoverable error occurs.
	//
	// Returns:
	//   - nil on graceful shutdown
	//   - error if the listener fails or connections had to be force-closed
	Serve(ctx context.Context) error

	// Stop initiates graceful shutdown and waits for active connections
	// until ctx is done.
	Stop(ctx context.Context) error

	// Protocol returns the protocol name used in logs and metrics ("SFTP").
	Protocol() string

	// Addr returns the address the adapter listens on, blocking until the
	// listener is ready.
	Addr() string
}
