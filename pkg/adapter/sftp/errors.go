package sftp

import "errors"

var (
	// ErrNotInitialized is returned by Stream.Serve when the client sent a
	// request before INIT.
	ErrNotInitialized = errors.New("sftp: request before INIT")

	// ErrNoHostKeys is returned by New when no host key was supplied.
	ErrNoHostKeys = errors.New("sftp: no host keys")
)
