package adapter

import "errors"

// ErrShutdownTimeout is returned by Serve and Stop when connections were
// still active after the shutdown timeout and had to be force-closed.
var ErrShutdownTimeout = errors.New("shutdown timeout exceeded")
