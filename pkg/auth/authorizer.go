package auth

import (
	"fmt"
	"path"
	"strings"
)

// ReservedPrefix holds authorized keys and host keys. It is never reachable
// over SFTP.
const ReservedPrefix = "/.ssh"

// Mode selects how far an identity may reach.
type Mode string

const (
	// ModeHome confines sessions to their home directory.
	ModeHome Mode = "home"

	// ModeBucket exposes the whole bucket except the reserved prefix.
	ModeBucket Mode = "bucket"
)

// Action classifies an operation for authorization.
type Action int

const (
	ActionRead Action = iota
	ActionWrite
)

func (a Action) String() string {
	if a == ActionWrite {
		return "write"
	}
	return "read"
}

// Authorizer checks paths against an identity. It is immutable and safe for
// concurrent use.
type Authorizer struct {
	mode     Mode
	readOnly bool
}

func NewAuthorizer(mode Mode, readOnly bool) (*Authorizer, error) {
	switch mode {
	case "":
		mode = ModeHome
	case ModeHome, ModeBucket:
	default:
		return nil, fmt.Errorf("unknown authorization mode %q", mode)
	}
	return &Authorizer{mode: mode, readOnly: readOnly}, nil
}

func (a *Authorizer) Mode() Mode     { return a.mode }
func (a *Authorizer) ReadOnly() bool { return a.readOnly }

// Authorize returns ErrPermissionDenied unless id may perform act on p.
// p must be absolute.
func (a *Authorizer) Authorize(id Identity, p string, act Action) error {
	p = cleanPath(p)
	if IsReserved(p) {
		return fmt.Errorf("%s %s: %w", act, p, ErrPermissionDenied)
	}
	if a.readOnly && act == ActionWrite {
		return fmt.Errorf("%s %s: read-only: %w", act, p, ErrPermissionDenied)
	}
	if a.mode == ModeHome && !within(id.Home, p) {
		return fmt.Errorf("%s %s: outside %s: %w", act, p, id.Home, ErrPermissionDenied)
	}
	return nil
}

// Visible reports whether a listed entry at p may be shown to id.
func (a *Authorizer) Visible(id Identity, p string) bool {
	return a.Authorize(id, p, ActionRead) == nil
}

// IsReserved reports whether p lies in ReservedPrefix.
func IsReserved(p string) bool {
	return within(ReservedPrefix, cleanPath(p))
}

// within reports whether p is root or lies below it.
func within(root, p string) bool {
	if root == "/" {
		return true
	}
	return p == root || strings.HasPrefix(p, root+"/")
}

func cleanPath(p string) string {
	return path.Clean("/" + p)
}
