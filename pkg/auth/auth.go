package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/ssh"
)

// AuthProvider verifies a client public key for a username.
//
// Thread safety: implementations must be safe for concurrent use.
type AuthProvider interface {
	// Authenticate returns the identity for user when key is accepted.
	//
	// Returns:
	//   - (*AuthResult, nil) when the key is authorized
	//   - (nil, ErrAuthFailed) when the key is not authorized for user
	//   - (nil, other error) when the provider could not decide
	Authenticate(ctx context.Context, user string, key ssh.PublicKey) (*AuthResult, error)

	// Name returns the provider name for logging and diagnostics.
	Name() string
}

// AuthResult contains the outcome of a successful authentication.
type AuthResult struct {
	Identity Identity

	// Provider is the name of the AuthProvider that accepted the key.
	Provider string
}

// Authenticator tries each provider in order and returns the first success.
//
// A provider error other than ErrAuthFailed does not stop the chain, but it
// is reported when no provider accepts the key, so that a backend outage is
// not silently logged as a wrong key.
//
// Thread safety: safe for concurrent use (providers are read-only after construction).
type Authenticator struct {
	providers []AuthProvider
}

func NewAuthenticator(providers ...AuthProvider) *Authenticator {
	return &Authenticator{providers: providers}
}

func (a *Authenticator) Authenticate(ctx context.Context, user string, key ssh.PublicKey) (*AuthResult, error) {
	if err := ValidateUsername(user); err != nil {
		return nil, err
	}

	var lastErr error
	for _, p := range a.providers {
		res, err := p.Authenticate(ctx, user, key)
		if err == nil {
			if res.Provider == "" {
				res.Provider = p.Name()
			}
			return res, nil
		}
		if !errors.Is(err, ErrAuthFailed) {
			lastErr = fmt.Errorf("%s: %w", p.Name(), err)
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthFailed, lastErr)
	}
	return nil, ErrAuthFailed
}

// Providers returns the registered providers.
func (a *Authenticator) Providers() []AuthProvider {
	return a.providers
}

// Standard authentication and authorization errors.
var (
	// ErrAuthFailed indicates the presented key is not authorized.
	ErrAuthFailed = errors.New("auth: authentication failed")

	// ErrInvalidUsername indicates a username that cannot be mapped to a
	// key location or home directory.
	ErrInvalidUsername = errors.New("auth: invalid username")

	// ErrPermissionDenied indicates the identity may not perform the action
	// on the path.
	ErrPermissionDenied = errors.New("auth: permission denied")
)
