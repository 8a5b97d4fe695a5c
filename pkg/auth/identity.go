package auth

import (
	"strings"
	"unicode/utf8"
)

// DefaultHomePattern places each user under /home.
const DefaultHomePattern = "/home/{user}"

// Identity is an authenticated SFTP user.
type Identity struct {
	// Username is the SSH login name.
	Username string

	// Home is the absolute, cleaned home directory path.
	Home string

	// Fingerprint is the SHA256 fingerprint of the accepted public key.
	Fingerprint string
}

// HomeFor expands pattern for user. "{user}" is replaced by the username.
func HomeFor(pattern, user string) string {
	if pattern == "" {
		pattern = DefaultHomePattern
	}
	return cleanPath(strings.ReplaceAll(pattern, "{user}", user))
}

// ValidateUsername rejects names that could escape their key prefix.
func ValidateUsername(user string) error {
	switch {
	case user == "", user == ".", strings.Contains(user, ".."):
		return ErrInvalidUsername
	case !utf8.ValidString(user):
		return ErrInvalidUsername
	case strings.ContainsAny(user, "/\\\x00"):
		return ErrInvalidUsername
	}
	return nil
}
