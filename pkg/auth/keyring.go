package auth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/marmos91/dray/pkg/store/object"
)

const keysPrefix = ".ssh/"

// KeyEntry describes one authorized key.
type KeyEntry struct {
	User        string `json:"user" yaml:"user"`
	Type        string `json:"type" yaml:"type"`
	Fingerprint string `json:"fingerprint" yaml:"fingerprint"`
	Comment     string `json:"comment,omitempty" yaml:"comment,omitempty"`
}

// Keyring edits the authorized_keys objects that KeyStore reads. Edits are
// read-modify-write on one object and are not safe against concurrent
// editors of the same user.
type Keyring struct {
	store object.Store
}

func NewKeyring(store object.Store) *Keyring {
	return &Keyring{store: store}
}

// Users returns every user with an authorized_keys directory, sorted.
func (r *Keyring) Users(ctx context.Context) ([]string, error) {
	var users []string
	token := ""
	for {
		page, err := r.store.List(ctx, keysPrefix, token, 0)
		if err != nil {
			return nil, fmt.Errorf("list key users: %w", err)
		}
		for _, p := range page.CommonPrefixes {
			if u := strings.TrimSuffix(strings.TrimPrefix(p, keysPrefix), object.Delimiter); u != "" {
				users = append(users, u)
			}
		}
		if page.Done() {
			break
		}
		token = page.NextToken
	}
	sort.Strings(users)
	return users, nil
}

// Keys returns the keys authorized for user in file order.
func (r *Keyring) Keys(ctx context.Context, user string) ([]KeyEntry, error) {
	data, err := r.load(ctx, user)
	if err != nil {
		return nil, err
	}
	var entries []KeyEntry
	for _, line := range bytes.Split(data, []byte("\n")) {
		if e, ok := parseEntry(user, line); ok {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// Add appends the first key of an authorized_keys line for user, keeping
// its comment but not its options. Adding a key that is already present is
// a no-op and reports false.
func (r *Keyring) Add(ctx context.Context, user string, line []byte) (KeyEntry, bool, error) {
	if err := ValidateUsername(user); err != nil {
		return KeyEntry{}, false, err
	}
	pk, comment, _, _, err := ssh.ParseAuthorizedKey(line)
	if err != nil {
		return KeyEntry{}, false, fmt.Errorf("parse public key: %w", err)
	}
	entry := KeyEntry{User: user, Type: pk.Type(), Fingerprint: ssh.FingerprintSHA256(pk), Comment: comment}

	data, err := r.load(ctx, user)
	if err != nil {
		return KeyEntry{}, false, err
	}
	for _, l := range bytes.Split(data, []byte("\n")) {
		if e, ok := parseEntry(user, l); ok && e.Fingerprint == entry.Fingerprint {
			return e, false, nil
		}
	}

	if len(data) > 0 && !bytes.HasSuffix(data, []byte("\n")) {
		data = append(data, '\n')
	}
	// MarshalAuthorizedKey ends in a newline; the comment goes before it.
	marshaled := bytes.TrimSuffix(ssh.MarshalAuthorizedKey(pk), []byte("\n"))
	data = append(data, marshaled...)
	if comment != "" {
		data = append(data, ' ')
		data = append(data, comment...)
	}
	data = append(data, '\n')

	if err := r.store.Put(ctx, AuthorizedKeysKey(user), data); err != nil {
		return KeyEntry{}, false, fmt.Errorf("store authorized keys for %s: %w", user, err)
	}
	return entry, true, nil
}

// Remove drops the key with the given SHA256 fingerprint. Other lines,
// comments included, are kept. When no key remains the object is deleted.
// Reports whether a key was removed.
func (r *Keyring) Remove(ctx context.Context, user, fingerprint string) (bool, error) {
	if err := ValidateUsername(user); err != nil {
		return false, err
	}
	data, err := r.load(ctx, user)
	if err != nil {
		return false, err
	}

	var kept [][]byte
	removed, remaining := false, 0
	for _, line := range bytes.Split(data, []byte("\n")) {
		e, ok := parseEntry(user, line)
		switch {
		case ok && e.Fingerprint == fingerprint:
			removed = true
			continue
		case ok:
			remaining++
		}
		kept = append(kept, line)
	}
	if !removed {
		return false, nil
	}

	key := AuthorizedKeysKey(user)
	if remaining == 0 {
		if err := r.store.Delete(ctx, key); err != nil && !object.IsNotFound(err) {
			return false, fmt.Errorf("delete authorized keys for %s: %w", user, err)
		}
		return true, nil
	}
	if err := r.store.Put(ctx, key, bytes.Join(kept, []byte("\n"))); err != nil {
		return false, fmt.Errorf("store authorized keys for %s: %w", user, err)
	}
	return true, nil
}

// load returns the raw authorized_keys content; a missing file is empty.
func (r *Keyring) load(ctx context.Context, user string) ([]byte, error) {
	if err := ValidateUsername(user); err != nil {
		return nil, err
	}
	data, err := r.store.Get(ctx, AuthorizedKeysKey(user), 0, 0)
	switch {
	case object.IsNotFound(err), errors.Is(err, object.ErrInvalidRange):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("load authorized keys for %s: %w", user, err)
	}
	return data, nil
}

func parseEntry(user string, line []byte) (KeyEntry, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || line[0] == '#' {
		return KeyEntry{}, false
	}
	pk, comment, _, _, err := ssh.ParseAuthorizedKey(line)
	if err != nil {
		return KeyEntry{}, false
	}
	return KeyEntry{User: user, Type: pk.Type(), Fingerprint: ssh.FingerprintSHA256(pk), Comment: comment}, true
}
