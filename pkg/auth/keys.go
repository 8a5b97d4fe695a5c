package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/crypto/ssh"

	"github.com/marmos91/dray/pkg/store/object"
)

// DefaultKeyCacheTTL is how long a parsed authorized_keys file is reused.
const DefaultKeyCacheTTL = time.Minute

// AuthorizedKeysKey returns the object key holding user's authorized keys.
func AuthorizedKeysKey(user string) string {
	return ".ssh/" + user + "/authorized_keys"
}

// KeyStoreConfig configures a KeyStore.
type KeyStoreConfig struct {
	// CacheTTL bounds how stale a cached key set may be. Zero selects
	// DefaultKeyCacheTTL; a negative value disables caching.
	CacheTTL time.Duration

	// HomePattern builds Identity.Home, see HomeFor.
	HomePattern string
}

// KeyStore authenticates against authorized_keys objects in the store.
// Missing files are cached as empty sets so that probing unknown users does
// not reach the backend on every attempt.
type KeyStore struct {
	store       object.Store
	cache       *gocache.Cache
	homePattern string
}

func NewKeyStore(store object.Store, cfg KeyStoreConfig) *KeyStore {
	ks := &KeyStore{store: store, homePattern: cfg.HomePattern}
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = DefaultKeyCacheTTL
	}
	if ttl > 0 {
		ks.cache = gocache.New(ttl, 2*ttl)
	}
	return ks
}

func (k *KeyStore) Name() string { return "object_store" }

func (k *KeyStore) Authenticate(ctx context.Context, user string, key ssh.PublicKey) (*AuthResult, error) {
	if err := ValidateUsername(user); err != nil {
		return nil, err
	}
	allowed, err := k.fingerprints(ctx, user)
	if err != nil {
		return nil, err
	}

	fp := ssh.FingerprintSHA256(key)
	if _, ok := allowed[fp]; !ok {
		return nil, ErrAuthFailed
	}
	return &AuthResult{
		Identity: Identity{
			Username:    user,
			Home:        HomeFor(k.homePattern, user),
			Fingerprint: fp,
		},
		Provider: k.Name(),
	}, nil
}

// Invalidate drops the cached key set for user.
func (k *KeyStore) Invalidate(user string) {
	if k.cache != nil {
		k.cache.Delete(user)
	}
}

func (k *KeyStore) fingerprints(ctx context.Context, user string) (map[string]struct{}, error) {
	if k.cache != nil {
		if v, ok := k.cache.Get(user); ok {
			return v.(map[string]struct{}), nil
		}
	}

	data, err := k.store.Get(ctx, AuthorizedKeysKey(user), 0, 0)
	switch {
	case object.IsNotFound(err), errors.Is(err, object.ErrInvalidRange):
		data = nil
	case err != nil:
		return nil, fmt.Errorf("load authorized keys for %s: %w", user, err)
	}

	set := make(map[string]struct{})
	for _, pk := range ParseAuthorizedKeys(data) {
		set[ssh.FingerprintSHA256(pk)] = struct{}{}
	}
	if k.cache != nil {
		k.cache.SetDefault(user, set)
	}
	return set, nil
}

// ParseAuthorizedKeys returns every key in an OpenSSH authorized_keys file.
// Blank lines, comments and unparsable lines are skipped.
func ParseAuthorizedKeys(data []byte) []ssh.PublicKey {
	var keys []ssh.PublicKey
	rest := data
	for len(rest) > 0 {
		pk, _, _, next, err := ssh.ParseAuthorizedKey(rest)
		if err != nil {
			break
		}
		keys = append(keys, pk)
		rest = next
	}
	return keys
}
