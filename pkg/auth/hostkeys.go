package auth

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"os"

	"golang.org/x/crypto/ssh"

	"github.com/marmos91/dray/pkg/store/object"
)

// LoadHostKeys parses PEM private keys from local files and from store
// objects. It returns an error if any configured key cannot be loaded; with
// nothing configured it returns no signers and the caller decides whether
// to generate one.
func LoadHostKeys(ctx context.Context, store object.Store, files, objects []string) ([]ssh.Signer, error) {
	var signers []ssh.Signer

	for _, f := range files {
		pemBytes, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("read host key %s: %w", f, err)
		}
		s, err := ssh.ParsePrivateKey(pemBytes)
		if err != nil {
			return nil, fmt.Errorf("parse host key %s: %w", f, err)
		}
		signers = append(signers, s)
	}

	for _, key := range objects {
		pemBytes, err := store.Get(ctx, key, 0, 0)
		if err != nil {
			return nil, fmt.Errorf("fetch host key object %s: %w", key, err)
		}
		s, err := ssh.ParsePrivateKey(pemBytes)
		if err != nil {
			return nil, fmt.Errorf("parse host key object %s: %w", key, err)
		}
		signers = append(signers, s)
	}
	return signers, nil
}

// GenerateHostKey creates an ephemeral Ed25519 host key.
func GenerateHostKey() (ssh.Signer, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate host key: %w", err)
	}
	return ssh.NewSignerFromKey(priv)
}
