package config

import (
	"context"
	"fmt"

	"golang.org/x/crypto/ssh"

	"github.com/marmos91/dray/pkg/auth"
	"github.com/marmos91/dray/pkg/metrics"
	"github.com/marmos91/dray/pkg/objectfs"
	"github.com/marmos91/dray/pkg/store/object"
	"github.com/marmos91/dray/pkg/store/object/memory"
	"github.com/marmos91/dray/pkg/store/object/s3"
)

// CreateObjectStore builds the backend selected by cfg.Type. m may be nil.
func CreateObjectStore(ctx context.Context, cfg StorageConfig, m metrics.S3Metrics) (object.Store, error) {
	switch cfg.Type {
	case "memory":
		return memory.New(), nil
	case "s3":
		return createS3Store(ctx, cfg.S3, m)
	default:
		return nil, fmt.Errorf("unknown storage type: %q", cfg.Type)
	}
}

func createS3Store(ctx context.Context, cfg S3Config, m metrics.S3Metrics) (object.Store, error) {
	store, err := s3.NewFromConfig(ctx, s3.Config{
		Bucket:          cfg.Bucket,
		Region:          cfg.Region,
		Endpoint:        cfg.Endpoint,
		KeyPrefix:       cfg.KeyPrefix,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		MaxRetries:      cfg.MaxRetries,
		ForcePathStyle:  cfg.ForcePathStyle,
	}, m)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 store: %w", err)
	}
	return store, nil
}

// CreateFilesystem wraps store with the buffer and paging limits of cfg.
func CreateFilesystem(store object.Store, cfg StorageConfig) *objectfs.FS {
	return objectfs.New(store, objectfs.Options{
		MaxWriteBuffer: cfg.MaxWriteBuffer.Int64(),
		ListPageSize:   cfg.ListPageSize,
	})
}

// CreateAuth builds the public key authenticator backed by the keys in
// store, and the authorizer for cfg.Mode.
func CreateAuth(store object.Store, cfg AuthConfig) (*auth.Authenticator, *auth.Authorizer, error) {
	authorizer, err := auth.NewAuthorizer(auth.Mode(cfg.Mode), cfg.ReadOnly)
	if err != nil {
		return nil, nil, err
	}
	keys := auth.NewKeyStore(store, auth.KeyStoreConfig{
		CacheTTL:    cfg.KeyCacheTTL,
		HomePattern: cfg.HomePattern,
	})
	return auth.NewAuthenticator(keys), authorizer, nil
}

// LoadHostKeys loads the configured host keys. With none configured it
// generates an ephemeral key and reports generated = true.
func LoadHostKeys(ctx context.Context, store object.Store, cfg SSHConfig) (signers []ssh.Signer, generated bool, err error) {
	if len(cfg.HostKeyFiles) > 0 || len(cfg.HostKeyObjects) > 0 {
		signers, err = auth.LoadHostKeys(ctx, store, cfg.HostKeyFiles, cfg.HostKeyObjects)
		return signers, false, err
	}
	key, err := auth.GenerateHostKey()
	if err != nil {
		return nil, false, err
	}
	return []ssh.Signer{key}, true, nil
}
