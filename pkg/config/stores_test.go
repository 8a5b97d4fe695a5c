package config

import (
	"context"
	"testing"

	"golang.org/x/crypto/ssh"

	"github.com/marmos91/dray/internal/bytesize"
	"github.com/marmos91/dray/pkg/auth"
)

func TestCreateObjectStore_Memory(t *testing.T) {
	ctx := context.Background()
	store, err := CreateObjectStore(ctx, StorageConfig{Type: "memory"}, nil)
	if err != nil {
		t.Fatalf("CreateObjectStore failed: %v", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.HealthCheck(ctx); err != nil {
		t.Errorf("Expected healthy memory store, got: %v", err)
	}

	if _, err := CreateObjectStore(ctx, StorageConfig{Type: "tape"}, nil); err == nil {
		t.Error("Expected error for unknown storage type")
	}
}

func TestCreateFilesystem(t *testing.T) {
	ctx := context.Background()
	cfg := StorageConfig{Type: "memory", MaxWriteBuffer: 4 * bytesize.KiB, ListPageSize: 10}
	store, err := CreateObjectStore(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("CreateObjectStore failed: %v", err)
	}

	if fs := CreateFilesystem(store, cfg); fs == nil {
		t.Fatal("Expected a filesystem")
	}
}

func TestCreateAuth(t *testing.T) {
	store, _ := CreateObjectStore(context.Background(), StorageConfig{Type: "memory"}, nil)

	authn, authz, err := CreateAuth(store, AuthConfig{Mode: "bucket", ReadOnly: true})
	if err != nil {
		t.Fatalf("CreateAuth failed: %v", err)
	}
	if len(authn.Providers()) != 1 {
		t.Errorf("Expected one auth provider, got %d", len(authn.Providers()))
	}
	if authz.Mode() != auth.ModeBucket || !authz.ReadOnly() {
		t.Errorf("Expected read-only bucket authorizer, got mode=%s read_only=%v", authz.Mode(), authz.ReadOnly())
	}

	if _, _, err := CreateAuth(store, AuthConfig{Mode: "everyone"}); err == nil {
		t.Error("Expected error for unknown auth mode")
	}
}

func TestLoadHostKeys_GeneratesWhenUnconfigured(t *testing.T) {
	ctx := context.Background()
	store, _ := CreateObjectStore(ctx, StorageConfig{Type: "memory"}, nil)

	signers, generated, err := LoadHostKeys(ctx, store, SSHConfig{})
	if err != nil {
		t.Fatalf("LoadHostKeys failed: %v", err)
	}
	if !generated || len(signers) != 1 {
		t.Fatalf("Expected one generated key, got %d (generated=%v)", len(signers), generated)
	}
	if signers[0].PublicKey().Type() != ssh.KeyAlgoED25519 {
		t.Errorf("Expected ed25519 key, got %s", signers[0].PublicKey().Type())
	}

	if _, _, err := LoadHostKeys(ctx, store, SSHConfig{HostKeyObjects: []string{"missing"}}); err == nil {
		t.Error("Expected error for missing host key object")
	}
}
