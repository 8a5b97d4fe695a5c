// Package keys implements the authorized key management commands.
package keys

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/dray/pkg/auth"
	"github.com/marmos91/dray/pkg/config"
	"github.com/marmos91/dray/pkg/store/object"
)

// Cmd is the parent command for key management.
var Cmd = &cobra.Command{
	Use:   "keys",
	Short: "Authorized key management",
	Long: `Manage the SSH public keys stored in the bucket under
.ssh/<user>/authorized_keys.

The commands talk to the object store named in the configuration file
directly; the server does not need to be running. Changes are picked up
by a running server once its key cache expires.

Examples:
  # List every user and key
  dray keys list

  # Authorize a key for alice
  dray keys add alice ~/.ssh/id_ed25519.pub

  # Revoke a key by fingerprint
  dray keys remove alice SHA256:abc...`,
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(addCmd)
	Cmd.AddCommand(removeCmd)
}

// openStore connects to the configured object store. Tests replace it.
var openStore = func(cmd *cobra.Command) (object.Store, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.Storage.Type == "memory" {
		return nil, fmt.Errorf("storage type %q keeps no keys between runs; configure s3 storage", cfg.Storage.Type)
	}
	return config.CreateObjectStore(contextOf(cmd), cfg.Storage, nil)
}

// openKeyring returns a keyring on the configured store and a function
// that closes the store.
func openKeyring(cmd *cobra.Command) (*auth.Keyring, func(), error) {
	store, err := openStore(cmd)
	if err != nil {
		return nil, nil, err
	}
	return auth.NewKeyring(store), func() { _ = store.Close() }, nil
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
