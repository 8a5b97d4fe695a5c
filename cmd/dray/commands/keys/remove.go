package keys

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/dray/internal/cli/prompt"
)

var removeForce bool

var removeCmd = &cobra.Command{
	Use:   "remove <user> <fingerprint>",
	Short: "Revoke a public key",
	Long: `Remove the key with the given SHA256 fingerprint from the user's
authorized_keys object. You will be prompted for confirmation unless
--force is specified.

A running server caches authorized keys, so it may keep accepting a revoked
key until its cache entry expires (auth.key_cache_ttl, default 1m).

Examples:
  # Revoke with confirmation
  dray keys remove alice SHA256:uNiVztksCsDhcc0u9e8BujQXVUpKZIDTMczCvj3tD2s

  # Revoke without confirmation
  dray keys remove alice SHA256:uNiVztksCsDhcc0u9e8BujQXVUpKZIDTMczCvj3tD2s --force`,
	Args:    cobra.ExactArgs(2),
	Aliases: []string{"rm"},
	RunE:    runRemove,
}

func init() {
	removeCmd.Flags().BoolVarP(&removeForce, "force", "f", false, "Skip confirmation prompt")
}

func runRemove(cmd *cobra.Command, args []string) error {
	user, fingerprint := args[0], args[1]

	ok, err := prompt.ConfirmWithForce(fmt.Sprintf("Revoke key %s for %s", fingerprint, user), removeForce)
	if errors.Is(err, prompt.ErrAborted) || (err == nil && !ok) {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
		return nil
	}
	if err != nil {
		return err
	}

	ring, closeStore, err := openKeyring(cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	removed, err := ring.Remove(contextOf(cmd), user, fingerprint)
	if err != nil {
		return fmt.Errorf("failed to remove key: %w", err)
	}
	if !removed {
		return fmt.Errorf("no key %s authorized for %s", fingerprint, user)
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Removed key %s for %s\n", fingerprint, user)
	return nil
}
