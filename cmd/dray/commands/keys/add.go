package keys

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:   "add <user> <public-key-file|->",
	Short: "Authorize a public key",
	Long: `Append a public key to the user's authorized_keys object. The key is
read from a file in OpenSSH authorized_keys format, or from stdin when the
file is "-". Adding a key that is already authorized changes nothing.

Examples:
  # Authorize a key file
  dray keys add alice ~/.ssh/id_ed25519.pub

  # Authorize a key from stdin
  ssh-add -L | head -1 | dray keys add alice -`,
	Args: cobra.ExactArgs(2),
	RunE: runAdd,
}

func runAdd(cmd *cobra.Command, args []string) error {
	user, source := args[0], args[1]

	var (
		line []byte
		err  error
	)
	if source == "-" {
		line, err = io.ReadAll(cmd.InOrStdin())
	} else {
		line, err = os.ReadFile(source)
	}
	if err != nil {
		return fmt.Errorf("failed to read public key: %w", err)
	}

	ring, closeStore, err := openKeyring(cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	entry, added, err := ring.Add(contextOf(cmd), user, line)
	if err != nil {
		return fmt.Errorf("failed to add key: %w", err)
	}
	if !added {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Key %s is already authorized for %s\n", entry.Fingerprint, user)
		return nil
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Added %s key %s for %s\n", entry.Type, entry.Fingerprint, user)
	return nil
}
