package keys

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/dray/internal/cli/output"
	"github.com/marmos91/dray/pkg/auth"
)

var listOutput string

var listCmd = &cobra.Command{
	Use:   "list [user]",
	Short: "List authorized keys",
	Long: `List the keys authorized for one user, or for every user when no
user is given.

Examples:
  # List all keys as a table
  dray keys list

  # List alice's keys as JSON
  dray keys list alice -o json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVarP(&listOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

// KeyList is a list of keys for table rendering.
type KeyList []auth.KeyEntry

// Headers implements TableRenderer.
func (kl KeyList) Headers() []string {
	return []string{"USER", "TYPE", "FINGERPRINT", "COMMENT"}
}

// Rows implements TableRenderer.
func (kl KeyList) Rows() [][]string {
	rows := make([][]string, 0, len(kl))
	for _, k := range kl {
		comment := k.Comment
		if comment == "" {
			comment = "-"
		}
		rows = append(rows, []string{k.User, k.Type, k.Fingerprint, comment})
	}
	return rows
}

func runList(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(listOutput)
	if err != nil {
		return err
	}

	ring, closeStore, err := openKeyring(cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	ctx := contextOf(cmd)
	users := args
	if len(users) == 0 {
		if users, err = ring.Users(ctx); err != nil {
			return err
		}
	}

	keys := KeyList{}
	for _, u := range users {
		entries, err := ring.Keys(ctx, u)
		if err != nil {
			return err
		}
		keys = append(keys, entries...)
	}

	if len(keys) == 0 && format == output.FormatTable {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No keys found.")
		return nil
	}
	return output.Print(cmd.OutOrStdout(), format, keys)
}
