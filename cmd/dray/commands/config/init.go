package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/dray/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write a configuration file populated with the default values.

The file is created at $XDG_CONFIG_HOME/dray/config.yaml unless --config
names another path. Existing files are kept unless --force is given.

Examples:
  # Create the default config
  dray config init

  # Overwrite a config at a custom path
  dray config init --config ./dray.yaml --force`,
	RunE: runConfigInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	var err error
	if configPath != "" {
		err = config.InitConfigToPath(configPath, initForce)
	} else {
		configPath, err = config.InitConfig(initForce)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration written to %s\n", configPath)
	_, _ = fmt.Fprintln(out, "\nNext steps:")
	_, _ = fmt.Fprintln(out, "  1. Set storage.s3.bucket and storage.s3.region")
	_, _ = fmt.Fprintln(out, "  2. Upload a key:  dray keys add <user> ~/.ssh/id_ed25519.pub")
	_, _ = fmt.Fprintln(out, "  3. Start:         dray start")
	return nil
}
