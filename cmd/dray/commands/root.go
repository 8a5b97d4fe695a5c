// Package commands implements the dray command line.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/dray/cmd/dray/commands/config"
	"github.com/marmos91/dray/cmd/dray/commands/keys"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "dray",
	Short: "dray - SFTP server backed by S3",
	Long: `dray serves an S3 bucket over SFTP (protocol version 3).

Users authenticate with SSH public keys stored in the bucket itself under
.ssh/<user>/authorized_keys. Directories are key prefixes; uploads are
buffered per open file and stored as whole objects on close.

Use "dray [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. It is called once by main.main().
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/dray/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(config.Cmd)
	rootCmd.AddCommand(keys.Cmd)
	rootCmd.AddCommand(completionCmd)

	// Hide the default completion command (we provide our own)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// GetConfigFile returns the config file path from the global flag.
func GetConfigFile() string {
	return cfgFile
}
