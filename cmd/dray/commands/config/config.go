// Package config implements the configuration management commands.
package config

import (
	"github.com/spf13/cobra"
)

// Cmd is the parent command for configuration management.
var Cmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long: `Create, validate and inspect the dray configuration file.

Examples:
  # Write a default configuration
  dray config init

  # Check a configuration file
  dray config validate --config /etc/dray/config.yaml

  # Print the effective configuration, including environment overrides
  dray config show -o json`,
}

func init() {
	Cmd.AddCommand(initCmd)
	Cmd.AddCommand(validateCmd)
	Cmd.AddCommand(showCmd)
}
