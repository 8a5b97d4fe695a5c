package config

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/dray/internal/cli/output"
	"github.com/marmos91/dray/pkg/config"
)

var showOutput string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration after defaults and environment overrides are
applied. The S3 secret access key is masked.

Examples:
  # Show as YAML
  dray config show

  # Show as JSON
  dray config show -o json`,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format (yaml|json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}
	if format == output.FormatTable {
		return fmt.Errorf("table output is not supported for config show")
	}

	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	masked := *cfg
	if masked.Storage.S3.SecretAccessKey != "" {
		masked.Storage.S3.SecretAccessKey = "********"
	}
	if format == output.FormatYAML {
		return output.PrintYAML(cmd.OutOrStdout(), &masked)
	}

	// Round-trip through YAML so JSON keys match the file's snake_case names.
	data, err := yaml.Marshal(&masked)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return output.PrintJSON(cmd.OutOrStdout(), tree)
}
