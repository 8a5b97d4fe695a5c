package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/dray/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the dray configuration file.

Checks for syntax errors, missing required fields, and invalid values.
Environment overrides (DRAY_*) are applied before validation.

Examples:
  # Validate default config
  dray config validate

  # Validate specific config file
  dray config validate --config /etc/dray/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	var warnings []string
	if len(cfg.SSH.HostKeyFiles) == 0 && len(cfg.SSH.HostKeyObjects) == 0 {
		warnings = append(warnings, "No host keys configured - an ephemeral key is generated on every start")
	}
	if cfg.Storage.Type == "memory" {
		warnings = append(warnings, "Memory storage selected - data is lost on restart")
	}
	if cfg.Storage.S3.Endpoint != "" && !cfg.Storage.S3.ForcePathStyle {
		warnings = append(warnings, "Custom S3 endpoint without force_path_style - most S3-compatible servers need it")
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file: %s\n", displayPath)
	_, _ = fmt.Fprintln(out, "Validation: OK")

	if len(warnings) > 0 {
		_, _ = fmt.Fprintln(out, "\nWarnings:")
		for _, w := range warnings {
			_, _ = fmt.Fprintf(out, "  - %s\n", w)
		}
	}

	_, _ = fmt.Fprintf(out, "\nConfiguration summary:\n")
	_, _ = fmt.Fprintf(out, "  Listen:          %s\n", cfg.Server.Listen)
	_, _ = fmt.Fprintf(out, "  Storage:         %s\n", describeStorage(cfg.Storage))
	_, _ = fmt.Fprintf(out, "  Auth mode:       %s (read only: %t)\n", cfg.Auth.Mode, cfg.Auth.ReadOnly)
	_, _ = fmt.Fprintf(out, "  Max packet size: %s\n", cfg.Server.MaxPacketSize)
	_, _ = fmt.Fprintf(out, "  Log level:       %s\n", cfg.Logging.Level)
	return nil
}

func describeStorage(s config.StorageConfig) string {
	if s.Type != "s3" {
		return s.Type
	}
	desc := "s3://" + s.S3.Bucket
	if s.S3.KeyPrefix != "" {
		desc += "/" + s.S3.KeyPrefix
	}
	if s.S3.Endpoint != "" {
		desc += " via " + s.S3.Endpoint
	}
	return desc
}
