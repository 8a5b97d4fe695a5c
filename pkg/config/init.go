package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const configHeader = `# dray configuration file
#
# Every key can be overridden by an environment variable: upper-case the
# key path, join it with underscores and prefix DRAY_, e.g.
#   DRAY_STORAGE_S3_BUCKET=uploads
#   DRAY_LOGGING_LEVEL=DEBUG
#
# Users authenticate with the keys stored at
# .ssh/<user>/authorized_keys inside the bucket.

`

// InitConfig writes a default configuration file at the default location.
// It refuses to overwrite an existing file unless force is set.
//
// Returns the path written.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	return path, InitConfigToPath(path, force)
}

// InitConfigToPath writes a default configuration file at path.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", path)
		}
	}

	data, err := yaml.Marshal(GetDefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, append([]byte(configHeader), data...), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
