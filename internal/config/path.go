package config

import (
	"os"
	"path/filepath"
)

// getConfigDir resolves the default config directory: XDG_CONFIG_HOME if
// set, else ~/.config, under a mediastorage subdirectory.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "mediastorage")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "mediastorage")
}

// GetDefaultConfigPath returns the config file path used when no -config
// flag is given.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether a config file exists at the default
// location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path, exposed for an
// init subcommand.
func GetConfigDir() string {
	return getConfigDir()
}
