package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Environment overrides for the default locations.
const (
	EnvConfigPath = "TIDY_CONFIG_PATH"
	EnvHome       = "TIDY_HOME"
)

// GetDefaults resolves where tidy keeps its files when no config says otherwise.
// The config file sits at ~/.config/tidy.toml and data under
// ~/.local/share/tidy unless EnvConfigPath or EnvHome is set.
// Keys: config_path, base_dir, log_dir.
func GetDefaults() (map[string]string, error) {
	configPath, err := envOrHome(EnvConfigPath, ".config", "tidy.toml")
	if err != nil {
		return nil, err
	}
	baseDir, err := envOrHome(EnvHome, ".local", "share", "tidy")
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

// envOrHome returns the value of env, or elem joined below the user's home.
func envOrHome(env string, elem ...string) (string, error) {
	if v := os.Getenv(env); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving %s default: %w", env, err)
	}
	return filepath.Join(append([]string{home}, elem...)...), nil
}
