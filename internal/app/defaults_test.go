package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetDefaults(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}
	xdgBase := filepath.Join(home, ".local", "share", "tidy")

	tests := []struct {
		name       string
		configEnv  string
		homeEnv    string
		wantConfig string
		wantBase   string
	}{
		{
			name:       "env vars override everything",
			configEnv:  "/custom/config.toml",
			homeEnv:    "/custom/tidy",
			wantConfig: "/custom/config.toml",
			wantBase:   "/custom/tidy",
		},
		{
			name:       "home dir defaults",
			wantConfig: filepath.Join(home, ".config", "tidy.toml"),
			wantBase:   xdgBase,
		},
		{
			name:       "only data dir overridden",
			homeEnv:    "/srv/tidy",
			wantConfig: filepath.Join(home, ".config", "tidy.toml"),
			wantBase:   "/srv/tidy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvConfigPath, tt.configEnv)
			t.Setenv(EnvHome, tt.homeEnv)

			defaults, err := GetDefaults()
			if err != nil {
				t.Fatalf("GetDefaults() error = %v", err)
			}
			if defaults["config_path"] != tt.wantConfig {
				t.Errorf("config_path = %q, want %q", defaults["config_path"], tt.wantConfig)
			}
			if defaults["base_dir"] != tt.wantBase {
				t.Errorf("base_dir = %q, want %q", defaults["base_dir"], tt.wantBase)
			}
			if want := filepath.Join(tt.wantBase, "log"); defaults["log_dir"] != want {
				t.Errorf("log_dir = %q, want %q", defaults["log_dir"], want)
			}
		})
	}
}
