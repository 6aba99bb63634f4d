package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		BaseDir:  "/home/user/.local/share/tidy",
		LogDir:   "/home/user/.local/share/tidy/log",
		Database: DatabaseConfig{Type: "sqlite", DataDir: "/home/user/.local/share/tidy"},
		Filesystem: FilesystemConfig{
			Ignore:     []string{"*.part", "node_modules"},
			ShowHidden: true,
		},
		Organize: OrganizeConfig{
			DateFormat:        "YYYY/MM",
			OverwriteStrategy: "skip",
			PermanentDelete:   true,
			Workers:           8,
			CompareMode:       "quick",
		},
		Trash: TrashConfig{Dir: "/home/user/.local/share/tidy/trash"},
		Watch: WatchConfig{Debounce: Duration{1500 * time.Millisecond}},
		Snapshot: SnapshotConfig{
			Type:     "s3",
			Name:     "laptop",
			Encrypt:  true,
			S3Bucket: "ledgers",
			S3Prefix: "tidy",
			S3Region: "eu-west-1",
		},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  "/home/user/.local/share/tidy/keys/tidy.pub",
			PrivateKeyPath: "/home/user/.local/share/tidy/keys/tidy.key",
		},
	}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if !strings.Contains(buf.String(), `debounce = "1.5s"`) {
		t.Errorf("encoded config does not contain debounce as a string:\n%s", buf.String())
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.BaseDir != original.BaseDir {
		t.Errorf("BaseDir = %q, want %q", got.BaseDir, original.BaseDir)
	}
	if got.LogDir != original.LogDir {
		t.Errorf("LogDir = %q, want %q", got.LogDir, original.LogDir)
	}
	if got.Database != original.Database {
		t.Errorf("Database = %+v, want %+v", got.Database, original.Database)
	}
	if len(got.Filesystem.Ignore) != 2 || !got.Filesystem.ShowHidden {
		t.Errorf("Filesystem = %+v, want %+v", got.Filesystem, original.Filesystem)
	}
	if got.Organize != original.Organize {
		t.Errorf("Organize = %+v, want %+v", got.Organize, original.Organize)
	}
	if got.Trash != original.Trash {
		t.Errorf("Trash = %+v, want %+v", got.Trash, original.Trash)
	}
	if got.Watch.Debounce.Duration != 1500*time.Millisecond {
		t.Errorf("Watch.Debounce = %v, want 1.5s", got.Watch.Debounce.Duration)
	}
	if got.Snapshot != original.Snapshot {
		t.Errorf("Snapshot = %+v, want %+v", got.Snapshot, original.Snapshot)
	}
	if got.Encryption != original.Encryption {
		t.Errorf("Encryption = %+v, want %+v", got.Encryption, original.Encryption)
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("/data/tidy")

	if cfg.BaseDir != "/data/tidy" {
		t.Errorf("BaseDir = %q, want %q", cfg.BaseDir, "/data/tidy")
	}
	if cfg.LogDir != "/data/tidy/log" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, "/data/tidy/log")
	}
	if cfg.Database.Type != "sqlite" || cfg.Database.DataDir != "/data/tidy" {
		t.Errorf("Database = %+v, want sqlite in /data/tidy", cfg.Database)
	}
	if cfg.Trash.Dir != "/data/tidy/trash" {
		t.Errorf("Trash.Dir = %q, want %q", cfg.Trash.Dir, "/data/tidy/trash")
	}
	if cfg.Organize.OverwriteStrategy != "rename" {
		t.Errorf("Organize.OverwriteStrategy = %q, want rename", cfg.Organize.OverwriteStrategy)
	}
	if cfg.Snapshot.Type != "none" {
		t.Errorf("Snapshot.Type = %q, want none", cfg.Snapshot.Type)
	}
	if cfg.Encryption.PublicKeyPath != "/data/tidy/keys/tidy.pub" {
		t.Errorf("Encryption.PublicKeyPath = %q, want %q", cfg.Encryption.PublicKeyPath, "/data/tidy/keys/tidy.pub")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on defaults error = %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"database type", func(c *Config) { c.Database.Type = "postgres" }},
		{"overwrite strategy", func(c *Config) { c.Organize.OverwriteStrategy = "replace" }},
		{"compare mode", func(c *Config) { c.Organize.CompareMode = "bytes" }},
		{"snapshot type", func(c *Config) { c.Snapshot.Type = "ftp" }},
		{"negative workers", func(c *Config) { c.Organize.Workers = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := NewConfig("/data/tidy")
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() expected error")
			}
		})
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "nested", "tidy.toml")

		if err := Init(path, NewConfig(dir)); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		if _, err := os.Stat(path); err != nil {
			t.Fatalf("config file not created: %v", err)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "tidy.toml")
		cfg := NewConfig(dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}

		if err := Init(path, cfg); err == nil {
			t.Fatal("second Init() expected error")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "tidy.toml")
		cfg := NewConfig(dir)
		cfg.Database = DatabaseConfig{Type: "memory"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.Database.Type != "memory" {
			t.Errorf("Database.Type = %q, want memory", got.Database.Type)
		}
		if got.Watch.Debounce.Duration != 2*time.Second {
			t.Errorf("Watch.Debounce = %v, want 2s", got.Watch.Debounce.Duration)
		}
	})

	t.Run("rejects invalid config", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tidy.toml")
		content := "[database]\ntype = \"postgres\"\n"
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}

		if _, err := ReadFromFile(path); err == nil {
			t.Fatal("ReadFromFile() expected validation error")
		}
	})

	t.Run("rejects malformed duration", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tidy.toml")
		content := "[database]\ntype = \"memory\"\n[watch]\ndebounce = \"soon\"\n"
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}

		if _, err := ReadFromFile(path); err == nil {
			t.Fatal("ReadFromFile() expected decode error")
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		if _, err := ReadFromFile("/nonexistent/path/tidy.toml"); err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}
