package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for tidy.
type Config struct {
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	Database   DatabaseConfig   `toml:"database"`
	Filesystem FilesystemConfig `toml:"filesystem"`
	Organize   OrganizeConfig   `toml:"organize"`
	Trash      TrashConfig      `toml:"trash"`
	Watch      WatchConfig      `toml:"watch"`
	Snapshot   SnapshotConfig   `toml:"snapshot"`
	Encryption EncryptionConfig `toml:"encryption"`
}

// DatabaseConfig represents configuration for the rule store and history ledger.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// FilesystemConfig holds filesystem-related settings.
type FilesystemConfig struct {
	Ignore     []string `toml:"ignore"`
	ShowHidden bool     `toml:"show_hidden"`
}

// OrganizeConfig holds the engine defaults.
type OrganizeConfig struct {
	DateFormat        string `toml:"date_format"`        // YYYY-MM (default), YYYY/MM, YYYY or YYYY-MM-DD
	OverwriteStrategy string `toml:"overwrite_strategy"` // "rename", "skip" or "overwrite"
	PermanentDelete   bool   `toml:"permanent_delete"`
	Workers           int    `toml:"workers"`      // 0 picks a value from the CPU count
	CompareMode       string `toml:"compare_mode"` // "hash" or "quick"
}

// TrashConfig locates the trash directory.
type TrashConfig struct {
	Dir string `toml:"dir"`
}

// WatchConfig holds settings for the watch command.
type WatchConfig struct {
	Debounce Duration `toml:"debounce"`
}

// SnapshotConfig represents configuration for the ledger snapshot store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type SnapshotConfig struct {
	Type    string `toml:"type"` // "none", "memory", "filesystem" or "s3"
	Name    string `toml:"name"`
	Encrypt bool   `toml:"encrypt"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket   string `toml:"s3_bucket,omitempty"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"`
}

// EncryptionConfig holds paths to the age key pair used for snapshot encryption.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default) or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// Duration is a time.Duration written as a string ("2s") in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// NewConfig creates a new Config rooted at baseDir with default settings.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: baseDir,
		},
		Filesystem: FilesystemConfig{
			Ignore: []string{"*.part", "*.crdownload", "desktop.ini", "Thumbs.db"},
		},
		Organize: OrganizeConfig{
			DateFormat:        "YYYY-MM",
			OverwriteStrategy: "rename",
			CompareMode:       "hash",
		},
		Trash: TrashConfig{
			Dir: filepath.Join(baseDir, "trash"),
		},
		Watch: WatchConfig{
			Debounce: Duration{2 * time.Second},
		},
		Snapshot: SnapshotConfig{
			Type: "none",
			Name: "default",
		},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "tidy.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "tidy.key"),
		},
	}
}

// Validate checks the enumerated settings.
func (c *Config) Validate() error {
	switch c.Database.Type {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("unknown database type: %q", c.Database.Type)
	}
	switch c.Organize.OverwriteStrategy {
	case "", "rename", "skip", "overwrite":
	default:
		return fmt.Errorf("unknown overwrite strategy: %q", c.Organize.OverwriteStrategy)
	}
	switch c.Organize.CompareMode {
	case "", "hash", "quick":
	default:
		return fmt.Errorf("unknown compare mode: %q", c.Organize.CompareMode)
	}
	switch c.Snapshot.Type {
	case "", "none", "memory", "filesystem", "s3":
	default:
		return fmt.Errorf("unknown snapshot type: %q", c.Snapshot.Type)
	}
	if c.Organize.Workers < 0 {
		return fmt.Errorf("workers must not be negative: %d", c.Organize.Workers)
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path and validates it.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
