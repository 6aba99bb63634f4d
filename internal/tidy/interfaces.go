package tidy

import (
	"io"
	"io/fs"
	"time"

	"github.com/google/uuid"

	"tidy-go/internal/model"
)

// Database is the durable store for the rule set and the history ledger.
// Lookups return nil, nil when the record does not exist.
type Database interface {
	ListRules() ([]*model.Rule, error)
	FindRule(id int64) (*model.Rule, error)
	// SaveRule inserts the rule when its ID is zero, otherwise updates it.
	SaveRule(rule *model.Rule) (*model.Rule, error)
	DeleteRule(id int64) error

	ListDefaultRules() ([]*model.DefaultRule, error)
	// UpdateDefaultRule updates the seeded rule for rule.Category. It never inserts.
	UpdateDefaultRule(rule *model.DefaultRule) (*model.DefaultRule, error)

	ListExtensionMappings() ([]*model.ExtensionMapping, error)
	SaveExtensionMapping(mapping *model.ExtensionMapping) error
	DeleteExtensionMapping(extension string) error

	ListExclusions() ([]*model.Exclusion, error)
	CreateExclusion(pattern string) (*model.Exclusion, error)
	DeleteExclusion(id int64) error

	CreateHistoryEntry(entry *model.HistoryEntry) (*model.HistoryEntry, error)
	FindHistoryEntry(id int64) (*model.HistoryEntry, error)
	// ListHistory returns entries newest first.
	ListHistory(limit, offset int) ([]*model.HistoryEntry, error)
	MarkHistoryUndone(id int64) error
	ClearHistory() error

	Close() error
}

// FilesystemManager abstracts file access so the engine can run against
// the real filesystem or an in-memory one in tests.
type FilesystemManager interface {
	// Resolve makes rawPath absolute, stats it and rejects special files.
	Resolve(rawPath string) (*Path, error)

	// Stat returns fresh info for an absolute path without following symlinks.
	Stat(path string) (*Path, error)

	// List calls fn for each immediate child of dir, in name order.
	List(dir string, fn func(*Path) error) error

	// Walk calls fn for every entry below root (root itself excluded).
	// fn may return fs.SkipDir for a directory.
	Walk(root string, fn func(*Path) error) error

	Open(path string) (io.ReadCloser, error)
	MkdirAll(path string) error

	// Move renames src to dst, falling back to copy and remove across devices.
	Move(src, dst string) error

	// Copy writes src to dst atomically and preserves the modification time.
	Copy(src, dst string) (int64, error)

	Remove(path string) error
	Exists(path string) (bool, error)

	// CreatedAt returns the best available creation time for info.
	CreatedAt(path string, info fs.FileInfo) time.Time
}

// Trash holds files removed by the engine so that deletions can be undone.
type Trash interface {
	// Put moves path into the trash and returns the item ID.
	Put(path string) (string, error)

	// Restore moves the trashed item back to dest.
	Restore(id, dest string) error

	// Exists reports whether the item is still in the trash.
	Exists(id string) (bool, error)
}

// Clock abstracts time retrieval so business logic is deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// IDGenerator abstracts unique ID generation so tests are deterministic.
type IDGenerator interface {
	New() string
}

// UUIDGenerator produces random UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.New().String() }

// Logger provides structured logging. The args are slog key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NopLogger discards all output.
type NopLogger struct{}

func NewNopLogger() *NopLogger { return &NopLogger{} }

func (*NopLogger) Debug(string, ...any) {}
func (*NopLogger) Info(string, ...any)  {}
func (*NopLogger) Warn(string, ...any)  {}
func (*NopLogger) Error(string, ...any) {}
