package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"tidy-go/internal/config"
	"tidy-go/internal/database"
	"tidy-go/internal/encryption"
	"tidy-go/internal/fs"
	"tidy-go/internal/model"
	"tidy-go/internal/snapshot"
	"tidy-go/internal/tidy"
	"tidy-go/internal/trash"
	"tidy-go/internal/watch"
)

// ErrSnapshotsDisabled is returned by snapshot commands when no store is configured.
var ErrSnapshotsDisabled = errors.New("snapshots are disabled: set [snapshot] type in the config")

// TidyApp is the application layer between the CLI and tidy.Service.
// It constructs all dependencies from config, marks the invocation as
// mutating when a command changes the ledger, and snapshots the ledger on Close.
type TidyApp struct {
	cfg         *config.Config
	db          *database.SQLiteDatabase
	fsmgr       *fs.Manager
	trash       *trash.Trash
	service     *tidy.Service
	snapshotter *snapshot.Snapshotter
	logger      tidy.Logger
	op          *Operation
	logFile     *os.File
}

// NewTidyApp creates a fully wired TidyApp from the given config.
// command identifies the CLI command being run (e.g. "organize", "undo").
// The caller must call Close when done.
func NewTidyApp(ctx context.Context, cfg *config.Config, command string, args ...string) (*TidyApp, error) {
	applyFallbacks(cfg)

	fsmgr := fs.NewOSManager()
	clock := tidy.RealClock{}
	ids := tidy.UUIDGenerator{}

	tr, err := trash.New(fsmgr.Fs(), fsmgr, cfg.Trash.Dir, ids, clock)
	if err != nil {
		return nil, fmt.Errorf("creating trash: %w", err)
	}

	snapshotter, err := newSnapshotter(ctx, cfg, fsmgr)
	if err != nil {
		return nil, err
	}

	db, err := database.NewDatabaseFromConfig(cfg.Database, clock)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}

	if err := db.CheckMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	// Refuse to write on top of a ledger that another machine moved ahead.
	if snapshotter != nil {
		if err := snapshotter.CheckVersion(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
	}

	op := NewOperation(command, args...)
	logger, logFile, err := newLogger(cfg.LogDir, op.ID, os.Stderr)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	log := &slogAdapter{l: logger}

	svc := tidy.NewService(db, fsmgr, tr, log, clock, ids, serviceOptions(cfg))

	return &TidyApp{
		cfg:         cfg,
		db:          db,
		fsmgr:       fsmgr,
		trash:       tr,
		service:     svc,
		snapshotter: snapshotter,
		logger:      log,
		op:          op,
		logFile:     logFile,
	}, nil
}

func applyFallbacks(cfg *config.Config) {
	if cfg.LogDir == "" {
		cfg.LogDir = filepath.Join(cfg.BaseDir, "log")
	}
	if cfg.Trash.Dir == "" {
		cfg.Trash.Dir = filepath.Join(cfg.BaseDir, "trash")
	}
	if cfg.Database.Type == "" {
		cfg.Database.Type = "sqlite"
	}
	if cfg.Database.Type == "sqlite" && cfg.Database.DataDir == "" {
		cfg.Database.DataDir = cfg.BaseDir
	}
}

func serviceOptions(cfg *config.Config) tidy.Options {
	return tidy.Options{
		DateFormat:        cfg.Organize.DateFormat,
		OverwriteStrategy: tidy.OverwriteStrategy(cfg.Organize.OverwriteStrategy),
		PermanentDelete:   cfg.Organize.PermanentDelete,
		Workers:           cfg.Organize.Workers,
		CompareMode:       cfg.Organize.CompareMode,
		ShowHidden:        cfg.Filesystem.ShowHidden,
		Ignore:            cfg.Filesystem.Ignore,
	}
}

// newSnapshotter returns nil when snapshots are disabled.
func newSnapshotter(ctx context.Context, cfg *config.Config, fsmgr *fs.Manager) (*snapshot.Snapshotter, error) {
	store, err := snapshot.NewStoreFromConfig(ctx, cfg.Snapshot, fsmgr.Fs())
	if err != nil {
		return nil, fmt.Errorf("creating snapshot store: %w", err)
	}
	if store == nil {
		return nil, nil
	}

	var enc snapshot.Encryptor
	if cfg.Snapshot.Encrypt {
		enc, err = encryption.NewEncryptorFromConfig(fsmgr.Fs(), cfg.Encryption)
		if err != nil {
			return nil, fmt.Errorf("creating encryptor: %w", err)
		}
		if !enc.IsConfigured() {
			return nil, fmt.Errorf("snapshot encryption enabled but no keys found: run `tidy snapshot keygen`")
		}
	}
	return snapshot.New(store, enc, fsmgr.Fs(), cfg.Snapshot.Name), nil
}

// Service exposes the engine for read-only commands.
func (a *TidyApp) Service() *tidy.Service { return a.service }

// Trash exposes the trash directory for listing.
func (a *TidyApp) Trash() *trash.Trash { return a.trash }

// Logger returns the invocation logger.
func (a *TidyApp) Logger() tidy.Logger { return a.logger }

// Operation returns the record of this invocation.
func (a *TidyApp) Operation() *Operation { return a.op }

// ExecuteUnified organizes sourcePath with the custom and default rules.
func (a *TidyApp) ExecuteUnified(ctx context.Context, sourcePath string, opts tidy.UnifiedOptions) (*tidy.ExecuteResult, error) {
	a.op.MarkMutating()
	res, err := a.service.ExecuteUnified(ctx, sourcePath, opts)
	a.op.Record(err)
	return res, err
}

// ExecuteOrganization sorts sourcePath into category folders.
func (a *TidyApp) ExecuteOrganization(ctx context.Context, sourcePath string, opts tidy.OrganizeOptions) (*tidy.ExecuteResult, error) {
	a.op.MarkMutating()
	res, err := a.service.ExecuteOrganization(ctx, sourcePath, opts)
	a.op.Record(err)
	return res, err
}

// MergeFolders merges sourcePath into targetPath.
func (a *TidyApp) MergeFolders(ctx context.Context, sourcePath, targetPath string, opts tidy.MergeOptions) (*tidy.MergeResult, error) {
	a.op.MarkMutating()
	res, err := a.service.MergeFolders(ctx, sourcePath, targetPath, opts)
	a.op.Record(err)
	return res, err
}

// ExecuteRename applies rename rules to paths.
func (a *TidyApp) ExecuteRename(ctx context.Context, paths []string, rules []tidy.RenameRule) (*tidy.RenameResult, error) {
	a.op.MarkMutating()
	res, err := a.service.ExecuteRename(ctx, paths, rules)
	a.op.Record(err)
	return res, err
}

// UndoOperation reverses history entry id.
func (a *TidyApp) UndoOperation(id int64) (*tidy.UndoResult, error) {
	a.op.MarkMutating()
	res, err := a.service.UndoOperation(id)
	a.op.Record(err)
	return res, err
}

// ClearHistory deletes every history entry.
func (a *TidyApp) ClearHistory() error {
	a.op.MarkMutating()
	return a.op.Record(a.service.ClearHistory())
}

func (a *TidyApp) SaveRule(rule *model.Rule) (*model.Rule, error) {
	a.op.MarkMutating()
	res, err := a.service.SaveRule(rule)
	a.op.Record(err)
	return res, err
}

func (a *TidyApp) SetRuleEnabled(id int64, enabled bool) (*model.Rule, error) {
	a.op.MarkMutating()
	res, err := a.service.SetRuleEnabled(id, enabled)
	a.op.Record(err)
	return res, err
}

func (a *TidyApp) DeleteRule(id int64) error {
	a.op.MarkMutating()
	return a.op.Record(a.service.DeleteRule(id))
}

// ImportRules loads a bundle, optionally replacing the stored rules.
func (a *TidyApp) ImportRules(bundle *tidy.RuleBundle, replace bool) (int, error) {
	a.op.MarkMutating()
	n, err := a.service.ImportRules(bundle, replace)
	a.op.Record(err)
	return n, err
}

func (a *TidyApp) SaveDefaultRule(rule *model.DefaultRule) (*model.DefaultRule, error) {
	a.op.MarkMutating()
	res, err := a.service.SaveDefaultRule(rule)
	a.op.Record(err)
	return res, err
}

func (a *TidyApp) SaveExtensionMapping(extension string, category model.Category) (*model.ExtensionMapping, error) {
	a.op.MarkMutating()
	res, err := a.service.SaveExtensionMapping(extension, category)
	a.op.Record(err)
	return res, err
}

func (a *TidyApp) DeleteExtensionMapping(extension string) error {
	a.op.MarkMutating()
	return a.op.Record(a.service.DeleteExtensionMapping(extension))
}

func (a *TidyApp) AddExclusion(pattern string) (*model.Exclusion, error) {
	a.op.MarkMutating()
	res, err := a.service.AddExclusion(pattern)
	a.op.Record(err)
	return res, err
}

func (a *TidyApp) DeleteExclusion(id int64) error {
	a.op.MarkMutating()
	return a.op.Record(a.service.DeleteExclusion(id))
}

// NewWatcher returns a watcher that organizes dir through the app so every
// pass is snapshotted on Close.
func (a *TidyApp) NewWatcher(dir string, opts tidy.UnifiedOptions) (*watch.Watcher, error) {
	p, err := a.fsmgr.Resolve(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	if !p.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", p)
	}
	return watch.New(p.String(), a, opts, a.cfg.Watch.Debounce.Duration, a.logger), nil
}

// SnapshotStatus reports the local ledger version and the version held by the store.
func (a *TidyApp) SnapshotStatus(ctx context.Context) (local, remote int64, err error) {
	if a.snapshotter == nil {
		return 0, 0, ErrSnapshotsDisabled
	}
	if local, err = a.db.LedgerVersion(); err != nil {
		return 0, 0, fmt.Errorf("reading ledger version: %w", err)
	}
	if remote, err = a.snapshotter.RemoteVersion(ctx); err != nil {
		return 0, 0, fmt.Errorf("reading snapshot version: %w", err)
	}
	return local, remote, nil
}

// PushSnapshot uploads the ledger now and returns the stored version.
func (a *TidyApp) PushSnapshot(ctx context.Context) (int64, error) {
	if a.snapshotter == nil {
		return 0, ErrSnapshotsDisabled
	}
	return a.snapshotter.Push(ctx, a.db)
}

// Close finalizes the operation and closes all resources.
// Mutating invocations push a ledger snapshot before the database is closed.
func (a *TidyApp) Close(ctx context.Context) error {
	var firstErr error

	if a.op.Mutating && a.snapshotter != nil {
		version, err := a.snapshotter.Push(ctx, a.db)
		if err != nil {
			firstErr = fmt.Errorf("pushing ledger snapshot: %w", err)
			a.logger.Error("snapshot push failed", "command", a.op.Command, "error", err)
		} else {
			a.logger.Info("snapshot pushed", "command", a.op.Command, "version", version)
		}
	}
	if a.op.Mutating {
		a.logger.Info("operation finished", "command", a.op.Command, "status", a.op.Status)
	}

	if err := a.db.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}

// SetupKeys generates the age key pair used for snapshot encryption.
func SetupKeys(cfg *config.Config, passphrase string) error {
	applyFallbacks(cfg)
	enc, err := encryption.NewEncryptorFromConfig(fs.NewOSManager().Fs(), cfg.Encryption)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	if err := enc.Setup(passphrase); err != nil {
		return fmt.Errorf("generating keys: %w", err)
	}
	return nil
}

// RestoreSnapshot replaces the local database with the stored snapshot.
// passphrase is only called when snapshots are encrypted.
func RestoreSnapshot(ctx context.Context, cfg *config.Config, passphrase func() (string, error)) (int64, error) {
	applyFallbacks(cfg)
	if cfg.Database.Type != "sqlite" {
		return 0, fmt.Errorf("snapshot restore needs a sqlite database, have %q", cfg.Database.Type)
	}

	fsmgr := fs.NewOSManager()
	snapshotter, err := newSnapshotter(ctx, cfg, fsmgr)
	if err != nil {
		return 0, err
	}
	if snapshotter == nil {
		return 0, ErrSnapshotsDisabled
	}

	var dec snapshot.DecryptionContext
	if cfg.Snapshot.Encrypt {
		enc, err := encryption.NewEncryptorFromConfig(fsmgr.Fs(), cfg.Encryption)
		if err != nil {
			return 0, fmt.Errorf("creating encryptor: %w", err)
		}
		pass, err := passphrase()
		if err != nil {
			return 0, fmt.Errorf("reading passphrase: %w", err)
		}
		if dec, err = enc.Unlock(pass); err != nil {
			return 0, fmt.Errorf("unlocking private key: %w", err)
		}
	}

	dest := filepath.Join(cfg.Database.DataDir, database.DBFileName)
	return snapshotter.Restore(ctx, dest, dec)
}

var _ watch.Organizer = (*TidyApp)(nil)
