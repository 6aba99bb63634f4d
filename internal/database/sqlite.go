package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"tidy-go/internal/database/migrations"
	"tidy-go/internal/model"
	"tidy-go/internal/tidy"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase implements the Database interface using SQLite.
type SQLiteDatabase struct {
	db    *sql.DB
	path  string
	clock tidy.Clock
}

// NewSQLiteDatabase opens the database at path and applies pending migrations.
// path can be a file path or ":memory:" for an in-memory database.
func NewSQLiteDatabase(path string, clock tidy.Clock) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return NewSQLiteDatabaseFromDB(db, path, clock), nil
}

// NewSQLiteDatabaseFromDB wraps an existing, migrated connection.
func NewSQLiteDatabaseFromDB(db *sql.DB, path string, clock tidy.Clock) *SQLiteDatabase {
	if clock == nil {
		clock = tidy.RealClock{}
	}
	return &SQLiteDatabase{db: db, path: path, clock: clock}
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// In-memory databases are pinned to a single connection since every
// connection would otherwise see its own empty database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	return db, nil
}

// Rules

const ruleColumns = `id, name, priority, enabled, conditions, condition_logic, action_type,
	action_destination, action_rename_pattern, create_date_subfolder, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRule(row scanner) (*model.Rule, error) {
	var r model.Rule
	var conditions string
	err := row.Scan(&r.ID, &r.Name, &r.Priority, &r.Enabled, &conditions, &r.ConditionLogic,
		&r.ActionType, &r.ActionDestination, &r.ActionRenamePattern, &r.CreateDateSubfolder,
		&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(conditions), &r.Conditions); err != nil {
		return nil, fmt.Errorf("decoding conditions of rule %d: %w", r.ID, err)
	}
	return &r, nil
}

func (s *SQLiteDatabase) ListRules() ([]*model.Rule, error) {
	rows, err := s.db.Query("SELECT " + ruleColumns + " FROM rules ORDER BY priority, id")
	if err != nil {
		return nil, fmt.Errorf("listing rules: %w", err)
	}
	defer rows.Close()

	var rules []*model.Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning rule: %w", err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

func (s *SQLiteDatabase) FindRule(id int64) (*model.Rule, error) {
	r, err := scanRule(s.db.QueryRow("SELECT "+ruleColumns+" FROM rules WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding rule: %w", err)
	}
	return r, nil
}

func (s *SQLiteDatabase) SaveRule(rule *model.Rule) (*model.Rule, error) {
	conditions, err := json.Marshal(rule.Conditions)
	if err != nil {
		return nil, fmt.Errorf("encoding conditions: %w", err)
	}
	now := s.clock.Now()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	if rule.UpdatedAt.IsZero() {
		rule.UpdatedAt = now
	}

	if rule.ID == 0 {
		res, err := s.db.Exec(`INSERT INTO rules (name, priority, enabled, conditions, condition_logic,
			action_type, action_destination, action_rename_pattern, create_date_subfolder, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rule.Name, rule.Priority, rule.Enabled, string(conditions), rule.ConditionLogic,
			rule.ActionType, rule.ActionDestination, rule.ActionRenamePattern, rule.CreateDateSubfolder,
			rule.CreatedAt, rule.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("inserting rule: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("reading rule id: %w", err)
		}
		rule.ID = id
		return rule, nil
	}

	res, err := s.db.Exec(`UPDATE rules SET name = ?, priority = ?, enabled = ?, conditions = ?,
		condition_logic = ?, action_type = ?, action_destination = ?, action_rename_pattern = ?,
		create_date_subfolder = ?, updated_at = ? WHERE id = ?`,
		rule.Name, rule.Priority, rule.Enabled, string(conditions), rule.ConditionLogic,
		rule.ActionType, rule.ActionDestination, rule.ActionRenamePattern, rule.CreateDateSubfolder,
		rule.UpdatedAt, rule.ID)
	if err != nil {
		return nil, fmt.Errorf("updating rule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("updating rule %d: %w", rule.ID, tidy.ErrRuleNotFound)
	}
	return rule, nil
}

func (s *SQLiteDatabase) DeleteRule(id int64) error {
	if _, err := s.db.Exec("DELETE FROM rules WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting rule: %w", err)
	}
	return nil
}

// Default rules

func (s *SQLiteDatabase) ListDefaultRules() ([]*model.DefaultRule, error) {
	rows, err := s.db.Query(`SELECT category, enabled, destination, priority, create_date_subfolder
		FROM default_rules ORDER BY priority, category`)
	if err != nil {
		return nil, fmt.Errorf("listing default rules: %w", err)
	}
	defer rows.Close()

	var rules []*model.DefaultRule
	for rows.Next() {
		var r model.DefaultRule
		if err := rows.Scan(&r.Category, &r.Enabled, &r.Destination, &r.Priority, &r.CreateDateSubfolder); err != nil {
			return nil, fmt.Errorf("scanning default rule: %w", err)
		}
		rules = append(rules, &r)
	}
	return rules, rows.Err()
}

func (s *SQLiteDatabase) UpdateDefaultRule(rule *model.DefaultRule) (*model.DefaultRule, error) {
	res, err := s.db.Exec(`UPDATE default_rules SET enabled = ?, destination = ?, priority = ?,
		create_date_subfolder = ? WHERE category = ?`,
		rule.Enabled, rule.Destination, rule.Priority, rule.CreateDateSubfolder, rule.Category)
	if err != nil {
		return nil, fmt.Errorf("updating default rule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("default rule %q: %w", rule.Category, tidy.ErrUnknownCategory)
	}
	return rule, nil
}

// Extension mappings

func (s *SQLiteDatabase) ListExtensionMappings() ([]*model.ExtensionMapping, error) {
	rows, err := s.db.Query("SELECT extension, category FROM extension_mappings ORDER BY extension")
	if err != nil {
		return nil, fmt.Errorf("listing extension mappings: %w", err)
	}
	defer rows.Close()

	var mappings []*model.ExtensionMapping
	for rows.Next() {
		var m model.ExtensionMapping
		if err := rows.Scan(&m.Extension, &m.Category); err != nil {
			return nil, fmt.Errorf("scanning extension mapping: %w", err)
		}
		mappings = append(mappings, &m)
	}
	return mappings, rows.Err()
}

func (s *SQLiteDatabase) SaveExtensionMapping(mapping *model.ExtensionMapping) error {
	_, err := s.db.Exec(`INSERT INTO extension_mappings (extension, category) VALUES (?, ?)
		ON CONFLICT(extension) DO UPDATE SET category = excluded.category`,
		mapping.Extension, mapping.Category)
	if err != nil {
		return fmt.Errorf("saving extension mapping: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) DeleteExtensionMapping(extension string) error {
	if _, err := s.db.Exec("DELETE FROM extension_mappings WHERE extension = ?", extension); err != nil {
		return fmt.Errorf("deleting extension mapping: %w", err)
	}
	return nil
}

// Exclusions

func (s *SQLiteDatabase) ListExclusions() ([]*model.Exclusion, error) {
	rows, err := s.db.Query("SELECT id, pattern, created_at FROM exclusions ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("listing exclusions: %w", err)
	}
	defer rows.Close()

	var exclusions []*model.Exclusion
	for rows.Next() {
		var e model.Exclusion
		if err := rows.Scan(&e.ID, &e.Pattern, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning exclusion: %w", err)
		}
		exclusions = append(exclusions, &e)
	}
	return exclusions, rows.Err()
}

func (s *SQLiteDatabase) CreateExclusion(pattern string) (*model.Exclusion, error) {
	e := &model.Exclusion{Pattern: pattern, CreatedAt: s.clock.Now()}
	res, err := s.db.Exec("INSERT INTO exclusions (pattern, created_at) VALUES (?, ?)", e.Pattern, e.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting exclusion: %w", err)
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("reading exclusion id: %w", err)
	}
	return e, nil
}

func (s *SQLiteDatabase) DeleteExclusion(id int64) error {
	if _, err := s.db.Exec("DELETE FROM exclusions WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting exclusion: %w", err)
	}
	return nil
}

// History

const historyColumns = "id, operation_type, description, files_affected, is_undone, details, created_at"

func scanHistory(row scanner) (*model.HistoryEntry, error) {
	var e model.HistoryEntry
	var details string
	if err := row.Scan(&e.ID, &e.OperationType, &e.Description, &e.FilesAffected, &e.IsUndone, &details, &e.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(details), &e.Details); err != nil {
		return nil, fmt.Errorf("decoding details of history entry %d: %w", e.ID, err)
	}
	return &e, nil
}

func (s *SQLiteDatabase) CreateHistoryEntry(entry *model.HistoryEntry) (*model.HistoryEntry, error) {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return nil, fmt.Errorf("encoding history details: %w", err)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.clock.Now()
	}
	res, err := s.db.Exec(`INSERT INTO history (operation_type, description, files_affected, is_undone, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.OperationType, entry.Description, entry.FilesAffected, entry.IsUndone, string(details), entry.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting history entry: %w", err)
	}
	if entry.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("reading history id: %w", err)
	}
	return entry, nil
}

func (s *SQLiteDatabase) FindHistoryEntry(id int64) (*model.HistoryEntry, error) {
	e, err := scanHistory(s.db.QueryRow("SELECT "+historyColumns+" FROM history WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding history entry: %w", err)
	}
	return e, nil
}

func (s *SQLiteDatabase) ListHistory(limit, offset int) ([]*model.HistoryEntry, error) {
	rows, err := s.db.Query("SELECT "+historyColumns+" FROM history ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	defer rows.Close()

	var entries []*model.HistoryEntry
	for rows.Next() {
		e, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning history entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteDatabase) MarkHistoryUndone(id int64) error {
	if _, err := s.db.Exec("UPDATE history SET is_undone = 1 WHERE id = ?", id); err != nil {
		return fmt.Errorf("marking history entry undone: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) ClearHistory() error {
	if _, err := s.db.Exec("DELETE FROM history"); err != nil {
		return fmt.Errorf("clearing history: %w", err)
	}
	return nil
}

// LedgerVersion returns a counter that grows with every change to the
// ledger: the history autoincrement sequence plus the rule sequences.
// Snapshots are versioned by it.
func (s *SQLiteDatabase) LedgerVersion() (int64, error) {
	var version sql.NullInt64
	err := s.db.QueryRow("SELECT SUM(seq) FROM sqlite_sequence").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("reading ledger version: %w", err)
	}
	return version.Int64, nil
}

// CheckMigrations verifies the schema is current.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// BackupTo writes a consistent copy of the database to destPath.
func (s *SQLiteDatabase) BackupTo(destPath string) error {
	_, err := s.db.Exec("VACUUM INTO ?", destPath)
	if err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Path returns the database file path, or ":memory:".
func (s *SQLiteDatabase) Path() string { return s.path }

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Compile-time check that SQLiteDatabase implements tidy.Database interface
var _ tidy.Database = (*SQLiteDatabase)(nil)

