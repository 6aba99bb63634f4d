package model

import "time"

// Category is one of the semantic file-type tags derived from an extension.
type Category string

const (
	CategoryImages     Category = "images"
	CategoryDocuments  Category = "documents"
	CategoryVideos     Category = "videos"
	CategoryMusic      Category = "music"
	CategoryArchives   Category = "archives"
	CategoryInstallers Category = "installers"
	CategoryCode       Category = "code"
	CategoryOthers     Category = "others"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryImages,
	CategoryDocuments,
	CategoryVideos,
	CategoryMusic,
	CategoryArchives,
	CategoryInstallers,
	CategoryCode,
	CategoryOthers,
}

// IsValid reports whether c is a known category.
func (c Category) IsValid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Condition is a single predicate of a Rule. Value is parsed per field at evaluation time.
type Condition struct {
	Field    string `json:"field" toml:"field" yaml:"field"`       // name, extension, size, createdDate, modifiedDate
	Operator string `json:"operator" toml:"operator" yaml:"operator"` // equals, contains, startsWith, endsWith, greaterThan, lessThan, matches
	Value    string `json:"value" toml:"value" yaml:"value"`
}

// Rule is a user-authored condition -> action mapping.
// Lower Priority is evaluated first; ties are broken by ID.
type Rule struct {
	ID                  int64       `json:"id" toml:"id,omitempty" yaml:"id,omitempty"`
	Name                string      `json:"name" toml:"name" yaml:"name"`
	Priority            int         `json:"priority" toml:"priority" yaml:"priority"`
	Enabled             bool        `json:"enabled" toml:"enabled" yaml:"enabled"`
	Conditions          []Condition `json:"conditions" toml:"conditions" yaml:"conditions"`
	ConditionLogic      string      `json:"conditionLogic" toml:"condition_logic" yaml:"conditionLogic"` // AND or OR
	ActionType          string      `json:"actionType" toml:"action_type" yaml:"actionType"`             // move, copy, rename, delete
	ActionDestination   string      `json:"actionDestination,omitempty" toml:"action_destination,omitempty" yaml:"actionDestination,omitempty"`
	ActionRenamePattern string      `json:"actionRenamePattern,omitempty" toml:"action_rename_pattern,omitempty" yaml:"actionRenamePattern,omitempty"`
	CreateDateSubfolder bool        `json:"createDateSubfolder" toml:"create_date_subfolder" yaml:"createDateSubfolder"`
	CreatedAt           time.Time   `json:"createdAt" toml:"-" yaml:"-"`
	UpdatedAt           time.Time   `json:"updatedAt" toml:"-" yaml:"-"`
}

// DefaultRule is the per-category fallback rule. Exactly one exists for each category.
type DefaultRule struct {
	Category            Category `json:"category" toml:"category" yaml:"category"`
	Enabled             bool     `json:"enabled" toml:"enabled" yaml:"enabled"`
	Destination         string   `json:"destination" toml:"destination" yaml:"destination"`
	Priority            int      `json:"priority" toml:"priority" yaml:"priority"`
	CreateDateSubfolder bool     `json:"createDateSubfolder" toml:"create_date_subfolder" yaml:"createDateSubfolder"`
}

// ExtensionMapping overrides or extends the built-in extension table.
type ExtensionMapping struct {
	Extension string   `json:"extension" toml:"extension" yaml:"extension"`
	Category  Category `json:"category" toml:"category" yaml:"category"`
}

// Exclusion is a glob pattern that removes matching files from every scan.
type Exclusion struct {
	ID        int64     `json:"id"`
	Pattern   string    `json:"pattern"`
	CreatedAt time.Time `json:"createdAt"`
}

// HistoryEntry is one executed bulk operation in the undo ledger.
type HistoryEntry struct {
	ID            int64          `json:"id"`
	OperationType string         `json:"operationType"`
	Description   string         `json:"description"`
	FilesAffected int            `json:"filesAffected"`
	IsUndone      bool           `json:"isUndone"`
	CreatedAt     time.Time      `json:"createdAt"`
	Details       HistoryDetails `json:"details"`
}

// HistoryDetails holds the reversal descriptors of a HistoryEntry. Stored as JSON.
type HistoryDetails struct {
	Changes      []FileChange `json:"changes"`
	CreatedDirs  []string     `json:"createdDirs,omitempty"`
	FilesSkipped int          `json:"filesSkipped"`
	Errors       []string     `json:"errors,omitempty"`
}

// FileChange actions.
const (
	ActionMove   = "move"
	ActionCopy   = "copy"
	ActionRename = "rename"
	ActionTrash  = "trash"
	ActionDelete = "delete"
)

// FileChange records one file-level mutation with enough data to reverse it.
type FileChange struct {
	Action      string `json:"action"`
	Source      string `json:"source"`
	Destination string `json:"destination,omitempty"`
	// TrashID identifies the trashed source for ActionTrash.
	TrashID string `json:"trashId,omitempty"`
	// ReplacedTrashID identifies a pre-existing destination that was overwritten.
	ReplacedTrashID string `json:"replacedTrashId,omitempty"`
}
