package tidy

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"tidy-go/internal/model"
)

// Rename rule types.
const (
	RenameFindReplace = "findReplace"
	RenamePrefix      = "prefix"
	RenameSuffix      = "suffix"
	RenameSequence    = "sequence"
	RenameDate        = "date"
	RenameCase        = "case"
	RenameRegex       = "regex"
)

// RenameRule is one step of a batch rename. Steps apply to the stem in
// order; the extension is kept.
type RenameRule struct {
	Type        string `json:"type" yaml:"type"`
	Find        string `json:"find,omitempty" yaml:"find,omitempty"`
	Replace     string `json:"replace,omitempty" yaml:"replace,omitempty"`
	Prefix      string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Suffix      string `json:"suffix,omitempty" yaml:"suffix,omitempty"`
	StartNumber int    `json:"startNumber,omitempty" yaml:"startNumber,omitempty"`
	DigitCount  int    `json:"digitCount,omitempty" yaml:"digitCount,omitempty"`
	DateFormat  string `json:"dateFormat,omitempty" yaml:"dateFormat,omitempty"` // YYYY MM DD HH mm ss tokens
	DateSource  string `json:"dateSource,omitempty" yaml:"dateSource,omitempty"` // created or modified
	Case        string `json:"case,omitempty" yaml:"case,omitempty"`             // upper, lower, title
	Pattern     string `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Replacement string `json:"replacement,omitempty" yaml:"replacement,omitempty"`

	re *regexp.Regexp
}

// RenamePreview is the planned new name of one file.
type RenamePreview struct {
	OriginalPath    string `json:"originalPath" yaml:"originalPath"`
	OriginalName    string `json:"originalName" yaml:"originalName"`
	NewName         string `json:"newName" yaml:"newName"`
	NewPath         string `json:"newPath" yaml:"newPath"`
	HasConflict     bool   `json:"hasConflict" yaml:"hasConflict"`
	ConflictMessage string `json:"conflictMessage,omitempty" yaml:"conflictMessage,omitempty"`
}

// RenameResult is the outcome of a batch rename.
type RenameResult struct {
	Success      bool        `json:"success" yaml:"success"`
	RenamedCount int         `json:"renamedCount" yaml:"renamedCount"`
	FailedCount  int         `json:"failedCount" yaml:"failedCount"`
	Errors       []FileError `json:"errors" yaml:"errors"`
	HistoryID    int64       `json:"historyId" yaml:"historyId"`
	Status       string      `json:"status" yaml:"status"`
}

var dateTokens = strings.NewReplacer("YYYY", "2006", "MM", "01", "DD", "02", "HH", "15", "mm", "04", "ss", "05")

func prepareRenameRules(rules []RenameRule) ([]RenameRule, error) {
	out := make([]RenameRule, len(rules))
	for i, r := range rules {
		switch r.Type {
		case RenameFindReplace, RenamePrefix, RenameSuffix:
		case RenameSequence:
			if r.DigitCount <= 0 {
				r.DigitCount = 3
			}
			if r.StartNumber == 0 {
				r.StartNumber = 1
			}
		case RenameDate:
			if r.DateFormat == "" {
				r.DateFormat = "YYYYMMDD"
			}
			if r.DateSource == "" {
				r.DateSource = "modified"
			}
		case RenameCase:
			switch r.Case {
			case "upper", "lower", "title":
			case "":
				r.Case = "lower"
			default:
				return nil, fmt.Errorf("rename step %d: unknown case %q", i+1, r.Case)
			}
		case RenameRegex:
			re, err := regexp.Compile(r.Pattern)
			if err != nil {
				return nil, fmt.Errorf("rename step %d: %w", i+1, err)
			}
			r.re = re
		default:
			return nil, fmt.Errorf("rename step %d: unknown type %q", i+1, r.Type)
		}
		out[i] = r
	}
	return out, nil
}

// applyRenameRules renders the new name for rec. seq is the zero-based
// position of rec in the batch.
func applyRenameRules(rules []RenameRule, rec *FileRecord, seq int) string {
	stem, ext := splitName(rec.Name)
	for _, r := range rules {
		switch r.Type {
		case RenameFindReplace:
			if r.Find != "" {
				stem = strings.ReplaceAll(stem, r.Find, r.Replace)
			}
		case RenamePrefix:
			stem = r.Prefix + stem
		case RenameSuffix:
			stem = stem + r.Suffix
		case RenameSequence:
			stem = fmt.Sprintf("%s_%0*d", stem, r.DigitCount, r.StartNumber+seq)
		case RenameDate:
			t := rec.ModifiedAt
			if r.DateSource == "created" {
				t = rec.CreatedAt
			}
			stem = stem + "_" + t.Format(dateTokens.Replace(r.DateFormat))
		case RenameCase:
			stem = changeCase(stem, r.Case)
		case RenameRegex:
			stem = r.re.ReplaceAllString(stem, r.Replacement)
		}
	}
	return strings.NewReplacer("/", "_", "\\", "_").Replace(stem) + ext
}

func changeCase(s, mode string) string {
	switch mode {
	case "upper":
		return strings.ToUpper(s)
	case "title":
		var b strings.Builder
		b.Grow(len(s))
		wordStart := true
		for _, c := range s {
			switch {
			case unicode.IsSpace(c):
				wordStart = true
			case wordStart:
				c = unicode.ToUpper(c)
				wordStart = false
			default:
				c = unicode.ToLower(c)
			}
			b.WriteRune(c)
		}
		return b.String()
	default:
		return strings.ToLower(s)
	}
}

// PreviewRename computes new names for paths. Names that collide with
// another file of the batch or with an existing file are flagged.
func (s *Service) PreviewRename(paths []string, rules []RenameRule) ([]RenamePreview, error) {
	prepared, err := prepareRenameRules(rules)
	if err != nil {
		return nil, err
	}

	previews := make([]RenamePreview, 0, len(paths))
	taken := make(map[string]bool, len(paths))
	for i, raw := range paths {
		p, err := s.fsmgr.Resolve(raw)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", raw, err)
		}
		if p.IsDir() {
			return nil, fmt.Errorf("not a file: %s", p.String())
		}
		rec := s.newFileRecord(p, nil)
		name := applyRenameRules(prepared, &rec, i)
		preview := RenamePreview{
			OriginalPath: rec.Path,
			OriginalName: rec.Name,
			NewName:      name,
			NewPath:      filepath.Join(filepath.Dir(rec.Path), name),
		}

		switch {
		case name == "" || name == "." || name == "..":
			preview.HasConflict = true
			preview.ConflictMessage = "empty name"
		case taken[preview.NewPath]:
			preview.HasConflict = true
			preview.ConflictMessage = "duplicate name in batch"
		case preview.NewPath != rec.Path:
			exists, err := s.fsmgr.Exists(preview.NewPath)
			if err != nil {
				return nil, err
			}
			if exists {
				preview.HasConflict = true
				preview.ConflictMessage = "file already exists"
			}
		}
		taken[preview.NewPath] = true
		previews = append(previews, preview)
	}
	return previews, nil
}

// ExecuteRename renames paths in order, skipping conflicts, and records one
// rename history entry.
func (s *Service) ExecuteRename(ctx context.Context, paths []string, rules []RenameRule) (*RenameResult, error) {
	previews, err := s.PreviewRename(paths, rules)
	if err != nil {
		return nil, err
	}

	result := &RenameResult{Errors: []FileError{}, Status: StatusCompleted}
	var details model.HistoryDetails
	for _, p := range previews {
		if ctx.Err() != nil {
			result.Status = StatusCancelled
			break
		}
		if p.NewPath == p.OriginalPath {
			continue
		}
		if p.HasConflict {
			result.FailedCount++
			result.Errors = append(result.Errors, newFileError(p.OriginalPath, &conflictError{target: p.NewPath}))
			continue
		}
		if err := s.fsmgr.Move(p.OriginalPath, p.NewPath); err != nil {
			result.FailedCount++
			result.Errors = append(result.Errors, newFileError(p.OriginalPath, err))
			continue
		}
		result.RenamedCount++
		details.Changes = append(details.Changes, model.FileChange{
			Action:      model.ActionRename,
			Source:      p.OriginalPath,
			Destination: p.NewPath,
		})
	}
	for _, e := range result.Errors {
		details.Errors = append(details.Errors, e.Error())
	}
	details.FilesSkipped = result.FailedCount
	result.Success = result.FailedCount == 0 && result.Status == StatusCompleted

	s.logger.Info("rename finished", "renamed", result.RenamedCount, "failed", result.FailedCount)
	if len(details.Changes) == 0 {
		return result, nil
	}
	id, err := s.record(OpRename, fmt.Sprintf("Renamed %d files", len(details.Changes)), details)
	if err != nil {
		return result, err
	}
	result.HistoryID = id
	return result, nil
}
