package tidy

import (
	"fmt"
	"path/filepath"

	"tidy-go/internal/model"
)

const defaultHistoryLimit = 50

// UndoResult is the outcome of reversing one history entry.
type UndoResult struct {
	Success       bool        `json:"success" yaml:"success"`
	HistoryID     int64       `json:"historyId" yaml:"historyId"`
	FilesRestored int         `json:"filesRestored" yaml:"filesRestored"`
	FilesSkipped  int         `json:"filesSkipped" yaml:"filesSkipped"`
	Errors        []FileError `json:"errors" yaml:"errors"`
}

// GetHistory returns ledger entries newest first.
func (s *Service) GetHistory(limit, offset int) ([]*model.HistoryEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}
	entries, err := s.database.ListHistory(limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	return entries, nil
}

// ClearHistory deletes every ledger entry. Trashed files stay in the trash.
func (s *Service) ClearHistory() error {
	if err := s.database.ClearHistory(); err != nil {
		return fmt.Errorf("clearing history: %w", err)
	}
	s.logger.Info("history cleared")
	return nil
}

// UndoOperation reverses the changes of entry id, last change first.
// Changes that are already reversed on disk are skipped so a partially
// failed undo can be run again. The entry is flagged undone only when
// every change has been reversed.
func (s *Service) UndoOperation(id int64) (*UndoResult, error) {
	entry, err := s.database.FindHistoryEntry(id)
	if err != nil {
		return nil, fmt.Errorf("loading history entry %d: %w", id, err)
	}
	if entry == nil {
		return nil, fmt.Errorf("history entry %d: %w", id, ErrHistoryNotFound)
	}
	if entry.IsUndone {
		return nil, fmt.Errorf("history entry %d: %w", id, ErrAlreadyUndone)
	}
	for _, c := range entry.Details.Changes {
		if c.Action == model.ActionDelete {
			return nil, fmt.Errorf("history entry %d deleted %s permanently: %w", id, c.Source, ErrNotUndoable)
		}
	}

	result := &UndoResult{HistoryID: id, Errors: []FileError{}}
	changes := entry.Details.Changes
	for i := len(changes) - 1; i >= 0; i-- {
		done, err := s.reverse(changes[i])
		switch {
		case err != nil:
			result.Errors = append(result.Errors, newFileError(changes[i].Source, err))
		case done:
			result.FilesRestored++
		default:
			result.FilesSkipped++
		}
	}

	dirs := entry.Details.CreatedDirs
	for i := len(dirs) - 1; i >= 0; i-- {
		if err := s.fsmgr.Remove(dirs[i]); err != nil {
			s.logger.Debug("keeping directory", "path", dirs[i], "error", err)
		}
	}

	result.Success = len(result.Errors) == 0
	if result.Success {
		if err := s.database.MarkHistoryUndone(id); err != nil {
			return result, fmt.Errorf("marking history entry %d undone: %w", id, err)
		}
	}
	s.logger.Info("undo finished", "id", id, "restored", result.FilesRestored,
		"skipped", result.FilesSkipped, "errors", len(result.Errors))
	return result, nil
}

// reverse undoes one change. It reports false when the change was already
// reversed.
func (s *Service) reverse(c model.FileChange) (bool, error) {
	switch c.Action {
	case model.ActionMove, model.ActionRename:
		moved, err := s.moveBack(c.Destination, c.Source)
		if err != nil {
			return false, err
		}
		restored, err := s.restoreReplaced(c)
		return moved || restored, err

	case model.ActionCopy:
		if c.ReplacedTrashID != "" {
			return s.restoreReplaced(c)
		}
		exists, err := s.fsmgr.Exists(c.Destination)
		if err != nil || !exists {
			return false, err
		}
		if err := s.fsmgr.Remove(c.Destination); err != nil {
			return false, fmt.Errorf("removing copy %s: %w", c.Destination, err)
		}
		return true, nil

	case model.ActionTrash:
		inTrash, err := s.trash.Exists(c.TrashID)
		if err != nil {
			return false, err
		}
		if !inTrash {
			exists, err := s.fsmgr.Exists(c.Source)
			if err != nil {
				return false, err
			}
			if !exists {
				return false, fmt.Errorf("trash item %s is gone: %w", c.TrashID, errNotExist(c.Source))
			}
			return false, nil
		}
		if err := s.fsmgr.MkdirAll(filepath.Dir(c.Source)); err != nil {
			return false, err
		}
		if err := s.trash.Restore(c.TrashID, c.Source); err != nil {
			return false, fmt.Errorf("restoring %s from trash: %w", c.Source, err)
		}
		return true, nil
	}
	return false, fmt.Errorf("action %q: %w", c.Action, ErrNotUndoable)
}

// moveBack moves from to to unless to is already back in place.
func (s *Service) moveBack(from, to string) (bool, error) {
	back, err := s.fsmgr.Exists(to)
	if err != nil {
		return false, err
	}
	present, err := s.fsmgr.Exists(from)
	if err != nil {
		return false, err
	}
	switch {
	case back && !present:
		return false, nil
	case back && present:
		return false, &conflictError{target: to}
	case !present:
		return false, errNotExist(from)
	}
	if err := s.fsmgr.MkdirAll(filepath.Dir(to)); err != nil {
		return false, err
	}
	if err := s.fsmgr.Move(from, to); err != nil {
		return false, fmt.Errorf("moving %s back to %s: %w", from, to, err)
	}
	return true, nil
}

// restoreReplaced puts a file that was overwritten by c back at c.Destination.
// For copies the copy is removed first.
func (s *Service) restoreReplaced(c model.FileChange) (bool, error) {
	if c.ReplacedTrashID == "" {
		return false, nil
	}
	inTrash, err := s.trash.Exists(c.ReplacedTrashID)
	if err != nil || !inTrash {
		return false, err
	}
	exists, err := s.fsmgr.Exists(c.Destination)
	if err != nil {
		return false, err
	}
	if exists {
		if c.Action != model.ActionCopy {
			return false, &conflictError{target: c.Destination}
		}
		if err := s.fsmgr.Remove(c.Destination); err != nil {
			return false, fmt.Errorf("removing copy %s: %w", c.Destination, err)
		}
	}
	if err := s.trash.Restore(c.ReplacedTrashID, c.Destination); err != nil {
		return false, fmt.Errorf("restoring replaced %s: %w", c.Destination, err)
	}
	return true, nil
}
