package tidy

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"tidy-go/internal/model"
)

// MergeStrategy decides what happens to a source file whose relative path
// already exists in the target.
type MergeStrategy string

const (
	MergeSkipExisting   MergeStrategy = "skip_existing"
	MergeOverwriteAll   MergeStrategy = "overwrite_all"
	MergeOverwriteNewer MergeStrategy = "overwrite_newer"
	MergeOverwriteOlder MergeStrategy = "overwrite_older"
	MergeRename         MergeStrategy = "rename"
)

// IsValid reports whether m is a known strategy.
func (m MergeStrategy) IsValid() bool {
	switch m {
	case MergeSkipExisting, MergeOverwriteAll, MergeOverwriteNewer, MergeOverwriteOlder, MergeRename:
		return true
	}
	return false
}

// MergeOptions select which compare results are copied and how.
type MergeOptions struct {
	Strategy            MergeStrategy `json:"strategy"`
	IncludeOnlyInSource bool          `json:"includeOnlyInSource"`
	IncludeDifferent    bool          `json:"includeDifferent"`
	// DeleteSourceAfter removes each source file that was copied or overwritten.
	DeleteSourceAfter bool `json:"deleteSourceAfter"`
}

// MergeResult is the outcome of a merge.
type MergeResult struct {
	Success                   bool        `json:"success" yaml:"success"`
	FilesCopied               int         `json:"filesCopied" yaml:"filesCopied"`
	FilesOverwritten          int         `json:"filesOverwritten" yaml:"filesOverwritten"`
	FilesSkipped              int         `json:"filesSkipped" yaml:"filesSkipped"`
	BytesTransferred          int64       `json:"bytesTransferred" yaml:"bytesTransferred"`
	BytesTransferredFormatted string      `json:"bytesTransferredFormatted" yaml:"bytesTransferredFormatted"`
	Errors                    []FileError `json:"errors" yaml:"errors"`
	HistoryID                 int64       `json:"historyId" yaml:"historyId"`
	Status                    string      `json:"status" yaml:"status"`
}

type mergeOutcome struct {
	outcome
	overwritten bool
}

// MergeFolders copies the selected differences of sourcePath into targetPath.
// The target is created when missing. Running it twice with skip_existing
// copies nothing the second time.
func (s *Service) MergeFolders(ctx context.Context, sourcePath, targetPath string, opts MergeOptions) (*MergeResult, error) {
	if opts.Strategy == "" {
		opts.Strategy = MergeSkipExisting
	}
	if !opts.Strategy.IsValid() {
		return nil, fmt.Errorf("unknown merge strategy %q", opts.Strategy)
	}
	src, err := s.resolveDir(sourcePath)
	if err != nil {
		return nil, err
	}

	r := s.newRun(OverwriteRename, false)
	target, err := filepath.Abs(targetPath)
	if err != nil {
		return nil, fmt.Errorf("resolving target: %w", err)
	}
	if err := r.ensureDir(target); err != nil {
		return nil, fmt.Errorf("creating target %s: %w", target, err)
	}

	summary, err := s.CompareFolders(ctx, src.String(), target)
	if err != nil {
		return nil, err
	}

	result := &MergeResult{Errors: []FileError{}, Status: summary.Status}
	var work []CompareResult
	for _, c := range summary.Results {
		selected := (c.Status == OnlyInSource && opts.IncludeOnlyInSource) ||
			(c.Status == Different && opts.IncludeDifferent)
		if !selected {
			result.FilesSkipped++
			continue
		}
		work = append(work, c)
		// Taken up front so a renamed copy cannot land on a path another
		// worker is about to write.
		r.reserve(filepath.Join(target, c.RelativePath))
	}

	outcomes := make([]mergeOutcome, len(work))
	if forEach(ctx, s.opts.Workers, work, func(i int, c CompareResult) {
		outcomes[i] = s.mergeOne(r, target, c, opts)
	}) {
		result.Status = StatusCancelled
	}

	var details model.HistoryDetails
	for _, o := range outcomes {
		switch {
		case o.change != nil && o.overwritten:
			result.FilesOverwritten++
		case o.change != nil:
			result.FilesCopied++
		}
		if o.change != nil {
			result.BytesTransferred += o.bytes
			details.Changes = append(details.Changes, *o.change)
		}
		if o.skipped {
			result.FilesSkipped++
		}
		if o.err != nil {
			result.Errors = append(result.Errors, *o.err)
			details.Errors = append(details.Errors, o.err.Error())
		}
	}
	result.BytesTransferredFormatted = FormatSize(result.BytesTransferred)
	result.Success = len(result.Errors) == 0 && result.Status == StatusCompleted
	details.FilesSkipped = result.FilesSkipped
	details.CreatedDirs = r.createdDirs

	s.logger.Info("merge finished", "source", src.String(), "target", target,
		"copied", result.FilesCopied, "overwritten", result.FilesOverwritten,
		"skipped", result.FilesSkipped, "errors", len(result.Errors))

	if len(details.Changes) == 0 {
		r.cleanupDirs()
		return result, nil
	}
	id, err := s.record(OpMerge, fmt.Sprintf("Merged %d files from %s into %s", len(details.Changes), src.String(), target), details)
	if err != nil {
		return result, err
	}
	result.HistoryID = id
	return result, nil
}

// mergeOne copies a single compare result into the target tree. When the
// source is removed afterwards the change is recorded as a move so that
// undo puts it back.
func (s *Service) mergeOne(r *run, targetRoot string, c CompareResult, opts MergeOptions) mergeOutcome {
	srcPath := c.SourceFile.Path
	srcInfo, err := s.fsmgr.Stat(srcPath)
	if err != nil {
		return mergeOutcome{outcome: failed(srcPath, err)}
	}
	dst := filepath.Join(targetRoot, c.RelativePath)
	if err := r.ensureDir(filepath.Dir(dst)); err != nil {
		return mergeOutcome{outcome: failed(filepath.Dir(dst), err)}
	}

	existing, err := s.fsmgr.Stat(dst)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return mergeOutcome{outcome: failed(dst, err)}
	}

	overwrite := false
	if existing != nil {
		switch opts.Strategy {
		case MergeSkipExisting:
			return mergeOutcome{outcome: outcome{skipped: true}}
		case MergeOverwriteAll:
			overwrite = true
		case MergeOverwriteNewer:
			overwrite = srcInfo.Info().ModTime().After(existing.Info().ModTime())
		case MergeOverwriteOlder:
			overwrite = srcInfo.Info().ModTime().Before(existing.Info().ModTime())
		case MergeRename:
			r.mu.Lock()
			dst, err = r.freeName(dst)
			r.mu.Unlock()
			if err != nil {
				return mergeOutcome{outcome: failed(dst, err)}
			}
		}
		if !overwrite && opts.Strategy != MergeRename {
			return mergeOutcome{outcome: outcome{skipped: true}}
		}
	}

	change := &model.FileChange{Action: model.ActionCopy, Source: srcPath, Destination: dst}
	if overwrite {
		id, err := s.trash.Put(dst)
		if err != nil {
			return mergeOutcome{outcome: failed(dst, err)}
		}
		change.ReplacedTrashID = id
	}

	n, err := s.fsmgr.Copy(srcPath, dst)
	if err != nil {
		if change.ReplacedTrashID != "" {
			if rerr := s.trash.Restore(change.ReplacedTrashID, dst); rerr != nil {
				s.logger.Error("restoring replaced file", "path", dst, "error", rerr)
			}
		}
		return mergeOutcome{outcome: failed(srcPath, err)}
	}

	var fe *FileError
	if opts.DeleteSourceAfter {
		if err := s.fsmgr.Remove(srcPath); err != nil {
			e := newFileError(srcPath, err)
			fe = &e
		} else {
			change.Action = model.ActionMove
		}
	}
	return mergeOutcome{
		outcome:     outcome{change: change, bytes: n, err: fe},
		overwritten: overwrite,
	}
}
