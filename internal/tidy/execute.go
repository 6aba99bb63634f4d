package tidy

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"tidy-go/internal/model"
)

// History operation types.
const (
	OpOrganize = "organize"
	OpUnified  = "unified"
	OpMerge    = "merge"
	OpRename   = "rename"
)

// UnifiedOptions tune a rule-engine run.
type UnifiedOptions struct {
	// ExcludedDestinations are destinations (as reported by the preview)
	// whose files are left untouched.
	ExcludedDestinations []string          `json:"excludedDestinations"`
	Strategy             OverwriteStrategy `json:"strategy"`
	PermanentDelete      bool              `json:"permanentDelete"`
}

// ExecuteResult is the outcome of an organize run.
type ExecuteResult struct {
	Success      bool        `json:"success" yaml:"success"`
	FilesMoved   int         `json:"filesMoved" yaml:"filesMoved"`
	FilesSkipped int         `json:"filesSkipped" yaml:"filesSkipped"`
	Errors       []FileError `json:"errors" yaml:"errors"`
	HistoryID    int64       `json:"historyId" yaml:"historyId"`
	Status       string      `json:"status" yaml:"status"`
}

type plannedOp struct {
	file FileRecord
	res  Resolution
}

type outcome struct {
	change  *model.FileChange
	err     *FileError
	skipped bool
	bytes   int64
}

func failed(path string, err error) outcome {
	fe := newFileError(path, err)
	return outcome{err: &fe}
}

// run holds the state shared by the workers of one bulk operation.
// Target selection and directory creation are serialized through mu so two
// workers never pick the same path.
type run struct {
	s               *Service
	strategy        OverwriteStrategy
	permanentDelete bool

	mu          sync.Mutex
	reserved    map[string]bool
	knownDirs   map[string]bool
	createdDirs []string
}

func (s *Service) newRun(strategy OverwriteStrategy, permanentDelete bool) *run {
	return &run{
		s:               s,
		strategy:        strategy,
		permanentDelete: permanentDelete,
		reserved:        make(map[string]bool),
		knownDirs:       make(map[string]bool),
	}
}

// ensureDir creates dir and remembers every directory it had to create,
// outermost first.
func (r *run) ensureDir(dir string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.knownDirs[dir] {
		return nil
	}

	var missing []string
	for d := dir; !r.knownDirs[d]; d = filepath.Dir(d) {
		ok, err := r.s.fsmgr.Exists(d)
		if err != nil {
			return err
		}
		if ok {
			break
		}
		missing = append(missing, d)
		if filepath.Dir(d) == d {
			break
		}
	}
	if err := r.s.fsmgr.MkdirAll(dir); err != nil {
		return err
	}
	for i := len(missing) - 1; i >= 0; i-- {
		r.createdDirs = append(r.createdDirs, missing[i])
	}
	r.knownDirs[dir] = true
	return nil
}

// claim picks the path a file will be written to under the run's strategy.
// An empty path means the target is taken and must be skipped; replace
// means an existing file has to be moved aside first.
func (r *run) claim(target string) (path string, replace bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	exists, err := r.s.fsmgr.Exists(target)
	if err != nil {
		return "", false, err
	}
	if !exists && !r.reserved[target] {
		r.reserved[target] = true
		return target, false, nil
	}

	switch r.strategy {
	case OverwriteSkip:
		return "", false, nil
	case OverwriteOverwrite:
		// A file placed by this same run is never overwritten.
		if !r.reserved[target] {
			r.reserved[target] = true
			return target, true, nil
		}
	}
	path, err = r.freeName(target)
	return path, false, err
}

// reserve marks target as spoken for so freeName never hands it out.
func (r *run) reserve(target string) {
	r.mu.Lock()
	r.reserved[target] = true
	r.mu.Unlock()
}

// freeName returns the first "stem (n).ext" next to target that is neither
// on disk nor reserved. Callers hold mu.
func (r *run) freeName(target string) (string, error) {
	dir := filepath.Dir(target)
	stem, ext := splitName(filepath.Base(target))
	for n := 1; ; n++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, n, ext))
		if r.reserved[candidate] {
			continue
		}
		exists, err := r.s.fsmgr.Exists(candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			r.reserved[candidate] = true
			return candidate, nil
		}
	}
}

// splitName splits a base name into stem and extension, keeping case.
// A dot file without a second dot has no extension.
func splitName(name string) (string, string) {
	if strings.HasPrefix(name, ".") && strings.Count(name, ".") == 1 {
		return name, ""
	}
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext), ext
}

// apply performs one planned operation. The source is re-checked first
// since the scan may be stale by the time a worker reaches it.
func (r *run) apply(op plannedOp) outcome {
	src := op.file.Path
	if _, err := r.s.fsmgr.Stat(src); err != nil {
		return failed(src, err)
	}
	if op.res.ActionType == ActionDelete {
		return r.discard(src)
	}

	target := op.res.TargetPath()
	if target == src {
		return outcome{skipped: true}
	}
	if err := r.ensureDir(op.res.Destination); err != nil {
		return failed(op.res.Destination, err)
	}
	dst, replace, err := r.claim(target)
	if err != nil {
		return failed(target, err)
	}
	if dst == "" {
		o := failed(src, &conflictError{target: target})
		o.skipped = true
		return o
	}

	change := &model.FileChange{Action: op.res.ActionType, Source: src, Destination: dst}
	if replace {
		id, err := r.s.trash.Put(dst)
		if err != nil {
			return failed(dst, err)
		}
		change.ReplacedTrashID = id
	}

	if op.res.ActionType == ActionCopy {
		_, err = r.s.fsmgr.Copy(src, dst)
	} else {
		err = r.s.fsmgr.Move(src, dst)
	}
	if err != nil {
		if change.ReplacedTrashID != "" {
			if rerr := r.s.trash.Restore(change.ReplacedTrashID, dst); rerr != nil {
				r.s.logger.Error("restoring replaced file", "path", dst, "error", rerr)
			}
		}
		return failed(src, err)
	}
	return outcome{change: change, bytes: op.file.Size}
}

// discard trashes src, or removes it for good when the run is permanent.
func (r *run) discard(src string) outcome {
	if r.permanentDelete {
		if err := r.s.fsmgr.Remove(src); err != nil {
			return failed(src, err)
		}
		return outcome{change: &model.FileChange{Action: model.ActionDelete, Source: src}}
	}
	id, err := r.s.trash.Put(src)
	if err != nil {
		return failed(src, err)
	}
	return outcome{change: &model.FileChange{Action: model.ActionTrash, Source: src, TrashID: id}}
}

// cleanupDirs removes directories created by a run that produced no changes.
func (r *run) cleanupDirs() {
	for i := len(r.createdDirs) - 1; i >= 0; i-- {
		if err := r.s.fsmgr.Remove(r.createdDirs[i]); err != nil {
			r.s.logger.Debug("leaving created directory", "path", r.createdDirs[i], "error", err)
		}
	}
}

// ExecuteUnified moves every file of sourcePath to the destination the rule
// engine picks for it, using a fresh rule snapshot.
func (s *Service) ExecuteUnified(ctx context.Context, sourcePath string, opts UnifiedOptions) (*ExecuteResult, error) {
	dir, err := s.resolveDir(sourcePath)
	if err != nil {
		return nil, err
	}
	strategy, err := s.strategy(opts.Strategy)
	if err != nil {
		return nil, err
	}
	rs, err := s.Snapshot()
	if err != nil {
		return nil, err
	}

	excluded := make(map[string]bool, len(opts.ExcludedDestinations))
	for _, d := range opts.ExcludedDestinations {
		excluded[ResolveDestination(d, dir.String())] = true
	}

	var ops []plannedOp
	cancelled := false
	err = s.StreamUnified(ctx, dir.String(), rs, func(e PreviewEntry) error {
		if excluded[e.Resolution.Destination] {
			return nil
		}
		ops = append(ops, plannedOp{file: e.File, res: e.Resolution})
		return nil
	}, nil)
	if err != nil {
		if !isCancellation(err) {
			return nil, fmt.Errorf("scanning %s: %w", dir.String(), err)
		}
		cancelled = true
	}

	r := s.newRun(strategy, opts.PermanentDelete || s.opts.PermanentDelete)
	return s.execute(ctx, OpUnified, func(n int) string {
		return fmt.Sprintf("Organized %d files in %s using rules", n, dir.String())
	}, ops, r, cancelled)
}

// ExecuteOrganization moves every file of sourcePath into its category folder.
func (s *Service) ExecuteOrganization(ctx context.Context, sourcePath string, opts OrganizeOptions) (*ExecuteResult, error) {
	dir, err := s.resolveDir(sourcePath)
	if err != nil {
		return nil, err
	}
	opts = s.organizeDefaults(opts)
	strategy, err := s.strategy(opts.DuplicateStrategy)
	if err != nil {
		return nil, err
	}
	rs, err := s.snapshot(opts.DateFormat)
	if err != nil {
		return nil, err
	}

	var ops []plannedOp
	cancelled := false
	err = s.listFiles(ctx, dir.String(), rs, func(rec FileRecord) error {
		ops = append(ops, plannedOp{file: rec, res: *categoryResolution(&rec, dir.String(), opts)})
		return nil
	})
	if err != nil {
		if !isCancellation(err) {
			return nil, fmt.Errorf("scanning %s: %w", dir.String(), err)
		}
		cancelled = true
	}

	r := s.newRun(strategy, s.opts.PermanentDelete)
	return s.execute(ctx, OpOrganize, func(n int) string {
		return fmt.Sprintf("Organized %d files in %s by category", n, dir.String())
	}, ops, r, cancelled)
}

func (s *Service) strategy(requested OverwriteStrategy) (OverwriteStrategy, error) {
	if requested == "" {
		return s.opts.OverwriteStrategy, nil
	}
	if !requested.IsValid() {
		return "", fmt.Errorf("unknown overwrite strategy %q", requested)
	}
	return requested, nil
}

// execute runs ops on the worker pool and writes one history entry once
// every worker has finished.
func (s *Service) execute(ctx context.Context, opType string, describe func(int) string, ops []plannedOp, r *run, cancelled bool) (*ExecuteResult, error) {
	outcomes := make([]outcome, len(ops))
	if forEach(ctx, s.opts.Workers, ops, func(i int, op plannedOp) {
		outcomes[i] = r.apply(op)
	}) {
		cancelled = true
	}

	result := &ExecuteResult{Errors: []FileError{}, Status: StatusCompleted}
	var details model.HistoryDetails
	for _, o := range outcomes {
		if o.change != nil {
			result.FilesMoved++
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
	if cancelled {
		result.Status = StatusCancelled
	}
	result.Success = len(result.Errors) == 0 && !cancelled
	details.FilesSkipped = result.FilesSkipped
	details.CreatedDirs = r.createdDirs

	s.logger.Info("operation finished", "type", opType, "changed", result.FilesMoved,
		"skipped", result.FilesSkipped, "errors", len(result.Errors), "status", result.Status)

	if len(details.Changes) == 0 {
		r.cleanupDirs()
		return result, nil
	}
	id, err := s.record(opType, describe(len(details.Changes)), details)
	if err != nil {
		return result, err
	}
	result.HistoryID = id
	return result, nil
}

// record appends one entry to the ledger.
func (s *Service) record(opType, description string, details model.HistoryDetails) (int64, error) {
	entry, err := s.database.CreateHistoryEntry(&model.HistoryEntry{
		OperationType: opType,
		Description:   description,
		FilesAffected: len(details.Changes),
		CreatedAt:     s.clock.Now(),
		Details:       details,
	})
	if err != nil {
		return 0, fmt.Errorf("recording history: %w", err)
	}
	return entry.ID, nil
}
