package tidy

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// OverwriteStrategy decides what happens when a target path is taken.
type OverwriteStrategy string

const (
	OverwriteRename    OverwriteStrategy = "rename"
	OverwriteSkip      OverwriteStrategy = "skip"
	OverwriteOverwrite OverwriteStrategy = "overwrite"
)

// IsValid reports whether s is a known strategy.
func (s OverwriteStrategy) IsValid() bool {
	switch s {
	case OverwriteRename, OverwriteSkip, OverwriteOverwrite:
		return true
	}
	return false
}

// Run statuses.
const (
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Compare modes.
const (
	CompareHash  = "hash"
	CompareQuick = "quick"
)

// Options are the engine defaults taken from configuration.
type Options struct {
	DateFormat        string
	OverwriteStrategy OverwriteStrategy
	PermanentDelete   bool
	Workers           int
	CompareMode       string
	ShowHidden        bool
	// Ignore holds exclusion globs applied on top of the stored exclusions.
	Ignore []string
}

// Service is the engine: every organizer operation hangs off it.
type Service struct {
	database Database
	fsmgr    FilesystemManager
	trash    Trash
	logger   Logger
	clock    Clock
	idgen    IDGenerator
	opts     Options
}

// NewService creates a Service with the provided dependencies.
func NewService(database Database, fsmgr FilesystemManager, trash Trash, logger Logger, clock Clock, idgen IDGenerator, opts Options) *Service {
	if opts.OverwriteStrategy == "" {
		opts.OverwriteStrategy = OverwriteRename
	}
	if opts.DateFormat == "" {
		opts.DateFormat = DefaultDateFormat
	}
	if opts.CompareMode == "" {
		opts.CompareMode = CompareHash
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers()
	}
	return &Service{
		database: database,
		fsmgr:    fsmgr,
		trash:    trash,
		logger:   logger,
		clock:    clock,
		idgen:    idgen,
		opts:     opts,
	}
}

// defaultWorkers is NumCPU clamped to [4, 16].
func defaultWorkers() int {
	n := runtime.NumCPU()
	if n < 4 {
		n = 4
	}
	if n > 16 {
		n = 16
	}
	return n
}

// Snapshot captures the current rule set from the database.
func (s *Service) Snapshot() (*RuleSet, error) {
	return s.snapshot(s.opts.DateFormat)
}

func (s *Service) snapshot(dateFormat string) (*RuleSet, error) {
	rules, err := s.database.ListRules()
	if err != nil {
		return nil, fmt.Errorf("loading rules: %w", err)
	}
	defaults, err := s.database.ListDefaultRules()
	if err != nil {
		return nil, fmt.Errorf("loading default rules: %w", err)
	}
	mappings, err := s.database.ListExtensionMappings()
	if err != nil {
		return nil, fmt.Errorf("loading extension mappings: %w", err)
	}
	exclusions, err := s.exclusionPatterns()
	if err != nil {
		return nil, err
	}
	return NewRuleSet(rules, defaults, mappings, exclusions, s.clock.Now(), dateFormat), nil
}

func (s *Service) exclusionPatterns() ([]string, error) {
	stored, err := s.database.ListExclusions()
	if err != nil {
		return nil, fmt.Errorf("loading exclusions: %w", err)
	}
	patterns := append([]string(nil), s.opts.Ignore...)
	for _, e := range stored {
		patterns = append(patterns, e.Pattern)
	}
	return patterns, nil
}

// resolveDir resolves rawPath and requires a directory.
func (s *Service) resolveDir(rawPath string) (*Path, error) {
	p, err := s.fsmgr.Resolve(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	if !p.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", p.String())
	}
	return p, nil
}

// listFiles streams the immediate, non-hidden, non-excluded regular files of dir.
// Cancellation is checked between entries.
func (s *Service) listFiles(ctx context.Context, dir string, rs *RuleSet, fn func(FileRecord) error) error {
	return s.fsmgr.List(dir, func(p *Path) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if p.IsDir() || !p.Info().Mode().IsRegular() {
			return nil
		}
		if p.IsHidden() && !s.opts.ShowHidden {
			return nil
		}
		if rs.Excluded(p.Name()) {
			return nil
		}
		return fn(s.newFileRecord(p, rs.Classifier()))
	})
}

// walkFiles streams every regular file below root, pruning hidden and
// excluded directories. rel is the path relative to root.
func (s *Service) walkFiles(ctx context.Context, root string, rs *RuleSet, fn func(rel string, rec FileRecord) error) error {
	return s.walkTree(ctx, root, rs, func(rel string, p *Path) error {
		if p.IsDir() {
			return nil
		}
		return fn(rel, s.newFileRecord(p, rs.Classifier()))
	}, nil)
}

// forEach runs fn over items on a bounded pool. Items not yet started when
// ctx is cancelled are skipped; fn errors do not stop the other items.
// It reports whether the run was cancelled.
func forEach[T any](ctx context.Context, workers int, items []T, fn func(int, T)) bool {
	var g errgroup.Group
	var skipped atomic.Bool
	g.SetLimit(workers)
	for i, item := range items {
		if ctx.Err() != nil {
			skipped.Store(true)
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				skipped.Store(true)
				return nil
			}
			fn(i, item)
			return nil
		})
	}
	_ = g.Wait()
	return skipped.Load()
}
