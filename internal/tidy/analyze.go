package tidy

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"tidy-go/internal/model"
)

// CategoryStats aggregates the files of one category.
type CategoryStats struct {
	Category           model.Category `json:"category" yaml:"category"`
	Count              int            `json:"count" yaml:"count"`
	TotalSize          int64          `json:"totalSize" yaml:"totalSize"`
	TotalSizeFormatted string         `json:"totalSizeFormatted" yaml:"totalSizeFormatted"`
}

// FolderStats summarizes a directory tree.
type FolderStats struct {
	Path               string           `json:"path" yaml:"path"`
	TotalSize          int64            `json:"totalSize" yaml:"totalSize"`
	TotalSizeFormatted string           `json:"totalSizeFormatted" yaml:"totalSizeFormatted"`
	FileCount          int              `json:"fileCount" yaml:"fileCount"`
	FolderCount        int              `json:"folderCount" yaml:"folderCount"`
	LargestFile        *FileRecord      `json:"largestFile,omitempty" yaml:"largestFile,omitempty"`
	Categories         []*CategoryStats `json:"categories" yaml:"categories"`
	Status             string           `json:"status" yaml:"status"`
}

// AnalyzeFolder walks root and reports counts, sizes and a per-category
// breakdown ordered by size.
func (s *Service) AnalyzeFolder(ctx context.Context, root string) (*FolderStats, error) {
	dir, err := s.resolveDir(root)
	if err != nil {
		return nil, err
	}
	rs, err := s.Snapshot()
	if err != nil {
		return nil, err
	}

	stats := &FolderStats{Path: dir.String(), Status: StatusCompleted}
	byCategory := make(map[model.Category]*CategoryStats)
	err = s.walkTree(ctx, dir.String(), rs, func(_ string, p *Path) error {
		if p.IsDir() {
			stats.FolderCount++
			return nil
		}
		rec := s.newFileRecord(p, rs.Classifier())
		stats.FileCount++
		stats.TotalSize += rec.Size
		if stats.LargestFile == nil || rec.Size > stats.LargestFile.Size {
			stats.LargestFile = &rec
		}
		c, ok := byCategory[rec.Category]
		if !ok {
			c = &CategoryStats{Category: rec.Category}
			byCategory[rec.Category] = c
		}
		c.Count++
		c.TotalSize += rec.Size
		return nil
	}, nil)
	if err != nil {
		if !isCancellation(err) {
			return nil, fmt.Errorf("analyzing %s: %w", dir.String(), err)
		}
		stats.Status = StatusCancelled
	}

	stats.TotalSizeFormatted = FormatSize(stats.TotalSize)
	for _, c := range byCategory {
		c.TotalSizeFormatted = FormatSize(c.TotalSize)
		stats.Categories = append(stats.Categories, c)
	}
	sort.Slice(stats.Categories, func(i, j int) bool {
		a, b := stats.Categories[i], stats.Categories[j]
		if a.TotalSize != b.TotalSize {
			return a.TotalSize > b.TotalSize
		}
		return a.Category < b.Category
	})
	return stats, nil
}

// FindEmptyFolders lists the directories below root that have no entries.
func (s *Service) FindEmptyFolders(ctx context.Context, root string) ([]string, error) {
	dir, err := s.resolveDir(root)
	if err != nil {
		return nil, err
	}
	rs, err := s.Snapshot()
	if err != nil {
		return nil, err
	}

	children := make(map[string]int)
	var dirs []string
	err = s.walkTree(ctx, dir.String(), rs, func(_ string, p *Path) error {
		if p.IsDir() {
			dirs = append(dirs, p.String())
		}
		return nil
	}, func(p *Path) {
		children[filepath.Dir(p.String())]++
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir.String(), err)
	}

	empty := []string{}
	for _, d := range dirs {
		if children[d] == 0 {
			empty = append(empty, d)
		}
	}
	sort.Strings(empty)
	return empty, nil
}

// FindLargeFiles lists files of at least threshold bytes, largest first.
func (s *Service) FindLargeFiles(ctx context.Context, root string, threshold int64) ([]FileRecord, error) {
	dir, err := s.resolveDir(root)
	if err != nil {
		return nil, err
	}
	rs, err := s.Snapshot()
	if err != nil {
		return nil, err
	}

	large := []FileRecord{}
	err = s.walkFiles(ctx, dir.String(), rs, func(_ string, rec FileRecord) error {
		if rec.Size >= threshold {
			large = append(large, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir.String(), err)
	}
	sort.Slice(large, func(i, j int) bool {
		if large[i].Size != large[j].Size {
			return large[i].Size > large[j].Size
		}
		return large[i].Path < large[j].Path
	})
	return large, nil
}

// walkTree visits the non-hidden, non-excluded directories and regular files
// below root. seen, when set, is called for every entry before filtering.
func (s *Service) walkTree(ctx context.Context, root string, rs *RuleSet, fn func(rel string, p *Path) error, seen func(*Path)) error {
	return s.fsmgr.Walk(root, func(p *Path) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if seen != nil {
			seen(p)
		}
		rel, err := filepath.Rel(root, p.String())
		if err != nil {
			return fmt.Errorf("relative path for %s: %w", p.String(), err)
		}
		skip := (p.IsHidden() && !s.opts.ShowHidden) || rs.Excluded(rel)
		if p.IsDir() {
			if skip {
				return filepath.SkipDir
			}
			return fn(rel, p)
		}
		if skip || !p.Info().Mode().IsRegular() {
			return nil
		}
		return fn(rel, p)
	})
}
