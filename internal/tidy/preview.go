package tidy

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"tidy-go/internal/model"
)

// PreviewEntry pairs a file with its resolved destination.
type PreviewEntry struct {
	File       FileRecord `json:"file" yaml:"file"`
	Resolution Resolution `json:"resolution" yaml:"resolution"`
	TargetPath string     `json:"targetPath" yaml:"targetPath"`
}

// PreviewGroup is the set of entries sharing a destination and rule.
type PreviewGroup struct {
	Destination        string         `json:"destination" yaml:"destination"`
	ActionType         string         `json:"actionType" yaml:"actionType"`
	MatchType          MatchType      `json:"matchType" yaml:"matchType"`
	RuleID             int64          `json:"ruleId,omitempty" yaml:"ruleId,omitempty"`
	RuleName           string         `json:"ruleName" yaml:"ruleName"`
	Category           model.Category `json:"category,omitempty" yaml:"category,omitempty"`
	Files              []PreviewEntry `json:"files" yaml:"files"`
	FileCount          int            `json:"fileCount" yaml:"fileCount"`
	TotalSize          int64          `json:"totalSize" yaml:"totalSize"`
	TotalSizeFormatted string         `json:"totalSizeFormatted" yaml:"totalSizeFormatted"`
}

func (g *PreviewGroup) add(e PreviewEntry) {
	g.Files = append(g.Files, e)
	g.FileCount++
	g.TotalSize += e.File.Size
	g.TotalSizeFormatted = FormatSize(g.TotalSize)
}

// UnifiedPreview is the rule-engine dry run of one directory.
type UnifiedPreview struct {
	SourcePath     string          `json:"sourcePath" yaml:"sourcePath"`
	Groups         []*PreviewGroup `json:"groups" yaml:"groups"`
	TotalFiles     int             `json:"totalFiles" yaml:"totalFiles"`
	UnmatchedFiles int             `json:"unmatchedFiles" yaml:"unmatchedFiles"`
	Status         string          `json:"status" yaml:"status"`
}

// StreamUnified resolves every file of sourcePath against rs and hands each
// matched entry to fn as soon as it is produced. unmatched is called for files
// without a destination and may be nil.
func (s *Service) StreamUnified(ctx context.Context, sourcePath string, rs *RuleSet, fn func(PreviewEntry) error, unmatched func(FileRecord)) error {
	return s.listFiles(ctx, sourcePath, rs, func(rec FileRecord) error {
		res, ok := rs.Resolve(&rec, sourcePath)
		if !ok {
			if unmatched != nil {
				unmatched(rec)
			}
			return nil
		}
		return fn(PreviewEntry{File: rec, Resolution: *res, TargetPath: res.TargetPath()})
	})
}

// PreviewUnified groups the resolution of every file in sourcePath by destination.
// It never touches the filesystem beyond reading it.
func (s *Service) PreviewUnified(ctx context.Context, sourcePath string) (*UnifiedPreview, error) {
	dir, err := s.resolveDir(sourcePath)
	if err != nil {
		return nil, err
	}
	rs, err := s.Snapshot()
	if err != nil {
		return nil, err
	}

	preview := &UnifiedPreview{SourcePath: dir.String(), Status: StatusCompleted}
	groups := make(map[string]*PreviewGroup)
	err = s.StreamUnified(ctx, dir.String(), rs, func(e PreviewEntry) error {
		preview.TotalFiles++
		key := groupKey(&e.Resolution)
		g, ok := groups[key]
		if !ok {
			g = &PreviewGroup{
				Destination: e.Resolution.Destination,
				ActionType:  e.Resolution.ActionType,
				MatchType:   e.Resolution.MatchType,
				RuleID:      e.Resolution.RuleID,
				RuleName:    e.Resolution.RuleName,
			}
			if e.Resolution.MatchType == MatchDefault {
				g.Category = e.Resolution.Category
			}
			groups[key] = g
		}
		g.add(e)
		return nil
	}, func(FileRecord) {
		preview.TotalFiles++
		preview.UnmatchedFiles++
	})
	if err != nil {
		if !isCancellation(err) {
			return nil, fmt.Errorf("previewing %s: %w", dir.String(), err)
		}
		preview.Status = StatusCancelled
	}

	preview.Groups = make([]*PreviewGroup, 0, len(groups))
	for _, g := range groups {
		preview.Groups = append(preview.Groups, g)
	}
	sort.Slice(preview.Groups, func(i, j int) bool {
		a, b := preview.Groups[i], preview.Groups[j]
		if a.Destination != b.Destination {
			return a.Destination < b.Destination
		}
		return groupKey(&a.Files[0].Resolution) < groupKey(&b.Files[0].Resolution)
	})
	s.logger.Debug("unified preview", "source", dir.String(), "files", preview.TotalFiles, "groups", len(preview.Groups))
	return preview, nil
}

func groupKey(r *Resolution) string {
	return fmt.Sprintf("%s|%s|%s|%d|%s", r.Destination, r.ActionType, r.MatchType, r.RuleID, r.RuleName)
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// OrganizeOptions drive the category-based organizer.
type OrganizeOptions struct {
	DateSubfolders    bool              `json:"dateSubfolders"`
	DateFormat        string            `json:"dateFormat"`
	DuplicateStrategy OverwriteStrategy `json:"duplicateStrategy"`
}

// CategoryGroup is one category of the category-based preview.
type CategoryGroup struct {
	Category           model.Category `json:"category" yaml:"category"`
	FolderName         string         `json:"folderName" yaml:"folderName"`
	Destination        string         `json:"destination" yaml:"destination"`
	Files              []PreviewEntry `json:"files" yaml:"files"`
	FileCount          int            `json:"fileCount" yaml:"fileCount"`
	TotalSize          int64          `json:"totalSize" yaml:"totalSize"`
	TotalSizeFormatted string         `json:"totalSizeFormatted" yaml:"totalSizeFormatted"`
}

// OrganizePreview is the category-based dry run of one directory.
type OrganizePreview struct {
	SourcePath string           `json:"sourcePath" yaml:"sourcePath"`
	Categories []*CategoryGroup `json:"categories" yaml:"categories"`
	TotalFiles int              `json:"totalFiles" yaml:"totalFiles"`
	Status     string           `json:"status" yaml:"status"`
}

// categoryResolution sends rec to <source>/<CategoryFolder>[/<date>].
func categoryResolution(rec *FileRecord, sourcePath string, opts OrganizeOptions) *Resolution {
	dest := filepath.Join(sourcePath, CategoryFolder(rec.Category))
	if opts.DateSubfolders {
		dest = filepath.Join(dest, DateSubfolder(rec.ModifiedAt, opts.DateFormat))
	}
	return &Resolution{
		ActionType:  ActionMove,
		Destination: dest,
		TargetName:  rec.Name,
		MatchType:   MatchDefault,
		RuleName:    string(rec.Category),
		Category:    rec.Category,
	}
}

// PreviewOrganization groups the files of sourcePath by category.
// Groups are ordered by file count, largest first.
func (s *Service) PreviewOrganization(ctx context.Context, sourcePath string, opts OrganizeOptions) (*OrganizePreview, error) {
	dir, err := s.resolveDir(sourcePath)
	if err != nil {
		return nil, err
	}
	opts = s.organizeDefaults(opts)
	rs, err := s.snapshot(opts.DateFormat)
	if err != nil {
		return nil, err
	}

	preview := &OrganizePreview{SourcePath: dir.String(), Status: StatusCompleted}
	groups := make(map[model.Category]*CategoryGroup)
	err = s.listFiles(ctx, dir.String(), rs, func(rec FileRecord) error {
		res := categoryResolution(&rec, dir.String(), opts)
		g, ok := groups[rec.Category]
		if !ok {
			g = &CategoryGroup{
				Category:    rec.Category,
				FolderName:  CategoryFolder(rec.Category),
				Destination: filepath.Join(dir.String(), CategoryFolder(rec.Category)),
			}
			groups[rec.Category] = g
		}
		g.Files = append(g.Files, PreviewEntry{File: rec, Resolution: *res, TargetPath: res.TargetPath()})
		g.FileCount++
		g.TotalSize += rec.Size
		g.TotalSizeFormatted = FormatSize(g.TotalSize)
		preview.TotalFiles++
		return nil
	})
	if err != nil {
		if !isCancellation(err) {
			return nil, fmt.Errorf("previewing %s: %w", dir.String(), err)
		}
		preview.Status = StatusCancelled
	}

	for _, g := range groups {
		preview.Categories = append(preview.Categories, g)
	}
	sort.Slice(preview.Categories, func(i, j int) bool {
		a, b := preview.Categories[i], preview.Categories[j]
		if a.FileCount != b.FileCount {
			return a.FileCount > b.FileCount
		}
		return a.Category < b.Category
	})
	return preview, nil
}

func (s *Service) organizeDefaults(opts OrganizeOptions) OrganizeOptions {
	if opts.DateFormat == "" {
		opts.DateFormat = s.opts.DateFormat
	}
	if opts.DuplicateStrategy == "" {
		opts.DuplicateStrategy = s.opts.OverwriteStrategy
	}
	return opts
}
