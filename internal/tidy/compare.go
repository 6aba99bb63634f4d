package tidy

import (
	"context"
	"fmt"
	"sort"
)

// CompareStatus is the relation of one relative path across two trees.
type CompareStatus string

const (
	OnlyInSource CompareStatus = "only_in_source"
	OnlyInTarget CompareStatus = "only_in_target"
	Identical    CompareStatus = "identical"
	Different    CompareStatus = "different"
)

// CompareResult describes one relative path.
type CompareResult struct {
	RelativePath      string        `json:"relativePath" yaml:"relativePath"`
	Status            CompareStatus `json:"status" yaml:"status"`
	SourceFile        *FileRecord   `json:"sourceFile,omitempty" yaml:"sourceFile,omitempty"`
	TargetFile        *FileRecord   `json:"targetFile,omitempty" yaml:"targetFile,omitempty"`
	SizeDiff          int64         `json:"sizeDiff" yaml:"sizeDiff"`
	SizeDiffFormatted string        `json:"sizeDiffFormatted" yaml:"sizeDiffFormatted"`
}

// CompareSummary is the full comparison of two trees.
type CompareSummary struct {
	SourcePath               string          `json:"sourcePath" yaml:"sourcePath"`
	TargetPath               string          `json:"targetPath" yaml:"targetPath"`
	TotalFiles               int             `json:"totalFiles" yaml:"totalFiles"`
	OnlyInSource             int             `json:"onlyInSource" yaml:"onlyInSource"`
	OnlyInTarget             int             `json:"onlyInTarget" yaml:"onlyInTarget"`
	Identical                int             `json:"identical" yaml:"identical"`
	Different                int             `json:"different" yaml:"different"`
	SourceTotalSize          int64           `json:"sourceTotalSize" yaml:"sourceTotalSize"`
	SourceTotalSizeFormatted string          `json:"sourceTotalSizeFormatted" yaml:"sourceTotalSizeFormatted"`
	TargetTotalSize          int64           `json:"targetTotalSize" yaml:"targetTotalSize"`
	TargetTotalSizeFormatted string          `json:"targetTotalSizeFormatted" yaml:"targetTotalSizeFormatted"`
	Results                  []CompareResult `json:"results" yaml:"results"`
	Errors                   []FileError     `json:"errors" yaml:"errors"`
	Status                   string          `json:"status" yaml:"status"`
}

// CompareFolders indexes both trees by relative path and classifies every path.
// Swapping source and target swaps the only_in_* counts and nothing else.
func (s *Service) CompareFolders(ctx context.Context, sourcePath, targetPath string) (*CompareSummary, error) {
	src, err := s.resolveDir(sourcePath)
	if err != nil {
		return nil, err
	}
	dst, err := s.resolveDir(targetPath)
	if err != nil {
		return nil, err
	}
	rs, err := s.Snapshot()
	if err != nil {
		return nil, err
	}

	summary := &CompareSummary{
		SourcePath: src.String(),
		TargetPath: dst.String(),
		Results:    []CompareResult{},
		Errors:     []FileError{},
		Status:     StatusCompleted,
	}

	sourceFiles, err := s.index(ctx, src.String(), rs)
	if err == nil {
		var targetFiles map[string]FileRecord
		targetFiles, err = s.index(ctx, dst.String(), rs)
		if err == nil {
			s.compareIndexes(ctx, sourceFiles, targetFiles, summary)
		}
	}
	if err != nil {
		if !isCancellation(err) {
			return nil, fmt.Errorf("comparing %s and %s: %w", src.String(), dst.String(), err)
		}
		summary.Status = StatusCancelled
	}

	s.logger.Info("folders compared", "source", src.String(), "target", dst.String(),
		"onlyInSource", summary.OnlyInSource, "onlyInTarget", summary.OnlyInTarget,
		"identical", summary.Identical, "different", summary.Different)
	return summary, nil
}

func (s *Service) index(ctx context.Context, root string, rs *RuleSet) (map[string]FileRecord, error) {
	files := make(map[string]FileRecord)
	err := s.walkFiles(ctx, root, rs, func(rel string, rec FileRecord) error {
		files[rel] = rec
		return nil
	})
	return files, err
}

func (s *Service) compareIndexes(ctx context.Context, sourceFiles, targetFiles map[string]FileRecord, summary *CompareSummary) {
	type pair struct {
		rel      string
		src, dst FileRecord
	}
	var pairs []pair

	for rel, rec := range sourceFiles {
		summary.SourceTotalSize += rec.Size
		t, ok := targetFiles[rel]
		if !ok {
			summary.add(CompareResult{RelativePath: rel, Status: OnlyInSource, SourceFile: &rec, SizeDiff: rec.Size})
			continue
		}
		pairs = append(pairs, pair{rel: rel, src: rec, dst: t})
	}
	for rel, rec := range targetFiles {
		summary.TargetTotalSize += rec.Size
		if _, ok := sourceFiles[rel]; !ok {
			summary.add(CompareResult{RelativePath: rel, Status: OnlyInTarget, TargetFile: &rec, SizeDiff: -rec.Size})
		}
	}

	statuses := make([]CompareStatus, len(pairs))
	errs := make([]*FileError, len(pairs))
	if forEach(ctx, s.opts.Workers, pairs, func(i int, p pair) {
		status, err := s.sameContent(p.src, p.dst)
		if err != nil {
			fe := newFileError(p.src.Path, err)
			errs[i] = &fe
		}
		statuses[i] = status
	}) {
		summary.Status = StatusCancelled
	}

	for i, p := range pairs {
		if statuses[i] == "" {
			continue
		}
		if errs[i] != nil {
			summary.Errors = append(summary.Errors, *errs[i])
		}
		summary.add(CompareResult{
			RelativePath: p.rel,
			Status:       statuses[i],
			SourceFile:   &p.src,
			TargetFile:   &p.dst,
			SizeDiff:     p.src.Size - p.dst.Size,
		})
	}

	sort.Slice(summary.Results, func(i, j int) bool {
		return summary.Results[i].RelativePath < summary.Results[j].RelativePath
	})
	summary.SourceTotalSizeFormatted = FormatSize(summary.SourceTotalSize)
	summary.TargetTotalSizeFormatted = FormatSize(summary.TargetTotalSize)
}

func (c *CompareSummary) add(r CompareResult) {
	r.SizeDiffFormatted = FormatSize(r.SizeDiff)
	c.Results = append(c.Results, r)
	c.TotalFiles++
	switch r.Status {
	case OnlyInSource:
		c.OnlyInSource++
	case OnlyInTarget:
		c.OnlyInTarget++
	case Identical:
		c.Identical++
	case Different:
		c.Different++
	}
}

// sameContent compares two files present on both sides. Files that cannot
// be read are reported as different along with the error.
func (s *Service) sameContent(a, b FileRecord) (CompareStatus, error) {
	if a.Size != b.Size {
		return Different, nil
	}
	if s.opts.CompareMode == CompareQuick {
		if a.ModifiedAt.Equal(b.ModifiedAt) {
			return Identical, nil
		}
		return Different, nil
	}
	ha, err := s.hashFile(a.Path)
	if err != nil {
		return Different, err
	}
	hb, err := s.hashFile(b.Path)
	if err != nil {
		return Different, err
	}
	if ha == hb {
		return Identical, nil
	}
	return Different, nil
}
