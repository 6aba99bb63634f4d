package tidy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
)

const hashChunkSize = 64 * 1024

// DuplicateGroup is a set of files with identical content.
type DuplicateGroup struct {
	Hash                 string       `json:"hash" yaml:"hash"`
	Size                 int64        `json:"size" yaml:"size"`
	SizeFormatted        string       `json:"sizeFormatted" yaml:"sizeFormatted"`
	Files                []FileRecord `json:"files" yaml:"files"`
	WastedSpace          int64        `json:"wastedSpace" yaml:"wastedSpace"`
	WastedSpaceFormatted string       `json:"wastedSpaceFormatted" yaml:"wastedSpaceFormatted"`
}

// DuplicateResult is the outcome of a duplicate scan.
type DuplicateResult struct {
	Groups               []*DuplicateGroup `json:"groups" yaml:"groups"`
	TotalWasted          int64             `json:"totalWasted" yaml:"totalWasted"`
	TotalWastedFormatted string            `json:"totalWastedFormatted" yaml:"totalWastedFormatted"`
	FilesScanned         int               `json:"filesScanned" yaml:"filesScanned"`
	Errors               []FileError       `json:"errors" yaml:"errors"`
	Status               string            `json:"status" yaml:"status"`
}

// FindDuplicates walks root and groups regular files by content.
// Files are first bucketed by size; only buckets with two or more members
// are hashed. Empty files are ignored.
func (s *Service) FindDuplicates(ctx context.Context, root string) (*DuplicateResult, error) {
	dir, err := s.resolveDir(root)
	if err != nil {
		return nil, err
	}
	rs, err := s.Snapshot()
	if err != nil {
		return nil, err
	}

	result := &DuplicateResult{Groups: []*DuplicateGroup{}, Errors: []FileError{}, Status: StatusCompleted}
	bySize := make(map[int64][]FileRecord)
	err = s.walkFiles(ctx, dir.String(), rs, func(_ string, rec FileRecord) error {
		result.FilesScanned++
		if rec.Size > 0 {
			bySize[rec.Size] = append(bySize[rec.Size], rec)
		}
		return nil
	})
	if err != nil {
		if !isCancellation(err) {
			return nil, fmt.Errorf("scanning %s: %w", dir.String(), err)
		}
		result.Status = StatusCancelled
		return result, nil
	}

	var candidates []FileRecord
	for _, bucket := range bySize {
		if len(bucket) > 1 {
			candidates = append(candidates, bucket...)
		}
	}

	hashes := make([]string, len(candidates))
	errs := make([]*FileError, len(candidates))
	if forEach(ctx, s.opts.Workers, candidates, func(i int, rec FileRecord) {
		sum, err := s.hashFile(rec.Path)
		if err != nil {
			fe := newFileError(rec.Path, err)
			errs[i] = &fe
			return
		}
		hashes[i] = sum
	}) {
		result.Status = StatusCancelled
	}

	type hashKey struct {
		hash string
		size int64
	}
	byHash := make(map[hashKey]*DuplicateGroup)
	for i, rec := range candidates {
		if errs[i] != nil {
			result.Errors = append(result.Errors, *errs[i])
			continue
		}
		if hashes[i] == "" {
			continue
		}
		// Size is part of the key so a collision across buckets cannot merge them.
		key := hashKey{hash: hashes[i], size: rec.Size}
		g, ok := byHash[key]
		if !ok {
			g = &DuplicateGroup{Hash: hashes[i], Size: rec.Size, SizeFormatted: FormatSize(rec.Size)}
			byHash[key] = g
		}
		g.Files = append(g.Files, rec)
	}

	for _, g := range byHash {
		if len(g.Files) < 2 {
			continue
		}
		files := g.Files
		sort.Slice(files, func(i, j int) bool {
			if !files[i].CreatedAt.Equal(files[j].CreatedAt) {
				return files[i].CreatedAt.Before(files[j].CreatedAt)
			}
			return files[i].Path < files[j].Path
		})
		g.WastedSpace = g.Size * int64(len(files)-1)
		g.WastedSpaceFormatted = FormatSize(g.WastedSpace)
		result.Groups = append(result.Groups, g)
		result.TotalWasted += g.WastedSpace
	}
	sort.Slice(result.Groups, func(i, j int) bool {
		a, b := result.Groups[i], result.Groups[j]
		if a.WastedSpace != b.WastedSpace {
			return a.WastedSpace > b.WastedSpace
		}
		return a.Hash < b.Hash
	})
	result.TotalWastedFormatted = FormatSize(result.TotalWasted)

	s.logger.Info("duplicate scan finished", "root", dir.String(), "scanned", result.FilesScanned,
		"groups", len(result.Groups), "wasted", result.TotalWasted)
	return result, nil
}

// hashFile streams path through SHA-256 and returns the hex digest.
func (s *Service) hashFile(path string) (string, error) {
	f, err := s.fsmgr.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, hashChunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
