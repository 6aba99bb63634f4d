package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// FileSystemStore keeps snapshots in a directory, typically a mounted
// network share or a synced folder:
//
//	<root>/
//	  <name>.snapshot   (database image, possibly encrypted)
//	  <name>.version    (decimal ledger version)
type FileSystemStore struct {
	fs   afero.Fs
	root string
}

// NewFileSystemStore creates root if needed.
func NewFileSystemStore(fsys afero.Fs, root string) (*FileSystemStore, error) {
	if err := fsys.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return &FileSystemStore{fs: fsys, root: root}, nil
}

func (s *FileSystemStore) dataPath(name string) string {
	return filepath.Join(s.root, name+".snapshot")
}

func (s *FileSystemStore) versionPath(name string) string {
	return filepath.Join(s.root, name+".version")
}

// Put writes the data before the version so that a reader never sees a
// version newer than the data next to it.
func (s *FileSystemStore) Put(_ context.Context, name string, r io.Reader, size int64, version int64) error {
	if err := s.writeAtomic(s.dataPath(name), r, size); err != nil {
		return err
	}
	v := strconv.FormatInt(version, 10)
	if err := s.writeAtomic(s.versionPath(name), strings.NewReader(v), int64(len(v))); err != nil {
		return fmt.Errorf("writing version: %w", err)
	}
	return nil
}

func (s *FileSystemStore) Get(ctx context.Context, name string, w io.Writer) (int64, error) {
	f, err := s.fs.Open(s.dataPath(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return 0, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return 0, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return s.Version(ctx, name)
}

func (s *FileSystemStore) Version(_ context.Context, name string) (int64, error) {
	data, err := afero.ReadFile(s.fs, s.versionPath(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading version file: %w", err)
	}

	version, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version: %w", err)
	}
	return version, nil
}

// writeAtomic copies r to a temp file next to dest and renames it into
// place once exactly size bytes were written.
func (s *FileSystemStore) writeAtomic(dest string, r io.Reader, size int64) error {
	tmp, err := afero.TempFile(s.fs, filepath.Dir(dest), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	written, err := io.Copy(tmp, r)
	if err == nil && written != size {
		err = fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
	}
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = s.fs.Rename(tmpPath, dest)
	}
	if err != nil {
		s.fs.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", filepath.Base(dest), err)
	}
	return nil
}

var _ Store = (*FileSystemStore)(nil)
