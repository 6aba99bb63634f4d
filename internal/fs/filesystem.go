package fs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/afero"

	"tidy-go/internal/tidy"
)

// Manager implements tidy.FilesystemManager on top of an afero filesystem.
// Production code uses the OS filesystem; tests use afero.NewMemMapFs.
type Manager struct {
	fs afero.Fs
	// birthTime enables the platform creation-time lookup, which only makes
	// sense when fs is the real filesystem.
	birthTime bool
}

// NewManager creates a Manager over fsys.
func NewManager(fsys afero.Fs) *Manager {
	return &Manager{fs: fsys}
}

// NewOSManager creates a Manager over the real filesystem.
func NewOSManager() *Manager {
	return &Manager{fs: afero.NewOsFs(), birthTime: true}
}

// Fs exposes the underlying afero filesystem.
func (m *Manager) Fs() afero.Fs { return m.fs }

func (m *Manager) lstat(path string) (fs.FileInfo, error) {
	if l, ok := m.fs.(afero.Lstater); ok {
		info, _, err := l.LstatIfPossible(path)
		return info, err
	}
	return m.fs.Stat(path)
}

// Resolve validates a raw path and returns a Path object.
func (m *Manager) Resolve(rawPath string) (*tidy.Path, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	info, err := m.lstat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}

	mode := info.Mode()
	switch {
	case mode&os.ModeSymlink != 0:
		return nil, fmt.Errorf("symlinks not supported: %s", absPath)
	case mode&os.ModeDevice != 0:
		return nil, fmt.Errorf("device files not supported: %s", absPath)
	case mode&os.ModeNamedPipe != 0:
		return nil, fmt.Errorf("named pipes not supported: %s", absPath)
	case mode&os.ModeSocket != 0:
		return nil, fmt.Errorf("sockets not supported: %s", absPath)
	}

	return tidy.NewPath(absPath, info.IsDir(), info), nil
}

// Stat returns fresh info for path without following symlinks.
func (m *Manager) Stat(path string) (*tidy.Path, error) {
	info, err := m.lstat(path)
	if err != nil {
		return nil, err
	}
	return tidy.NewPath(path, info.IsDir(), info), nil
}

// List calls fn for every entry of dir in name order.
func (m *Manager) List(dir string, fn func(*tidy.Path) error) error {
	infos, err := afero.ReadDir(m.fs, dir)
	if err != nil {
		return fmt.Errorf("reading directory: %w", err)
	}
	for _, info := range infos {
		if err := fn(tidy.NewPath(filepath.Join(dir, info.Name()), info.IsDir(), info)); err != nil {
			return err
		}
	}
	return nil
}

// Walk visits every entry below root in lexical order. Unreadable
// subdirectories are skipped.
func (m *Manager) Walk(root string, fn func(*tidy.Path) error) error {
	return afero.Walk(m.fs, root, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			if p == root {
				return fmt.Errorf("walking directory: %w", err)
			}
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if p == root {
			return nil
		}
		return fn(tidy.NewPath(p, info.IsDir(), info))
	})
}

// Open opens a file for reading.
func (m *Manager) Open(path string) (io.ReadCloser, error) {
	return m.fs.Open(path)
}

func (m *Manager) MkdirAll(path string) error {
	return m.fs.MkdirAll(path, 0o755)
}

// Move renames src to dst. It refuses to replace an existing dst and falls
// back to copy and remove when the rename crosses devices.
func (m *Manager) Move(src, dst string) error {
	exists, err := m.Exists(dst)
	if err != nil {
		return err
	}
	if exists {
		return &fs.PathError{Op: "move", Path: dst, Err: fs.ErrExist}
	}

	err = m.fs.Rename(src, dst)
	if err == nil || !errors.Is(err, syscall.EXDEV) {
		return err
	}
	if _, err := m.Copy(src, dst); err != nil {
		return fmt.Errorf("copying across devices: %w", err)
	}
	return m.fs.Remove(src)
}

// Copy writes src to a temporary file next to dst and renames it into
// place. Permissions and modification time are preserved. An existing dst
// is never replaced.
func (m *Manager) Copy(src, dst string) (int64, error) {
	in, err := m.fs.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, &fs.PathError{Op: "copy", Path: src, Err: syscall.EISDIR}
	}

	tmp, err := afero.TempFile(m.fs, filepath.Dir(dst), ".tidy-*.tmp")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			tmp.Close()
			m.fs.Remove(tmpPath)
		}
	}()

	n, err := io.Copy(tmp, in)
	if err != nil {
		return 0, fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return 0, fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("closing temp file: %w", err)
	}
	if err := m.fs.Chmod(tmpPath, info.Mode().Perm()); err != nil {
		return 0, fmt.Errorf("setting permissions: %w", err)
	}
	if err := m.fs.Chtimes(tmpPath, info.ModTime(), info.ModTime()); err != nil {
		return 0, fmt.Errorf("setting modification time: %w", err)
	}
	exists, err := m.Exists(dst)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, &fs.PathError{Op: "copy", Path: dst, Err: fs.ErrExist}
	}
	if err := m.fs.Rename(tmpPath, dst); err != nil {
		return 0, fmt.Errorf("renaming temp file: %w", err)
	}
	success = true
	return n, nil
}

// Remove deletes a file or an empty directory.
func (m *Manager) Remove(path string) error {
	info, err := m.lstat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		names, err := afero.ReadDir(m.fs, path)
		if err != nil {
			return err
		}
		if len(names) > 0 {
			return &fs.PathError{Op: "remove", Path: path, Err: syscall.ENOTEMPTY}
		}
	}
	return m.fs.Remove(path)
}

func (m *Manager) Exists(path string) (bool, error) {
	_, err := m.lstat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// CreatedAt returns the birth time of path when the platform reports one,
// otherwise the modification time.
func (m *Manager) CreatedAt(path string, info fs.FileInfo) time.Time {
	if m.birthTime {
		if t, ok := birthTime(path, info); ok {
			return t
		}
	}
	return info.ModTime()
}

// Compile-time check that Manager implements tidy.FilesystemManager
var _ tidy.FilesystemManager = (*Manager)(nil)
