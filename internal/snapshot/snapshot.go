package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// ErrBehind is returned by CheckVersion when the store holds a newer ledger
// than the local database.
var ErrBehind = errors.New("local ledger is behind the snapshot store")

// Source produces consistent images of the local database.
type Source interface {
	BackupTo(path string) error
	LedgerVersion() (int64, error)
}

// Snapshotter pushes and restores database images through a Store.
type Snapshotter struct {
	store Store
	enc   Encryptor
	fs    afero.Fs
	name  string
}

// New creates a Snapshotter. enc may be nil for plaintext snapshots.
func New(store Store, enc Encryptor, fsys afero.Fs, name string) *Snapshotter {
	if name == "" {
		name = "default"
	}
	return &Snapshotter{store: store, enc: enc, fs: fsys, name: name}
}

// Push uploads an image of src versioned by its ledger version.
func (s *Snapshotter) Push(ctx context.Context, src Source) (int64, error) {
	version, err := src.LedgerVersion()
	if err != nil {
		return 0, err
	}

	tmpDir, err := afero.TempDir(s.fs, "", "tidy-snapshot-")
	if err != nil {
		return 0, fmt.Errorf("creating temp dir: %w", err)
	}
	defer s.fs.RemoveAll(tmpDir)

	image := filepath.Join(tmpDir, "ledger.db")
	if err := src.BackupTo(image); err != nil {
		return 0, err
	}
	if s.enc != nil {
		if image, err = s.encrypt(image); err != nil {
			return 0, err
		}
	}

	f, err := s.fs.Open(image)
	if err != nil {
		return 0, fmt.Errorf("opening snapshot image: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat snapshot image: %w", err)
	}

	if err := s.store.Put(ctx, s.name, f, info.Size(), version); err != nil {
		return 0, fmt.Errorf("storing snapshot: %w", err)
	}
	return version, nil
}

func (s *Snapshotter) encrypt(image string) (string, error) {
	in, err := s.fs.Open(image)
	if err != nil {
		return "", fmt.Errorf("opening snapshot image: %w", err)
	}
	defer in.Close()

	encrypted := image + ".age"
	out, err := s.fs.OpenFile(encrypted, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return "", fmt.Errorf("creating encrypted image: %w", err)
	}
	if err := s.enc.Encrypt(in, out); err != nil {
		out.Close()
		return "", fmt.Errorf("encrypting snapshot: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("closing encrypted image: %w", err)
	}
	return encrypted, nil
}

// RemoteVersion returns the version held by the store, 0 when empty.
func (s *Snapshotter) RemoteVersion(ctx context.Context) (int64, error) {
	return s.store.Version(ctx, s.name)
}

// CheckVersion fails with ErrBehind when the store is ahead of src.
func (s *Snapshotter) CheckVersion(ctx context.Context, src Source) error {
	remote, err := s.RemoteVersion(ctx)
	if err != nil {
		return fmt.Errorf("checking remote ledger version: %w", err)
	}
	local, err := src.LedgerVersion()
	if err != nil {
		return fmt.Errorf("checking local ledger version: %w", err)
	}
	if remote > local {
		return fmt.Errorf("%w (local=%d, remote=%d): run `tidy snapshot restore`", ErrBehind, local, remote)
	}
	return nil
}

// Restore replaces dest with the stored image. dec is required when the
// snapshots are encrypted. The database at dest must not be open.
func (s *Snapshotter) Restore(ctx context.Context, dest string, dec DecryptionContext) (int64, error) {
	var buf bytes.Buffer
	version, err := s.store.Get(ctx, s.name, &buf)
	if err != nil {
		return 0, fmt.Errorf("fetching snapshot: %w", err)
	}
	if s.enc != nil && dec == nil {
		return 0, fmt.Errorf("snapshot is encrypted: unlock the private key first")
	}

	if err := s.fs.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, fmt.Errorf("creating database directory: %w", err)
	}
	tmp, err := afero.TempFile(s.fs, filepath.Dir(dest), ".restore-*")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if s.enc != nil {
		err = dec.Decrypt(&buf, tmp)
	} else {
		_, err = io.Copy(tmp, &buf)
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = s.fs.Rename(tmpPath, dest)
	}
	if err != nil {
		s.fs.Remove(tmpPath)
		return 0, fmt.Errorf("restoring snapshot: %w", err)
	}
	return version, nil
}
