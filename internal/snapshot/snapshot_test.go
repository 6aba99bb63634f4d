package snapshot

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/spf13/afero"
)

// fakeSource writes a fixed image through afero, standing in for VACUUM INTO.
type fakeSource struct {
	fs      afero.Fs
	image   []byte
	version int64
}

func (f *fakeSource) BackupTo(path string) error {
	return afero.WriteFile(f.fs, path, f.image, 0o600)
}

func (f *fakeSource) LedgerVersion() (int64, error) { return f.version, nil }

// xorEncryptor is a reversible stand-in; the real ones live in internal/encryption.
type xorEncryptor struct{}

func (xorEncryptor) Setup(string) error { return nil }
func (xorEncryptor) IsConfigured() bool { return true }
func (xorEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	_, err = w.Write(xor(data))
	return err
}
func (xorEncryptor) Unlock(string) (DecryptionContext, error) { return xorEncryptor{}, nil }
func (xorEncryptor) Decrypt(r io.Reader, w io.Writer) error {
	return xorEncryptor{}.Encrypt(r, w)
}

func xor(data []byte) []byte {
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ 0x5a
	}
	return out
}

func TestSnapshotter_PushRestore(t *testing.T) {
	ctx := context.Background()
	fsys := afero.NewMemMapFs()
	store := NewMemoryStore()
	src := &fakeSource{fs: fsys, image: []byte("SQLite format 3 ledger"), version: 7}

	s := New(store, nil, fsys, "laptop")
	version, err := s.Push(ctx, src)
	if err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if version != 7 {
		t.Errorf("Push() version = %d, want 7", version)
	}
	if remote, _ := s.RemoteVersion(ctx); remote != 7 {
		t.Errorf("RemoteVersion() = %d, want 7", remote)
	}

	restored, err := s.Restore(ctx, "/home/user/.local/share/tidy/tidy.db", nil)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if restored != 7 {
		t.Errorf("Restore() version = %d, want 7", restored)
	}
	got, _ := afero.ReadFile(fsys, "/home/user/.local/share/tidy/tidy.db")
	if !bytes.Equal(got, src.image) {
		t.Errorf("restored image = %q, want %q", got, src.image)
	}
}

func TestSnapshotter_Encrypted(t *testing.T) {
	ctx := context.Background()
	fsys := afero.NewMemMapFs()
	store := NewMemoryStore()
	src := &fakeSource{fs: fsys, image: []byte("plain ledger"), version: 2}

	s := New(store, xorEncryptor{}, fsys, "")
	if _, err := s.Push(ctx, src); err != nil {
		t.Fatalf("Push() error = %v", err)
	}

	var stored bytes.Buffer
	if _, err := store.Get(ctx, "default", &stored); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if bytes.Equal(stored.Bytes(), src.image) {
		t.Error("stored snapshot is not encrypted")
	}

	if _, err := s.Restore(ctx, "/db/tidy.db", nil); err == nil {
		t.Error("Restore() without decryption context expected error")
	}

	if _, err := s.Restore(ctx, "/db/tidy.db", xorEncryptor{}); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	got, _ := afero.ReadFile(fsys, "/db/tidy.db")
	if !bytes.Equal(got, src.image) {
		t.Errorf("restored image = %q, want %q", got, src.image)
	}
}

func TestSnapshotter_CheckVersion(t *testing.T) {
	ctx := context.Background()
	fsys := afero.NewMemMapFs()
	store := NewMemoryStore()
	s := New(store, nil, fsys, "laptop")

	local := &fakeSource{fs: fsys, image: []byte("x"), version: 4}
	if err := s.CheckVersion(ctx, local); err != nil {
		t.Errorf("CheckVersion() on empty store error = %v", err)
	}

	ahead := &fakeSource{fs: fsys, image: []byte("y"), version: 9}
	if _, err := s.Push(ctx, ahead); err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if err := s.CheckVersion(ctx, local); !errors.Is(err, ErrBehind) {
		t.Errorf("CheckVersion() error = %v, want ErrBehind", err)
	}
	if err := s.CheckVersion(ctx, ahead); err != nil {
		t.Errorf("CheckVersion() at same version error = %v", err)
	}
}

func TestSnapshotter_RestoreMissing(t *testing.T) {
	s := New(NewMemoryStore(), nil, afero.NewMemMapFs(), "laptop")
	if _, err := s.Restore(context.Background(), "/db/tidy.db", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("Restore() error = %v, want ErrNotFound", err)
	}
}
