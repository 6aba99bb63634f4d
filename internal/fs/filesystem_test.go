package fs_test

import (
	"errors"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"

	"tidy-go/internal/fs"
	"tidy-go/internal/testutil"
	"tidy-go/internal/tidy"
)

var mtime = time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

func setup(t *testing.T) (afero.Fs, *fs.Manager) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	return fsys, fs.NewManager(fsys)
}

func TestManager_Resolve(t *testing.T) {
	fsys, mgr := setup(t)
	testutil.WriteFile(t, fsys, "/data/a.txt", "a", mtime)

	p, err := mgr.Resolve("/data/a.txt")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if p.IsDir() {
		t.Error("IsDir() = true, want false")
	}
	if p.Name() != "a.txt" {
		t.Errorf("Name() = %q, want a.txt", p.Name())
	}

	dir, err := mgr.Resolve("/data/")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !dir.IsDir() || dir.String() != "/data" {
		t.Errorf("Resolve(/data/) = %q dir=%v", dir.String(), dir.IsDir())
	}

	if _, err := mgr.Resolve("/data/missing"); err == nil {
		t.Error("Resolve() of missing path error = nil")
	}
}

func TestManager_List(t *testing.T) {
	fsys, mgr := setup(t)
	testutil.WriteFile(t, fsys, "/data/b.txt", "b", mtime)
	testutil.WriteFile(t, fsys, "/data/a.txt", "a", mtime)
	testutil.WriteFile(t, fsys, "/data/sub/c.txt", "c", mtime)

	var names []string
	err := mgr.List("/data", func(p *tidy.Path) error {
		names = append(names, p.Name())
		return nil
	})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{"a.txt", "b.txt", "sub"}
	if len(names) != len(want) {
		t.Fatalf("List() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("List()[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestManager_Walk(t *testing.T) {
	fsys, mgr := setup(t)
	testutil.WriteFile(t, fsys, "/data/a.txt", "a", mtime)
	testutil.WriteFile(t, fsys, "/data/skip/hidden.txt", "h", mtime)
	testutil.WriteFile(t, fsys, "/data/keep/b.txt", "b", mtime)

	var seen []string
	err := mgr.Walk("/data", func(p *tidy.Path) error {
		if p.IsDir() && p.Name() == "skip" {
			return filepath.SkipDir
		}
		seen = append(seen, p.String())
		return nil
	})
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	want := []string{"/data/a.txt", "/data/keep", "/data/keep/b.txt"}
	if len(seen) != len(want) {
		t.Fatalf("Walk() visited %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("Walk()[%d] = %q, want %q", i, seen[i], want[i])
		}
	}

	if err := mgr.Walk("/nowhere", func(*tidy.Path) error { return nil }); err == nil {
		t.Error("Walk() of missing root error = nil")
	}
}

func TestManager_Move(t *testing.T) {
	t.Run("renames", func(t *testing.T) {
		fsys, mgr := setup(t)
		testutil.WriteFile(t, fsys, "/data/a.txt", "a", mtime)
		testutil.Mkdir(t, fsys, "/data/dest")

		if err := mgr.Move("/data/a.txt", "/data/dest/a.txt"); err != nil {
			t.Fatalf("Move() error = %v", err)
		}
		if testutil.Exists(t, fsys, "/data/a.txt") {
			t.Error("source still exists")
		}
		if got := testutil.ReadFile(t, fsys, "/data/dest/a.txt"); got != "a" {
			t.Errorf("dest content = %q, want a", got)
		}
	})

	t.Run("refuses to replace", func(t *testing.T) {
		fsys, mgr := setup(t)
		testutil.WriteFile(t, fsys, "/data/a.txt", "a", mtime)
		testutil.WriteFile(t, fsys, "/data/b.txt", "b", mtime)

		err := mgr.Move("/data/a.txt", "/data/b.txt")
		if !errors.Is(err, iofs.ErrExist) {
			t.Fatalf("Move() error = %v, want ErrExist", err)
		}
		if got := testutil.ReadFile(t, fsys, "/data/b.txt"); got != "b" {
			t.Errorf("target content = %q, want b", got)
		}
	})
}

func TestManager_Copy(t *testing.T) {
	fsys, mgr := setup(t)
	testutil.WriteFile(t, fsys, "/data/a.txt", "hello", mtime)
	testutil.Mkdir(t, fsys, "/backup")

	n, err := mgr.Copy("/data/a.txt", "/backup/a.txt")
	if err != nil {
		t.Fatalf("Copy() error = %v", err)
	}
	if n != 5 {
		t.Errorf("Copy() = %d bytes, want 5", n)
	}
	if got := testutil.ReadFile(t, fsys, "/backup/a.txt"); got != "hello" {
		t.Errorf("copy content = %q", got)
	}
	info, err := fsys.Stat("/backup/a.txt")
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if !info.ModTime().Equal(mtime) {
		t.Errorf("ModTime = %v, want %v", info.ModTime(), mtime)
	}
	if !testutil.Exists(t, fsys, "/data/a.txt") {
		t.Error("source removed by Copy()")
	}

	entries, err := afero.ReadDir(fsys, "/backup")
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("backup dir has %d entries, want 1 (no temp leftovers)", len(entries))
	}

	if _, err := mgr.Copy("/data", "/backup/data"); err == nil {
		t.Error("Copy() of a directory error = nil")
	}
}

func TestManager_CopyNeverReplaces(t *testing.T) {
	fsys, mgr := setup(t)
	testutil.WriteFile(t, fsys, "/data/a.txt", "new", mtime)
	testutil.WriteFile(t, fsys, "/backup/a.txt", "old", mtime)

	_, err := mgr.Copy("/data/a.txt", "/backup/a.txt")
	if !errors.Is(err, iofs.ErrExist) {
		t.Fatalf("Copy() error = %v, want ErrExist", err)
	}
	if got := testutil.ReadFile(t, fsys, "/backup/a.txt"); got != "old" {
		t.Errorf("target content = %q, want old", got)
	}
	entries, err := afero.ReadDir(fsys, "/backup")
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("backup dir has %d entries, want 1", len(entries))
	}
}

func TestManager_Remove(t *testing.T) {
	fsys, mgr := setup(t)
	testutil.WriteFile(t, fsys, "/data/full/a.txt", "a", mtime)
	testutil.Mkdir(t, fsys, "/data/empty")

	if err := mgr.Remove("/data/full"); tidy.KindOf(err) != tidy.KindDirectoryNotEmpty {
		t.Errorf("Remove(non-empty) kind = %q, want DirectoryNotEmpty (err %v)", tidy.KindOf(err), err)
	}
	if err := mgr.Remove("/data/empty"); err != nil {
		t.Errorf("Remove(empty) error = %v", err)
	}
	if err := mgr.Remove("/data/full/a.txt"); err != nil {
		t.Errorf("Remove(file) error = %v", err)
	}
	if err := mgr.Remove("/data/full/a.txt"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Remove(missing) error = %v, want ErrNotExist", err)
	}
}

func TestManager_ExistsAndOpen(t *testing.T) {
	fsys, mgr := setup(t)
	testutil.WriteFile(t, fsys, "/data/a.txt", "abc", mtime)

	ok, err := mgr.Exists("/data/a.txt")
	if err != nil || !ok {
		t.Errorf("Exists() = %v, %v; want true, nil", ok, err)
	}
	ok, err = mgr.Exists("/data/b.txt")
	if err != nil || ok {
		t.Errorf("Exists(missing) = %v, %v; want false, nil", ok, err)
	}

	rc, err := mgr.Open("/data/a.txt")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil || string(data) != "abc" {
		t.Errorf("ReadAll() = %q, %v", data, err)
	}

	info, err := fsys.Stat("/data/a.txt")
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if got := mgr.CreatedAt("/data/a.txt", info); !got.Equal(mtime) {
		t.Errorf("CreatedAt() = %v, want modification time %v", got, mtime)
	}
}
