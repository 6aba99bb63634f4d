package trash

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"

	"tidy-go/internal/tidy"
)

const infoLayout = "2006-01-02T15:04:05"

// Trash is a freedesktop-style trash directory:
//
//	<dir>/
//	  files/<id>             (the trashed file)
//	  info/<id>.trashinfo    (original path and deletion date)
type Trash struct {
	fs       afero.Fs
	mover    tidy.FilesystemManager
	dir      string
	filesDir string
	infoDir  string
	idgen    tidy.IDGenerator
	clock    tidy.Clock
}

// Item describes one trashed file.
type Item struct {
	ID           string    `json:"id" yaml:"id"`
	OriginalPath string    `json:"originalPath" yaml:"originalPath"`
	DeletedAt    time.Time `json:"deletedAt" yaml:"deletedAt"`
}

// New creates a Trash rooted at dir. Files are moved in and out through
// mover so that trashing across devices works.
func New(fsys afero.Fs, mover tidy.FilesystemManager, dir string, idgen tidy.IDGenerator, clock tidy.Clock) (*Trash, error) {
	t := &Trash{
		fs:       fsys,
		mover:    mover,
		dir:      dir,
		filesDir: filepath.Join(dir, "files"),
		infoDir:  filepath.Join(dir, "info"),
		idgen:    idgen,
		clock:    clock,
	}
	for _, d := range []string{t.filesDir, t.infoDir} {
		if err := fsys.MkdirAll(d, 0o700); err != nil {
			return nil, fmt.Errorf("creating trash directory: %w", err)
		}
	}
	return t, nil
}

// Put moves path into the trash and returns the item ID.
func (t *Trash) Put(path string) (string, error) {
	id := t.idgen.New()
	info := fmt.Sprintf("[Trash Info]\nPath=%s\nDeletionDate=%s\n", path, t.clock.Now().Format(infoLayout))
	infoPath := t.infoPath(id)
	if err := t.writeFile(infoPath, []byte(info)); err != nil {
		return "", err
	}
	if err := t.mover.Move(path, filepath.Join(t.filesDir, id)); err != nil {
		t.fs.Remove(infoPath)
		return "", fmt.Errorf("moving %s to trash: %w", path, err)
	}
	return id, nil
}

// Restore moves item id back to dest. It never replaces an existing file.
func (t *Trash) Restore(id, dest string) error {
	if err := validID(id); err != nil {
		return err
	}
	if err := t.mover.Move(filepath.Join(t.filesDir, id), dest); err != nil {
		return fmt.Errorf("restoring trash item %s: %w", id, err)
	}
	if err := t.fs.Remove(t.infoPath(id)); err != nil && !isNotExist(err) {
		return fmt.Errorf("removing trash info %s: %w", id, err)
	}
	return nil
}

// Exists reports whether item id is still in the trash.
func (t *Trash) Exists(id string) (bool, error) {
	if err := validID(id); err != nil {
		return false, err
	}
	return afero.Exists(t.fs, filepath.Join(t.filesDir, id))
}

// List returns the trashed items, oldest first.
func (t *Trash) List() ([]Item, error) {
	infos, err := afero.ReadDir(t.fs, t.infoDir)
	if err != nil {
		return nil, fmt.Errorf("reading trash: %w", err)
	}
	var items []Item
	for _, fi := range infos {
		id, ok := strings.CutSuffix(fi.Name(), ".trashinfo")
		if !ok {
			continue
		}
		data, err := afero.ReadFile(t.fs, filepath.Join(t.infoDir, fi.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading trash info %s: %w", id, err)
		}
		item := parseInfo(data)
		item.ID = id
		items = append(items, item)
	}
	sortItems(items)
	return items, nil
}

func parseInfo(data []byte) Item {
	var item Item
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), "=")
		if !ok {
			continue
		}
		switch key {
		case "Path":
			item.OriginalPath = value
		case "DeletionDate":
			if t, err := time.ParseInLocation(infoLayout, value, time.Local); err == nil {
				item.DeletedAt = t
			}
		}
	}
	return item
}

func sortItems(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].DeletedAt.Before(items[j].DeletedAt)
	})
}

func (t *Trash) infoPath(id string) string {
	return filepath.Join(t.infoDir, id+".trashinfo")
}

// writeFile writes data to path using an atomic write (temp file + rename).
func (t *Trash) writeFile(path string, data []byte) error {
	tmp, err := afero.TempFile(t.fs, filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			t.fs.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := t.fs.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	success = true
	return nil
}

func validID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("invalid trash id %q", id)
	}
	return nil
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// Compile-time check that Trash implements tidy.Trash
var _ tidy.Trash = (*Trash)(nil)
