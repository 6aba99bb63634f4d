package testutil

import (
	"testing"

	"github.com/spf13/afero"

	"tidy-go/internal/database"
	"tidy-go/internal/fs"
	"tidy-go/internal/tidy"
	"tidy-go/internal/trash"
)

// TrashDir is where the test trash lives on the in-memory filesystem.
const TrashDir = "/var/tidy/trash"

// Env is a fully wired engine over an in-memory filesystem and database.
type Env struct {
	FS      afero.Fs
	Manager *fs.Manager
	Trash   *trash.Trash
	DB      *database.SQLiteDatabase
	Clock   *StubClock
	IDs     *StubIDGenerator
	Service *tidy.Service
}

// NewEnv wires a Service with opts on top of afero.MemMapFs.
func NewEnv(t *testing.T, opts tidy.Options) *Env {
	t.Helper()

	fsys := afero.NewMemMapFs()
	mgr := fs.NewManager(fsys)
	clock := FixedClock()
	ids := NewStubIDGenerator()

	tr, err := trash.New(fsys, mgr, TrashDir, ids, clock)
	if err != nil {
		t.Fatalf("creating trash: %v", err)
	}
	db := NewTestDatabase(t)

	svc := tidy.NewService(db, mgr, tr, tidy.NewNopLogger(), clock, ids, opts)
	return &Env{
		FS:      fsys,
		Manager: mgr,
		Trash:   tr,
		DB:      db,
		Clock:   clock,
		IDs:     ids,
		Service: svc,
	}
}
