package tidy_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidy-go/internal/model"
	"tidy-go/internal/testutil"
	"tidy-go/internal/tidy"
)

func TestService_ExecuteUnified(t *testing.T) {
	ctx := context.Background()

	t.Run("moves every file to its destination", func(t *testing.T) {
		env := newEnv(t)
		seedDownloads(t, env)
		saveRule(t, env, extensionRule("Logs", "log", tidy.ActionMove, "/Logs"))

		result, err := env.Service.ExecuteUnified(ctx, downloads, tidy.UnifiedOptions{})
		require.NoError(t, err)

		assert.True(t, result.Success)
		assert.Equal(t, tidy.StatusCompleted, result.Status)
		assert.Equal(t, 4, result.FilesMoved)
		assert.Equal(t, 0, result.FilesSkipped)
		assert.Empty(t, result.Errors)
		assert.NotZero(t, result.HistoryID)

		assert.Equal(t, "log line", testutil.ReadFile(t, env.FS, "/Logs/app.log"))
		assert.True(t, testutil.Exists(t, env.FS, downloads+"/Images/photo.jpg"))
		assert.True(t, testutil.Exists(t, env.FS, downloads+"/Documents/report.pdf"))
		assert.True(t, testutil.Exists(t, env.FS, downloads+"/Documents/notes.txt"))
		assert.False(t, testutil.Exists(t, env.FS, downloads+"/app.log"))
		assert.True(t, testutil.Exists(t, env.FS, downloads+"/.hidden.jpg"))
		assert.True(t, testutil.Exists(t, env.FS, downloads+"/nested/deep.jpg"))

		entry, err := env.DB.FindHistoryEntry(result.HistoryID)
		require.NoError(t, err)
		assert.Equal(t, tidy.OpUnified, entry.OperationType)
		assert.Equal(t, 4, entry.FilesAffected)
		assert.Contains(t, entry.Details.CreatedDirs, downloads+"/Images")
	})

	t.Run("renames on conflict", func(t *testing.T) {
		env := newEnv(t)
		testutil.WriteFile(t, env.FS, downloads+"/report.pdf", "new", jan10)
		testutil.WriteFile(t, env.FS, downloads+"/Documents/report.pdf", "old", jan10)

		result, err := env.Service.ExecuteUnified(ctx, downloads, tidy.UnifiedOptions{Strategy: tidy.OverwriteRename})
		require.NoError(t, err)

		assert.True(t, result.Success)
		assert.Equal(t, 1, result.FilesMoved)
		assert.Empty(t, result.Errors)
		assert.Equal(t, "old", testutil.ReadFile(t, env.FS, downloads+"/Documents/report.pdf"))
		assert.Equal(t, "new", testutil.ReadFile(t, env.FS, downloads+"/Documents/report (1).pdf"))
		assert.False(t, testutil.Exists(t, env.FS, downloads+"/report.pdf"))
	})

	t.Run("skip leaves the source and reports a conflict", func(t *testing.T) {
		env := newEnv(t)
		testutil.WriteFile(t, env.FS, downloads+"/report.pdf", "new", jan10)
		testutil.WriteFile(t, env.FS, downloads+"/Documents/report.pdf", "old", jan10)

		result, err := env.Service.ExecuteUnified(ctx, downloads, tidy.UnifiedOptions{Strategy: tidy.OverwriteSkip})
		require.NoError(t, err)

		assert.False(t, result.Success)
		assert.Equal(t, 0, result.FilesMoved)
		assert.Equal(t, 1, result.FilesSkipped)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, tidy.KindNameConflict, result.Errors[0].Kind)
		assert.Zero(t, result.HistoryID, "nothing changed so nothing is recorded")
		assert.Equal(t, "new", testutil.ReadFile(t, env.FS, downloads+"/report.pdf"))
	})

	t.Run("overwrite trashes the existing target and undo restores both", func(t *testing.T) {
		env := newEnv(t)
		testutil.WriteFile(t, env.FS, downloads+"/report.pdf", "new", jan10)
		testutil.WriteFile(t, env.FS, downloads+"/Documents/report.pdf", "old", jan10)

		result, err := env.Service.ExecuteUnified(ctx, downloads, tidy.UnifiedOptions{Strategy: tidy.OverwriteOverwrite})
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, "new", testutil.ReadFile(t, env.FS, downloads+"/Documents/report.pdf"))

		undo, err := env.Service.UndoOperation(result.HistoryID)
		require.NoError(t, err)
		assert.True(t, undo.Success)
		assert.Equal(t, 1, undo.FilesRestored)
		assert.Equal(t, "new", testutil.ReadFile(t, env.FS, downloads+"/report.pdf"))
		assert.Equal(t, "old", testutil.ReadFile(t, env.FS, downloads+"/Documents/report.pdf"))
	})

	t.Run("excluded destinations are left alone", func(t *testing.T) {
		env := newEnv(t)
		seedDownloads(t, env)

		result, err := env.Service.ExecuteUnified(ctx, downloads, tidy.UnifiedOptions{
			ExcludedDestinations: []string{downloads + "/Images/"},
		})
		require.NoError(t, err)

		assert.Equal(t, 3, result.FilesMoved)
		assert.True(t, testutil.Exists(t, env.FS, downloads+"/photo.jpg"))
		assert.False(t, testutil.Exists(t, env.FS, downloads+"/Images"))
	})

	t.Run("relative excluded destinations resolve like rule destinations", func(t *testing.T) {
		env := newEnv(t)
		seedDownloads(t, env)
		saveRule(t, env, extensionRule("Logs", "log", tidy.ActionMove, "Logs"))

		result, err := env.Service.ExecuteUnified(ctx, downloads, tidy.UnifiedOptions{
			ExcludedDestinations: []string{"Logs"},
		})
		require.NoError(t, err)

		assert.Equal(t, 3, result.FilesMoved)
		assert.True(t, testutil.Exists(t, env.FS, downloads+"/app.log"))
		assert.False(t, testutil.Exists(t, env.FS, downloads+"/Logs"))
	})

	t.Run("delete moves to the trash", func(t *testing.T) {
		env := newEnv(t)
		testutil.WriteFile(t, env.FS, downloads+"/junk.tmp", "junk", jan10)
		saveRule(t, env, extensionRule("Temp files", "tmp", tidy.ActionDelete, ""))

		result, err := env.Service.ExecuteUnified(ctx, downloads, tidy.UnifiedOptions{})
		require.NoError(t, err)
		assert.Equal(t, 1, result.FilesMoved)
		assert.False(t, testutil.Exists(t, env.FS, downloads+"/junk.tmp"))

		items, err := env.Trash.List()
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, downloads+"/junk.tmp", items[0].OriginalPath)

		entry, err := env.DB.FindHistoryEntry(result.HistoryID)
		require.NoError(t, err)
		assert.Equal(t, model.ActionTrash, entry.Details.Changes[0].Action)

		_, err = env.Service.UndoOperation(result.HistoryID)
		require.NoError(t, err)
		assert.Equal(t, "junk", testutil.ReadFile(t, env.FS, downloads+"/junk.tmp"))
	})

	t.Run("permanent delete cannot be undone", func(t *testing.T) {
		env := newEnv(t)
		testutil.WriteFile(t, env.FS, downloads+"/junk.tmp", "junk", jan10)
		saveRule(t, env, extensionRule("Temp files", "tmp", tidy.ActionDelete, ""))

		result, err := env.Service.ExecuteUnified(ctx, downloads, tidy.UnifiedOptions{PermanentDelete: true})
		require.NoError(t, err)
		assert.Equal(t, 1, result.FilesMoved)
		assert.False(t, testutil.Exists(t, env.FS, downloads+"/junk.tmp"))

		items, err := env.Trash.List()
		require.NoError(t, err)
		assert.Empty(t, items)

		_, err = env.Service.UndoOperation(result.HistoryID)
		assert.True(t, errors.Is(err, tidy.ErrNotUndoable))
	})

	t.Run("copy keeps the source", func(t *testing.T) {
		env := newEnv(t)
		testutil.WriteFile(t, env.FS, downloads+"/app.log", "log line", jan10)
		saveRule(t, env, extensionRule("Backup logs", "log", tidy.ActionCopy, "/Backup"))

		result, err := env.Service.ExecuteUnified(ctx, downloads, tidy.UnifiedOptions{})
		require.NoError(t, err)
		assert.Equal(t, 1, result.FilesMoved)
		assert.True(t, testutil.Exists(t, env.FS, downloads+"/app.log"))
		assert.Equal(t, "log line", testutil.ReadFile(t, env.FS, "/Backup/app.log"))
	})

	t.Run("rename in place", func(t *testing.T) {
		env := newEnv(t)
		testutil.WriteFile(t, env.FS, downloads+"/photo.jpg", "jpeg", jan10)
		rule := extensionRule("Stamp photos", "jpg", tidy.ActionRename, "")
		rule.ActionRenamePattern = "{date}_{name}"
		saveRule(t, env, rule)

		result, err := env.Service.ExecuteUnified(ctx, downloads, tidy.UnifiedOptions{})
		require.NoError(t, err)
		assert.Equal(t, 1, result.FilesMoved)
		assert.True(t, testutil.Exists(t, env.FS, downloads+"/2024-01-10_photo.jpg"))
	})

	t.Run("cancelled before start", func(t *testing.T) {
		env := newEnv(t)
		seedDownloads(t, env)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		result, err := env.Service.ExecuteUnified(cctx, downloads, tidy.UnifiedOptions{})
		require.NoError(t, err)
		assert.Equal(t, tidy.StatusCancelled, result.Status)
		assert.False(t, result.Success)
		assert.Equal(t, 0, result.FilesMoved)
		assert.Zero(t, result.HistoryID)
		assert.True(t, testutil.Exists(t, env.FS, downloads+"/photo.jpg"))
	})

	t.Run("rejects unknown strategy", func(t *testing.T) {
		env := newEnv(t)
		seedDownloads(t, env)

		_, err := env.Service.ExecuteUnified(ctx, downloads, tidy.UnifiedOptions{Strategy: "clobber"})
		assert.Error(t, err)
	})
}

func TestService_ExecuteOrganization(t *testing.T) {
	env := newEnv(t)
	seedDownloads(t, env)

	result, err := env.Service.ExecuteOrganization(context.Background(), downloads, tidy.OrganizeOptions{DateSubfolders: true})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 4, result.FilesMoved)
	assert.True(t, testutil.Exists(t, env.FS, filepath.Join(downloads, "Images", "2024-01", "photo.jpg")))
	assert.True(t, testutil.Exists(t, env.FS, filepath.Join(downloads, "Others", "2024-01", "app.log")))

	entry, err := env.DB.FindHistoryEntry(result.HistoryID)
	require.NoError(t, err)
	assert.Equal(t, tidy.OpOrganize, entry.OperationType)
}

func TestService_ExecuteUnified_FollowsPreview(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t)
	testutil.WriteFile(t, env.FS, downloads+"/app.log", "log line", jan10)
	testutil.WriteFile(t, env.FS, downloads+"/report.pdf", "pdf", jan10)
	testutil.WriteFile(t, env.FS, downloads+"/photo.jpg", "jpeg", jan10)
	testutil.WriteFile(t, env.FS, downloads+"/notes.txt", "notes", jan10)
	testutil.WriteFile(t, env.FS, downloads+"/song.mp3", "mp3", jan10)
	testutil.WriteFile(t, env.FS, downloads+"/setup.zip", "zip", jan10)

	saveRule(t, env, extensionRule("Logs", "log", tidy.ActionMove, "/Logs"))
	saveRule(t, env, extensionRule("Backup pdfs", "pdf", tidy.ActionCopy, "/Backup"))
	stamp := extensionRule("Stamp photos", "jpg", tidy.ActionRename, "")
	stamp.ActionRenamePattern = "{date}_{name}"
	saveRule(t, env, stamp)
	dated := extensionRule("Dated archives", "zip", tidy.ActionMove, "Archives")
	dated.CreateDateSubfolder = true
	saveRule(t, env, dated)

	preview, err := env.Service.PreviewUnified(ctx, downloads)
	require.NoError(t, err)

	planned := make(map[string]string)
	for _, g := range preview.Groups {
		for _, e := range g.Files {
			_, dup := planned[e.File.Path]
			require.False(t, dup, "%s appears in more than one group", e.File.Path)
			planned[e.File.Path] = e.TargetPath
		}
	}
	require.Len(t, planned, 6)

	result, err := env.Service.ExecuteUnified(ctx, downloads, tidy.UnifiedOptions{})
	require.NoError(t, err)
	assert.True(t, result.Success)

	entry, err := env.DB.FindHistoryEntry(result.HistoryID)
	require.NoError(t, err)
	require.Len(t, entry.Details.Changes, len(planned))
	for _, c := range entry.Details.Changes {
		want, ok := planned[c.Source]
		require.True(t, ok, "unplanned change for %s", c.Source)
		assert.Equal(t, want, c.Destination, "destination of %s", c.Source)
		assert.True(t, testutil.Exists(t, env.FS, c.Destination))
	}
	assert.Equal(t, "/Backup/report.pdf", planned[downloads+"/report.pdf"])
	assert.Equal(t, downloads+"/2024-01-10_photo.jpg", planned[downloads+"/photo.jpg"])
	assert.Equal(t, filepath.Join(downloads, "Archives", "2024-01", "setup.zip"), planned[downloads+"/setup.zip"])
	assert.Equal(t, filepath.Join(downloads, "Music", "song.mp3"), planned[downloads+"/song.mp3"])
}
