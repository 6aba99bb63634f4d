package tidy_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidy-go/internal/model"
	"tidy-go/internal/testutil"
	"tidy-go/internal/tidy"
)

func TestService_MergeFolders(t *testing.T) {
	ctx := context.Background()

	t.Run("copies a file that only exists in the source", func(t *testing.T) {
		env := newEnv(t)
		photo := string(make([]byte, 1024*1024))
		testutil.WriteFile(t, env.FS, sourceDir+"/photo.jpg", photo, jan10)
		testutil.Mkdir(t, env.FS, targetDir)

		summary, err := env.Service.CompareFolders(ctx, sourceDir, targetDir)
		require.NoError(t, err)
		assert.Equal(t, 1, summary.OnlyInSource)

		result, err := env.Service.MergeFolders(ctx, sourceDir, targetDir, tidy.MergeOptions{
			Strategy:            tidy.MergeSkipExisting,
			IncludeOnlyInSource: true,
		})
		require.NoError(t, err)

		assert.True(t, result.Success)
		assert.Equal(t, 1, result.FilesCopied)
		assert.Equal(t, int64(1024*1024), result.BytesTransferred)
		assert.Equal(t, "1.0MB", result.BytesTransferredFormatted)
		assert.True(t, testutil.Exists(t, env.FS, targetDir+"/photo.jpg"))
		assert.True(t, testutil.Exists(t, env.FS, sourceDir+"/photo.jpg"))
	})

	t.Run("skip_existing is idempotent", func(t *testing.T) {
		env := newEnv(t)
		seedCompare(t, env)
		opts := tidy.MergeOptions{Strategy: tidy.MergeSkipExisting, IncludeOnlyInSource: true, IncludeDifferent: true}

		first, err := env.Service.MergeFolders(ctx, sourceDir, targetDir, opts)
		require.NoError(t, err)
		assert.Equal(t, 1, first.FilesCopied)
		assert.Equal(t, 0, first.FilesOverwritten)
		assert.Equal(t, "tgt!", testutil.ReadFile(t, env.FS, targetDir+"/changed.txt"))
		assert.Equal(t, "jpeg", testutil.ReadFile(t, env.FS, targetDir+"/photos/new.jpg"))

		second, err := env.Service.MergeFolders(ctx, sourceDir, targetDir, opts)
		require.NoError(t, err)
		assert.Equal(t, 0, second.FilesCopied)
		assert.Equal(t, 0, second.FilesOverwritten)
		assert.Zero(t, second.HistoryID)
	})

	t.Run("overwrite_all replaces different files", func(t *testing.T) {
		env := newEnv(t)
		seedCompare(t, env)

		result, err := env.Service.MergeFolders(ctx, sourceDir, targetDir, tidy.MergeOptions{
			Strategy:         tidy.MergeOverwriteAll,
			IncludeDifferent: true,
		})
		require.NoError(t, err)

		assert.Equal(t, 1, result.FilesOverwritten)
		assert.Equal(t, 0, result.FilesCopied)
		assert.Equal(t, 3, result.FilesSkipped, "identical, only_in_source and only_in_target are not selected")
		assert.Equal(t, "src!", testutil.ReadFile(t, env.FS, targetDir+"/changed.txt"))
		assert.False(t, testutil.Exists(t, env.FS, targetDir+"/photos/new.jpg"))

		undo, err := env.Service.UndoOperation(result.HistoryID)
		require.NoError(t, err)
		assert.True(t, undo.Success)
		assert.Equal(t, "tgt!", testutil.ReadFile(t, env.FS, targetDir+"/changed.txt"))
	})

	t.Run("overwrite_newer and overwrite_older compare modification times", func(t *testing.T) {
		for _, tt := range []struct {
			strategy tidy.MergeStrategy
			srcTime  time.Time
			want     string
		}{
			{tidy.MergeOverwriteNewer, jan10.Add(time.Hour), "src!"},
			{tidy.MergeOverwriteNewer, jan10.Add(-time.Hour), "tgt!"},
			{tidy.MergeOverwriteOlder, jan10.Add(-time.Hour), "src!"},
			{tidy.MergeOverwriteOlder, jan10.Add(time.Hour), "tgt!"},
		} {
			env := newEnv(t)
			testutil.WriteFile(t, env.FS, sourceDir+"/changed.txt", "src!", tt.srcTime)
			testutil.WriteFile(t, env.FS, targetDir+"/changed.txt", "tgt!", jan10)

			_, err := env.Service.MergeFolders(ctx, sourceDir, targetDir, tidy.MergeOptions{
				Strategy:         tt.strategy,
				IncludeDifferent: true,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, testutil.ReadFile(t, env.FS, targetDir+"/changed.txt"), "%s at %v", tt.strategy, tt.srcTime)
		}
	})

	t.Run("rename keeps both versions", func(t *testing.T) {
		env := newEnv(t)
		seedCompare(t, env)

		result, err := env.Service.MergeFolders(ctx, sourceDir, targetDir, tidy.MergeOptions{
			Strategy:         tidy.MergeRename,
			IncludeDifferent: true,
		})
		require.NoError(t, err)

		assert.Equal(t, 1, result.FilesCopied)
		assert.Equal(t, "tgt!", testutil.ReadFile(t, env.FS, targetDir+"/changed.txt"))
		assert.Equal(t, "src!", testutil.ReadFile(t, env.FS, targetDir+"/changed (1).txt"))
	})

	t.Run("deleteSourceAfter moves and undo puts it back", func(t *testing.T) {
		env := newEnv(t)
		seedCompare(t, env)

		result, err := env.Service.MergeFolders(ctx, sourceDir, targetDir, tidy.MergeOptions{
			Strategy:            tidy.MergeSkipExisting,
			IncludeOnlyInSource: true,
			DeleteSourceAfter:   true,
		})
		require.NoError(t, err)
		assert.Equal(t, 1, result.FilesCopied)
		assert.False(t, testutil.Exists(t, env.FS, sourceDir+"/photos/new.jpg"))
		assert.True(t, testutil.Exists(t, env.FS, targetDir+"/photos/new.jpg"))

		entry, err := env.DB.FindHistoryEntry(result.HistoryID)
		require.NoError(t, err)
		assert.Equal(t, tidy.OpMerge, entry.OperationType)
		assert.Equal(t, model.ActionMove, entry.Details.Changes[0].Action)

		_, err = env.Service.UndoOperation(result.HistoryID)
		require.NoError(t, err)
		assert.True(t, testutil.Exists(t, env.FS, sourceDir+"/photos/new.jpg"))
		assert.False(t, testutil.Exists(t, env.FS, targetDir+"/photos/new.jpg"))
		assert.False(t, testutil.Exists(t, env.FS, targetDir+"/photos"), "created directory is removed")
	})

	t.Run("creates a missing target", func(t *testing.T) {
		env := newEnv(t)
		testutil.WriteFile(t, env.FS, sourceDir+"/a.txt", "a", jan10)

		result, err := env.Service.MergeFolders(ctx, sourceDir, "/data/fresh", tidy.MergeOptions{IncludeOnlyInSource: true})
		require.NoError(t, err)
		assert.Equal(t, 1, result.FilesCopied)
		assert.Equal(t, "a", testutil.ReadFile(t, env.FS, "/data/fresh/a.txt"))
	})

	t.Run("rejects unknown strategy", func(t *testing.T) {
		env := newEnv(t)
		seedCompare(t, env)

		_, err := env.Service.MergeFolders(ctx, sourceDir, targetDir, tidy.MergeOptions{Strategy: "newest_wins"})
		assert.Error(t, err)
	})
}

func TestService_MergeFolders_ConcurrentRename(t *testing.T) {
	env := testutil.NewEnv(t, tidy.Options{Workers: 16})
	const n = 40
	for i := 0; i < n; i++ {
		base := fmt.Sprintf("f%02d", i)
		testutil.WriteFile(t, env.FS, sourceDir+"/"+base+".txt", "source "+base, jan10)
		testutil.WriteFile(t, env.FS, targetDir+"/"+base+".txt", "target "+base, jan10)
		testutil.WriteFile(t, env.FS, sourceDir+"/"+base+" (1).txt", "only in source "+base, jan10)
	}

	result, err := env.Service.MergeFolders(context.Background(), sourceDir, targetDir, tidy.MergeOptions{
		Strategy:            tidy.MergeRename,
		IncludeOnlyInSource: true,
		IncludeDifferent:    true,
		DeleteSourceAfter:   true,
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 2*n, result.FilesCopied)

	for i := 0; i < n; i++ {
		base := fmt.Sprintf("f%02d", i)
		assert.Equal(t, "target "+base, testutil.ReadFile(t, env.FS, targetDir+"/"+base+".txt"))
		assert.Equal(t, "only in source "+base, testutil.ReadFile(t, env.FS, targetDir+"/"+base+" (1).txt"))
		assert.Equal(t, "source "+base, testutil.ReadFile(t, env.FS, targetDir+"/"+base+" (2).txt"))
	}
	entries, err := afero.ReadDir(env.FS, targetDir)
	require.NoError(t, err)
	assert.Len(t, entries, 3*n)

	entry, err := env.DB.FindHistoryEntry(result.HistoryID)
	require.NoError(t, err)
	seen := make(map[string]bool)
	for _, c := range entry.Details.Changes {
		assert.False(t, seen[c.Destination], "destination %s recorded twice", c.Destination)
		seen[c.Destination] = true
	}
}

func TestService_MergeFolders_NothingSelected(t *testing.T) {
	env := newEnv(t)
	testutil.WriteFile(t, env.FS, sourceDir+"/a.txt", "a", jan10)

	result, err := env.Service.MergeFolders(context.Background(), sourceDir, "/data/fresh", tidy.MergeOptions{})
	require.NoError(t, err)

	assert.Equal(t, 0, result.FilesCopied)
	assert.Equal(t, 1, result.FilesSkipped)
	assert.Zero(t, result.HistoryID)
	assert.False(t, testutil.Exists(t, env.FS, "/data/fresh"), "created target is removed")
}
