package tidy_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidy-go/internal/model"
	"tidy-go/internal/tidy"
)

func fileAt(name string, mtime time.Time) *tidy.FileRecord {
	return &tidy.FileRecord{
		Path:       filepath.Join(downloads, name),
		Name:       name,
		Extension:  tidy.ExtensionOf(name),
		Size:       100,
		ModifiedAt: mtime,
		CreatedAt:  mtime,
	}
}

func TestRuleSet_Resolve(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	logs := extensionRule("Logs", "log", tidy.ActionMove, "/Logs")
	logs.ID = 1

	t.Run("custom rule wins over category default", func(t *testing.T) {
		defaults := seededDefaults()
		defaults[7].Destination = "/Other"
		rs := tidy.NewRuleSet([]*model.Rule{logs}, defaults, nil, nil, now, "")

		res, ok := rs.Resolve(fileAt("app.log", jan10), downloads)
		require.True(t, ok)
		assert.Equal(t, "/Logs", res.Destination)
		assert.Equal(t, "/Logs/app.log", res.TargetPath())
		assert.Equal(t, tidy.MatchCustom, res.MatchType)
		assert.Equal(t, int64(1), res.RuleID)
		assert.Equal(t, model.CategoryOthers, res.Category)

		res, ok = rs.Resolve(fileAt("data.bin", jan10), downloads)
		require.True(t, ok)
		assert.Equal(t, "/Other", res.Destination)
		assert.Equal(t, tidy.MatchDefault, res.MatchType)
	})

	t.Run("falls back to category default under the source", func(t *testing.T) {
		rs := tidy.NewRuleSet([]*model.Rule{logs}, seededDefaults(), nil, nil, now, "")

		res, ok := rs.Resolve(fileAt("photo.jpg", jan10), downloads)
		require.True(t, ok)
		assert.Equal(t, filepath.Join(downloads, "Images"), res.Destination)
		assert.Equal(t, model.CategoryImages, res.Category)
		assert.Equal(t, "images", res.RuleName)
	})

	t.Run("orders by priority then id", func(t *testing.T) {
		late := extensionRule("late", "log", tidy.ActionMove, "/Late")
		late.ID, late.Priority = 1, 5
		early := extensionRule("early", "log", tidy.ActionMove, "/Early")
		early.ID, early.Priority = 2, 0
		tie := extensionRule("tie", "log", tidy.ActionMove, "/Tie")
		tie.ID, tie.Priority = 3, 0

		rs := tidy.NewRuleSet([]*model.Rule{late, tie, early}, seededDefaults(), nil, nil, now, "")
		res, ok := rs.Resolve(fileAt("app.log", jan10), downloads)
		require.True(t, ok)
		assert.Equal(t, "early", res.RuleName)
	})

	t.Run("skips disabled custom rules", func(t *testing.T) {
		off := *logs
		off.Enabled = false
		rs := tidy.NewRuleSet([]*model.Rule{&off}, seededDefaults(), nil, nil, now, "")

		res, ok := rs.Resolve(fileAt("app.log", jan10), downloads)
		require.True(t, ok)
		assert.Equal(t, tidy.MatchDefault, res.MatchType)
	})

	t.Run("disabled default means no destination", func(t *testing.T) {
		defaults := seededDefaults()
		defaults[0].Enabled = false
		rs := tidy.NewRuleSet(nil, defaults, nil, nil, now, "")

		_, ok := rs.Resolve(fileAt("photo.jpg", jan10), downloads)
		assert.False(t, ok)
	})

	t.Run("blank default destination uses category folder", func(t *testing.T) {
		defaults := seededDefaults()
		defaults[1].Destination = "  "
		rs := tidy.NewRuleSet(nil, defaults, nil, nil, now, "")

		res, ok := rs.Resolve(fileAt("report.pdf", jan10), downloads)
		require.True(t, ok)
		assert.Equal(t, filepath.Join(downloads, "Documents"), res.Destination)
	})

	t.Run("date subfolder", func(t *testing.T) {
		defaults := seededDefaults()
		defaults[0].CreateDateSubfolder = true
		march := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)

		rs := tidy.NewRuleSet(nil, defaults, nil, nil, now, "")
		res, ok := rs.Resolve(fileAt("photo.jpg", march), downloads)
		require.True(t, ok)
		assert.Equal(t, filepath.Join(downloads, "Images", "2024-03"), res.Destination)

		rs = tidy.NewRuleSet(nil, defaults, nil, nil, now, "YYYY/MM")
		res, ok = rs.Resolve(fileAt("photo.jpg", march), downloads)
		require.True(t, ok)
		assert.Equal(t, filepath.Join(downloads, "Images", "2024", "03"), res.Destination)
	})

	t.Run("relative custom destination is anchored at the source", func(t *testing.T) {
		rel := extensionRule("rel", "log", tidy.ActionCopy, "Sorted/Logs")
		rel.ID = 4
		rs := tidy.NewRuleSet([]*model.Rule{rel}, seededDefaults(), nil, nil, now, "")

		res, ok := rs.Resolve(fileAt("app.log", jan10), downloads)
		require.True(t, ok)
		assert.Equal(t, filepath.Join(downloads, "Sorted", "Logs"), res.Destination)
		assert.Equal(t, tidy.ActionCopy, res.ActionType)
	})

	t.Run("delete goes to the trash", func(t *testing.T) {
		del := extensionRule("tmp", "tmp", tidy.ActionDelete, "")
		del.ID = 5
		rs := tidy.NewRuleSet([]*model.Rule{del}, seededDefaults(), nil, nil, now, "")

		res, ok := rs.Resolve(fileAt("junk.tmp", jan10), downloads)
		require.True(t, ok)
		assert.Equal(t, tidy.TrashDestination, res.Destination)
		assert.Empty(t, res.TargetPath())
	})

	t.Run("rename stays in place", func(t *testing.T) {
		ren := extensionRule("stamp", "jpg", tidy.ActionRename, "")
		ren.ID = 6
		ren.ActionRenamePattern = "{date}_{name}"
		rs := tidy.NewRuleSet([]*model.Rule{ren}, seededDefaults(), nil, nil, now, "")

		res, ok := rs.Resolve(fileAt("photo.jpg", jan10), downloads)
		require.True(t, ok)
		assert.Equal(t, downloads, res.Destination)
		assert.Equal(t, "2024-01-10_photo.jpg", res.TargetName)
	})

	t.Run("OR logic", func(t *testing.T) {
		either := &model.Rule{
			ID:      7,
			Name:    "either",
			Enabled: true,
			Conditions: []model.Condition{
				{Field: tidy.FieldName, Operator: tidy.OpStartsWith, Value: "invoice"},
				{Field: tidy.FieldSize, Operator: tidy.OpGreaterThan, Value: "1GB"},
			},
			ConditionLogic:    "OR",
			ActionType:        tidy.ActionMove,
			ActionDestination: "/Invoices",
		}
		rs := tidy.NewRuleSet([]*model.Rule{either}, seededDefaults(), nil, nil, now, "")

		res, ok := rs.Resolve(fileAt("invoice-12.pdf", jan10), downloads)
		require.True(t, ok)
		assert.Equal(t, "/Invoices", res.Destination)

		res, ok = rs.Resolve(fileAt("receipt.pdf", jan10), downloads)
		require.True(t, ok)
		assert.Equal(t, tidy.MatchDefault, res.MatchType)
	})

	t.Run("extension mapping changes the default", func(t *testing.T) {
		mappings := []*model.ExtensionMapping{{Extension: ".log", Category: model.CategoryDocuments}}
		rs := tidy.NewRuleSet(nil, seededDefaults(), mappings, nil, now, "")

		res, ok := rs.Resolve(fileAt("app.log", jan10), downloads)
		require.True(t, ok)
		assert.Equal(t, filepath.Join(downloads, "Documents"), res.Destination)
	})

	t.Run("directories never resolve", func(t *testing.T) {
		rs := tidy.NewRuleSet(nil, seededDefaults(), nil, nil, now, "")
		dir := fileAt("photos", jan10)
		dir.IsDirectory = true

		_, ok := rs.Resolve(dir, downloads)
		assert.False(t, ok)
	})

	t.Run("snapshot is isolated from later edits", func(t *testing.T) {
		rule := *logs
		rule.Conditions = append([]model.Condition(nil), logs.Conditions...)
		rs := tidy.NewRuleSet([]*model.Rule{&rule}, seededDefaults(), nil, nil, now, "")
		rule.ActionDestination = "/Elsewhere"
		rule.Conditions[0].Value = "txt"

		res, ok := rs.Resolve(fileAt("app.log", jan10), downloads)
		require.True(t, ok)
		assert.Equal(t, "/Logs", res.Destination)
	})
}

func TestRuleSet_Excluded(t *testing.T) {
	rs := tidy.NewRuleSet(nil, nil, nil, []string{"*.tmp", "cache/*", "# comment"}, time.Now(), "")

	assert.True(t, rs.Excluded("a.tmp"))
	assert.True(t, rs.Excluded("nested/b.tmp"))
	assert.True(t, rs.Excluded("cache/x.bin"))
	assert.False(t, rs.Excluded("notes.txt"))
}

func TestDateSubfolder(t *testing.T) {
	ts := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "2024-03", tidy.DateSubfolder(ts, "YYYY-MM"))
	assert.Equal(t, "2024-03", tidy.DateSubfolder(ts, ""))
	assert.Equal(t, filepath.Join("2024", "03"), tidy.DateSubfolder(ts, "YYYY/MM"))
	assert.Equal(t, "2024", tidy.DateSubfolder(ts, "YYYY"))
	assert.Equal(t, "2024-03-05", tidy.DateSubfolder(ts, "YYYY-MM-DD"))
}

func TestExpandRenamePattern(t *testing.T) {
	f := fileAt("photo.jpg", jan10)

	tests := map[string]string{
		"":                     "photo.jpg",
		"{category}-{name}":    "images-photo.jpg",
		"{name}.{ext}":         "photo.jpg",
		"{name}_{counter}":     "photo_1.jpg",
		"{date}_{name}":        "2024-01-10_photo.jpg",
		"{created}/{name}":     "2024-01-10_photo.jpg",
		"backup of {name}.bak": "backup of photo.bak.jpg",
	}
	for pattern, want := range tests {
		assert.Equal(t, want, tidy.ExpandRenamePattern(pattern, f, model.CategoryImages), pattern)
	}
}

func TestResolveDestination(t *testing.T) {
	assert.Equal(t, "/Logs", tidy.ResolveDestination("/Logs/", downloads))
	assert.Equal(t, filepath.Join(downloads, "Sorted"), tidy.ResolveDestination("Sorted", downloads))
	assert.Equal(t, downloads, tidy.ResolveDestination("", downloads))
}
