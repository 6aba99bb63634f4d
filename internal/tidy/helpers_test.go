package tidy_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tidy-go/internal/model"
	"tidy-go/internal/testutil"
	"tidy-go/internal/tidy"
)

const downloads = "/home/user/Downloads"

// jan10 is a few days before the fixed test clock.
var jan10 = time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

func newEnv(t *testing.T) *testutil.Env {
	t.Helper()
	return testutil.NewEnv(t, tidy.Options{Workers: 2})
}

func saveRule(t *testing.T, env *testutil.Env, rule *model.Rule) *model.Rule {
	t.Helper()
	saved, err := env.Service.SaveRule(rule)
	require.NoError(t, err)
	return saved
}

func extensionRule(name, ext, action, dest string) *model.Rule {
	return &model.Rule{
		Name:              name,
		Enabled:           true,
		Conditions:        []model.Condition{{Field: tidy.FieldExtension, Operator: tidy.OpEquals, Value: ext}},
		ActionType:        action,
		ActionDestination: dest,
	}
}

func seededDefaults() []*model.DefaultRule {
	var out []*model.DefaultRule
	for i, c := range model.Categories {
		out = append(out, &model.DefaultRule{
			Category:    c,
			Enabled:     true,
			Destination: tidy.CategoryFolder(c),
			Priority:    i,
		})
	}
	return out
}
