package tidy

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"tidy-go/internal/model"
)

// Rule action types.
const (
	ActionMove   = "move"
	ActionCopy   = "copy"
	ActionRename = "rename"
	ActionDelete = "delete"
)

// TrashDestination is the pseudo destination of delete actions.
const TrashDestination = ":trash"

// MatchType tells which tier of the resolver produced a destination.
type MatchType string

const (
	MatchCustom  MatchType = "custom"
	MatchDefault MatchType = "default"
)

// DefaultDateFormat is the subfolder format used when none is configured.
const DefaultDateFormat = "YYYY-MM"

// Resolution is the single destination the resolver picked for a file.
type Resolution struct {
	ActionType  string         `json:"actionType" yaml:"actionType"`
	Destination string         `json:"destination" yaml:"destination"`
	TargetName  string         `json:"targetName" yaml:"targetName"`
	MatchType   MatchType      `json:"matchType" yaml:"matchType"`
	RuleID      int64          `json:"ruleId,omitempty" yaml:"ruleId,omitempty"`
	RuleName    string         `json:"ruleName" yaml:"ruleName"`
	Category    model.Category `json:"category" yaml:"category"`
}

// TargetPath is the full path the file would occupy. Empty for deletes.
func (r *Resolution) TargetPath() string {
	if r.ActionType == ActionDelete {
		return ""
	}
	return filepath.Join(r.Destination, r.TargetName)
}

// RuleSet is an immutable snapshot of everything resolution depends on.
// It is captured once per call so concurrent rule edits cannot leak into a run.
type RuleSet struct {
	rules      []*model.Rule
	defaults   map[model.Category]*model.DefaultRule
	classifier *Classifier
	excluder   *ExcludeMatcher
	eval       *conditionEvaluator
	dateFormat string
}

// NewRuleSet copies its inputs. Disabled custom rules are dropped and the
// rest ordered by priority then id.
func NewRuleSet(rules []*model.Rule, defaults []*model.DefaultRule, mappings []*model.ExtensionMapping, exclusions []string, now time.Time, dateFormat string) *RuleSet {
	rs := &RuleSet{
		defaults:   make(map[model.Category]*model.DefaultRule, len(defaults)),
		classifier: NewClassifier(mappings),
		excluder:   NewExcludeMatcher(exclusions),
		eval:       newConditionEvaluator(now),
		dateFormat: dateFormat,
	}
	if rs.dateFormat == "" {
		rs.dateFormat = DefaultDateFormat
	}

	for _, r := range rules {
		if !r.Enabled {
			continue
		}
		cp := *r
		cp.Conditions = append([]model.Condition(nil), r.Conditions...)
		for _, c := range cp.Conditions {
			if c.Operator == OpMatches {
				rs.eval.compile(c.Value)
			}
		}
		rs.rules = append(rs.rules, &cp)
	}
	sort.SliceStable(rs.rules, func(i, j int) bool {
		if rs.rules[i].Priority != rs.rules[j].Priority {
			return rs.rules[i].Priority < rs.rules[j].Priority
		}
		return rs.rules[i].ID < rs.rules[j].ID
	})

	for _, d := range defaults {
		cp := *d
		rs.defaults[d.Category] = &cp
	}
	return rs
}

// Classifier returns the snapshot's classifier.
func (rs *RuleSet) Classifier() *Classifier { return rs.classifier }

// Excluded reports whether a path relative to the scan root is excluded.
func (rs *RuleSet) Excluded(relativePath string) bool { return rs.excluder.Match(relativePath) }

// Resolve returns the destination for f, or false when no enabled rule applies.
// Custom rules are tried first in order; the category default is the fallback.
func (rs *RuleSet) Resolve(f *FileRecord, sourceDir string) (*Resolution, bool) {
	if f.IsDirectory {
		return nil, false
	}
	category := rs.classifier.Classify(f.Extension)

	for _, r := range rs.rules {
		if !rs.eval.evaluateRule(r, f) {
			continue
		}
		res := &Resolution{
			ActionType: r.ActionType,
			MatchType:  MatchCustom,
			RuleID:     r.ID,
			RuleName:   r.Name,
			Category:   category,
			TargetName: f.Name,
		}
		switch r.ActionType {
		case ActionDelete:
			res.Destination = TrashDestination
			res.TargetName = ""
		case ActionRename:
			res.Destination = filepath.Dir(f.Path)
			res.TargetName = ExpandRenamePattern(r.ActionRenamePattern, f, category)
		default:
			res.Destination = rs.destination(r.ActionDestination, sourceDir, r.CreateDateSubfolder, f)
		}
		return res, true
	}

	d, ok := rs.defaults[category]
	if !ok || !d.Enabled {
		return nil, false
	}
	dest := d.Destination
	if strings.TrimSpace(dest) == "" {
		dest = CategoryFolder(category)
	}
	return &Resolution{
		ActionType:  ActionMove,
		Destination: rs.destination(dest, sourceDir, d.CreateDateSubfolder, f),
		TargetName:  f.Name,
		MatchType:   MatchDefault,
		RuleName:    string(category),
		Category:    category,
	}, true
}

func (rs *RuleSet) destination(dest, sourceDir string, dateSubfolder bool, f *FileRecord) string {
	dir := ResolveDestination(dest, sourceDir)
	if dateSubfolder {
		dir = filepath.Join(dir, DateSubfolder(f.ModifiedAt, rs.dateFormat))
	}
	return dir
}

// ResolveDestination expands "~/" and anchors relative destinations at sourceDir.
func ResolveDestination(dest, sourceDir string) string {
	dest = strings.TrimSpace(dest)
	switch {
	case dest == "":
		return filepath.Clean(sourceDir)
	case dest == "~" || strings.HasPrefix(dest, "~/"):
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(dest, "~"))
		}
	}
	if filepath.IsAbs(dest) {
		return filepath.Clean(dest)
	}
	return filepath.Join(sourceDir, dest)
}

// DateSubfolder formats t for a dated subfolder. Supported formats are
// YYYY-MM, YYYY/MM, YYYY and YYYY-MM-DD; anything else falls back to YYYY-MM-DD.
func DateSubfolder(t time.Time, format string) string {
	switch format {
	case "YYYY-MM", "":
		return t.Format("2006-01")
	case "YYYY/MM":
		return filepath.Join(t.Format("2006"), t.Format("01"))
	case "YYYY":
		return t.Format("2006")
	default:
		return t.Format("2006-01-02")
	}
}

// ExpandRenamePattern renders a rename pattern for f. Tokens: {name} (stem),
// {ext} (extension without dot), {date} (modified, YYYY-MM-DD),
// {created} (YYYY-MM-DD), {category} and {counter} (always 1; collisions
// are settled by the overwrite strategy). The original extension is appended
// when the pattern does not use {ext}. An empty pattern keeps the name.
func ExpandRenamePattern(pattern string, f *FileRecord, category model.Category) string {
	if strings.TrimSpace(pattern) == "" {
		return f.Name
	}
	stem := strings.TrimSuffix(f.Name, filepath.Ext(f.Name))
	ext := strings.TrimPrefix(filepath.Ext(f.Name), ".")
	out := strings.NewReplacer(
		"{name}", stem,
		"{ext}", ext,
		"{date}", f.ModifiedAt.Format("2006-01-02"),
		"{created}", f.CreatedAt.Format("2006-01-02"),
		"{category}", string(category),
		"{counter}", "1",
	).Replace(pattern)
	if !strings.Contains(pattern, "{ext}") && ext != "" {
		out += "." + ext
	}
	out = strings.NewReplacer("/", "_", "\\", "_").Replace(out)
	if out == "" || out == "." || out == ".." {
		return f.Name
	}
	return out
}
