package tidy

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"tidy-go/internal/model"
)

// Condition fields.
const (
	FieldName         = "name"
	FieldExtension    = "extension"
	FieldSize         = "size"
	FieldCreatedDate  = "createdDate"
	FieldModifiedDate = "modifiedDate"
)

// Condition operators.
const (
	OpEquals      = "equals"
	OpContains    = "contains"
	OpStartsWith  = "startsWith"
	OpEndsWith    = "endsWith"
	OpGreaterThan = "greaterThan"
	OpLessThan    = "lessThan"
	OpMatches     = "matches"
)

var validFields = map[string]bool{
	FieldName: true, FieldExtension: true, FieldSize: true, FieldCreatedDate: true, FieldModifiedDate: true,
}

var validOperators = map[string]bool{
	OpEquals: true, OpContains: true, OpStartsWith: true, OpEndsWith: true,
	OpGreaterThan: true, OpLessThan: true, OpMatches: true,
}

const dateTimeLayout = "2006-01-02 15:04:05"

// conditionEvaluator evaluates conditions against a fixed "now" and a cache
// of compiled patterns. A nil entry in regexes marks a malformed pattern.
type conditionEvaluator struct {
	now     time.Time
	regexes map[string]*regexp.Regexp
}

func newConditionEvaluator(now time.Time) *conditionEvaluator {
	return &conditionEvaluator{now: now, regexes: make(map[string]*regexp.Regexp)}
}

// compile caches pattern. Not safe for concurrent use; call before evaluation starts.
func (e *conditionEvaluator) compile(pattern string) {
	if _, ok := e.regexes[pattern]; ok {
		return
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		e.regexes[pattern] = nil
		return
	}
	e.regexes[pattern] = re
}

func (e *conditionEvaluator) regex(pattern string) *regexp.Regexp {
	if re, ok := e.regexes[pattern]; ok {
		return re
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil
	}
	return re
}

// EvaluateCondition evaluates c against f with now as the reference for relative dates.
// Malformed values never match.
func EvaluateCondition(c model.Condition, f *FileRecord, now time.Time) bool {
	return newConditionEvaluator(now).evaluate(c, f)
}

func (e *conditionEvaluator) evaluate(c model.Condition, f *FileRecord) bool {
	switch c.Field {
	case FieldName:
		return e.evaluateString(c, f.Name)
	case FieldExtension:
		if c.Operator == OpEquals {
			return NormalizeExtension(c.Value) == f.Extension
		}
		return e.evaluateString(c, f.Extension)
	case FieldSize:
		return e.evaluateSize(c, f.Size)
	case FieldCreatedDate:
		return e.evaluateDate(c, f.CreatedAt)
	case FieldModifiedDate:
		return e.evaluateDate(c, f.ModifiedAt)
	default:
		return false
	}
}

func (e *conditionEvaluator) evaluateString(c model.Condition, actual string) bool {
	if c.Operator == OpMatches {
		re := e.regex(c.Value)
		return re != nil && re.MatchString(actual)
	}
	a, v := strings.ToLower(actual), strings.ToLower(c.Value)
	switch c.Operator {
	case OpEquals:
		return a == v
	case OpContains:
		return strings.Contains(a, v)
	case OpStartsWith:
		return strings.HasPrefix(a, v)
	case OpEndsWith:
		return strings.HasSuffix(a, v)
	case OpGreaterThan:
		return a > v
	case OpLessThan:
		return a < v
	default:
		return false
	}
}

func (e *conditionEvaluator) evaluateSize(c model.Condition, size int64) bool {
	switch c.Operator {
	case OpEquals, OpGreaterThan, OpLessThan:
		want, err := ParseSize(c.Value)
		if err != nil {
			return false
		}
		switch c.Operator {
		case OpEquals:
			return size == want
		case OpGreaterThan:
			return size > want
		default:
			return size < want
		}
	default:
		return e.evaluateString(c, strconv.FormatInt(size, 10))
	}
}

func (e *conditionEvaluator) evaluateDate(c model.Condition, t time.Time) bool {
	switch c.Operator {
	case OpEquals, OpGreaterThan, OpLessThan:
	default:
		return e.evaluateString(c, t.In(e.now.Location()).Format(dateTimeLayout))
	}

	ref, relative, ok := parseDateValue(c.Value, e.now)
	if !ok || t.IsZero() {
		return false
	}
	switch c.Operator {
	case OpEquals:
		return sameDay(t.In(ref.Location()), ref)
	case OpGreaterThan:
		if relative {
			return t.Before(ref) // older than the window
		}
		return t.After(ref)
	default:
		if relative {
			return !t.Before(ref) // within the window
		}
		return t.Before(ref)
	}
}

var relativeDatePattern = regexp.MustCompile(`^(\d+)\s*(일|days?|d|주|weeks?|w|개월|달|months?|mo|년|years?|y|시간|hours?|h)?$`)

var absoluteDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	dateTimeLayout,
	"2006-01-02 15:04",
	"2006/01/02",
}

// parseDateValue turns a condition value into a reference time.
// Relative values ("30 days", "30일", "2w") yield now minus the amount.
func parseDateValue(value string, now time.Time) (time.Time, bool, bool) {
	v := strings.ToLower(strings.TrimSpace(value))
	if m := relativeDatePattern.FindStringSubmatch(v); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, false, false
		}
		switch m[2] {
		case "", "일", "day", "days", "d":
			return now.AddDate(0, 0, -n), true, true
		case "주", "week", "weeks", "w":
			return now.AddDate(0, 0, -7*n), true, true
		case "개월", "달", "month", "months", "mo":
			return now.AddDate(0, -n, 0), true, true
		case "년", "year", "years", "y":
			return now.AddDate(-n, 0, 0), true, true
		default:
			return now.Add(-time.Duration(n) * time.Hour), true, true
		}
	}
	for _, layout := range absoluteDateLayouts {
		if t, err := time.ParseInLocation(layout, strings.TrimSpace(value), now.Location()); err == nil {
			return t, false, true
		}
	}
	return time.Time{}, false, false
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// evaluateRule combines the rule's conditions under its logic. Empty rules never match.
func (e *conditionEvaluator) evaluateRule(r *model.Rule, f *FileRecord) bool {
	if len(r.Conditions) == 0 {
		return false
	}
	if strings.EqualFold(r.ConditionLogic, "OR") {
		for _, c := range r.Conditions {
			if e.evaluate(c, f) {
				return true
			}
		}
		return false
	}
	for _, c := range r.Conditions {
		if !e.evaluate(c, f) {
			return false
		}
	}
	return true
}
