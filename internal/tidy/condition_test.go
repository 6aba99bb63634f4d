package tidy_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"tidy-go/internal/model"
	"tidy-go/internal/tidy"
)

func TestEvaluateCondition(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	f := &tidy.FileRecord{
		Path:       downloads + "/Report_Final.PDF",
		Name:       "Report_Final.PDF",
		Extension:  ".pdf",
		Size:       2 * 1024 * 1024,
		ModifiedAt: now.AddDate(0, 0, -45),
		CreatedAt:  now.AddDate(0, 0, -2),
	}

	tests := []struct {
		name string
		c    model.Condition
		want bool
	}{
		{"name equals ignores case", model.Condition{Field: "name", Operator: "equals", Value: "report_final.pdf"}, true},
		{"name contains", model.Condition{Field: "name", Operator: "contains", Value: "FINAL"}, true},
		{"name startsWith", model.Condition{Field: "name", Operator: "startsWith", Value: "report"}, true},
		{"name endsWith", model.Condition{Field: "name", Operator: "endsWith", Value: ".pdf"}, true},
		{"name endsWith miss", model.Condition{Field: "name", Operator: "endsWith", Value: ".doc"}, false},
		{"name matches", model.Condition{Field: "name", Operator: "matches", Value: `^Report_\w+\.PDF$`}, true},
		{"bad regex never matches", model.Condition{Field: "name", Operator: "matches", Value: "[unclosed"}, false},
		{"extension equals without dot", model.Condition{Field: "extension", Operator: "equals", Value: "PDF"}, true},
		{"extension equals with dot", model.Condition{Field: "extension", Operator: "equals", Value: ".pdf"}, true},
		{"extension equals miss", model.Condition{Field: "extension", Operator: "equals", Value: "doc"}, false},
		{"size greaterThan", model.Condition{Field: "size", Operator: "greaterThan", Value: "1MB"}, true},
		{"size lessThan", model.Condition{Field: "size", Operator: "lessThan", Value: "1MB"}, false},
		{"size equals", model.Condition{Field: "size", Operator: "equals", Value: "2MB"}, true},
		{"size malformed", model.Condition{Field: "size", Operator: "greaterThan", Value: "lots"}, false},
		{"modified older than 30 days", model.Condition{Field: "modifiedDate", Operator: "greaterThan", Value: "30 days"}, true},
		{"modified older than 30일", model.Condition{Field: "modifiedDate", Operator: "greaterThan", Value: "30일"}, true},
		{"modified within 30일", model.Condition{Field: "modifiedDate", Operator: "lessThan", Value: "30일"}, false},
		{"modified within 2 months", model.Condition{Field: "modifiedDate", Operator: "lessThan", Value: "2 months"}, true},
		{"created within a week", model.Condition{Field: "createdDate", Operator: "lessThan", Value: "1w"}, true},
		{"created older than 1 day", model.Condition{Field: "createdDate", Operator: "greaterThan", Value: "1d"}, true},
		{"modified after absolute date", model.Condition{Field: "modifiedDate", Operator: "greaterThan", Value: "2023-11-30"}, true},
		{"modified before absolute date", model.Condition{Field: "modifiedDate", Operator: "lessThan", Value: "2023-11-30"}, false},
		{"modified on day", model.Condition{Field: "modifiedDate", Operator: "equals", Value: "2023-12-01"}, true},
		{"malformed date", model.Condition{Field: "modifiedDate", Operator: "greaterThan", Value: "someday"}, false},
		{"unknown field", model.Condition{Field: "owner", Operator: "equals", Value: "root"}, false},
		{"unknown operator", model.Condition{Field: "name", Operator: "near", Value: "report"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tidy.EvaluateCondition(tt.c, f, now))
		})
	}
}
