package tidy_test

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"

	"tidy-go/internal/tidy"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want tidy.ErrorKind
	}{
		{"nil", nil, ""},
		{"permission", &fs.PathError{Op: "open", Path: "/x", Err: fs.ErrPermission}, tidy.KindPermissionDenied},
		{"not found", fmt.Errorf("stat: %w", fs.ErrNotExist), tidy.KindFileNotFound},
		{"exists", &fs.PathError{Op: "move", Path: "/x", Err: fs.ErrExist}, tidy.KindNameConflict},
		{"invalid", fs.ErrInvalid, tidy.KindInvalidPath},
		{"cancelled", fmt.Errorf("walking: %w", context.Canceled), tidy.KindOperationCancelled},
		{"deadline", context.DeadlineExceeded, tidy.KindOperationCancelled},
		{"other", errors.New("boom"), tidy.KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tidy.KindOf(tt.err))
		})
	}
}

func TestFileError_Error(t *testing.T) {
	e := tidy.FileError{Path: "/x/a.txt", Kind: tidy.KindFileNotFound, Message: "gone"}
	assert.Contains(t, e.Error(), "/x/a.txt")
	assert.Contains(t, e.Error(), "gone")
}
