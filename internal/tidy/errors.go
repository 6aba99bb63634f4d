package tidy

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
)

var (
	ErrAlreadyUndone   = errors.New("operation has already been undone")
	ErrHistoryNotFound = errors.New("history entry not found")
	ErrNotUndoable     = errors.New("operation cannot be undone")
	ErrRuleNotFound    = errors.New("rule not found")
	ErrInvalidRule     = errors.New("invalid rule")
	ErrUnknownCategory = errors.New("unknown category")
)

// ErrorKind classifies a per-file failure for the caller.
type ErrorKind string

const (
	KindPermissionDenied   ErrorKind = "PermissionDenied"
	KindDiskFull           ErrorKind = "DiskFull"
	KindFileInUse          ErrorKind = "FileInUse"
	KindFileNotFound       ErrorKind = "FileNotFound"
	KindInvalidPath        ErrorKind = "InvalidPath"
	KindReadOnlyFile       ErrorKind = "ReadOnlyFile"
	KindDirectoryNotEmpty  ErrorKind = "DirectoryNotEmpty"
	KindNameConflict       ErrorKind = "NameConflict"
	KindOperationCancelled ErrorKind = "OperationCancelled"
	KindUnknown            ErrorKind = "Unknown"
)

// FileError is a failure attached to a single path inside a bulk operation.
type FileError struct {
	Path    string    `json:"path" yaml:"path"`
	Kind    ErrorKind `json:"kind" yaml:"kind"`
	Message string    `json:"message" yaml:"message"`
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Path, e.Message, e.Kind)
}

// conflictError marks a target that already exists and was left alone.
type conflictError struct {
	target string
}

func (e *conflictError) Error() string {
	return fmt.Sprintf("target already exists: %s", e.target)
}

// newFileError builds a FileError for path from err.
func newFileError(path string, err error) FileError {
	return FileError{Path: path, Kind: KindOf(err), Message: err.Error()}
}

// KindOf maps an error from the filesystem or the engine to an ErrorKind.
func KindOf(err error) ErrorKind {
	var conflict *conflictError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &conflict):
		return KindNameConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindOperationCancelled
	}
	if kind := errnoKind(err); kind != "" {
		return kind
	}
	switch {
	case errors.Is(err, fs.ErrPermission):
		return KindPermissionDenied
	case errors.Is(err, fs.ErrNotExist):
		return KindFileNotFound
	case errors.Is(err, fs.ErrExist):
		return KindNameConflict
	case errors.Is(err, fs.ErrInvalid):
		return KindInvalidPath
	default:
		return KindUnknown
	}
}

func errNotExist(path string) error {
	return &fs.PathError{Op: "stat", Path: path, Err: fs.ErrNotExist}
}
