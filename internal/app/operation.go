package app

import (
	"strings"
	"time"
)

// Operation tracks one CLI invocation. Only invocations that change the
// rule store, the ledger or the filesystem are marked mutating; those are
// snapshotted on Close.
type Operation struct {
	ID       string
	Command  string
	Args     string
	Mutating bool
	Status   string // "success" or "error"
}

// NewOperation creates the record for command. Its ID is the UTC start time.
func NewOperation(command string, args ...string) *Operation {
	return &Operation{
		ID:      time.Now().UTC().Format("20060102T150405Z"),
		Command: command,
		Args:    strings.Join(args, " "),
		Status:  "success",
	}
}

func (op *Operation) MarkMutating() {
	op.Mutating = true
}

// Record flips the status to "error" when err is non-nil and returns err.
func (op *Operation) Record(err error) error {
	if err != nil {
		op.Status = "error"
	}
	return err
}
