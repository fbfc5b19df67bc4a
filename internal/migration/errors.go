package migration

import (
	"errors"
	"fmt"
)

// Kind classifies why a run failed
type Kind int

const (
	// KindConnection means a store could not be reached before any batch ran
	KindConnection Kind = iota + 1
	// KindSelection means the id sequence could not be resolved
	KindSelection
	// KindTransfer means a batch failed and its target transaction was rolled back
	KindTransfer
	// KindCheckpoint means the checkpoint could not be read or written.
	// After a committed batch this leaves the target ahead of the checkpoint.
	KindCheckpoint
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindSelection:
		return "selection"
	case KindTransfer:
		return "transfer"
	case KindCheckpoint:
		return "checkpoint"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is returned by a failed run. Batch is 1-based and zero when the
// failure happened outside the batch loop.
type Error struct {
	Kind    Kind
	Task    string
	Batch   int
	FirstID string
	LastID  string
	Err     error
}

func (e *Error) Error() string {
	if e.Batch > 0 {
		return fmt.Sprintf("task %q: %s error in batch %d [%s..%s]: %v",
			e.Task, e.Kind, e.Batch, e.FirstID, e.LastID, e.Err)
	}
	return fmt.Sprintf("task %q: %s error: %v", e.Task, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a migration error of the given kind
func IsKind(err error, kind Kind) bool {
	var merr *Error
	return errors.As(err, &merr) && merr.Kind == kind
}
