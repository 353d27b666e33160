package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCatalog marks every failure reported by a catalog backend.
var ErrCatalog = errors.New("catalog error")

// Error wraps a backend failure with the operation that produced it.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	op := strings.TrimSpace(e.Op)
	if op == "" {
		op = "request"
	}
	if e.Err == nil {
		return fmt.Sprintf("catalog %s failed", op)
	}
	return fmt.Sprintf("catalog %s: %v", op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports ErrCatalog so callers can classify without a type assertion.
func (e *Error) Is(target error) bool { return target == ErrCatalog }

// ErrorKind classifies catalog failures for workflow bookkeeping.
func (e *Error) ErrorKind() string { return "catalog" }

// Wrap returns nil for a nil error, otherwise a *Error for op.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return err
	}
	return &Error{Op: op, Err: err}
}
