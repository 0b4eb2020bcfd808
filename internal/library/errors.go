package library

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the repository wraps exactly one of
// them, so callers can branch with errors.Is.
var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrParse      = errors.New("parse error")
	ErrImage      = errors.New("image error")
	ErrIO         = errors.New("io error")
	ErrConflict   = errors.New("conflict")
)

var kinds = []error{ErrValidation, ErrNotFound, ErrParse, ErrImage, ErrIO, ErrConflict}

// Kind returns the short name of the kind err wraps, or "unknown".
func Kind(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k.Error()
		}
	}
	return "unknown"
}

func validationErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func wrapIO(op, path string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrIO, op, path, err)
}
