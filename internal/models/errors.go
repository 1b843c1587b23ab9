package models

import "github.com/pkg/errors"

// Error classes shared by every operation. Callers test with errors.Is; the
// wrapped message carries the human readable detail.
var (
	// ErrPrecondition marks incompatible inputs: wrong volume type, mismatched
	// grids, mismatched map or series counts.
	ErrPrecondition = errors.New("precondition violated")

	// ErrIndexRange marks a map, subvolume or data set index outside its range.
	ErrIndexRange = errors.New("index out of range")

	// ErrNotFound marks requested content (a label name or key) that is absent
	// from every place it was searched for.
	ErrNotFound = errors.New("requested data not found")

	// ErrNoInput marks an operation that was given nothing to work on.
	ErrNoInput = errors.New("no input supplied")
)

// Preconditionf wraps ErrPrecondition with a formatted message.
func Preconditionf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrPrecondition, format, args...)
}

// IndexRangef wraps ErrIndexRange with a formatted message.
func IndexRangef(format string, args ...interface{}) error {
	return errors.Wrapf(ErrIndexRange, format, args...)
}

// NotFoundf wraps ErrNotFound with a formatted message.
func NotFoundf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrNotFound, format, args...)
}

// NoInputf wraps ErrNoInput with a formatted message.
func NoInputf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrNoInput, format, args...)
}
