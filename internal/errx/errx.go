// Package errx provides a small helper for chaining a stable sentinel
// error with the dynamic cause that triggered it, so callers can
// errors.Is the sentinel while logs retain the underlying detail.
package errx

import (
	"errors"
	"fmt"
)

// Wrap joins a sentinel with its cause. errors.Is(Wrap(sentinel, cause), sentinel)
// is always true; errors.Is(Wrap(sentinel, cause), cause) is true whenever
// cause itself participates in errors.Is (e.g. it is also a sentinel).
func Wrap(sentinel, cause error) error {
	if cause == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %w", sentinel, cause)
}

// Wrapf is Wrap with a formatted cause.
func Wrapf(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: %w", sentinel, fmt.Errorf(format, args...))
}

// Is is a re-export of errors.Is for call sites that only import errx.
func Is(err, target error) bool { return errors.Is(err, target) }

// As is a re-export of errors.As for call sites that only import errx.
func As(err error, target any) bool { return errors.As(err, target) }
