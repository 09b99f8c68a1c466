// Package errors wraps the standard library's error chain (Is/As/Unwrap)
// with typed sentinels and stack-free context annotation (Wrap, Wrapf,
// Errorf), which the rest of this codebase uses to wrap errors it passes
// up to its callers.
package errors

import (
	"errors"
	"fmt"
)

// As exposes the standard library's errors.As so call sites never need to
// import both "errors" and this package under different names.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Is exposes the standard library's errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// New creates a plain, unwrapped error.
func New(text string) error {
	return errors.New(text)
}

// Errorf creates a plain error from a format string, same as fmt.Errorf.
func Errorf(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}

// Wrap re-wraps err with %w, adding no message of its own and preserving
// the chain for Is/As. Returns nil if err is nil, so call sites can write
// `err = errors.Wrap(err)` unconditionally after an early return check.
func Wrap(err error) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("%w", err)
}

// Wrapf annotates err with a formatted message while preserving the chain
// for Is/As. Returns nil if err is nil.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf(format+": %w", append(args, err)...)
}
