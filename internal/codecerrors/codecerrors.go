// Package codecerrors defines the typed error sentinels used throughout
// the memscrimper codec, matching the error-kind taxonomy in the
// specification: FormatMismatch, Configuration, and ResourceLimit. IO
// errors are not given a sentinel here — they already carry path and
// cause via the standard library's *os.PathError/*fs.PathError, and are
// surfaced with errors.Wrap at the call site.
package codecerrors

import (
	"fmt"

	"github.com/mbrengel/memscrimper/internal/errors"
)

type formatMismatchDisamb struct{}

// ErrFormatMismatch is the sentinel for malformed artifacts: magic byte
// mismatch, unrecognized method string, page-size inconsistency,
// non-multiple file size, negative pagenr-list delta, left > right in an
// interval, an invalid interval size code, or a diff that overruns the
// page size when applied.
var ErrFormatMismatch = errors.NewWithType[formatMismatchDisamb]("format mismatch")

// IsFormatMismatch reports whether err is, or wraps, ErrFormatMismatch.
func IsFormatMismatch(err error) bool {
	return errors.IsTyped[formatMismatchDisamb](err)
}

// NewFormatMismatch builds a wrapped ErrFormatMismatch carrying a specific
// message, still matched by IsFormatMismatch.
func NewFormatMismatch(format string, args ...any) error {
	return errors.WrapWithType[formatMismatchDisamb](fmt.Errorf(format, args...))
}

type configurationDisamb struct{}

// ErrConfiguration is the sentinel for caller mistakes that must be
// returned to the caller untouched: an unknown inner compressor, an
// invalid CLI argument, or an invalid service opcode. Unlike
// FormatMismatch, a configuration error never reaches disk — it is
// rejected before any output file is opened.
var ErrConfiguration = errors.NewWithType[configurationDisamb]("configuration error")

// IsConfiguration reports whether err is, or wraps, ErrConfiguration.
func IsConfiguration(err error) bool {
	return errors.IsTyped[configurationDisamb](err)
}

// NewConfiguration builds a wrapped ErrConfiguration carrying a specific
// message, still matched by IsConfiguration.
func NewConfiguration(format string, args ...any) error {
	return errors.WrapWithType[configurationDisamb](fmt.Errorf(format, args...))
}

type resourceLimitDisamb struct{}

// ErrResourceLimit is the sentinel for violations of a hard resource
// bound on the encode side: a chunked patch still longer than 2048
// bytes, or a patch offset or length too large for the long-form
// header's 12-bit fields. A decoded patch longer than 2048 bytes is
// reported as ErrFormatMismatch instead.
var ErrResourceLimit = errors.NewWithType[resourceLimitDisamb]("resource limit exceeded")

// IsResourceLimit reports whether err is, or wraps, ErrResourceLimit.
func IsResourceLimit(err error) bool {
	return errors.IsTyped[resourceLimitDisamb](err)
}

// NewResourceLimit builds a wrapped ErrResourceLimit carrying a specific
// message, still matched by IsResourceLimit.
func NewResourceLimit(format string, args ...any) error {
	return errors.WrapWithType[resourceLimitDisamb](fmt.Errorf(format, args...))
}
