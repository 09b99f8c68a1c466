package artifact

import (
	"io"
	"strings"

	"github.com/mbrengel/memscrimper/internal/byteio"
	"github.com/mbrengel/memscrimper/internal/codecerrors"
	"github.com/mbrengel/memscrimper/internal/errors"
	"github.com/mbrengel/memscrimper/internal/innercompress"
)

// Magic is the artifact's fixed leading identifier.
const Magic = "MBCR"

// MajorVersion and MinorVersion are the fixed format version gates:
// a decoder must refuse any file whose major version it does not
// recognize.
const (
	MajorVersion uint16 = 2
	MinorVersion uint16 = 1
)

// Header is the artifact's plaintext preamble: everything before the
// inner-compressed body.
type Header struct {
	Method           string
	MajorVersion     uint16
	MinorVersion     uint16
	PageSize         uint32
	UncompressedSize uint64
}

// Method composes the method string from its three orthogonal
// settings, per the grammar
// "interdedup" ("nointra")? ("delta")? ("gzip" | "7zip" | "bzip2" | "").
func Method(intra, diffing bool, inner innercompress.Kind) string {
	var b strings.Builder
	b.WriteString("interdedup")

	if !intra {
		b.WriteString("nointra")
	}

	if diffing {
		b.WriteString("delta")
	}

	b.WriteString(inner.Token())

	return b.String()
}

// ParseMethod recovers (intra, diffing, inner) from a method string.
func ParseMethod(method string) (intra, diffing bool, inner innercompress.Kind, err error) {
	rest, ok := cutPrefix(method, "interdedup")
	if !ok {
		return false, false, innercompress.None, codecerrors.NewFormatMismatch(
			"method string %q does not start with \"interdedup\"", method,
		)
	}

	intra = true
	if r, ok := cutPrefix(rest, "nointra"); ok {
		intra = false
		rest = r
	}

	if r, ok := cutPrefix(rest, "delta"); ok {
		diffing = true
		rest = r
	}

	inner, err = innercompress.ParseToken(rest)
	if err != nil {
		return false, false, innercompress.None, errors.Wrap(err)
	}

	return intra, diffing, inner, nil
}

func cutPrefix(s, prefix string) (string, bool) {
	if strings.HasPrefix(s, prefix) {
		return s[len(prefix):], true
	}
	return s, false
}

// WriteHeader writes the plaintext header: magic, method string, both
// version fields, page size, and uncompressed size.
func WriteHeader(w io.Writer, h Header) error {
	if err := byteio.PutCString(w, Magic); err != nil {
		return errors.Wrap(err)
	}

	if err := byteio.PutCString(w, h.Method); err != nil {
		return errors.Wrap(err)
	}

	if err := byteio.PutUint16LE(w, h.MajorVersion); err != nil {
		return errors.Wrap(err)
	}

	if err := byteio.PutUint16LE(w, h.MinorVersion); err != nil {
		return errors.Wrap(err)
	}

	if err := byteio.PutUint32LE(w, h.PageSize); err != nil {
		return errors.Wrap(err)
	}

	return byteio.PutUint64LE(w, h.UncompressedSize)
}

// ReadHeader reads and validates the plaintext header, refusing an
// unrecognized magic or major version.
func ReadHeader(r io.Reader) (Header, error) {
	magic, err := byteio.ReadCString(r)
	if err != nil {
		return Header{}, errors.Wrapf(err, "reading magic number")
	}

	if magic != Magic {
		return Header{}, codecerrors.NewFormatMismatch("magic number mismatch: got %q, want %q", magic, Magic)
	}

	method, err := byteio.ReadCString(r)
	if err != nil {
		return Header{}, errors.Wrapf(err, "reading method string")
	}

	major, err := byteio.ReadUint16LE(r)
	if err != nil {
		return Header{}, errors.Wrap(err)
	}

	if major != MajorVersion {
		return Header{}, codecerrors.NewFormatMismatch("unsupported major version %d, want %d", major, MajorVersion)
	}

	minor, err := byteio.ReadUint16LE(r)
	if err != nil {
		return Header{}, errors.Wrap(err)
	}

	pageSize, err := byteio.ReadUint32LE(r)
	if err != nil {
		return Header{}, errors.Wrap(err)
	}

	uncompressedSize, err := byteio.ReadUint64LE(r)
	if err != nil {
		return Header{}, errors.Wrap(err)
	}

	return Header{
		Method:           method,
		MajorVersion:     major,
		MinorVersion:     minor,
		PageSize:         pageSize,
		UncompressedSize: uncompressedSize,
	}, nil
}
