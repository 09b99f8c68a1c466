// Package byteio provides the fixed-width integer and NUL-terminated
// string primitives the rest of the codec builds its binary formats on
// top of. encoding/binary covers the common uniform-endian case; the
// codec's own formats mix little-endian fields (artifact header,
// pagenr-list long form is big-endian though, interval deltas) within the
// same structure, so callers pick the Put/Read variant that matches the
// field they're encoding rather than fixing one byte order module-wide.
package byteio

import (
	"encoding/binary"
	"io"

	"github.com/mbrengel/memscrimper/internal/errors"
)

// PutUint8 writes a single byte.
func PutUint8(w io.Writer, v uint8) error {
	_, err := w.Write([]byte{v})
	return errors.Wrap(err)
}

// PutUint16LE writes v as 2 little-endian bytes.
func PutUint16LE(w io.Writer, v uint16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	_, err := w.Write(buf[:])
	return errors.Wrap(err)
}

// PutUint32LE writes v as 4 little-endian bytes.
func PutUint32LE(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return errors.Wrap(err)
}

// PutUint64LE writes v as 8 little-endian bytes.
func PutUint64LE(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return errors.Wrap(err)
}

// PutUintLE writes v using the low k bytes, little-endian. k must be in
// {1, 2, 4}.
func PutUintLE(w io.Writer, v uint32, k int) error {
	buf := make([]byte, k)
	for i := 0; i < k; i++ {
		buf[i] = byte(v >> (8 * i))
	}
	_, err := w.Write(buf)
	return errors.Wrap(err)
}

// PutUintBE writes v using the low k bytes, big-endian. k must be in
// {1, 2, 4}, matching the pagenr-list and patch-header entry encodings.
func PutUintBE(w io.Writer, v uint32, k int) error {
	buf := make([]byte, k)
	for i := 0; i < k; i++ {
		buf[k-i-1] = byte(v >> (8 * i))
	}
	_, err := w.Write(buf)
	return errors.Wrap(err)
}

// ReadUint8 reads a single byte.
func ReadUint8(r io.Reader) (uint8, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, errors.Wrap(err)
	}
	return buf[0], nil
}

// ReadUint16LE reads 2 little-endian bytes.
func ReadUint16LE(r io.Reader) (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, errors.Wrap(err)
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

// ReadUint32LE reads 4 little-endian bytes.
func ReadUint32LE(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, errors.Wrap(err)
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// ReadUint64LE reads 8 little-endian bytes.
func ReadUint64LE(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, errors.Wrap(err)
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// ReadUintLE reads k little-endian bytes (k in {1, 2, 4}) into a uint32.
func ReadUintLE(r io.Reader, k int) (uint32, error) {
	buf := make([]byte, k)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, errors.Wrap(err)
	}
	var v uint32
	for i := 0; i < k; i++ {
		v |= uint32(buf[i]) << (8 * i)
	}
	return v, nil
}

// ReadUintBE reads k big-endian bytes (k in {1, 2, 4}) into a uint32.
func ReadUintBE(r io.Reader, k int) (uint32, error) {
	buf := make([]byte, k)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, errors.Wrap(err)
	}
	var v uint32
	for i := 0; i < k; i++ {
		v = (v << 8) | uint32(buf[i])
	}
	return v, nil
}

// ReadCString reads bytes up to and including a NUL terminator and returns
// the bytes before it. Returns an error if EOF is reached before a
// terminator is found.
func ReadCString(r io.Reader) (string, error) {
	var buf []byte
	var b [1]byte

	for {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return "", errors.Wrapf(err, "reading cstring before terminator")
		}

		if b[0] == 0x00 {
			return string(buf), nil
		}

		buf = append(buf, b[0])
	}
}

// PutCString writes s followed by a NUL terminator.
func PutCString(w io.Writer, s string) error {
	if _, err := io.WriteString(w, s); err != nil {
		return errors.Wrap(err)
	}

	return PutUint8(w, 0x00)
}
