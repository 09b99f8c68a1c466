// Package diffcoder implements the DiffCoder: generating and applying
// byte-patch diffs between two equal-length pages, and encoding those
// patches in the spec's 2-or-3-byte patch header format. The diff
// algorithm and its wire format are both fixed by the spec's bit-exact
// compatibility requirement, so this is a from-scratch implementation
// rather than a binding to a generic binary-diff library — see
// DESIGN.md for why github.com/gabstv/go-bsdiff (a teacher dependency)
// does not fit here.
package diffcoder

import (
	"bytes"
	"io"

	"github.com/mbrengel/memscrimper/internal/byteio"
	"github.com/mbrengel/memscrimper/internal/codecerrors"
	"github.com/mbrengel/memscrimper/internal/errors"
)

// MaxPatchBytes is the largest byte run a single encoded patch may carry.
// Longer runs are split into chunks of this size by GeneratePatches.
const MaxPatchBytes = 2048

// Patch is a single (offset, bytes) pair inside a diff: offset is the gap
// since the end of the previous patch (absolute for the first patch), and
// bytes is a non-empty run of replacement content.
type Patch struct {
	Offset uint32
	Bytes  []byte
}

// GeneratePatches compares ref and target byte for byte and returns the
// patches needed to turn ref into target. Both slices must have equal
// length. Runs of up to 2 matching bytes between two mismatches are fused
// into the preceding patch rather than starting a new one, since a
// 2-or-3-byte patch header costs more than those bytes would. Any
// resulting patch longer than MaxPatchBytes is split into
// MaxPatchBytes-byte chunks; only the first chunk of a split patch keeps
// the original offset.
func GeneratePatches(ref, target []byte) ([]Patch, error) {
	if len(ref) != len(target) {
		return nil, codecerrors.NewFormatMismatch(
			"diff pages have different lengths: %d vs %d", len(ref), len(target),
		)
	}

	var patches []Patch
	var sameRun []byte
	first := true
	lastPatchStart := 0

	for i := 0; i < len(ref); i++ {
		if ref[i] == target[i] {
			sameRun = append(sameRun, target[i])
			continue
		}

		if len(sameRun) <= 2 && !first {
			last := &patches[len(patches)-1]
			last.Bytes = append(last.Bytes, sameRun...)
			last.Bytes = append(last.Bytes, target[i])
		} else {
			var offset uint32
			if first {
				offset = uint32(i)
				first = false
			} else {
				prevEnd := lastPatchStart + len(patches[len(patches)-1].Bytes)
				offset = uint32(i - prevEnd)
			}

			lastPatchStart = i
			patches = append(patches, Patch{Offset: offset, Bytes: []byte{target[i]}})
		}

		sameRun = sameRun[:0]
	}

	// A trailing run of matching bytes needs no encoding; it is simply
	// never turned into a patch.

	return chunkPatches(patches)
}

func chunkPatches(patches []Patch) ([]Patch, error) {
	out := make([]Patch, 0, len(patches))

	for _, p := range patches {
		if len(p.Bytes) <= MaxPatchBytes {
			out = append(out, p)
			continue
		}

		offset := p.Offset
		remaining := p.Bytes

		for len(remaining) > 0 {
			n := MaxPatchBytes
			if len(remaining) < n {
				n = len(remaining)
			}

			out = append(out, Patch{Offset: offset, Bytes: remaining[:n]})
			remaining = remaining[n:]
			offset = 0
		}
	}

	for _, p := range out {
		if len(p.Bytes) > MaxPatchBytes {
			return nil, codecerrors.NewResourceLimit(
				"chunked patch still exceeds %d bytes: %d", MaxPatchBytes, len(p.Bytes),
			)
		}
	}

	return out, nil
}

// EncodeDiff writes patches as a diff blob: a 2-byte little-endian patch
// count followed by each patch's header and bytes in order.
func EncodeDiff(w io.Writer, patches []Patch) error {
	if len(patches) > 0xFFFF {
		return codecerrors.NewFormatMismatch("too many patches for a diff blob: %d", len(patches))
	}

	if err := byteio.PutUint16LE(w, uint16(len(patches))); err != nil {
		return errors.Wrap(err)
	}

	for _, p := range patches {
		if err := encodePatchHeader(w, p.Offset, uint32(len(p.Bytes))); err != nil {
			return errors.Wrap(err)
		}

		if _, err := w.Write(p.Bytes); err != nil {
			return errors.Wrap(err)
		}
	}

	return nil
}

// encodePatchHeader writes the 2-byte short form when offset < 256 and
// length-1 < 128, else the 3-byte long form with the MSB of the first
// byte set.
func encodePatchHeader(w io.Writer, offset, length uint32) error {
	if length == 0 {
		return codecerrors.NewFormatMismatch("patch length must be at least 1")
	}

	lengthMinusOne := length - 1

	if offset < 256 && lengthMinusOne < 128 {
		if err := byteio.PutUintBE(w, lengthMinusOne, 1); err != nil {
			return errors.Wrap(err)
		}
		return byteio.PutUintBE(w, offset, 1)
	}

	if offset >= (1<<12) || lengthMinusOne >= (1<<12) {
		return codecerrors.NewResourceLimit(
			"patch offset %d or length %d exceeds the long-form header's 12-bit fields",
			offset, length,
		)
	}

	word := (lengthMinusOne << 12) | offset
	first := byte((word>>16)&0xFF) | 0x80

	if err := byteio.PutUint8(w, first); err != nil {
		return errors.Wrap(err)
	}

	return byteio.PutUintBE(w, word&0xFFFF, 2)
}

// DecodeDiff reads a diff blob and returns its patches.
func DecodeDiff(r io.Reader) ([]Patch, error) {
	count, err := byteio.ReadUint16LE(r)
	if err != nil {
		return nil, errors.Wrap(err)
	}

	patches := make([]Patch, 0, count)

	for i := uint16(0); i < count; i++ {
		offset, length, err := decodePatchHeader(r)
		if err != nil {
			return nil, errors.Wrap(err)
		}

		data := make([]byte, length)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, errors.Wrapf(err, "reading patch %d bytes", i)
		}

		patches = append(patches, Patch{Offset: offset, Bytes: data})
	}

	return patches, nil
}

func decodePatchHeader(r io.Reader) (offset, length uint32, err error) {
	first, err := byteio.ReadUintBE(r, 1)
	if err != nil {
		return 0, 0, errors.Wrap(err)
	}

	second, err := byteio.ReadUintBE(r, 1)
	if err != nil {
		return 0, 0, errors.Wrap(err)
	}

	if first&0x80 == 0x80 {
		third, err := byteio.ReadUintBE(r, 1)
		if err != nil {
			return 0, 0, errors.Wrap(err)
		}

		rebuilt := ((first & 0x7F) << 16) | (second << 8) | third
		length = 1 + ((rebuilt & 0xFFF000) >> 12)
		offset = rebuilt & 0xFFF
	} else {
		length = first + 1
		offset = second
	}

	if length > MaxPatchBytes {
		return 0, 0, codecerrors.NewFormatMismatch(
			"decoded patch length %d exceeds the %d-byte bound", length, MaxPatchBytes,
		)
	}

	return offset, length, nil
}

// ApplyPatches reconstructs a page by applying patches to ref in order.
// It fails if a patch's cursor position plus its length would run past
// the end of ref.
func ApplyPatches(ref []byte, patches []Patch) ([]byte, error) {
	result := make([]byte, len(ref))
	copy(result, ref)

	cursor := 0
	for _, p := range patches {
		cursor += int(p.Offset)

		if cursor+len(p.Bytes) > len(result) {
			return nil, codecerrors.NewFormatMismatch(
				"patch at cursor %d length %d overruns page of size %d",
				cursor, len(p.Bytes), len(result),
			)
		}

		copy(result[cursor:cursor+len(p.Bytes)], p.Bytes)
		cursor += len(p.Bytes)
	}

	return result, nil
}

// CreateDiff generates patches turning ref into target and encodes them
// as a diff blob.
func CreateDiff(ref, target []byte) ([]byte, error) {
	patches, err := GeneratePatches(ref, target)
	if err != nil {
		return nil, errors.Wrap(err)
	}

	var buf bytes.Buffer
	if err := EncodeDiff(&buf, patches); err != nil {
		return nil, errors.Wrap(err)
	}

	return buf.Bytes(), nil
}

// ApplyDiff decodes a diff blob and applies it to ref.
func ApplyDiff(ref, diff []byte) ([]byte, error) {
	patches, err := DecodeDiff(bytes.NewReader(diff))
	if err != nil {
		return nil, errors.Wrap(err)
	}

	return ApplyPatches(ref, patches)
}
