// Package intervalcoder implements the IntervalCoder: merging a sorted
// set of page numbers into maximal runs, and bit-packing those runs into
// the wire format described in the spec — a 4-byte little-endian word
// (29 bits of left bound, 2 bits of delta-size code, 1 termination bit)
// followed by 0, 1, 2, or 4 trailing bytes of right-minus-left.
package intervalcoder

import (
	"bytes"
	"io"

	"github.com/mbrengel/memscrimper/internal/byteio"
	"github.com/mbrengel/memscrimper/internal/codecerrors"
	"github.com/mbrengel/memscrimper/internal/errors"
)

// maxLeft is one past the largest left bound the 29-bit field can hold.
const maxLeft = 1 << 29

// Interval is an inclusive page-number range [Left, Right].
type Interval struct {
	Left  uint32
	Right uint32
}

// Intervalize merges a sorted, duplicate-free set of page numbers into
// maximal runs of consecutive integers. The input must already be
// ascending, as produced by pagestore's content index or a decoded
// pagenr-list. Returns nil for an empty input — callers must not then
// call EncodeList, per the spec's "empty interval lists are not
// representable" rule.
func Intervalize(numbers []uint32) []Interval {
	if len(numbers) == 0 {
		return nil
	}

	result := make([]Interval, 0, len(numbers))
	curr := Interval{Left: numbers[0], Right: numbers[0]}

	for _, x := range numbers[1:] {
		if curr.Right+1 == x {
			curr.Right = x
		} else {
			result = append(result, curr)
			curr = Interval{Left: x, Right: x}
		}
	}

	return append(result, curr)
}

// EncodeList writes intervals as a contiguous interval list, setting the
// termination bit on the final interval. intervals must be non-empty —
// the format provides no way to represent an empty list.
func EncodeList(w io.Writer, intervals []Interval) error {
	if len(intervals) == 0 {
		return codecerrors.NewFormatMismatch("cannot encode an empty interval list")
	}

	for i, iv := range intervals {
		if err := encodeOne(w, iv.Left, iv.Right, i == len(intervals)-1); err != nil {
			return errors.Wrap(err)
		}
	}

	return nil
}

func encodeOne(w io.Writer, left, right uint32, isLast bool) error {
	if left >= maxLeft {
		return codecerrors.NewFormatMismatch("interval left bound %d too large (>= 2^29)", left)
	}

	if right < left {
		return codecerrors.NewFormatMismatch("interval right bound %d < left bound %d", right, left)
	}

	var termination uint32
	if isLast {
		termination = 4
	}

	if left == right {
		return byteio.PutUint32LE(w, (termination<<29)|left)
	}

	delta := right - left

	var deltaWidth uint32
	var sizeCode uint32
	switch {
	case delta < (1 << 8):
		deltaWidth, sizeCode = 1, 1
	case delta < (1 << 16):
		deltaWidth, sizeCode = 2, 2
	default:
		deltaWidth, sizeCode = 4, 3
	}

	word := ((termination | sizeCode) << 29) | left

	if err := byteio.PutUint32LE(w, word); err != nil {
		return errors.Wrap(err)
	}

	return byteio.PutUintLE(w, delta, int(deltaWidth))
}

// DecodeList reads intervals until one with its termination bit set is
// consumed.
func DecodeList(r io.Reader) ([]Interval, error) {
	var intervals []Interval

	for {
		iv, isLast, err := decodeOne(r)
		if err != nil {
			return nil, errors.Wrap(err)
		}

		intervals = append(intervals, iv)

		if isLast {
			return intervals, nil
		}
	}
}

// DecodeListOrEmpty reads an interval list the writer may have omitted
// entirely when its underlying set was empty, per the spec's rule that
// an empty interval list has no representation of its own — the writer
// simply writes zero bytes and the reader must treat a clean EOF at
// the list's expected position as an empty list, not a format error.
// It must only be used where the body layout guarantees this is the
// final section, so a clean EOF cannot also mean "more sections
// follow".
func DecodeListOrEmpty(r io.Reader) ([]Interval, error) {
	var first [4]byte

	n, err := io.ReadFull(r, first[:])
	if err != nil {
		if err == io.EOF && n == 0 {
			return nil, nil
		}
		return nil, errors.Wrap(err)
	}

	return DecodeList(io.MultiReader(bytes.NewReader(first[:]), r))
}

func decodeOne(r io.Reader) (iv Interval, isLast bool, err error) {
	word, err := byteio.ReadUint32LE(r)
	if err != nil {
		return Interval{}, false, errors.Wrap(err)
	}

	upper3 := (word >> 29) & 0x7
	sizeCode := upper3 & 0x3
	isLast = (upper3 >> 2) == 1
	left := word & (maxLeft - 1)

	width := 0
	switch sizeCode {
	case 0:
		width = 0
	case 1:
		width = 1
	case 2:
		width = 2
	case 3:
		width = 4
	default:
		return Interval{}, false, codecerrors.NewFormatMismatch("invalid interval size code %d", sizeCode)
	}

	right := left
	if width > 0 {
		delta, err := byteio.ReadUintLE(r, width)
		if err != nil {
			return Interval{}, false, errors.Wrap(err)
		}
		right = left + delta
	}

	if right < left {
		return Interval{}, false, codecerrors.NewFormatMismatch("decoded interval right %d < left %d", right, left)
	}

	return Interval{Left: left, Right: right}, isLast, nil
}

// Count returns the total number of page numbers covered by intervals.
func Count(intervals []Interval) uint64 {
	var total uint64
	for _, iv := range intervals {
		total += uint64(iv.Right-iv.Left) + 1
	}
	return total
}

// Expand returns every page number covered by intervals, in ascending
// order.
func Expand(intervals []Interval) []uint32 {
	var result []uint32
	for _, iv := range intervals {
		for p := iv.Left; p <= iv.Right; p++ {
			result = append(result, p)
		}
	}
	return result
}
