// Package pagenrlist encodes and decodes ordered sets of uint32 page
// numbers as a 4-byte count followed by delta-compressed, variable-width
// entries: one byte when the delta fits in 7 bits, 4 bytes big-endian
// otherwise. See the spec's PagenrListCoder for the exact bit layout.
package pagenrlist

import (
	"io"

	"github.com/mbrengel/memscrimper/internal/byteio"
	"github.com/mbrengel/memscrimper/internal/codecerrors"
	"github.com/mbrengel/memscrimper/internal/errors"
)

// Encode writes nums — which must be strictly ascending, as produced by
// pagestore's content index — as a pagenr-list.
func Encode(w io.Writer, nums []uint32) error {
	if err := byteio.PutUint32LE(w, uint32(len(nums))); err != nil {
		return errors.Wrap(err)
	}

	var prev uint32
	for i, p := range nums {
		var delta uint32
		if i == 0 {
			delta = p
		} else {
			if p <= prev {
				return codecerrors.NewFormatMismatch(
					"pagenr-list input not strictly ascending at index %d: %d <= %d",
					i, p, prev,
				)
			}
			delta = p - prev - 1
		}

		if delta < 128 {
			if err := byteio.PutUintBE(w, delta|0x80, 1); err != nil {
				return errors.Wrap(err)
			}
		} else {
			if err := byteio.PutUintBE(w, delta, 4); err != nil {
				return errors.Wrap(err)
			}
		}

		prev = p
	}

	return nil
}

// Decode reads a pagenr-list and returns the reconstructed ascending page
// numbers.
func Decode(r io.Reader) ([]uint32, error) {
	count, err := byteio.ReadUint32LE(r)
	if err != nil {
		return nil, errors.Wrap(err)
	}

	nums := make([]uint32, 0, count)

	var prev uint32
	for i := uint32(0); i < count; i++ {
		first, err := byteio.ReadUintBE(r, 1)
		if err != nil {
			return nil, errors.Wrap(err)
		}

		var num uint32
		if first&0x80 == 0x80 {
			num = first & 0x7F
		} else {
			rest, err := byteio.ReadUintBE(r, 3)
			if err != nil {
				return nil, errors.Wrap(err)
			}
			num = (first << 24) | rest
		}

		if i == 0 {
			prev = num
		} else {
			prev = prev + num + 1
		}

		nums = append(nums, prev)
	}

	return nums, nil
}
