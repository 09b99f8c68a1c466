package artifact

import (
	"bytes"
	"io"

	"github.com/mbrengel/memscrimper/internal/byteio"
	"github.com/mbrengel/memscrimper/internal/classifier"
	"github.com/mbrengel/memscrimper/internal/codecerrors"
	"github.com/mbrengel/memscrimper/internal/diffcoder"
	"github.com/mbrengel/memscrimper/internal/errors"
	"github.com/mbrengel/memscrimper/internal/intervalcoder"
	"github.com/mbrengel/memscrimper/internal/pagenrlist"
	"github.com/mbrengel/memscrimper/internal/pagestore"
)

// Stats carries the debug statistics the C++ original logs after every
// compress/decompress call: dedup/diff/new-page totals, both "total
// pages covered" and "distinct objects written".
type Stats struct {
	DedupRepresentatives int
	DedupTotalPages      int
	DiffedPages          int
	DistinctNewPages     int
	NewPageTotalPages    int
}

// buildBody composes the pre-inner-compression body for refPath and
// classification, per spec.md §6.1's body layout, and returns the
// bytes alongside the statistics worth logging.
func buildBody(refPath string, c *classifier.Classification, diffing, intra bool) ([]byte, Stats, error) {
	var buf bytes.Buffer
	var stats Stats

	if err := byteio.PutCString(&buf, refPath); err != nil {
		return nil, stats, errors.Wrap(err)
	}

	representatives := c.DedupRepresentatives()
	if err := pagenrlist.Encode(&buf, representatives); err != nil {
		return nil, stats, errors.Wrap(err)
	}

	stats.DedupRepresentatives = len(representatives)

	for _, r := range representatives {
		sourceNumbers := c.Dedups[r]
		stats.DedupTotalPages += len(sourceNumbers)

		intervals := intervalcoder.Intervalize(sourceNumbers)
		if err := intervalcoder.EncodeList(&buf, intervals); err != nil {
			return nil, stats, errors.Wrap(err)
		}
	}

	if diffing {
		diffPageNumbers := c.DiffPageNumbers()
		if err := pagenrlist.Encode(&buf, diffPageNumbers); err != nil {
			return nil, stats, errors.Wrap(err)
		}

		stats.DiffedPages = len(diffPageNumbers)

		for _, p := range diffPageNumbers {
			if _, err := buf.Write(c.Diffs[p]); err != nil {
				return nil, stats, errors.Wrap(err)
			}
		}
	}

	if intra {
		contents := c.SameNewPageContents()

		if err := byteio.PutUint32LE(&buf, uint32(len(contents))); err != nil {
			return nil, stats, errors.Wrap(err)
		}

		stats.DistinctNewPages = len(contents)

		for _, content := range contents {
			pageNumbers := c.SameNewPages[content]
			stats.NewPageTotalPages += len(pageNumbers)

			intervals := intervalcoder.Intervalize(pageNumbers)
			if err := intervalcoder.EncodeList(&buf, intervals); err != nil {
				return nil, stats, errors.Wrap(err)
			}
		}

		for _, content := range contents {
			if _, err := buf.WriteString(content); err != nil {
				return nil, stats, errors.Wrap(err)
			}
		}
	} else {
		newPageNumbers := c.NewPageNumbers()
		stats.DistinctNewPages = len(newPageNumbers)
		stats.NewPageTotalPages = len(newPageNumbers)

		if len(newPageNumbers) > 0 {
			intervals := intervalcoder.Intervalize(newPageNumbers)
			if err := intervalcoder.EncodeList(&buf, intervals); err != nil {
				return nil, stats, errors.Wrap(err)
			}

			for _, pagenr := range newPageNumbers {
				if _, err := buf.WriteString(c.NewPages[pagenr]); err != nil {
					return nil, stats, errors.Wrap(err)
				}
			}
		}
	}

	return buf.Bytes(), stats, nil
}

// parsedBody holds the reconstruction tables extracted from a body,
// per interdedup_decompress.cpp's reconstruction loop.
type parsedBody struct {
	refPath string

	// fills maps a source page number to the reference page number its
	// content should be copied from.
	fills map[uint32]uint32

	// diffs maps a source page number to the patches that turn the
	// reference page at the same index into this page's content.
	diffs map[uint32][]diffcoder.Patch

	// newPages maps a source page number to its stored content.
	newPages map[uint32]string
}

// parseBody parses a decompressed body into its reconstruction tables.
func parseBody(r io.Reader, pageSize uint32, diffing, intra bool) (parsedBody, Stats, error) {
	var stats Stats

	refPath, err := byteio.ReadCString(r)
	if err != nil {
		return parsedBody{}, stats, errors.Wrapf(err, "reading reference dump path")
	}

	if refPath == "" {
		return parsedBody{}, stats, codecerrors.NewFormatMismatch("empty reference dump path in body")
	}

	dedupRepresentatives, err := pagenrlist.Decode(r)
	if err != nil {
		return parsedBody{}, stats, errors.Wrapf(err, "reading dedup representative list")
	}

	stats.DedupRepresentatives = len(dedupRepresentatives)

	fills := make(map[uint32]uint32)
	for _, representative := range dedupRepresentatives {
		intervals, err := intervalcoder.DecodeList(r)
		if err != nil {
			return parsedBody{}, stats, errors.Wrapf(err, "reading dedup interval list for representative %d", representative)
		}

		for _, pagenr := range intervalcoder.Expand(intervals) {
			fills[pagenr] = representative
			stats.DedupTotalPages++
		}
	}

	diffs := make(map[uint32][]diffcoder.Patch)
	if diffing {
		diffPageNumbers, err := pagenrlist.Decode(r)
		if err != nil {
			return parsedBody{}, stats, errors.Wrapf(err, "reading diff page number list")
		}

		stats.DiffedPages = len(diffPageNumbers)

		for _, pagenr := range diffPageNumbers {
			patches, err := diffcoder.DecodeDiff(r)
			if err != nil {
				return parsedBody{}, stats, errors.Wrapf(err, "reading diff for page %d", pagenr)
			}

			diffs[pagenr] = patches
		}
	}

	newPages := make(map[uint32]string)

	if intra {
		distinctCount, err := byteio.ReadUint32LE(r)
		if err != nil {
			return parsedBody{}, stats, errors.Wrap(err)
		}

		stats.DistinctNewPages = int(distinctCount)

		intervalLists := make([][]intervalcoder.Interval, distinctCount)
		for i := range intervalLists {
			intervals, err := intervalcoder.DecodeList(r)
			if err != nil {
				return parsedBody{}, stats, errors.Wrapf(err, "reading intra-dedup interval list %d", i)
			}
			intervalLists[i] = intervals
		}

		pageBuf := make([]byte, pageSize)
		for _, intervals := range intervalLists {
			if _, err := io.ReadFull(r, pageBuf); err != nil {
				return parsedBody{}, stats, errors.Wrapf(err, "reading intra-dedup page content")
			}

			content := string(pageBuf)
			for _, pagenr := range intervalcoder.Expand(intervals) {
				newPages[pagenr] = content
				stats.NewPageTotalPages++
			}
		}
	} else {
		intervals, err := intervalcoder.DecodeListOrEmpty(r)
		if err != nil {
			return parsedBody{}, stats, errors.Wrapf(err, "reading new-page interval list")
		}

		pageNumbers := intervalcoder.Expand(intervals)
		stats.DistinctNewPages = len(pageNumbers)
		stats.NewPageTotalPages = len(pageNumbers)

		pageBuf := make([]byte, pageSize)
		for _, pagenr := range pageNumbers {
			if _, err := io.ReadFull(r, pageBuf); err != nil {
				return parsedBody{}, stats, errors.Wrapf(err, "reading new page %d content", pagenr)
			}

			newPages[pagenr] = string(pageBuf)
		}
	}

	return parsedBody{
		refPath:  refPath,
		fills:    fills,
		diffs:    diffs,
		newPages: newPages,
	}, stats, nil
}

// reconstruct rebuilds the full source dump from parsed, ref, and
// pageCount, per interdedup_decompress.cpp's per-page reconstruction
// loop: dedup fill, else diff, else new page, else implicit
// same-index fallback.
func reconstruct(w io.Writer, parsed parsedBody, ref *pagestore.Store, pageCount uint32, diffing bool) error {
	refByNumber := ref.ByNumber()

	for pagenr := uint32(0); pagenr < pageCount; pagenr++ {
		switch {
		case isFilled(parsed, pagenr):
			refnum := parsed.fills[pagenr]
			if int(refnum) >= len(refByNumber) {
				return codecerrors.NewFormatMismatch("dedup fill for page %d points at out-of-range reference page %d", pagenr, refnum)
			}

			if _, err := w.Write([]byte(refByNumber[refnum])); err != nil {
				return errors.Wrap(err)
			}

		case diffing && isDiffed(parsed, pagenr):
			if int(pagenr) >= len(refByNumber) {
				return codecerrors.NewFormatMismatch("diffed page %d has no same-index reference page", pagenr)
			}

			content, err := diffcoder.ApplyPatches([]byte(refByNumber[pagenr]), parsed.diffs[pagenr])
			if err != nil {
				return errors.Wrapf(err, "applying diff for page %d", pagenr)
			}

			if _, err := w.Write(content); err != nil {
				return errors.Wrap(err)
			}

		case isNewPage(parsed, pagenr):
			if _, err := w.Write([]byte(parsed.newPages[pagenr])); err != nil {
				return errors.Wrap(err)
			}

		default:
			if int(pagenr) >= len(refByNumber) {
				return codecerrors.NewFormatMismatch("page %d has no explicit entry and no same-index reference page", pagenr)
			}

			if _, err := w.Write([]byte(refByNumber[pagenr])); err != nil {
				return errors.Wrap(err)
			}
		}
	}

	return nil
}

func isFilled(parsed parsedBody, pagenr uint32) bool {
	_, ok := parsed.fills[pagenr]
	return ok
}

func isDiffed(parsed parsedBody, pagenr uint32) bool {
	_, ok := parsed.diffs[pagenr]
	return ok
}

func isNewPage(parsed parsedBody, pagenr uint32) bool {
	_, ok := parsed.newPages[pagenr]
	return ok
}
