// Package classifier partitions a source dump's pages against a
// reference dump into deduplicated, diffed, and new pages, per the
// spec's Classifier. Each distinct source content is visited once;
// the per-content decision (dedup / diff / intra-new / new) follows
// the C++ reference's interdedup_compress.cpp main loop exactly.
package classifier

import (
	"sort"

	"github.com/mbrengel/memscrimper/internal/codecerrors"
	"github.com/mbrengel/memscrimper/internal/diffcoder"
	"github.com/mbrengel/memscrimper/internal/errors"
	"github.com/mbrengel/memscrimper/internal/pagestore"
)

// Classification holds the per-content decisions made for one source
// dump against one reference dump. Map iteration order is not
// meaningful; use the ordered accessor methods when a deterministic
// write order is needed.
type Classification struct {
	// Dedups maps a reference page number (the minimum page number in
	// the reference holding some content) to the source page numbers
	// that hold the same content but are not already at that number in
	// the reference.
	Dedups map[uint32][]uint32

	// Diffs maps a source page number to the diff blob that turns the
	// reference page at the same index into this source page's content.
	// Only populated when diffing is enabled and profitable.
	Diffs map[uint32][]byte

	// NewPages maps a source page number to its content, for pages with
	// no reference match that were not profitably diffed. Populated only
	// when intra-deduplication is disabled.
	NewPages map[uint32]string

	// SameNewPages maps content with no reference match to the source
	// page numbers holding it. Populated only when intra-deduplication
	// is enabled.
	SameNewPages map[string][]uint32
}

// Classify partitions src's pages against ref. diffing enables
// byte-patch diffing of unmatched pages; intra enables merging
// identical unmatched pages within src instead of emitting each
// separately.
func Classify(ref, src *pagestore.Store, diffing, intra bool) (*Classification, error) {
	result := &Classification{
		Dedups:       make(map[uint32][]uint32),
		Diffs:        make(map[uint32][]byte),
		NewPages:     make(map[uint32]string),
		SameNewPages: make(map[string][]uint32),
	}

	refPages := ref.Pages()
	srcPages := src.Pages()

	var refByNumber []string
	if diffing {
		refByNumber = ref.ByNumber()
	}

	for _, content := range orderedContents(srcPages) {
		sourceNumbers := srcPages[content]

		if referenceNumbers, ok := refPages[content]; ok {
			diff := pagestore.SetDifference(sourceNumbers, referenceNumbers)
			if len(diff) > 0 {
				representative := referenceNumbers[0]
				result.Dedups[representative] = diff
			}
			continue
		}

		for _, s := range sourceNumbers {
			if diffing {
				diffed, err := tryDiff(refByNumber, s, content, src.PageSize())
				if err != nil {
					return nil, errors.Wrap(err)
				}

				if diffed != nil {
					result.Diffs[s] = diffed
					continue
				}
			}

			if intra {
				result.SameNewPages[content] = append(result.SameNewPages[content], s)
			} else {
				result.NewPages[s] = content
			}
		}
	}

	return result, nil
}

// tryDiff returns the diff blob for source page s against the
// reference page at the same index, or nil if the diff is not smaller
// than the page itself. It returns an ErrFormatMismatch error if the
// reference has no page at that index.
func tryDiff(refByNumber []string, s uint32, content string, pageSize uint32) ([]byte, error) {
	if int(s) >= len(refByNumber) {
		return nil, codecerrors.NewFormatMismatch(
			"source page %d has no same-index reference page to diff against", s,
		)
	}

	diff, err := diffcoder.CreateDiff([]byte(refByNumber[s]), []byte(content))
	if err != nil {
		return nil, errors.Wrap(err)
	}

	if uint32(len(diff)) >= pageSize {
		return nil, nil
	}

	return diff, nil
}

// orderedContents returns pageMap's keys sorted by the ascending
// minimum page number holding each content, giving classification a
// deterministic iteration order independent of Go's map iteration.
func orderedContents(pageMap map[string][]uint32) []string {
	contents := make([]string, 0, len(pageMap))
	for content := range pageMap {
		contents = append(contents, content)
	}

	sort.Slice(contents, func(i, j int) bool {
		return pageMap[contents[i]][0] < pageMap[contents[j]][0]
	})

	return contents
}

// DedupRepresentatives returns Dedups' keys in ascending order.
func (c *Classification) DedupRepresentatives() []uint32 {
	return sortedKeys(c.Dedups)
}

// DiffPageNumbers returns Diffs' keys in ascending order.
func (c *Classification) DiffPageNumbers() []uint32 {
	return sortedKeys(c.Diffs)
}

// NewPageNumbers returns NewPages' keys in ascending order.
func (c *Classification) NewPageNumbers() []uint32 {
	return sortedKeys(c.NewPages)
}

// SameNewPageContents returns SameNewPages' keys ordered by the
// ascending minimum page number holding each content, matching the
// deterministic order Classify itself visited them in.
func (c *Classification) SameNewPageContents() []string {
	contents := make([]string, 0, len(c.SameNewPages))
	for content := range c.SameNewPages {
		contents = append(contents, content)
	}

	sort.Slice(contents, func(i, j int) bool {
		return c.SameNewPages[contents[i]][0] < c.SameNewPages[contents[j]][0]
	})

	return contents
}

func sortedKeys[V any](m map[uint32]V) []uint32 {
	keys := make([]uint32, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	return keys
}
