// Package pagestore loads a fixed-page-size dump file and indexes it two
// ways: content to the (ascending) set of page numbers holding that
// content, and page number back to content. The second index is built
// lazily — it costs one pointer per page and is only needed on the
// decode side and inside the diff path — grounded on the original's
// memdump: "compute once, observe under a read guard" (see memdump.h /
// memdump.cpp's getNumToPage), expressed here with sync.Once instead of a
// hand-rolled emptiness check under a mutex.
package pagestore

import (
	"io"
	"os"
	"sync"

	"github.com/mbrengel/memscrimper/internal/codecerrors"
	"github.com/mbrengel/memscrimper/internal/errors"
)

// Store holds one dump's pages, indexed by content and (lazily) by page
// number. Once Load returns successfully, a Store is immutable and safe
// for concurrent reads from multiple goroutines — including concurrent
// first calls to ByNumber, which all observe the same inverted index.
type Store struct {
	path      string
	pageSize  uint32
	pageCount uint32

	// pageMap maps page content to the ascending set of page numbers
	// holding it. Page numbers are appended in increasing order as the
	// file is read sequentially, so each slice is already sorted —
	// callers must not mutate it.
	pageMap map[string][]uint32

	invertOnce sync.Once
	numToPage  []string
}

// Load reads path in pageSize-byte chunks and indexes its pages by
// content. It fails if the file size is not a positive multiple of
// pageSize.
func Load(path string, pageSize uint32) (store *Store, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening dump %q", path)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, "statting dump %q", path)
	}

	size := info.Size()
	if size <= 0 || size%int64(pageSize) != 0 {
		return nil, codecerrors.NewFormatMismatch(
			"dump %q size %d is not a positive multiple of page size %d",
			path, size, pageSize,
		)
	}

	store = &Store{
		path:      path,
		pageSize:  pageSize,
		pageCount: uint32(size / int64(pageSize)),
		pageMap:   make(map[string][]uint32),
	}

	buf := make([]byte, pageSize)

	for pagenr := uint32(0); pagenr < store.pageCount; pagenr++ {
		if _, err := io.ReadFull(f, buf); err != nil {
			return nil, errors.Wrapf(err, "reading page %d of %q", pagenr, path)
		}

		content := string(buf)
		store.pageMap[content] = append(store.pageMap[content], pagenr)
	}

	return store, nil
}

// Path returns the path the store was loaded from.
func (store *Store) Path() string {
	return store.path
}

// PageSize returns the fixed page size used to load this store.
func (store *Store) PageSize() uint32 {
	return store.pageSize
}

// PageCount returns the number of pages in the dump.
func (store *Store) PageCount() uint32 {
	return store.pageCount
}

// Pages returns the content-to-page-numbers index. The returned map and
// its value slices must not be mutated by the caller.
func (store *Store) Pages() map[string][]uint32 {
	return store.pageMap
}

// ByNumber returns the page-number-to-content index, building it on first
// call. Safe to call concurrently; all callers observe the same slice
// once built.
func (store *Store) ByNumber() []string {
	store.invertOnce.Do(store.invert)
	return store.numToPage
}

func (store *Store) invert() {
	numToPage := make([]string, store.pageCount)

	for content, pagenrs := range store.pageMap {
		for _, pagenr := range pagenrs {
			numToPage[pagenr] = content
		}
	}

	store.numToPage = numToPage
}
