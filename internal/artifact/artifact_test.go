//go:build test && debug

package artifact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mbrengel/memscrimper/internal/innercompress"
	"github.com/mbrengel/memscrimper/internal/pagestore"
)

func mustStore(t *testing.T, dir, name string, pages ...string) *pagestore.Store {
	t.Helper()

	pageSize := len(pages[0])
	path := filepath.Join(dir, name)

	var data []byte
	for _, p := range pages {
		if len(p) != pageSize {
			t.Fatalf("page %q has length %d, want %d", p, len(p), pageSize)
		}
		data = append(data, []byte(p)...)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing %q: %v", path, err)
	}

	store, err := pagestore.Load(path, uint32(pageSize))
	if err != nil {
		t.Fatalf("loading %q: %v", path, err)
	}

	return store
}

func readFile(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %q: %v", path, err)
	}

	return string(data)
}

func loaderFor(dir string) RefLoader {
	return func(path string, pageSize uint32) (*pagestore.Store, error) {
		return pagestore.Load(filepath.Join(dir, filepath.Base(path)), pageSize)
	}
}

func roundTrip(t *testing.T, ref, src *pagestore.Store, dir string, opts Options) string {
	t.Helper()

	outPath := filepath.Join(dir, "out.mbcr")
	if err := Compress(ref, src, outPath, opts); err != nil {
		t.Fatalf("Compress: %v", err)
	}

	restoredPath := filepath.Join(dir, "restored")
	if err := Decompress(outPath, restoredPath, loaderFor(dir)); err != nil {
		t.Fatalf("Decompress: %v", err)
	}

	return readFile(t, restoredPath)
}

func TestRoundTripDedupDiffAndNewPages(t *testing.T) {
	dir := t.TempDir()

	ref := mustStore(t, dir, "ref", "CCCCCCCC", "ABCDEFGH", "RRRRRRRR")
	src := mustStore(t, dir, "src", "SSSSSSSS", "ABCDEXGH", "CCCCCCCC")

	for _, opts := range []Options{
		{Inner: innercompress.None, Diffing: false, Intra: false},
		{Inner: innercompress.None, Diffing: true, Intra: false},
		{Inner: innercompress.None, Diffing: true, Intra: true},
		{Inner: innercompress.Gzip, Diffing: true, Intra: true},
		{Inner: innercompress.Bzip2, Diffing: true, Intra: true},
		{Inner: innercompress.Zip7, Diffing: true, Intra: true},
	} {
		got := roundTrip(t, ref, src, dir, opts)
		want := readFile(t, src.Path())

		if got != want {
			t.Errorf("opts=%+v: round trip mismatch: got %q, want %q", opts, got, want)
		}
	}
}

func TestRoundTripIntraDeduplicatesRepeatedNewPage(t *testing.T) {
	dir := t.TempDir()

	ref := mustStore(t, dir, "ref", "RRRRRRRR")
	src := mustStore(t, dir, "src",
		"RRRRRRRR", "XXXXXXXX", "RRRRRRRR", "XXXXXXXX", "XXXXXXXX",
	)

	got := roundTrip(t, ref, src, dir, Options{Inner: innercompress.None, Diffing: false, Intra: true})
	want := readFile(t, src.Path())

	if got != want {
		t.Fatalf("round trip mismatch: got %q, want %q", got, want)
	}
}

func TestRoundTripIdenticalDumps(t *testing.T) {
	dir := t.TempDir()

	ref := mustStore(t, dir, "ref", "00000000", "00000000")
	src := mustStore(t, dir, "src", "00000000", "00000000")

	got := roundTrip(t, ref, src, dir, Options{Inner: innercompress.None, Diffing: true, Intra: true})
	want := readFile(t, src.Path())

	if got != want {
		t.Fatalf("round trip mismatch: got %q, want %q", got, want)
	}
}

func TestRoundTripReorderedPage(t *testing.T) {
	dir := t.TempDir()

	// Spec example #3.
	ref := mustStore(t, dir, "ref", "CCCCCCCC", "RRRRRRRR")
	src := mustStore(t, dir, "src", "SSSSSSSS", "CCCCCCCC")

	got := roundTrip(t, ref, src, dir, Options{Inner: innercompress.None, Diffing: false, Intra: false})
	want := readFile(t, src.Path())

	if got != want {
		t.Fatalf("round trip mismatch: got %q, want %q", got, want)
	}
}

func TestCompressOverwritesAtomically(t *testing.T) {
	dir := t.TempDir()

	ref := mustStore(t, dir, "ref", "RRRRRRRR")
	src := mustStore(t, dir, "src", "SSSSSSSS")

	outPath := filepath.Join(dir, "out.mbcr")
	if err := os.WriteFile(outPath, []byte("stale artifact"), 0o644); err != nil {
		t.Fatalf("seeding stale artifact: %v", err)
	}

	opts := Options{Inner: innercompress.None, Diffing: false, Intra: false}
	if err := Compress(ref, src, outPath, opts); err != nil {
		t.Fatalf("Compress: %v", err)
	}

	if _, err := os.Stat(outPath + ".processing"); !os.IsNotExist(err) {
		t.Errorf("expected .processing file to be renamed away, stat err = %v", err)
	}

	header, err := ReadHeader(mustOpen(t, outPath))
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}

	if header.Method != "interdedupnointra" {
		t.Errorf("Method = %q, want %q", header.Method, "interdedupnointra")
	}
}

func mustOpen(t *testing.T, path string) *os.File {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening %q: %v", path, err)
	}
	t.Cleanup(func() { f.Close() })

	return f
}
