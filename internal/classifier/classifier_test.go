//go:build test && debug

package classifier

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

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

func TestClassifyDedupReorderedPage(t *testing.T) {
	dir := t.TempDir()

	// Spec example #3: R has content C at page 0; S has content C at
	// page 1, with a different page 0.
	ref := mustStore(t, dir, "ref", "CCCCCCCC", "RRRRRRRR")
	src := mustStore(t, dir, "src", "SSSSSSSS", "CCCCCCCC")

	result, err := Classify(ref, src, false, false)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	if got, want := result.Dedups[0], []uint32{1}; !cmp.Equal(got, want) {
		t.Errorf("Dedups[0] = %v, want %v", got, want)
	}

	if got, want := result.NewPages[0], "SSSSSSSS"; got != want {
		t.Errorf("NewPages[0] = %q, want %q", got, want)
	}
}

func TestClassifyIntraDedup(t *testing.T) {
	dir := t.TempDir()

	ref := mustStore(t, dir, "ref", "RRRRRRRR")
	src := mustStore(t, dir, "src",
		"RRRRRRRR", "RRRRRRRR", "RRRRRRRR",
		"XXXXXXXX", "RRRRRRRR",
		"XXXXXXXX",
		"RRRRRRRR",
		"XXXXXXXX",
	)

	result, err := Classify(ref, src, false, true)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	if got, want := result.SameNewPages["XXXXXXXX"], []uint32{3, 5, 7}; !cmp.Equal(got, want) {
		t.Errorf("SameNewPages[X] = %v, want %v", got, want)
	}

	contents := result.SameNewPageContents()
	if len(contents) != 1 || contents[0] != "XXXXXXXX" {
		t.Errorf("SameNewPageContents = %v", contents)
	}
}

func TestClassifyDiffingPrefersProfitablePatch(t *testing.T) {
	dir := t.TempDir()

	ref := mustStore(t, dir, "ref", "ABCDEFGH")
	src := mustStore(t, dir, "src", "ABCDEXGH")

	result, err := Classify(ref, src, true, false)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	if _, ok := result.Diffs[0]; !ok {
		t.Fatalf("expected page 0 to be diffed, got Diffs=%v NewPages=%v", result.Diffs, result.NewPages)
	}

	if len(result.NewPages) != 0 {
		t.Errorf("expected no new pages, got %v", result.NewPages)
	}
}

func TestClassifyUnprofitableDiffFallsBackToNew(t *testing.T) {
	dir := t.TempDir()

	// A page that differs in almost every byte makes the diff at least
	// as large as the page itself, so it must not be recorded as a diff.
	ref := mustStore(t, dir, "ref", "AAAAAAAA")
	src := mustStore(t, dir, "src", "ZYXWVUTS")

	result, err := Classify(ref, src, true, false)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	if len(result.Diffs) != 0 {
		t.Errorf("expected no profitable diff, got %v", result.Diffs)
	}

	if got, want := result.NewPages[0], "ZYXWVUTS"; got != want {
		t.Errorf("NewPages[0] = %q, want %q", got, want)
	}
}

func TestClassifyIdenticalDumpsProduceNothingToEncode(t *testing.T) {
	// When R == S, every content's source page numbers are already a
	// subset of its reference page numbers, so the set difference that
	// feeds Dedups is empty at every content: reconstruction relies
	// entirely on the decoder's implicit same-index fallback, and the
	// classifier itself has nothing to record.
	dir := t.TempDir()

	ref := mustStore(t, dir, "ref", "00000000", "00000000")
	src := mustStore(t, dir, "src", "00000000", "00000000")

	result, err := Classify(ref, src, true, true)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	if len(result.Dedups) != 0 || len(result.Diffs) != 0 || len(result.NewPages) != 0 || len(result.SameNewPages) != 0 {
		t.Errorf("expected identical dumps to need no explicit encoding, got %+v", result)
	}
}
