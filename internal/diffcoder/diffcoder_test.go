//go:build test && debug

package diffcoder

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestApplyDiffRoundTrip(t *testing.T) {
	cases := []struct {
		ref    string
		target string
	}{
		{"AAAAAAAA", "AAAAAAAA"},
		{"AAAAAAAA", "ABAAAAAA"},
		{"AAAAAAAA", "ABBAABBA"},
		{"hello world, this is a page", "hello WORLD, this is a page"},
	}

	for _, c := range cases {
		diff, err := CreateDiff([]byte(c.ref), []byte(c.target))
		if err != nil {
			t.Fatalf("CreateDiff(%q, %q): %v", c.ref, c.target, err)
		}

		got, err := ApplyDiff([]byte(c.ref), diff)
		if err != nil {
			t.Fatalf("ApplyDiff(%q, diff of %q): %v", c.ref, c.target, err)
		}

		if string(got) != c.target {
			t.Errorf("round trip ref=%q target=%q -> %q", c.ref, c.target, got)
		}
	}
}

func TestCreateDiffIdenticalPagesIsEmpty(t *testing.T) {
	page := []byte("the quick brown fox jumps over the lazy dog")

	diff, err := CreateDiff(page, page)
	if err != nil {
		t.Fatalf("CreateDiff: %v", err)
	}

	if len(diff) != 2 {
		t.Errorf("diff of identical pages has length %d, want 2 (zero patches)", len(diff))
	}
}

func TestGeneratePatchesFusesShortSameRuns(t *testing.T) {
	// R = "AAAAAAAA", S = "ABBAABBA": mismatches at 1,2,5,6 with a run of
	// two matching bytes at 3-4 fusing into a single patch.
	ref := []byte("AAAAAAAA")
	target := []byte("ABBAABBA")

	patches, err := GeneratePatches(ref, target)
	if err != nil {
		t.Fatalf("GeneratePatches: %v", err)
	}

	want := []Patch{
		{Offset: 1, Bytes: []byte("BBAABB")},
	}

	if !cmp.Equal(patches, want) {
		t.Errorf("got %+v, want %+v", patches, want)
	}
}

func TestGeneratePatchesRejectsLengthMismatch(t *testing.T) {
	_, err := GeneratePatches([]byte("abc"), []byte("ab"))
	if err == nil {
		t.Fatal("expected error for mismatched page lengths")
	}
}

func TestGeneratePatchesChunksLongRuns(t *testing.T) {
	ref := bytes.Repeat([]byte{0x00}, 5000)
	target := bytes.Repeat([]byte{0xFF}, 5000)

	patches, err := GeneratePatches(ref, target)
	if err != nil {
		t.Fatalf("GeneratePatches: %v", err)
	}

	total := 0
	for i, p := range patches {
		if len(p.Bytes) > MaxPatchBytes {
			t.Errorf("patch %d has %d bytes, exceeds bound of %d", i, len(p.Bytes), MaxPatchBytes)
		}

		if i > 0 && p.Offset != 0 {
			t.Errorf("patch %d (not first) has nonzero offset %d", i, p.Offset)
		}

		total += len(p.Bytes)
	}

	if total != len(target) {
		t.Errorf("chunked patches cover %d bytes, want %d", total, len(target))
	}

	reconstructed, err := ApplyPatches(ref, patches)
	if err != nil {
		t.Fatalf("ApplyPatches: %v", err)
	}

	if !bytes.Equal(reconstructed, target) {
		t.Error("chunked patches did not reconstruct the target page")
	}
}

func TestPatchHeaderShortForm(t *testing.T) {
	// Spec example #2: a single-byte change at offset 5 encodes as the
	// patch count 01 00, then the 2-byte short-form header 00 05
	// (length-1 = 0, offset = 5), then the single byte 0x58.
	patches := []Patch{{Offset: 5, Bytes: []byte{0x58}}}

	var buf bytes.Buffer
	if err := EncodeDiff(&buf, patches); err != nil {
		t.Fatalf("EncodeDiff: %v", err)
	}

	want := []byte{0x01, 0x00, 0x00, 0x05, 0x58}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("got % x, want % x", buf.Bytes(), want)
	}
}

func TestPatchHeaderLongForm(t *testing.T) {
	patches := []Patch{{Offset: 300, Bytes: bytes.Repeat([]byte{0x01}, 200)}}

	var buf bytes.Buffer
	if err := EncodeDiff(&buf, patches); err != nil {
		t.Fatalf("EncodeDiff: %v", err)
	}

	got, err := DecodeDiff(&buf)
	if err != nil {
		t.Fatalf("DecodeDiff: %v", err)
	}

	if !cmp.Equal(got, patches) {
		t.Errorf("round trip %+v -> %+v", patches, got)
	}
}

func TestPatchHeaderLongFormAtMaxLength(t *testing.T) {
	// The long form's 12-bit length-1 field collides its top bit with the
	// header's own long-form flag bit, so MaxPatchBytes (length-1 = 2047)
	// is the largest length the format can carry at all; this is what
	// makes a longer patch "impossible by construction" rather than a
	// case DecodeDiff must actively reject.
	patches := []Patch{{Offset: 4000, Bytes: bytes.Repeat([]byte{0x7A}, MaxPatchBytes)}}

	var buf bytes.Buffer
	if err := EncodeDiff(&buf, patches); err != nil {
		t.Fatalf("EncodeDiff: %v", err)
	}

	got, err := DecodeDiff(&buf)
	if err != nil {
		t.Fatalf("DecodeDiff: %v", err)
	}

	if !cmp.Equal(got, patches) {
		t.Errorf("round trip at max length did not match")
	}
}

func TestApplyPatchesRejectsOverrun(t *testing.T) {
	ref := []byte("AAAAAAAA")
	patches := []Patch{{Offset: 6, Bytes: []byte("XXX")}}

	if _, err := ApplyPatches(ref, patches); err == nil {
		t.Fatal("expected error for a patch overrunning the page")
	}
}
