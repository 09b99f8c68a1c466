//go:build test && debug

package refcache

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func writeDump(t *testing.T, dir, name string, pages ...string) string {
	t.Helper()

	path := filepath.Join(dir, name)

	var data []byte
	for _, p := range pages {
		data = append(data, []byte(p)...)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing %q: %v", path, err)
	}

	return path
}

func TestGetCachesOnFirstLoad(t *testing.T) {
	dir := t.TempDir()
	path := writeDump(t, dir, "ref", "RRRRRRRR")

	c := New()

	first, err := c.Get(path, 8)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	second, err := c.Get(path, 8)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if first != second {
		t.Errorf("expected second Get to return the same cached store")
	}

	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestGetConcurrentLoadsConverge(t *testing.T) {
	dir := t.TempDir()
	path := writeDump(t, dir, "ref", "RRRRRRRR")

	c := New()

	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Get(path, 8); err != nil {
				t.Errorf("Get: %v", err)
			}
		}()
	}

	wg.Wait()

	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestAddReplacesExistingEntry(t *testing.T) {
	dir := t.TempDir()
	path := writeDump(t, dir, "ref", "RRRRRRRR")

	c := New()

	first, err := c.Get(path, 8)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if err := c.Add(path, 8); err != nil {
		t.Fatalf("Add: %v", err)
	}

	second, err := c.Get(path, 8)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if first == second {
		t.Errorf("expected Add to force a fresh load")
	}
}

func TestRemoveEvictsEntry(t *testing.T) {
	dir := t.TempDir()
	path := writeDump(t, dir, "ref", "RRRRRRRR")

	c := New()

	if _, err := c.Get(path, 8); err != nil {
		t.Fatalf("Get: %v", err)
	}

	c.Remove(path)

	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after Remove", c.Len())
	}
}
