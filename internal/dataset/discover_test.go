package dataset

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiscoverShardsBasic(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "shard-000000.tar"))
	mustWrite(t, filepath.Join(dir, "nested", "shard-000001.tar"))
	mustWrite(t, filepath.Join(dir, "ignore.txt"))
	mustWrite(t, filepath.Join(dir, "shard-1.tar"))

	shards, err := DiscoverShards(dir)
	if err != nil {
		t.Fatalf("DiscoverShards error: %v", err)
	}
	want := []string{
		filepath.Join(dir, "nested", "shard-000001.tar"),
		filepath.Join(dir, "shard-000000.tar"),
	}
	if len(shards) != len(want) {
		t.Fatalf("expected %d shards, got %d", len(want), len(shards))
	}
	for i, shard := range want {
		if shards[i] != shard {
			t.Fatalf("shard[%d]=%s want %s", i, shards[i], shard)
		}
	}
}

func TestDiscoverByRoot(t *testing.T) {
	a := t.TempDir()
	b := t.TempDir()
	mustWrite(t, filepath.Join(a, "shard-000000.tar"))
	mustWrite(t, filepath.Join(b, "shard-000001.tar"))
	mustWrite(t, filepath.Join(b, "shard-000002.tar"))

	roots, err := DiscoverByRoot([]string{a, b})
	if err != nil {
		t.Fatalf("DiscoverByRoot error: %v", err)
	}
	if len(roots[a]) != 1 || len(roots[b]) != 2 {
		t.Fatalf("unexpected shard counts: %v", roots)
	}

	if _, err := DiscoverByRoot([]string{a, t.TempDir()}); err == nil {
		t.Fatalf("expected error for a root without shards")
	}
	if _, err := DiscoverByRoot([]string{filepath.Join(a, "missing")}); err == nil {
		t.Fatalf("expected error for a missing root")
	}
}

func mustWrite(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(""), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
