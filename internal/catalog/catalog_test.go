package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return path
}

func TestUpsertDocumentIdempotent(t *testing.T) {
	c := newTestCatalog(t)
	root := t.TempDir()
	path := writeFile(t, root, "docs/report.txt", "quarterly report")

	id1, err := c.UpsertDocument(path, []string{root})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if id1 == 0 {
		t.Fatal("first upsert returned absent")
	}
	first, err := c.DocumentByPath(path)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}

	id2, err := c.UpsertDocument(path, []string{root})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if id2 != id1 {
		t.Errorf("identity changed across upserts: %d then %d", id1, id2)
	}
	second, err := c.DocumentByPath(path)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if *first != *second {
		t.Errorf("derived fields changed across upserts:\n%+v\n%+v", first, second)
	}
	if second.Filetype != "Document" || second.SizeBucket != "<1MB" || second.DateBucket != "Today" {
		t.Errorf("unexpected derived fields: %+v", second)
	}
	if second.NameNorm != "report.txt" {
		t.Errorf("name_norm = %q, want report.txt", second.NameNorm)
	}
}

func TestUpsertDocumentStatRace(t *testing.T) {
	c := newTestCatalog(t)
	id, err := c.UpsertDocument(filepath.Join(t.TempDir(), "gone.txt"), nil)
	if err != nil {
		t.Fatalf("stat race must not error, got %v", err)
	}
	if id != 0 {
		t.Errorf("missing file produced id %d, want 0", id)
	}
}

func TestUpsertClearsDeleted(t *testing.T) {
	c := newTestCatalog(t)
	root := t.TempDir()
	path := writeFile(t, root, "a.txt", "x")

	if _, err := c.UpsertDocument(path, []string{root}); err != nil {
		t.Fatal(err)
	}
	if err := c.MarkDeleted(path); err != nil {
		t.Fatal(err)
	}
	doc, _ := c.DocumentByPath(path)
	if !doc.Deleted {
		t.Fatal("expected tombstone")
	}

	if _, err := c.UpsertDocument(path, []string{root}); err != nil {
		t.Fatal(err)
	}
	doc, _ = c.DocumentByPath(path)
	if doc.Deleted {
		t.Error("re-observing a path must clear deleted")
	}
}

func TestMarkDeletedRemovesContent(t *testing.T) {
	c := newTestCatalog(t)
	root := t.TempDir()
	path := writeFile(t, root, "a.txt", "hello world")

	id, err := c.UpsertDocument(path, []string{root})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.UpsertContent(id, "hello world"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := c.HasContent(id); !ok {
		t.Fatal("content entry should exist")
	}

	if err := c.MarkDeleted(path); err != nil {
		t.Fatal(err)
	}
	if ok, _ := c.HasContent(id); ok {
		t.Error("deleted=true must imply no content-index entry")
	}

	// Unknown paths are a no-op, not an error.
	if err := c.MarkDeleted(filepath.Join(root, "never-seen.txt")); err != nil {
		t.Errorf("mark deleted on unknown path: %v", err)
	}
}

func TestMoveSemantics(t *testing.T) {
	c := newTestCatalog(t)
	root := t.TempDir()
	src := writeFile(t, root, "old/name.txt", "payload")

	if _, err := c.UpsertDocument(src, []string{root}); err != nil {
		t.Fatal(err)
	}

	// Destination insert happens before the source tombstone.
	dst := filepath.Join(root, "new", "name.txt")
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(src, dst); err != nil {
		t.Fatal(err)
	}
	if _, err := c.UpsertDocument(dst, []string{root}); err != nil {
		t.Fatal(err)
	}
	if err := c.MarkDeleted(src); err != nil {
		t.Fatal(err)
	}

	dstDoc, _ := c.DocumentByPath(dst)
	if dstDoc == nil || dstDoc.Deleted {
		t.Errorf("destination must resolve to a non-deleted document, got %+v", dstDoc)
	}
	srcDoc, _ := c.DocumentByPath(src)
	if srcDoc == nil || !srcDoc.Deleted {
		t.Errorf("source must resolve to a tombstoned document, got %+v", srcDoc)
	}
}

func TestEnsureLocationIdempotent(t *testing.T) {
	c := newTestCatalog(t)
	id1, err := c.EnsureLocation("/data")
	if err != nil {
		t.Fatal(err)
	}
	id2, err := c.EnsureLocation("/data")
	if err != nil {
		t.Fatal(err)
	}
	if id1 != id2 {
		t.Errorf("EnsureLocation not idempotent: %d then %d", id1, id2)
	}
}

func TestScanState(t *testing.T) {
	c := newTestCatalog(t)

	complete, err := c.IsInitialScanComplete("/unknown")
	if err != nil {
		t.Fatal(err)
	}
	if complete {
		t.Error("unknown location must report incomplete")
	}

	count := 120
	if err := c.UpdateScanState("/data", nil, &count); err != nil {
		t.Fatal(err)
	}
	if complete, _ := c.IsInitialScanComplete("/data"); complete {
		t.Error("partial checkpoint must not mark complete")
	}

	done := true
	final := 240
	if err := c.UpdateScanState("/data", &done, &final); err != nil {
		t.Fatal(err)
	}
	if complete, _ := c.IsInitialScanComplete("/data"); !complete {
		t.Error("expected scan marked complete")
	}

	// Refreshing the timestamp alone keeps the other fields.
	if err := c.UpdateScanState("/data", nil, nil); err != nil {
		t.Fatal(err)
	}
	if complete, _ := c.IsInitialScanComplete("/data"); !complete {
		t.Error("timestamp refresh must not reset completion")
	}
}

func TestCountDocuments(t *testing.T) {
	c := newTestCatalog(t)
	root := t.TempDir()
	a := writeFile(t, root, "a.txt", "a")
	writeFile(t, root, "b.txt", "b")

	for _, p := range []string{a, filepath.Join(root, "b.txt")} {
		if _, err := c.UpsertDocument(p, []string{root}); err != nil {
			t.Fatal(err)
		}
	}
	n, err := c.CountDocuments([]string{root})
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}

	if err := c.MarkDeleted(a); err != nil {
		t.Fatal(err)
	}
	n, _ = c.CountDocuments([]string{root})
	if n != 1 {
		t.Errorf("count after tombstone = %d, want 1", n)
	}

	if n, _ := c.CountDocuments(nil); n != 0 {
		t.Errorf("count with no paths = %d, want 0", n)
	}
}

func TestLocationIDsForPaths(t *testing.T) {
	c := newTestCatalog(t)
	id, err := c.EnsureLocation("/data")
	if err != nil {
		t.Fatal(err)
	}
	ids, err := c.LocationIDsForPaths([]string{"/data", "/missing"})
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != id {
		t.Errorf("ids = %v, want [%d]", ids, id)
	}
}

func TestPathsMissingContentBatches(t *testing.T) {
	c := newTestCatalog(t)
	root := t.TempDir()

	want := make(map[string]bool)
	var ids []int64
	for _, name := range []string{"file_0.txt", "file_1.txt", "file_2.txt"} {
		p := writeFile(t, root, filepath.Join("docs", name), "payload")
		id, err := c.UpsertDocument(p, []string{root})
		if err != nil {
			t.Fatal(err)
		}
		want[p] = true
		ids = append(ids, id)
	}

	var batches [][]string
	got := make(map[string]bool)
	for batch := range c.PathsMissingContent([]string{root}, 1) {
		if len(batch) > 1 {
			t.Errorf("batch size %d exceeds requested 1", len(batch))
		}
		batches = append(batches, batch)
		for _, p := range batch {
			if got[p] {
				t.Errorf("path %s enumerated twice", p)
			}
			got[p] = true
		}
	}
	if len(batches) != 3 {
		t.Errorf("got %d batches, want 3", len(batches))
	}
	if len(got) != len(want) {
		t.Errorf("union = %v, want %v", got, want)
	}
	for p := range want {
		if !got[p] {
			t.Errorf("path %s missing from enumeration", p)
		}
	}

	// Indexed documents drop out of the sequence.
	if err := c.UpsertContent(ids[0], "payload"); err != nil {
		t.Fatal(err)
	}
	remaining := 0
	for batch := range c.PathsMissingContent([]string{root}, 10) {
		remaining += len(batch)
	}
	if remaining != 2 {
		t.Errorf("remaining = %d, want 2", remaining)
	}
}

func TestResolveLocation(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		roots []string
		want  string
	}{
		{"longest prefix wins", "/data/docs/a.txt", []string{"/data", "/data/docs"}, "/data/docs"},
		{"single root", "/data/a.txt", []string{"/data"}, "/data"},
		{"no match falls back to parent", "/other/a.txt", []string{"/data"}, "/other"},
		{"no roots falls back to parent", "/other/sub/a.txt", nil, "/other/sub"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveLocation(tt.path, tt.roots); got != tt.want {
				t.Errorf("resolveLocation(%q, %v) = %q, want %q", tt.path, tt.roots, got, tt.want)
			}
		})
	}
}

func TestUpsertBatchRollsBackTogether(t *testing.T) {
	c := newTestCatalog(t)
	root := t.TempDir()
	a := writeFile(t, root, "a.txt", "a")
	b := writeFile(t, root, "b.txt", "b")

	ids, err := c.UpsertBatch([]string{a, b, filepath.Join(root, "missing.txt")}, []string{root})
	if err != nil {
		t.Fatalf("batch with a stat-raced member must not fail: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("got %d ids, want 2 (raced path skipped)", len(ids))
	}
	if n, _ := c.CountDocuments([]string{root}); n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
}
