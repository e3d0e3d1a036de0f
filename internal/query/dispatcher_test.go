package query

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"fastsearch/internal/catalog"
)

type collector struct {
	mu        sync.Mutex
	responses []Response
}

func (c *collector) add(r Response) {
	c.mu.Lock()
	c.responses = append(c.responses, r)
	c.mu.Unlock()
}

func (c *collector) all() []Response {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Response(nil), c.responses...)
}

func (c *collector) waitForCount(t *testing.T, n int) []Response {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if rs := c.all(); len(rs) >= n {
			return rs
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d responses, have %d", n, len(c.all()))
	return nil
}

func newTestDispatcher(t *testing.T, debounce time.Duration) (*Dispatcher, *collector, *catalog.Catalog) {
	t.Helper()
	cat, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { cat.Close() })

	c := &collector{}
	d := New(cat, debounce, c.add, nil)
	t.Cleanup(d.Stop)
	return d, c, cat
}

func seedDoc(t *testing.T, cat *catalog.Catalog, dir, name string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := cat.UpsertDocument(path, []string{dir}); err != nil {
		t.Fatal(err)
	}
}

func TestDispatcherDeliversResults(t *testing.T) {
	d, c, cat := newTestDispatcher(t, 10*time.Millisecond)
	dir := t.TempDir()
	seedDoc(t, cat, dir, "invoice.txt")

	d.Submit(Request{Seq: 1, Query: "invoice", Mode: catalog.ModeFilename, Limit: 50})

	rs := c.waitForCount(t, 1)
	if rs[0].Seq != 1 {
		t.Errorf("Seq = %d", rs[0].Seq)
	}
	if rs[0].Err != nil {
		t.Fatal(rs[0].Err)
	}
	if len(rs[0].Rows) != 1 || rs[0].Rows[0].Name != "invoice.txt" {
		t.Errorf("Rows = %+v", rs[0].Rows)
	}
}

func TestDebounceCoalescesBurst(t *testing.T) {
	d, c, cat := newTestDispatcher(t, 50*time.Millisecond)
	dir := t.TempDir()
	seedDoc(t, cat, dir, "report.txt")

	// A typing burst: only the final request should execute.
	d.Submit(Request{Seq: 1, Query: "r", Mode: catalog.ModeFilename, Limit: 50})
	d.Submit(Request{Seq: 2, Query: "re", Mode: catalog.ModeFilename, Limit: 50})
	d.Submit(Request{Seq: 3, Query: "rep", Mode: catalog.ModeFilename, Limit: 50})

	rs := c.waitForCount(t, 1)
	if rs[0].Seq != 3 {
		t.Errorf("delivered Seq = %d, want 3", rs[0].Seq)
	}

	// No earlier response trickles in afterwards.
	time.Sleep(150 * time.Millisecond)
	if got := c.all(); len(got) != 1 {
		t.Errorf("got %d responses, want 1", len(got))
	}
}

func TestStaleSequenceNeverDelivered(t *testing.T) {
	d, c, _ := newTestDispatcher(t, time.Millisecond)

	d.Submit(Request{Seq: 5, Query: "five", Mode: catalog.ModeFilename, Limit: 10})
	c.waitForCount(t, 1)

	// An out-of-order submission with a lower sequence is ignored outright.
	d.Submit(Request{Seq: 2, Query: "two", Mode: catalog.ModeFilename, Limit: 10})
	time.Sleep(50 * time.Millisecond)

	rs := c.all()
	if len(rs) != 1 || rs[0].Seq != 5 {
		t.Errorf("responses = %+v", rs)
	}
}

func TestEmptyQueryBrowsesAll(t *testing.T) {
	d, c, cat := newTestDispatcher(t, time.Millisecond)
	dir := t.TempDir()
	seedDoc(t, cat, dir, "a.txt")
	seedDoc(t, cat, dir, "b.txt")

	d.Submit(Request{Seq: 1, Query: "", Mode: catalog.ModeAll, Limit: 50})

	rs := c.waitForCount(t, 1)
	if len(rs[0].Rows) != 2 {
		t.Errorf("Rows = %d, want 2", len(rs[0].Rows))
	}
}

func TestStopIsIdempotent(t *testing.T) {
	d, _, _ := newTestDispatcher(t, time.Millisecond)
	d.Stop()
	d.Stop()
}
