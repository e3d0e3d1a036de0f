// Package pool runs the bounded-queue extraction workers. Producers enqueue
// discovered paths without blocking; workers refresh each file's catalog
// metadata, run content extraction, and keep the inverted index in step.
package pool

import (
	"log/slog"
	"os"
	"sync"
	"time"

	"fastsearch/internal/catalog"
)

// Extractor is the content extraction capability the pool is constructed
// with. Implementations return ok=false instead of failing.
type Extractor interface {
	Extract(path string, sizeLimit int64) (text string, ok bool)
}

// Config holds the pool's construction parameters.
type Config struct {
	Workers         int
	QueueCapacity   int
	MaxExtractBytes int64
}

const stopTimeout = 2 * time.Second

// Pool is a fixed-size set of workers consuming a bounded queue of paths.
type Pool struct {
	cat       *catalog.Catalog
	extractor Extractor
	cfg       Config
	log       *slog.Logger

	queue chan string
	stop  chan struct{}
	wg    sync.WaitGroup

	mu      sync.Mutex
	roots   []string
	started bool
	stopped bool
}

// New creates a pool. The zero values of cfg select the configured defaults
// upstream; here they are taken as given.
func New(cat *catalog.Catalog, ext Extractor, cfg Config, log *slog.Logger) *Pool {
	if log == nil {
		log = slog.Default()
	}
	return &Pool{
		cat:       cat,
		extractor: ext,
		cfg:       cfg,
		log:       log,
		queue:     make(chan string, cfg.QueueCapacity),
		stop:      make(chan struct{}),
	}
}

// SetRoots sets the candidate roots workers pass to metadata upserts. With no
// roots configured, a file's parent directory serves as its location.
func (p *Pool) SetRoots(roots []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.roots = append([]string(nil), roots...)
}

func (p *Pool) currentRoots() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.roots
}

// Start launches the workers. Calling Start twice is a no-op.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.run()
	}
}

// Stop signals the workers and joins them with a bounded wait, so shutdown is
// never blocked indefinitely by a straggler. Idempotent.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	close(p.stop)
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(stopTimeout):
		p.log.Warn("pool stop timed out waiting for workers")
	}
}

// Enqueue offers a path to the queue without blocking. When the queue is
// full the item is dropped; queue pressure degrades indexing completeness,
// never the producer.
func (p *Pool) Enqueue(path string) bool {
	select {
	case p.queue <- path:
		return true
	default:
		return false
	}
}

// QueueDepth reports the number of queued paths.
func (p *Pool) QueueDepth() int {
	return len(p.queue)
}

func (p *Pool) run() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stop:
			return
		case path := <-p.queue:
			p.process(path)
		}
	}
}

// process handles one dequeued path. Every failure is logged and swallowed:
// one bad file must not stop the pool.
func (p *Pool) process(path string) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("extraction worker panic", "path", path, "panic", r)
		}
	}()

	fi, err := os.Stat(path)
	if err != nil || !fi.Mode().IsRegular() {
		return
	}

	docID, err := p.cat.UpsertDocument(path, p.currentRoots())
	if err != nil {
		p.log.Warn("metadata upsert failed", "path", path, "error", err)
		return
	}
	if docID == 0 {
		return
	}

	if text, ok := p.extractor.Extract(path, p.cfg.MaxExtractBytes); ok {
		if err := p.cat.UpsertContent(docID, text); err != nil {
			p.log.Warn("content upsert failed", "path", path, "error", err)
		}
		return
	}
	// No usable text: clear any stale entry so the index never lies.
	if err := p.cat.DeleteContent(docID); err != nil {
		p.log.Warn("content delete failed", "path", path, "error", err)
	}
}
