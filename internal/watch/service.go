// Package watch drives the catalog's write path: an initial recursive scan
// per watched root (resumable across restarts), a sweep that re-queues
// documents still missing content, and then live filesystem monitoring.
package watch

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"fastsearch/internal/catalog"
	"fastsearch/internal/pool"
)

// Config holds the service's construction parameters.
type Config struct {
	// Roots are the watched directory roots.
	Roots []string
	// ExcludeDirs holds lower-cased directory names pruned before descending.
	ExcludeDirs map[string]bool
	// SkipInitialIfIndexPresent skips the walk for roots whose previous
	// initial scan completed.
	SkipInitialIfIndexPresent bool
}

const (
	scanBatchSize    = 500
	requeueBatchSize = 5000
	joinTimeout      = 5 * time.Second
)

// Service owns the scan state machine and the live watcher. It writes to the
// catalog and produces work for the extraction pool; reads happen elsewhere.
type Service struct {
	cat  *catalog.Catalog
	pool *pool.Pool
	cfg  Config
	log  *slog.Logger

	mu             sync.Mutex
	onStatus       func(string)
	lastQueueDepth int
	started        bool
	stopped        bool

	stopCh     chan struct{}
	done       chan struct{}
	watcher    *treeWatcher
	tombstones sync.WaitGroup
}

// New creates a watch service over the given catalog and pool.
func New(cat *catalog.Catalog, p *pool.Pool, cfg Config, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		cat:            cat,
		pool:           p,
		cfg:            cfg,
		log:            log,
		lastQueueDepth: -1,
		stopCh:         make(chan struct{}),
		done:           make(chan struct{}),
	}
}

// OnStatus registers the callback receiving human-readable progress strings.
// Must be set before Start.
func (s *Service) OnStatus(fn func(string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStatus = fn
}

func (s *Service) emitStatus(msg string) {
	s.log.Info(msg)
	s.mu.Lock()
	fn := s.onStatus
	s.mu.Unlock()
	if fn != nil {
		fn(msg)
	}
}

// emitQueueStatus reports the pool's queue depth, but only when it changed
// since the last report, so listeners aren't flooded with duplicates.
func (s *Service) emitQueueStatus() {
	depth := s.pool.QueueDepth()
	s.mu.Lock()
	if depth == s.lastQueueDepth {
		s.mu.Unlock()
		return
	}
	s.lastQueueDepth = depth
	s.mu.Unlock()
	s.emitStatus(fmt.Sprintf("Content indexing queue depth: %d", depth))
}

// Start launches the scan-then-watch sequence in the background. Calling
// Start twice is a no-op.
func (s *Service) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	s.pool.SetRoots(s.cfg.Roots)
	go s.run()
}

func (s *Service) run() {
	defer close(s.done)

	var toScan []string
	for _, root := range s.cfg.Roots {
		complete := false
		if s.cfg.SkipInitialIfIndexPresent {
			var err error
			complete, err = s.cat.IsInitialScanComplete(root)
			if err != nil {
				s.log.Warn("scan state lookup failed", "root", root, "error", err)
			}
		}
		if !complete {
			toScan = append(toScan, root)
		}
	}

	if len(toScan) == 0 && s.cfg.SkipInitialIfIndexPresent {
		existing, err := s.cat.CountDocuments(s.cfg.Roots)
		if err != nil {
			s.log.Warn("document count failed", "error", err)
		}
		s.emitStatus(fmt.Sprintf("Loaded index (%d files)", existing))
	} else {
		for _, root := range toScan {
			if s.stopRequested() {
				break
			}
			if err := s.scanRoot(root); err != nil {
				// The failed batch rolled back; the next start re-walks
				// this root since it was never marked complete.
				s.emitStatus(fmt.Sprintf("Indexing failed for %s: %v", root, err))
			}
		}
	}

	s.requeueMissing()

	if s.stopRequested() {
		return
	}
	if err := s.startWatching(); err != nil {
		s.emitStatus(fmt.Sprintf("Watching unavailable: %v", err))
		return
	}
	s.emitStatus("Watching for changes…")
	s.eventLoop()
}

// requeueMissing enqueues every non-deleted document under the roots that
// still has no content-index entry, in batches.
func (s *Service) requeueMissing() {
	total := 0
	for batch := range s.cat.PathsMissingContent(s.cfg.Roots, requeueBatchSize) {
		for _, p := range batch {
			s.pool.Enqueue(p)
		}
		total += len(batch)
		s.emitQueueStatus()
	}
	if total > 0 {
		s.emitStatus(fmt.Sprintf("Queueing content index for %d files…", total))
	}
}

func (s *Service) stopRequested() bool {
	select {
	case <-s.stopCh:
		return true
	default:
		return false
	}
}

// Stop halts an in-progress walk, unsubscribes all filesystem watches, and
// joins the scan goroutine with a bounded wait. Idempotent and safe to call
// from any goroutine.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	started := s.started
	w := s.watcher
	s.mu.Unlock()

	close(s.stopCh)
	if w != nil {
		w.Close()
	}
	s.tombstones.Wait()
	if !started {
		return
	}
	select {
	case <-s.done:
	case <-time.After(joinTimeout):
		s.log.Warn("watch service stop timed out")
	}
}
