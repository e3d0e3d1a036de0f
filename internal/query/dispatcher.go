// Package query serializes search execution on a dedicated goroutine.
// Typed-input submissions are coalesced with a short debounce, and a result
// is delivered only if its sequence number is still the most recently issued
// when the search completes — stale in-flight searches are discarded, not
// preempted.
package query

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"fastsearch/internal/catalog"
)

// DefaultDebounce coalesces bursts of typed-search input before dispatch.
const DefaultDebounce = 200 * time.Millisecond

// Request is one submitted search. Seq must increase monotonically across
// submissions from the same consumer.
type Request struct {
	Seq     int64
	Query   string
	Mode    catalog.Mode
	Filters catalog.Filters
	Limit   int
}

// Response carries a completed search back to the consumer.
type Response struct {
	Seq    int64
	Rows   []catalog.Result
	Facets catalog.FacetCounts
	Err    error
}

// Dispatcher owns the search-execution goroutine.
type Dispatcher struct {
	cat       *catalog.Catalog
	debounce  time.Duration
	onResults func(Response)
	log       *slog.Logger

	latest  atomic.Int64
	submit  chan Request
	stop    chan struct{}
	done    chan struct{}
	stopped sync.Once
}

// New creates and starts a dispatcher. onResults is invoked from the
// dispatch goroutine for every delivered (non-stale) response.
func New(cat *catalog.Catalog, debounce time.Duration, onResults func(Response), log *slog.Logger) *Dispatcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if log == nil {
		log = slog.Default()
	}
	d := &Dispatcher{
		cat:       cat,
		debounce:  debounce,
		onResults: onResults,
		log:       log,
		submit:    make(chan Request, 1),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go d.run()
	return d
}

// Submit hands a request to the dispatcher without blocking. An older
// pending request that has not been picked up yet is replaced.
func (d *Dispatcher) Submit(req Request) {
	for {
		cur := d.latest.Load()
		if req.Seq <= cur {
			return
		}
		if d.latest.CompareAndSwap(cur, req.Seq) {
			break
		}
	}
	for {
		select {
		case d.submit <- req:
			return
		default:
			select {
			case <-d.submit:
			default:
			}
		}
	}
}

// Stop terminates the dispatch goroutine and waits for it to exit.
func (d *Dispatcher) Stop() {
	d.stopped.Do(func() {
		close(d.stop)
		<-d.done
	})
}

func (d *Dispatcher) run() {
	defer close(d.done)

	var pending Request
	timer := time.NewTimer(d.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	var timerC <-chan time.Time

	for {
		select {
		case <-d.stop:
			return
		case req := <-d.submit:
			pending = req
			if timerC != nil && !timer.Stop() {
				<-timer.C
			}
			timer.Reset(d.debounce)
			timerC = timer.C
		case <-timerC:
			timerC = nil
			d.execute(pending)
		}
	}
}

func (d *Dispatcher) execute(req Request) {
	rows, facets, err := d.cat.Search(req.Query, req.Filters, req.Limit, req.Mode)
	if err != nil {
		d.log.Warn("search failed", "query", req.Query, "error", err)
	}
	// Last writer wins: deliver only if no newer request was issued while
	// this one was running.
	if req.Seq != d.latest.Load() {
		return
	}
	if d.onResults != nil {
		d.onResults(Response{Seq: req.Seq, Rows: rows, Facets: facets, Err: err})
	}
}
