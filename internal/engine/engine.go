package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"sheetcal/internal/feed"
	"sheetcal/internal/index"
	appLog "sheetcal/internal/log"
	"sheetcal/internal/model"
)

// ErrSuperseded is returned by a reload or rebuild whose result was
// discarded because a newer one started before it finished.
var ErrSuperseded = errors.New("superseded by a newer reload")

// Fetcher supplies raw feed text.
type Fetcher interface {
	Fetch(ctx context.Context, src feed.Source) (feed.FetchResult, error)
}

// Status describes the most recent reload attempt.
type Status struct {
	LastAttempt time.Time
	LastSuccess time.Time
	LastError   string
	FromCache   bool
}

// Engine owns the live index. Readers load it without locking; reloads
// build a complete replacement and swap the pointer.
type Engine struct {
	fetcher Fetcher
	source  feed.Source

	current atomic.Pointer[index.Index]

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	status Status
}

// New returns an Engine holding an empty index.
func New(fetcher Fetcher, source feed.Source) *Engine {
	e := &Engine{
		fetcher: fetcher,
		source:  source,
	}
	e.current.Store(index.Empty())
	return e
}

// Index returns the last fully built index.
func (e *Engine) Index() *index.Index {
	return e.current.Load()
}

func (e *Engine) QueryDay(key string) []model.Event {
	return e.Index().QueryDay(key)
}

func (e *Engine) QueryMonth(year int, month time.Month) []model.Event {
	return e.Index().QueryMonth(year, month)
}

// Status returns a copy of the reload status.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Rebuild replaces the index from an already parsed table.
func (e *Engine) Rebuild(t feed.Table) error {
	gen, _ := e.begin(context.Background())
	return e.publish(gen, index.Build(t))
}

// Reload fetches the feed and rebuilds the index. Starting a reload
// cancels any reload still in flight. On fetch failure the current index
// is kept and the error returned.
func (e *Engine) Reload(ctx context.Context) error {
	gen, rctx := e.begin(ctx)

	started := time.Now()
	res, err := e.fetcher.Fetch(rctx, e.source)
	if err != nil {
		if e.superseded(gen) {
			return ErrSuperseded
		}
		e.record(gen, func(s *Status) {
			s.LastAttempt = started
			s.LastError = err.Error()
		})
		e.release(gen)
		return err
	}

	idx := index.Build(feed.ParseTable(res.Text))
	if err := e.publish(gen, idx); err != nil {
		return err
	}

	e.record(gen, func(s *Status) {
		s.LastAttempt = started
		s.LastSuccess = time.Now()
		s.LastError = ""
		s.FromCache = res.FromCache
	})

	appLog.Info("index rebuilt",
		"index_id", idx.ID(),
		"events", idx.Len(),
		"visible", idx.VisibleLen(),
		"from_cache", res.FromCache,
		"took", time.Since(started).Round(time.Millisecond),
	)
	return nil
}

// begin claims a new generation and cancels the previous in-flight reload.
func (e *Engine) begin(ctx context.Context) (uint64, context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancel != nil {
		e.cancel()
	}
	rctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.gen++
	return e.gen, rctx
}

// publish swaps in idx unless a newer generation has started.
func (e *Engine) publish(gen uint64, idx *index.Index) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.gen {
		appLog.Debug("discarding superseded index", "index_id", idx.ID(), "generation", gen)
		return ErrSuperseded
	}
	e.current.Store(idx)
	e.releaseLocked()
	return nil
}

// release drops the cancel func of a finished reload if it is still the
// latest one.
func (e *Engine) release(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen == e.gen {
		e.releaseLocked()
	}
}

func (e *Engine) releaseLocked() {
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

func (e *Engine) superseded(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return gen != e.gen
}

func (e *Engine) record(gen uint64, fn func(*Status)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen == e.gen {
		fn(&e.status)
	}
}
