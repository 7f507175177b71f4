// Package search turns keystrokes into suggestion lookups. Only the last
// query typed within a quiet window is fetched, and any answer for a query
// that is no longer current is dropped when it arrives.
package search

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/angelmondragon/storefront-backend/internal/catalog"
)

const (
	DefaultDelay          = 300 * time.Millisecond
	DefaultMinQueryLength = 2
)

// Result is the outcome for one query. An empty Suggestions with a nil Err
// means the list should be cleared.
type Result struct {
	Query       string
	Suggestions []catalog.Suggestion
	Err         error
}

// Option configures a Debouncer.
type Option func(*Debouncer)

func WithDelay(delay time.Duration) Option {
	return func(d *Debouncer) {
		if delay > 0 {
			d.delay = delay
		}
	}
}

func WithMinQueryLength(n int) Option {
	return func(d *Debouncer) {
		if n > 0 {
			d.minLength = n
		}
	}
}

// Debouncer is safe for concurrent use. Results are delivered on the channel
// returned by Results, which is closed by Close.
type Debouncer struct {
	fetcher   Fetcher
	delay     time.Duration
	minLength int

	results chan Result
	done    chan struct{}

	mu      sync.Mutex
	latest  string
	timer   *time.Timer
	cancel  context.CancelFunc
	closed  bool
	pending sync.WaitGroup
}

func NewDebouncer(fetcher Fetcher, opts ...Option) *Debouncer {
	d := &Debouncer{
		fetcher:   fetcher,
		delay:     DefaultDelay,
		minLength: DefaultMinQueryLength,
		results:   make(chan Result, 1),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

func (d *Debouncer) Results() <-chan Result {
	return d.results
}

// Type records a keystroke. It restarts the quiet window and cancels any
// fetch still in flight for an older query.
func (d *Debouncer) Type(query string) {
	query = strings.TrimSpace(query)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.latest = query
	d.stopLocked()

	if utf8.RuneCountInString(query) < d.minLength {
		d.pending.Add(1)
		d.mu.Unlock()
		go func() {
			defer d.pending.Done()
			if d.current(query) {
				d.deliver(Result{Query: query})
			}
		}()
		return
	}
	d.timer = time.AfterFunc(d.delay, func() { d.fire(query) })
	d.mu.Unlock()
}

// Close stops pending work and closes the results channel.
func (d *Debouncer) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.stopLocked()
	close(d.done)
	d.mu.Unlock()

	d.pending.Wait()
	close(d.results)
}

func (d *Debouncer) fire(query string) {
	d.mu.Lock()
	if d.closed || query != d.latest {
		d.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.pending.Add(1)
	d.mu.Unlock()
	defer d.pending.Done()
	defer cancel()

	suggestions, err := d.fetcher.Suggest(ctx, query)

	if !d.current(query) || errors.Is(err, context.Canceled) {
		return
	}
	d.deliver(Result{Query: query, Suggestions: suggestions, Err: err})
}

// current is the stale-response guard: only the latest query may deliver.
func (d *Debouncer) current(query string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.closed && query == d.latest
}

func (d *Debouncer) stopLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}

// deliver blocks until the consumer reads or the debouncer closes.
func (d *Debouncer) deliver(result Result) {
	select {
	case d.results <- result:
	case <-d.done:
	}
}
