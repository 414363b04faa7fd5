// Package history turns flushes into navigations and reconciles external
// navigation back into the store.
//
// The host reports every address-bar change, including ones this engine
// caused. Each self-initiated navigation is tagged before it is handed to
// the adapter; when the matching report comes back it is consumed against
// the tag instead of being processed as an independent external event.
// Without that de-duplication every write would trigger a redundant
// reparse/notify cycle. Genuinely external navigation (back/forward, or a
// navigation performed by unrelated code) commits a new generation,
// invalidates the store, and notifies exactly the keys whose raw strings
// changed.
package history

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/urlq-dev/urlq/pkg/adapter"
	"github.com/urlq-dev/urlq/pkg/query"
	"github.com/urlq-dev/urlq/pkg/scheduler"
	"github.com/urlq-dev/urlq/pkg/store"
)

// Canonicalizer rewrites a query string into its committed form. The
// default relies on query.Values.Encode's deterministic key ordering;
// installing one allows extra normalization, e.g. dropping empty values.
type Canonicalizer func(query.Values) query.Values

// Syncer owns the committed query string. It is the only component that
// calls the adapter's Navigate.
type Syncer struct {
	ad     adapter.Adapter
	st     *store.Store
	canon  Canonicalizer
	logger *slog.Logger

	onCommit   func(mode adapter.HistoryMode, changed []string, elapsed time.Duration)
	onExternal func(changed []string)

	mu       sync.Mutex
	selfTags []string
	unsub    func()
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithCanonicalizer installs a canonicalization step applied to every
// flushed query string before commit.
func WithCanonicalizer(c Canonicalizer) Option {
	return func(s *Syncer) { s.canon = c }
}

// WithLogger sets the logger used for debug traces.
func WithLogger(l *slog.Logger) Option {
	return func(s *Syncer) { s.logger = l }
}

// WithOnCommit installs an observer invoked after each committed flush.
func WithOnCommit(fn func(mode adapter.HistoryMode, changed []string, elapsed time.Duration)) Option {
	return func(s *Syncer) { s.onCommit = fn }
}

// WithOnExternal installs an observer invoked after each reconciled
// external navigation.
func WithOnExternal(fn func(changed []string)) Option {
	return func(s *Syncer) { s.onExternal = fn }
}

// New creates a Syncer and subscribes it to the adapter's external-change
// notifications. Close unsubscribes.
func New(ad adapter.Adapter, st *store.Store, opts ...Option) *Syncer {
	s := &Syncer{
		ad:     ad,
		st:     st,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.unsub = ad.OnExternalChange(s.handleExternal)
	return s
}

// Close detaches the Syncer from the adapter.
func (s *Syncer) Close() {
	if s.unsub != nil {
		s.unsub()
		s.unsub = nil
	}
}

// Commit applies one flush: read-modify-write against the latest committed
// query string, canonicalize, navigate, notify. A flush whose patch leaves
// the query string unchanged resolves without a navigation call, which is
// what keeps redundant writes from polluting history.
func (s *Syncer) Commit(f *scheduler.Flush) {
	start := time.Now()

	s.mu.Lock()
	current := s.st.Query()
	next := current.Apply(f.Patch)
	if s.canon != nil {
		next = s.canon(next)
	}
	if next.Equal(current) {
		s.mu.Unlock()
		s.logger.Debug("flush elided, query string unchanged")
		f.Resolve(current)
		return
	}
	changed := query.Diff(current, next)
	encoded := next.Encode()
	s.selfTags = append(s.selfTags, encoded)
	s.st.Commit(next)
	s.mu.Unlock()

	s.logger.Debug("committing flush", "mode", f.Mode.String(), "changed", changed)
	s.ad.Navigate(encoded, adapter.NavigateOptions{Mode: f.Mode, Scroll: f.Scroll})
	s.st.Notify(changed)
	f.Resolve(next)

	if len(f.Refresh) > 0 {
		if r, ok := s.ad.(adapter.ServerRefresher); ok {
			r.AnnounceServerRefresh(f.Refresh)
		}
	}
	if s.onCommit != nil {
		s.onCommit(f.Mode, changed, time.Since(start))
	}
}

// handleExternal reconciles an address-bar change reported by the adapter.
func (s *Syncer) handleExternal(next string) {
	vals := query.Parse(next)
	encoded := vals.Encode()

	s.mu.Lock()
	if len(s.selfTags) > 0 && s.selfTags[0] == encoded {
		// Echo of our own navigation; already committed.
		s.selfTags = s.selfTags[1:]
		s.mu.Unlock()
		return
	}
	current := s.st.Query()
	changed := query.Diff(current, vals)
	if len(changed) == 0 {
		s.mu.Unlock()
		return
	}
	s.st.Commit(vals)
	s.mu.Unlock()

	s.logger.Debug("external navigation", "changed", changed)
	s.st.Notify(changed)
	if s.onExternal != nil {
		s.onExternal(changed)
	}
}
