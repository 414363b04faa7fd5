// Package scheduler coalesces uncoordinated writes into single flushes.
//
// Every write issued within one turn lands in the same pending patch, no
// matter how many call sites issued it, so one logical user action produces
// exactly one navigation. A turn ends when the zero-delay turn timer fires,
// or synchronously when an explicit Batch completes. Keys carrying a
// throttle or debounce limit are held on their own channel; delaying one
// key's channel never blocks the flush of another.
package scheduler

import (
	"io"
	"log/slog"
	"sync"

	"github.com/urlq-dev/urlq/pkg/adapter"
	"github.com/urlq-dev/urlq/pkg/query"
)

// WriteOptions carry the per-write flags that are merged into the flush the
// write lands in.
type WriteOptions struct {
	// Mode is the requested history mode. If any write in a flush requests
	// push, the whole flush pushes.
	Mode adapter.HistoryMode

	// Scroll requests scrolling after the navigation. ORed across the flush.
	Scroll bool

	// Refresh marks the key as requiring a server re-render after commit.
	Refresh bool

	// Limit is the rate-limit policy for the key's channel.
	Limit Limit
}

// Flush is one canonical patch handed to the committer. It retires every
// pending write it absorbed: their futures all resolve with this flush's
// committed query string.
type Flush struct {
	Patch   query.Patch
	Mode    adapter.HistoryMode
	Scroll  bool
	Refresh []string

	futures []*Future
}

// Future returns the future shared by the writes coalesced into this flush.
func (f *Flush) Future() *Future {
	return f.futures[0]
}

// Resolve settles every future attached to this flush with the committed
// query string. Called by the committer exactly once per flush.
func (f *Flush) Resolve(committed query.Values) {
	for _, fut := range f.futures {
		fut.resolve(committed)
	}
}

func (f *Flush) merge(key string, values []string, opts WriteOptions) {
	f.Patch[key] = values
	if opts.Mode == adapter.ModePush {
		f.Mode = adapter.ModePush
	}
	if opts.Scroll {
		f.Scroll = true
	}
	if opts.Refresh {
		f.Refresh = appendUnique(f.Refresh, key)
	}
}

func newFlush() *Flush {
	return &Flush{
		Patch:   query.Patch{},
		futures: []*Future{newFuture()},
	}
}

// channel holds the delayed pending flush for one rate-limited key.
type channel struct {
	limit   Limit
	pending *Flush
	timer   Timer
}

// Scheduler buffers writes and commits them as flushes through a single
// committer function. It is safe for concurrent use; the committer is
// always invoked without internal locks held.
type Scheduler struct {
	clock  Clock
	commit func(*Flush)
	logger *slog.Logger

	mu        sync.Mutex
	turn      *Flush
	turnTimer Timer
	batch     int
	channels  map[string]*channel
	closed    bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the system clock, typically with a Manual clock in
// tests.
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithLogger sets the logger used for debug traces.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// New creates a Scheduler delivering flushes to commit.
func New(commit func(*Flush), opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:    System(),
		commit:   commit,
		logger:   discardLogger(),
		channels: map[string]*channel{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Write buffers one key mutation. A nil values slice removes the key from
// the query string. The returned future resolves once the flush carrying
// this write commits. A later Write for the same key before its flush fires
// replaces the pending value outright; it never queues a second value.
func (s *Scheduler) Write(key string, values []string, opts WriteOptions) *Future {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Resolved(nil)
	}

	target := s.targetLocked(key, opts.Limit)
	s.supersedeLocked(key, target)
	target.merge(key, values, opts)
	fut := target.Future()
	s.mu.Unlock()

	s.logger.Debug("write buffered", "key", key, "remove", values == nil)
	return fut
}

// Pending reports whether a buffered write for key has not flushed yet,
// in the turn or on the key's rate-limited channel.
func (s *Scheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.turn != nil {
		if _, ok := s.turn.Patch[key]; ok {
			return true
		}
	}
	if ch := s.channels[key]; ch != nil && ch.pending != nil {
		if _, ok := ch.pending.Patch[key]; ok {
			return true
		}
	}
	return false
}

// Batch groups every write issued by fn into one turn, flushing
// synchronously when the outermost batch completes. Batches nest.
func (s *Scheduler) Batch(fn func()) {
	s.mu.Lock()
	s.batch++
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.batch--
		var f *Flush
		if s.batch == 0 {
			f = s.takeTurnLocked()
		}
		s.mu.Unlock()
		if f != nil {
			s.commit(f)
		}
	}()

	fn()
}

// FlushNow commits the pending turn immediately instead of waiting for the
// turn timer. Rate-limited channels are not forced; their timers stand.
func (s *Scheduler) FlushNow() {
	s.mu.Lock()
	f := s.takeTurnLocked()
	s.mu.Unlock()
	if f != nil {
		s.commit(f)
	}
}

// Close cancels all pending timers and drops buffered writes. Futures of
// dropped writes never resolve. Writes after Close are ignored.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.turnTimer != nil {
		s.turnTimer.Stop()
		s.turnTimer = nil
	}
	s.turn = nil
	for _, ch := range s.channels {
		if ch.timer != nil {
			ch.timer.Stop()
		}
		ch.pending = nil
		ch.timer = nil
	}
}

// targetLocked returns the flush this write should merge into, creating the
// turn or the key's channel as needed. Callers hold mu.
func (s *Scheduler) targetLocked(key string, limit Limit) *Flush {
	if limit.IsZero() {
		if s.turn == nil {
			s.turn = newFlush()
		}
		if s.batch == 0 && s.turnTimer == nil {
			s.turnTimer = s.clock.AfterFunc(0, s.flushTurn)
		}
		return s.turn
	}

	ch := s.channels[key]
	if ch == nil {
		ch = &channel{}
		s.channels[key] = ch
	}
	ch.limit = limit

	switch limit.kind {
	case limitDebounce:
		// Every write restarts the silence window.
		if ch.timer != nil {
			ch.timer.Stop()
		}
		ch.timer = s.clock.AfterFunc(limit.interval, func() { s.flushChannel(key) })
	case limitThrottle:
		// The window opens at the first buffered write and is never
		// extended; later writes coalesce into the flush already scheduled.
		if ch.timer == nil {
			ch.timer = s.clock.AfterFunc(limit.interval, func() { s.flushChannel(key) })
		}
	}

	if ch.pending == nil {
		ch.pending = newFlush()
	}
	return ch.pending
}

// supersedeLocked removes any pending value for key held outside target, so
// a newer write always wins. If stripping the key empties the older flush,
// its futures migrate to target so they still resolve with the final value.
func (s *Scheduler) supersedeLocked(key string, target *Flush) {
	if s.turn != nil && s.turn != target {
		if _, ok := s.turn.Patch[key]; ok {
			delete(s.turn.Patch, key)
			if len(s.turn.Patch) == 0 {
				target.futures = append(target.futures, s.turn.futures...)
				if s.turnTimer != nil {
					s.turnTimer.Stop()
					s.turnTimer = nil
				}
				s.turn = nil
			}
		}
	}

	ch := s.channels[key]
	if ch == nil || ch.pending == nil || ch.pending == target {
		return
	}
	delete(ch.pending.Patch, key)
	// A channel flush only ever holds its own key, so it is now empty.
	target.futures = append(target.futures, ch.pending.futures...)
	if ch.timer != nil {
		ch.timer.Stop()
		ch.timer = nil
	}
	ch.pending = nil
}

// takeTurnLocked detaches the pending turn. Callers hold mu.
func (s *Scheduler) takeTurnLocked() *Flush {
	f := s.turn
	s.turn = nil
	if s.turnTimer != nil {
		s.turnTimer.Stop()
		s.turnTimer = nil
	}
	return f
}

func (s *Scheduler) flushTurn() {
	s.mu.Lock()
	if s.batch > 0 {
		// A batch opened after the timer was scheduled; it flushes on exit.
		s.turnTimer = nil
		s.mu.Unlock()
		return
	}
	f := s.takeTurnLocked()
	s.mu.Unlock()
	if f != nil {
		s.commit(f)
	}
}

func (s *Scheduler) flushChannel(key string) {
	s.mu.Lock()
	ch := s.channels[key]
	if ch == nil || ch.pending == nil {
		if ch != nil {
			ch.timer = nil
		}
		s.mu.Unlock()
		return
	}
	f := ch.pending
	ch.pending = nil
	ch.timer = nil
	s.mu.Unlock()

	s.logger.Debug("channel flush", "key", key)
	s.commit(f)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func appendUnique(keys []string, key string) []string {
	for _, k := range keys {
		if k == key {
			return keys
		}
	}
	return append(keys, key)
}
