// Package urlq is the consumer-facing façade of the engine.
//
// An Engine binds an adapter (the host's address bar) to the store,
// scheduler, and history synchronizer, and exposes typed reads, writes, and
// subscriptions keyed by query-string parameter. Independent call sites can
// write without coordinating: all writes issued in one turn coalesce into a
// single navigation.
//
// Example:
//
//	page := param.Int().WithDefault(1)
//	search := param.String().WithOptions(param.Replace, param.Throttle(300*time.Millisecond))
//
//	e := urlq.New(ad)
//	current := urlq.Get(e, "page", page)
//	fut := urlq.Set(e, "page", current+1, page, param.Push)
//	committed, err := fut.Wait(ctx)
package urlq

import (
	"io"
	"log/slog"
	"time"

	interr "github.com/urlq-dev/urlq/internal/errors"
	"github.com/urlq-dev/urlq/pkg/adapter"
	"github.com/urlq-dev/urlq/pkg/history"
	"github.com/urlq-dev/urlq/pkg/query"
	"github.com/urlq-dev/urlq/pkg/scheduler"
	"github.com/urlq-dev/urlq/pkg/store"
)

// Engine coordinates every component behind one consumer API. Safe for
// concurrent use.
type Engine struct {
	ad     adapter.Adapter
	st     *store.Store
	sched  *scheduler.Scheduler
	syncer *history.Syncer
	keymap map[string]string
	logger *slog.Logger
	obs    Observer
}

// New creates an Engine bound to the given adapter.
//
// A nil adapter is a programming error, not a runtime condition, and
// panics eagerly rather than failing on first use.
func New(ad adapter.Adapter, opts ...Option) *Engine {
	if ad == nil {
		panic(interr.New(interr.CodeMissingAdapter))
	}

	cfg := applyOptions(opts)
	logger := cfg.logger
	if logger == nil {
		if cfg.debug {
			logger = slog.Default()
		} else {
			logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		}
	}

	e := &Engine{
		ad:     ad,
		st:     store.New(query.Parse(ad.QueryString())),
		keymap: validateKeyMap(cfg.keymap),
		logger: logger,
		obs:    cfg.observer,
	}

	syncOpts := []history.Option{
		history.WithLogger(logger),
		history.WithOnCommit(func(mode adapter.HistoryMode, changed []string, elapsed time.Duration) {
			if e.obs != nil {
				e.obs.FlushCommitted(mode, changed, elapsed)
			}
		}),
		history.WithOnExternal(func(changed []string) {
			if e.obs != nil {
				e.obs.ExternalNavigation(changed)
			}
		}),
	}
	if cfg.canon != nil {
		syncOpts = append(syncOpts, history.WithCanonicalizer(cfg.canon))
	}
	e.syncer = history.New(ad, e.st, syncOpts...)

	schedOpts := []scheduler.Option{scheduler.WithLogger(logger)}
	if cfg.clock != nil {
		schedOpts = append(schedOpts, scheduler.WithClock(cfg.clock))
	}
	e.sched = scheduler.New(e.syncer.Commit, schedOpts...)

	return e
}

// Batch groups every write issued by fn into one flush, committing
// synchronously when the outermost batch completes.
func (e *Engine) Batch(fn func()) {
	e.sched.Batch(fn)
}

// FlushNow commits the pending turn immediately instead of waiting for the
// turn timer. Rate-limited channels keep their own timers.
func (e *Engine) FlushNow() {
	e.sched.FlushNow()
}

// QueryString returns the committed query string in canonical form.
func (e *Engine) QueryString() string {
	return e.st.Query().Encode()
}

// Generation returns the store's generation counter; it increments once
// per committed mutation, self-initiated or external.
func (e *Engine) Generation() uint64 {
	return e.st.Generation()
}

// Close detaches the engine from the adapter and drops pending writes.
// Futures of dropped writes never resolve.
func (e *Engine) Close() {
	e.sched.Close()
	e.syncer.Close()
}

// wire maps a display name to its on-the-wire name.
func (e *Engine) wire(key string) string {
	if e.keymap == nil {
		return key
	}
	if w, ok := e.keymap[key]; ok {
		return w
	}
	return key
}

// validateKeyMap enforces that the display → wire mapping is injective.
func validateKeyMap(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	seen := make(map[string]string, len(m))
	out := make(map[string]string, len(m))
	for display, wire := range m {
		if prev, ok := seen[wire]; ok {
			panic(interr.New(interr.CodeDuplicateWireKey).
				WithDetail("display names " + prev + " and " + display + " both map to " + wire))
		}
		seen[wire] = display
		out[display] = wire
	}
	return out
}
