package param

import (
	"time"

	"github.com/urlq-dev/urlq/pkg/adapter"
	"github.com/urlq-dev/urlq/pkg/scheduler"
)

// Options holds the resolved per-key write behavior. Zero value: replace
// history mode, no rate limit, no scroll, no server refresh.
type Options struct {
	Mode    adapter.HistoryMode
	Scroll  bool
	Refresh bool
	Limit   scheduler.Limit
}

// Merge applies opts on top of the receiver and returns the result.
func (o Options) Merge(opts ...Option) Options {
	for _, opt := range opts {
		opt.applyParam(&o)
	}
	return o
}

// Option is a per-key or per-write behavior flag, attached to a parser via
// WithOptions or passed at the write call site.
type Option interface {
	applyParam(*Options)
}

// Mode options as values (not functions), mirroring how they read at call
// sites: param.Push, param.Replace.
var (
	// Push creates a new history entry for flushes carrying this write.
	Push Option = modeOption{mode: adapter.ModePush}

	// Replace updates the current history entry (no back-button spam).
	// This is the default.
	Replace Option = modeOption{mode: adapter.ModeReplace}

	// Scroll requests scrolling to the top after the navigation commits.
	Scroll Option = scrollOption{}

	// Refresh marks the write as requiring the host to refetch
	// server-rendered data; the flush announces the affected keys through
	// the adapter's ServerRefresher, when implemented.
	Refresh Option = refreshOption{}
)

type modeOption struct {
	mode adapter.HistoryMode
}

func (o modeOption) applyParam(c *Options) {
	c.Mode = o.mode
}

type scrollOption struct{}

func (o scrollOption) applyParam(c *Options) {
	c.Scroll = true
}

type refreshOption struct{}

func (o refreshOption) applyParam(c *Options) {
	c.Refresh = true
}

type limitOption struct {
	limit scheduler.Limit
}

func (o limitOption) applyParam(c *Options) {
	c.Limit = o.limit
}

// Throttle commits the key's writes at most once per interval; further
// writes within the window coalesce into the window-closing flush.
//
// Example:
//
//	search := param.String().WithOptions(param.Replace, param.Throttle(300*time.Millisecond))
func Throttle(interval time.Duration) Option {
	return limitOption{limit: scheduler.Throttle(interval)}
}

// Debounce holds the key's writes until interval passes without a new one.
// Use this for search inputs to avoid committing every keystroke.
func Debounce(interval time.Duration) Option {
	return limitOption{limit: scheduler.Debounce(interval)}
}

// NoLimit restores the immediate end-of-turn flush, overriding a limit
// attached to the parser.
func NoLimit() Option {
	return limitOption{limit: scheduler.NoLimit()}
}
