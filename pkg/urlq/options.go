package urlq

import (
	"log/slog"

	"github.com/urlq-dev/urlq/pkg/history"
	"github.com/urlq-dev/urlq/pkg/scheduler"
)

type engineConfig struct {
	logger   *slog.Logger
	debug    bool
	clock    scheduler.Clock
	canon    history.Canonicalizer
	keymap   map[string]string
	observer Observer
}

// Option configures an Engine.
type Option func(*engineConfig)

// WithLogger sets the logger the engine and its components trace to.
func WithLogger(l *slog.Logger) Option {
	return func(c *engineConfig) { c.logger = l }
}

// WithDebug enables debug traces. When no logger is configured, traces go
// to slog.Default. Debug logging is per-engine configuration, never a
// package global.
func WithDebug() Option {
	return func(c *engineConfig) { c.debug = true }
}

// WithClock replaces the scheduler's clock, typically with a
// scheduler.Manual in tests so flush timing is deterministic.
func WithClock(clock scheduler.Clock) Option {
	return func(c *engineConfig) { c.clock = clock }
}

// WithCanonicalizer installs a normalization step applied to every
// committed query string. Deterministic key ordering is always applied by
// the encoder; a canonicalizer adds to it.
func WithCanonicalizer(canon history.Canonicalizer) Option {
	return func(c *engineConfig) { c.canon = canon }
}

// WithKeyMap remaps display names to shorter on-the-wire names. The table
// is set once per engine and immutable afterwards; it must be injective.
//
// Example:
//
//	urlq.WithKeyMap(map[string]string{"searchQuery": "q", "pageNumber": "p"})
func WithKeyMap(m map[string]string) Option {
	return func(c *engineConfig) {
		cp := make(map[string]string, len(m))
		for k, v := range m {
			cp[k] = v
		}
		c.keymap = cp
	}
}

// WithObserver installs an instrumentation observer. Multiple calls chain.
func WithObserver(obs Observer) Option {
	return func(c *engineConfig) {
		if c.observer == nil {
			c.observer = obs
			return
		}
		c.observer = CombineObservers(c.observer, obs)
	}
}

func applyOptions(opts []Option) engineConfig {
	var cfg engineConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
