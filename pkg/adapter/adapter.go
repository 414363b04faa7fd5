// Package adapter defines the environment boundary of the engine.
//
// Everything above this package is environment-agnostic: the core never
// inspects host globals or branches on where it is running. Porting the
// engine to a new host means implementing Adapter (and optionally
// ServerRefresher) and nothing else.
package adapter

// HistoryMode determines how a navigation affects the history stack.
type HistoryMode int

const (
	// ModeReplace updates the current history entry in place.
	ModeReplace HistoryMode = iota

	// ModePush adds a new history entry.
	ModePush
)

// String returns the mode's wire name.
func (m HistoryMode) String() string {
	if m == ModePush {
		return "push"
	}
	return "replace"
}

// NavigateOptions carry the per-navigation flags chosen by the flush that
// produced it.
type NavigateOptions struct {
	Mode   HistoryMode
	Scroll bool
}

// Adapter is the environment-specific surface the engine drives.
//
// QueryString returns the current query string of the address bar, without
// a leading "?". Navigate applies a new query string. OnExternalChange
// registers a callback fired for every address-bar change the host
// observes, including ones caused by this engine's own Navigate calls; the
// history synchronizer is responsible for telling the two apart.
type Adapter interface {
	QueryString() string
	Navigate(next string, opts NavigateOptions)
	OnExternalChange(fn func(next string)) (unsubscribe func())
}

// ServerRefresher is implemented by adapters whose host can re-render
// server-owned data. Writes marked as requiring a server refresh cause the
// flush to announce the affected keys here. Adapters without the capability
// simply don't implement the interface.
type ServerRefresher interface {
	AnnounceServerRefresh(keys []string)
}
