package scheduler

import "time"

type limitKind int

const (
	limitNone limitKind = iota
	limitThrottle
	limitDebounce
)

// Limit is the rate-limiting policy applied to one key's channel.
//
// The zero value flushes at the end of the current turn. Throttle coalesces
// writes into at most one commit per interval, the window opening at the
// first write; the value is still visible locally right away, only the
// committed query string is rate-limited. Debounce restarts its timer on
// every write and commits only after the interval passes in silence, so it
// is only sound for keys whose intermediate values nobody relies on through
// history navigation.
type Limit struct {
	kind     limitKind
	interval time.Duration
}

// NoLimit flushes at the end of the current turn.
func NoLimit() Limit {
	return Limit{}
}

// Throttle commits a key's channel at most once per interval. There is no
// leading-edge commit: the window opens at the first buffered write and the
// channel flushes once, when the window closes. Immediacy comes from
// optimistic local state, not from an early navigation.
func Throttle(interval time.Duration) Limit {
	return Limit{kind: limitThrottle, interval: interval}
}

// Debounce commits a key's channel only after interval of write silence.
func Debounce(interval time.Duration) Limit {
	return Limit{kind: limitDebounce, interval: interval}
}

// IsZero reports whether the limit is the immediate (no-limit) policy.
func (l Limit) IsZero() bool {
	return l.kind == limitNone
}

// Interval returns the limit's coalescing window.
func (l Limit) Interval() time.Duration {
	return l.interval
}
