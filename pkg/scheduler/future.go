package scheduler

import (
	"context"
	"sync"

	"github.com/urlq-dev/urlq/pkg/query"
)

// Future resolves with the committed query string of the flush a write
// landed in. All writes coalesced into the same flush share one Future; a
// write whose limiter delays it to a later flush gets an independent one.
type Future struct {
	once sync.Once
	done chan struct{}
	val  query.Values
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Resolved returns an already-settled Future. Used when a write is elided
// entirely, e.g. because the new value equals the current one.
func Resolved(v query.Values) *Future {
	f := newFuture()
	f.resolve(v)
	return f
}

// Done returns a channel closed once the flush carrying this write has
// committed.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Result returns the committed query string and whether the future has
// settled. Reads never block.
func (f *Future) Result() (query.Values, bool) {
	select {
	case <-f.done:
		return f.val, true
	default:
		return nil, false
	}
}

// Wait blocks until the flush commits or the context is done.
func (f *Future) Wait(ctx context.Context) (query.Values, error) {
	select {
	case <-f.done:
		return f.val, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *Future) resolve(v query.Values) {
	f.once.Do(func() {
		f.val = v
		close(f.done)
	})
}
