package urlq

import (
	stderrors "errors"
	"sync"

	interr "github.com/urlq-dev/urlq/internal/errors"
	"github.com/urlq-dev/urlq/pkg/param"
	"github.com/urlq-dev/urlq/pkg/scheduler"
)

// Get reads the typed value of key. Absent or malformed raw values degrade
// to the parser's default (or the zero value); Get never fails and never
// blocks. Parse results are memoized per generation, so repeated reads of
// an unchanged key are cheap.
func Get[T any](e *Engine, key string, p param.Parser[T]) T {
	v, _ := readKey(e, e.wire(key), p, false)
	return v
}

// GetStrict is Get with the failure surfaced: a raw value rejected by the
// parser returns the parse error synchronously instead of degrading to the
// default.
func GetStrict[T any](e *Engine, key string, p param.Parser[T]) (T, error) {
	return readKey(e, e.wire(key), p, true)
}

// Set writes a typed value to key. The value is visible to reads and
// subscribers immediately; the committed query string follows once the
// write's flush lands. The returned future resolves with that committed
// string.
//
// Writing a value equal (under the parser's equality) to the current value
// is elided entirely: no navigation, no notification, and the returned
// future is already settled. Writing the parser's default clears the key
// from the query string unless the parser keeps defaults.
func Set[T any](e *Engine, key string, value T, p param.Parser[T], opts ...param.Option) *scheduler.Future {
	wire := e.wire(key)

	current, _ := readKey(e, wire, p, false)
	if p.Equal(current, value) {
		return scheduler.Resolved(e.st.Query())
	}

	var raws []string
	if d, ok := p.Default(); ok && p.ClearsOnDefault() && p.Equal(value, d) {
		raws = nil
	} else {
		raws = p.Serialize(value)
	}

	// Optimistic local state: visible synchronously, committed later.
	e.st.Memoize(wire, value)
	e.st.Notify([]string{wire})

	return e.write(wire, raws, p.Options().Merge(opts...))
}

// Clear removes key from the query string. Reads observe the parser's
// default immediately. A Clear always supersedes a pending write for the
// key, even one still held by its throttle or debounce window.
func Clear[T any](e *Engine, key string, p param.Parser[T], opts ...param.Option) *scheduler.Future {
	wire := e.wire(key)
	if _, present := e.st.Raw(wire); !present && !e.sched.Pending(wire) {
		return scheduler.Resolved(e.st.Query())
	}

	d, _ := p.Default()
	e.st.Memoize(wire, d)
	e.st.Notify([]string{wire})

	return e.write(wire, nil, p.Options().Merge(opts...))
}

// Entry is one key mutation prepared for SetMany.
type Entry struct {
	key   string
	raws  []string
	value any
	opts  param.Options
}

// EntryOf prepares a typed write for SetMany.
func EntryOf[T any](key string, value T, p param.Parser[T]) Entry {
	var raws []string
	if d, ok := p.Default(); ok && p.ClearsOnDefault() && p.Equal(value, d) {
		raws = nil
	} else {
		raws = p.Serialize(value)
	}
	return Entry{key: key, raws: raws, value: value, opts: p.Options()}
}

// ClearEntryOf prepares a key removal for SetMany.
func ClearEntryOf[T any](key string, p param.Parser[T]) Entry {
	d, _ := p.Default()
	return Entry{key: key, value: d, opts: p.Options()}
}

// SetMany funnels several key mutations through one scheduler turn, so
// they coalesce into a single navigation. Atomicity is at the coalescing
// level only; there is no transactional rollback. Options given here apply
// on top of each entry's parser options.
func (e *Engine) SetMany(entries []Entry, opts ...param.Option) *scheduler.Future {
	if len(entries) == 0 {
		return scheduler.Resolved(e.st.Query())
	}

	var fut *scheduler.Future
	e.sched.Batch(func() {
		for _, en := range entries {
			wire := e.wire(en.key)
			e.st.Memoize(wire, en.value)
			e.st.Notify([]string{wire})
			fut = e.write(wire, en.raws, en.opts.Merge(opts...))
		}
	})
	return fut
}

// Subscribe registers cb for changes of key's typed value. The callback
// fires only when the new value is unequal to the previous one under the
// parser's equality, so consumers of unrelated keys and consumers of an
// unchanged value stay quiet. The returned function unsubscribes; it does not
// cancel pending flushes for the key.
func Subscribe[T any](e *Engine, key string, p param.Parser[T], cb func(T)) func() {
	wire := e.wire(key)

	var mu sync.Mutex
	last, _ := readKey(e, wire, p, false)

	refresh := func() bool {
		v, _ := readKey(e, wire, p, false)
		mu.Lock()
		changed := !p.Equal(last, v)
		if changed {
			last = v
		}
		mu.Unlock()
		if changed {
			cb(v)
		}
		return changed
	}
	return e.st.Subscribe(wire, refresh)
}

func (e *Engine) write(wire string, raws []string, o param.Options) *scheduler.Future {
	return e.sched.Write(wire, raws, scheduler.WriteOptions{
		Mode:    o.Mode,
		Scroll:  o.Scroll,
		Refresh: o.Refresh,
		Limit:   o.Limit,
	})
}

// readKey is the shared read path: cache hit, else parse and memoize.
func readKey[T any](e *Engine, wire string, p param.Parser[T], strict bool) (T, error) {
	if v, ok := e.st.Cached(wire); ok {
		if tv, ok := v.(T); ok {
			return tv, nil
		}
		// A different parser type touched this key; fall through and
		// reparse under ours.
	}

	raws, present := e.st.Raw(wire)
	if !present {
		d, _ := p.Default()
		e.st.Memoize(wire, d)
		return d, nil
	}

	v, err := p.Parse(raws)
	if err != nil {
		if e.obs != nil {
			e.obs.ParseFailure(wire, err)
		}
		e.logger.Debug("parse failure", "key", wire, "error", err)
		d, _ := p.Default()
		if strict {
			code := interr.CodeParseFailure
			if stderrors.Is(err, param.ErrSchema) {
				code = interr.CodeSchemaValidation
			}
			return d, interr.New(code).WithKey(wire).Wrap(err)
		}
		e.st.Memoize(wire, d)
		return d, nil
	}

	e.st.Memoize(wire, v)
	return v, nil
}
