// Package store caches parsed values per key and fans change notifications
// out to subscribers.
//
// The committed query string is the single source of truth; cached values
// are derived, never authoritative. Every committed mutation bumps a
// monotonic generation counter, and a cached entry is valid only while its
// generation matches the store's. Invalidation is therefore lazy: a commit
// makes every stale entry unreadable without touching it, and the next read
// reparses.
//
// Subscription mechanics follow a copy-before-notify discipline so no lock
// is held while user callbacks run.
package store

import (
	"sync"

	"github.com/urlq-dev/urlq/pkg/query"
)

type entry struct {
	gen   uint64
	value any
}

type subscriber struct {
	id uint64

	// refresh recomputes the subscriber's value and invokes its callback
	// when the value actually changed under the parser's equality. It
	// reports whether a callback fired.
	refresh func() bool
}

// Store holds the committed query string, the per-key parse cache, and the
// subscriber lists. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	gen     uint64
	qs      query.Values
	cache   map[string]entry
	subs    map[string][]*subscriber
	nextSub uint64
}

// New creates a store seeded with the given committed query string.
func New(initial query.Values) *Store {
	if initial == nil {
		initial = query.Values{}
	}
	return &Store{
		gen:   1,
		qs:    initial,
		cache: map[string]entry{},
		subs:  map[string][]*subscriber{},
	}
}

// Generation returns the current generation counter. It increments exactly
// once per committed mutation, whether self-initiated or external.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// Query returns the committed query string. Callers must treat it as
// immutable.
func (s *Store) Query() query.Values {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.qs
}

// Raw returns the raw occurrences of key on the committed query string.
func (s *Store) Raw(key string) ([]string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.qs.Lookup(key)
}

// Commit installs a new committed query string and bumps the generation,
// implicitly invalidating every cached entry. Returns the new generation.
func (s *Store) Commit(next query.Values) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.qs = next
	s.gen++
	return s.gen
}

// Cached returns the memoized value for key if it was computed at the
// current generation.
func (s *Store) Cached(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.cache[key]
	if !ok || e.gen != s.gen {
		return nil, false
	}
	return e.value, true
}

// Memoize stores a parsed value for key at the current generation. Also
// used for optimistic local state: a write's value is memoized before its
// flush commits, making it visible to reads immediately.
func (s *Store) Memoize(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[key] = entry{gen: s.gen, value: value}
}

// Subscribe registers a refresh function for key and returns its
// unsubscribe function. Unsubscribing removes the callback but does not
// cancel pending flushes for the key.
func (s *Store) Subscribe(key string, refresh func() bool) func() {
	s.mu.Lock()
	sub := &subscriber{id: s.nextSub, refresh: refresh}
	s.nextSub++
	s.subs[key] = append(s.subs[key], sub)
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		list := s.subs[key]
		for i, other := range list {
			if other.id == sub.id {
				list[i] = list[len(list)-1]
				s.subs[key] = list[:len(list)-1]
				return
			}
		}
	}
}

// Notify refreshes every subscriber of the affected keys. Each refresh
// compares the recomputed value against the last one the subscriber saw and
// only fires its callback on inequality, so consumers of unaffected keys
// and consumers whose parsed value did not change stay quiet.
func (s *Store) Notify(keys []string) {
	s.mu.RLock()
	var pending []*subscriber
	for _, key := range keys {
		pending = append(pending, s.subs[key]...)
	}
	s.mu.RUnlock()

	for _, sub := range pending {
		sub.refresh()
	}
}

// SubscriberCount returns the number of subscribers on key.
func (s *Store) SubscriberCount(key string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs[key])
}
