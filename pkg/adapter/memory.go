package adapter

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Commit records one navigation performed against a Memory adapter.
type Commit struct {
	Query  string
	Mode   HistoryMode
	Scroll bool
}

// Memory is an in-process Adapter for tests and simulations. It keeps a
// history stack so back/forward navigation can be replayed without a DOM.
//
// By default Memory is stateless: every interaction is evaluated against
// the original fixture, so QueryString keeps returning the initial string
// no matter how many navigations are recorded. With Stateful(), commits
// accumulate the way they would in a live session, and Back/Forward walk
// the resulting stack.
//
// Like a real browser, Memory reports every navigation back through
// OnExternalChange, including self-initiated ones.
type Memory struct {
	mu        sync.Mutex
	fixture   string
	stateful  bool
	history   []string
	index     int
	onCommit  func(query string, mode HistoryMode)
	listeners map[uint64]func(string)
	nextID    uint64
	commits   []Commit
	refreshes [][]string
}

// MemoryOption configures a Memory adapter.
type MemoryOption func(*Memory)

// Stateful makes interactions accumulate on top of prior ones, emulating a
// real session instead of re-evaluating each against the fixture.
func Stateful() MemoryOption {
	return func(m *Memory) { m.stateful = true }
}

// WithOnCommit installs an observer invoked for every navigation.
func WithOnCommit(fn func(query string, mode HistoryMode)) MemoryOption {
	return func(m *Memory) { m.onCommit = fn }
}

// NewMemory creates a Memory adapter seeded with an initial query string.
// A leading "?" is tolerated.
func NewMemory(initial string, opts ...MemoryOption) *Memory {
	m := &Memory{
		fixture:   strings.TrimPrefix(initial, "?"),
		listeners: map[uint64]func(string){},
	}
	for _, opt := range opts {
		opt(m)
	}
	m.history = []string{m.fixture}
	return m
}

// NewMemoryFromMap creates a Memory adapter from a key/value map.
// Keys are sorted so the fixture string is deterministic.
func NewMemoryFromMap(initial map[string]string, opts ...MemoryOption) *Memory {
	keys := make([]string, 0, len(initial))
	for k := range initial {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%s", k, initial[k]))
	}
	return NewMemory(strings.Join(pairs, "&"), opts...)
}

// QueryString implements Adapter.
func (m *Memory) QueryString() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stateful {
		return m.history[m.index]
	}
	return m.fixture
}

// Navigate implements Adapter. The navigation is recorded, the onCommit
// observer runs, and all external-change listeners receive the echo.
func (m *Memory) Navigate(next string, opts NavigateOptions) {
	m.mu.Lock()
	m.commits = append(m.commits, Commit{Query: next, Mode: opts.Mode, Scroll: opts.Scroll})
	if m.stateful {
		if opts.Mode == ModePush {
			// A push drops any forward entries, like a browser would.
			m.history = append(m.history[:m.index+1], next)
			m.index = len(m.history) - 1
		} else {
			m.history[m.index] = next
		}
	}
	onCommit := m.onCommit
	listeners := m.snapshotListeners()
	m.mu.Unlock()

	if onCommit != nil {
		onCommit(next, opts.Mode)
	}
	for _, fn := range listeners {
		fn(next)
	}
}

// OnExternalChange implements Adapter.
func (m *Memory) OnExternalChange(fn func(next string)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// AnnounceServerRefresh implements ServerRefresher.
func (m *Memory) AnnounceServerRefresh(keys []string) {
	cp := make([]string, len(keys))
	copy(cp, keys)
	m.mu.Lock()
	m.refreshes = append(m.refreshes, cp)
	m.mu.Unlock()
}

// Back navigates one history entry backwards and reports the resulting
// query string to listeners. Returns false when there is nothing to go
// back to (always the case in stateless mode, where no history accrues).
func (m *Memory) Back() bool {
	m.mu.Lock()
	if !m.stateful || m.index == 0 {
		m.mu.Unlock()
		return false
	}
	m.index--
	current := m.history[m.index]
	listeners := m.snapshotListeners()
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(current)
	}
	return true
}

// Forward navigates one history entry forwards.
func (m *Memory) Forward() bool {
	m.mu.Lock()
	if !m.stateful || m.index >= len(m.history)-1 {
		m.mu.Unlock()
		return false
	}
	m.index++
	current := m.history[m.index]
	listeners := m.snapshotListeners()
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(current)
	}
	return true
}

// SimulateNavigation injects an out-of-band navigation, as if unrelated
// code had changed the address bar. Listeners are notified; no commit is
// recorded because the navigation did not come from this engine.
func (m *Memory) SimulateNavigation(next string) {
	next = strings.TrimPrefix(next, "?")
	m.mu.Lock()
	if m.stateful {
		m.history = append(m.history[:m.index+1], next)
		m.index = len(m.history) - 1
	} else {
		m.fixture = next
	}
	listeners := m.snapshotListeners()
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(next)
	}
}

// Commits returns a copy of all recorded navigations.
func (m *Memory) Commits() []Commit {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Commit, len(m.commits))
	copy(out, m.commits)
	return out
}

// LastCommit returns the most recent navigation, if any.
func (m *Memory) LastCommit() (Commit, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.commits) == 0 {
		return Commit{}, false
	}
	return m.commits[len(m.commits)-1], true
}

// Refreshes returns all server-refresh announcements received so far.
func (m *Memory) Refreshes() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]string, len(m.refreshes))
	copy(out, m.refreshes)
	return out
}

// snapshotListeners copies the listener set. Callers must hold mu.
func (m *Memory) snapshotListeners() []func(string) {
	out := make([]func(string), 0, len(m.listeners))
	for _, fn := range m.listeners {
		out = append(out, fn)
	}
	return out
}
