package urlq

import (
	"testing"
	"time"

	interr "github.com/urlq-dev/urlq/internal/errors"
	"github.com/urlq-dev/urlq/pkg/adapter"
	"github.com/urlq-dev/urlq/pkg/param"
	"github.com/urlq-dev/urlq/pkg/scheduler"
)

func newTestEngine(initial string, opts ...Option) (*Engine, *adapter.Memory, *scheduler.Manual) {
	ad := adapter.NewMemory(initial, adapter.Stateful())
	clock := scheduler.NewManual(time.Unix(0, 0))
	e := New(ad, append([]Option{WithClock(clock)}, opts...)...)
	return e, ad, clock
}

func TestNewWithoutAdapterPanics(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic for nil adapter")
		}
		err, ok := r.(error)
		if !ok || !interr.HasCode(err, interr.CodeMissingAdapter) {
			t.Errorf("expected missing-adapter error, got %v", r)
		}
	}()
	New(nil)
}

func TestGetDefaults(t *testing.T) {
	e, _, _ := newTestEngine("page=3")
	defer e.Close()

	page := param.Int().WithDefault(1)
	if got := Get(e, "page", page); got != 3 {
		t.Errorf("expected 3, got %d", got)
	}
	if got := Get(e, "missing", param.Int().WithDefault(7)); got != 7 {
		t.Errorf("absent key should read the default, got %d", got)
	}
	if got := Get(e, "missing2", param.String()); got != "" {
		t.Errorf("absent key without default reads the zero value, got %q", got)
	}
}

func TestGetMalformedDegradesToDefault(t *testing.T) {
	e, _, _ := newTestEngine("page=banana")
	defer e.Close()

	page := param.Int().WithDefault(1)
	if got := Get(e, "page", page); got != 1 {
		t.Errorf("malformed raw should degrade to default, got %d", got)
	}
}

func TestGetStrictSurfacesFailure(t *testing.T) {
	e, _, _ := newTestEngine("page=banana")
	defer e.Close()

	_, err := GetStrict(e, "page", param.Int().WithDefault(1))
	if err == nil {
		t.Fatal("strict read of malformed raw should fail")
	}
	if !interr.HasCode(err, interr.CodeParseFailure) {
		t.Errorf("expected parse-failure code, got %v", err)
	}
}

func TestGetStrictSchemaCode(t *testing.T) {
	e, _, _ := newTestEngine(`f=%7B%22max%22%3A-1%7D`) // f={"max":-1}
	defer e.Close()

	type filters struct {
		Max int `json:"max"`
	}
	p := param.JSONValidated(func(f filters) error {
		if f.Max < 0 {
			return errMaxNegative
		}
		return nil
	})
	_, err := GetStrict(e, "f", p)
	if err == nil {
		t.Fatal("validation failure should surface under strict reads")
	}
	if !interr.HasCode(err, interr.CodeSchemaValidation) {
		t.Errorf("expected schema-validation code, got %v", err)
	}
}

var errMaxNegative = &validationError{"max must be non-negative"}

type validationError struct{ msg string }

func (e *validationError) Error() string { return e.msg }

func TestSetIsVisibleImmediately(t *testing.T) {
	e, ad, clock := newTestEngine("page=1")
	defer e.Close()

	page := param.Int().WithDefault(1)
	Set(e, "page", 2, page)

	// Optimistic local state: reads see the new value before any flush.
	if got := Get(e, "page", page); got != 2 {
		t.Errorf("expected immediate visibility, got %d", got)
	}
	if len(ad.Commits()) != 0 {
		t.Error("nothing should navigate before the turn ends")
	}

	clock.Advance(0)
	last, ok := ad.LastCommit()
	if !ok || last.Query != "page=2" {
		t.Errorf("expected committed page=2, got %+v", last)
	}
}

func TestCoalescingManyWritersOneNavigation(t *testing.T) {
	e, ad, clock := newTestEngine("")
	defer e.Close()

	// Three independent call sites, one turn.
	Set(e, "q", "react", param.String())
	Set(e, "page", 2, param.Int())
	Set(e, "sort", "asc", param.String())
	clock.Advance(0)

	commits := ad.Commits()
	if len(commits) != 1 {
		t.Fatalf("expected one navigation, got %d", len(commits))
	}
	if commits[0].Query != "page=2&q=react&sort=asc" {
		t.Errorf("unexpected committed string: %q", commits[0].Query)
	}
}

func TestLastValueWinsWithinTurn(t *testing.T) {
	e, ad, clock := newTestEngine("")
	defer e.Close()

	Set(e, "page", 1, param.Int())
	Set(e, "page", 2, param.Int())
	clock.Advance(0)

	for _, c := range ad.Commits() {
		if c.Query == "page=1" {
			t.Error("intermediate value must never be committed")
		}
	}
	last, _ := ad.LastCommit()
	if last.Query != "page=2" {
		t.Errorf("expected page=2, got %q", last.Query)
	}
}

func TestEqualityGateElidesRedundantWrite(t *testing.T) {
	e, ad, clock := newTestEngine("page=2")
	defer e.Close()

	notified := 0
	unsub := Subscribe(e, "page", param.Int(), func(int) { notified++ })
	defer unsub()

	fut := Set(e, "page", 2, param.Int())
	if _, ok := fut.Result(); !ok {
		t.Error("elided write should return a settled future")
	}
	clock.Advance(0)

	if len(ad.Commits()) != 0 {
		t.Error("redundant write must not navigate")
	}
	if notified != 0 {
		t.Error("redundant write must not notify subscribers")
	}
}

func TestEqualityGateUsesParserEquality(t *testing.T) {
	// 2024-03-01T12:00:00+01:00 is the same instant as 11:00:00Z.
	e, ad, clock := newTestEngine("at=2024-03-01T12%3A00%3A00%2B01%3A00")
	defer e.Close()

	p := param.Time()
	same := time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC)
	Set(e, "at", same, p)
	clock.Advance(0)

	if len(ad.Commits()) != 0 {
		t.Error("eq-equal object value must not trigger a navigation")
	}
}

func TestClearRemovesKeyEntirely(t *testing.T) {
	e, ad, clock := newTestEngine("filters=abc&page=1")
	defer e.Close()

	Clear(e, "filters", param.String())
	clock.Advance(0)

	last, _ := ad.LastCommit()
	if last.Query != "page=1" {
		t.Errorf("expected filters gone (absent, not empty), got %q", last.Query)
	}
}

func TestClearSupersedesPendingWrite(t *testing.T) {
	// Typing into a debounced search box and then clearing it: the clear
	// is the newer write and must win over the value still held by the
	// debounce window.
	e, ad, clock := newTestEngine("")
	defer e.Close()

	q := param.String().WithOptions(param.Debounce(100 * time.Millisecond))
	Set(e, "q", "react", q)
	clock.Advance(50 * time.Millisecond)
	Clear(e, "q", q)

	if got := Get(e, "q", param.String()); got != "" {
		t.Errorf("clear should be visible immediately, got %q", got)
	}

	clock.Advance(300 * time.Millisecond)
	for _, c := range ad.Commits() {
		if c.Query != "" {
			t.Errorf("superseded value must never commit, got %q", c.Query)
		}
	}
	if e.QueryString() != "" {
		t.Errorf("expected empty committed string, got %q", e.QueryString())
	}
	if got := Get(e, "q", param.String()); got != "" {
		t.Errorf("expected empty value after the window closed, got %q", got)
	}
}

func TestClearSupersedesPendingWriteOfPresentKey(t *testing.T) {
	e, ad, clock := newTestEngine("q=go")
	defer e.Close()

	q := param.String().WithOptions(param.Debounce(100 * time.Millisecond))
	Set(e, "q", "react", q)
	clock.Advance(50 * time.Millisecond)
	Clear(e, "q", q)
	clock.Advance(300 * time.Millisecond)

	last, ok := ad.LastCommit()
	if !ok || last.Query != "" {
		t.Errorf("clear should commit the removal, got %+v ok=%v", last, ok)
	}
	if got := Get(e, "q", param.String()); got != "" {
		t.Errorf("expected empty value, got %q", got)
	}
}

func TestDefaultValueClearsKey(t *testing.T) {
	e, ad, clock := newTestEngine("page=5")
	defer e.Close()

	page := param.Int().WithDefault(1)
	Set(e, "page", 1, page)
	clock.Advance(0)

	last, _ := ad.LastCommit()
	if last.Query != "" {
		t.Errorf("writing the default should clear the key, got %q", last.Query)
	}
}

func TestKeepDefaultWritesDefault(t *testing.T) {
	e, ad, clock := newTestEngine("page=5")
	defer e.Close()

	page := param.Int().WithDefault(1).KeepDefault()
	Set(e, "page", 1, page)
	clock.Advance(0)

	last, _ := ad.LastCommit()
	if last.Query != "page=1" {
		t.Errorf("KeepDefault should serialize the default, got %q", last.Query)
	}
}

func TestThrottleScenario(t *testing.T) {
	// Starting from ?q=&page=1: A sets q with a 300ms throttle; 50ms
	// later B sets page with no limiter. The first flush carries page
	// only; the second flush lands when the throttle window closes and
	// carries both.
	e, ad, clock := newTestEngine("q=&page=1")
	defer e.Close()

	q := param.String().WithOptions(param.Throttle(300 * time.Millisecond))
	Set(e, "q", "react", q)
	clock.Advance(50 * time.Millisecond)
	Set(e, "page", 2, param.Int())
	clock.Advance(0)

	commits := ad.Commits()
	if len(commits) != 1 {
		t.Fatalf("expected one flush so far, got %d", len(commits))
	}
	if commits[0].Query != "page=2&q=" {
		t.Errorf("first flush should carry page only, got %q", commits[0].Query)
	}

	clock.Advance(250 * time.Millisecond)
	commits = ad.Commits()
	if len(commits) != 2 {
		t.Fatalf("expected second flush at window close, got %d", len(commits))
	}
	if commits[1].Query != "page=2&q=react" {
		t.Errorf("second flush should carry both, got %q", commits[1].Query)
	}
}

func TestWritePromisesResolveWithFlushedString(t *testing.T) {
	e, _, clock := newTestEngine("")
	defer e.Close()

	f1 := Set(e, "a", "1", param.String())
	f2 := Set(e, "b", "2", param.String())
	clock.Advance(0)

	v1, ok1 := f1.Result()
	v2, ok2 := f2.Result()
	if !ok1 || !ok2 {
		t.Fatal("both futures should settle with the flush")
	}
	if v1.Encode() != "a=1&b=2" || v2.Encode() != "a=1&b=2" {
		t.Errorf("futures should carry the committed string, got %q / %q", v1.Encode(), v2.Encode())
	}
}

func TestSupersededWriteResolvesWithFinalValue(t *testing.T) {
	e, _, clock := newTestEngine("")
	defer e.Close()

	q := param.String().WithOptions(param.Debounce(100 * time.Millisecond))
	f1 := Set(e, "q", "re", q)
	clock.Advance(50 * time.Millisecond)
	f2 := Set(e, "q", "react", q)
	clock.Advance(100 * time.Millisecond)

	v1, ok := f1.Result()
	if !ok {
		t.Fatal("superseded write's future should still resolve")
	}
	if v1.Get("q") != "react" {
		t.Errorf("future should see the final value, not an intermediate: %q", v1.Get("q"))
	}
	if f1 != f2 {
		t.Error("writes coalesced into one channel flush share a future")
	}
}

func TestSetManySingleNavigation(t *testing.T) {
	e, ad, clock := newTestEngine("page=1")
	defer e.Close()

	fut := e.SetMany([]Entry{
		EntryOf("q", "react", param.String()),
		EntryOf("page", 2, param.Int()),
		ClearEntryOf("filters", param.String()),
	}, param.Push)

	// Batch flushes synchronously on exit.
	if len(ad.Commits()) != 1 {
		t.Fatalf("expected one navigation for the batch, got %d", len(ad.Commits()))
	}
	last, _ := ad.LastCommit()
	if last.Query != "page=2&q=react" || last.Mode != adapter.ModePush {
		t.Errorf("unexpected commit: %+v", last)
	}
	if _, ok := fut.Result(); !ok {
		t.Error("batch future should settle on flush")
	}
	clock.Advance(0)
	if len(ad.Commits()) != 1 {
		t.Error("no stray flush after the batch")
	}
}

func TestSubscribeNotifiedOncePerChange(t *testing.T) {
	e, _, clock := newTestEngine("page=1")
	defer e.Close()

	var seen []int
	unsub := Subscribe(e, "page", param.Int().WithDefault(1), func(v int) { seen = append(seen, v) })
	defer unsub()

	Set(e, "page", 2, param.Int().WithDefault(1))
	clock.Advance(0)

	// One optimistic notification; the commit's reparse yields an equal
	// value and is gated out.
	if len(seen) != 1 || seen[0] != 2 {
		t.Errorf("expected exactly one notification with 2, got %v", seen)
	}
}

func TestSubscribersOfUnrelatedKeysStayQuiet(t *testing.T) {
	e, _, clock := newTestEngine("q=a&page=1")
	defer e.Close()

	pageNotions := 0
	unsub := Subscribe(e, "page", param.Int(), func(int) { pageNotions++ })
	defer unsub()

	Set(e, "q", "b", param.String())
	clock.Advance(0)

	if pageNotions != 0 {
		t.Errorf("page subscriber must not fire for a q write, got %d", pageNotions)
	}
}

func TestHistoryReplay(t *testing.T) {
	e, ad, clock := newTestEngine("page=1")
	defer e.Close()

	page := param.Int().WithDefault(1)
	for _, v := range []int{2, 3} {
		Set(e, "page", v, page, param.Push)
		clock.Advance(0)
	}

	var seen []int
	unsub := Subscribe(e, "page", page, func(v int) { seen = append(seen, v) })
	defer unsub()

	ad.Back()
	if got := Get(e, "page", page); got != 2 {
		t.Errorf("one back should yield 2, got %d", got)
	}
	ad.Back()
	if got := Get(e, "page", page); got != 1 {
		t.Errorf("two backs should yield 1, got %d", got)
	}
	if len(seen) != 2 || seen[0] != 2 || seen[1] != 1 {
		t.Errorf("subscriber should replay history values, got %v", seen)
	}
}

func TestHistoryReplayObjectValues(t *testing.T) {
	e, ad, clock := newTestEngine("")
	defer e.Close()

	type filters struct {
		Cat string `json:"cat"`
	}
	p := param.JSON[filters]()

	Set(e, "f", filters{Cat: "a"}, p, param.Push)
	clock.Advance(0)
	Set(e, "f", filters{Cat: "b"}, p, param.Push)
	clock.Advance(0)

	ad.Back()
	// Object values compare via parser equality, not reference identity.
	if got := Get(e, "f", p); got.Cat != "a" {
		t.Errorf("back should restore the historical object, got %+v", got)
	}
}

func TestKeyMapRemapsWireNames(t *testing.T) {
	e, ad, clock := newTestEngine("q=react", WithKeyMap(map[string]string{"searchQuery": "q"}))
	defer e.Close()

	if got := Get(e, "searchQuery", param.String()); got != "react" {
		t.Errorf("display name should read the wire key, got %q", got)
	}
	Set(e, "searchQuery", "go", param.String())
	clock.Advance(0)
	last, _ := ad.LastCommit()
	if last.Query != "q=go" {
		t.Errorf("write should land on the wire name, got %q", last.Query)
	}
}

func TestDuplicateWireKeyPanics(t *testing.T) {
	defer func() {
		r := recover()
		err, ok := r.(error)
		if !ok || !interr.HasCode(err, interr.CodeDuplicateWireKey) {
			t.Errorf("expected duplicate-wire-key panic, got %v", r)
		}
	}()
	newTestEngineWithKeymap()
}

func newTestEngineWithKeymap() {
	New(adapter.NewMemory(""), WithKeyMap(map[string]string{"a": "x", "b": "x"}))
}

func TestServerRefreshAnnouncement(t *testing.T) {
	e, ad, clock := newTestEngine("page=1")
	defer e.Close()

	Set(e, "page", 2, param.Int(), param.Refresh)
	clock.Advance(0)

	r := ad.Refreshes()
	if len(r) != 1 || len(r[0]) != 1 || r[0][0] != "page" {
		t.Errorf("expected refresh announcement for page, got %v", r)
	}
}

func TestGenerationCountsCommits(t *testing.T) {
	e, ad, clock := newTestEngine("page=1")
	defer e.Close()

	gen := e.Generation()
	Set(e, "page", 2, param.Int())
	clock.Advance(0)
	if e.Generation() != gen+1 {
		t.Errorf("self commit should bump once, got %d -> %d", gen, e.Generation())
	}

	ad.SimulateNavigation("page=9")
	if e.Generation() != gen+2 {
		t.Errorf("external commit should bump once more, got %d", e.Generation())
	}
}

func TestObserverEvents(t *testing.T) {
	obs := &recordingObserver{}
	e, ad, clock := newTestEngine("page=1", WithObserver(obs))
	defer e.Close()

	Set(e, "page", 2, param.Int())
	clock.Advance(0)
	ad.SimulateNavigation("page=9")
	Get(e, "page", param.Int()) // page=9 parses fine
	ad.SimulateNavigation("page=banana")
	Get(e, "page", param.Int().WithDefault(1))

	if obs.flushes != 1 {
		t.Errorf("expected 1 flush event, got %d", obs.flushes)
	}
	if obs.externals != 2 {
		t.Errorf("expected 2 external events, got %d", obs.externals)
	}
	if obs.parseFailures != 1 {
		t.Errorf("expected 1 parse failure, got %d", obs.parseFailures)
	}
}

type recordingObserver struct {
	flushes       int
	parseFailures int
	externals     int
}

func (r *recordingObserver) FlushCommitted(adapter.HistoryMode, []string, time.Duration) {
	r.flushes++
}
func (r *recordingObserver) ParseFailure(string, error) { r.parseFailures++ }
func (r *recordingObserver) ExternalNavigation([]string) { r.externals++ }

func TestBatchGroupsWrites(t *testing.T) {
	e, ad, _ := newTestEngine("")
	defer e.Close()

	e.Batch(func() {
		Set(e, "a", "1", param.String())
		Set(e, "b", "2", param.String())
		if len(ad.Commits()) != 0 {
			t.Error("no navigation inside a batch")
		}
	})
	if len(ad.Commits()) != 1 {
		t.Errorf("batch exit should produce one navigation, got %d", len(ad.Commits()))
	}
}
