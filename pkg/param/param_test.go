package param

import (
	"fmt"
	"testing"
	"time"
)

func TestStringParser(t *testing.T) {
	p := String()
	v, err := p.Parse([]string{"react"})
	if err != nil || v != "react" {
		t.Errorf("expected react, got %q err=%v", v, err)
	}
	if got := p.Serialize("a b"); got[0] != "a b" {
		t.Errorf("serialize should not escape, got %q", got[0])
	}
}

func TestIntParser(t *testing.T) {
	p := Int()
	v, err := p.Parse([]string{"42"})
	if err != nil || v != 42 {
		t.Errorf("expected 42, got %d err=%v", v, err)
	}
	if _, err := p.Parse([]string{"not-a-number"}); err == nil {
		t.Error("malformed int should return an error")
	}
}

func TestFloatRoundTrip(t *testing.T) {
	p := Float()
	for _, v := range []float64{0, 1.5, -2.25, 1e-7, 123456.789} {
		if err := CheckRoundTrip(p, v); err != nil {
			t.Errorf("float %v: %v", v, err)
		}
	}
}

func TestBoolParser(t *testing.T) {
	p := Bool()
	v, err := p.Parse([]string{"true"})
	if err != nil || !v {
		t.Errorf("expected true, got %v err=%v", v, err)
	}
	if got := p.Serialize(false); got[0] != "false" {
		t.Errorf("expected false, got %q", got[0])
	}
}

func TestTimeParserEquality(t *testing.T) {
	p := Time()
	utc := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	offset := utc.In(time.FixedZone("CET", 3600))

	// Same instant, different representation: must compare equal.
	if !p.Equal(utc, offset) {
		t.Error("time equality should compare instants")
	}
	if err := CheckRoundTrip(p, utc); err != nil {
		t.Errorf("round trip: %v", err)
	}
}

func TestTimestampLossyBelowMillisecond(t *testing.T) {
	p := Timestamp()
	v := time.UnixMilli(1700000000123).UTC()
	if err := CheckRoundTrip(p, v); err != nil {
		t.Errorf("millisecond-aligned value should round trip: %v", err)
	}

	// Documented lossiness: sub-millisecond precision is dropped.
	sub := v.Add(500 * time.Microsecond)
	if err := CheckRoundTrip(p, sub); err == nil {
		t.Error("sub-millisecond value should be reported as lossy")
	}
}

func TestCommaSeparated(t *testing.T) {
	p := CommaSeparated(String())
	v, err := p.Parse([]string{"go,web,api"})
	if err != nil || len(v) != 3 || v[1] != "web" {
		t.Errorf("expected [go web api], got %v err=%v", v, err)
	}
	if got := p.Serialize([]string{"a", "b"}); got[0] != "a,b" {
		t.Errorf("expected a,b got %q", got[0])
	}

	// Empty raw value decodes to an empty, non-nil slice.
	v, err = p.Parse([]string{""})
	if err != nil || v == nil || len(v) != 0 {
		t.Errorf("expected empty slice, got %v err=%v", v, err)
	}
}

func TestCommaSeparatedInts(t *testing.T) {
	p := CommaSeparated(Int())
	v, err := p.Parse([]string{"1,2,3"})
	if err != nil || len(v) != 3 || v[2] != 3 {
		t.Errorf("expected [1 2 3], got %v err=%v", v, err)
	}
	if _, err := p.Parse([]string{"1,x,3"}); err == nil {
		t.Error("malformed element should fail the whole parse")
	}
}

func TestRepeated(t *testing.T) {
	p := Repeated(String())
	v, err := p.Parse([]string{"go", "web"})
	if err != nil || len(v) != 2 || v[0] != "go" {
		t.Errorf("expected [go web], got %v err=%v", v, err)
	}
	got := p.Serialize([]string{"x", "y", "z"})
	if len(got) != 3 || got[2] != "z" {
		t.Errorf("expected three occurrences, got %v", got)
	}
}

func TestEncodingsNotInterchangeable(t *testing.T) {
	comma := CommaSeparated(String())
	repeated := Repeated(String())

	// A comma-encoded raw seen by the repeated parser is one element.
	v, err := repeated.Parse([]string{"go,web"})
	if err != nil || len(v) != 1 {
		t.Errorf("repeated parser must not split commas, got %v", v)
	}

	// A repeated-key raw seen by the comma parser only sees the first
	// occurrence.
	v2, err := comma.Parse([]string{"go", "web"})
	if err != nil || len(v2) != 1 || v2[0] != "go" {
		t.Errorf("comma parser should use the first occurrence, got %v", v2)
	}
}

func TestWithDefault(t *testing.T) {
	p := Int().WithDefault(1)
	d, ok := p.Default()
	if !ok || d != 1 {
		t.Errorf("expected default 1, got %d ok=%v", d, ok)
	}
	if !p.ClearsOnDefault() {
		t.Error("default writes should clear the key")
	}
	if p.KeepDefault().ClearsOnDefault() {
		t.Error("KeepDefault should disable clearing")
	}
}

func TestWithOptionsAndMerge(t *testing.T) {
	p := String().WithOptions(Push, Throttle(300*time.Millisecond), Scroll)
	o := p.Options()
	if o.Mode.String() != "push" {
		t.Errorf("expected push, got %v", o.Mode)
	}
	if !o.Scroll {
		t.Error("expected scroll")
	}
	if o.Limit.IsZero() || o.Limit.Interval() != 300*time.Millisecond {
		t.Errorf("expected 300ms throttle, got %+v", o.Limit)
	}

	// Call-site options override parser options.
	merged := o.Merge(Replace, NoLimit())
	if merged.Mode.String() != "replace" {
		t.Error("call-site mode should win")
	}
	if !merged.Limit.IsZero() {
		t.Error("call-site NoLimit should win")
	}
	if !merged.Scroll {
		t.Error("unmentioned flags should carry over")
	}
}

func TestWithEquals(t *testing.T) {
	// Deliberately odd equality to prove the custom function is consulted.
	p := String().WithEquals(func(a, b string) bool { return len(a) == len(b) })
	if !p.Equal("abc", "xyz") {
		t.Error("custom equality should be used")
	}
}

func TestDefaultEqualsDeepForSlices(t *testing.T) {
	p := Parser[[]int]{
		parse:     func([]string) ([]int, error) { return nil, nil },
		serialize: func([]int) []string { return nil },
	}
	if !p.Equal([]int{1, 2}, []int{1, 2}) {
		t.Error("slices with equal contents should compare equal by default")
	}
	if p.Equal([]int{1}, []int{2}) {
		t.Error("different slices should not compare equal")
	}
}

type filters struct {
	Category string `json:"cat"`
	Max      int    `json:"max"`
}

func TestJSONParser(t *testing.T) {
	p := JSON[filters]()
	v, err := p.Parse([]string{`{"cat":"tech","max":5}`})
	if err != nil || v.Category != "tech" || v.Max != 5 {
		t.Errorf("unexpected parse: %+v err=%v", v, err)
	}
	if err := CheckRoundTrip(p, filters{Category: "a", Max: 2}); err != nil {
		t.Errorf("round trip: %v", err)
	}
	if _, err := p.Parse([]string{"{not json"}); err == nil {
		t.Error("malformed JSON should error, not panic")
	}
}

func TestJSONValidated(t *testing.T) {
	p := JSONValidated(func(f filters) error {
		if f.Max < 0 {
			return fmt.Errorf("max must be non-negative")
		}
		return nil
	})

	if _, err := p.Parse([]string{`{"cat":"x","max":1}`}); err != nil {
		t.Errorf("valid value rejected: %v", err)
	}
	if _, err := p.Parse([]string{`{"cat":"x","max":-1}`}); err == nil {
		t.Error("validation failure should surface as a parse error")
	}
}

func TestBase64JSON(t *testing.T) {
	p := Base64JSON[filters]()
	v := filters{Category: "tech", Max: 9}
	raw := p.Serialize(v)
	if len(raw) != 1 || raw[0] == "" {
		t.Fatalf("unexpected serialization: %v", raw)
	}
	if err := CheckRoundTrip(p, v); err != nil {
		t.Errorf("round trip: %v", err)
	}
	if _, err := p.Parse([]string{"!!!not-base64!!!"}); err == nil {
		t.Error("malformed base64 should error")
	}
}

func TestParseMissingValue(t *testing.T) {
	if _, err := String().Parse(nil); err == nil {
		t.Error("parsing no occurrences should error")
	}
}
