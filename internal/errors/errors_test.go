package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestNewFromRegistry(t *testing.T) {
	err := New(CodeParseFailure)
	if err.Category != CategoryParse {
		t.Errorf("expected parse category, got %q", err.Category)
	}
	if !strings.Contains(err.Error(), "E001") {
		t.Errorf("code should appear in message: %q", err.Error())
	}
}

func TestNewUnknownCode(t *testing.T) {
	err := New("E999")
	if err == nil || err.Code != "E999" {
		t.Fatalf("unknown code should still produce an error: %+v", err)
	}
}

func TestWithKeyInMessage(t *testing.T) {
	err := New(CodeParseFailure).WithKey("page")
	if !strings.Contains(err.Error(), `"page"`) {
		t.Errorf("key should appear in message: %q", err.Error())
	}
}

func TestWrapAndUnwrap(t *testing.T) {
	cause := fmt.Errorf("strconv: bad syntax")
	err := New(CodeParseFailure).Wrap(cause)
	if !stderrors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
	if !strings.Contains(err.Error(), "bad syntax") {
		t.Errorf("cause should appear in message: %q", err.Error())
	}
}

func TestHasCode(t *testing.T) {
	err := New(CodeSchemaValidation)
	wrapped := fmt.Errorf("outer: %w", error(err))
	if !HasCode(wrapped, CodeSchemaValidation) {
		t.Error("HasCode should see through wrapping")
	}
	if HasCode(wrapped, CodeParseFailure) {
		t.Error("HasCode must not match a different code")
	}
	if HasCode(nil, CodeParseFailure) {
		t.Error("nil error carries no code")
	}
}
