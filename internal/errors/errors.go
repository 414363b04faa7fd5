// Package errors provides the structured error type used across urlq.
//
// Errors carry a stable code, a category, and optionally a suggestion and
// documentation link. Codes let callers and tests match on error identity
// without string comparison.
package errors

import "fmt"

// Category represents the type of error.
type Category string

const (
	CategoryParse   Category = "parse"
	CategorySchema  Category = "schema"
	CategoryAdapter Category = "adapter"
	CategoryConfig  Category = "config"
)

// Error is a structured error with a stable code.
type Error struct {
	// Code is a unique error identifier (e.g., "E001").
	Code string

	// Category is the error type (parse, schema, adapter, config).
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Key is the query-string key involved, if any.
	Key string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// DocURL is a link to documentation about this error.
	DocURL string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Key != "" {
		msg = fmt.Sprintf("%s (key %q)", msg, e.Key)
	}
	if e.Code != "" {
		msg = fmt.Sprintf("%s: %s", e.Code, msg)
	}
	if e.Wrapped != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Wrapped)
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Wrapped
}

// WithKey attaches the query-string key involved.
func (e *Error) WithKey(key string) *Error {
	e.Key = key
	return e
}

// WithSuggestion adds a fix suggestion to the error.
func (e *Error) WithSuggestion(s string) *Error {
	e.Suggestion = s
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *Error) WithDetail(d string) *Error {
	e.Detail = d
	return e
}

// Wrap wraps another error.
func (e *Error) Wrap(err error) *Error {
	e.Wrapped = err
	return e
}

// New creates an error from a registered code. Unknown codes still produce
// a usable error so callers never have to nil-check.
func New(code string) *Error {
	if tpl, ok := registry[code]; ok {
		return &Error{
			Code:     code,
			Category: tpl.Category,
			Message:  tpl.Message,
			Detail:   tpl.Detail,
			DocURL:   tpl.DocURL,
		}
	}
	return &Error{Code: code, Message: "unknown error"}
}

// Newf creates an unregistered error with a formatted message.
func Newf(category Category, format string, args ...any) *Error {
	return &Error{Category: category, Message: fmt.Sprintf(format, args...)}
}

// HasCode reports whether err (or anything it wraps) carries the code.
func HasCode(err error, code string) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Code == code {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
