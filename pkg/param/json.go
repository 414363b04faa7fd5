package param

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrSchema marks parse failures caused by a validation hook rather than
// malformed raw input. Callers distinguish the two with errors.Is.
var ErrSchema = errors.New("schema validation failed")

// JSON encodes a value as JSON in the raw query value. Percent-encoding of
// the query string takes care of reserved characters. Equality defaults to
// reflect.DeepEqual, which is correct for plain data structs; supply
// WithEquals for anything subtler.
func JSON[T any]() Parser[T] {
	return single(
		func(s string) (T, error) {
			var v T
			if err := json.Unmarshal([]byte(s), &v); err != nil {
				return v, err
			}
			return v, nil
		},
		func(v T) string {
			data, err := json.Marshal(v)
			if err != nil {
				// Marshal of a plain data value only fails for types that
				// should never be URL state (channels, funcs).
				return ""
			}
			return string(data)
		},
	)
}

// JSONValidated is JSON with a post-parse validation hook. A validation
// failure is reported as a parse error: normal reads degrade to the
// default, and the strict read path surfaces it to the caller. The hook
// never causes a panic during reads.
func JSONValidated[T any](validate func(T) error) Parser[T] {
	p := JSON[T]()
	inner := p.parse
	p.parse = func(vs []string) (T, error) {
		v, err := inner(vs)
		if err != nil {
			return v, err
		}
		if err := validate(v); err != nil {
			var zero T
			return zero, fmt.Errorf("%w: %v", ErrSchema, err)
		}
		return v, nil
	}
	return p
}

// Base64JSON is JSON wrapped in unpadded base64url, for payloads whose
// percent-encoded form would be unreadable or oversized.
func Base64JSON[T any]() Parser[T] {
	return single(
		func(s string) (T, error) {
			var v T
			data, err := base64.RawURLEncoding.DecodeString(s)
			if err != nil {
				return v, err
			}
			if err := json.Unmarshal(data, &v); err != nil {
				return v, err
			}
			return v, nil
		},
		func(v T) string {
			data, err := json.Marshal(v)
			if err != nil {
				return ""
			}
			return base64.RawURLEncoding.EncodeToString(data)
		},
	)
}
