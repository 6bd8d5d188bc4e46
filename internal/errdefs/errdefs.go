// ABOUTME: Closed error taxonomy shared by all fetch components.
// ABOUTME: Distinguishes not-found, source, parse, and cache failures for callers.

package errdefs

import "errors"

// Kind classifies a failure so callers can tell "this does not exist" from
// "the source is down" from "the response is unparseable" from "the cache
// backend is broken".
type Kind int

const (
	// KindNotFound is a recognized "does not exist" signal from a source.
	// It is a valid terminal state, not a fault.
	KindNotFound Kind = iota

	// KindSourceFailure covers any other error reported by a wrapped source:
	// network, auth, non-zero process exit, malformed response transport.
	KindSourceFailure

	// KindParseFailure means a response was received but could not be decoded
	// into the expected shape (malformed JSON, PEM, or X.509).
	KindParseFailure

	// KindCacheFailure is a cache backend connectivity or storage error.
	KindCacheFailure
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindSourceFailure:
		return "source_failure"
	case KindParseFailure:
		return "parse_failure"
	case KindCacheFailure:
		return "cache_failure"
	}
	return "unknown"
}

// Error is a classified failure with a message and an optional wrapped cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound wraps err as a recognized "does not exist" signal.
func NotFound(msg string, err error) error {
	return &Error{Kind: KindNotFound, Msg: msg, Err: err}
}

// SourceFailure wraps err as a generic upstream source error.
func SourceFailure(msg string, err error) error {
	return &Error{Kind: KindSourceFailure, Msg: msg, Err: err}
}

// ParseFailure wraps err as a decode/contract-mismatch error.
func ParseFailure(msg string, err error) error {
	return &Error{Kind: KindParseFailure, Msg: msg, Err: err}
}

// CacheFailure wraps err as a cache backend error.
func CacheFailure(msg string, err error) error {
	return &Error{Kind: KindCacheFailure, Msg: msg, Err: err}
}

// KindOf reports the classification of err, unwrapping as needed.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

func is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

func IsNotFound(err error) bool      { return is(err, KindNotFound) }
func IsSourceFailure(err error) bool { return is(err, KindSourceFailure) }
func IsParseFailure(err error) bool  { return is(err, KindParseFailure) }
func IsCacheFailure(err error) bool  { return is(err, KindCacheFailure) }
