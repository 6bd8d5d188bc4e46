// ABOUTME: Cache entry wrapper recording when a value was fetched.
// ABOUTME: TTL is a property of the source, so expiry is computed at read time.

package types

import "time"

// CachedEntry wraps a fetched value with its fetch timestamp. The wrapped
// value is serialized into the cache verbatim and never mutated; a fresh
// fetch always produces a new entry.
type CachedEntry[T any] struct {
	Value     T         `json:"value"`
	FetchTime time.Time `json:"fetch_time"`
}

// NewCachedEntry wraps v with the current UTC time.
func NewCachedEntry[T any](v T) CachedEntry[T] {
	return CachedEntry[T]{Value: v, FetchTime: time.Now().UTC()}
}

// Age is the time elapsed since the value was fetched.
func (e CachedEntry[T]) Age() time.Duration {
	return time.Since(e.FetchTime)
}

// ExpiresAt is when the entry leaves the cache under the given TTL.
func (e CachedEntry[T]) ExpiresAt(ttl time.Duration) time.Time {
	return e.FetchTime.Add(ttl)
}
