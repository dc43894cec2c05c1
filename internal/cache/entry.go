package cache

import (
	"github.com/rshade/sysfacts/internal/facts"
)

// TTL sentinels and bounds.
const (
	// TTLNever marks an entry that never expires.
	TTLNever int64 = -1

	// TTLNone marks a fact that is never cached.
	TTLNone int64 = 0

	// MaxTTL is the largest accepted TTL in seconds.
	MaxTTL int64 = 1 << 31
)

// Entry is a single cached fact value with its TTL metadata. Entries are
// immutable; any change to a key replaces the whole entry.
type Entry struct {
	// Key identifies the fact.
	Key string

	// Value is the validated fact value.
	Value facts.Value

	// Stored is the UTC unix timestamp (seconds) of when the entry was
	// written.
	Stored int64

	// TTL is the entry's time-to-live in seconds (TTLNever, TTLNone, or a
	// positive duration).
	TTL int64
}

// freshAt reports whether an entry stored at the given timestamp is still
// fresh at now under the resolved ttl. A ttl of TTLNever is always fresh; a
// ttl of TTLNone (or anything else non-positive) never is.
func freshAt(ttl, stored, now int64) bool {
	switch {
	case ttl == TTLNever:
		return true
	case ttl <= TTLNone:
		return false
	default:
		return now-stored <= ttl
	}
}
