package cache

import (
	"errors"
	"fmt"
)

// MaxKeyLen is the maximum accepted cache key length in bytes.
const MaxKeyLen = 255

// Validation errors. These are the only errors the coordinator surfaces to
// callers; everything else degrades gracefully.
var (
	ErrInvalidKey = errors.New("invalid cache key")
	ErrInvalidTTL = errors.New("invalid cache TTL")
)

// ValidateKey checks that key is non-empty and at most MaxKeyLen bytes.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: key cannot be empty", ErrInvalidKey)
	}
	if len(key) > MaxKeyLen {
		return fmt.Errorf("%w: key length %d exceeds %d", ErrInvalidKey, len(key), MaxKeyLen)
	}
	return nil
}

// ValidateTTL checks that ttl is within [TTLNever, MaxTTL].
func ValidateTTL(ttl int64) error {
	if ttl < TTLNever || ttl > MaxTTL {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidTTL, ttl, TTLNever, MaxTTL)
	}
	return nil
}
