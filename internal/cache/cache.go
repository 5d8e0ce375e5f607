// Package cache defines the key/value capability the core consumes and the
// key namespaces shared by the resolution service and the flush job.
package cache

import (
	"errors"
	"strings"
)

// ErrCacheMiss is returned when a key is absent. Callers treat it as an
// expected outcome, distinct from transport failures.
var ErrCacheMiss = errors.New("cache miss")

const (
	lookupPrefix = "short:"
	metaPrefix   = "url:meta:"
	clicksPrefix = "url:clicks:"
)

// LookupKey returns the key holding the short code → long URL mapping.
func LookupKey(shortCode string) string {
	return lookupPrefix + shortCode
}

// MetaKey returns the key holding the metadata snapshot for a short code.
func MetaKey(shortCode string) string {
	return metaPrefix + shortCode
}

// ClicksKey returns the key holding the pending click counter for a short code.
func ClicksKey(shortCode string) string {
	return clicksPrefix + shortCode
}

// ClicksPattern matches every pending click counter key.
func ClicksPattern() string {
	return clicksPrefix + "*"
}

// ShortCodeFromClicksKey recovers the short code from a counter key.
func ShortCodeFromClicksKey(key string) string {
	return strings.TrimPrefix(key, clicksPrefix)
}
