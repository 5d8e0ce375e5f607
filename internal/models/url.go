package models

import "time"

// URL represents a shortened URL record owned by the persistent store.
// The store is the sole source of truth for existence and expiry; cache
// entries derived from it are advisory and rebuildable.
type URL struct {
	// ID is the store-assigned identifier the short code is derived from.
	ID int64
	// LongURL is the original, full-length URL. Unique across all records.
	LongURL string
	// ShortCode is the base62 encoding of ID. Empty until assigned during
	// the second phase of creation.
	ShortCode string
	// Clicks is the authoritative click baseline. It is updated only by the
	// flush job merging pending deltas, never by a resolve.
	Clicks int64
	// CreatedAt is the timestamp the record was inserted at.
	CreatedAt time.Time
	// ExpiresAt is the optional expiry. A nil value means the record never
	// expires.
	ExpiresAt *time.Time
	// UserID is the optional owner reference. Stored but unused by the core.
	UserID *int64
}

// Expired reports whether the record's expiry has passed at the given moment.
func (u *URL) Expired(now time.Time) bool {
	return u.ExpiresAt != nil && now.After(*u.ExpiresAt)
}

// URLMetadata is the public metadata view of a record. Clicks includes the
// pending in-cache delta on top of the stored baseline. ExpiresAt is only
// populated when the view was built from the store; cached snapshots rely on
// the cache entry's own TTL as the expiry signal and carry no expiry field.
type URLMetadata struct {
	LongURL   string     `json:"long_url"`
	ShortCode string     `json:"short_code"`
	Clicks    int64      `json:"clicks"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	UserID    *int64     `json:"user_id,omitempty"`
}

// ClickDelta is a pending click count drained from the cache for one short
// code, to be merged into the store's baseline.
type ClickDelta struct {
	ShortCode string
	Delta     int64
}
