// Package service implements the resolution core: cache-aside reads for
// lookups and metadata, idempotent two-phase creation, and the fire-and-forget
// click aggregator. All shared mutable state lives behind the injected cache
// and repository capabilities, so the service itself holds nothing that needs
// locking across requests.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/zherdev/url-shortener/internal/cache"
	"github.com/zherdev/url-shortener/internal/database"
	"github.com/zherdev/url-shortener/internal/models"
	"github.com/zherdev/url-shortener/internal/shortcode"
)

var (
	// ErrShortCodeNotFound is returned when no record exists for a short code.
	ErrShortCodeNotFound = errors.New("short code not found")
	// ErrURLExpired is returned when a record exists but its expiry has passed.
	ErrURLExpired = errors.New("url expired")
)

// URLRepository defines what the service needs from the persistent store.
type URLRepository interface {
	FindByLongURL(ctx context.Context, longURL string) (*models.URL, error)
	Insert(ctx context.Context, longURL string, userID *int64, expiresAt *time.Time) (*models.URL, error)
	SetShortCode(ctx context.Context, id int64, shortCode string) error
	FindByShortCode(ctx context.Context, shortCode string) (*models.URL, error)
}

// Cache defines what the service needs from the key/value store. The
// implementation is responsible for the atomicity of Increment and of
// Set with TTL.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Increment(ctx context.Context, key string) (int64, error)
}

// metaEntry is the cached metadata snapshot. Clicks is always the baseline as
// of caching time; the pending delta lives under its own key and is added at
// read time. ExpiresAt is deliberately absent: the cache entry's TTL is the
// only expiry signal, so there is no second source of truth to drift.
type metaEntry struct {
	LongURL   string    `json:"long_url"`
	ShortCode string    `json:"short_code"`
	Clicks    int64     `json:"clicks"`
	CreatedAt time.Time `json:"created_at"`
	UserID    *int64    `json:"user_id,omitempty"`
}

// URLService provides the resolution operations consumed by the HTTP layer.
type URLService struct {
	repo   URLRepository
	cache  Cache
	logger *slog.Logger
}

func NewURLService(repo URLRepository, cache Cache, logger *slog.Logger) *URLService {
	return &URLService{
		repo:   repo,
		cache:  cache,
		logger: logger,
	}
}

// CreateShortURL returns the short code for longURL, creating a record if
// none exists. Creation is idempotent: repeated submissions of the same long
// URL return the original code. New records are created in two phases, insert
// first to obtain the store-assigned id, then derive and persist the code,
// because the code is a function of the id.
func (s *URLService) CreateShortURL(ctx context.Context, longURL string, userID *int64, expiresAt *time.Time) (string, error) {
	const op = "service.URLService.CreateShortURL"

	existing, err := s.repo.FindByLongURL(ctx, longURL)
	if err == nil {
		return existing.ShortCode, nil
	}
	if !errors.Is(err, database.ErrURLNotFound) {
		return "", fmt.Errorf("%s: failed to look up long url: %w", op, err)
	}

	url, err := s.repo.Insert(ctx, longURL, userID, expiresAt)
	if err != nil {
		if errors.Is(err, database.ErrDuplicateLongURL) {
			// Lost a creation race; the winner's code is the answer.
			existing, err := s.repo.FindByLongURL(ctx, longURL)
			if err != nil {
				return "", fmt.Errorf("%s: failed to look up long url: %w", op, err)
			}
			return existing.ShortCode, nil
		}

		return "", fmt.Errorf("%s: failed to insert url record: %w", op, err)
	}

	code := shortcode.Encode(url.ID)
	if err := s.repo.SetShortCode(ctx, url.ID, code); err != nil {
		return "", fmt.Errorf("%s: failed to assign short code: %w", op, err)
	}
	url.ShortCode = code

	if err := s.primeLookup(ctx, url); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err := s.primeMetadata(ctx, url); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return code, nil
}

// Resolve returns the long URL for a short code. A cache hit is trusted as-is:
// the entry's TTL is the expiry signal and the store is not re-consulted, an
// intentional staleness/latency trade-off. On a miss the store is consulted,
// expired records surface ErrURLExpired after the stale lookup entry is
// removed, and live records re-prime the cache.
func (s *URLService) Resolve(ctx context.Context, shortCode string) (string, error) {
	const op = "service.URLService.Resolve"

	val, err := s.cache.Get(ctx, cache.LookupKey(shortCode))
	if err == nil {
		return string(val), nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		// A degraded cache must not fail the hot path; fall through to the store.
		s.logger.Warn("lookup cache read failed",
			slog.String("short_code", shortCode),
			slog.Any("error", err))
	}

	url, err := s.repo.FindByShortCode(ctx, shortCode)
	if err != nil {
		if errors.Is(err, database.ErrURLNotFound) {
			return "", fmt.Errorf("%s: %w", op, ErrShortCodeNotFound)
		}

		return "", fmt.Errorf("%s: failed to get url record: %w", op, err)
	}

	if url.Expired(time.Now()) {
		if err := s.cache.Delete(ctx, cache.LookupKey(shortCode)); err != nil {
			s.logger.Warn("failed to delete stale lookup entry",
				slog.String("short_code", shortCode),
				slog.Any("error", err))
		}

		return "", fmt.Errorf("%s: %w", op, ErrURLExpired)
	}

	if err := s.primeLookup(ctx, url); err != nil {
		s.logger.Warn("failed to re-prime lookup cache",
			slog.String("short_code", shortCode),
			slog.Any("error", err))
	}
	if err := s.primeMetadata(ctx, url); err != nil {
		s.logger.Warn("failed to re-prime metadata cache",
			slog.String("short_code", shortCode),
			slog.Any("error", err))
	}

	return url.LongURL, nil
}

// RecordClick bumps the pending click counter for a short code. It is
// fire-and-forget: the store is never touched, and a failed increment is
// logged and dropped rather than surfaced, so a degraded cache cannot block
// a redirect.
func (s *URLService) RecordClick(ctx context.Context, shortCode string) {
	if _, err := s.cache.Increment(ctx, cache.ClicksKey(shortCode)); err != nil {
		s.logger.Warn("failed to record click",
			slog.String("short_code", shortCode),
			slog.Any("error", err))
	}
}

// Metadata returns the metadata view for a short code with a live click
// count: the cached or stored baseline plus the pending in-cache delta. The
// metadata cache is re-primed with the baseline only, never the pre-summed
// total.
func (s *URLService) Metadata(ctx context.Context, shortCode string) (*models.URLMetadata, error) {
	const op = "service.URLService.Metadata"

	pending := s.pendingClicks(ctx, shortCode)

	val, err := s.cache.Get(ctx, cache.MetaKey(shortCode))
	if err == nil {
		var entry metaEntry
		if jsonErr := json.Unmarshal(val, &entry); jsonErr == nil {
			return &models.URLMetadata{
				LongURL:   entry.LongURL,
				ShortCode: entry.ShortCode,
				Clicks:    entry.Clicks + pending,
				CreatedAt: entry.CreatedAt,
				UserID:    entry.UserID,
			}, nil
		}

		// Unreadable snapshot; rebuild it from the store.
		s.logger.Warn("corrupt metadata cache entry",
			slog.String("short_code", shortCode))
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("metadata cache read failed",
			slog.String("short_code", shortCode),
			slog.Any("error", err))
	}

	url, err := s.repo.FindByShortCode(ctx, shortCode)
	if err != nil {
		if errors.Is(err, database.ErrURLNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrShortCodeNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get url record: %w", op, err)
	}

	if url.Expired(time.Now()) {
		// Expiry must not leave any usable entry behind, so the lookup key
		// goes too, not just the metadata snapshot.
		for _, key := range []string{cache.MetaKey(shortCode), cache.LookupKey(shortCode)} {
			if err := s.cache.Delete(ctx, key); err != nil {
				s.logger.Warn("failed to delete stale cache entry",
					slog.String("key", key),
					slog.Any("error", err))
			}
		}

		return nil, fmt.Errorf("%s: %w", op, ErrURLExpired)
	}

	if err := s.primeMetadata(ctx, url); err != nil {
		s.logger.Warn("failed to re-prime metadata cache",
			slog.String("short_code", shortCode),
			slog.Any("error", err))
	}

	return &models.URLMetadata{
		LongURL:   url.LongURL,
		ShortCode: url.ShortCode,
		Clicks:    url.Clicks + pending,
		CreatedAt: url.CreatedAt,
		ExpiresAt: url.ExpiresAt,
		UserID:    url.UserID,
	}, nil
}

func (s *URLService) pendingClicks(ctx context.Context, shortCode string) int64 {
	val, err := s.cache.Get(ctx, cache.ClicksKey(shortCode))
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("pending clicks read failed",
				slog.String("short_code", shortCode),
				slog.Any("error", err))
		}
		return 0
	}

	pending, err := strconv.ParseInt(string(val), 10, 64)
	if err != nil {
		return 0
	}

	return pending
}

func (s *URLService) primeLookup(ctx context.Context, url *models.URL) error {
	ttl, cacheable := entryTTL(url.ExpiresAt, time.Now())
	if !cacheable {
		return nil
	}

	return s.cache.Set(ctx, cache.LookupKey(url.ShortCode), []byte(url.LongURL), ttl)
}

func (s *URLService) primeMetadata(ctx context.Context, url *models.URL) error {
	const op = "service.URLService.primeMetadata"

	ttl, cacheable := entryTTL(url.ExpiresAt, time.Now())
	if !cacheable {
		return nil
	}

	payload, err := json.Marshal(metaEntry{
		LongURL:   url.LongURL,
		ShortCode: url.ShortCode,
		Clicks:    url.Clicks,
		CreatedAt: url.CreatedAt,
		UserID:    url.UserID,
	})
	if err != nil {
		return fmt.Errorf("%s: failed to marshal metadata entry: %w", op, err)
	}

	return s.cache.Set(ctx, cache.MetaKey(url.ShortCode), payload, ttl)
}

// entryTTL translates a record's expiry into a cache TTL. No expiry caches
// without TTL; a future expiry caches for the remaining whole seconds; a
// remaining time of zero or less means the record must not be cached at all.
func entryTTL(expiresAt *time.Time, now time.Time) (time.Duration, bool) {
	if expiresAt == nil {
		return 0, true
	}

	remaining := expiresAt.Sub(now).Truncate(time.Second)
	if remaining <= 0 {
		return 0, false
	}

	return remaining, true
}
