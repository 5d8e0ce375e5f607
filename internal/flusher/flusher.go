// Package flusher drains pending click counters from the cache into the
// persistent store. It is the only writer of the authoritative clicks
// baseline; redirects only ever race on the cache counter, which the cache
// increments atomically.
package flusher

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/zherdev/url-shortener/internal/cache"
	"github.com/zherdev/url-shortener/internal/models"
)

// URLRepository defines what the flusher needs from the persistent store.
// ApplyClickDeltas must commit all deltas of one run in a single transaction.
type URLRepository interface {
	ApplyClickDeltas(ctx context.Context, deltas []models.ClickDelta) error
}

// Cache defines what the flusher needs from the key/value store.
type Cache interface {
	ScanKeys(ctx context.Context, pattern string) ([]string, error)
	MGet(ctx context.Context, keys []string) ([][]byte, error)
	Delete(ctx context.Context, key string) error
}

type Flusher struct {
	repo   URLRepository
	cache  Cache
	logger *slog.Logger
}

func New(repo URLRepository, cache Cache, logger *slog.Logger) *Flusher {
	return &Flusher{
		repo:   repo,
		cache:  cache,
		logger: logger,
	}
}

// RunFlush merges all pending click counters into the store and clears them.
// Counters are cleared only after the store transaction has committed, so a
// failed run loses nothing: whatever was not cleared is picked up again by
// the next run. Running twice in a row with no intervening clicks performs
// zero store writes on the second run, which makes the trigger safe to invoke
// repeatedly.
func (f *Flusher) RunFlush(ctx context.Context) error {
	const op = "flusher.Flusher.RunFlush"

	keys, err := f.cache.ScanKeys(ctx, cache.ClicksPattern())
	if err != nil {
		return fmt.Errorf("%s: failed to scan pending counters: %w", op, err)
	}
	if len(keys) == 0 {
		return nil
	}

	vals, err := f.cache.MGet(ctx, keys)
	if err != nil {
		return fmt.Errorf("%s: failed to read pending counters: %w", op, err)
	}

	var (
		deltas  []models.ClickDelta
		applied []string
	)

	for i, key := range keys {
		// Counter vanished between scan and read.
		if vals[i] == nil {
			continue
		}

		delta, err := strconv.ParseInt(string(vals[i]), 10, 64)
		if err != nil || delta <= 0 {
			// Nothing to merge; drop the counter without touching the store.
			if err := f.cache.Delete(ctx, key); err != nil {
				f.logger.Warn("failed to clear empty counter",
					slog.String("key", key),
					slog.Any("error", err))
			}
			continue
		}

		deltas = append(deltas, models.ClickDelta{
			ShortCode: cache.ShortCodeFromClicksKey(key),
			Delta:     delta,
		})
		applied = append(applied, key)
	}

	if len(deltas) == 0 {
		return nil
	}

	if err := f.repo.ApplyClickDeltas(ctx, deltas); err != nil {
		return fmt.Errorf("%s: failed to apply click deltas: %w", op, err)
	}

	// Clear-after-write: only counters whose deltas are durably committed
	// may be removed.
	for _, key := range applied {
		if err := f.cache.Delete(ctx, key); err != nil {
			f.logger.Warn("failed to clear flushed counter",
				slog.String("key", key),
				slog.Any("error", err))
		}
	}

	f.logger.Info("flushed pending clicks", slog.Int("counters", len(deltas)))

	return nil
}

// Run invokes RunFlush on a fixed interval until ctx is cancelled. Failures
// are logged and the loop keeps going; the next tick retries from scratch.
func (f *Flusher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := f.RunFlush(ctx); err != nil {
				f.logger.Error("flush run failed", slog.Any("error", err))
			}
		}
	}
}
