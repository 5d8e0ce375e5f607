package flusher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zherdev/url-shortener/internal/cache"
	"github.com/zherdev/url-shortener/internal/database"
	"github.com/zherdev/url-shortener/internal/models"
	"github.com/zherdev/url-shortener/internal/service"
)

// staticRepo serves one fixed record and accumulates applied click deltas.
type staticRepo struct {
	mu      sync.Mutex
	url     models.URL
	applied map[string]int64
}

func newStaticRepo(url models.URL) *staticRepo {
	return &staticRepo{url: url, applied: make(map[string]int64)}
}

func (r *staticRepo) FindByLongURL(_ context.Context, _ string) (*models.URL, error) {
	return nil, database.ErrURLNotFound
}

func (r *staticRepo) Insert(_ context.Context, _ string, _ *int64, _ *time.Time) (*models.URL, error) {
	return nil, errors.New("insert not supported")
}

func (r *staticRepo) SetShortCode(_ context.Context, _ int64, _ string) error {
	return nil
}

func (r *staticRepo) FindByShortCode(_ context.Context, shortCode string) (*models.URL, error) {
	if shortCode != r.url.ShortCode {
		return nil, database.ErrURLNotFound
	}

	url := r.url
	return &url, nil
}

func (r *staticRepo) ApplyClickDeltas(_ context.Context, deltas []models.ClickDelta) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, delta := range deltas {
		r.applied[delta.ShortCode] += delta.Delta
	}

	return nil
}

func (r *staticRepo) delta(shortCode string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.applied[shortCode]
}

// TestClickConvergence drives the full click path: concurrent resolves each
// record a click against the cache, and one flush run merges exactly that many
// clicks into the store and clears the counter.
func TestClickConvergence(t *testing.T) {
	const resolves = 25

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cacheFake := newFakeCache()
	repo := newStaticRepo(models.URL{ID: 1, LongURL: "https://x.test/a", ShortCode: "abc"})

	svc := service.NewURLService(repo, cacheFake, logger)
	clickFlusher := New(repo, cacheFake, logger)

	var wg sync.WaitGroup
	for i := 0; i < resolves; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			longURL, err := svc.Resolve(context.Background(), "abc")
			assert.NoError(t, err)
			assert.Equal(t, "https://x.test/a", longURL)

			svc.RecordClick(context.Background(), "abc")
		}()
	}
	wg.Wait()

	require.NoError(t, clickFlusher.RunFlush(context.Background()))

	assert.Equal(t, int64(resolves), repo.delta("abc"))
	assert.False(t, cacheFake.has(cache.ClicksKey("abc")))

	// With no new clicks a second run changes nothing.
	require.NoError(t, clickFlusher.RunFlush(context.Background()))
	assert.Equal(t, int64(resolves), repo.delta("abc"))
}
