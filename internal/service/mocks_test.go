package service

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/zherdev/url-shortener/internal/cache"
	"github.com/zherdev/url-shortener/internal/models"
)

type MockURLRepository struct {
	mock.Mock
}

func (r *MockURLRepository) FindByLongURL(ctx context.Context, longURL string) (*models.URL, error) {
	args := r.Called(ctx, longURL)
	url, _ := args.Get(0).(*models.URL)
	return url, args.Error(1)
}

func (r *MockURLRepository) Insert(ctx context.Context, longURL string, userID *int64, expiresAt *time.Time) (*models.URL, error) {
	args := r.Called(ctx, longURL, userID, expiresAt)
	url, _ := args.Get(0).(*models.URL)
	return url, args.Error(1)
}

func (r *MockURLRepository) SetShortCode(ctx context.Context, id int64, shortCode string) error {
	args := r.Called(ctx, id, shortCode)
	return args.Error(0)
}

func (r *MockURLRepository) FindByShortCode(ctx context.Context, shortCode string) (*models.URL, error) {
	args := r.Called(ctx, shortCode)
	url, _ := args.Get(0).(*models.URL)
	return url, args.Error(1)
}

// fakeCache is an in-memory stand-in for the cache capability. It records
// the TTL each entry was stored with so tests can assert the expiration
// policy, and can be forced to fail individual operations.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string]fakeEntry

	getErr  error
	setErr  error
	delErr  error
	incrErr error
}

type fakeEntry struct {
	value []byte
	ttl   time.Duration
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]fakeEntry)}
}

func (c *fakeCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.getErr != nil {
		return nil, c.getErr
	}

	entry, ok := c.entries[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}

	return entry.value, nil
}

func (c *fakeCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.setErr != nil {
		return c.setErr
	}

	c.entries[key] = fakeEntry{value: value, ttl: ttl}
	return nil
}

func (c *fakeCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.delErr != nil {
		return c.delErr
	}

	delete(c.entries, key)
	return nil
}

func (c *fakeCache) Increment(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.incrErr != nil {
		return 0, c.incrErr
	}

	val := int64(0)
	if entry, ok := c.entries[key]; ok {
		val, _ = strconv.ParseInt(string(entry.value), 10, 64)
	}
	val++

	c.entries[key] = fakeEntry{value: []byte(strconv.FormatInt(val, 10))}
	return val, nil
}

func (c *fakeCache) entry(key string) (fakeEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	return entry, ok
}
