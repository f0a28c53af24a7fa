package repository

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Kosench/go-link-shortener/internal/cache"
	apperrors "github.com/Kosench/go-link-shortener/internal/errors"
	"github.com/Kosench/go-link-shortener/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// mapCache is a JSON-encoding in-memory cache with the same miss semantics as Redis.
type mapCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	ttls    map[string]time.Duration
	keys    *cache.KeyBuilder
	failing bool
}

func newMapCache() *mapCache {
	return &mapCache{
		data: make(map[string][]byte),
		ttls: make(map[string]time.Duration),
		keys: cache.NewKeyBuilder("test"),
	}
}

var errCacheDown = errors.New("redis: connection refused")

func (m *mapCache) Set(ctx context.Context, key string, value interface{}) error {
	return m.SetWithTTL(ctx, key, value, 0)
}

func (m *mapCache) SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return cache.NewCacheError("set", key, errCacheDown)
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = data
	m.ttls[key] = ttl
	return nil
}

func (m *mapCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return cache.NewCacheError("get", key, errCacheDown)
	}
	data, ok := m.data[key]
	if !ok {
		return cache.ErrCacheMiss
	}
	return json.Unmarshal(data, dest)
}

func (m *mapCache) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return cache.NewCacheError("delete", "", errCacheDown)
	}
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *mapCache) SetString(ctx context.Context, key string, value string) error {
	return m.Set(ctx, key, value)
}

func (m *mapCache) GetString(ctx context.Context, key string) (string, error) {
	var s string
	err := m.Get(ctx, key, &s)
	return s, err
}

func (m *mapCache) Keys() *cache.KeyBuilder { return m.keys }

func (m *mapCache) HealthCheck(ctx context.Context) error { return nil }

func (m *mapCache) Close() error { return nil }

func (m *mapCache) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

func TestCachedLinkRepositoryContract(t *testing.T) {
	testLinkRepository(t, func(t *testing.T) LinkRepository {
		return NewCachedLinkRepository(NewMemoryLinkRepository(), newMapCache(), zaptest.NewLogger(t))
	})
}

func TestCachedLinkRepositoryWithNullCache(t *testing.T) {
	testLinkRepository(t, func(t *testing.T) LinkRepository {
		return NewCachedLinkRepository(NewMemoryLinkRepository(), cache.NewNullCache(), zap.NewNop())
	})
}

func TestCachedLinkRepositoryServesFromCache(t *testing.T) {
	ctx := context.Background()
	base := NewMemoryLinkRepository()
	c := newMapCache()
	repo := NewCachedLinkRepository(base, c, zaptest.NewLogger(t))

	link, err := repo.Insert(ctx, "https://example.com", "abc123")
	require.NoError(t, err)
	assert.True(t, c.has(c.keys.Link("abc123")))
	assert.True(t, c.has(c.keys.LinkID(link.ID)))

	// Удаляем напрямую из базы: кэш все еще отдает ссылку
	_, err = base.DeleteByCode(ctx, "abc123")
	require.NoError(t, err)

	found, err := repo.FindByCode(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, link.ID, found.ID)
	assert.Equal(t, "https://example.com", found.OriginalURL)
}

func TestCachedLinkRepositoryReadThrough(t *testing.T) {
	ctx := context.Background()
	base := NewMemoryLinkRepository()
	c := newMapCache()
	repo := NewCachedLinkRepository(base, c, zaptest.NewLogger(t))

	_, err := base.Insert(ctx, "https://example.com", "rt1234")
	require.NoError(t, err)
	assert.False(t, c.has(c.keys.Link("rt1234")))

	_, err = repo.FindByCode(ctx, "rt1234")
	require.NoError(t, err)
	assert.True(t, c.has(c.keys.Link("rt1234")))

	_, err = repo.FindByCode(ctx, "miss00")
	assert.ErrorIs(t, err, apperrors.ErrLinkNotFound)
	assert.False(t, c.has(c.keys.Link("miss00")))
}

func TestCachedLinkRepositoryIncrementInvalidates(t *testing.T) {
	ctx := context.Background()
	c := newMapCache()
	repo := NewCachedLinkRepository(NewMemoryLinkRepository(), c, zaptest.NewLogger(t))

	link, err := repo.Insert(ctx, "https://example.com", "inc123")
	require.NoError(t, err)

	require.NoError(t, repo.IncrementClicks(ctx, link.ID))
	assert.False(t, c.has(c.keys.Link("inc123")))

	found, err := repo.FindByCode(ctx, "inc123")
	require.NoError(t, err)
	assert.EqualValues(t, 1, found.ClickCount)
}

func TestCachedLinkRepositoryDeleteInvalidates(t *testing.T) {
	ctx := context.Background()
	c := newMapCache()
	repo := NewCachedLinkRepository(NewMemoryLinkRepository(), c, zaptest.NewLogger(t))

	link, err := repo.Insert(ctx, "https://example.com", "del123")
	require.NoError(t, err)

	deleted, err := repo.DeleteByCode(ctx, "del123")
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.False(t, c.has(c.keys.Link("del123")))
	assert.False(t, c.has(c.keys.LinkID(link.ID)))

	_, err = repo.FindByCode(ctx, "del123")
	assert.ErrorIs(t, err, apperrors.ErrLinkNotFound)
}

func TestCachedLinkRepositorySurvivesCacheOutage(t *testing.T) {
	ctx := context.Background()
	c := newMapCache()
	c.failing = true
	repo := NewCachedLinkRepository(NewMemoryLinkRepository(), c, zaptest.NewLogger(t))

	link, err := repo.Insert(ctx, "https://example.com", "down12")
	require.NoError(t, err)

	found, err := repo.FindByCode(ctx, "down12")
	require.NoError(t, err)
	assert.Equal(t, link.ID, found.ID)

	require.NoError(t, repo.IncrementClicks(ctx, link.ID))

	deleted, err := repo.DeleteByCode(ctx, "down12")
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestCachedLinkRepositoryWarmup(t *testing.T) {
	ctx := context.Background()
	base := NewMemoryLinkRepository()
	c := newMapCache()
	repo := NewCachedLinkRepository(base, c, zaptest.NewLogger(t))

	var links []*model.Link
	for _, code := range []string{"warm01", "warm02", "warm03"} {
		link, err := base.Insert(ctx, "https://example.com/"+code, code)
		require.NoError(t, err)
		links = append(links, link)
	}
	require.NoError(t, base.IncrementClicks(ctx, links[2].ID))

	count, err := repo.Warmup(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.True(t, c.has(c.keys.Link("warm03")))
	assert.Equal(t, warmupTTL, c.ttls[c.keys.Link("warm03")])
}

// interleavingRepository runs hook once, after the underlying read and
// before the caller sees the result. Tests drive it from one goroutine.
type interleavingRepository struct {
	LinkRepository
	hook  func()
	fired bool
}

func (r *interleavingRepository) interleave() {
	if r.hook == nil || r.fired {
		return
	}
	r.fired = true
	r.hook()
}

func (r *interleavingRepository) FindByCode(ctx context.Context, shortCode string) (*model.Link, error) {
	link, err := r.LinkRepository.FindByCode(ctx, shortCode)
	if err == nil {
		r.interleave()
	}
	return link, err
}

func (r *interleavingRepository) ListPopular(ctx context.Context, limit int) ([]*model.Link, error) {
	links, err := r.LinkRepository.ListPopular(ctx, limit)
	if err == nil {
		r.interleave()
	}
	return links, err
}

func TestCachedLinkRepositoryDeleteDuringReadFill(t *testing.T) {
	ctx := context.Background()
	base := NewMemoryLinkRepository()
	_, err := base.Insert(ctx, "https://example.com", "race12")
	require.NoError(t, err)

	c := newMapCache()
	racing := &interleavingRepository{LinkRepository: base}
	repo := NewCachedLinkRepository(racing, c, zaptest.NewLogger(t))

	var deleted bool
	racing.hook = func() {
		// Удаление срабатывает между чтением из базы и записью в кэш
		deleted, err = repo.DeleteByCode(ctx, "race12")
	}

	_, findErr := repo.FindByCode(ctx, "race12")
	require.NoError(t, findErr)
	require.NoError(t, err)
	require.True(t, deleted)

	assert.False(t, c.has(c.keys.Link("race12")))
	_, err = repo.FindByCode(ctx, "race12")
	assert.ErrorIs(t, err, apperrors.ErrLinkNotFound)
}

func TestCachedLinkRepositoryDeleteDuringWarmup(t *testing.T) {
	ctx := context.Background()
	base := NewMemoryLinkRepository()
	_, err := base.Insert(ctx, "https://example.com", "warm99")
	require.NoError(t, err)

	c := newMapCache()
	racing := &interleavingRepository{LinkRepository: base}
	repo := NewCachedLinkRepository(racing, c, zaptest.NewLogger(t))
	racing.hook = func() {
		_, err := repo.DeleteByCode(ctx, "warm99")
		assert.NoError(t, err)
	}

	count, err := repo.Warmup(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = repo.FindByCode(ctx, "warm99")
	assert.ErrorIs(t, err, apperrors.ErrLinkNotFound)
}

func TestCachedLinkRepositoryReinsertAfterDelete(t *testing.T) {
	ctx := context.Background()
	c := newMapCache()
	repo := NewCachedLinkRepository(NewMemoryLinkRepository(), c, zaptest.NewLogger(t))

	_, err := repo.Insert(ctx, "https://old.example", "again1")
	require.NoError(t, err)
	_, err = repo.DeleteByCode(ctx, "again1")
	require.NoError(t, err)
	assert.True(t, c.has(c.keys.Gone("again1")))

	_, err = repo.Insert(ctx, "https://new.example", "again1")
	require.NoError(t, err)
	assert.False(t, c.has(c.keys.Gone("again1")))
	assert.True(t, c.has(c.keys.Link("again1")))

	found, err := repo.FindByCode(ctx, "again1")
	require.NoError(t, err)
	assert.Equal(t, "https://new.example", found.OriginalURL)
}
