package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Kosench/go-link-shortener/internal/cache"
	apperrors "github.com/Kosench/go-link-shortener/internal/errors"
	"github.com/Kosench/go-link-shortener/internal/model"
	"go.uber.org/zap"
)

const (
	warmupTTL = 24 * time.Hour
	// goneTTL must outlive any store read that started before the delete.
	goneTTL = time.Minute
)

// CachedLinkRepository - репозиторий с кэшированием поверх любого LinkRepository.
// Ошибки кэша логируются и никогда не прерывают операцию.
//
// Удаление оставляет метку gone:<code>. Каждое заполнение кэша после записи
// проверяет метку и убирает свою запись, поэтому чтение, начатое до удаления,
// не может вернуть удаленную ссылку в кэш.
type CachedLinkRepository struct {
	next  LinkRepository
	cache cache.Cache
	keys  *cache.KeyBuilder
	log   *zap.Logger
}

var _ LinkRepository = (*CachedLinkRepository)(nil)

func NewCachedLinkRepository(next LinkRepository, c cache.Cache, log *zap.Logger) *CachedLinkRepository {
	return &CachedLinkRepository{
		next:  next,
		cache: c,
		keys:  c.Keys(),
		log:   log.Named("link_cache"),
	}
}

func (r *CachedLinkRepository) Insert(ctx context.Context, originalURL, shortCode string) (*model.Link, error) {
	link, err := r.next.Insert(ctx, originalURL, shortCode)
	if err != nil {
		return nil, err
	}

	// Код занят заново: метка прошлого удаления больше не нужна
	r.invalidate(ctx, r.keys.Gone(shortCode))
	r.store(ctx, link, 0)
	return link, nil
}

func (r *CachedLinkRepository) FindByCode(ctx context.Context, shortCode string) (*model.Link, error) {
	var cached model.Link
	err := r.cache.Get(ctx, r.keys.Link(shortCode), &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		r.log.Warn("cache read failed", zap.String("short_code", shortCode), zap.Error(err))
	}

	link, err := r.next.FindByCode(ctx, shortCode)
	if err != nil {
		return nil, err
	}

	r.store(ctx, link, 0)
	return link, nil
}

func (r *CachedLinkRepository) ListAll(ctx context.Context) ([]*model.Link, error) {
	return r.next.ListAll(ctx)
}

func (r *CachedLinkRepository) ListPopular(ctx context.Context, limit int) ([]*model.Link, error) {
	return r.next.ListPopular(ctx, limit)
}

func (r *CachedLinkRepository) DeleteByCode(ctx context.Context, shortCode string) (bool, error) {
	// id нужен, чтобы убрать обратный маппинг linkid:<id>
	var id int64
	existing, err := r.next.FindByCode(ctx, shortCode)
	switch {
	case err == nil:
		id = existing.ID
	case !errors.Is(err, apperrors.ErrLinkNotFound):
		return false, err
	}

	if err := r.cache.SetWithTTL(ctx, r.keys.Gone(shortCode), true, goneTTL); err != nil {
		r.log.Warn("cache write failed", zap.String("short_code", shortCode), zap.Error(err))
	}

	deleted, err := r.next.DeleteByCode(ctx, shortCode)
	if err != nil {
		return false, err
	}

	keys := []string{r.keys.Link(shortCode)}
	if id != 0 {
		keys = append(keys, r.keys.LinkID(id))
	}
	r.invalidate(ctx, keys...)

	return deleted, nil
}

// IncrementClicks обновляет счетчик в хранилище и инвалидирует закэшированную ссылку,
// чтобы следующий запрос увидел актуальный click_count.
func (r *CachedLinkRepository) IncrementClicks(ctx context.Context, id int64) error {
	if err := r.next.IncrementClicks(ctx, id); err != nil {
		return err
	}

	shortCode, err := r.cache.GetString(ctx, r.keys.LinkID(id))
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			r.log.Warn("cache read failed", zap.Int64("link_id", id), zap.Error(err))
		}
		return nil
	}

	r.invalidate(ctx, r.keys.Link(shortCode))
	return nil
}

func (r *CachedLinkRepository) Ping(ctx context.Context) error {
	return r.next.Ping(ctx)
}

// Warmup предзагружает популярные ссылки в кэш
func (r *CachedLinkRepository) Warmup(ctx context.Context, limit int) (int, error) {
	links, err := r.next.ListPopular(ctx, limit)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, link := range links {
		if r.store(ctx, link, warmupTTL) {
			count++
		}
	}

	r.log.Info("cache warmed up", zap.Int("links", count))
	return count, nil
}

// store caches the link and the id -> code mapping; ttl 0 means the cache default.
// It reports false when nothing stays cached.
func (r *CachedLinkRepository) store(ctx context.Context, link *model.Link, ttl time.Duration) bool {
	key := r.keys.Link(link.ShortCode)

	var err error
	if ttl > 0 {
		err = r.cache.SetWithTTL(ctx, key, link, ttl)
	} else {
		err = r.cache.Set(ctx, key, link)
	}
	if err != nil {
		r.log.Warn("cache write failed", zap.String("short_code", link.ShortCode), zap.Error(err))
		return false
	}

	// Проверка после записи: удаление между чтением и записью оставило метку
	if r.deletedRecently(ctx, link.ShortCode) {
		r.invalidate(ctx, key)
		return false
	}

	if err := r.cache.SetString(ctx, r.keys.LinkID(link.ID), link.ShortCode); err != nil {
		r.log.Warn("cache write failed", zap.Int64("link_id", link.ID), zap.Error(err))
	}

	return true
}

func (r *CachedLinkRepository) deletedRecently(ctx context.Context, shortCode string) bool {
	var gone bool
	err := r.cache.Get(ctx, r.keys.Gone(shortCode), &gone)
	if err == nil {
		return gone
	}
	if errors.Is(err, cache.ErrCacheMiss) {
		return false
	}

	// Не можем проверить метку: не оставляем запись, которая может быть устаревшей
	r.log.Warn("cache read failed", zap.String("short_code", shortCode), zap.Error(err))
	return true
}

func (r *CachedLinkRepository) invalidate(ctx context.Context, keys ...string) {
	if err := r.cache.Delete(ctx, keys...); err != nil {
		r.log.Warn("cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
	}
}
