package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	apperrors "github.com/Kosench/go-link-shortener/internal/errors"
	"github.com/Kosench/go-link-shortener/internal/model"
)

// MemoryLinkRepository keeps links in process memory. It honours the same
// contract as the SQL store and is meant for tests and single-process demos.
type MemoryLinkRepository struct {
	mu     sync.RWMutex
	byCode map[string]*model.Link
	byID   map[int64]*model.Link
	nextID int64
	now    func() time.Time
}

var _ LinkRepository = (*MemoryLinkRepository)(nil)

func NewMemoryLinkRepository() *MemoryLinkRepository {
	return &MemoryLinkRepository{
		byCode: make(map[string]*model.Link),
		byID:   make(map[int64]*model.Link),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryLinkRepository) Insert(ctx context.Context, originalURL, shortCode string) (*model.Link, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byCode[shortCode]; exists {
		return nil, fmt.Errorf("short code '%s': %w", shortCode, apperrors.ErrShortCodeExists)
	}

	r.nextID++
	link := &model.Link{
		ID:          r.nextID,
		OriginalURL: originalURL,
		ShortCode:   shortCode,
		CreatedAt:   r.now(),
	}
	r.byCode[shortCode] = link
	r.byID[link.ID] = link

	return copyLink(link), nil
}

func (r *MemoryLinkRepository) FindByCode(ctx context.Context, shortCode string) (*model.Link, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	link, exists := r.byCode[shortCode]
	if !exists {
		return nil, fmt.Errorf("link with short code '%s': %w", shortCode, apperrors.ErrLinkNotFound)
	}

	return copyLink(link), nil
}

func (r *MemoryLinkRepository) ListAll(ctx context.Context) ([]*model.Link, error) {
	links, err := r.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	sort.Slice(links, func(i, j int) bool {
		if !links[i].CreatedAt.Equal(links[j].CreatedAt) {
			return links[i].CreatedAt.After(links[j].CreatedAt)
		}
		return links[i].ID > links[j].ID
	})

	return links, nil
}

func (r *MemoryLinkRepository) ListPopular(ctx context.Context, limit int) ([]*model.Link, error) {
	links, err := r.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(links, func(i, j int) bool {
		return links[i].ClickCount > links[j].ClickCount
	})

	if limit >= 0 && len(links) > limit {
		links = links[:limit]
	}

	return links, nil
}

func (r *MemoryLinkRepository) DeleteByCode(ctx context.Context, shortCode string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	link, exists := r.byCode[shortCode]
	if !exists {
		return false, nil
	}

	delete(r.byCode, shortCode)
	delete(r.byID, link.ID)

	return true, nil
}

func (r *MemoryLinkRepository) IncrementClicks(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	link, exists := r.byID[id]
	if !exists {
		return fmt.Errorf("link with ID %d: %w", id, apperrors.ErrLinkNotFound)
	}

	now := r.now()
	link.ClickCount++
	link.LastClickedAt = &now

	return nil
}

func (r *MemoryLinkRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (r *MemoryLinkRepository) snapshot(ctx context.Context) ([]*model.Link, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	links := make([]*model.Link, 0, len(r.byID))
	for _, link := range r.byID {
		links = append(links, copyLink(link))
	}

	return links, nil
}

// copyLink detaches callers from the stored value so the store stays the only writer.
func copyLink(link *model.Link) *model.Link {
	c := *link
	if link.LastClickedAt != nil {
		t := *link.LastClickedAt
		c.LastClickedAt = &t
	}
	return &c
}
