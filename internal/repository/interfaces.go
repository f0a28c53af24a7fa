package repository

import (
	"context"

	"github.com/Kosench/go-link-shortener/internal/model"
)

// LinkRepository is the persistence boundary for links. Implementations must be
// safe for concurrent use; uniqueness of short codes and atomicity of
// IncrementClicks are enforced by the store itself.
type LinkRepository interface {
	// Insert returns apperrors.ErrShortCodeExists when the code is taken.
	Insert(ctx context.Context, originalURL, shortCode string) (*model.Link, error)
	// FindByCode returns apperrors.ErrLinkNotFound when no link has the code.
	FindByCode(ctx context.Context, shortCode string) (*model.Link, error)
	// ListAll returns links newest first.
	ListAll(ctx context.Context) ([]*model.Link, error)
	// ListPopular returns up to limit links with the highest click counts.
	ListPopular(ctx context.Context, limit int) ([]*model.Link, error)
	DeleteByCode(ctx context.Context, shortCode string) (bool, error)
	// IncrementClicks adds one click and stamps last_clicked_at in a single store operation.
	IncrementClicks(ctx context.Context, id int64) error
	Ping(ctx context.Context) error
}
