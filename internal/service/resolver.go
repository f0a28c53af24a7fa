package service

import (
	"context"
	"errors"

	apperrors "github.com/Kosench/go-link-shortener/internal/errors"
	"github.com/Kosench/go-link-shortener/internal/model"
	"github.com/Kosench/go-link-shortener/internal/repository"
	"github.com/Kosench/go-link-shortener/internal/utils"
)

// Resolver отдает целевой URL по короткому коду и учитывает клик
type Resolver struct {
	repo   repository.LinkRepository
	clicks ClickRecorder
}

func NewResolver(repo repository.LinkRepository, clicks ClickRecorder) *Resolver {
	return &Resolver{
		repo:   repo,
		clicks: clicks,
	}
}

// Resolve returns the target URL without waiting for the click to be stored.
func (r *Resolver) Resolve(ctx context.Context, code string) (string, error) {
	link, err := r.lookup(ctx, code)
	if err != nil {
		return "", err
	}

	r.clicks.Record(link)
	return link.OriginalURL, nil
}

// lookup never reaches the store for codes that could not have been allocated.
func (r *Resolver) lookup(ctx context.Context, code string) (*model.Link, error) {
	if utils.ValidateShortCode(code) != nil {
		return nil, apperrors.ErrLinkNotFound
	}

	link, err := r.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, apperrors.ErrLinkNotFound) {
			return nil, apperrors.ErrLinkNotFound
		}
		return nil, apperrors.NewStoreFailure("failed to resolve link", err)
	}
	return link, nil
}
