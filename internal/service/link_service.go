package service

import (
	"context"
	"errors"

	apperrors "github.com/Kosench/go-link-shortener/internal/errors"
	"github.com/Kosench/go-link-shortener/internal/model"
	"github.com/Kosench/go-link-shortener/internal/repository"
	"github.com/Kosench/go-link-shortener/internal/utils"
	"go.uber.org/zap"
)

// LinkService - фасад над движками выделения и разрешения кодов для HTTP слоя
type LinkService struct {
	repo      repository.LinkRepository
	allocator *Allocator
	resolver  *Resolver
	baseURL   string
	log       *zap.Logger
}

func NewLinkService(
	repo repository.LinkRepository,
	allocator *Allocator,
	resolver *Resolver,
	baseURL string,
	log *zap.Logger,
) *LinkService {
	return &LinkService{
		repo:      repo,
		allocator: allocator,
		resolver:  resolver,
		baseURL:   baseURL,
		log:       log.Named("link_service"),
	}
}

func (s *LinkService) CreateLink(ctx context.Context, req *model.CreateLinkRequest) (*model.LinkResponse, error) {
	link, err := s.allocator.Allocate(ctx, req.URL, req.ShortCode)
	if err != nil {
		return nil, err
	}

	s.log.Info("link created",
		zap.Int64("link_id", link.ID),
		zap.String("short_code", link.ShortCode),
	)
	return model.NewLinkResponse(link, s.baseURL), nil
}

func (s *LinkService) ListLinks(ctx context.Context) ([]*model.LinkResponse, error) {
	links, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, apperrors.NewStoreFailure("failed to list links", err)
	}

	responses := make([]*model.LinkResponse, 0, len(links))
	for _, link := range links {
		responses = append(responses, model.NewLinkResponse(link, s.baseURL))
	}
	return responses, nil
}

// GetLink returns link stats without counting a click.
func (s *LinkService) GetLink(ctx context.Context, code string) (*model.LinkResponse, error) {
	link, err := s.resolver.lookup(ctx, code)
	if err != nil {
		return nil, err
	}
	return model.NewLinkResponse(link, s.baseURL), nil
}

func (s *LinkService) DeleteLink(ctx context.Context, code string) error {
	if utils.ValidateShortCode(code) != nil {
		return apperrors.ErrLinkNotFound
	}

	deleted, err := s.repo.DeleteByCode(ctx, code)
	if err != nil {
		return apperrors.NewStoreFailure("failed to delete link", err)
	}
	if !deleted {
		return apperrors.ErrLinkNotFound
	}

	s.log.Info("link deleted", zap.String("short_code", code))
	return nil
}

func (s *LinkService) Resolve(ctx context.Context, code string) (string, error) {
	target, err := s.resolver.Resolve(ctx, code)
	if err != nil && !errors.Is(err, apperrors.ErrLinkNotFound) {
		s.log.Error("failed to resolve link", zap.String("short_code", code), zap.Error(err))
	}
	return target, err
}

// Ping проверяет доступность хранилища
func (s *LinkService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}
