package service

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/Kosench/go-link-shortener/internal/errors"
	"github.com/Kosench/go-link-shortener/internal/model"
	"github.com/Kosench/go-link-shortener/internal/repository"
	"github.com/Kosench/go-link-shortener/internal/utils"
	"go.uber.org/zap"
)

const DefaultMaxAttempts = 5

// CodeGenerator выдает кандидата в короткие коды
type CodeGenerator func() (string, error)

// Allocator создает ссылки: проверяет ввод и выбирает свободный короткий код.
// Уникальность гарантирует хранилище, поэтому блокировок здесь нет.
type Allocator struct {
	repo        repository.LinkRepository
	generate    CodeGenerator
	maxAttempts int
	log         *zap.Logger
}

type AllocatorOption func(*Allocator)

func WithGenerator(generate CodeGenerator) AllocatorOption {
	return func(a *Allocator) {
		a.generate = generate
	}
}

func WithMaxAttempts(n int) AllocatorOption {
	return func(a *Allocator) {
		if n > 0 {
			a.maxAttempts = n
		}
	}
}

func NewAllocator(repo repository.LinkRepository, log *zap.Logger, opts ...AllocatorOption) *Allocator {
	a := &Allocator{
		repo:        repo,
		generate:    utils.GenerateShortCode,
		maxAttempts: DefaultMaxAttempts,
		log:         log.Named("allocator"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Allocate сохраняет новую ссылку. Пустой customCode означает автогенерацию.
func (a *Allocator) Allocate(ctx context.Context, originalURL, customCode string) (*model.Link, error) {
	originalURL = utils.SanitizeInput(originalURL)
	if err := utils.ValidateURL(originalURL); err != nil {
		return nil, err
	}

	if customCode != "" {
		return a.allocateCustom(ctx, originalURL, customCode)
	}
	return a.allocateGenerated(ctx, originalURL)
}

func (a *Allocator) allocateCustom(ctx context.Context, originalURL, code string) (*model.Link, error) {
	if err := utils.ValidateShortCode(code); err != nil {
		return nil, err
	}
	if utils.IsReservedShortCode(code) {
		return nil, apperrors.ErrShortCodeExists
	}

	link, err := a.repo.Insert(ctx, originalURL, code)
	if err != nil {
		if errors.Is(err, apperrors.ErrShortCodeExists) {
			return nil, apperrors.ErrShortCodeExists
		}
		return nil, apperrors.NewStoreFailure("failed to create link", err)
	}

	a.log.Debug("link created", zap.String("short_code", link.ShortCode), zap.Bool("custom", true))
	return link, nil
}

func (a *Allocator) allocateGenerated(ctx context.Context, originalURL string) (*model.Link, error) {
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		code, err := a.generate()
		if err != nil {
			return nil, apperrors.NewStoreFailure("failed to generate short code", err)
		}

		if utils.IsReservedShortCode(code) {
			continue
		}

		link, err := a.repo.Insert(ctx, originalURL, code)
		if err == nil {
			a.log.Debug("link created",
				zap.String("short_code", link.ShortCode),
				zap.Int("attempt", attempt),
			)
			return link, nil
		}

		if !errors.Is(err, apperrors.ErrShortCodeExists) {
			return nil, apperrors.NewStoreFailure("failed to create link", err)
		}

		// Коллизия: пробуем другой код
		a.log.Debug("short code collision", zap.String("short_code", code), zap.Int("attempt", attempt))
	}

	a.log.Error("short code space exhausted", zap.Int("attempts", a.maxAttempts))
	return nil, apperrors.NewStoreFailure(
		fmt.Sprintf("failed to generate unique short code after %d attempts", a.maxAttempts),
		apperrors.ErrCodeSpaceExhausted,
	)
}
