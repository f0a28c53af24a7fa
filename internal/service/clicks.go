package service

import (
	"context"
	"sync"
	"time"

	"github.com/Kosench/go-link-shortener/internal/model"
	"github.com/Kosench/go-link-shortener/internal/repository"
	"go.uber.org/zap"
)

const DefaultClickTimeout = 5 * time.Second

// ClickRecorder учитывает переход по ссылке, не блокируя редирект.
// Потеря клика допустима, задержка редиректа нет.
type ClickRecorder interface {
	Record(link *model.Link)
	Shutdown(ctx context.Context) error
}

// AsyncClickRecorder инкрементирует счетчик в отдельной горутине
type AsyncClickRecorder struct {
	repo    repository.LinkRepository
	timeout time.Duration
	log     *zap.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

var _ ClickRecorder = (*AsyncClickRecorder)(nil)

func NewAsyncClickRecorder(repo repository.LinkRepository, timeout time.Duration, log *zap.Logger) *AsyncClickRecorder {
	if timeout <= 0 {
		timeout = DefaultClickTimeout
	}
	return &AsyncClickRecorder{
		repo:    repo,
		timeout: timeout,
		log:     log.Named("clicks"),
	}
}

func (r *AsyncClickRecorder) Record(link *model.Link) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.log.Warn("click dropped after shutdown", zap.String("short_code", link.ShortCode))
		return
	}
	r.wg.Add(1)
	r.mu.Unlock()

	id, code := link.ID, link.ShortCode
	go func() {
		defer r.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		if err := r.repo.IncrementClicks(ctx, id); err != nil {
			r.log.Error("failed to record click",
				zap.Int64("link_id", id),
				zap.String("short_code", code),
				zap.Error(err),
			)
		}
	}()
}

// Shutdown перестает принимать клики и ждет завершения уже запущенных
func (r *AsyncClickRecorder) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
