package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Kosench/go-link-shortener/internal/database"
	apperrors "github.com/Kosench/go-link-shortener/internal/errors"
	"github.com/Kosench/go-link-shortener/internal/model"
	"github.com/Kosench/go-link-shortener/internal/repository"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// stubRepository wraps a real repository and lets tests inject store behaviour.
type stubRepository struct {
	repository.LinkRepository

	insertErr    error
	findErr      error
	deleteErr    error
	listErr      error
	conflictsFor int32 // первые N вставок отвечают конфликтом

	inserts    atomic.Int32
	finds      atomic.Int32
	increments atomic.Int32
}

func newStubRepository() *stubRepository {
	return &stubRepository{LinkRepository: repository.NewMemoryLinkRepository()}
}

func (s *stubRepository) Insert(ctx context.Context, originalURL, shortCode string) (*model.Link, error) {
	n := s.inserts.Add(1)
	if s.insertErr != nil {
		return nil, s.insertErr
	}
	if n <= s.conflictsFor {
		return nil, apperrors.ErrShortCodeExists
	}
	return s.LinkRepository.Insert(ctx, originalURL, shortCode)
}

func (s *stubRepository) FindByCode(ctx context.Context, shortCode string) (*model.Link, error) {
	s.finds.Add(1)
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.LinkRepository.FindByCode(ctx, shortCode)
}

func (s *stubRepository) ListAll(ctx context.Context) ([]*model.Link, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.LinkRepository.ListAll(ctx)
}

func (s *stubRepository) DeleteByCode(ctx context.Context, shortCode string) (bool, error) {
	if s.deleteErr != nil {
		return false, s.deleteErr
	}
	return s.LinkRepository.DeleteByCode(ctx, shortCode)
}

func (s *stubRepository) IncrementClicks(ctx context.Context, id int64) error {
	s.increments.Add(1)
	return s.LinkRepository.IncrementClicks(ctx, id)
}

// recordingClicks counts clicks synchronously.
type recordingClicks struct {
	mu    sync.Mutex
	links []*model.Link
}

func (r *recordingClicks) Record(link *model.Link) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.links = append(r.links, link)
}

func (r *recordingClicks) Shutdown(ctx context.Context) error { return nil }

func (r *recordingClicks) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.links)
}

var errDatabaseDown = errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")

func newSQLiteRepository(t *testing.T) repository.LinkRepository {
	t.Helper()

	db, dialect, err := database.Open(database.Options{Driver: "sqlite", DSN: ":memory:", MaxOpenConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db, dialect))

	return repository.NewSQLLinkRepository(db, dialect)
}

func newTestAllocator(t *testing.T, repo repository.LinkRepository, opts ...AllocatorOption) *Allocator {
	return NewAllocator(repo, zaptest.NewLogger(t), opts...)
}
