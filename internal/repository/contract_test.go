package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	apperrors "github.com/Kosench/go-link-shortener/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testLinkRepository runs the behaviour every LinkRepository must share.
func testLinkRepository(t *testing.T, newRepo func(t *testing.T) LinkRepository) {
	t.Run("insert and find", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		link, err := repo.Insert(ctx, "https://example.com", "abc123")
		require.NoError(t, err)
		assert.NotZero(t, link.ID)
		assert.Equal(t, "https://example.com", link.OriginalURL)
		assert.Equal(t, "abc123", link.ShortCode)
		assert.Zero(t, link.ClickCount)
		assert.Nil(t, link.LastClickedAt)
		assert.False(t, link.CreatedAt.IsZero())

		found, err := repo.FindByCode(ctx, "abc123")
		require.NoError(t, err)
		assert.Equal(t, link.ID, found.ID)
		assert.Equal(t, link.OriginalURL, found.OriginalURL)
		assert.Zero(t, found.ClickCount)
		assert.WithinDuration(t, link.CreatedAt, found.CreatedAt, time.Second)
	})

	t.Run("duplicate code is rejected and existing link kept", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		first, err := repo.Insert(ctx, "https://first.example", "dup1234")
		require.NoError(t, err)

		_, err = repo.Insert(ctx, "https://second.example", "dup1234")
		require.Error(t, err)
		assert.True(t, errors.Is(err, apperrors.ErrShortCodeExists))

		found, err := repo.FindByCode(ctx, "dup1234")
		require.NoError(t, err)
		assert.Equal(t, first.ID, found.ID)
		assert.Equal(t, "https://first.example", found.OriginalURL)
	})

	t.Run("codes are case sensitive", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		_, err := repo.Insert(ctx, "https://lower.example", "abcdef")
		require.NoError(t, err)
		_, err = repo.Insert(ctx, "https://upper.example", "ABCDEF")
		require.NoError(t, err)

		found, err := repo.FindByCode(ctx, "ABCDEF")
		require.NoError(t, err)
		assert.Equal(t, "https://upper.example", found.OriginalURL)
	})

	t.Run("find unknown code", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.FindByCode(context.Background(), "nope00")
		assert.True(t, errors.Is(err, apperrors.ErrLinkNotFound))
	})

	t.Run("list all newest first", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		empty, err := repo.ListAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, empty)

		for i := 0; i < 3; i++ {
			_, err := repo.Insert(ctx, fmt.Sprintf("https://example.com/%d", i), fmt.Sprintf("list00%d", i))
			require.NoError(t, err)
		}

		links, err := repo.ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, links, 3)
		assert.Equal(t, "list002", links[0].ShortCode)
		assert.Equal(t, "list001", links[1].ShortCode)
		assert.Equal(t, "list000", links[2].ShortCode)
	})

	t.Run("increment clicks", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		link, err := repo.Insert(ctx, "https://example.com", "clk123")
		require.NoError(t, err)

		require.NoError(t, repo.IncrementClicks(ctx, link.ID))
		require.NoError(t, repo.IncrementClicks(ctx, link.ID))

		found, err := repo.FindByCode(ctx, "clk123")
		require.NoError(t, err)
		assert.EqualValues(t, 2, found.ClickCount)
		require.NotNil(t, found.LastClickedAt)
		assert.WithinDuration(t, time.Now(), *found.LastClickedAt, time.Minute)

		err = repo.IncrementClicks(ctx, link.ID+1000)
		assert.True(t, errors.Is(err, apperrors.ErrLinkNotFound))
	})

	t.Run("concurrent increments are not lost", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		link, err := repo.Insert(ctx, "https://example.com", "conc12")
		require.NoError(t, err)

		const n = 50
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- repo.IncrementClicks(ctx, link.ID)
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		found, err := repo.FindByCode(ctx, "conc12")
		require.NoError(t, err)
		assert.EqualValues(t, n, found.ClickCount)
	})

	t.Run("list popular", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		cold, err := repo.Insert(ctx, "https://cold.example", "cold00")
		require.NoError(t, err)
		hot, err := repo.Insert(ctx, "https://hot.example", "hot000")
		require.NoError(t, err)
		_, err = repo.Insert(ctx, "https://none.example", "none00")
		require.NoError(t, err)

		require.NoError(t, repo.IncrementClicks(ctx, cold.ID))
		for i := 0; i < 3; i++ {
			require.NoError(t, repo.IncrementClicks(ctx, hot.ID))
		}

		links, err := repo.ListPopular(ctx, 2)
		require.NoError(t, err)
		require.Len(t, links, 2)
		assert.Equal(t, "hot000", links[0].ShortCode)
		assert.Equal(t, "cold00", links[1].ShortCode)
	})

	t.Run("delete", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		_, err := repo.Insert(ctx, "https://example.com", "del123")
		require.NoError(t, err)

		deleted, err := repo.DeleteByCode(ctx, "del123")
		require.NoError(t, err)
		assert.True(t, deleted)

		_, err = repo.FindByCode(ctx, "del123")
		assert.True(t, errors.Is(err, apperrors.ErrLinkNotFound))

		deleted, err = repo.DeleteByCode(ctx, "del123")
		require.NoError(t, err)
		assert.False(t, deleted)

		// Код снова свободен после удаления
		_, err = repo.Insert(ctx, "https://again.example", "del123")
		assert.NoError(t, err)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, newRepo(t).Ping(context.Background()))
	})
}
