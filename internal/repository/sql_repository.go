package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Kosench/go-link-shortener/internal/database"
	apperrors "github.com/Kosench/go-link-shortener/internal/errors"
	"github.com/Kosench/go-link-shortener/internal/model"
	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

const linkColumns = `id, original_url, short_code, click_count, created_at, last_clicked_at`

// SQLLinkRepository stores links in PostgreSQL or SQLite. Queries are written
// with ? placeholders and rebound for the dialect.
type SQLLinkRepository struct {
	db      *sql.DB
	dialect database.Dialect
	now     func() time.Time
}

var _ LinkRepository = (*SQLLinkRepository)(nil)

func NewSQLLinkRepository(db *sql.DB, dialect database.Dialect) *SQLLinkRepository {
	return &SQLLinkRepository{
		db:      db,
		dialect: dialect,
		now:     func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

func (r *SQLLinkRepository) Insert(ctx context.Context, originalURL, shortCode string) (*model.Link, error) {
	// Атомарная вставка: конфликт по short_code не возвращает строк
	query := r.rebind(`
	INSERT INTO links (original_url, short_code, click_count, created_at)
	VALUES (?, ?, 0, ?)
	ON CONFLICT (short_code) DO NOTHING
	RETURNING id
	`)

	link := &model.Link{
		OriginalURL: originalURL,
		ShortCode:   shortCode,
		CreatedAt:   r.now(),
	}

	err := r.db.QueryRowContext(ctx, query, link.OriginalURL, link.ShortCode, link.CreatedAt).Scan(&link.ID)
	if errors.Is(err, sql.ErrNoRows) || isUniqueViolation(err) {
		return nil, fmt.Errorf("short code '%s': %w", shortCode, apperrors.ErrShortCodeExists)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert link: %w", err)
	}

	return link, nil
}

func (r *SQLLinkRepository) FindByCode(ctx context.Context, shortCode string) (*model.Link, error) {
	query := r.rebind(`SELECT ` + linkColumns + ` FROM links WHERE short_code = ?`)

	link, err := scanLink(r.db.QueryRowContext(ctx, query, shortCode))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("link with short code '%s': %w", shortCode, apperrors.ErrLinkNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get link: %w", err)
	}

	return link, nil
}

func (r *SQLLinkRepository) ListAll(ctx context.Context) ([]*model.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links ORDER BY created_at DESC, id DESC`
	return r.queryLinks(ctx, query)
}

func (r *SQLLinkRepository) ListPopular(ctx context.Context, limit int) ([]*model.Link, error) {
	query := r.rebind(`SELECT ` + linkColumns + ` FROM links ORDER BY click_count DESC, created_at DESC LIMIT ?`)
	return r.queryLinks(ctx, query, limit)
}

func (r *SQLLinkRepository) DeleteByCode(ctx context.Context, shortCode string) (bool, error) {
	query := r.rebind(`DELETE FROM links WHERE short_code = ?`)

	res, err := r.db.ExecContext(ctx, query, shortCode)
	if err != nil {
		return false, fmt.Errorf("failed to delete link: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete link: %w", err)
	}

	return affected > 0, nil
}

func (r *SQLLinkRepository) IncrementClicks(ctx context.Context, id int64) error {
	query := r.rebind(`
	UPDATE links
	SET click_count = click_count + 1, last_clicked_at = ?
	WHERE id = ?
	`)

	res, err := r.db.ExecContext(ctx, query, r.now(), id)
	if err != nil {
		return fmt.Errorf("failed to increment click count: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to increment click count: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("link with ID %d: %w", id, apperrors.ErrLinkNotFound)
	}

	return nil
}

func (r *SQLLinkRepository) Ping(ctx context.Context) error {
	return database.HealthCheck(ctx, r.db)
}

func (r *SQLLinkRepository) queryLinks(ctx context.Context, query string, args ...any) ([]*model.Link, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	defer rows.Close()

	links := make([]*model.Link, 0)
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, link)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate links: %w", err)
	}

	return links, nil
}

// rebind rewrites ? placeholders to $1..$n for PostgreSQL.
func (r *SQLLinkRepository) rebind(query string) string {
	if r.dialect != database.DialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLink(row rowScanner) (*model.Link, error) {
	var (
		link          model.Link
		lastClickedAt sql.NullTime
	)

	if err := row.Scan(
		&link.ID,
		&link.OriginalURL,
		&link.ShortCode,
		&link.ClickCount,
		&link.CreatedAt,
		&lastClickedAt,
	); err != nil {
		return nil, err
	}

	if lastClickedAt.Valid {
		t := lastClickedAt.Time
		link.LastClickedAt = &t
	}

	return &link, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
