package postgres

import (
	"context"
	"errors"
	"fmt"

	"socialp/internal/domain/media"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MediaRepository struct {
	pool *pgxpool.Pool
}

func NewMediaRepository(pool *pgxpool.Pool) *MediaRepository {
	return &MediaRepository{pool: pool}
}

func (r *MediaRepository) Create(ctx context.Context, m *media.Media) error {
	const sql = `
		INSERT INTO media (id, public_id, original_name, mime_type, url, user_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := conn(ctx, r.pool).Exec(ctx, sql, m.ID, m.PublicID, m.OriginalName, m.MimeType, m.URL, m.UserID, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert media: %w", err)
	}
	return nil
}

func (r *MediaRepository) GetByID(ctx context.Context, id string) (*media.Media, error) {
	const sql = `
		SELECT id, public_id, original_name, mime_type, url, user_id, created_at
		FROM media
		WHERE id = $1
	`

	var m media.Media
	err := conn(ctx, r.pool).QueryRow(ctx, sql, id).Scan(
		&m.ID, &m.PublicID, &m.OriginalName, &m.MimeType, &m.URL, &m.UserID, &m.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, media.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get media by id: %w", err)
	}
	return &m, nil
}

// List returns up to limit rows, newest first.
func (r *MediaRepository) List(ctx context.Context, limit int) ([]media.Media, error) {
	const sql = `
		SELECT id, public_id, original_name, mime_type, url, user_id, created_at
		FROM media
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := conn(ctx, r.pool).Query(ctx, sql, limit)
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	defer rows.Close()

	items := []media.Media{}
	for rows.Next() {
		var m media.Media
		if err := rows.Scan(&m.ID, &m.PublicID, &m.OriginalName, &m.MimeType, &m.URL, &m.UserID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan media: %w", err)
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate media: %w", err)
	}
	return items, nil
}

// FindByIDs returns the rows that still exist among ids.
func (r *MediaRepository) FindByIDs(ctx context.Context, ids []string) ([]media.Media, error) {
	const sql = `
		SELECT id, public_id, original_name, mime_type, url, user_id, created_at
		FROM media
		WHERE id = ANY($1)
		ORDER BY created_at
	`

	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := conn(ctx, r.pool).Query(ctx, sql, ids)
	if err != nil {
		return nil, fmt.Errorf("find media: %w", err)
	}
	defer rows.Close()

	var items []media.Media
	for rows.Next() {
		var m media.Media
		if err := rows.Scan(&m.ID, &m.PublicID, &m.OriginalName, &m.MimeType, &m.URL, &m.UserID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan media: %w", err)
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate media: %w", err)
	}
	return items, nil
}

// Delete removes the row. A row that is already gone is not an error.
func (r *MediaRepository) Delete(ctx context.Context, id string) error {
	const sql = `DELETE FROM media WHERE id = $1`

	if _, err := conn(ctx, r.pool).Exec(ctx, sql, id); err != nil {
		return fmt.Errorf("delete media: %w", err)
	}
	return nil
}
