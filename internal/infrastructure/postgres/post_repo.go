package postgres

import (
	"context"
	"errors"
	"fmt"

	"socialp/internal/domain/post"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostRepository struct {
	pool *pgxpool.Pool
}

func NewPostRepository(pool *pgxpool.Pool) *PostRepository {
	return &PostRepository{pool: pool}
}

func (r *PostRepository) Create(ctx context.Context, p *post.Post) error {
	const sql = `
		INSERT INTO posts (id, user_id, content, media_ids, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	mediaIDs := p.MediaIDs
	if mediaIDs == nil {
		mediaIDs = []string{}
	}

	_, err := conn(ctx, r.pool).Exec(ctx, sql, p.ID, p.UserID, p.Content, mediaIDs, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

func (r *PostRepository) GetByID(ctx context.Context, id string) (*post.Post, error) {
	const sql = `
		SELECT id, user_id, content, media_ids, created_at, updated_at
		FROM posts
		WHERE id = $1
	`

	p, err := scanPost(conn(ctx, r.pool).QueryRow(ctx, sql, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, post.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get post by id: %w", err)
	}
	return p, nil
}

// List returns posts newest first together with the total row count.
func (r *PostRepository) List(ctx context.Context, offset, limit int) ([]post.Post, int, error) {
	const countSQL = `SELECT COUNT(*) FROM posts`
	const listSQL = `
		SELECT id, user_id, content, media_ids, created_at, updated_at
		FROM posts
		ORDER BY created_at DESC, id DESC
		OFFSET $1
		LIMIT $2
	`

	q := conn(ctx, r.pool)

	var total int
	if err := q.QueryRow(ctx, countSQL).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}

	rows, err := q.Query(ctx, listSQL, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	posts := make([]post.Post, 0, limit)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate posts: %w", err)
	}

	return posts, total, nil
}

// DeleteOwned removes the post only when userID owns it and returns the
// removed row.
func (r *PostRepository) DeleteOwned(ctx context.Context, id, userID string) (*post.Post, error) {
	const sql = `
		DELETE FROM posts
		WHERE id = $1 AND user_id = $2
		RETURNING id, user_id, content, media_ids, created_at, updated_at
	`
	const existsSQL = `SELECT EXISTS (SELECT 1 FROM posts WHERE id = $1)`

	q := conn(ctx, r.pool)

	p, err := scanPost(q.QueryRow(ctx, sql, id, userID))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("delete post: %w", err)
	}

	var exists bool
	if err := q.QueryRow(ctx, existsSQL, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check post: %w", err)
	}
	if exists {
		return nil, post.ErrForbidden
	}
	return nil, post.ErrNotFound
}

func scanPost(row pgx.Row) (*post.Post, error) {
	var p post.Post
	if err := row.Scan(&p.ID, &p.UserID, &p.Content, &p.MediaIDs, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}
