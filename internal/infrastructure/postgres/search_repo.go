package postgres

import (
	"context"
	"fmt"

	"socialp/internal/domain/search"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SearchRepository stores the search projection. A tombstone per deleted post
// keeps a late post.created from resurrecting it.
type SearchRepository struct {
	pool *pgxpool.Pool
	tx   Transactor
}

func NewSearchRepository(pool *pgxpool.Pool, tx Transactor) *SearchRepository {
	return &SearchRepository{pool: pool, tx: tx}
}

// Upsert writes doc keyed by post id. It reports false when the post is
// tombstoned and nothing was written.
func (r *SearchRepository) Upsert(ctx context.Context, doc search.Document) (bool, error) {
	const sql = `
		INSERT INTO search_posts (post_id, user_id, content, created_at)
		SELECT $1, $2, $3, $4
		WHERE NOT EXISTS (SELECT 1 FROM search_tombstones WHERE post_id = $1)
		ON CONFLICT (post_id) DO UPDATE
		SET user_id = EXCLUDED.user_id,
			content = EXCLUDED.content,
			created_at = EXCLUDED.created_at
	`

	tag, err := conn(ctx, r.pool).Exec(ctx, sql, doc.PostID, doc.UserID, doc.Content, doc.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("upsert search document: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Delete tombstones the post and removes its document. Deleting a post that
// was never indexed succeeds.
func (r *SearchRepository) Delete(ctx context.Context, postID string) error {
	const tombstoneSQL = `
		INSERT INTO search_tombstones (post_id, deleted_at)
		VALUES ($1, NOW())
		ON CONFLICT (post_id) DO NOTHING
	`
	const deleteSQL = `DELETE FROM search_posts WHERE post_id = $1`

	return r.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		q := conn(txCtx, r.pool)
		if _, err := q.Exec(txCtx, tombstoneSQL, postID); err != nil {
			return fmt.Errorf("insert tombstone: %w", err)
		}
		if _, err := q.Exec(txCtx, deleteSQL, postID); err != nil {
			return fmt.Errorf("delete search document: %w", err)
		}
		return nil
	})
}

func (r *SearchRepository) Search(ctx context.Context, query string, limit int) ([]search.Document, error) {
	const sql = `
		SELECT post_id, user_id, content, created_at
		FROM search_posts
		WHERE content_tsv @@ plainto_tsquery('simple', $1)
		ORDER BY ts_rank(content_tsv, plainto_tsquery('simple', $1)) DESC, created_at DESC
		LIMIT $2
	`

	rows, err := conn(ctx, r.pool).Query(ctx, sql, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search posts: %w", err)
	}
	defer rows.Close()

	docs := make([]search.Document, 0, limit)
	for rows.Next() {
		var d search.Document
		if err := rows.Scan(&d.PostID, &d.UserID, &d.Content, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan search document: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search documents: %w", err)
	}
	return docs, nil
}
