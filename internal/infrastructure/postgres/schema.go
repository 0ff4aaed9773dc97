package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const PostSchema = `
CREATE TABLE IF NOT EXISTS posts (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	content    TEXT NOT NULL,
	media_ids  TEXT[] NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS posts_created_at_idx ON posts (created_at DESC);
`

const SearchSchema = `
CREATE TABLE IF NOT EXISTS search_posts (
	post_id     TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	content     TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	content_tsv TSVECTOR GENERATED ALWAYS AS (to_tsvector('simple', content)) STORED
);
CREATE INDEX IF NOT EXISTS search_posts_tsv_idx ON search_posts USING GIN (content_tsv);
CREATE TABLE IF NOT EXISTS search_tombstones (
	post_id    TEXT PRIMARY KEY,
	deleted_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

const MediaSchema = `
CREATE TABLE IF NOT EXISTS media (
	id            TEXT PRIMARY KEY,
	public_id     TEXT NOT NULL,
	original_name TEXT NOT NULL,
	mime_type     TEXT NOT NULL,
	url           TEXT NOT NULL,
	user_id       TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL
);
`

// EnsureSchema creates the tables a service owns when they are missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, schemas ...string) error {
	for _, schema := range schemas {
		if _, err := pool.Exec(ctx, schema); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
