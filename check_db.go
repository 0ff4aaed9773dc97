package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"socialp/internal/cache"
	"socialp/internal/config"
	"socialp/internal/infrastructure/postgres"
	"socialp/internal/infrastructure/redis"

	"github.com/jackc/pgx/v5"
)

func main() {
	purge := flag.Bool("purge-search-cache", false, "delete every cached search result")
	limit := flag.Int("n", 5, "rows to show per table")
	flag.Parse()

	cfg, err := config.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to load config: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, postgres.Config{
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		DBName:   cfg.Postgres.DBName,
	}.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close(ctx)

	if *purge {
		client, err := redis.NewClient(ctx, redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			fmt.Printf("Purge failed: %v\n", err)
		} else {
			c := cache.New(client, slog.New(slog.NewTextHandler(io.Discard, nil)), cfg.Cache.ScanBatch)
			n, err := c.InvalidateByPattern(ctx, cache.SearchPattern)
			if err != nil {
				fmt.Printf("Purge failed: %v\n", err)
			} else {
				fmt.Printf("Purged %d search cache entries\n", n)
			}
			client.Close()
		}
	}

	fmt.Println("--- Posts ---")
	rows, err := conn.Query(ctx, "SELECT id, user_id, cardinality(media_ids), created_at FROM posts ORDER BY created_at DESC LIMIT $1", *limit)
	if err == nil {
		for rows.Next() {
			var id, userID string
			var media int
			var createdAt time.Time
			rows.Scan(&id, &userID, &media, &createdAt)
			fmt.Printf("ID: %s | User: %s | Media: %d | Created: %v\n", id, userID, media, createdAt)
		}
		rows.Close()
	} else {
		fmt.Printf("posts: %v\n", err)
	}

	fmt.Println("\n--- Search index ---")
	rows, err = conn.Query(ctx, "SELECT post_id, left(content, 40) FROM search_posts ORDER BY created_at DESC LIMIT $1", *limit)
	if err == nil {
		for rows.Next() {
			var postID, content string
			rows.Scan(&postID, &content)
			fmt.Printf("Post: %s | Content: %q\n", postID, content)
		}
		rows.Close()
	} else {
		fmt.Printf("search_posts: %v\n", err)
	}

	fmt.Println("\n--- Search tombstones ---")
	rows, err = conn.Query(ctx, "SELECT post_id, deleted_at FROM search_tombstones ORDER BY deleted_at DESC LIMIT $1", *limit)
	if err == nil {
		for rows.Next() {
			var postID string
			var deletedAt time.Time
			rows.Scan(&postID, &deletedAt)
			fmt.Printf("Post: %s | Deleted: %v\n", postID, deletedAt)
		}
		rows.Close()
	} else {
		fmt.Printf("search_tombstones: %v\n", err)
	}

	fmt.Println("\n--- Media ---")
	rows, err = conn.Query(ctx, "SELECT id, public_id, user_id FROM media ORDER BY created_at DESC LIMIT $1", *limit)
	if err == nil {
		for rows.Next() {
			var id, publicID, userID string
			rows.Scan(&id, &publicID, &userID)
			fmt.Printf("ID: %s | Asset: %s | User: %s\n", id, publicID, userID)
		}
		rows.Close()
	} else {
		fmt.Printf("media: %v\n", err)
	}
}
