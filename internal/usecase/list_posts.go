package usecase

import (
	"context"
	"fmt"
	"time"

	"socialp/internal/cache"
	"socialp/internal/domain/post"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

type ListPosts struct {
	store PostStore
	cache *cache.Cache
	ttl   time.Duration
}

func NewListPosts(store PostStore, cache *cache.Cache, ttl time.Duration) *ListPosts {
	return &ListPosts{store: store, cache: cache, ttl: ttl}
}

// Execute returns one newest-first page. Page numbers start at 1; out of
// range values are clamped.
func (uc *ListPosts) Execute(ctx context.Context, page, limit int) (*post.Page, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	result, err := cache.ReadThrough(ctx, uc.cache, cache.PostsPageKey(page, limit), uc.ttl, func(ctx context.Context) (*post.Page, error) {
		posts, total, err := uc.store.List(ctx, (page-1)*limit, limit)
		if err != nil {
			return nil, err
		}
		return &post.Page{
			Posts:       posts,
			CurrentPage: page,
			TotalPages:  (total + limit - 1) / limit,
			TotalPosts:  total,
		}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return result, nil
}
