package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"socialp/internal/cache"
	"socialp/internal/domain/search"
)

type SearchPosts struct {
	store SearchStore
	cache *cache.Cache
	ttl   time.Duration
}

func NewSearchPosts(store SearchStore, cache *cache.Cache, ttl time.Duration) *SearchPosts {
	return &SearchPosts{store: store, cache: cache, ttl: ttl}
}

func (uc *SearchPosts) Execute(ctx context.Context, query string) ([]search.Document, error) {
	if strings.TrimSpace(query) == "" {
		return []search.Document{}, nil
	}

	docs, err := cache.ReadThrough(ctx, uc.cache, cache.SearchKey(query), uc.ttl, func(ctx context.Context) ([]search.Document, error) {
		return uc.store.Search(ctx, query, search.ResultLimit)
	})
	if err != nil {
		return nil, fmt.Errorf("search posts: %w", err)
	}
	return docs, nil
}
