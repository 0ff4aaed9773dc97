package usecase

import (
	"context"
	"fmt"
	"time"

	"socialp/internal/cache"
	"socialp/internal/domain/post"
)

type GetPost struct {
	store PostStore
	cache *cache.Cache
	ttl   time.Duration
}

func NewGetPost(store PostStore, cache *cache.Cache, ttl time.Duration) *GetPost {
	return &GetPost{store: store, cache: cache, ttl: ttl}
}

func (uc *GetPost) Execute(ctx context.Context, postID string) (*post.Post, error) {
	p, err := cache.ReadThrough(ctx, uc.cache, cache.PostKey(postID), uc.ttl, func(ctx context.Context) (*post.Post, error) {
		return uc.store.GetByID(ctx, postID)
	})
	if err != nil {
		return nil, fmt.Errorf("get post %s: %w", postID, err)
	}
	return p, nil
}
