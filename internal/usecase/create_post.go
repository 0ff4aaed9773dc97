package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"socialp/internal/cache"
	domainEvent "socialp/internal/domain/event"
	"socialp/internal/domain/post"

	"github.com/google/uuid"
)

var ErrInvalidPost = errors.New("invalid post")

type CreatePost struct {
	store     PostStore
	cache     *cache.Cache
	publisher EventPublisher
	logger    *slog.Logger
}

func NewCreatePost(store PostStore, cache *cache.Cache, publisher EventPublisher, logger *slog.Logger) *CreatePost {
	return &CreatePost{
		store:     store,
		cache:     cache,
		publisher: publisher,
		logger:    logger,
	}
}

type CreatePostParams struct {
	UserID   string   `json:"user_id"`
	Content  string   `json:"content"`
	MediaIDs []string `json:"media_ids"`
}

func (uc *CreatePost) Execute(ctx context.Context, params CreatePostParams) (*post.Post, error) {
	content := strings.TrimSpace(params.Content)
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", ErrInvalidPost)
	}
	if utf8.RuneCountInString(content) > post.MaxContentLength {
		return nil, fmt.Errorf("%w: content exceeds %d characters", ErrInvalidPost, post.MaxContentLength)
	}

	now := time.Now().UTC()
	newPost := &post.Post{
		ID:        uuid.New().String(),
		UserID:    params.UserID,
		Content:   content,
		MediaIDs:  params.MediaIDs,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if newPost.MediaIDs == nil {
		newPost.MediaIDs = []string{}
	}

	if err := uc.store.Create(ctx, newPost); err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}

	invalidatePostCache(ctx, uc.cache, uc.logger, newPost.ID)

	uc.publisher.Publish(ctx, domainEvent.PostCreated, domainEvent.PostCreatedPayload{
		PostID:    newPost.ID,
		UserID:    newPost.UserID,
		Content:   newPost.Content,
		CreatedAt: newPost.CreatedAt,
	})

	return newPost, nil
}

// invalidatePostCache drops the single-post entry and every listing page.
// The write already committed, so failures are only logged.
func invalidatePostCache(ctx context.Context, c *cache.Cache, logger *slog.Logger, postID string) {
	if err := c.Invalidate(ctx, cache.PostKey(postID)); err != nil {
		logger.Warn("post cache invalidation failed", "post_id", postID, "error", err)
	}
	if _, err := c.InvalidateByPattern(ctx, cache.PostsPattern); err != nil {
		logger.Warn("post list cache invalidation failed", "error", err)
	}
}
