package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"socialp/internal/cache"
	domainEvent "socialp/internal/domain/event"
)

type DeletePost struct {
	store     PostStore
	cache     *cache.Cache
	publisher EventPublisher
	logger    *slog.Logger
}

func NewDeletePost(store PostStore, cache *cache.Cache, publisher EventPublisher, logger *slog.Logger) *DeletePost {
	return &DeletePost{
		store:     store,
		cache:     cache,
		publisher: publisher,
		logger:    logger,
	}
}

// Execute deletes a post owned by userID and announces it so the search and
// media services drop their copies.
func (uc *DeletePost) Execute(ctx context.Context, postID, userID string) error {
	removed, err := uc.store.DeleteOwned(ctx, postID, userID)
	if err != nil {
		return fmt.Errorf("delete post %s: %w", postID, err)
	}

	invalidatePostCache(ctx, uc.cache, uc.logger, removed.ID)

	mediaIDs := removed.MediaIDs
	if mediaIDs == nil {
		mediaIDs = []string{}
	}
	uc.publisher.Publish(ctx, domainEvent.PostDeleted, domainEvent.PostDeletedPayload{
		PostID:   removed.ID,
		UserID:   removed.UserID,
		MediaIDs: mediaIDs,
	})

	return nil
}
