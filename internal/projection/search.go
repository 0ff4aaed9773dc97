// Package projection keeps service-local read models in step with post
// events. Every handler is idempotent by business key, so redelivery and
// retries are safe.
package projection

import (
	"context"
	"fmt"
	"log/slog"

	"socialp/internal/cache"
	domainEvent "socialp/internal/domain/event"
	"socialp/internal/domain/search"
	"socialp/internal/eventbus"
)

type SearchStore interface {
	Upsert(ctx context.Context, doc search.Document) (bool, error)
	Delete(ctx context.Context, postID string) error
}

type Invalidator interface {
	Invalidate(ctx context.Context, keys ...string) error
	InvalidateByPattern(ctx context.Context, pattern string) (int, error)
}

type SearchProjector struct {
	store  SearchStore
	cache  Invalidator
	logger *slog.Logger
}

func NewSearchProjector(store SearchStore, cache Invalidator, logger *slog.Logger) *SearchProjector {
	return &SearchProjector{store: store, cache: cache, logger: logger}
}

// Register wires the projector into a router bound to post.*.
func (p *SearchProjector) Register(r *eventbus.Router) {
	r.Handle(domainEvent.PostCreated, p.HandlePostCreated)
	r.Handle(domainEvent.PostDeleted, p.HandlePostDeleted)
}

func (p *SearchProjector) HandlePostCreated(ctx context.Context, msg eventbus.Message) error {
	var ev domainEvent.PostCreatedPayload
	if err := msg.Decode(&ev); err != nil {
		return eventbus.Permanent(err)
	}
	if ev.PostID == "" {
		return eventbus.Permanent(fmt.Errorf("post.created without postId"))
	}

	applied, err := p.store.Upsert(ctx, search.Document{
		PostID:    ev.PostID,
		UserID:    ev.UserID,
		Content:   ev.Content,
		CreatedAt: ev.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("index post %s: %w", ev.PostID, err)
	}
	if !applied {
		p.logger.Info("post already deleted, skipping index", "post_id", ev.PostID)
	}

	return p.invalidate(ctx)
}

func (p *SearchProjector) HandlePostDeleted(ctx context.Context, msg eventbus.Message) error {
	var ev domainEvent.PostDeletedPayload
	if err := msg.Decode(&ev); err != nil {
		return eventbus.Permanent(err)
	}
	if ev.PostID == "" {
		return eventbus.Permanent(fmt.Errorf("post.deleted without postId"))
	}

	if err := p.store.Delete(ctx, ev.PostID); err != nil {
		return fmt.Errorf("unindex post %s: %w", ev.PostID, err)
	}

	return p.invalidate(ctx)
}

// invalidate drops every cached search result. A failure fails the handler so
// the event is retried.
func (p *SearchProjector) invalidate(ctx context.Context) error {
	n, err := p.cache.InvalidateByPattern(ctx, cache.SearchPattern)
	if err != nil {
		return fmt.Errorf("invalidate search cache: %w", err)
	}
	p.logger.Debug("search cache invalidated", "keys", n)
	return nil
}
