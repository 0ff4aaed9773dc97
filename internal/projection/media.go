package projection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"socialp/internal/cache"
	domainEvent "socialp/internal/domain/event"
	"socialp/internal/domain/media"
	"socialp/internal/eventbus"
)

type MediaStore interface {
	FindByIDs(ctx context.Context, ids []string) ([]media.Media, error)
	Delete(ctx context.Context, id string) error
}

// AssetStore deletes remote files. Destroy must treat a missing asset as
// already deleted.
type AssetStore interface {
	Destroy(ctx context.Context, publicID string) error
}

type MediaCleaner struct {
	store  MediaStore
	assets AssetStore
	cache  Invalidator
	logger *slog.Logger
}

func NewMediaCleaner(store MediaStore, assets AssetStore, cache Invalidator, logger *slog.Logger) *MediaCleaner {
	return &MediaCleaner{store: store, assets: assets, cache: cache, logger: logger}
}

func (c *MediaCleaner) Register(r *eventbus.Router) {
	r.Handle(domainEvent.PostDeleted, c.HandlePostDeleted)
}

// HandlePostDeleted removes the asset and then the metadata of every media
// item still attached to the post. Items owned by someone other than the
// post author are left alone. One failing item does not stop the rest;
// the joined error makes the bus retry, and items finished earlier are simply
// not found next time.
func (c *MediaCleaner) HandlePostDeleted(ctx context.Context, msg eventbus.Message) error {
	var ev domainEvent.PostDeletedPayload
	if err := msg.Decode(&ev); err != nil {
		return eventbus.Permanent(err)
	}
	if len(ev.MediaIDs) == 0 {
		return nil
	}

	items, err := c.store.FindByIDs(ctx, ev.MediaIDs)
	if err != nil {
		return fmt.Errorf("find media for post %s: %w", ev.PostID, err)
	}

	var (
		errs    []error
		cleaned []string
		foreign int
	)
	for _, m := range items {
		if m.UserID != ev.UserID {
			foreign++
			c.logger.Warn("skipping media owned by another user",
				"media_id", m.ID, "post_id", ev.PostID, "owner", m.UserID, "post_user", ev.UserID)
			continue
		}
		if err := c.assets.Destroy(ctx, m.PublicID); err != nil {
			errs = append(errs, fmt.Errorf("destroy asset %s: %w", m.PublicID, err))
			continue
		}
		if err := c.store.Delete(ctx, m.ID); err != nil {
			errs = append(errs, fmt.Errorf("delete media %s: %w", m.ID, err))
			continue
		}
		cleaned = append(cleaned, m.ID)
		c.logger.Info("deleted media for post", "media_id", m.ID, "post_id", ev.PostID)
	}

	// Covers items removed by an earlier partial run as well.
	keys := make([]string, 0, len(ev.MediaIDs))
	for _, id := range ev.MediaIDs {
		keys = append(keys, cache.MediaKey(id))
	}
	if err := c.cache.Invalidate(ctx, keys...); err != nil {
		errs = append(errs, fmt.Errorf("invalidate media cache: %w", err))
	}

	c.logger.Info("processed post deletion",
		"post_id", ev.PostID, "requested", len(ev.MediaIDs), "found", len(items), "deleted", len(cleaned), "skipped", foreign)

	return errors.Join(errs...)
}
