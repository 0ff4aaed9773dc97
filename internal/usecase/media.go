package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"socialp/internal/cache"
	"socialp/internal/domain/media"

	"github.com/google/uuid"
)

var ErrInvalidMedia = errors.New("invalid media")

type UploadMedia struct {
	store  MediaStore
	assets AssetUploader
	logger *slog.Logger
}

func NewUploadMedia(store MediaStore, assets AssetUploader, logger *slog.Logger) *UploadMedia {
	return &UploadMedia{store: store, assets: assets, logger: logger}
}

type UploadMediaParams struct {
	UserID       string
	OriginalName string
	MimeType     string
	File         io.Reader
}

func (uc *UploadMedia) Execute(ctx context.Context, params UploadMediaParams) (*media.Media, error) {
	if params.File == nil || params.OriginalName == "" {
		return nil, fmt.Errorf("%w: file is required", ErrInvalidMedia)
	}

	asset, err := uc.assets.Upload(ctx, params.File, params.OriginalName)
	if err != nil {
		return nil, fmt.Errorf("upload media: %w", err)
	}

	m := &media.Media{
		ID:           uuid.New().String(),
		PublicID:     asset.PublicID,
		OriginalName: params.OriginalName,
		MimeType:     params.MimeType,
		URL:          asset.URL,
		UserID:       params.UserID,
		CreatedAt:    time.Now().UTC(),
	}

	if err := uc.store.Create(ctx, m); err != nil {
		// Without a row nothing would ever clean the asset up.
		if destroyErr := uc.assets.Destroy(context.WithoutCancel(ctx), asset.PublicID); destroyErr != nil {
			uc.logger.Error("orphaned asset after failed insert", "public_id", asset.PublicID, "error", destroyErr)
		}
		return nil, fmt.Errorf("save media: %w", err)
	}

	return m, nil
}

type GetMedia struct {
	store MediaStore
	cache *cache.Cache
	ttl   time.Duration
}

func NewGetMedia(store MediaStore, cache *cache.Cache, ttl time.Duration) *GetMedia {
	return &GetMedia{store: store, cache: cache, ttl: ttl}
}

func (uc *GetMedia) Execute(ctx context.Context, id string) (*media.Media, error) {
	m, err := cache.ReadThrough(ctx, uc.cache, cache.MediaKey(id), uc.ttl, func(ctx context.Context) (*media.Media, error) {
		return uc.store.GetByID(ctx, id)
	})
	if err != nil {
		return nil, fmt.Errorf("get media %s: %w", id, err)
	}
	return m, nil
}

const (
	DefaultMediaListLimit = 50
	MaxMediaListLimit     = 200
)

// ListMedia returns the newest media items. It is not cached; uploads would
// have to invalidate every listing.
type ListMedia struct {
	store MediaStore
}

func NewListMedia(store MediaStore) *ListMedia {
	return &ListMedia{store: store}
}

func (uc *ListMedia) Execute(ctx context.Context, limit int) ([]media.Media, error) {
	if limit <= 0 {
		limit = DefaultMediaListLimit
	}
	if limit > MaxMediaListLimit {
		limit = MaxMediaListLimit
	}

	items, err := uc.store.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	return items, nil
}
