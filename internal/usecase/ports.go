package usecase

import (
	"context"
	"io"

	"socialp/internal/domain/media"
	"socialp/internal/domain/post"
	"socialp/internal/domain/search"
	"socialp/internal/infrastructure/cloudinary"
)

type PostStore interface {
	Create(ctx context.Context, p *post.Post) error
	GetByID(ctx context.Context, id string) (*post.Post, error)
	List(ctx context.Context, offset, limit int) ([]post.Post, int, error)
	DeleteOwned(ctx context.Context, id, userID string) (*post.Post, error)
}

type SearchStore interface {
	Search(ctx context.Context, query string, limit int) ([]search.Document, error)
}

type MediaStore interface {
	Create(ctx context.Context, m *media.Media) error
	GetByID(ctx context.Context, id string) (*media.Media, error)
	List(ctx context.Context, limit int) ([]media.Media, error)
}

type AssetUploader interface {
	Upload(ctx context.Context, file io.Reader, name string) (*cloudinary.Asset, error)
	Destroy(ctx context.Context, publicID string) error
}

// EventPublisher publishes fire-and-forget; failures are the publisher's to
// log and count.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any)
}
