package cloudinary

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

type Asset struct {
	PublicID string
	URL      string
}

// Client stores media assets in Cloudinary.
type Client struct {
	cld    *cloudinary.Cloudinary
	folder string
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, errors.New("cloudinary credentials are not configured")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("init cloudinary: %w", err)
	}

	return &Client{cld: cld, folder: cfg.Folder}, nil
}

func (c *Client) Upload(ctx context.Context, file io.Reader, name string) (*Asset, error) {
	res, err := c.cld.Upload.Upload(ctx, file, uploader.UploadParams{
		Folder:       c.folder,
		ResourceType: "auto",
	})
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", name, err)
	}
	if res.Error.Message != "" {
		return nil, fmt.Errorf("upload %s: %s", name, res.Error.Message)
	}

	return &Asset{PublicID: res.PublicID, URL: res.SecureURL}, nil
}

// Destroy deletes the asset. An asset that is already gone counts as deleted.
func (c *Client) Destroy(ctx context.Context, publicID string) error {
	res, err := c.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	if err != nil {
		return fmt.Errorf("destroy %s: %w", publicID, err)
	}
	return destroyOutcome(publicID, res.Result, res.Error.Message)
}

func destroyOutcome(publicID, result, errMsg string) error {
	if errMsg != "" {
		return fmt.Errorf("destroy %s: %s", publicID, errMsg)
	}
	switch result {
	case "ok", "not found":
		return nil
	default:
		return fmt.Errorf("destroy %s: unexpected result %q", publicID, result)
	}
}
