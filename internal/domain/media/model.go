package media

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("media not found")

type Media struct {
	ID           string    `json:"id"`
	PublicID     string    `json:"public_id"`
	OriginalName string    `json:"original_name"`
	MimeType     string    `json:"mime_type"`
	URL          string    `json:"url"`
	UserID       string    `json:"user_id"`
	CreatedAt    time.Time `json:"created_at"`
}
