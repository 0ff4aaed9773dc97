package post

import (
	"errors"
	"time"
)

var (
	ErrNotFound  = errors.New("post not found")
	ErrForbidden = errors.New("post belongs to another user")
)

const MaxContentLength = 5000

type Post struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	MediaIDs  []string  `json:"media_ids"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Page is one page of the newest-first post listing.
type Page struct {
	Posts       []Post `json:"posts"`
	CurrentPage int    `json:"current_page"`
	TotalPages  int    `json:"total_pages"`
	TotalPosts  int    `json:"total_posts"`
}
