package search

import "time"

// Document is the search projection of a post, keyed by PostID.
type Document struct {
	PostID    string    `json:"post_id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

const ResultLimit = 10
