package event

import "time"

// Routing keys follow <entity>.<action>.
const (
	PostCreated = "post.created"
	PostDeleted = "post.deleted"

	// PostAll binds every post event.
	PostAll = "post.*"
)

// PostCreatedPayload is published after a post row commits.
type PostCreatedPayload struct {
	PostID    string    `json:"postId"`
	UserID    string    `json:"userId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

func (PostCreatedPayload) SchemaVersion() int { return 1 }

// PostDeletedPayload is published after a post row is removed. MediaIDs lists
// the attachments the media service should clean up.
type PostDeletedPayload struct {
	PostID   string   `json:"postId"`
	UserID   string   `json:"userId"`
	MediaIDs []string `json:"mediaIds"`
}

func (PostDeletedPayload) SchemaVersion() int { return 1 }
