package types

import (
	"encoding/json"
	"time"
)

// Activity event types published after a successful commit.
const (
	EventUserRegistered = "user.registered"
	EventPostCreated    = "post.created"
	EventPostUpdated    = "post.updated"
	EventPostDeleted    = "post.deleted"
	EventLikeAdded      = "like.added"
	EventLikeRemoved    = "like.removed"
)

// Event is a broker-neutral activity record.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	ActorID    int             `json:"actor_id"`
	PostID     int             `json:"post_id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}
