package types

import "time"

// Like marks that a user likes a post. The (PostID, UserID) pair is unique.
type Like struct {
	PostID    int       `json:"post_id" db:"post_id"`
	UserID    int       `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// LikeDirection is the requested toggle direction.
type LikeDirection int

const (
	DirectionUnlike LikeDirection = 0
	DirectionLike   LikeDirection = 1
)

// Valid reports whether d is one of the two toggle directions.
func (d LikeDirection) Valid() bool {
	return d == DirectionUnlike || d == DirectionLike
}
