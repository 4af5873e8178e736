package types

import "time"

// Post is a text entry owned by exactly one user.
type Post struct {
	ID        int       `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	Content   string    `json:"content" db:"content"`
	Published bool      `json:"published" db:"published"`
	UserID    int       `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// PostFields holds the owner-editable attributes of a post.
type PostFields struct {
	Title     string
	Content   string
	Published bool
}

// PostResponse is a post together with its owner's public fields.
type PostResponse struct {
	Post
	Owner Owner `json:"owner"`
}

// PostView is a post response with its derived like count.
type PostView struct {
	Post  PostResponse `json:"Post"`
	Likes int          `json:"likes"`
}

// PostListParams controls filtering and pagination of post listings.
type PostListParams struct {
	Limit  int
	Offset int
	Search string
}
