package store

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/postboard/apiserver/types"
)

// LikeRepository handles persistence for likes keyed by (post_id, user_id).
type LikeRepository struct {
	db *DB
}

func NewLikeRepository(db *DB) *LikeRepository {
	return &LikeRepository{db: db}
}

func (r *LikeRepository) Get(ctx context.Context, postID, userID int) (types.Like, error) {
	const query = `
		SELECT post_id, user_id, created_at
		FROM likes
		WHERE post_id = $1 AND user_id = $2`
	var like types.Like
	if err := sqlx.GetContext(ctx, r.db.ext(ctx), &like, query, postID, userID); err != nil {
		return types.Like{}, translateError(err)
	}
	return like, nil
}

// Create inserts the like. A second like for the same pair fails with
// ErrDuplicate; a missing post or user fails with ErrForeignKey.
func (r *LikeRepository) Create(ctx context.Context, like types.Like) (types.Like, error) {
	const query = `
		INSERT INTO likes (post_id, user_id)
		VALUES ($1, $2)
		RETURNING created_at`
	row := r.db.ext(ctx).QueryRowxContext(ctx, query, like.PostID, like.UserID)
	if err := row.Scan(&like.CreatedAt); err != nil {
		return types.Like{}, translateError(err)
	}
	return like, nil
}

func (r *LikeRepository) Delete(ctx context.Context, postID, userID int) error {
	const query = `DELETE FROM likes WHERE post_id = $1 AND user_id = $2`
	result, err := r.db.ext(ctx).ExecContext(ctx, query, postID, userID)
	if err != nil {
		return translateError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountByPost returns the number of likes referencing the post.
func (r *LikeRepository) CountByPost(ctx context.Context, postID int) (int, error) {
	const query = `SELECT COUNT(1) FROM likes WHERE post_id = $1`
	var count int
	if err := sqlx.GetContext(ctx, r.db.ext(ctx), &count, query, postID); err != nil {
		return 0, translateError(err)
	}
	return count, nil
}
