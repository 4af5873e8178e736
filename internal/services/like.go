package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/postboard/apiserver/internal/store"
	"github.com/postboard/apiserver/types"
)

var (
	errAlreadyLiked  = fmt.Errorf("%w: this post was already liked", ErrConflict)
	errLikeNotExists = fmt.Errorf("%w: like does not exist", ErrNotFound)
)

// LikeService applies like and unlike requests.
type LikeService struct {
	tx    Transactor
	posts PostRepository
	likes LikeRepository
	options
}

func NewLikeService(tx Transactor, posts PostRepository, likes LikeRepository, opts ...Option) *LikeService {
	return &LikeService{
		tx:      tx,
		posts:   posts,
		likes:   likes,
		options: buildOptions(opts),
	}
}

// Toggle likes (dir 1) or unlikes (dir 0) the post for caller. Liking twice
// fails with ErrConflict, including when a concurrent like wins the unique
// key at insert or commit. Unliking without a like fails with ErrNotFound.
func (s *LikeService) Toggle(ctx context.Context, caller types.User, postID int, dir types.LikeDirection) error {
	if !dir.Valid() {
		return fmt.Errorf("%w: dir must be 0 or 1, got %d", ErrValidation, dir)
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.posts.Get(ctx, postID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return postNotFound(postID)
			}
			return fmt.Errorf("load post: %w", err)
		}

		_, err := s.likes.Get(ctx, postID, caller.ID)
		exists := err == nil
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("load like: %w", err)
		}

		if dir == types.DirectionLike {
			if exists {
				return errAlreadyLiked
			}
			_, err := s.likes.Create(ctx, types.Like{PostID: postID, UserID: caller.ID})
			return err
		}

		if !exists {
			return errLikeNotExists
		}
		if err := s.likes.Delete(ctx, postID, caller.ID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return errLikeNotExists
			}
			return err
		}
		return nil
	})
	if err != nil {
		return toggleError(postID, err)
	}

	eventType := types.EventLikeAdded
	if dir == types.DirectionUnlike {
		eventType = types.EventLikeRemoved
	}
	s.logger.InfoContext(ctx, "like toggled",
		slog.Int("post_id", postID),
		slog.Int("user_id", caller.ID),
		slog.Int("dir", int(dir)),
	)
	s.invalidate(ctx, postID)
	s.publish(ctx, types.Event{Type: eventType, ActorID: caller.ID, PostID: postID})
	return nil
}

// toggleError maps store constraint violations onto the toggle outcomes. A
// unique violation is a lost race against a concurrent like; a foreign key
// violation is a post deleted after it was read.
func toggleError(postID int, err error) error {
	switch {
	case errors.Is(err, ErrConflict), errors.Is(err, ErrNotFound):
		return err
	case errors.Is(err, store.ErrDuplicate):
		return errAlreadyLiked
	case errors.Is(err, store.ErrForeignKey):
		return postNotFound(postID)
	default:
		return fmt.Errorf("toggle like: %w", err)
	}
}
