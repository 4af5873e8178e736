package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/postboard/apiserver/internal/store"
	"github.com/postboard/apiserver/types"
)

const (
	defaultListLimit = 10
	maxListLimit     = 100
)

// PostService implements the owner-guarded post operations.
type PostService struct {
	tx    Transactor
	posts PostRepository
	options
}

func NewPostService(tx Transactor, posts PostRepository, opts ...Option) *PostService {
	return &PostService{
		tx:      tx,
		posts:   posts,
		options: buildOptions(opts),
	}
}

// Create stores a new post owned by caller.
func (s *PostService) Create(ctx context.Context, caller types.User, fields types.PostFields) (types.Post, error) {
	if err := validatePostFields(fields); err != nil {
		return types.Post{}, err
	}

	var created types.Post
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		created, err = s.posts.Create(ctx, types.Post{
			Title:     fields.Title,
			Content:   fields.Content,
			Published: fields.Published,
			UserID:    caller.ID,
		})
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrForeignKey) {
			return types.Post{}, ErrUnauthorized
		}
		return types.Post{}, fmt.Errorf("create post: %w", err)
	}

	s.logger.InfoContext(ctx, "post created",
		slog.Int("post_id", created.ID),
		slog.Int("user_id", caller.ID),
	)
	s.publish(ctx, postEvent(types.EventPostCreated, caller.ID, created))
	return created, nil
}

// Get returns the post with its owner and like count.
func (s *PostService) Get(ctx context.Context, caller types.User, id int) (types.PostView, error) {
	if view, ok, err := s.cache.Get(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "read post cache failed", slog.Int("post_id", id), slog.Any("error", err))
	} else if ok {
		return view, nil
	}

	// The version is read before the view so a mutation committed in between
	// makes the fill a no-op.
	version, versionErr := s.cache.Version(ctx, id)

	view, err := s.posts.View(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.PostView{}, postNotFound(id)
		}
		return types.PostView{}, fmt.Errorf("load post: %w", err)
	}

	if versionErr != nil {
		s.logger.WarnContext(ctx, "read post cache version failed", slog.Int("post_id", id), slog.Any("error", versionErr))
	} else if err := s.cache.Set(ctx, view, version); err != nil {
		s.logger.WarnContext(ctx, "write post cache failed", slog.Int("post_id", id), slog.Any("error", err))
	}
	return view, nil
}

// List returns a page of posts whose title contains params.Search. An empty
// page fails with ErrNotFound.
func (s *PostService) List(ctx context.Context, caller types.User, params types.PostListParams) ([]types.PostView, error) {
	if params.Limit < 0 || params.Offset < 0 {
		return nil, fmt.Errorf("%w: limit and skip must not be negative", ErrValidation)
	}
	if params.Limit == 0 {
		params.Limit = defaultListLimit
	}
	if params.Limit > maxListLimit {
		params.Limit = maxListLimit
	}

	views, err := s.posts.List(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	if len(views) == 0 {
		return nil, fmt.Errorf("%w: no posts found", ErrNotFound)
	}
	return views, nil
}

// Update overwrites the editable fields of a post owned by caller.
func (s *PostService) Update(ctx context.Context, caller types.User, id int, fields types.PostFields) (types.Post, error) {
	if err := validatePostFields(fields); err != nil {
		return types.Post{}, err
	}

	var updated types.Post
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		post, err := s.ownedPost(ctx, caller, id)
		if err != nil {
			return err
		}
		post.Title = fields.Title
		post.Content = fields.Content
		post.Published = fields.Published
		updated, err = s.posts.Update(ctx, post)
		return err
	})
	if err != nil {
		return types.Post{}, s.mutationError(id, err)
	}

	s.invalidate(ctx, id)
	s.publish(ctx, postEvent(types.EventPostUpdated, caller.ID, updated))
	return updated, nil
}

// Delete removes a post owned by caller. Its likes go with it.
func (s *PostService) Delete(ctx context.Context, caller types.User, id int) error {
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.ownedPost(ctx, caller, id); err != nil {
			return err
		}
		return s.posts.Delete(ctx, id)
	})
	if err != nil {
		return s.mutationError(id, err)
	}

	s.logger.InfoContext(ctx, "post deleted",
		slog.Int("post_id", id),
		slog.Int("user_id", caller.ID),
	)
	s.invalidate(ctx, id)
	s.publish(ctx, types.Event{Type: types.EventPostDeleted, ActorID: caller.ID, PostID: id})
	return nil
}

// ownedPost locks the post and checks that caller owns it.
func (s *PostService) ownedPost(ctx context.Context, caller types.User, id int) (types.Post, error) {
	post, err := s.posts.GetForUpdate(ctx, id)
	if err != nil {
		return types.Post{}, err
	}
	if post.UserID != caller.ID {
		return types.Post{}, ErrForbidden
	}
	return post, nil
}

func (s *PostService) mutationError(id int, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return postNotFound(id)
	case errors.Is(err, ErrForbidden):
		return err
	default:
		return fmt.Errorf("mutate post %d: %w", id, err)
	}
}

func postNotFound(id int) error {
	return fmt.Errorf("%w: post with id %d", ErrNotFound, id)
}

func validatePostFields(fields types.PostFields) error {
	if strings.TrimSpace(fields.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	return nil
}

func postEvent(eventType string, actorID int, post types.Post) types.Event {
	payload, _ := json.Marshal(struct {
		Title     string `json:"title"`
		Published bool   `json:"published"`
	}{post.Title, post.Published})
	return types.Event{
		Type:    eventType,
		ActorID: actorID,
		PostID:  post.ID,
		Payload: payload,
	}
}
