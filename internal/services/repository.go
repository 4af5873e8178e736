package services

import (
	"context"
	"log/slog"

	"github.com/postboard/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
}

// PostRepository defines persistence operations for posts.
type PostRepository interface {
	Get(ctx context.Context, id int) (types.Post, error)
	GetForUpdate(ctx context.Context, id int) (types.Post, error)
	View(ctx context.Context, id int) (types.PostView, error)
	List(ctx context.Context, params types.PostListParams) ([]types.PostView, error)
	Create(ctx context.Context, post types.Post) (types.Post, error)
	Update(ctx context.Context, post types.Post) (types.Post, error)
	Delete(ctx context.Context, id int) error
}

// LikeRepository defines persistence operations for likes.
type LikeRepository interface {
	Get(ctx context.Context, postID, userID int) (types.Like, error)
	Create(ctx context.Context, like types.Like) (types.Like, error)
	Delete(ctx context.Context, postID, userID int) error
}

// Transactor runs fn inside one transaction: commit when fn returns nil,
// rollback otherwise. Repositories called with the ctx passed to fn join it.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
}

// TokenIssuer issues and verifies bearer tokens carrying a user id.
type TokenIssuer interface {
	Issue(userID int) (string, error)
	Verify(token string) (int, error)
}

// EventPublisher publishes activity events. The publisher fills in the id
// and timestamp.
type EventPublisher interface {
	Publish(ctx context.Context, event types.Event) error
}

// PostCache caches post views by post id. Invalidate bumps the post's
// version; Set must drop a view loaded under an older version.
type PostCache interface {
	Get(ctx context.Context, id int) (types.PostView, bool, error)
	Version(ctx context.Context, id int) (int64, error)
	Set(ctx context.Context, view types.PostView, version int64) error
	Invalidate(ctx context.Context, id int) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, types.Event) error { return nil }

type nopPostCache struct{}

func (nopPostCache) Get(context.Context, int) (types.PostView, bool, error) {
	return types.PostView{}, false, nil
}
func (nopPostCache) Version(context.Context, int) (int64, error)       { return 0, nil }
func (nopPostCache) Set(context.Context, types.PostView, int64) error { return nil }
func (nopPostCache) Invalidate(context.Context, int) error            { return nil }

// Option configures the optional collaborators of a service.
type Option func(*options)

type options struct {
	events EventPublisher
	cache  PostCache
	logger *slog.Logger
}

// WithEvents publishes activity events after each successful commit.
func WithEvents(p EventPublisher) Option {
	return func(o *options) {
		if p != nil {
			o.events = p
		}
	}
}

// WithPostCache caches post reads and invalidates them on mutation.
func WithPostCache(c PostCache) Option {
	return func(o *options) {
		if c != nil {
			o.cache = c
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		events: nopPublisher{},
		cache:  nopPostCache{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// publish sends the event, logging failures. The write it describes has
// already committed.
func (o options) publish(ctx context.Context, event types.Event) {
	if err := o.events.Publish(ctx, event); err != nil {
		o.logger.WarnContext(ctx, "publish activity event failed",
			slog.String("type", event.Type),
			slog.Int("actor_id", event.ActorID),
			slog.Any("error", err),
		)
	}
}

func (o options) invalidate(ctx context.Context, postID int) {
	if err := o.cache.Invalidate(ctx, postID); err != nil {
		o.logger.WarnContext(ctx, "invalidate post cache failed",
			slog.Int("post_id", postID),
			slog.Any("error", err),
		)
	}
}
