// Package memstore is an in-memory implementation of the repositories used by
// the services. It enforces the same keys, references and cascades as the SQL
// schema and is meant for tests and local runs without a database.
//
// Transactions are serialized but never rolled back.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/postboard/apiserver/internal/store"
	"github.com/postboard/apiserver/types"
)

type txKey struct{}

type likeKey struct {
	postID int
	userID int
}

// Store holds all records behind a single lock.
type Store struct {
	txMu sync.Mutex

	mu         sync.RWMutex
	users      map[int]types.User
	posts      map[int]types.Post
	likes      map[likeKey]types.Like
	nextUserID int
	nextPostID int
	now        func() time.Time
}

func New() *Store {
	return &Store{
		users:      make(map[int]types.User),
		posts:      make(map[int]types.Post),
		likes:      make(map[likeKey]types.Like),
		nextUserID: 1,
		nextPostID: 1,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithinTx runs fn while holding the transaction lock. Nested calls join the
// outer transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(context.WithValue(ctx, txKey{}, true))
}

func (s *Store) Users() *UserRepository { return &UserRepository{s: s} }
func (s *Store) Posts() *PostRepository { return &PostRepository{s: s} }
func (s *Store) Likes() *LikeRepository { return &LikeRepository{s: s} }

type UserRepository struct {
	s *Store
}

func (r *UserRepository) GetByID(_ context.Context, id int) (types.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	user, ok := r.s.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (types.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, user := range r.s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *UserRepository) Create(_ context.Context, user types.User) (types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if existing.Email == user.Email {
			return types.User{}, store.ErrDuplicate
		}
	}
	user.ID = r.s.nextUserID
	user.CreatedAt = r.s.now()
	r.s.nextUserID++
	r.s.users[user.ID] = user
	return user, nil
}

func (r *UserRepository) Delete(_ context.Context, id int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.s.users, id)
	for postID, post := range r.s.posts {
		if post.UserID == id {
			r.s.deletePostLocked(postID)
		}
	}
	for key := range r.s.likes {
		if key.userID == id {
			delete(r.s.likes, key)
		}
	}
	return nil
}

type PostRepository struct {
	s *Store
}

func (r *PostRepository) Get(_ context.Context, id int) (types.Post, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	post, ok := r.s.posts[id]
	if !ok {
		return types.Post{}, store.ErrNotFound
	}
	return post, nil
}

// GetForUpdate is Get; row locking is covered by WithinTx.
func (r *PostRepository) GetForUpdate(ctx context.Context, id int) (types.Post, error) {
	return r.Get(ctx, id)
}

func (r *PostRepository) View(_ context.Context, id int) (types.PostView, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	post, ok := r.s.posts[id]
	if !ok {
		return types.PostView{}, store.ErrNotFound
	}
	return r.s.viewLocked(post), nil
}

func (r *PostRepository) List(_ context.Context, params types.PostListParams) ([]types.PostView, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	search := strings.ToLower(params.Search)
	matched := make([]types.Post, 0, len(r.s.posts))
	for _, post := range r.s.posts {
		if strings.Contains(strings.ToLower(post.Title), search) {
			matched = append(matched, post)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	views := make([]types.PostView, 0)
	for i := params.Offset; i < len(matched) && len(views) < params.Limit; i++ {
		if i < 0 {
			continue
		}
		views = append(views, r.s.viewLocked(matched[i]))
	}
	return views, nil
}

func (r *PostRepository) Create(_ context.Context, post types.Post) (types.Post, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[post.UserID]; !ok {
		return types.Post{}, store.ErrForeignKey
	}
	now := r.s.now()
	post.ID = r.s.nextPostID
	post.CreatedAt = now
	post.UpdatedAt = now
	r.s.nextPostID++
	r.s.posts[post.ID] = post
	return post, nil
}

func (r *PostRepository) Update(_ context.Context, post types.Post) (types.Post, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.posts[post.ID]
	if !ok {
		return types.Post{}, store.ErrNotFound
	}
	existing.Title = post.Title
	existing.Content = post.Content
	existing.Published = post.Published
	existing.UpdatedAt = r.s.now()
	r.s.posts[post.ID] = existing
	return existing, nil
}

func (r *PostRepository) Delete(_ context.Context, id int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.posts[id]; !ok {
		return store.ErrNotFound
	}
	r.s.deletePostLocked(id)
	return nil
}

type LikeRepository struct {
	s *Store
}

func (r *LikeRepository) Get(_ context.Context, postID, userID int) (types.Like, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	like, ok := r.s.likes[likeKey{postID: postID, userID: userID}]
	if !ok {
		return types.Like{}, store.ErrNotFound
	}
	return like, nil
}

func (r *LikeRepository) Create(_ context.Context, like types.Like) (types.Like, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.posts[like.PostID]; !ok {
		return types.Like{}, store.ErrForeignKey
	}
	if _, ok := r.s.users[like.UserID]; !ok {
		return types.Like{}, store.ErrForeignKey
	}
	key := likeKey{postID: like.PostID, userID: like.UserID}
	if _, ok := r.s.likes[key]; ok {
		return types.Like{}, store.ErrDuplicate
	}
	like.CreatedAt = r.s.now()
	r.s.likes[key] = like
	return like, nil
}

func (r *LikeRepository) Delete(_ context.Context, postID, userID int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := likeKey{postID: postID, userID: userID}
	if _, ok := r.s.likes[key]; !ok {
		return store.ErrNotFound
	}
	delete(r.s.likes, key)
	return nil
}

func (r *LikeRepository) CountByPost(_ context.Context, postID int) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.countLikesLocked(postID), nil
}

func (s *Store) deletePostLocked(id int) {
	delete(s.posts, id)
	for key := range s.likes {
		if key.postID == id {
			delete(s.likes, key)
		}
	}
}

func (s *Store) countLikesLocked(postID int) int {
	count := 0
	for key := range s.likes {
		if key.postID == postID {
			count++
		}
	}
	return count
}

func (s *Store) viewLocked(post types.Post) types.PostView {
	owner := s.users[post.UserID]
	return types.PostView{
		Post: types.PostResponse{
			Post: post,
			Owner: types.Owner{
				ID:        owner.ID,
				Email:     owner.Email,
				CreatedAt: owner.CreatedAt,
			},
		},
		Likes: s.countLikesLocked(post.ID),
	}
}
