package services_test

import (
	"context"
	"errors"
	"sync"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/postboard/apiserver/internal/auth"
	"github.com/postboard/apiserver/internal/services"
	"github.com/postboard/apiserver/internal/store/memstore"
	"github.com/postboard/apiserver/types"
)

type harness struct {
	store  *memstore.Store
	tokens *auth.TokenService
	events *recordingPublisher
	cache  *recordingCache
	auth   *services.AuthService
	posts  *services.PostService
	likes  *services.LikeService
}

func newHarness(c *qt.C) *harness {
	c.Helper()
	st := memstore.New()
	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret:    []byte("services-test-secret"),
		Algorithm: "HS256",
		TTL:       30 * time.Minute,
	})
	c.Assert(err, qt.IsNil)

	events := &recordingPublisher{}
	cache := newRecordingCache()
	opts := []services.Option{services.WithEvents(events), services.WithPostCache(cache)}

	return &harness{
		store:  st,
		tokens: tokens,
		events: events,
		cache:  cache,
		auth:   services.NewAuthService(st, st.Users(), auth.NewBcryptHasher(4), tokens, opts...),
		posts:  services.NewPostService(st, st.Posts(), opts...),
		likes:  services.NewLikeService(st, st.Posts(), st.Likes(), opts...),
	}
}

func (h *harness) register(c *qt.C, email string) types.User {
	c.Helper()
	user, err := h.auth.Register(context.Background(), email, "pw", "1234567890")
	c.Assert(err, qt.IsNil)
	return user
}

func (h *harness) createPost(c *qt.C, owner types.User, title string) types.Post {
	c.Helper()
	post, err := h.posts.Create(context.Background(), owner, types.PostFields{
		Title:     title,
		Content:   "content of " + title,
		Published: true,
	})
	c.Assert(err, qt.IsNil)
	return post
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []types.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event types.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) eventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type recordingCache struct {
	mu          sync.Mutex
	views       map[int]types.PostView
	versions    map[int]int64
	invalidated []int
}

func newRecordingCache() *recordingCache {
	return &recordingCache{
		views:    make(map[int]types.PostView),
		versions: make(map[int]int64),
	}
}

func (c *recordingCache) Get(_ context.Context, id int) (types.PostView, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	view, ok := c.views[id]
	return view, ok, nil
}

func (c *recordingCache) Version(_ context.Context, id int) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.versions[id], nil
}

func (c *recordingCache) Set(_ context.Context, view types.PostView, version int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.versions[view.Post.ID] != version {
		return nil
	}
	c.views[view.Post.ID] = view
	return nil
}

func (c *recordingCache) Invalidate(_ context.Context, id int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions[id]++
	delete(c.views, id)
	c.invalidated = append(c.invalidated, id)
	return nil
}

// failingCommitTx runs fn and then fails as a commit would.
type failingCommitTx struct {
	err error
}

func (tx failingCommitTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := fn(ctx); err != nil {
		return err
	}
	return tx.err
}

var errBroker = errors.New("broker unavailable")

func assertIs(c *qt.C, err, target error) {
	c.Helper()
	c.Assert(errors.Is(err, target), qt.IsTrue, qt.Commentf("got %v, want %v", err, target))
}
