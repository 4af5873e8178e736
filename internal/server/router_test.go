package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/postboard/apiserver/internal/auth"
	"github.com/postboard/apiserver/internal/handlers"
	"github.com/postboard/apiserver/internal/services"
	"github.com/postboard/apiserver/internal/store/memstore"
	"github.com/postboard/apiserver/types"
)

type testAPI struct {
	server *httptest.Server
	store  *memstore.Store
}

func newTestAPI(c *qt.C) *testAPI {
	c.Helper()
	st := memstore.New()
	tokens, err := auth.NewTokenService(auth.TokenConfig{Secret: []byte("router-secret"), Algorithm: "HS256", TTL: time.Hour})
	c.Assert(err, qt.IsNil)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts := []services.Option{services.WithLogger(logger)}

	router := NewRouter(Deps{
		Auth:  services.NewAuthService(st, st.Users(), auth.NewBcryptHasher(4), tokens, opts...),
		Posts: services.NewPostService(st, st.Posts(), opts...),
		Likes: services.NewLikeService(st, st.Posts(), st.Likes(), opts...),
		Health: map[string]handlers.Pinger{
			"database": handlers.PingFunc(func(context.Context) error { return nil }),
		},
		Logger: logger,
	})
	srv := httptest.NewServer(router)
	c.Cleanup(srv.Close)
	return &testAPI{server: srv, store: st}
}

func (a *testAPI) do(c *qt.C, method, path, token string, body any) (*http.Response, []byte) {
	c.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		c.Assert(err, qt.IsNil)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, a.server.URL+path, reader)
	c.Assert(err, qt.IsNil)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	c.Assert(err, qt.IsNil)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	c.Assert(err, qt.IsNil)
	return resp, data
}

func (a *testAPI) register(c *qt.C, email string) types.UserResponse {
	c.Helper()
	resp, body := a.do(c, http.MethodPost, "/users", "", map[string]string{
		"email": email, "password": "pw", "phone_number": "1234567890",
	})
	c.Assert(resp.StatusCode, qt.Equals, http.StatusCreated, qt.Commentf("%s", body))
	var user types.UserResponse
	c.Assert(json.Unmarshal(body, &user), qt.IsNil)
	return user
}

func (a *testAPI) login(c *qt.C, email string) string {
	c.Helper()
	form := url.Values{"username": {email}, "password": {"pw"}}
	resp, err := http.Post(a.server.URL+"/login", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	c.Assert(err, qt.IsNil)
	defer resp.Body.Close()
	c.Assert(resp.StatusCode, qt.Equals, http.StatusOK)

	var token types.AccessToken
	c.Assert(json.NewDecoder(resp.Body).Decode(&token), qt.IsNil)
	c.Assert(token.TokenType, qt.Equals, "bearer")
	return token.AccessToken
}

func TestEndToEndScenario(t *testing.T) {
	c := qt.New(t)
	api := newTestAPI(c)

	u := api.register(c, "a@x.com")
	c.Assert(u.Email, qt.Equals, "a@x.com")
	uToken := api.login(c, "a@x.com")

	resp, body := api.do(c, http.MethodPost, "/posts", uToken, map[string]string{"title": "T", "content": "C"})
	c.Assert(resp.StatusCode, qt.Equals, http.StatusCreated, qt.Commentf("%s", body))
	var created types.PostResponse
	c.Assert(json.Unmarshal(body, &created), qt.IsNil)
	c.Assert(created.Published, qt.IsTrue)
	c.Assert(created.Owner.ID, qt.Equals, u.ID)

	resp, body = api.do(c, http.MethodGet, "/posts", uToken, nil)
	c.Assert(resp.StatusCode, qt.Equals, http.StatusOK)
	var views []types.PostView
	c.Assert(json.Unmarshal(body, &views), qt.IsNil)
	c.Assert(views, qt.HasLen, 1)
	c.Assert(views[0].Likes, qt.Equals, 0)

	api.register(c, "v@x.com")
	vToken := api.login(c, "v@x.com")

	resp, body = api.do(c, http.MethodPost, "/like", vToken, map[string]int{"post_id": created.ID, "dir": 1})
	c.Assert(resp.StatusCode, qt.Equals, http.StatusCreated, qt.Commentf("%s", body))
	c.Assert(string(body), qt.Contains, "Successfully added like")

	resp, body = api.do(c, http.MethodGet, "/posts/"+itoa(created.ID), vToken, nil)
	c.Assert(resp.StatusCode, qt.Equals, http.StatusOK)
	var view types.PostView
	c.Assert(json.Unmarshal(body, &view), qt.IsNil)
	c.Assert(view.Likes, qt.Equals, 1)
	c.Assert(view.Post.Owner.Email, qt.Equals, "a@x.com")
}

func TestRegisterAndLoginErrors(t *testing.T) {
	c := qt.New(t)
	api := newTestAPI(c)
	api.register(c, "a@x.com")

	resp, _ := api.do(c, http.MethodPost, "/users", "", map[string]string{
		"email": "a@x.com", "password": "pw", "phone_number": "1",
	})
	c.Assert(resp.StatusCode, qt.Equals, http.StatusConflict)

	resp, _ = api.do(c, http.MethodPost, "/users", "", map[string]string{"email": "bad", "password": "pw", "phone_number": "1"})
	c.Assert(resp.StatusCode, qt.Equals, http.StatusUnprocessableEntity)

	resp, body := api.do(c, http.MethodPost, "/login", "", map[string]string{"email": "a@x.com", "password": "wrong"})
	c.Assert(resp.StatusCode, qt.Equals, http.StatusUnauthorized)
	c.Assert(resp.Header.Get("WWW-Authenticate"), qt.Equals, "Bearer")
	wrongPassword := string(body)

	resp, body = api.do(c, http.MethodPost, "/login", "", map[string]string{"email": "nobody@x.com", "password": "pw"})
	c.Assert(resp.StatusCode, qt.Equals, http.StatusUnauthorized)
	c.Assert(string(body), qt.Equals, wrongPassword)

	resp, body = api.do(c, http.MethodPost, "/login", "", map[string]string{"email": "a@x.com", "password": "pw"})
	c.Assert(resp.StatusCode, qt.Equals, http.StatusOK, qt.Commentf("%s", body))
}

func TestGetUser(t *testing.T) {
	c := qt.New(t)
	api := newTestAPI(c)
	u := api.register(c, "a@x.com")

	resp, body := api.do(c, http.MethodGet, "/users/"+itoa(u.ID), "", nil)
	c.Assert(resp.StatusCode, qt.Equals, http.StatusOK)
	c.Assert(string(body), qt.Not(qt.Contains), "password")

	resp, _ = api.do(c, http.MethodGet, "/users/999", "", nil)
	c.Assert(resp.StatusCode, qt.Equals, http.StatusNotFound)

	resp, _ = api.do(c, http.MethodGet, "/users/abc", "", nil)
	c.Assert(resp.StatusCode, qt.Equals, http.StatusBadRequest)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	c := qt.New(t)
	api := newTestAPI(c)

	tests := []struct {
		method string
		path   string
		token  string
	}{
		{method: http.MethodGet, path: "/posts"},
		{method: http.MethodPost, path: "/posts"},
		{method: http.MethodGet, path: "/posts/1", token: "garbage"},
		{method: http.MethodDelete, path: "/posts/1"},
		{method: http.MethodPost, path: "/like", token: "a.b.c"},
	}

	for _, tt := range tests {
		c.Run(tt.method+" "+tt.path, func(c *qt.C) {
			resp, _ := api.do(c, tt.method, tt.path, tt.token, nil)
			c.Assert(resp.StatusCode, qt.Equals, http.StatusUnauthorized)
			c.Assert(resp.Header.Get("WWW-Authenticate"), qt.Equals, "Bearer")
		})
	}
}

func TestDeletedUserTokenIsRejected(t *testing.T) {
	c := qt.New(t)
	api := newTestAPI(c)
	u := api.register(c, "a@x.com")
	token := api.login(c, "a@x.com")

	c.Assert(api.store.Users().Delete(context.Background(), u.ID), qt.IsNil)

	resp, _ := api.do(c, http.MethodGet, "/posts", token, nil)
	c.Assert(resp.StatusCode, qt.Equals, http.StatusUnauthorized)
}

func TestPostOwnershipOverHTTP(t *testing.T) {
	c := qt.New(t)
	api := newTestAPI(c)
	api.register(c, "a@x.com")
	api.register(c, "b@x.com")
	aToken := api.login(c, "a@x.com")
	bToken := api.login(c, "b@x.com")

	resp, body := api.do(c, http.MethodPost, "/posts", aToken, map[string]any{"title": "T", "content": "C", "published": false})
	c.Assert(resp.StatusCode, qt.Equals, http.StatusCreated)
	var post types.PostResponse
	c.Assert(json.Unmarshal(body, &post), qt.IsNil)
	c.Assert(post.Published, qt.IsFalse)
	path := "/posts/" + itoa(post.ID)

	resp, _ = api.do(c, http.MethodPut, path, bToken, map[string]string{"title": "X", "content": "Y"})
	c.Assert(resp.StatusCode, qt.Equals, http.StatusForbidden)
	resp, _ = api.do(c, http.MethodDelete, path, bToken, nil)
	c.Assert(resp.StatusCode, qt.Equals, http.StatusForbidden)

	resp, body = api.do(c, http.MethodPut, path, aToken, map[string]string{"title": "T2", "content": "C2"})
	c.Assert(resp.StatusCode, qt.Equals, http.StatusOK)
	var updated types.PostResponse
	c.Assert(json.Unmarshal(body, &updated), qt.IsNil)
	c.Assert(updated.Title, qt.Equals, "T2")
	c.Assert(updated.Published, qt.IsTrue)

	resp, _ = api.do(c, http.MethodDelete, path, aToken, nil)
	c.Assert(resp.StatusCode, qt.Equals, http.StatusNoContent)
	resp, _ = api.do(c, http.MethodGet, path, aToken, nil)
	c.Assert(resp.StatusCode, qt.Equals, http.StatusNotFound)
	resp, _ = api.do(c, http.MethodGet, "/posts", aToken, nil)
	c.Assert(resp.StatusCode, qt.Equals, http.StatusNotFound)
}

func TestListQueryParams(t *testing.T) {
	c := qt.New(t)
	api := newTestAPI(c)
	api.register(c, "a@x.com")
	token := api.login(c, "a@x.com")
	for _, title := range []string{"first", "second", "third"} {
		resp, _ := api.do(c, http.MethodPost, "/posts", token, map[string]string{"title": title, "content": "c"})
		c.Assert(resp.StatusCode, qt.Equals, http.StatusCreated)
	}

	resp, body := api.do(c, http.MethodGet, "/posts?limit=1&skip=1", token, nil)
	c.Assert(resp.StatusCode, qt.Equals, http.StatusOK)
	var views []types.PostView
	c.Assert(json.Unmarshal(body, &views), qt.IsNil)
	c.Assert(views, qt.HasLen, 1)
	c.Assert(views[0].Post.Title, qt.Equals, "second")

	resp, body = api.do(c, http.MethodGet, "/posts?search=THIRD", token, nil)
	c.Assert(resp.StatusCode, qt.Equals, http.StatusOK)
	c.Assert(json.Unmarshal(body, &views), qt.IsNil)
	c.Assert(views, qt.HasLen, 1)

	resp, _ = api.do(c, http.MethodGet, "/posts?limit=abc", token, nil)
	c.Assert(resp.StatusCode, qt.Equals, http.StatusBadRequest)
}

func TestLikeToggleOverHTTP(t *testing.T) {
	c := qt.New(t)
	api := newTestAPI(c)
	api.register(c, "a@x.com")
	token := api.login(c, "a@x.com")
	resp, body := api.do(c, http.MethodPost, "/posts", token, map[string]string{"title": "T", "content": "C"})
	c.Assert(resp.StatusCode, qt.Equals, http.StatusCreated)
	var post types.PostResponse
	c.Assert(json.Unmarshal(body, &post), qt.IsNil)

	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantBody   string
	}{
		{name: "unlike without like", body: map[string]int{"post_id": post.ID, "dir": 0}, wantStatus: http.StatusNotFound, wantBody: "like does not exist"},
		{name: "like", body: map[string]int{"post_id": post.ID, "dir": 1}, wantStatus: http.StatusCreated, wantBody: "Successfully added like"},
		{name: "like again", body: map[string]int{"post_id": post.ID, "dir": 1}, wantStatus: http.StatusConflict, wantBody: "already liked"},
		{name: "unlike", body: map[string]int{"post_id": post.ID, "dir": 0}, wantStatus: http.StatusCreated, wantBody: "Successfully removed like"},
		{name: "bad dir", body: map[string]int{"post_id": post.ID, "dir": 5}, wantStatus: http.StatusUnprocessableEntity, wantBody: "dir must be 0 or 1"},
		{name: "missing dir", body: map[string]int{"post_id": post.ID}, wantStatus: http.StatusUnprocessableEntity, wantBody: "required"},
		{name: "unknown post", body: map[string]int{"post_id": post.ID + 1, "dir": 1}, wantStatus: http.StatusNotFound, wantBody: "post with id"},
	}

	for _, tt := range tests {
		resp, body := api.do(c, http.MethodPost, "/like", token, tt.body)
		c.Assert(resp.StatusCode, qt.Equals, tt.wantStatus, qt.Commentf("%s: %s", tt.name, body))
		c.Assert(string(body), qt.Contains, tt.wantBody, qt.Commentf("%s", tt.name))
	}
}

func TestHealthz(t *testing.T) {
	c := qt.New(t)

	ok := NewRouter(Deps{Health: map[string]handlers.Pinger{
		"database": handlers.PingFunc(func(context.Context) error { return nil }),
	}})
	rec := httptest.NewRecorder()
	ok.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	c.Assert(rec.Code, qt.Equals, http.StatusOK)
	c.Assert(rec.Body.String(), qt.Contains, `"status":"ok"`)

	down := NewRouter(Deps{Health: map[string]handlers.Pinger{
		"database": handlers.PingFunc(func(context.Context) error { return errors.New("refused") }),
	}})
	rec = httptest.NewRecorder()
	down.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	c.Assert(rec.Code, qt.Equals, http.StatusServiceUnavailable)
	c.Assert(rec.Body.String(), qt.Contains, "refused")
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
