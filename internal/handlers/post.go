package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/postboard/apiserver/internal/services"
	"github.com/postboard/apiserver/types"
)

// PostHandler provides HTTP handlers for posts. Every route requires auth.
type PostHandler struct {
	postService *services.PostService
	logger      *slog.Logger
}

func NewPostHandler(postService *services.PostService, logger *slog.Logger) *PostHandler {
	return &PostHandler{postService: postService, logger: logger}
}

// PostRouter registers post routes behind authMiddleware.
func PostRouter(r chi.Router, postService *services.PostService, authMiddleware func(http.Handler) http.Handler, logger *slog.Logger) {
	handler := NewPostHandler(postService, logger)

	r.Use(authMiddleware)
	r.Get("/", handler.ListPosts)
	r.Post("/", handler.CreatePost)
	r.Route("/{postID}", func(r chi.Router) {
		r.Get("/", handler.GetPost)
		r.Put("/", handler.UpdatePost)
		r.Delete("/", handler.DeletePost)
	})
}

func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	caller, ok := userFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, services.ErrUnauthorized.Error())
		return
	}

	limit, err := parseOptionalInt(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	skip, err := parseOptionalInt(r, "skip")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	views, err := h.postService.List(r.Context(), caller, types.PostListParams{
		Limit:  limit,
		Offset: skip,
		Search: r.URL.Query().Get("search"),
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, views)
}

func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	caller, ok := userFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, services.ErrUnauthorized.Error())
		return
	}
	id, err := parseIDParam(r, "postID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	view, err := h.postService.Get(r.Context(), caller, id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	caller, ok := userFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, services.ErrUnauthorized.Error())
		return
	}
	var req PostRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	post, err := h.postService.Create(r.Context(), caller, req.fields())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, postResponse(post, caller))
}

func (h *PostHandler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	caller, ok := userFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, services.ErrUnauthorized.Error())
		return
	}
	id, err := parseIDParam(r, "postID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req PostRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	post, err := h.postService.Update(r.Context(), caller, id, req.fields())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, postResponse(post, caller))
}

func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	caller, ok := userFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, services.ErrUnauthorized.Error())
		return
	}
	id, err := parseIDParam(r, "postID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.postService.Delete(r.Context(), caller, id); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// PostRequest is the create and update payload. Published defaults to true.
type PostRequest struct {
	Title     string `json:"title"`
	Content   string `json:"content"`
	Published *bool  `json:"published"`
}

func (req PostRequest) fields() types.PostFields {
	published := true
	if req.Published != nil {
		published = *req.Published
	}
	return types.PostFields{
		Title:     req.Title,
		Content:   req.Content,
		Published: published,
	}
}

// postResponse embeds the owner; the caller owns every post it may mutate.
func postResponse(post types.Post, owner types.User) types.PostResponse {
	return types.PostResponse{
		Post: post,
		Owner: types.Owner{
			ID:        owner.ID,
			Email:     owner.Email,
			CreatedAt: owner.CreatedAt,
		},
	}
}
