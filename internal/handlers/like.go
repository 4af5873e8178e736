package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/postboard/apiserver/internal/services"
	"github.com/postboard/apiserver/types"
)

const (
	msgLikeAdded   = "Successfully added like"
	msgLikeRemoved = "Successfully removed like"
)

// LikeHandler applies like toggles for the authenticated caller.
type LikeHandler struct {
	likeService *services.LikeService
	logger      *slog.Logger
}

func NewLikeHandler(likeService *services.LikeService, logger *slog.Logger) *LikeHandler {
	return &LikeHandler{likeService: likeService, logger: logger}
}

// LikeRouter registers the like route behind authMiddleware.
func LikeRouter(r chi.Router, likeService *services.LikeService, authMiddleware func(http.Handler) http.Handler, logger *slog.Logger) {
	handler := NewLikeHandler(likeService, logger)
	r.With(authMiddleware).Post("/", handler.Toggle)
}

func (h *LikeHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	caller, ok := userFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, services.ErrUnauthorized.Error())
		return
	}
	var req LikeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.PostID < 1 || req.Dir == nil {
		writeError(w, http.StatusUnprocessableEntity, "post_id and dir are required")
		return
	}

	dir := types.LikeDirection(*req.Dir)
	if err := h.likeService.Toggle(r.Context(), caller, req.PostID, dir); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	message := msgLikeAdded
	if dir == types.DirectionUnlike {
		message = msgLikeRemoved
	}
	writeJSON(w, http.StatusCreated, MessageResponse{Message: message})
}

type LikeRequest struct {
	PostID int  `json:"post_id"`
	Dir    *int `json:"dir"`
}
