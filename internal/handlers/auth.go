package handlers

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/postboard/apiserver/internal/services"
)

var errInvalidForm = errors.New("invalid form body")

// AuthHandler provides registration, login and user lookup endpoints.
type AuthHandler struct {
	authService *services.AuthService
	logger      *slog.Logger
}

func NewAuthHandler(authService *services.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, logger: logger}
}

// AuthRouter registers the public user and login routes.
func AuthRouter(r chi.Router, authService *services.AuthService, logger *slog.Logger) {
	handler := NewAuthHandler(authService, logger)

	r.Post("/users", handler.Register)
	r.Get("/users/{userID}", handler.GetUser)
	r.Post("/login", handler.Login)
}

// Register creates a user and returns its public fields.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.authService.Register(r.Context(), req.Email, req.Password, req.PhoneNumber)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, user.Public())
}

func (h *AuthHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.authService.GetUser(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, user.Public())
}

// Login accepts OAuth2 password form fields (username holds the email) or a
// JSON body and returns a bearer token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	req, err := parseLoginRequest(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	token, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, token)
}

type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	PhoneNumber string `json:"phone_number"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func parseLoginRequest(w http.ResponseWriter, r *http.Request) (LoginRequest, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req LoginRequest
		if err := decodeJSON(w, r, &req); err != nil {
			return LoginRequest{}, err
		}
		return req, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if strings.HasPrefix(mediaType, "multipart/") {
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
			return LoginRequest{}, errInvalidForm
		}
	} else if err := r.ParseForm(); err != nil {
		return LoginRequest{}, errInvalidForm
	}
	return LoginRequest{
		Email:    r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	}, nil
}
