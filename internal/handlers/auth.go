package handlers

import (
	"net/http"
	"time"

	"chat-backend/internal/middleware"
	"chat-backend/internal/models"
	"chat-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// AuthResponse is returned on signup and login. The token is also set as a cookie.
type AuthResponse struct {
	*models.User
	Token string `json:"token"`
}

// AuthHandler handles account and session HTTP requests
type AuthHandler struct {
	userService  *services.UserService
	secureCookie bool
}

// NewAuthHandler creates a new auth handler. secureCookie marks the session cookie HTTPS-only.
func NewAuthHandler(userService *services.UserService, secureCookie bool) *AuthHandler {
	return &AuthHandler{
		userService:  userService,
		secureCookie: secureCookie,
	}
}

// Signup handles POST /api/auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req services.SignupInput
	if err := decodeBody(r, &req); err != nil {
		respondServiceError(w, err, nil)
		return
	}

	user, token, err := h.userService.Signup(r.Context(), req)
	if err != nil {
		respondServiceError(w, err, nil)
		return
	}

	log.Info().Str("user_id", user.ID).Msg("User created")

	h.setSessionCookie(w, token, h.userService.TokenTTL())
	respondJSON(w, http.StatusCreated, AuthResponse{User: user, Token: token})
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req services.LoginInput
	if err := decodeBody(r, &req); err != nil {
		respondServiceError(w, err, nil)
		return
	}

	user, token, err := h.userService.Login(r.Context(), req)
	if err != nil {
		respondServiceError(w, err, nil)
		return
	}

	h.setSessionCookie(w, token, h.userService.TokenTTL())
	respondJSON(w, http.StatusOK, AuthResponse{User: user, Token: token})
}

// Logout handles POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.setSessionCookie(w, "", -1)
	respondJSON(w, http.StatusOK, MessageResponse{Message: "Logged out successfully"})
}

// Check handles GET /api/auth/check
func (h *AuthHandler) Check(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	user, err := h.userService.GetUser(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err, withUser(userID))
		return
	}

	respondJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	maxAge := int(ttl.Seconds())
	if ttl < 0 {
		maxAge = -1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AuthCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})
}
