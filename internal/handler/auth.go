package handler

import (
	"errors"
	"net/http"

	"github.com/mvasconc/papertrade/internal/auth"
	"github.com/mvasconc/papertrade/internal/domain"
	"github.com/mvasconc/papertrade/internal/service"
)

// AuthHandler handles HTTP requests for account endpoints.
type AuthHandler struct {
	authSvc *service.AuthService
	tokens  *auth.TokenIssuer
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authSvc *service.AuthService, tokens *auth.TokenIssuer) *AuthHandler {
	return &AuthHandler{authSvc: authSvc, tokens: tokens}
}

// signupRequest is the JSON request body for POST /api/signup.
type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginRequest is the JSON request body for POST /api/login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// sessionResponse is the JSON response for signup and login.
type sessionResponse struct {
	Success bool   `json:"success"`
	UserID  string `json:"user_id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Token   string `json:"token"`
}

// Signup handles POST /api/signup.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	user, token, err := h.authSvc.Signup(r.Context(), service.SignupRequest{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		mapAuthError(w, err)
		return
	}

	h.setSessionCookie(w, token)
	WriteJSON(w, http.StatusCreated, sessionResponse{
		Success: true,
		UserID:  user.ID,
		Name:    user.Name,
		Email:   user.Email,
		Token:   token,
	})
}

// Login handles POST /api/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	user, token, err := h.authSvc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		mapAuthError(w, err)
		return
	}

	h.setSessionCookie(w, token)
	WriteJSON(w, http.StatusOK, sessionResponse{
		Success: true,
		UserID:  user.ID,
		Name:    user.Name,
		Email:   user.Email,
		Token:   token,
	})
}

// Logout handles POST /api/logout. Tokens are stateless, so logout just
// expires the session cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.tokens.TTL().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func mapAuthError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
		return
	}

	switch {
	case errors.Is(err, domain.ErrEmailTaken):
		WriteError(w, http.StatusConflict, "email_taken", err.Error())
	case errors.Is(err, domain.ErrInvalidCredentials):
		WriteError(w, http.StatusUnauthorized, "invalid_credentials", err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
