package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/mkessler/hypercloud/internal/auth"
	"github.com/mkessler/hypercloud/internal/models"
	pkghttp "github.com/mkessler/hypercloud/pkg/http"
)

// AuthServiceInterface defines the interface for account lifecycle logic
type AuthServiceInterface interface {
	Register(ctx context.Context, username, email, password string) error
	Verify(ctx context.Context, username, nonce string) (string, error)
	Login(ctx context.Context, username, password string) (string, error)
	Logout(ctx context.Context, claims *models.SessionClaims)
}

// AuthHandler handles registration, verification, and session HTTP requests
type AuthHandler struct {
	service AuthServiceInterface
	cookies auth.CookieConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, cookies auth.CookieConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		cookies: cookies,
	}
}

// Request DTOs

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	Username string `json:"username" validate:"required,alphanum,min=3,max=16"`
	Email    string `json:"email" validate:"required,email,max=100"`
	Password string `json:"password" validate:"required,min=6,max=100"`
}

// VerifyRequest represents the verification parameters, accepted as a
// JSON body or as query parameters on a GET (the emailed link)
type VerifyRequest struct {
	Username string `json:"username" validate:"required,alphanum,min=3,max=16"`
	Nonce    string `json:"nonce" validate:"required,len=64,hexadecimal"`
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// SessionResponse carries a freshly issued session token. The same
// token also travels back as the sess cookie.
type SessionResponse struct {
	Message      string `json:"message"`
	SessionToken string `json:"sessionToken"`
}

// Register handles new account registration
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)

	if fields := ValidateRequest(req); fields != nil {
		pkghttp.WriteValidationError(w, fields)
		return
	}

	err := h.service.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrEmailNotWhitelisted):
			pkghttp.WriteError(w, http.StatusForbidden, "email_not_whitelisted",
				"Registration is closed. This email is not on the allow list.")
		case errors.Is(err, models.ErrEmailNotAvailable):
			pkghttp.WriteError(w, http.StatusConflict, "email_not_available",
				"This email is already registered.")
		case errors.Is(err, models.ErrUsernameNotAvailable):
			pkghttp.WriteError(w, http.StatusConflict, "username_not_available",
				"This username is already taken.")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, map[string]string{
		"message": "Registration received. Check your email for a verification link.",
	})
}

// Verify redeems a verification nonce and starts a session. Reached by
// the emailed GET link or by a POSTed JSON body.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeVerifyRequest(w, r)
	if !ok {
		return
	}

	if fields := ValidateRequest(req); fields != nil {
		pkghttp.WriteValidationError(w, fields)
		return
	}

	token, err := h.service.Verify(r.Context(), req.Username, req.Nonce)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidUsername):
			pkghttp.WriteError(w, http.StatusUnprocessableEntity, "invalid_username",
				"No account found for this username.")
		case errors.Is(err, models.ErrInvalidNonce):
			pkghttp.WriteError(w, http.StatusUnprocessableEntity, "invalid_nonce",
				"Invalid or already used verification code.")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	auth.SetSessionCookie(w, token, h.cookies)
	pkghttp.WriteJSON(w, http.StatusOK, SessionResponse{
		Message:      "Email verified.",
		SessionToken: token,
	})
}

func (h *AuthHandler) decodeVerifyRequest(w http.ResponseWriter, r *http.Request) (VerifyRequest, bool) {
	var req VerifyRequest

	if r.Method == http.MethodGet {
		qs := r.URL.Query()
		req.Username = qs.Get("username")
		req.Nonce = qs.Get("nonce")
		return req, true
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return req, false
	}
	req.Username = strings.TrimSpace(req.Username)
	return req, true
}

// Login handles credential login. Every failure cause maps to the same
// response so callers cannot probe which usernames exist.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if fields := ValidateRequest(req); fields != nil {
		pkghttp.WriteValidationError(w, fields)
		return
	}

	token, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, models.ErrInvalidCredentials) {
			pkghttp.WriteError(w, http.StatusUnauthorized, "invalid_credentials",
				"Invalid username or password.")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	auth.SetSessionCookie(w, token, h.cookies)
	pkghttp.WriteJSON(w, http.StatusOK, SessionResponse{
		Message:      "Logged in.",
		SessionToken: token,
	})
}

// Logout clears the session cookie. The token is stateless, so this is
// purely a client-side discard plus an audit record.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.service.Logout(r.Context(), auth.SessionFromContext(r.Context()))

	auth.ClearSessionCookie(w, h.cookies)
	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Logged out.",
	})
}
