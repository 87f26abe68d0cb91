package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mkessler/hypercloud/internal/auth"
	"github.com/mkessler/hypercloud/internal/models"
	"github.com/mkessler/hypercloud/internal/services"
	pkghttp "github.com/mkessler/hypercloud/pkg/http"
)

// UserServiceInterface defines the interface for account and profile reads/updates
type UserServiceInterface interface {
	GetAccount(ctx context.Context, userID string) (*services.AccountResponse, error)
	UpdateAccount(ctx context.Context, userID string, profileURL *string) error
	GetProfile(ctx context.Context, username string) (*services.ProfileResponse, error)
}

// UserHandler handles account and public profile HTTP requests
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

// AccountUpdateRequest represents the account patch body. Absent fields
// leave the record untouched.
type AccountUpdateRequest struct {
	ProfileURL *string `json:"profileURL" validate:"omitempty,max=256"`
}

// GetAccount returns the authenticated user's account view
func (h *UserHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	claims := auth.SessionFromContext(r.Context())
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	account, err := h.service.GetAccount(r.Context(), claims.UserID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, account)
}

// UpdateAccount applies an account patch for the authenticated user
func (h *UserHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	claims := auth.SessionFromContext(r.Context())
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req AccountUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if fields := ValidateRequest(req); fields != nil {
		pkghttp.WriteValidationError(w, fields)
		return
	}

	if err := h.service.UpdateAccount(r.Context(), claims.UserID, req.ProfileURL); err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{})
}

// GetProfile returns the public view of a user
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	profile, err := h.service.GetProfile(r.Context(), username)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "User not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, profile)
}
