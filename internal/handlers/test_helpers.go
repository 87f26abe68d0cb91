package handlers

import (
	"context"
	"net/http"

	"github.com/mkessler/hypercloud/internal/auth"
	"github.com/mkessler/hypercloud/internal/models"
	"github.com/mkessler/hypercloud/internal/services"
)

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	RegisterFunc func(ctx context.Context, username, email, password string) error
	VerifyFunc   func(ctx context.Context, username, nonce string) (string, error)
	LoginFunc    func(ctx context.Context, username, password string) (string, error)

	LoggedOut []*models.SessionClaims
}

func (m *MockAuthService) Register(ctx context.Context, username, email, password string) error {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, username, email, password)
	}
	return nil
}

func (m *MockAuthService) Verify(ctx context.Context, username, nonce string) (string, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, username, nonce)
	}
	return "test-token", nil
}

func (m *MockAuthService) Login(ctx context.Context, username, password string) (string, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, username, password)
	}
	return "test-token", nil
}

func (m *MockAuthService) Logout(ctx context.Context, claims *models.SessionClaims) {
	m.LoggedOut = append(m.LoggedOut, claims)
}

// MockUserService implements UserServiceInterface for testing
type MockUserService struct {
	GetAccountFunc    func(ctx context.Context, userID string) (*services.AccountResponse, error)
	UpdateAccountFunc func(ctx context.Context, userID string, profileURL *string) error
	GetProfileFunc    func(ctx context.Context, username string) (*services.ProfileResponse, error)
}

func (m *MockUserService) GetAccount(ctx context.Context, userID string) (*services.AccountResponse, error) {
	if m.GetAccountFunc != nil {
		return m.GetAccountFunc(ctx, userID)
	}
	return &services.AccountResponse{Username: "alice", Email: "alice@example.com"}, nil
}

func (m *MockUserService) UpdateAccount(ctx context.Context, userID string, profileURL *string) error {
	if m.UpdateAccountFunc != nil {
		return m.UpdateAccountFunc(ctx, userID, profileURL)
	}
	return nil
}

func (m *MockUserService) GetProfile(ctx context.Context, username string) (*services.ProfileResponse, error) {
	if m.GetProfileFunc != nil {
		return m.GetProfileFunc(ctx, username)
	}
	return &services.ProfileResponse{Username: username}, nil
}

// WithSession attaches session claims to the request context the way
// the session middleware would
func WithSession(r *http.Request, claims *models.SessionClaims) *http.Request {
	ctx := context.WithValue(r.Context(), auth.SessionContextKey, claims)
	return r.WithContext(ctx)
}
