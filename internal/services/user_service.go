package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mkessler/hypercloud/internal/models"
	pkglogger "github.com/mkessler/hypercloud/pkg/logger"
)

// ProofGenerator defines the interface for profile ownership proofs
type ProofGenerator interface {
	Generate(user *models.User) (string, error)
}

// UserService handles account reads and updates for authenticated
// sessions, plus the public profile lookup.
type UserService struct {
	repo        UserRepository
	proofs      ProofGenerator
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewUserService creates a new UserService
func NewUserService(repo UserRepository, proofs ProofGenerator, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *UserService {
	return &UserService{
		repo:        repo,
		proofs:      proofs,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// AccountResponse is the authenticated account view
type AccountResponse struct {
	Username           string  `json:"username"`
	Email              string  `json:"email"`
	ProfileURL         *string `json:"profileURL"`
	ProfileVerifyToken *string `json:"profileVerifyToken"`
}

// ProfileResponse is the public view of a user
type ProfileResponse struct {
	Username  string `json:"username"`
	CreatedAt string `json:"createdAt"`
}

// GetAccount returns the account view for the session's subject.
func (s *UserService) GetAccount(ctx context.Context, userID string) (*AccountResponse, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// A valid session pointing at a missing record is a server
			// fault, not a caller error
			s.logger.Error("session user record not found", slog.String("user_id", userID))
			return nil, models.ErrInternalServer
		}
		s.logger.Error("failed to get user", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return &AccountResponse{
		Username:           user.Username,
		Email:              user.Email,
		ProfileURL:         user.ProfileURL,
		ProfileVerifyToken: user.ProfileVerifyToken,
	}, nil
}

// UpdateAccount applies an account patch. A changed profile reference
// regenerates the ownership proof and marks profile verification as
// pending; the record is persisted unconditionally either way.
func (s *UserService) UpdateAccount(ctx context.Context, userID string, profileURL *string) error {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Error("session user record not found", slog.String("user_id", userID))
			return models.ErrInternalServer
		}
		s.logger.Error("failed to get user", slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if profileURL != nil && (user.ProfileURL == nil || *profileURL != *user.ProfileURL) {
		user.ProfileURL = profileURL
		token, err := s.proofs.Generate(user)
		if err != nil {
			s.logger.Error("failed to generate profile proof",
				slog.String("user_id", userID), slog.Any("error", err))
			return models.ErrInternalServer
		}
		user.ProfileVerifyToken = &token
		user.IsProfileDatVerified = false
	}

	if _, err := s.repo.Put(ctx, user); err != nil {
		s.logger.Error("failed to update user", slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.auditLogger.LogAccountAction("account_updated", userID, nil)
	return nil
}

// GetProfile returns the public view of a user by username.
func (s *UserService) GetProfile(ctx context.Context, username string) (*ProfileResponse, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get user", slog.String("username", username), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return &ProfileResponse{
		Username:  user.Username,
		CreatedAt: user.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}, nil
}
