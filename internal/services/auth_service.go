package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/mkessler/hypercloud/internal/auth"
	"github.com/mkessler/hypercloud/internal/lock"
	"github.com/mkessler/hypercloud/internal/models"
	pkgauth "github.com/mkessler/hypercloud/pkg/auth"
	pkglogger "github.com/mkessler/hypercloud/pkg/logger"
)

// UserRepository defines the interface for user directory access
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	IsUsernameTaken(ctx context.Context, username string) (bool, error)
	IsEmailTaken(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	Put(ctx context.Context, user *models.User) (*models.User, error)
}

// RegistrationPolicy is the registration gate. When Open is false only
// allow-listed emails may register.
type RegistrationPolicy struct {
	Open    bool
	Allowed []string
}

// IsAllowed reports whether the email may register under this policy.
func (p RegistrationPolicy) IsAllowed(email string) bool {
	if p.Open {
		return true
	}
	for _, allowed := range p.Allowed {
		if strings.EqualFold(allowed, email) {
			return true
		}
	}
	return false
}

// AuthService orchestrates the registration, verification, and login
// flows. Expensive credential work always happens before any lock is
// held, and every lock acquisition is released on all exit paths.
type AuthService struct {
	repo        UserRepository
	locks       *lock.Manager
	sessions    *auth.SessionManager
	mailer      Mailer
	timingDelay *auth.TimingDelay
	policy      RegistrationPolicy
	hostname    string
	env         string
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewAuthService creates a new AuthService
func NewAuthService(
	repo UserRepository,
	locks *lock.Manager,
	sessions *auth.SessionManager,
	mailer Mailer,
	timingDelay *auth.TimingDelay,
	policy RegistrationPolicy,
	hostname string,
	env string,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *AuthService {
	return &AuthService{
		repo:        repo,
		locks:       locks,
		sessions:    sessions,
		mailer:      mailer,
		timingDelay: timingDelay,
		policy:      policy,
		hostname:    hostname,
		env:         env,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// usernameLockKey and emailLockKey name the logical resources the lock
// manager serializes on.
func usernameLockKey(username string) string { return "username:" + username }
func emailLockKey(email string) string       { return "email:" + email }

// Register creates a new unverified user account. On success the
// account cannot log in until the emailed nonce is redeemed.
func (s *AuthService) Register(ctx context.Context, username, email, password string) error {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	// Registration gate comes before any expensive work or locking
	if !s.policy.IsAllowed(email) {
		s.logger.Info("registration blocked: email not whitelisted")
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "register",
			Username:      username,
			FailureReason: "email_not_whitelisted",
			Success:       false,
		})
		return models.ErrEmailNotWhitelisted
	}

	// Nonce and password hash are CPU-bound; do them outside the locks
	nonce, err := pkgauth.GenerateNonce()
	if err != nil {
		s.logger.Error("failed to generate verification nonce", slog.Any("error", err))
		return models.ErrInternalServer
	}

	hash, salt, err := pkgauth.HashPassword(password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	created, err := s.createUnverifiedUser(ctx, username, email, hash, salt, nonce)
	if err != nil {
		return err
	}

	// Both locks are released before the notification goes out
	s.dispatchVerificationEmail(ctx, created, nonce)

	s.logger.Info("user registered",
		slog.String("user_id", created.ID),
		slog.String("username", created.Username))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "register",
		UserID:    created.ID,
		Username:  created.Username,
		Success:   true,
	})

	return nil
}

// createUnverifiedUser runs the check-then-create sequence. The
// directory has no uniqueness constraint, so the availability checks
// and the create must be one critical section over both keys.
// AcquireMany sorts the keys, so no pair of registrations can
// deadlock, and the deferred release covers every exit path.
func (s *AuthService) createUnverifiedUser(ctx context.Context, username, email, hash, salt, nonce string) (*models.User, error) {
	handles := s.locks.AcquireMany(usernameLockKey(username), emailLockKey(email))
	defer lock.ReleaseAll(handles)

	emailTaken, err := s.repo.IsEmailTaken(ctx, email)
	if err != nil {
		s.logger.Error("failed to check email availability", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if emailTaken {
		s.logger.Info("registration failed: email taken")
		return nil, models.ErrEmailNotAvailable
	}

	usernameTaken, err := s.repo.IsUsernameTaken(ctx, username)
	if err != nil {
		s.logger.Error("failed to check username availability", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if usernameTaken {
		s.logger.Info("registration failed: username taken",
			slog.String("username", username))
		return nil, models.ErrUsernameNotAvailable
	}

	user := &models.User{
		Username:               username,
		Email:                  email,
		PasswordHash:           hash,
		PasswordSalt:           salt,
		EmailVerificationNonce: &nonce,
		IsEmailVerified:        false,
		Scopes:                 []string{},
	}

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		s.logger.Error("failed to create user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return created, nil
}

// dispatchVerificationEmail is fire-and-forget: delivery failure is
// logged but never fails the registration, and there is no retry or
// durable outbox. An operator can re-trigger delivery manually.
func (s *AuthService) dispatchVerificationEmail(ctx context.Context, user *models.User, nonce string) {
	link := s.verificationLink(user.Username, nonce)

	if err := s.mailer.SendVerification(ctx, user.Email, user.Username, nonce, link); err != nil {
		s.logger.Error("failed to send verification email",
			slog.String("user_id", user.ID),
			slog.String("email", pkglogger.SanitizedEmail(user.Email)),
			slog.Any("error", err))
	}

	if s.env == "development" {
		s.logger.Info("verification link",
			slog.String("username", user.Username),
			slog.String("link", link))
	}
}

func (s *AuthService) verificationLink(username, nonce string) string {
	qs := url.Values{}
	qs.Set("username", username)
	qs.Set("nonce", nonce)
	return fmt.Sprintf("https://%s/v1/verify?%s", s.hostname, qs.Encode())
}

// Verify redeems an email verification nonce. On success the nonce is
// permanently cleared, the account gains the "user" scope, and a fresh
// session token is issued.
func (s *AuthService) Verify(ctx context.Context, username, nonce string) (string, error) {
	username = strings.TrimSpace(username)

	updated, err := s.consumeNonce(ctx, username, nonce)
	if err != nil {
		return "", err
	}

	// Token issuance is pure and needs no lock
	token, err := s.sessions.Generate(updated.ID, updated.Username, updated.Scopes)
	if err != nil {
		s.logger.Error("failed to generate session token",
			slog.String("user_id", updated.ID), slog.Any("error", err))
		return "", models.ErrInternalServer
	}

	s.logger.Info("email verified", slog.String("user_id", updated.ID))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "verify",
		UserID:    updated.ID,
		Username:  updated.Username,
		Success:   true,
	})

	return token, nil
}

// consumeNonce is the lock-protected portion of verification. Nonce
// comparison and clearing is a check-then-act on the record, so it is
// serialized on the username key.
func (s *AuthService) consumeNonce(ctx context.Context, username, nonce string) (*models.User, error) {
	handle := s.locks.Acquire(usernameLockKey(username))
	defer handle.Release()

	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
				EventType:     "verify",
				Username:      username,
				FailureReason: "invalid_username",
				Success:       false,
			})
			return nil, models.ErrInvalidUsername
		}
		s.logger.Error("failed to get user for verification", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	// A consumed nonce is nil and never matches again; verification is
	// not repeatable.
	if user.EmailVerificationNonce == nil || !pkgauth.ConstantTimeEquals(nonce, *user.EmailVerificationNonce) {
		s.logger.Info("verification failed: nonce mismatch", slog.String("user_id", user.ID))
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "verify",
			UserID:        user.ID,
			Username:      username,
			FailureReason: "invalid_nonce",
			Success:       false,
		})
		return nil, models.ErrInvalidNonce
	}

	user.EmailVerificationNonce = nil
	user.IsEmailVerified = true
	user.Scopes = models.AddScope(user.Scopes, models.ScopeUser)

	updated, err := s.repo.Put(ctx, user)
	if err != nil {
		s.logger.Error("failed to update user after verification",
			slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return updated, nil
}

// Login checks credentials and issues a session token. No locking: a
// pure read followed by a stateless check. Whether the username is
// unknown, the email is unverified, or the password is wrong, the
// caller sees the identical ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	username = strings.TrimSpace(username)

	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.Error("failed to get user for login", slog.Any("error", err))
			return "", models.ErrInternalServer
		}
		return "", s.failLogin(username, "")
	}

	if !user.IsEmailVerified {
		return "", s.failLogin(username, user.ID)
	}

	if !pkgauth.VerifyPassword(password, user.PasswordHash, user.PasswordSalt) {
		return "", s.failLogin(username, user.ID)
	}

	token, err := s.sessions.Generate(user.ID, user.Username, user.Scopes)
	if err != nil {
		s.logger.Error("failed to generate session token",
			slog.String("user_id", user.ID), slog.Any("error", err))
		return "", models.ErrInternalServer
	}

	s.timingDelay.Wait(true)
	s.logger.Info("user logged in", slog.String("user_id", user.ID))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login",
		UserID:    user.ID,
		Username:  user.Username,
		Success:   true,
	})

	return token, nil
}

// failLogin pads the response time and records a single, generic
// failure. The audit log keeps the cause; the caller never learns it.
func (s *AuthService) failLogin(username, userID string) error {
	s.timingDelay.Wait(false)
	s.logger.Info("login failed: invalid credentials")
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:     "login",
		UserID:        userID,
		Username:      username,
		FailureReason: "invalid_credentials",
		Success:       false,
	})
	return models.ErrInvalidCredentials
}

// Logout records the logout. Session tokens are stateless and carry no
// revocation list: the caller is told to discard its cookie and the
// token simply ages out.
func (s *AuthService) Logout(ctx context.Context, claims *models.SessionClaims) {
	if claims == nil {
		return
	}
	s.logger.Info("user logged out", slog.String("user_id", claims.UserID))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "logout",
		UserID:    claims.UserID,
		Username:  claims.Username,
		Success:   true,
	})
}
