package services

import (
	"context"
	"encoding/hex"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkessler/hypercloud/internal/auth"
	"github.com/mkessler/hypercloud/internal/lock"
	"github.com/mkessler/hypercloud/internal/models"
	pkgauth "github.com/mkessler/hypercloud/pkg/auth"
	pkglogger "github.com/mkessler/hypercloud/pkg/logger"
)

type authFixture struct {
	service  *AuthService
	repo     UserRepository
	sessions *auth.SessionManager
	mailer   *MockMailer
}

func newAuthFixture(repo UserRepository, policy RegistrationPolicy) *authFixture {
	sessions := auth.NewSessionManager("test-secret-at-least-32-chars-long!", time.Hour)
	mailer := &MockMailer{}
	logger := testLogger()

	service := NewAuthService(
		repo,
		lock.NewManager(),
		sessions,
		mailer,
		auth.NewTimingDelay(auth.TimingConfig{}),
		policy,
		"test.local",
		"test",
		logger,
		pkglogger.NewAuditLogger(logger),
	)

	return &authFixture{service: service, repo: repo, sessions: sessions, mailer: mailer}
}

func openRegistration() RegistrationPolicy {
	return RegistrationPolicy{Open: true}
}

func TestAuthService_Register_Success(t *testing.T) {
	repo := NewInMemoryUserRepository()
	f := newAuthFixture(repo, openRegistration())

	err := f.service.Register(context.Background(), "alice", "alice@example.com", "secret1")
	require.NoError(t, err)

	user, err := repo.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.False(t, user.IsEmailVerified)
	assert.Empty(t, user.Scopes)
	assert.NotEmpty(t, user.PasswordHash)
	assert.NotEmpty(t, user.PasswordSalt)

	// Nonce is exactly 64 hex characters
	require.NotNil(t, user.EmailVerificationNonce)
	assert.Len(t, *user.EmailVerificationNonce, 64)
	_, err = hex.DecodeString(*user.EmailVerificationNonce)
	assert.NoError(t, err)

	// Notification carried the nonce and a derived link
	sent := f.mailer.LastSent()
	require.NotNil(t, sent)
	assert.Equal(t, "alice@example.com", sent.Email)
	assert.Equal(t, *user.EmailVerificationNonce, sent.Nonce)
	assert.Contains(t, sent.Link, "https://test.local/v1/verify?")
	assert.Contains(t, sent.Link, "username=alice")
}

func TestAuthService_Register_NormalizesEmail(t *testing.T) {
	repo := NewInMemoryUserRepository()
	f := newAuthFixture(repo, openRegistration())

	err := f.service.Register(context.Background(), "alice", "  Alice@Example.COM ", "secret1")
	require.NoError(t, err)

	user, err := repo.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
}

func TestAuthService_Register_UsernameTaken(t *testing.T) {
	repo := NewInMemoryUserRepository()
	f := newAuthFixture(repo, openRegistration())

	err := f.service.Register(context.Background(), "alice", "alice@example.com", "secret1")
	require.NoError(t, err)

	err = f.service.Register(context.Background(), "alice", "other@x.com", "pw2222")
	assert.ErrorIs(t, err, models.ErrUsernameNotAvailable)
}

func TestAuthService_Register_EmailTaken(t *testing.T) {
	repo := NewInMemoryUserRepository()
	f := newAuthFixture(repo, openRegistration())

	err := f.service.Register(context.Background(), "alice", "alice@example.com", "secret1")
	require.NoError(t, err)

	err = f.service.Register(context.Background(), "bob", "alice@example.com", "pw2222")
	assert.ErrorIs(t, err, models.ErrEmailNotAvailable)
}

func TestAuthService_Register_EmailCheckedBeforeUsername(t *testing.T) {
	repo := NewInMemoryUserRepository()
	f := newAuthFixture(repo, openRegistration())

	err := f.service.Register(context.Background(), "alice", "alice@example.com", "secret1")
	require.NoError(t, err)

	// Both taken: the email conflict wins
	err = f.service.Register(context.Background(), "alice", "alice@example.com", "pw2222")
	assert.ErrorIs(t, err, models.ErrEmailNotAvailable)
}

func TestAuthService_Register_ClosedRegistration_NotWhitelisted(t *testing.T) {
	// A repo that trips on any access: the whitelist gate must reject
	// before any directory work happens
	repo := &MockUserRepository{
		IsEmailTakenFunc: func(ctx context.Context, email string) (bool, error) {
			t.Fatal("directory accessed for a non-whitelisted registration")
			return false, nil
		},
	}
	f := newAuthFixture(repo, RegistrationPolicy{Open: false, Allowed: []string{"x@y.com"}})

	err := f.service.Register(context.Background(), "alice", "z@y.com", "secret1")
	assert.ErrorIs(t, err, models.ErrEmailNotWhitelisted)
	assert.Nil(t, f.mailer.LastSent())
}

func TestAuthService_Register_ClosedRegistration_Whitelisted(t *testing.T) {
	repo := NewInMemoryUserRepository()
	f := newAuthFixture(repo, RegistrationPolicy{Open: false, Allowed: []string{"x@y.com"}})

	err := f.service.Register(context.Background(), "alice", "x@y.com", "secret1")
	assert.NoError(t, err)
}

func TestAuthService_Register_MailerFailureDoesNotFailRegistration(t *testing.T) {
	repo := NewInMemoryUserRepository()
	f := newAuthFixture(repo, openRegistration())
	f.mailer.SendErr = errors.New("smtp down")

	err := f.service.Register(context.Background(), "alice", "alice@example.com", "secret1")
	assert.NoError(t, err)

	_, err = repo.GetByUsername(context.Background(), "alice")
	assert.NoError(t, err)
}

func TestAuthService_Register_ConcurrentSameUsername(t *testing.T) {
	repo := NewInMemoryUserRepository()
	f := newAuthFixture(repo, openRegistration())

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		i := i
		go func() {
			defer wg.Done()
			email := string(rune('a'+i)) + "@example.com"
			errs[i] = f.service.Register(context.Background(), "alice", email, "secret1")
		}()
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		} else {
			assert.ErrorIs(t, err, models.ErrUsernameNotAvailable)
		}
	}
	assert.Equal(t, 1, successes)
}

func TestAuthService_Verify_Success(t *testing.T) {
	repo := NewInMemoryUserRepository()
	f := newAuthFixture(repo, openRegistration())

	require.NoError(t, f.service.Register(context.Background(), "bob", "bob@example.com", "secret1"))
	nonce := f.mailer.LastSent().Nonce

	token, err := f.service.Verify(context.Background(), "bob", nonce)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, status := f.sessions.Verify(token)
	assert.Equal(t, models.SessionValid, status)
	assert.Equal(t, "bob", claims.Username)
	assert.Contains(t, claims.Scopes, models.ScopeUser)

	user, err := repo.GetByUsername(context.Background(), "bob")
	require.NoError(t, err)
	assert.True(t, user.IsEmailVerified)
	assert.Nil(t, user.EmailVerificationNonce)
	assert.Contains(t, user.Scopes, models.ScopeUser)
}

func TestAuthService_Verify_WrongNonce(t *testing.T) {
	repo := NewInMemoryUserRepository()
	f := newAuthFixture(repo, openRegistration())

	require.NoError(t, f.service.Register(context.Background(), "bob", "bob@example.com", "secret1"))

	_, err := f.service.Verify(context.Background(), "bob", "deadbeef")
	assert.ErrorIs(t, err, models.ErrInvalidNonce)

	user, err := repo.GetByUsername(context.Background(), "bob")
	require.NoError(t, err)
	assert.False(t, user.IsEmailVerified)
	assert.NotNil(t, user.EmailVerificationNonce)
}

func TestAuthService_Verify_NotRepeatable(t *testing.T) {
	repo := NewInMemoryUserRepository()
	f := newAuthFixture(repo, openRegistration())

	require.NoError(t, f.service.Register(context.Background(), "bob", "bob@example.com", "secret1"))
	nonce := f.mailer.LastSent().Nonce

	_, err := f.service.Verify(context.Background(), "bob", nonce)
	require.NoError(t, err)

	// The same nonce never matches again
	_, err = f.service.Verify(context.Background(), "bob", nonce)
	assert.ErrorIs(t, err, models.ErrInvalidNonce)
}

func TestAuthService_Verify_UnknownUsername(t *testing.T) {
	repo := NewInMemoryUserRepository()
	f := newAuthFixture(repo, openRegistration())

	_, err := f.service.Verify(context.Background(), "nobody", "deadbeef")
	assert.ErrorIs(t, err, models.ErrInvalidUsername)
}

func TestAuthService_Login_Success(t *testing.T) {
	repo := NewInMemoryUserRepository()
	f := newAuthFixture(repo, openRegistration())

	require.NoError(t, f.service.Register(context.Background(), "bob", "bob@example.com", "secret1"))
	_, err := f.service.Verify(context.Background(), "bob", f.mailer.LastSent().Nonce)
	require.NoError(t, err)

	token, err := f.service.Login(context.Background(), "bob", "secret1")
	require.NoError(t, err)

	claims, status := f.sessions.Verify(token)
	assert.Equal(t, models.SessionValid, status)
	assert.Equal(t, "bob", claims.Username)
	assert.Contains(t, claims.Scopes, models.ScopeUser)
}

func TestAuthService_Login_IdenticalErrorForAllFailureCauses(t *testing.T) {
	repo := NewInMemoryUserRepository()
	f := newAuthFixture(repo, openRegistration())

	require.NoError(t, f.service.Register(context.Background(), "bob", "bob@example.com", "secret1"))

	// Unverified account, correct password
	_, errUnverified := f.service.Login(context.Background(), "bob", "secret1")

	// Unknown username
	_, errUnknown := f.service.Login(context.Background(), "nobody", "secret1")

	_, err := f.service.Verify(context.Background(), "bob", f.mailer.LastSent().Nonce)
	require.NoError(t, err)

	// Wrong password on a verified account
	_, errWrongPassword := f.service.Login(context.Background(), "bob", "wrong-password")

	assert.ErrorIs(t, errUnverified, models.ErrInvalidCredentials)
	assert.ErrorIs(t, errUnknown, models.ErrInvalidCredentials)
	assert.ErrorIs(t, errWrongPassword, models.ErrInvalidCredentials)
	assert.Equal(t, errUnverified.Error(), errUnknown.Error())
	assert.Equal(t, errUnknown.Error(), errWrongPassword.Error())
}

func TestAuthService_Login_RepositoryError(t *testing.T) {
	repo := &MockUserRepository{
		GetByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
			return nil, errors.New("connection refused")
		},
	}
	f := newAuthFixture(repo, openRegistration())

	_, err := f.service.Login(context.Background(), "bob", "secret1")
	assert.ErrorIs(t, err, models.ErrInternalServer)
}

func TestRegistrationPolicy_IsAllowed(t *testing.T) {
	tests := []struct {
		name   string
		policy RegistrationPolicy
		email  string
		want   bool
	}{
		{
			name:   "open registration allows anyone",
			policy: RegistrationPolicy{Open: true},
			email:  "anyone@example.com",
			want:   true,
		},
		{
			name:   "closed registration allows listed email",
			policy: RegistrationPolicy{Open: false, Allowed: []string{"x@y.com"}},
			email:  "x@y.com",
			want:   true,
		},
		{
			name:   "closed registration rejects unlisted email",
			policy: RegistrationPolicy{Open: false, Allowed: []string{"x@y.com"}},
			email:  "z@y.com",
			want:   false,
		},
		{
			name:   "allow-list match is case-insensitive",
			policy: RegistrationPolicy{Open: false, Allowed: []string{"X@Y.com"}},
			email:  "x@y.com",
			want:   true,
		},
		{
			name:   "closed registration with empty list rejects all",
			policy: RegistrationPolicy{Open: false},
			email:  "x@y.com",
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy.IsAllowed(tt.email))
		})
	}
}

func TestAuthService_PasswordRoundTripThroughRegistration(t *testing.T) {
	repo := NewInMemoryUserRepository()
	f := newAuthFixture(repo, openRegistration())

	require.NoError(t, f.service.Register(context.Background(), "carol", "carol@example.com", "hunter22"))

	user, err := repo.GetByUsername(context.Background(), "carol")
	require.NoError(t, err)
	assert.True(t, pkgauth.VerifyPassword("hunter22", user.PasswordHash, user.PasswordSalt))
	assert.False(t, pkgauth.VerifyPassword("hunter23", user.PasswordHash, user.PasswordSalt))
}
