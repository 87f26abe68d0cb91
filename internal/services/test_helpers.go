package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mkessler/hypercloud/internal/models"
)

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	GetByIDFunc         func(ctx context.Context, id string) (*models.User, error)
	GetByUsernameFunc   func(ctx context.Context, username string) (*models.User, error)
	GetByEmailFunc      func(ctx context.Context, email string) (*models.User, error)
	IsUsernameTakenFunc func(ctx context.Context, username string) (bool, error)
	IsEmailTakenFunc    func(ctx context.Context, email string) (bool, error)
	CreateFunc          func(ctx context.Context, user *models.User) (*models.User, error)
	PutFunc             func(ctx context.Context, user *models.User) (*models.User, error)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if m.GetByUsernameFunc != nil {
		return m.GetByUsernameFunc(ctx, username)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) IsUsernameTaken(ctx context.Context, username string) (bool, error) {
	if m.IsUsernameTakenFunc != nil {
		return m.IsUsernameTakenFunc(ctx, username)
	}
	return false, nil
}

func (m *MockUserRepository) IsEmailTaken(ctx context.Context, email string) (bool, error) {
	if m.IsEmailTakenFunc != nil {
		return m.IsEmailTakenFunc(ctx, email)
	}
	return false, nil
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) Put(ctx context.Context, user *models.User) (*models.User, error) {
	if m.PutFunc != nil {
		return m.PutFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

// InMemoryUserRepository is a directory backed by maps. Like the real
// directory it enforces no uniqueness; callers get read-your-writes
// consistency, which is all the flows rely on. Used by concurrency
// tests where a func-field mock cannot model state.
type InMemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]*models.User // by id
}

func NewInMemoryUserRepository() *InMemoryUserRepository {
	return &InMemoryUserRepository{users: make(map[string]*models.User)}
}

func (r *InMemoryUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if user, ok := r.users[id]; ok {
		return copyUser(user), nil
	}
	return nil, models.ErrNotFound
}

func (r *InMemoryUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if user.Username == username {
			return copyUser(user), nil
		}
	}
	return nil, models.ErrNotFound
}

func (r *InMemoryUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if user.Email == email {
			return copyUser(user), nil
		}
	}
	return nil, models.ErrNotFound
}

func (r *InMemoryUserRepository) IsUsernameTaken(ctx context.Context, username string) (bool, error) {
	_, err := r.GetByUsername(ctx, username)
	if err == nil {
		return true, nil
	}
	return false, nil
}

func (r *InMemoryUserRepository) IsEmailTaken(ctx context.Context, email string) (bool, error) {
	_, err := r.GetByEmail(ctx, email)
	if err == nil {
		return true, nil
	}
	return false, nil
}

func (r *InMemoryUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user.ID = uuid.New().String()
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = copyUser(user)
	return copyUser(user), nil
}

func (r *InMemoryUserRepository) Put(ctx context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return nil, models.ErrNotFound
	}
	user.UpdatedAt = time.Now()
	r.users[user.ID] = copyUser(user)
	return copyUser(user), nil
}

func copyUser(user *models.User) *models.User {
	clone := *user
	if user.EmailVerificationNonce != nil {
		nonce := *user.EmailVerificationNonce
		clone.EmailVerificationNonce = &nonce
	}
	if user.ProfileURL != nil {
		url := *user.ProfileURL
		clone.ProfileURL = &url
	}
	if user.ProfileVerifyToken != nil {
		token := *user.ProfileVerifyToken
		clone.ProfileVerifyToken = &token
	}
	clone.Scopes = append([]string(nil), user.Scopes...)
	return &clone
}

// SentMail is one captured verification email
type SentMail struct {
	Email    string
	Username string
	Nonce    string
	Link     string
}

// MockMailer captures sent emails for test assertions
type MockMailer struct {
	mu          sync.Mutex
	Sent        []SentMail
	SendErr     error
}

func (m *MockMailer) SendVerification(ctx context.Context, email, username, nonce, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return m.SendErr
	}
	m.Sent = append(m.Sent, SentMail{Email: email, Username: username, Nonce: nonce, Link: link})
	return nil
}

// LastSent returns the most recent captured email, or nil
func (m *MockMailer) LastSent() *SentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Sent) == 0 {
		return nil
	}
	return &m.Sent[len(m.Sent)-1]
}

// MockProofGenerator implements ProofGenerator for testing
type MockProofGenerator struct {
	GenerateFunc func(user *models.User) (string, error)
}

func (m *MockProofGenerator) Generate(user *models.User) (string, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(user)
	}
	return "proof-token", nil
}

// NewTestUser builds a verified user record for tests
func NewTestUser(id, username, email string) *models.User {
	now := time.Now()
	return &models.User{
		ID:              id,
		Username:        username,
		Email:           email,
		IsEmailVerified: true,
		Scopes:          []string{models.ScopeUser},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// testLogger returns a logger for test use
func testLogger() *slog.Logger {
	return slog.Default()
}
