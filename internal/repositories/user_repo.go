package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mkessler/hypercloud/internal/database"
	"github.com/mkessler/hypercloud/internal/models"
)

// UserRepository is the user directory: persistence for user records
// keyed by id, username, and email. It deliberately enforces no
// uniqueness of its own; callers serialize their check-then-create
// sequences through the lock manager. Reads within one process see the
// most recent write from that process (read-your-writes), which is what
// makes a lock-protected check reliable.
type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{pool: db.Pool}
}

const userColumns = `id, username, email, password_hash, password_salt,
	email_verification_nonce, is_email_verified, scopes,
	profile_url, profile_verify_token, is_profile_dat_verified,
	created_at, updated_at`

// rowScanner interface for scanning user rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanUserRow handles nullable fields and populates a User model from a row
func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User

	err := scanner.Scan(
		&user.ID, &user.Username, &user.Email,
		&user.PasswordHash, &user.PasswordSalt,
		&user.EmailVerificationNonce, &user.IsEmailVerified, &user.Scopes,
		&user.ProfileURL, &user.ProfileVerifyToken, &user.IsProfileDatVerified,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if user.Scopes == nil {
		user.Scopes = []string{}
	}

	return &user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUserRow(r.pool.QueryRow(ctx, query, id))
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return scanUserRow(r.pool.QueryRow(ctx, query, username))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUserRow(r.pool.QueryRow(ctx, query, email))
}

func (r *UserRepository) IsUsernameTaken(ctx context.Context, username string) (bool, error) {
	var taken bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`, username,
	).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("failed to check username availability: %w", err)
	}
	return taken, nil
}

func (r *UserRepository) IsEmailTaken(ctx context.Context, email string) (bool, error) {
	var taken bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email,
	).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("failed to check email availability: %w", err)
	}
	return taken, nil
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	user.ID = uuid.New().String()

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	if user.Scopes == nil {
		user.Scopes = []string{}
	}

	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING ` + userColumns

	return scanUserRow(r.pool.QueryRow(ctx, query,
		user.ID, user.Username, user.Email,
		user.PasswordHash, user.PasswordSalt,
		user.EmailVerificationNonce, user.IsEmailVerified, user.Scopes,
		user.ProfileURL, user.ProfileVerifyToken, user.IsProfileDatVerified,
		user.CreatedAt, user.UpdatedAt,
	))
}

// Put writes the full record back. Username is immutable and not part
// of the update set.
func (r *UserRepository) Put(ctx context.Context, user *models.User) (*models.User, error) {
	user.UpdatedAt = time.Now()

	query := `
		UPDATE users SET
			email = $2,
			password_hash = $3,
			password_salt = $4,
			email_verification_nonce = $5,
			is_email_verified = $6,
			scopes = $7,
			profile_url = $8,
			profile_verify_token = $9,
			is_profile_dat_verified = $10,
			updated_at = $11
		WHERE id = $1
		RETURNING ` + userColumns

	return scanUserRow(r.pool.QueryRow(ctx, query,
		user.ID, user.Email,
		user.PasswordHash, user.PasswordSalt,
		user.EmailVerificationNonce, user.IsEmailVerified, user.Scopes,
		user.ProfileURL, user.ProfileVerifyToken, user.IsProfileDatVerified,
		user.UpdatedAt,
	))
}
