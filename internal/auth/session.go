package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/mkessler/hypercloud/internal/models"
)

// SessionManager issues and verifies stateless signed session tokens.
// No server-side session record exists; possession of a token whose
// signature verifies is the whole proof of identity. There is no
// revocation: logout only tells the caller to discard the token, and a
// previously issued token stays valid until its natural expiry.
type SessionManager struct {
	secret []byte
	ttl    time.Duration
}

// NewSessionManager creates a SessionManager with the given signing
// secret and token lifetime.
func NewSessionManager(secret string, ttl time.Duration) *SessionManager {
	return &SessionManager{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// Generate builds and signs a session token carrying the subject id,
// scopes, and issue time. Pure function over its inputs, the secret,
// and the clock; requires no locking.
func (sm *SessionManager) Generate(userID, username string, scopes []string) (string, error) {
	now := time.Now()
	claims := &models.SessionClaims{
		UserID:   userID,
		Username: username,
		Scopes:   scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(sm.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(sm.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return tokenString, nil
}

// Verify validates the signature and freshness of a token. It never
// returns an error: an absent, malformed, or tampered token yields
// SessionInvalid, a stale one SessionExpired. Claims are non-nil only
// for SessionValid.
func (sm *SessionManager) Verify(tokenString string) (*models.SessionClaims, models.SessionStatus) {
	if tokenString == "" {
		return nil, models.SessionInvalid
	}

	claims := &models.SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return sm.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, models.SessionExpired
		}
		return nil, models.SessionInvalid
	}

	if !token.Valid || claims.UserID == "" {
		return nil, models.SessionInvalid
	}

	return claims, models.SessionValid
}
