package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/mkessler/hypercloud/internal/models"
	pkgauth "github.com/mkessler/hypercloud/pkg/auth"
)

// ProofService generates profile ownership proof tokens. A user claims
// an external profile archive by publishing the token inside it; the
// crawler that checks for the token is out of scope here.
type ProofService struct {
	secret []byte
}

// NewProofService creates a ProofService keyed with the given secret.
func NewProofService(secret string) *ProofService {
	return &ProofService{secret: []byte(secret)}
}

// Generate derives a fresh proof token for the user's current profile
// reference. Tokens are bound to user id and profile URL plus a random
// component, so re-pointing the profile always yields a new token.
func (p *ProofService) Generate(user *models.User) (string, error) {
	random, err := pkgauth.RandomBytes(16)
	if err != nil {
		return "", fmt.Errorf("failed to generate proof token: %w", err)
	}

	profileURL := ""
	if user.ProfileURL != nil {
		profileURL = *user.ProfileURL
	}

	mac := hmac.New(sha256.New, p.secret)
	mac.Write([]byte(user.ID))
	mac.Write([]byte(profileURL))
	mac.Write(random)

	return hex.EncodeToString(mac.Sum(nil)), nil
}
