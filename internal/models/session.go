package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the payload of a signed session token. Tokens are
// never persisted server-side; the claims plus signature are the whole
// session.
type SessionClaims struct {
	UserID   string   `json:"sub"`
	Username string   `json:"username"`
	Scopes   []string `json:"scopes"`
	jwt.RegisteredClaims
}

// SessionStatus is the outcome of verifying a session token.
type SessionStatus int

const (
	SessionValid SessionStatus = iota
	SessionInvalid
	SessionExpired
)

func (s SessionStatus) String() string {
	switch s {
	case SessionValid:
		return "valid"
	case SessionExpired:
		return "expired"
	default:
		return "invalid"
	}
}
