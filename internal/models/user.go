package models

import (
	"time"
)

// User is a single account record in the user directory.
//
// Username and email must be unique across all records. The directory
// itself does not enforce this; the registration flow guarantees it by
// running its check-then-create sequence under the lock manager.
type User struct {
	ID                     string
	Username               string // 3-16 alphanumeric, immutable
	Email                  string
	PasswordHash           string // hex-encoded scrypt output
	PasswordSalt           string // hex-encoded
	EmailVerificationNonce *string // 64 hex chars until first verification, then nil forever
	IsEmailVerified        bool
	Scopes                 []string
	ProfileURL             *string
	ProfileVerifyToken     *string
	IsProfileDatVerified   bool
	CreatedAt              time.Time
	UpdatedAt              time.Time
}
