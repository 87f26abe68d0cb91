package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/scrypt"
)

// scrypt parameters. Deliberately slow and memory-hard; hashing must
// always happen before a flow enters any lock-protected section.
const (
	ScryptN      = 32768
	ScryptR      = 8
	ScryptP      = 1
	ScryptKeyLen = 64

	SaltLength  = 32
	NonceLength = 32 // rendered as 64 hex characters

	MinPasswordLen = 6
	MaxPasswordLen = 100
)

// RandomBytes returns n cryptographically secure random bytes.
func RandomBytes(n int) ([]byte, error) {
	bytes := make([]byte, n)
	if _, err := rand.Read(bytes); err != nil {
		return nil, fmt.Errorf("failed to read random bytes: %w", err)
	}
	return bytes, nil
}

// GenerateNonce returns a fresh email verification nonce as a 64
// character hex string.
func GenerateNonce() (string, error) {
	bytes, err := RandomBytes(NonceLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// HashPassword derives a hash from password with a fresh random salt.
// Both hash and salt are returned hex-encoded for storage.
func HashPassword(password string) (hash, salt string, err error) {
	if password == "" {
		return "", "", fmt.Errorf("password cannot be empty")
	}

	saltBytes, err := RandomBytes(SaltLength)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate salt: %w", err)
	}

	hashBytes, err := scrypt.Key([]byte(password), saltBytes, ScryptN, ScryptR, ScryptP, ScryptKeyLen)
	if err != nil {
		return "", "", fmt.Errorf("failed to hash password: %w", err)
	}

	return hex.EncodeToString(hashBytes), hex.EncodeToString(saltBytes), nil
}

// VerifyPassword recomputes the hash of password with the stored salt
// and compares it to the stored hash in constant time.
func VerifyPassword(password, hash, salt string) bool {
	saltBytes, err := hex.DecodeString(salt)
	if err != nil {
		return false
	}
	hashBytes, err := hex.DecodeString(hash)
	if err != nil {
		return false
	}

	computed, err := scrypt.Key([]byte(password), saltBytes, ScryptN, ScryptR, ScryptP, ScryptKeyLen)
	if err != nil {
		return false
	}

	return subtle.ConstantTimeCompare(computed, hashBytes) == 1
}

// ConstantTimeEquals compares two strings without leaking where they
// differ. Used for nonce comparison during email verification.
func ConstantTimeEquals(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// ValidatePassword enforces the password length policy.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLen || len(password) > MaxPasswordLen {
		return fmt.Errorf("password must be %d to %d characters", MinPasswordLen, MaxPasswordLen)
	}
	return nil
}
