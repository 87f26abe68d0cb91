package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Registration policy and availability errors
	ErrEmailNotWhitelisted  = errors.New("email has not been whitelisted for registration")
	ErrEmailNotAvailable    = errors.New("email is not available")
	ErrUsernameNotAvailable = errors.New("username is not available")

	// Verification and login errors. Credential failures use generic
	// wording: the caller must not be able to tell which check failed.
	ErrInvalidUsername    = errors.New("invalid username")
	ErrInvalidNonce       = errors.New("invalid verification code")
	ErrInvalidCredentials = errors.New("invalid username/password")
)
