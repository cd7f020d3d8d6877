package repo

import "errors"

var (
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account temporarily locked")
	ErrTokenNotFound      = errors.New("refresh token not found")
	ErrTokenReused        = errors.New("refresh token already used")
	ErrPostadNotFound     = errors.New("postad not found")
)
