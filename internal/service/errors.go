package service

import "errors"

var (
	ErrValidation     = errors.New("validation failed")
	ErrUserInactive   = errors.New("user is not active")
	ErrInvalidToken   = errors.New("token is invalid or expired")
	ErrGoogleAuth     = errors.New("invalid google token")
	ErrNotOwner       = errors.New("not the owner of this resource")
	ErrPasswordPolicy = errors.New("password does not meet the policy")
)
