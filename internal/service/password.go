package service

import (
	"fmt"
	"unicode"
)

// ValidatePassword enforces the account password policy: at least 8
// characters with one digit, one uppercase and one lowercase letter.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("%w: must be at least 8 characters", ErrPasswordPolicy)
	}

	var hasDigit, hasUpper, hasLower bool
	for _, r := range password {
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		}
	}
	if !hasDigit {
		return fmt.Errorf("%w: must contain a digit", ErrPasswordPolicy)
	}
	if !hasUpper {
		return fmt.Errorf("%w: must contain an uppercase letter", ErrPasswordPolicy)
	}
	if !hasLower {
		return fmt.Errorf("%w: must contain a lowercase letter", ErrPasswordPolicy)
	}
	return nil
}
