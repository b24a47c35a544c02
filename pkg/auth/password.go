package auth

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

const (
	BcryptCost     = 12
	MinPasswordLen = 6
	MaxPasswordLen = 128
)

// PasswordValidationError lists every policy rule a password broke
type PasswordValidationError struct {
	Errors []string
}

func (e *PasswordValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "password validation failed"
	}
	return "password " + strings.Join(e.Errors, "; ")
}

func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

func ComparePassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// ValidatePassword enforces the stored-password policy: 6 to 128
// characters and no whitespace. bcrypt only reads the first 72 bytes, so
// the byte length is capped as well.
func ValidatePassword(password string) error {
	errors := make([]string, 0)

	n := utf8.RuneCountInString(password)
	if n < MinPasswordLen {
		errors = append(errors, fmt.Sprintf("must be at least %d characters", MinPasswordLen))
	}
	if n > MaxPasswordLen {
		errors = append(errors, fmt.Sprintf("must be at most %d characters", MaxPasswordLen))
	} else if len(password) > 72 {
		errors = append(errors, "must be at most 72 bytes")
	}
	if strings.IndexFunc(password, unicode.IsSpace) >= 0 {
		errors = append(errors, "must not contain spaces")
	}

	if len(errors) > 0 {
		return &PasswordValidationError{Errors: errors}
	}
	return nil
}
