package auth

import (
	"fmt"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

const (
	bcryptCost = 10

	minPasswordLen = 6
	// bcrypt ignores everything past 72 bytes.
	maxPasswordBytes = 72
)

// checkPassword applies the signup password policy.
func checkPassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLen {
		return fmt.Errorf("%w: at least %d characters", ErrInvalidPassword, minPasswordLen)
	}
	if len(password) > maxPasswordBytes {
		return fmt.Errorf("%w: at most %d bytes", ErrInvalidPassword, maxPasswordBytes)
	}
	return nil
}

// HashPassword checks the policy and returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	if err := checkPassword(password); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// ComparePassword returns ErrInvalidCredentials when password does not match
// hash.
func ComparePassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}
