package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestHashPasswordPolicy(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"too short", "abc", true},
		{"minimum", "abcdef", false},
		{"multibyte counts runes", "пароль", false},
		{"too long for bcrypt", strings.Repeat("x", 73), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := HashPassword(tt.password)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPassword) {
					t.Fatalf("expected ErrInvalidPassword, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("hash: %v", err)
			}
			if err := ComparePassword(hash, tt.password); err != nil {
				t.Fatalf("compare: %v", err)
			}
		})
	}
}

func TestComparePasswordMismatch(t *testing.T) {
	hash, err := HashPassword("correct-horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := ComparePassword(hash, "wrong-horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}
