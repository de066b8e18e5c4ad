package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		username string
		valid    bool
	}{
		{"alice", true},
		{"a.b_c9", true},
		{"ab", false},
		{"abcdefghijklmnopqrstuvwxyz12345", false},
		{".alice", false},
		{"alice_", false},
		{"al ice", false},
		{"alice!", false},
	}

	for _, tt := range tests {
		t.Run(tt.username, func(t *testing.T) {
			assert.Equal(t, tt.valid, ValidateUsername(tt.username))
		})
	}
}

func TestValidateEmail(t *testing.T) {
	assert.True(t, ValidateEmail("alice@x.com"))
	assert.True(t, ValidateEmail("a.b+tag@mail.example.org"))
	assert.False(t, ValidateEmail("alice@x"))
	assert.False(t, ValidateEmail("alice.x.com"))
	assert.False(t, ValidateEmail(""))
}

func TestCheckPasswordStrength(t *testing.T) {
	tests := []struct {
		password string
		want     PasswordStrength
	}{
		{"abc", StrengthWeak},
		{"abcdef", StrengthWeak},
		{"abcdefgh", StrengthMedium},
		{"Abcdefgh", StrengthMedium},
		{"Abcdefg1", StrengthStrong},
		{"Abcde1!", StrengthStrong},
	}

	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			assert.Equal(t, tt.want, CheckPasswordStrength(tt.password))
		})
	}
}

func TestValidatePassword(t *testing.T) {
	assert.True(t, ValidatePassword("Secret12"))
	assert.False(t, ValidatePassword("Secret 12"))
	assert.False(t, ValidatePassword("abc"))

	assert.True(t, ValidatePassword("Secret12"+strings.Repeat("x", MaxPasswordBytes-8)))
	assert.False(t, ValidatePassword("Secret12"+strings.Repeat("x", MaxPasswordBytes-7)), "bcrypt cannot hash it")
	assert.False(t, ValidatePassword("Secret12"+strings.Repeat("ü", 33)), "the limit counts bytes")
}

func TestSanitizeEmail(t *testing.T) {
	assert.Equal(t, "alice@x.com", SanitizeEmail("  Alice@X.com "))
}
