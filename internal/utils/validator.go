package utils

import (
	"regexp"
	"strings"
)

var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9._]+$`)
	specialRegex  = regexp.MustCompile(`[!@#$%^&*(),.?":{}|<>]`)
)

const (
	MinUsernameLength = 3
	MaxUsernameLength = 30

	// MaxPasswordBytes is the longest password bcrypt accepts
	MaxPasswordBytes = 72
)

// PasswordStrength grades a password
type PasswordStrength int

const (
	StrengthWeak PasswordStrength = iota
	StrengthMedium
	StrengthStrong
)

func (s PasswordStrength) String() string {
	switch s {
	case StrengthStrong:
		return "strong"
	case StrengthMedium:
		return "medium"
	default:
		return "weak"
	}
}

// ValidateEmail validates an email address
func ValidateEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// ValidateUsername validates a username
// 3 to 30 letters, digits, dots or underscores, not starting or ending with a dot or underscore
func ValidateUsername(username string) bool {
	if len(username) < MinUsernameLength || len(username) > MaxUsernameLength {
		return false
	}
	if strings.HasPrefix(username, ".") || strings.HasSuffix(username, ".") ||
		strings.HasPrefix(username, "_") || strings.HasSuffix(username, "_") {
		return false
	}
	return usernameRegex.MatchString(username)
}

// CheckPasswordStrength scores a password one point each for length of at least 6,
// length of at least 8, an uppercase letter, a lowercase letter, a digit and a special character.
// A score of 2 or less is weak, 3 or 4 is medium.
func CheckPasswordStrength(password string) PasswordStrength {
	score := 0
	if len(password) >= 6 {
		score++
	}
	if len(password) >= 8 {
		score++
	}

	hasUpper := false
	hasLower := false
	hasNumber := false

	for _, char := range password {
		switch {
		case 'A' <= char && char <= 'Z':
			hasUpper = true
		case 'a' <= char && char <= 'z':
			hasLower = true
		case '0' <= char && char <= '9':
			hasNumber = true
		}
	}

	for _, has := range []bool{hasUpper, hasLower, hasNumber, specialRegex.MatchString(password)} {
		if has {
			score++
		}
	}

	switch {
	case score <= 2:
		return StrengthWeak
	case score <= 4:
		return StrengthMedium
	default:
		return StrengthStrong
	}
}

// ValidatePassword reports whether password is acceptable for an account:
// at least medium strength, no whitespace and at most MaxPasswordBytes bytes
func ValidatePassword(password string) bool {
	if len(password) > MaxPasswordBytes || strings.ContainsAny(password, " \t\r\n") {
		return false
	}
	return CheckPasswordStrength(password) != StrengthWeak
}

// SanitizeEmail sanitizes an email address
func SanitizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
