package utils

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// TokenBytes is the entropy of session, verification and reset tokens
const TokenBytes = 32

// GenerateToken returns a random hex token of TokenBytes bytes
func GenerateToken() (string, error) {
	buf := make([]byte, TokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// TokensEqual compares two tokens in constant time
func TokensEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// ShortToken returns a prefix of token that is safe to log
func ShortToken(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8]
}
