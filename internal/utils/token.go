package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// GenerateAuthToken returns a random opaque token, 40 hex characters.
// Tokens carry no embedded claims; validity lives in the auth_tokens table.
func GenerateAuthToken() (string, error) {
	tokenBytes := make([]byte, 20)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(tokenBytes), nil
}
