package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const apiKeyBytes = 48

// GenerateAPIKey returns a URL-safe opaque key with 48 bytes of entropy.
func GenerateAPIKey() (string, error) {
	buf := make([]byte, apiKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
