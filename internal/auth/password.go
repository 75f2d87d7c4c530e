package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword derives a bcrypt hash for account storage. Plaintext is
// never persisted; the default cost dominates login latency, which is
// acceptable for an interactive flow.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("auth: empty password")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword checks a login attempt against the stored hash. The
// bcrypt comparison is constant-time, so response timing does not reveal
// how much of a guess matched.
func VerifyPassword(hash, password string) error {
	if hash == "" {
		return errors.New("auth: account has no password hash")
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
