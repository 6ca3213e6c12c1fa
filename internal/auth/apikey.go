// Package auth provides the credential primitives of the record store: access
// key generation, the bcrypt-hashed admin token, and session JWTs.
// See internal/middleware for the request-time checks that use these primitives.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	// AccessKeyLength is the length of the random part of an access key in bytes
	AccessKeyLength = 32

	// AdminTokenLength is the length of a generated admin token in bytes
	AdminTokenLength = 32

	// BcryptCost is the cost factor for bcrypt hashing
	BcryptCost = 12

	// DefaultKeyPrefix is prepended to access keys when none is configured
	DefaultKeyPrefix = "sk_live_"
)

// randomToken returns n bytes from crypto/rand encoded as unpadded base64url.
func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GenerateAccessKey creates a new random access key with the given prefix.
// Uniqueness against existing keys is the caller's job.
func GenerateAccessKey(prefix string) (string, error) {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	randomPart, err := randomToken(AccessKeyLength)
	if err != nil {
		return "", err
	}
	return prefix + randomPart, nil
}

// GenerateAdminToken creates a random admin token.
// Returns: token (to show once) and its bcrypt hash (to keep)
func GenerateAdminToken() (token string, hash string, err error) {
	token, err = randomToken(AdminTokenLength)
	if err != nil {
		return "", "", err
	}
	hash, err = HashAdminToken(token)
	if err != nil {
		return "", "", err
	}
	return token, hash, nil
}

// HashAdminToken returns the bcrypt hash stored in auth.admin_token_hash
func HashAdminToken(token string) (string, error) {
	if token == "" {
		return "", errors.New("admin token is empty")
	}
	hashBytes, err := bcrypt.GenerateFromPassword([]byte(token), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash admin token: %w", err)
	}
	return string(hashBytes), nil
}

// ValidateAdminToken checks if a provided token matches the stored hash
func ValidateAdminToken(providedToken, storedHash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(providedToken))
	return err == nil
}

// ExtractBearerToken extracts the token from an Authorization header
// Expected format: "Bearer <token>"
func ExtractBearerToken(header string) (string, error) {
	if header == "" {
		return "", errors.New("authorization header is empty")
	}

	if !strings.HasPrefix(header, "Bearer ") {
		return "", errors.New("authorization header must start with 'Bearer '")
	}

	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return "", errors.New("token is empty after Bearer prefix")
	}

	return token, nil
}
