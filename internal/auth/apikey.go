// Package auth provides the credential primitives for the admin backend: API key tokens,
// the permission-to-capability map, user session JWTs and password hashing.
// Two authentication methods are supported: JWTs (issued on email/password login, stateless
// verification) and API keys (company-scoped tokens, stored as SHA-256 digests).
// See internal/middleware/auth.go for the request-time authentication logic that uses these primitives.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	// APIKeyPrefix marks every token issued by this service
	APIKeyPrefix = "mk_live_"

	// APIKeyRandomBytes is the entropy of the random part; hex doubles it to 32 characters
	APIKeyRandomBytes = 16

	// DisplayPrefixLength is the number of characters to show in displays
	DisplayPrefixLength = 12

	// APIKeyHeader is the dedicated header for API key callers
	APIKeyHeader = "X-API-Key"
)

// ErrNoAPIKey is returned when a request carries no API key.
var ErrNoAPIKey = errors.New("no API key provided")

// GenerateAPIKey creates a new random API key.
// Returns: full key (to show once), SHA-256 digest (to store), display prefix
func GenerateAPIKey() (key string, digest string, displayPrefix string, err error) {
	randomBytes := make([]byte, APIKeyRandomBytes)
	if _, err = rand.Read(randomBytes); err != nil {
		return "", "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	fullKey := APIKeyPrefix + hex.EncodeToString(randomBytes)
	return fullKey, HashAPIKey(fullKey), DisplayPrefix(fullKey), nil
}

// HashAPIKey returns the hex SHA-256 digest under which a token is stored and looked up.
// The digest is unsalted so it can serve as a unique index.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// DisplayPrefix returns the first DisplayPrefixLength characters of key.
func DisplayPrefix(key string) string {
	if len(key) > DisplayPrefixLength {
		return key[:DisplayPrefixLength]
	}
	return key
}

// LooksLikeAPIKey reports whether s has the shape of an issued token.
func LooksLikeAPIKey(s string) bool {
	return strings.HasPrefix(s, APIKeyPrefix) && len(s) == len(APIKeyPrefix)+2*APIKeyRandomBytes
}

// ExtractAPIKey returns the API key from the X-API-Key header, falling back to
// "Authorization: Bearer mk_live_...".
func ExtractAPIKey(apiKeyHeader, authorizationHeader string) (string, error) {
	if key := strings.TrimSpace(apiKeyHeader); key != "" {
		return key, nil
	}
	if authorizationHeader == "" {
		return "", ErrNoAPIKey
	}
	key, err := ExtractBearerToken(authorizationHeader)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(key, APIKeyPrefix) {
		return "", ErrNoAPIKey
	}
	return key, nil
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
