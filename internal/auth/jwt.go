// Package auth - jwt.go handles session token creation, signing, and verification
// using a shared HMAC secret.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const jwtIssuer = "mailnow-admin"

// Claims represents the JWT claims structure
type Claims struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// JWTManager signs and verifies user session tokens.
type JWTManager struct {
	secret []byte
	expiry time.Duration
}

// isDevMode reports whether the process runs in development mode
func isDevMode() bool {
	devMode := os.Getenv("DEV_MODE")
	return devMode == "true" || devMode == "1" || os.Getenv("GIN_MODE") == "debug"
}

// generateRandomSecret creates a cryptographically secure random secret
func generateRandomSecret() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("dev-fallback-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}

// NewJWTManager validates secret and returns a manager issuing tokens valid for expiry.
// In production an empty secret is an error. In dev mode a random secret is generated
// and a warning logged.
func NewJWTManager(secret string, expiry time.Duration) (*JWTManager, error) {
	if secret == "" {
		if !isDevMode() {
			return nil, errors.New("SECURITY ERROR: JWT_SECRET environment variable is required in production. " +
				"Generate a secure secret with: openssl rand -hex 32")
		}
		secret = generateRandomSecret()
		slog.Warn("JWT_SECRET not set, using auto-generated secret for development; sessions will not survive restarts")
	} else if len(secret) < 32 {
		slog.Warn("JWT_SECRET is shorter than the recommended 32 characters")
	}

	if expiry <= 0 {
		expiry = time.Hour
	}
	return &JWTManager{secret: []byte(secret), expiry: expiry}, nil
}

// Generate creates a signed token for an authenticated user
func (m *JWTManager) Generate(userID int64, email string) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    jwtIssuer,
			Subject:   strconv.FormatInt(userID, 10),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Validate parses and validates a token
func (m *JWTManager) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	}, jwt.WithIssuer(jwtIssuer))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// Expiry returns the lifetime of issued tokens.
func (m *JWTManager) Expiry() time.Duration { return m.expiry }
