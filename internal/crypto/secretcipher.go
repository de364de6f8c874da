// Package crypto provides AES-256-GCM authenticated encryption for secrets that
// must be stored at rest in the database, specifically SMTP profile passwords.
// Unlike user passwords and API keys, these must be recoverable in plaintext by
// the sending pipeline, so they are encrypted rather than hashed.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeySize is the AES-256 key length in bytes
	KeySize = 32

	// MinSaltSize is the shortest salt accepted for key derivation
	MinSaltSize = 16

	// DefaultIterations is the PBKDF2 round count used when none (or too few) are given
	DefaultIterations = 210_000

	// passphraseSalt is used when ENCRYPTION_KEY is a passphrase rather than raw key material.
	passphraseSalt = "mailnow-admin/smtp-password/v1"
)

var (
	// ErrKeyLengthInvalid is returned when a master key is not exactly 32 bytes (required for AES-256).
	ErrKeyLengthInvalid = errors.New("crypto: key must be exactly 32 bytes for AES-256")
	// ErrCiphertextCorrupted is returned when the ciphertext fails base64 decoding or is too short to contain a nonce.
	ErrCiphertextCorrupted = errors.New("crypto: ciphertext is corrupted or tampered")
	// ErrDecryptionFailed is returned when AES-GCM authentication fails, indicating tampering or a wrong key.
	ErrDecryptionFailed = errors.New("crypto: decryption operation failed")
	// ErrSaltTooShort is returned when the salt is shorter than MinSaltSize.
	ErrSaltTooShort = errors.New("crypto: salt must be at least 16 bytes")
	// ErrNoKey is returned when no encryption key is configured.
	ErrNoKey = errors.New("crypto: ENCRYPTION_KEY is not set")
)

// SecretCipher seals and opens short secrets with AES-256-GCM.
// Ciphertexts are base64url(nonce || sealed) and safe to store in a TEXT column.
type SecretCipher struct {
	aead cipher.AEAD
}

// NewSecretCipher creates a cipher from a 32-byte key.
func NewSecretCipher(key []byte) (*SecretCipher, error) {
	if len(key) != KeySize {
		return nil, ErrKeyLengthInvalid
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: failed to create block cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: failed to create GCM: %w", err)
	}
	return &SecretCipher{aead: aead}, nil
}

// DeriveSecretCipher creates a cipher by deriving a key from a passphrase with PBKDF2-SHA256.
func DeriveSecretCipher(passphrase string, salt []byte, iterations int) (*SecretCipher, error) {
	if len(salt) < MinSaltSize {
		return nil, ErrSaltTooShort
	}
	if iterations < 10_000 {
		iterations = DefaultIterations
	}
	return NewSecretCipher(pbkdf2.Key([]byte(passphrase), salt, iterations, KeySize, sha256.New))
}

// FromEncryptionKey builds the cipher configured by ENCRYPTION_KEY. A value that decodes
// (hex or base64) to exactly 32 bytes is used as the key; anything else is treated as a
// passphrase and stretched with PBKDF2.
func FromEncryptionKey(value string) (*SecretCipher, error) {
	if value == "" {
		return nil, ErrNoKey
	}
	if key, ok := decodeKey(value); ok {
		return NewSecretCipher(key)
	}
	return DeriveSecretCipher(value, []byte(passphraseSalt), DefaultIterations)
}

func decodeKey(value string) ([]byte, bool) {
	if b, err := hex.DecodeString(value); err == nil && len(b) == KeySize {
		return b, true
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		if b, err := enc.DecodeString(value); err == nil && len(b) == KeySize {
			return b, true
		}
	}
	return nil, false
}

// Seal encrypts plaintext. The empty string seals to the empty string.
func (c *SecretCipher) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("crypto: failed to read nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal.
func (c *SecretCipher) Open(encoded string) (string, error) {
	if encoded == "" {
		return "", nil
	}
	raw, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrCiphertextCorrupted
	}
	n := c.aead.NonceSize()
	if len(raw) < n {
		return "", ErrCiphertextCorrupted
	}
	plaintext, err := c.aead.Open(nil, raw[:n], raw[n:], nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}

// GenerateKey returns a random 32-byte key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

// GenerateSalt returns a random salt of at least MinSaltSize bytes.
func GenerateSalt(length int) ([]byte, error) {
	if length < MinSaltSize {
		length = MinSaltSize
	}
	salt := make([]byte, length)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	return salt, nil
}
