// Package local implements the filesystem storage backend. It suits development and
// single-node deployments; several instances would need a shared filesystem.
//
// Download URLs point back at this service (/api/v1/files/<path>) and carry an expiry and an
// HMAC-SHA256 signature, so they work without a session and stop working after their TTL.
package local

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mailnow/mailnow-admin/internal/config"
	"github.com/mailnow/mailnow-admin/internal/storage"
)

// FilesRoute is the path prefix under which signed downloads are served.
const FilesRoute = "/api/v1/files/"

var (
	// ErrURLExpired is returned by VerifyURL for a URL past its expiry.
	ErrURLExpired = errors.New("download URL has expired")
	// ErrBadSignature is returned by VerifyURL when the signature does not match.
	ErrBadSignature = errors.New("download URL signature is invalid")
)

func init() {
	storage.Register("local", func(cfg *config.Config) (storage.Storage, error) {
		key := cfg.Storage.Local.SigningKey
		if key == "" {
			key = cfg.Auth.JWTSecret
		}
		return New(&cfg.Storage.Local, cfg.Server.BaseURL, []byte(key))
	})
}

// LocalStorage implements storage.Storage on the local filesystem
type LocalStorage struct {
	basePath   string
	baseURL    string
	signingKey []byte
}

// New creates a local backend rooted at cfg.BasePath. An empty signingKey is replaced by a
// random one, which invalidates issued URLs on restart.
func New(cfg *config.LocalStorageConfig, serverBaseURL string, signingKey []byte) (*LocalStorage, error) {
	if err := os.MkdirAll(cfg.BasePath, 0750); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	base, err := filepath.Abs(cfg.BasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage directory: %w", err)
	}
	if len(signingKey) == 0 {
		signingKey = make([]byte, 32)
		if _, err := rand.Read(signingKey); err != nil {
			return nil, fmt.Errorf("failed to generate url signing key: %w", err)
		}
	}
	return &LocalStorage{
		basePath:   base,
		baseURL:    strings.TrimRight(serverBaseURL, "/"),
		signingKey: signingKey,
	}, nil
}

// resolve maps an object path to a file under basePath, rejecting escapes.
func (s *LocalStorage) resolve(path string) (string, error) {
	full := filepath.Join(s.basePath, filepath.FromSlash(path))
	if full != s.basePath && !strings.HasPrefix(full, s.basePath+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid storage path: %s", path)
	}
	return full, nil
}

// Upload stores a file in the local filesystem
func (s *LocalStorage) Upload(ctx context.Context, path string, reader io.Reader, size int64) (*storage.UploadResult, error) {
	fullPath, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0750); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	hasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(file, hasher), reader)
	if err != nil {
		_ = os.Remove(fullPath)
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	return &storage.UploadResult{
		Path:     path,
		Size:     written,
		Checksum: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// Download opens a file from the local filesystem
func (s *LocalStorage) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	fullPath, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// Delete removes a file and any parent directories it leaves empty
func (s *LocalStorage) Delete(ctx context.Context, path string) error {
	fullPath, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}

	dir := filepath.Dir(fullPath)
	for dir != s.basePath {
		if err := os.Remove(dir); err != nil {
			break
		}
		dir = filepath.Dir(dir)
	}
	return nil
}

// GetURL returns a signed download URL served by this service.
func (s *LocalStorage) GetURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	exists, err := s.Exists(ctx, path)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", fmt.Errorf("%s: %w", path, storage.ErrNotFound)
	}

	expires := strconv.FormatInt(time.Now().Add(ttl).Unix(), 10)
	q := url.Values{}
	q.Set("expires", expires)
	q.Set("signature", s.sign(path, expires))
	return s.baseURL + FilesRoute + path + "?" + q.Encode(), nil
}

// VerifyURL checks the expiry and signature of a URL issued by GetURL.
func (s *LocalStorage) VerifyURL(path, expires, signature string, now time.Time) error {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return ErrBadSignature
	}
	want, err := hex.DecodeString(s.sign(path, expires))
	if err != nil {
		return ErrBadSignature
	}
	got, err := hex.DecodeString(signature)
	if err != nil || !hmac.Equal(got, want) {
		return ErrBadSignature
	}
	if now.Unix() >= exp {
		return ErrURLExpired
	}
	return nil
}

func (s *LocalStorage) sign(path, expires string) string {
	mac := hmac.New(sha256.New, s.signingKey)
	mac.Write([]byte(path))
	mac.Write([]byte{'\n'})
	mac.Write([]byte(expires))
	return hex.EncodeToString(mac.Sum(nil))
}

// Exists checks if a file exists at the specified path
func (s *LocalStorage) Exists(ctx context.Context, path string) (bool, error) {
	fullPath, err := s.resolve(path)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(fullPath); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check file existence: %w", err)
	}
	return true, nil
}
