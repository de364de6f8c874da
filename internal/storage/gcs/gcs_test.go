package gcs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	appconfig "github.com/mailnow/mailnow-admin/internal/config"
	appstorage "github.com/mailnow/mailnow-admin/internal/storage"
)

// ---------------------------------------------------------------------------
// New(): constructor validation, no GCS connection required
// ---------------------------------------------------------------------------

func TestNew_MissingBucket(t *testing.T) {
	_, err := New(&appconfig.GCSStorageConfig{Bucket: ""})
	if err == nil {
		t.Error("New() = nil error, want error for missing bucket")
	}
}

func TestNew_InvalidCredentialsJSON(t *testing.T) {
	_, err := New(&appconfig.GCSStorageConfig{
		Bucket:          "my-bucket",
		CredentialsJSON: `not json`,
	})
	if err == nil {
		t.Error("New() = nil error, want error for malformed credentials JSON")
	}
}

func TestNew_MissingCredentialsFile(t *testing.T) {
	_, err := New(&appconfig.GCSStorageConfig{
		Bucket:          "my-bucket",
		CredentialsFile: "/nonexistent/credentials.json",
	})
	if err == nil {
		t.Error("New() = nil error, want error for missing credentials file")
	}
}

func TestNew_EmulatorEndpoint(t *testing.T) {
	s, err := New(&appconfig.GCSStorageConfig{
		Bucket:   "my-bucket",
		Endpoint: "http://127.0.0.1:4443/storage/v1/",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer s.Close()
	if s.bucket != "my-bucket" {
		t.Errorf("bucket = %q", s.bucket)
	}
}

// ---------------------------------------------------------------------------
// Missing objects against an emulator-style JSON API
// ---------------------------------------------------------------------------

func newEmptyBucket(t *testing.T) *GCSStorage {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/b/test-bucket/o/") {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"No such object"}}`))
	}))
	t.Cleanup(srv.Close)

	s, err := New(&appconfig.GCSStorageConfig{
		Bucket:   "test-bucket",
		Endpoint: srv.URL + "/storage/v1/",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestExists_Missing(t *testing.T) {
	s := newEmptyBucket(t)
	ok, err := s.Exists(context.Background(), "exports/3/a.jsonl")
	if err != nil || ok {
		t.Errorf("Exists = %v, %v; want false, nil", ok, err)
	}
}

func TestDelete_MissingSucceeds(t *testing.T) {
	s := newEmptyBucket(t)
	if err := s.Delete(context.Background(), "exports/3/a.jsonl"); err != nil {
		t.Errorf("Delete error: %v", err)
	}
}

func TestGetURL_Missing(t *testing.T) {
	s := newEmptyBucket(t)
	_, err := s.GetURL(context.Background(), "exports/3/a.jsonl", time.Minute)
	if !errors.Is(err, appstorage.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
