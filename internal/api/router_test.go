package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/mailnow/mailnow-admin/internal/config"
	"github.com/mailnow/mailnow-admin/internal/storage"
	"github.com/mailnow/mailnow-admin/internal/storage/local"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ---------------------------------------------------------------------------
// minimal storage.Storage mock for readiness tests
// ---------------------------------------------------------------------------

type readinessMockStorage struct{ existsErr error }

func (m *readinessMockStorage) Upload(_ context.Context, _ string, _ io.Reader, _ int64) (*storage.UploadResult, error) {
	return nil, nil
}
func (m *readinessMockStorage) Download(_ context.Context, _ string) (io.ReadCloser, error) {
	return nil, nil
}
func (m *readinessMockStorage) Delete(_ context.Context, _ string) error { return nil }
func (m *readinessMockStorage) GetURL(_ context.Context, _ string, _ time.Duration) (string, error) {
	return "", nil
}
func (m *readinessMockStorage) Exists(_ context.Context, _ string) (bool, error) {
	return m.existsErr == nil, m.existsErr
}

func newHealthDB(t *testing.T, pingOK bool) *sqlx.DB {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if pingOK {
		mock.ExpectPing()
	} else {
		mock.ExpectPing().WillReturnError(sql.ErrConnDone)
	}
	return sqlx.NewDb(db, "postgres")
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
	return body
}

// ---------------------------------------------------------------------------
// System endpoints
// ---------------------------------------------------------------------------

func TestRootHandler(t *testing.T) {
	r := gin.New()
	r.GET("/", rootHandler())

	w := get(r, "/")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	want := `{"data":null,"message":"Admin Service is working","status":"success"}`
	if w.Body.String() != want {
		t.Errorf("body = %s, want %s", w.Body.String(), want)
	}
}

func TestHealthCheckHandler(t *testing.T) {
	tests := []struct {
		name       string
		pingOK     bool
		wantStatus int
		wantField  string
	}{
		{"healthy", true, http.StatusOK, "healthy"},
		{"unhealthy", false, http.StatusServiceUnavailable, "unhealthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/health", healthCheckHandler(newHealthDB(t, tt.pingOK)))

			w := get(r, "/health")
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if got := decodeBody(t, w)["status"]; got != tt.wantField {
				t.Errorf("status field = %v, want %s", got, tt.wantField)
			}
		})
	}
}

func TestReadinessHandler(t *testing.T) {
	tests := []struct {
		name        string
		pingOK      bool
		storageErr  error
		wantStatus  int
		wantStorage any
	}{
		{"ready", true, nil, http.StatusOK, "healthy"},
		{"database down", false, nil, http.StatusServiceUnavailable, nil},
		{"storage down", true, io.ErrUnexpectedEOF, http.StatusServiceUnavailable, "unhealthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/ready", readinessHandler(newHealthDB(t, tt.pingOK), &readinessMockStorage{existsErr: tt.storageErr}))

			w := get(r, "/ready")
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			checks, _ := decodeBody(t, w)["checks"].(map[string]any)
			if checks["storage"] != tt.wantStorage {
				t.Errorf("checks.storage = %v, want %v", checks["storage"], tt.wantStorage)
			}
		})
	}
}

func TestVersionHandler(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1.4.2", "1.4.2"},
		{"", "dev"},
	}
	for _, tt := range tests {
		r := gin.New()
		r.GET("/version", versionHandler(tt.in))
		body := decodeBody(t, get(r, "/version"))
		if body["version"] != tt.want || body["api_version"] != "v1" {
			t.Errorf("versionHandler(%q) body = %v", tt.in, body)
		}
	}
}

// ---------------------------------------------------------------------------
// LoggerMiddleware
// ---------------------------------------------------------------------------

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestLoggerMiddleware(t *testing.T) {
	buf := captureLogs(t)
	cfg := &config.Config{Telemetry: config.TelemetryConfig{ServiceName: "mailnow-admin"}}

	r := gin.New()
	r.Use(LoggerMiddleware(cfg))
	r.GET("/api/v1/files/*filepath", func(c *gin.Context) { c.Status(http.StatusForbidden) })
	get(r, "/api/v1/files/exports/9/a.jsonl?expires=1&signature=deadbeef")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log record %q: %v", buf.String(), err)
	}
	if rec["level"] != "WARN" {
		t.Errorf("level = %v, want WARN for a 403", rec["level"])
	}
	if rec["query"] != "expires=1&signature=REDACTED" {
		t.Errorf("query = %v", rec["query"])
	}
	if rec["service"] != "mailnow-admin" || rec["status"] != float64(http.StatusForbidden) {
		t.Errorf("record = %v", rec)
	}
}

func TestLoggerMiddleware_ProbesAtDebug(t *testing.T) {
	buf := captureLogs(t)
	r := gin.New()
	r.Use(LoggerMiddleware(&config.Config{}))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	get(r, "/health")

	if !strings.Contains(buf.String(), `"level":"DEBUG"`) {
		t.Errorf("log = %s, want a debug record", buf.String())
	}
}

func TestRedactQuery(t *testing.T) {
	tests := map[string]string{
		"":                          "",
		"status=failed&limit=10":    "status=failed&limit=10",
		"signature=abc":             "signature=REDACTED",
		"expires=9&signature=abc&x": "expires=9&signature=REDACTED&x",
	}
	for in, want := range tests {
		if got := redactQuery(in); got != want {
			t.Errorf("redactQuery(%q) = %q, want %q", in, got, want)
		}
	}
}

// ---------------------------------------------------------------------------
// CORSMiddleware
// ---------------------------------------------------------------------------

func corsRouter(origins, methods []string) *gin.Engine {
	cfg := &config.Config{Security: config.SecurityConfig{CORS: config.CORSConfig{
		AllowedOrigins: origins,
		AllowedMethods: methods,
	}}}
	r := gin.New()
	r.Use(CORSMiddleware(cfg))
	r.GET("/api/v1/choices", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestCORSMiddleware(t *testing.T) {
	tests := []struct {
		name        string
		origins     []string
		origin      string
		wantAllow   string
		wantMethods string
	}{
		{"allowed origin", []string{"https://app.mailnow.io"}, "https://app.mailnow.io", "https://app.mailnow.io", "GET, POST, PUT, PATCH, DELETE, OPTIONS"},
		{"wildcard echoes origin", []string{"*"}, "https://other.io", "https://other.io", "GET, POST, PUT, PATCH, DELETE, OPTIONS"},
		{"wildcard without origin", []string{"*"}, "", "*", "GET, POST, PUT, PATCH, DELETE, OPTIONS"},
		{"disallowed", []string{"https://app.mailnow.io"}, "https://evil.io", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/choices", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			corsRouter(tt.origins, nil).ServeHTTP(w, req)

			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantAllow)
			}
			if got := w.Header().Get("Access-Control-Allow-Methods"); got != tt.wantMethods {
				t.Errorf("Allow-Methods = %q, want %q", got, tt.wantMethods)
			}
		})
	}
}

func TestCORSMiddleware_APIKeyHeaderAndConfiguredMethods(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/choices", nil)
	req.Header.Set("Origin", "https://app.mailnow.io")
	w := httptest.NewRecorder()
	corsRouter([]string{"https://app.mailnow.io"}, []string{"GET", "POST"}).ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST" {
		t.Errorf("Allow-Methods = %q", got)
	}
	if !strings.Contains(w.Header().Get("Access-Control-Allow-Headers"), "X-API-Key") {
		t.Errorf("Allow-Headers = %q, want X-API-Key", w.Header().Get("Access-Control-Allow-Headers"))
	}
}

// ---------------------------------------------------------------------------
// fileDownloadHandler
// ---------------------------------------------------------------------------

func newLocalStore(t *testing.T) *local.LocalStorage {
	t.Helper()
	store, err := local.New(&config.LocalStorageConfig{BasePath: t.TempDir()}, "http://mail.test", []byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("local.New: %v", err)
	}
	if _, err := store.Upload(context.Background(), "exports/9/logs.jsonl", strings.NewReader(`{"id":1}`+"\n"), -1); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	return store
}

func TestFileDownloadHandler(t *testing.T) {
	store := newLocalStore(t)
	r := gin.New()
	r.GET("/api/v1/files/*filepath", fileDownloadHandler(store, store))

	signed, err := store.GetURL(context.Background(), "exports/9/logs.jsonl", time.Hour)
	if err != nil {
		t.Fatalf("GetURL: %v", err)
	}
	path := strings.TrimPrefix(signed, "http://mail.test")

	w := get(r, path)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if w.Body.String() != `{"id":1}`+"\n" {
		t.Errorf("body = %q", w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); cd != `attachment; filename="logs.jsonl"` {
		t.Errorf("Content-Disposition = %q", cd)
	}
}

func TestFileDownloadHandler_Rejections(t *testing.T) {
	store := newLocalStore(t)
	r := gin.New()
	r.GET("/api/v1/files/*filepath", fileDownloadHandler(store, store))

	signed, err := store.GetURL(context.Background(), "exports/9/logs.jsonl", time.Hour)
	if err != nil {
		t.Fatalf("GetURL: %v", err)
	}
	valid := strings.TrimPrefix(signed, "http://mail.test")

	tests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{"unsigned", "/api/v1/files/exports/9/logs.jsonl", http.StatusForbidden},
		{"tampered path", strings.Replace(valid, "exports/9/", "exports/8/", 1), http.StatusForbidden},
		{"expired", "/api/v1/files/exports/9/logs.jsonl?expires=1&signature=00", http.StatusForbidden},
		{"empty path", "/api/v1/files/", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := get(r, tt.path); w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestFileDownloadHandler_DeletedAfterSigning(t *testing.T) {
	store := newLocalStore(t)
	r := gin.New()
	r.GET("/api/v1/files/*filepath", fileDownloadHandler(store, store))

	signed, err := store.GetURL(context.Background(), "exports/9/logs.jsonl", time.Hour)
	if err != nil {
		t.Fatalf("GetURL: %v", err)
	}
	if err := store.Delete(context.Background(), "exports/9/logs.jsonl"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if w := get(r, strings.TrimPrefix(signed, "http://mail.test")); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

// ---------------------------------------------------------------------------
// NewRouter
// ---------------------------------------------------------------------------

func TestNewRouter_Routes(t *testing.T) {
	mockDB, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })

	cfg := &config.Config{
		Storage: config.StorageConfig{
			DefaultBackend: "local",
			Local:          config.LocalStorageConfig{BasePath: t.TempDir()},
		},
		Auth:          config.AuthConfig{JWTSecret: strings.Repeat("s", 32), JWTExpiry: time.Hour},
		Telemetry:     config.TelemetryConfig{MetricsEnabled: true},
		Credits:       config.CreditsConfig{ResetCheckInterval: time.Hour},
		EncryptionKey: "correct horse battery staple",
	}

	router, bg, err := NewRouter(cfg, Options{DB: sqlx.NewDb(mockDB, "postgres"), Version: "test"})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	t.Cleanup(bg.Shutdown)

	registered := map[string]bool{}
	for _, rt := range router.Routes() {
		registered[rt.Method+" "+rt.Path] = true
	}
	for _, want := range []string{
		"GET /",
		"GET /metrics",
		"GET /api/v1/choices",
		"GET /api/v1/files/*filepath",
		"POST /api/v1/auth/signup",
		"POST /api/v1/auth/login",
		"POST /api/v1/auth/verify-email",
		"GET /api/v1/auth/verify-email",
		"POST /api/v1/team/accept-invite",
		"GET /api/v1/user/profile",
		"PUT /api/v1/user/password",
		"GET /api/v1/admin/companies",
		"PUT /api/v1/companies/:company_id/pricing-tier",
		"POST /api/v1/companies/:company_id/api-keys/:id/revoke",
		"PATCH /api/v1/companies/:company_id/smtp-profiles/:id/set-default",
		"GET /api/v1/companies/:company_id/templates/stats",
		"POST /api/v1/companies/:company_id/team/invite",
		"POST /api/v1/companies/:company_id/logs/export",
		"GET /api/v1/companies/:company_id/dashboard/stats",
		"POST /v1/email/send",
		"GET /v1/email/status/:message_id",
		"GET /v1/logs",
		"GET /v1/webhooks",
		"PUT /v1/webhooks/:id",
	} {
		if !registered[want] {
			t.Errorf("route %q not registered", want)
		}
	}

	// Unauthenticated calls are rejected before reaching any handler.
	for _, path := range []string{"/api/v1/companies/1", "/v1/logs"} {
		if w := get(router, path); w.Code != http.StatusUnauthorized {
			t.Errorf("GET %s status = %d, want 401", path, w.Code)
		}
	}
}

func TestNewRouter_BadEncryptionKey(t *testing.T) {
	cfg := &config.Config{
		Storage: config.StorageConfig{
			DefaultBackend: "local",
			Local:          config.LocalStorageConfig{BasePath: t.TempDir()},
		},
	}
	if _, _, err := NewRouter(cfg, Options{}); err == nil {
		t.Error("NewRouter without ENCRYPTION_KEY succeeded")
	}
}
