package auth

import (
	"strings"
	"testing"
)

func TestGenerateAPIKey(t *testing.T) {
	t.Run("key has prefix and 32 hex chars", func(t *testing.T) {
		key, _, _, err := GenerateAPIKey()
		if err != nil {
			t.Fatalf("GenerateAPIKey() error: %v", err)
		}
		if !strings.HasPrefix(key, APIKeyPrefix) {
			t.Errorf("key = %q, want prefix %q", key, APIKeyPrefix)
		}
		if len(key) != len(APIKeyPrefix)+32 {
			t.Errorf("len(key) = %d, want %d", len(key), len(APIKeyPrefix)+32)
		}
		if !LooksLikeAPIKey(key) {
			t.Errorf("LooksLikeAPIKey(%q) = false", key)
		}
	})

	t.Run("digest matches HashAPIKey", func(t *testing.T) {
		key, digest, _, err := GenerateAPIKey()
		if err != nil {
			t.Fatalf("GenerateAPIKey() error: %v", err)
		}
		if digest != HashAPIKey(key) {
			t.Errorf("digest %q != HashAPIKey(key) %q", digest, HashAPIKey(key))
		}
		if len(digest) != 64 {
			t.Errorf("len(digest) = %d, want 64", len(digest))
		}
	})

	t.Run("display prefix is the first 12 chars", func(t *testing.T) {
		key, _, prefix, err := GenerateAPIKey()
		if err != nil {
			t.Fatalf("GenerateAPIKey() error: %v", err)
		}
		if prefix != key[:DisplayPrefixLength] {
			t.Errorf("prefix = %q, want %q", prefix, key[:DisplayPrefixLength])
		}
	})

	t.Run("keys are unique", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 100; i++ {
			key, _, _, err := GenerateAPIKey()
			if err != nil {
				t.Fatalf("GenerateAPIKey() error: %v", err)
			}
			if seen[key] {
				t.Fatalf("duplicate key generated: %q", key)
			}
			seen[key] = true
		}
	})
}

func TestHashAPIKey_Deterministic(t *testing.T) {
	if HashAPIKey("mk_live_abc") != HashAPIKey("mk_live_abc") {
		t.Error("HashAPIKey should be deterministic")
	}
	if HashAPIKey("mk_live_abc") == HashAPIKey("mk_live_abd") {
		t.Error("different keys should hash differently")
	}
}

func TestDisplayPrefix_ShortKey(t *testing.T) {
	if got := DisplayPrefix("short"); got != "short" {
		t.Errorf("DisplayPrefix(short) = %q", got)
	}
}

func TestLooksLikeAPIKey(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"mk_live_0123456789abcdef0123456789abcdef", true},
		{"mk_live_0123", false},
		{"eyJhbGciOiJIUzI1NiJ9.e30.sig", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := LooksLikeAPIKey(tt.in); got != tt.want {
			t.Errorf("LooksLikeAPIKey(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestExtractAPIKey(t *testing.T) {
	tests := []struct {
		name      string
		apiKey    string
		authz     string
		want      string
		wantError bool
	}{
		{name: "x-api-key header", apiKey: "mk_live_abc", want: "mk_live_abc"},
		{name: "x-api-key wins over bearer", apiKey: "mk_live_abc", authz: "Bearer mk_live_xyz", want: "mk_live_abc"},
		{name: "bearer api key", authz: "Bearer mk_live_xyz", want: "mk_live_xyz"},
		{name: "bearer jwt is not an api key", authz: "Bearer eyJhbGciOi", wantError: true},
		{name: "nothing", wantError: true},
		{name: "basic auth", authz: "Basic dXNlcjpwYXNz", wantError: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractAPIKey(tt.apiKey, tt.authz)
			if tt.wantError {
				if err == nil {
					t.Errorf("ExtractAPIKey() = %q, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractAPIKey() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ExtractAPIKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		want      string
		wantError bool
	}{
		{name: "valid", header: "Bearer token123", want: "token123"},
		{name: "trims whitespace", header: "Bearer   token123  ", want: "token123"},
		{name: "empty header", header: "", wantError: true},
		{name: "wrong scheme", header: "Token token123", wantError: true},
		{name: "bearer only", header: "Bearer ", wantError: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractBearerToken(tt.header)
			if tt.wantError {
				if err == nil {
					t.Errorf("ExtractBearerToken(%q) = %q, want error", tt.header, got)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ExtractBearerToken(%q) = %q, %v; want %q", tt.header, got, err, tt.want)
			}
		})
	}
}
