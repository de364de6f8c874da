package validation

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"

	"github.com/mailnow/mailnow-admin/internal/apperr"
)

// generateTestPGPKey returns an ASCII-armored public key generated on the fly.
func generateTestPGPKey(t *testing.T) string {
	t.Helper()
	entity, err := openpgp.NewEntity("Export Recipient", "test", "exports@example.com", nil)
	if err != nil {
		t.Fatalf("openpgp.NewEntity() error: %v", err)
	}

	var buf bytes.Buffer
	w, err := armor.Encode(&buf, openpgp.PublicKeyType, nil)
	if err != nil {
		t.Fatalf("armor.Encode() error: %v", err)
	}
	if err := entity.Serialize(w); err != nil {
		t.Fatalf("entity.Serialize() error: %v", err)
	}
	w.Close()
	return buf.String()
}

// ---------------------------------------------------------------------------
// ParsePGPRecipients
// ---------------------------------------------------------------------------

func TestParsePGPRecipients(t *testing.T) {
	t.Run("valid generated key", func(t *testing.T) {
		key := generateTestPGPKey(t)
		entities, err := ParsePGPRecipients("pgp_public_key", key)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(entities) != 1 {
			t.Errorf("len(entities) = %d, want 1", len(entities))
		}
	})

	t.Run("CRLF line endings accepted", func(t *testing.T) {
		key := strings.ReplaceAll(generateTestPGPKey(t), "\n", "\r\n")
		if _, err := ParsePGPRecipients("pgp_public_key", key); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	tests := []struct {
		name string
		key  string
	}{
		{"empty", ""},
		{"blank", "   \n"},
		{"missing begin marker", "abc\n-----END PGP PUBLIC KEY BLOCK-----"},
		{"missing end marker", "-----BEGIN PGP PUBLIC KEY BLOCK-----\nabc"},
		{"markers reversed", "-----END PGP PUBLIC KEY BLOCK-----\n-----BEGIN PGP PUBLIC KEY BLOCK-----"},
		{"garbage body", "-----BEGIN PGP PUBLIC KEY BLOCK-----\n\nnot base64!!\n-----END PGP PUBLIC KEY BLOCK-----\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePGPRecipients("pgp_public_key", tt.key)
			if !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestNormalizePGPKey(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"  \r\n", ""},
		{"a\r\nb", "a\nb\n"},
		{"a\nb\n\n", "a\nb\n"},
	}
	for _, tt := range tests {
		if got := NormalizePGPKey(tt.in); got != tt.want {
			t.Errorf("NormalizePGPKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
