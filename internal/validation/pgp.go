// pgp.go validates ASCII-armored OpenPGP public keys used to encrypt log exports.
package validation

import (
	"strings"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"

	"github.com/mailnow/mailnow-admin/internal/apperr"
)

const (
	pgpBeginMarker = "-----BEGIN PGP PUBLIC KEY BLOCK-----"
	pgpEndMarker   = "-----END PGP PUBLIC KEY BLOCK-----"
)

// ParsePGPRecipients parses an armored public key block and returns its entities. Every
// entity must carry a usable encryption key.
func ParsePGPRecipients(field, keyArmored string) (openpgp.EntityList, error) {
	keyArmored = NormalizePGPKey(keyArmored)
	if strings.TrimSpace(keyArmored) == "" {
		return nil, apperr.Invalid(field, "is required")
	}
	begin := strings.Index(keyArmored, pgpBeginMarker)
	end := strings.Index(keyArmored, pgpEndMarker)
	if begin < 0 || end < 0 || end < begin {
		return nil, apperr.Invalid(field, "is not an armored PGP public key block")
	}

	entities, err := openpgp.ReadArmoredKeyRing(strings.NewReader(keyArmored))
	if err != nil {
		return nil, apperr.Invalid(field, "failed to parse PGP public key: %v", err)
	}
	if len(entities) == 0 {
		return nil, apperr.Invalid(field, "contains no keys")
	}
	for _, e := range entities {
		if _, ok := e.EncryptionKey(time.Now()); !ok {
			return nil, apperr.Invalid(field, "key %X has no usable encryption subkey", e.PrimaryKey.Fingerprint)
		}
	}
	return entities, nil
}

// NormalizePGPKey converts CRLF line endings and ensures a trailing newline.
func NormalizePGPKey(key string) string {
	key = strings.TrimSpace(strings.ReplaceAll(key, "\r\n", "\n"))
	if key == "" {
		return ""
	}
	return key + "\n"
}
