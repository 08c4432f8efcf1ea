package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

const envelopePrefix = "enc:v1:"

var (
	ErrKeyRequired       = errors.New("vault key material is required")
	ErrMalformedEnvelope = errors.New("malformed token envelope")
	ErrUnknownKeyID      = errors.New("token envelope references unknown key id")
	ErrDecryptFailed     = errors.New("token envelope authentication failed")
)

// Vault encrypts provider access tokens at rest using an AEAD envelope of the
// form enc:v1:<key_id>:<base64url(nonce||ciphertext)>. The key id is embedded
// so rotated deployments can still decrypt older rows.
type Vault struct {
	keyID string
	key   []byte
}

// New derives a fixed-size AEAD key from the supplied key material.
// Key material is process-wide and immutable after init.
func New(keyID string, keyMaterial string) (*Vault, error) {
	if strings.TrimSpace(keyID) == "" || strings.TrimSpace(keyMaterial) == "" {
		return nil, ErrKeyRequired
	}
	derived := sha256.Sum256([]byte(keyMaterial))
	return &Vault{
		keyID: keyID,
		key:   derived[:],
	}, nil
}

// Encrypt seals plaintext into an envelope string. Inputs that already carry
// the envelope prefix are returned unchanged so repeated writes stay stable.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	if strings.HasPrefix(plaintext, envelopePrefix) {
		return plaintext, nil
	}

	aead, err := chacha20poly1305.NewX(v.key)
	if err != nil {
		return "", fmt.Errorf("init aead: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), []byte(v.keyID))
	encoded := base64.RawURLEncoding.EncodeToString(sealed)
	return envelopePrefix + v.keyID + ":" + encoded, nil
}

// Decrypt opens a stored value.
// Values without the envelope prefix are legacy plaintext; they are returned
// as-is with requiresMigration=true so the caller re-encrypts the column in
// the same transaction.
func (v *Vault) Decrypt(stored string) (plaintext string, requiresMigration bool, err error) {
	if stored == "" {
		return "", false, nil
	}
	if !strings.HasPrefix(stored, envelopePrefix) {
		return stored, true, nil
	}

	parts := strings.SplitN(stored, ":", 4)
	if len(parts) != 4 || parts[2] == "" || parts[3] == "" {
		return "", false, ErrMalformedEnvelope
	}
	keyID := parts[2]
	if keyID != v.keyID {
		return "", false, fmt.Errorf("%w: %s", ErrUnknownKeyID, keyID)
	}

	raw, err := base64.RawURLEncoding.DecodeString(parts[3])
	if err != nil {
		return "", false, ErrMalformedEnvelope
	}

	aead, err := chacha20poly1305.NewX(v.key)
	if err != nil {
		return "", false, fmt.Errorf("init aead: %w", err)
	}
	if len(raw) < aead.NonceSize() {
		return "", false, ErrMalformedEnvelope
	}

	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	opened, err := aead.Open(nil, nonce, ciphertext, []byte(keyID))
	if err != nil {
		return "", false, ErrDecryptFailed
	}
	return string(opened), false, nil
}
