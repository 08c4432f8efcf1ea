package secrets

import (
	"errors"
	"strings"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	vault, err := New("k1", "unit-test-key-material")
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}

	envelope, err := vault.Encrypt("discogs-access-token")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if !strings.HasPrefix(envelope, "enc:v1:k1:") {
		t.Fatalf("unexpected envelope shape: %s", envelope)
	}

	plaintext, migrate, err := vault.Decrypt(envelope)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if migrate {
		t.Fatal("fresh envelope must not request migration")
	}
	if plaintext != "discogs-access-token" {
		t.Fatalf("round trip mismatch: %q", plaintext)
	}
}

func TestEncryptIsEnvelopeIdempotent(t *testing.T) {
	vault, err := New("k1", "unit-test-key-material")
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}
	first, err := vault.Encrypt("secret")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	second, err := vault.Encrypt(first)
	if err != nil {
		t.Fatalf("re-encrypt: %v", err)
	}
	if first != second {
		t.Fatal("encrypting an envelope must return it unchanged")
	}
}

func TestDecryptLegacyPlaintextSignalsMigration(t *testing.T) {
	vault, err := New("k1", "unit-test-key-material")
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}

	plaintext, migrate, err := vault.Decrypt("legacy-plaintext-token")
	if err != nil {
		t.Fatalf("decrypt legacy: %v", err)
	}
	if !migrate {
		t.Fatal("legacy plaintext must request migration")
	}
	if plaintext != "legacy-plaintext-token" {
		t.Fatalf("legacy plaintext mismatch: %q", plaintext)
	}
}

func TestDecryptEmptyValue(t *testing.T) {
	vault, err := New("k1", "unit-test-key-material")
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}
	plaintext, migrate, err := vault.Decrypt("")
	if err != nil || migrate || plaintext != "" {
		t.Fatalf("empty value should decrypt to empty: %q %v %v", plaintext, migrate, err)
	}
}

func TestDecryptTamperedEnvelopeFails(t *testing.T) {
	vault, err := New("k1", "unit-test-key-material")
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}
	envelope, err := vault.Encrypt("secret")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	tampered := envelope[:len(envelope)-2] + "xx"
	if _, _, err := vault.Decrypt(tampered); err == nil {
		t.Fatal("tampered envelope must fail authentication")
	}
}

func TestDecryptUnknownKeyID(t *testing.T) {
	vaultA, err := New("k1", "material-a")
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}
	vaultB, err := New("k2", "material-a")
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}

	envelope, err := vaultA.Encrypt("secret")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, _, err := vaultB.Decrypt(envelope); !errors.Is(err, ErrUnknownKeyID) {
		t.Fatalf("expected unknown key id, got %v", err)
	}
}

func TestDecryptMalformedEnvelope(t *testing.T) {
	vault, err := New("k1", "unit-test-key-material")
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}
	if _, _, err := vault.Decrypt("enc:v1:k1:"); !errors.Is(err, ErrMalformedEnvelope) {
		t.Fatalf("expected malformed envelope, got %v", err)
	}
	if _, _, err := vault.Decrypt("enc:v1:k1:%%%not-base64%%%"); !errors.Is(err, ErrMalformedEnvelope) {
		t.Fatalf("expected malformed envelope for bad base64, got %v", err)
	}
}
