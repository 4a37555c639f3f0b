package certs

import (
	"context"
	"strings"
	"testing"

	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/ledger"
)

func TestEncryptionRoundTrip(t *testing.T) {
	enc := NewEncryption("key-secret", "iv-secret")

	tests := []string{
		"-----BEGIN CERTIFICATE-----\nMIIB\n-----END CERTIFICATE-----",
		"short",
		"exactly sixteen!",
		strings.Repeat("long certificate body ", 100),
	}
	for _, plaintext := range tests {
		encrypted, err := enc.Encrypt(plaintext)
		if err != nil {
			t.Fatalf("encrypt: %v", err)
		}
		decrypted, err := enc.Decrypt(encrypted)
		if err != nil {
			t.Fatalf("decrypt: %v", err)
		}
		if decrypted != plaintext {
			t.Errorf("round trip lost data: %q != %q", decrypted, plaintext)
		}
	}
}

func TestEncryptionKeyedBySecrets(t *testing.T) {
	a := NewEncryption("key-a", "iv-a")
	b := NewEncryption("key-b", "iv-a")

	encrypted, err := a.Encrypt("certificate material")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if decrypted, err := b.Decrypt(encrypted); err == nil && decrypted == "certificate material" {
		t.Error("wrong key recovered the plaintext")
	}
}

func TestDecryptRejectsGarbage(t *testing.T) {
	enc := NewEncryption("k", "v")

	if _, err := enc.Decrypt("%%%not-base64%%%"); err == nil {
		t.Error("bad base64 accepted")
	}
	if _, err := enc.Decrypt("bm90LWhleA=="); err == nil {
		t.Error("bad hex accepted")
	}
	// base64("abcd"): valid hex but two bytes, not a whole block
	if _, err := enc.Decrypt("YWJjZA=="); err == nil {
		t.Error("truncated ciphertext accepted")
	}
}

type mapSource map[string]ledger.EncryptedRecord

func (m mapSource) EncryptedRecordsByDestination(ctx context.Context, destination string) ([]ledger.EncryptedRecord, error) {
	var records []ledger.EncryptedRecord
	for _, r := range m {
		records = append(records, r)
	}
	return records, nil
}

func TestLoadAll(t *testing.T) {
	enc := NewEncryption("key-secret", "iv-secret")
	pem := "-----BEGIN CERTIFICATE-----\nAAAA\n-----END CERTIFICATE-----"
	encrypted, err := enc.Encrypt(pem)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	source := mapSource{
		"with-merchant": {
			Metadata: map[string]string{"merch_id": "merch-77"},
			Content:  encrypted,
		},
		"orphaned": {
			Metadata: map[string]string{},
			Content:  encrypted,
		},
	}

	cache, err := LoadAll(context.Background(), source, enc)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := cache.Get("merch-77"); got != pem {
		t.Errorf("cached certificate = %q, want the decrypted PEM", got)
	}
	if got := cache.Get("unknown"); got != "" {
		t.Errorf("unknown merchant returned %q", got)
	}
}
