package signature

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/faults"
)

func newSignedFixture(t *testing.T, canonical string) (string, []byte) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "gateway-test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})

	digest := sha1.Sum([]byte(canonical))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA1, digest[:])
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return base64.StdEncoding.EncodeToString(sig), certPEM
}

func TestVerifyRoundTrip(t *testing.T) {
	canonical := "https://pay.example.com/handler?o.CustomerKey=abc&amount=150000&result_code=1"
	sigB64, certPEM := newSignedFixture(t, canonical)

	if err := Verify(canonical, sigB64, certPEM); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}
}

func TestVerifyDetectsMutation(t *testing.T) {
	canonical := "https://pay.example.com/handler?o.CustomerKey=abc&amount=150000"
	sigB64, certPEM := newSignedFixture(t, canonical)

	// one byte of the signed string changed
	if err := Verify(canonical+"x", sigB64, certPEM); err == nil {
		t.Fatal("mutated canonical string accepted")
	} else if !faults.IsKind(err, faults.SignatureInvalid) {
		t.Fatalf("wrong fault kind: %v", faults.KindOf(err))
	}

	// one byte of the signature changed
	raw, _ := base64.StdEncoding.DecodeString(sigB64)
	raw[0] ^= 0x01
	mutated := base64.StdEncoding.EncodeToString(raw)
	if err := Verify(canonical, mutated, certPEM); err == nil {
		t.Fatal("mutated signature accepted")
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	_, certPEM := newSignedFixture(t, "anything")

	if err := Verify("anything", "%%%not-base64%%%", certPEM); !faults.IsKind(err, faults.SignatureInvalid) {
		t.Fatalf("bad base64: got %v", err)
	}
	if err := Verify("anything", "AAAA", []byte("not a pem")); !faults.IsKind(err, faults.SignatureInvalid) {
		t.Fatalf("bad certificate: got %v", err)
	}
}

func TestCanonicalURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{
			"https://h.example.com/cb?a=1&b=2&signature=Zm9v",
			"https://h.example.com/cb?a=1&b=2",
		},
		{
			"https://h.example.com/cb?a=1&signature=Zm9v&c=3",
			"https://h.example.com/cb?a=1",
		},
		{
			"https://h.example.com/cb?a=1",
			"https://h.example.com/cb?a=1",
		},
	}
	for _, tt := range tests {
		if got := CanonicalURL(tt.in); got != tt.want {
			t.Errorf("CanonicalURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
