// Package signature verifies the RSA-SHA1 signature the gateway attaches to
// every callback. The signed payload is the full callback URL with the
// signature query parameter removed.
package signature

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"strings"

	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/faults"
)

// CanonicalURL strips the signature parameter from the full callback URL,
// yielding the exact byte string the gateway signed.
func CanonicalURL(fullURL string) string {
	shortened, _, _ := strings.Cut(fullURL, "&signature=")
	return shortened
}

// Verify checks signatureB64 over canonical using the public key of the PEM
// certificate. Any failure is a terminal SignatureInvalid fault; a bad
// signature implies tampering or a broken caller, never a transient error.
func Verify(canonical, signatureB64 string, certificatePEM []byte) error {
	pub, err := publicKeyFromCertificate(certificatePEM)
	if err != nil {
		return faults.Wrap(faults.SignatureInvalid, err, "failed to extract public key")
	}

	sig, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return faults.Wrap(faults.SignatureInvalid, err, "signature is not valid base64")
	}

	digest := sha1.Sum([]byte(canonical))
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA1, digest[:], sig); err != nil {
		return faults.Wrap(faults.SignatureInvalid, err, "signature mismatch")
	}
	return nil
}

func publicKeyFromCertificate(certificatePEM []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(certificatePEM)
	if block == nil {
		return nil, fmt.Errorf("no PEM block in certificate")
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}

	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("certificate does not carry an RSA public key")
	}
	return pub, nil
}
