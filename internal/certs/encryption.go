package certs

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// Encryption is the AES-256-CBC codec certificate material is stored with.
// Key and IV are derived from two configured secrets: the first 32 hex
// characters of SHA-512(key secret) and the first 16 hex characters of
// SHA-512(IV secret). Ciphertext on the wire is base64 over a hex string.
// The derivation matches the records already present in encrypted_storage
// and cannot be changed without re-encrypting them.
type Encryption struct {
	key []byte
	iv  []byte
}

func NewEncryption(secretKey, secretIV string) *Encryption {
	keyDigest := sha512.Sum512([]byte(secretKey))
	ivDigest := sha512.Sum512([]byte(secretIV))
	return &Encryption{
		key: []byte(hex.EncodeToString(keyDigest[:])[:32]),
		iv:  []byte(hex.EncodeToString(ivDigest[:])[:16]),
	}
}

// Encrypt is the inverse of Decrypt; kept for provisioning tooling.
func (e *Encryption) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(e.key)
	if err != nil {
		return "", fmt.Errorf("failed to build cipher: %w", err)
	}

	padded := pkcs7Pad([]byte(plaintext), block.BlockSize())
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, e.iv).CryptBlocks(out, padded)

	return base64.StdEncoding.EncodeToString([]byte(hex.EncodeToString(out))), nil
}

// Decrypt recovers a stored certificate PEM.
func (e *Encryption) Decrypt(encoded string) (string, error) {
	hexed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64 layer: %w", err)
	}
	raw, err := hex.DecodeString(string(hexed))
	if err != nil {
		return "", fmt.Errorf("failed to decode hex layer: %w", err)
	}

	block, err := aes.NewCipher(e.key)
	if err != nil {
		return "", fmt.Errorf("failed to build cipher: %w", err)
	}
	if len(raw) == 0 || len(raw)%block.BlockSize() != 0 {
		return "", fmt.Errorf("ciphertext length %d is not a multiple of the block size", len(raw))
	}

	out := make([]byte, len(raw))
	cipher.NewCBCDecrypter(block, e.iv).CryptBlocks(out, raw)

	unpadded, err := pkcs7Unpad(out, block.BlockSize())
	if err != nil {
		return "", err
	}
	return string(unpadded), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	out := make([]byte, len(data)+padding)
	copy(out, data)
	for i := len(data); i < len(out); i++ {
		out[i] = byte(padding)
	}
	return out
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	padding := int(data[len(data)-1])
	if padding < 1 || padding > blockSize || padding > len(data) {
		return nil, fmt.Errorf("invalid padding")
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, fmt.Errorf("invalid padding")
		}
	}
	return data[:len(data)-padding], nil
}
