// Package vault provides field-level encryption for bank account numbers.
// Account numbers are only ever persisted as vault ciphertext; the file
// encoder decrypts them transiently while rendering and must not log or
// cache the plaintext.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// Vault encrypts and decrypts account numbers. Implementations must be safe
// for concurrent use.
type Vault interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

var errCiphertextTooShort = errors.New("ciphertext shorter than nonce")

// AESVault is an AES-256-GCM Vault. Ciphertexts are base64(nonce || sealed)
// with a random nonce per encryption, so encrypting the same account number
// twice yields different ciphertexts.
type AESVault struct {
	aead cipher.AEAD
}

// NewAESVault builds a vault from a hex-encoded 32-byte key.
func NewAESVault(hexKey string) (*AESVault, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decoding vault key: %w", err)
	}

	if len(key) != 32 {
		return nil, fmt.Errorf("vault key must be 32 bytes, got %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating gcm: %w", err)
	}

	return &AESVault{aead: aead}, nil
}

func (v *AESVault) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	sealed := v.aead.Seal(nonce, nonce, []byte(plaintext), nil)

	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (v *AESVault) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decoding ciphertext: %w", err)
	}

	if len(raw) < v.aead.NonceSize() {
		return "", errCiphertextTooShort
	}

	nonce, sealed := raw[:v.aead.NonceSize()], raw[v.aead.NonceSize():]

	plaintext, err := v.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("opening ciphertext: %w", err)
	}

	return string(plaintext), nil
}
