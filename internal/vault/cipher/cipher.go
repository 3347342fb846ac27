// Package cipher implements the vault's encryption engine: AES-256-GCM
// authenticated encryption of secret values under a single organization-wide
// master key. The engine is constructed once at process start and passed to
// every component that needs it.
package cipher

import (
	"crypto/aes"
	gocipher "crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
)

const (
	// KeySize is the master key length in bytes (AES-256).
	KeySize = 32
	// NonceSize is the GCM nonce length in bytes.
	NonceSize = 12
	// TagSize is the GCM authentication tag length appended to the ciphertext.
	TagSize = 16
)

// ErrDecrypt is returned for any failure to open an envelope: tag mismatch,
// truncated input, or malformed encoding. No partial plaintext is ever
// returned alongside it.
var ErrDecrypt = errors.New("cipher: decryption failed")

// Engine seals and opens secret values with a fixed master key.
type Engine struct {
	aead gocipher.AEAD
}

// New constructs an Engine from a raw 32-byte master key.
func New(key []byte) (*Engine, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("cipher: master key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cipher: new cipher: %w", err)
	}
	aead, err := gocipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher: new gcm: %w", err)
	}
	return &Engine{aead: aead}, nil
}

// NewFromHex constructs an Engine from a hex-encoded master key, the form the
// key is provisioned in configuration.
func NewFromHex(hexKey string) (*Engine, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("cipher: decode master key: %w", err)
	}
	return New(key)
}

// Seal encrypts plaintext with a fresh random nonce. The returned ciphertext
// has the 16-byte authentication tag appended.
func (e *Engine) Seal(plaintext []byte) (ciphertext, nonce []byte, err error) {
	nonce = make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("cipher: generate nonce: %w", err)
	}
	ciphertext = e.aead.Seal(nil, nonce, plaintext, nil)
	return ciphertext, nonce, nil
}

// Open decrypts ciphertext produced by Seal. It fails closed with ErrDecrypt
// on any tamper or truncation.
func (e *Engine) Open(ciphertext, nonce []byte) ([]byte, error) {
	if len(nonce) != NonceSize || len(ciphertext) < TagSize {
		return nil, ErrDecrypt
	}
	plaintext, err := e.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

// SealString encrypts a secret string into the persisted envelope form:
// base64(ciphertext || tag) plus a sibling base64 nonce.
func (e *Engine) SealString(secret string) (encrypted, nonce string, err error) {
	ct, n, err := e.Seal([]byte(secret))
	if err != nil {
		return "", "", err
	}
	return base64.StdEncoding.EncodeToString(ct), base64.StdEncoding.EncodeToString(n), nil
}

// OpenString decrypts an envelope produced by SealString. Malformed base64 in
// either field is treated the same as a tag mismatch.
func (e *Engine) OpenString(encrypted, nonce string) (string, error) {
	ct, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return "", ErrDecrypt
	}
	n, err := base64.StdEncoding.DecodeString(nonce)
	if err != nil {
		return "", ErrDecrypt
	}
	plaintext, err := e.Open(ct, n)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
