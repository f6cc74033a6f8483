// Package secretbox seals TOTP secrets with AES-256-GCM before they reach a
// profile store.
//
// Sealed values are base64 (standard alphabet) of nonce || ciphertext || tag,
// with a 12-byte nonce.
package secretbox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"strings"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

var (
	ErrInvalidKeyLength = errors.New("encryption key must be 32 bytes")
	ErrKeyNotSet        = errors.New("encryption key not set")
	ErrCipherTooShort   = errors.New("ciphertext too short")
	ErrFailedToSeal     = errors.New("failed to seal secret")
	ErrFailedToOpen     = errors.New("failed to open secret")
)

// Box seals and opens secrets with one key. It is safe for concurrent use.
type Box struct {
	aead cipher.AEAD
	rand io.Reader
}

// New builds a Box from a raw 32-byte key. A nil random source uses
// crypto/rand.
func New(key []byte, random io.Reader) (*Box, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeyLength
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if random == nil {
		random = rand.Reader
	}
	return &Box{aead: aead, rand: random}, nil
}

// ParseKey decodes a base64 key as produced by [GenerateKey].
func ParseKey(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, ErrKeyNotSet
	}
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	if len(key) != KeySize {
		return nil, ErrInvalidKeyLength
	}
	return key, nil
}

// GenerateKey returns a new base64-encoded key read from random.
func GenerateKey(random io.Reader) (string, error) {
	if random == nil {
		random = rand.Reader
	}
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(random, key); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// Seal encrypts plain under a fresh random nonce.
func (b *Box) Seal(plain string) (string, error) {
	nonce := make([]byte, b.aead.NonceSize())
	if _, err := io.ReadFull(b.rand, nonce); err != nil {
		return "", errors.Join(ErrFailedToSeal, err)
	}
	sealed := b.aead.Seal(nonce, nonce, []byte(plain), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal.
func (b *Box) Open(sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", errors.Join(ErrFailedToOpen, err)
	}
	n := b.aead.NonceSize()
	if len(raw) < n {
		return "", errors.Join(ErrFailedToOpen, ErrCipherTooShort)
	}
	plain, err := b.aead.Open(nil, raw[:n], raw[n:], nil)
	if err != nil {
		return "", errors.Join(ErrFailedToOpen, err)
	}
	return string(plain), nil
}
