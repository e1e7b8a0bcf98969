// Package keychain encrypts the bank account passwords kept in the database.
package keychain

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

var ErrNoSecret = errors.New("no keychain secret defined")

// Keychain is an AES-256-GCM cipher keyed by the sha256 of a secret, ciphertexts are
// base64 encoded with the nonce in front.
type Keychain struct {
	aead cipher.AEAD
}

func New(secret string) (Keychain, error) {
	if secret == "" {
		return Keychain{}, ErrNoSecret
	}
	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return Keychain{}, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return Keychain{}, err
	}
	return Keychain{aead: aead}, nil
}

func (k Keychain) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, k.aead.NonceSize())
	_, err := io.ReadFull(rand.Reader, nonce)
	if err != nil {
		return "", err
	}
	sealed := k.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (k Keychain) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	if len(raw) < k.aead.NonceSize() {
		return "", fmt.Errorf("ciphertext too short")
	}
	nonce, sealed := raw[:k.aead.NonceSize()], raw[k.aead.NonceSize():]
	plaintext, err := k.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plaintext), nil
}
