package infra

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
)

// StateCipher encrypts private session state before it crosses the
// store boundary. AES-256-GCM with a random nonce prepended to the
// ciphertext; the key is process-held and never persisted.
type StateCipher struct {
	aead cipher.AEAD
}

// NewStateCipher creates a cipher from a 32-byte key.
func NewStateCipher(key []byte) (*StateCipher, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return &StateCipher{aead: aead}, nil
}

// Seal encrypts plaintext. Nil input seals to nil so absent private
// state round-trips as absent.
func (c *StateCipher) Seal(plaintext []byte) ([]byte, error) {
	if plaintext == nil {
		return nil, nil
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a Seal output.
func (c *StateCipher) Open(ciphertext []byte) ([]byte, error) {
	if ciphertext == nil {
		return nil, nil
	}
	if len(ciphertext) < c.aead.NonceSize() {
		return nil, fmt.Errorf("ciphertext shorter than nonce")
	}
	nonce, sealed := ciphertext[:c.aead.NonceSize()], ciphertext[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt state: %w", err)
	}
	return plaintext, nil
}
