package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/hkdf"
)

// ErrCiphertextTooShort is returned when a sealed blob cannot even hold a nonce.
var ErrCiphertextTooShort = errors.New("cryptox: ciphertext too short")

// SecretBox seals small per-user secrets (TOTP seeds) with AES-256-GCM. The
// AEAD key is derived from the server master secret with HKDF-SHA256 so the
// raw master secret is never used as a cipher key directly.
type SecretBox struct {
	aead cipher.AEAD
}

// NewSecretBox derives a purpose-bound key from master and returns a box.
// The purpose string separates keys used for different kinds of secrets.
func NewSecretBox(master []byte, purpose string) (*SecretBox, error) {
	if len(master) == 0 {
		return nil, errors.New("cryptox: empty master secret")
	}

	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, master, nil, []byte(purpose))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("cryptox: derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cryptox: create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptox: create GCM: %w", err)
	}

	return &SecretBox{aead: gcm}, nil
}

// Seal encrypts plaintext. Output format: [nonce][ciphertext+tag].
func (b *SecretBox) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, b.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("cryptox: generate nonce: %w", err)
	}
	return b.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts data produced by Seal and verifies its authentication tag.
func (b *SecretBox) Open(sealed []byte) ([]byte, error) {
	nonceSize := b.aead.NonceSize()
	if len(sealed) < nonceSize {
		return nil, ErrCiphertextTooShort
	}

	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := b.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("cryptox: decryption failed: %w", err)
	}
	return plaintext, nil
}

// LoadMasterKey reads master key material from either:
//  1. the file at path (if set)
//  2. the AUTH_MASTER_KEY environment variable
//  3. a random ephemeral key (development only, sealed secrets die with the process)
//
// The second return value reports whether the key is ephemeral.
func LoadMasterKey(path string) ([]byte, bool, error) {
	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 - operator supplied path
		if err != nil {
			return nil, false, fmt.Errorf("failed to read master key file: %w", err)
		}
		return data, false, nil
	}

	if env := os.Getenv("AUTH_MASTER_KEY"); env != "" {
		return []byte(env), false, nil
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, false, fmt.Errorf("failed to generate ephemeral master key: %w", err)
	}
	return key, true, nil
}
