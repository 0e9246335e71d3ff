/**
 * @description
 * Package credential seals and opens provider access credentials stored at rest.
 * Credentials are encrypted with XChaCha20-Poly1305; the stored form is
 * "v1:" followed by base64(nonce || ciphertext).
 *
 * @notes
 * - A Sealer built with an empty key is a pass-through, which keeps local
 *   development databases with plaintext credentials usable.
 */
package credential

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

const sealedPrefix = "v1:"

// ErrMalformedCredential is returned when a sealed value cannot be opened.
var ErrMalformedCredential = errors.New("malformed sealed credential")

// Sealer encrypts and decrypts access credentials.
type Sealer struct {
	key []byte
}

// NewSealer builds a Sealer from a hex-encoded 32-byte key. An empty key yields a pass-through Sealer.
func NewSealer(hexKey string) (*Sealer, error) {
	hexKey = strings.TrimSpace(hexKey)
	if hexKey == "" {
		return &Sealer{}, nil
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("credential key is not valid hex: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("credential key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return &Sealer{key: key}, nil
}

// Enabled reports whether the Sealer encrypts values.
func (s *Sealer) Enabled() bool {
	return s != nil && len(s.key) > 0
}

// seal encrypts a plaintext credential. Credentials are written by the
// account linking flow, which lives outside this service.
func (s *Sealer) seal(plaintext string) (string, error) {
	if !s.Enabled() {
		return plaintext, nil
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a stored credential. Values without the sealed prefix are returned as-is.
func (s *Sealer) Open(stored string) (string, error) {
	if !strings.HasPrefix(stored, sealedPrefix) {
		return stored, nil
	}
	if !s.Enabled() {
		return "", fmt.Errorf("%w: no key configured", ErrMalformedCredential)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedCredential, err)
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", err
	}
	if len(raw) < aead.NonceSize() {
		return "", fmt.Errorf("%w: value too short", ErrMalformedCredential)
	}
	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedCredential, err)
	}
	return string(plaintext), nil
}
