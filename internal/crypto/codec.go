// Package crypto implements the field codec used to protect sensitive record
// values at rest.
package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/amqadri/nisab-keeper/internal/errs"
)

// FieldCodec encrypts and decrypts sensitive scalars and JSON blobs.
// Decrypt fails with errs.ErrDecrypt on tampered or truncated ciphertext.
type FieldCodec interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// KeySize is the required field-encryption key length in bytes.
const KeySize = chacha20poly1305.KeySize

// AEADCodec implements FieldCodec with XChaCha20-Poly1305 under a single
// server-held key. Ciphertext layout: nonce || sealed.
type AEADCodec struct {
	aead cipher.AEAD
}

// NewAEADCodec constructs a codec from a raw 32-byte key.
func NewAEADCodec(key []byte) (*AEADCodec, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("field key must be %d bytes, got %d", KeySize, len(key))
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &AEADCodec{aead: aead}, nil
}

// Encrypt seals plaintext with a fresh random nonce.
func (c *AEADCodec) Encrypt(plaintext []byte) ([]byte, error) {
	nonce, err := RandBytes(chacha20poly1305.NonceSizeX)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(nonce)+len(plaintext)+c.aead.Overhead())
	out = append(out, nonce...)
	out = append(out, c.aead.Seal(nil, nonce, plaintext, nil)...)
	return out, nil
}

// Decrypt opens ciphertext produced by Encrypt. Any tampering surfaces as
// errs.ErrDecrypt; the codec never attempts to repair corrupted ciphertext.
func (c *AEADCodec) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < chacha20poly1305.NonceSizeX {
		return nil, fmt.Errorf("%w: ciphertext too short", errs.ErrDecrypt)
	}
	nonce := ciphertext[:chacha20poly1305.NonceSizeX]
	ct := ciphertext[chacha20poly1305.NonceSizeX:]
	plaintext, err := c.aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrDecrypt, err)
	}
	return plaintext, nil
}

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}
