// Package crypto seals user-authored text at rest and derives stable
// pseudonyms for user ids in logs and notifications.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
)

var ErrInvalidCiphertext = errors.New("invalid ciphertext")

// Sealer encrypts and decrypts short strings.
type Sealer interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// Encryptor is an AES-256-GCM Sealer. Ciphertexts are base64(nonce||sealed).
type Encryptor struct {
	aead cipher.AEAD
}

// NewEncryptor accepts a 64-char hex key verbatim; any other passphrase is
// stretched with SHA-256.
func NewEncryptor(key string) (*Encryptor, error) {
	block, err := aes.NewCipher(deriveKey(key))
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Encryptor{aead: aead}, nil
}

func deriveKey(key string) []byte {
	if len(key) == 64 {
		if raw, err := hex.DecodeString(key); err == nil {
			return raw
		}
	}
	hash := sha256.Sum256([]byte(key))
	return hash[:]
}

func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := e.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (e *Encryptor) Decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrInvalidCiphertext
	}

	nonceSize := e.aead.NonceSize()
	if len(data) < nonceSize {
		return "", ErrInvalidCiphertext
	}

	nonce, sealed := data[:nonceSize], data[nonceSize:]
	plaintext, err := e.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrInvalidCiphertext
	}

	return string(plaintext), nil
}

// Plaintext is the Sealer used when no encryption key is configured.
type Plaintext struct{}

func (Plaintext) Encrypt(s string) (string, error) { return s, nil }
func (Plaintext) Decrypt(s string) (string, error) { return s, nil }

// Pseudonym returns a short, stable, non-reversible tag for a user id.
func Pseudonym(userID string) string {
	if userID == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(userID))
	return hex.EncodeToString(hash[:8])
}
