// Package crypto encrypts saved connection passwords and manages the master key.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
)

var (
	// ErrInvalidKey is returned when the encryption key is empty.
	ErrInvalidKey = errors.New("invalid encryption key: must not be empty")
	// ErrDecryptionFailed is returned when decryption fails due to invalid ciphertext or wrong key.
	ErrDecryptionFailed = errors.New("decryption failed: invalid ciphertext or wrong key")
)

// associatedData binds ciphertexts to this application so a value encrypted
// elsewhere with the same key does not decrypt here.
var associatedData = []byte("ekaya-dbclient-connection")

// KeySize is the master key length in bytes (AES-256).
const KeySize = 32

// CredentialEncryptor provides AES-256-GCM encryption for stored passwords.
type CredentialEncryptor struct {
	gcm cipher.AEAD
}

// NewCredentialEncryptor creates an encryptor from a key string.
// A base64 value that decodes to exactly 32 bytes is used directly; anything
// else is treated as a passphrase and hashed to 32 bytes with SHA-256.
func NewCredentialEncryptor(keyInput string) (*CredentialEncryptor, error) {
	if keyInput == "" {
		return nil, ErrInvalidKey
	}

	key, err := base64.StdEncoding.DecodeString(keyInput)
	if err != nil || len(key) != KeySize {
		sum := sha256.Sum256([]byte(keyInput))
		key = sum[:]
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &CredentialEncryptor{gcm: gcm}, nil
}

// Encrypt returns base64(nonce || ciphertext || tag). Empty input stays empty.
func (e *CredentialEncryptor) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, e.gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := e.gcm.Seal(nonce, nonce, []byte(plaintext), associatedData)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Empty input stays empty.
func (e *CredentialEncryptor) Decrypt(encrypted string) (string, error) {
	if encrypted == "" {
		return "", nil
	}

	data, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return "", fmt.Errorf("%w: base64 decode failed", ErrDecryptionFailed)
	}

	nonceSize := e.gcm.NonceSize()
	if len(data) < nonceSize+e.gcm.Overhead() {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecryptionFailed)
	}

	plaintext, err := e.gcm.Open(nil, data[:nonceSize], data[nonceSize:], associatedData)
	if err != nil {
		return "", fmt.Errorf("%w: authentication failed", ErrDecryptionFailed)
	}
	return string(plaintext), nil
}

// GenerateKey returns a new random 32-byte key, base64 encoded.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}
