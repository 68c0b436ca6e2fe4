// Package crypto provides the cookie encryption service used by the test
// client. Values are encrypted with AES-256-GCM under a key derived from the
// application key, and carry an "e:" prefix so encrypted cookies can be told
// apart from plain ones on the wire.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// EncryptedPrefix marks cookie values produced by an Encrypter.
const EncryptedPrefix = "e:"

// Encrypter encrypts and decrypts cookie values using the host application's
// shared secret.
type Encrypter interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// EncryptionError reports a failure to encrypt a value, including a missing
// application key.
type EncryptionError struct {
	Reason string
	Err    error
}

func (e *EncryptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("encryption failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("encryption failed: %s", e.Reason)
}

func (e *EncryptionError) Unwrap() error { return e.Err }

// DecryptionError reports a failure to decrypt a value, such as a tampered or
// foreign ciphertext.
type DecryptionError struct {
	Reason string
	Err    error
}

func (e *DecryptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decryption failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("decryption failed: %s", e.Reason)
}

func (e *DecryptionError) Unwrap() error { return e.Err }

// AESEncrypter is the production Encrypter. The AES-256 key is the SHA-256
// digest of the application key.
type AESEncrypter struct {
	aead cipher.AEAD
}

// New creates an AESEncrypter from the application key.
func New(appKey string) (*AESEncrypter, error) {
	if appKey == "" {
		return nil, &EncryptionError{Reason: "application key is not configured"}
	}

	key := sha256.Sum256([]byte(appKey))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, &EncryptionError{Reason: "cipher initialization", Err: err}
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, &EncryptionError{Reason: "cipher initialization", Err: err}
	}

	return &AESEncrypter{aead: aead}, nil
}

func (e *AESEncrypter) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", &EncryptionError{Reason: "nonce generation", Err: err}
	}

	sealed := e.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return EncryptedPrefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (e *AESEncrypter) Decrypt(ciphertext string) (string, error) {
	if !IsEncrypted(ciphertext) {
		return "", &DecryptionError{Reason: "value is not an encrypted payload"}
	}

	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(ciphertext, EncryptedPrefix))
	if err != nil {
		return "", &DecryptionError{Reason: "invalid encoding", Err: err}
	}

	if len(raw) < e.aead.NonceSize() {
		return "", &DecryptionError{Reason: "payload too short"}
	}

	nonce, sealed := raw[:e.aead.NonceSize()], raw[e.aead.NonceSize():]
	plaintext, err := e.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", &DecryptionError{Reason: "authentication", Err: err}
	}

	return string(plaintext), nil
}

// IsEncrypted reports whether a cookie value carries the encrypted prefix.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, EncryptedPrefix)
}

// IsDecryptionError reports whether err is a DecryptionError.
func IsDecryptionError(err error) bool {
	var de *DecryptionError
	return errors.As(err, &de)
}
