// Package credential implements the Credential Store: symmetric
// authenticated encryption of per-account access/refresh tokens with
// AES-256-GCM under a single process-wide PBKDF2-derived key.
package credential

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"

	"golang.org/x/crypto/pbkdf2"

	"github.com/pulsetrail/aggregator/internal/apperr"
)

// fixedSalt is constant across the process so that DeriveKey(password) is
// deterministic for a given ENCRYPTION_KEY: the KDF's job here is to stretch
// a password into 256 bits of key material, not to defend against a
// rainbow-table attack on a low-entropy secret shared across tenants.
var fixedSalt = []byte("pulsetrail/credential-store/v1")

const pbkdf2Iterations = 100_000

// Key is a derived 256-bit symmetric key.
type Key [32]byte

// DeriveKey stretches password into a Key via PBKDF2-HMAC-SHA256 with the
// package's fixed salt and 100,000 iterations.
func DeriveKey(password string) Key {
	derived := pbkdf2.Key([]byte(password), fixedSalt, pbkdf2Iterations, 32, sha256.New)
	var key Key
	copy(key[:], derived)
	return key
}

// Encrypt seals plaintext under key, returning base64(nonce || sealed).
// Every call uses a fresh random nonce, so two calls with identical
// plaintext and key produce different ciphertexts.
func Encrypt(plaintext string, key Key) (string, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return "", apperr.Wrap(apperr.KindEncryptionError, "create cipher", err).
			WithDetails(map[string]any{"op": "encrypt"})
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", apperr.Wrap(apperr.KindEncryptionError, "create gcm", err).
			WithDetails(map[string]any{"op": "encrypt"})
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", apperr.Wrap(apperr.KindEncryptionError, "generate nonce", err).
			WithDetails(map[string]any{"op": "encrypt"})
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. decrypt(encrypt(x, k), k) == x for any x, k.
func Decrypt(ciphertext string, key Key) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", apperr.Wrap(apperr.KindEncryptionError, "decode ciphertext", err).
			WithDetails(map[string]any{"op": "decrypt"})
	}

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return "", apperr.Wrap(apperr.KindEncryptionError, "create cipher", err).
			WithDetails(map[string]any{"op": "decrypt"})
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", apperr.Wrap(apperr.KindEncryptionError, "create gcm", err).
			WithDetails(map[string]any{"op": "decrypt"})
	}

	nonceSize := gcm.NonceSize()
	if len(raw) < nonceSize {
		return "", apperr.New(apperr.KindEncryptionError, "ciphertext too short").
			WithDetails(map[string]any{"op": "decrypt"})
	}
	nonce, sealed := raw[:nonceSize], raw[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", apperr.Wrap(apperr.KindEncryptionError, "open sealed box", err).
			WithDetails(map[string]any{"op": "decrypt"})
	}
	return string(plaintext), nil
}

// EncryptBytes/DecryptBytes store the base64 envelope as raw bytes, matching
// the Account.EncAccessToken/EncRefreshToken column type.
func EncryptBytes(plaintext string, key Key) ([]byte, error) {
	s, err := Encrypt(plaintext, key)
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}

func DecryptBytes(ciphertext []byte, key Key) (string, error) {
	return Decrypt(string(ciphertext), key)
}
