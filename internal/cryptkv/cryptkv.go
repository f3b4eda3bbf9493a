// Package cryptkv implements sealedkv's envelope encryption: a passphrase
// wraps a 32-byte data-encryption key (DEK), and the DEK authenticates user
// values. Rotating the passphrase only re-wraps the DEK; it never touches
// already-encrypted values.
//
// The key-derivation and AES-256-GCM wrapping scheme is grounded on the
// other_examples Argon2id keychain (MKhiriev-GoPassKeeper) and on the
// teacher's own AES-256-GCM secrets manager (cuemby-warren/pkg/security).
package cryptkv

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"

	"github.com/cuemby/sealedkv/kverrors"
)

// DEKSize is the size, in bytes, of a data-encryption key.
const DEKSize = 32

const (
	saltSize  = 16
	nonceSize = 12

	// Argon2id parameters per OWASP's 2024 guidance: 1 iteration, 64 MiB,
	// 4 threads, 32-byte output — the same tuning other_examples'
	// GoPassKeeper keychain uses to derive a key-encryption key.
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32

	blobVersion = 1
)

// GenerateDEK returns 32 fresh bytes from the OS CSPRNG.
func GenerateDEK() ([]byte, error) {
	dek := make([]byte, DEKSize)
	if _, err := io.ReadFull(rand.Reader, dek); err != nil {
		return nil, kverrors.New(kverrors.RandomDekGenerationError, "", err)
	}
	return dek, nil
}

func deriveKEK(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}

// WrapDEK encrypts dek under a key derived from passphrase, returning a
// self-describing blob: version(1) || salt(16) || nonce(12) || ciphertext+tag.
func WrapDEK(passphrase string, dek []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, kverrors.New(kverrors.RandomDekGenerationError, "", err)
	}

	kek := deriveKEK(passphrase, salt)
	gcm, err := newGCM(kek)
	if err != nil {
		return nil, kverrors.New(kverrors.FailedToEncryptData, "", err)
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, kverrors.New(kverrors.RandomDekGenerationError, "", err)
	}

	sealed := gcm.Seal(nil, nonce, dek, nil)

	blob := make([]byte, 0, 1+saltSize+nonceSize+len(sealed))
	blob = append(blob, blobVersion)
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	blob = append(blob, sealed...)
	return blob, nil
}

// UnwrapDEK recovers the DEK from a blob produced by WrapDEK. Any failure —
// malformed blob, wrong passphrase, or tampering — surfaces uniformly as
// kverrors.WrongPassword, matching spec.md §4.3.
func UnwrapDEK(passphrase string, blob []byte) ([]byte, error) {
	minLen := 1 + saltSize + nonceSize
	if len(blob) < minLen || blob[0] != blobVersion {
		return nil, kverrors.New(kverrors.WrongPassword, "", fmt.Errorf("malformed DEK blob"))
	}

	salt := blob[1 : 1+saltSize]
	nonce := blob[1+saltSize : minLen]
	sealed := blob[minLen:]

	kek := deriveKEK(passphrase, salt)
	gcm, err := newGCM(kek)
	if err != nil {
		return nil, kverrors.New(kverrors.WrongPassword, "", err)
	}

	dek, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, kverrors.New(kverrors.WrongPassword, "", err)
	}
	return dek, nil
}

// EncryptValue authenticate-encrypts plaintext directly under dek (already
// uniformly random, so no KDF is needed), returning nonce(12) || ciphertext+tag.
func EncryptValue(dek, plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(dek)
	if err != nil {
		return nil, kverrors.New(kverrors.FailedToEncryptData, "", err)
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, kverrors.New(kverrors.FailedToEncryptData, "", err)
	}

	sealed := gcm.Seal(nonce, nonce, plaintext, nil)
	return sealed, nil
}

// DecryptValue reverses EncryptValue. Integrity failure is
// kverrors.FailedToDecryptData.
func DecryptValue(dek, envelope []byte) ([]byte, error) {
	gcm, err := newGCM(dek)
	if err != nil {
		return nil, kverrors.New(kverrors.FailedToDecryptData, "", err)
	}

	if len(envelope) < nonceSize {
		return nil, kverrors.New(kverrors.FailedToDecryptData, "", fmt.Errorf("envelope too short"))
	}
	nonce, ciphertext := envelope[:nonceSize], envelope[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, kverrors.New(kverrors.FailedToDecryptData, "", err)
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
