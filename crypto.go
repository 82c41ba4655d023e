package microkv

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// KeySize is the symmetric key length required by XChaCha20-Poly1305.
	KeySize = chacha20poly1305.KeySize

	// NonceSize is the length of the store-wide public nonce.
	NonceSize = chacha20poly1305.NonceSizeX
)

// generateNonce draws a fresh public nonce for a new store.
func generateNonce() ([NonceSize]byte, error) {
	var nonce [NonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nonce, errCrypto("failed to generate nonce", err)
	}
	return nonce, nil
}

// hashPassword derives the fixed-size secret from a cleartext password.
// The derivation is deterministic: the same password always yields the same
// secret, which is what lets a re-opened store decrypt prior ciphertexts.
func hashPassword(password string) *memguard.Enclave {
	sum := sha256.Sum256([]byte(password))
	// NewEnclave wipes the source slice once the data is sealed.
	return memguard.NewEnclave(sum[:])
}

// newAEAD opens the secret enclave and builds the XChaCha20-Poly1305 cipher.
// The caller receives the locked key buffer alongside the cipher and must
// Destroy it as soon as the operation completes.
func newAEAD(secret *memguard.Enclave) (cipher aeadCipher, key *memguard.LockedBuffer, err error) {
	key, err = secret.Open()
	if err != nil {
		return nil, nil, errCrypto("failed to access password secret", err)
	}
	if key.Size() != KeySize {
		key.Destroy()
		return nil, nil, errCrypto(fmt.Sprintf("secret must be %d bytes, got %d", KeySize, key.Size()), nil)
	}
	aead, err := chacha20poly1305.NewX(key.Bytes())
	if err != nil {
		key.Destroy()
		return nil, nil, errCrypto("failed to create cipher", err)
	}
	return aead, key, nil
}

type aeadCipher interface {
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
}

// encryptValue seals plaintext under the store secret and nonce. The nonce
// is generated once per store and reused for every value ever written; that
// is the legacy construction this store preserves for on-disk compatibility,
// and it is weaker than strict AEAD usage, which demands a unique nonce per
// message. Do not reach for this outside the store.
func encryptValue(plaintext []byte, secret *memguard.Enclave, nonce [NonceSize]byte) ([]byte, error) {
	aead, key, err := newAEAD(secret)
	if err != nil {
		return nil, err
	}
	defer key.Destroy()

	return aead.Seal(nil, nonce[:], plaintext, nil), nil
}

// decryptValue opens a ciphertext produced by encryptValue. An
// authentication failure means a wrong password, a tampered value, or a
// nonce/key mismatch; the three cases are deliberately not distinguished.
func decryptValue(ciphertext []byte, secret *memguard.Enclave, nonce [NonceSize]byte) ([]byte, error) {
	aead, key, err := newAEAD(secret)
	if err != nil {
		return nil, err
	}
	defer key.Destroy()

	plaintext, err := aead.Open(nil, nonce[:], ciphertext, nil)
	if err != nil {
		return nil, errCrypto("cannot authenticate value being decrypted", err)
	}
	return plaintext, nil
}
