// Package cryptox holds the symmetric primitives of the engine: AES-256-GCM
// sealing and the key derivations (random, password, credential pair).
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"

	"github.com/dmitrijs2005/gophstore/internal/common"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// Algorithm names the cipher recorded in envelopes.
	Algorithm = "AES-256-GCM"
	KeySize   = 32
	NonceSize = 12
	SaltSize  = 16

	// MinPBKDF2Iterations is the lowest accepted PBKDF2 work factor.
	MinPBKDF2Iterations = 100_000
)

const verifierInfo = "gophstore key verifier"

// GenerateKey returns a fresh random AES-256 key.
func GenerateKey() []byte {
	return common.GenerateRandByteArray(KeySize)
}

// MakeVerifier derives a value that proves knowledge of the key without
// revealing it. It is safe to persist.
func MakeVerifier(masterKey []byte) []byte {
	r := hkdf.New(sha256.New, masterKey, nil, []byte(verifierInfo))
	out := make([]byte, sha256.Size)
	if _, err := io.ReadFull(r, out); err != nil {
		panic(fmt.Sprintf("hkdf: %v", err))
	}
	return out
}

// DeriveMasterKey stretches a password with argon2id.
func DeriveMasterKey(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, KeySize)
}

// DeriveKeyPBKDF2 stretches a password with PBKDF2-HMAC-SHA256. Iteration
// counts below MinPBKDF2Iterations are raised to it.
func DeriveKeyPBKDF2(password, salt []byte, iterations int) []byte {
	iterations = max(iterations, MinPBKDF2Iterations)
	return pbkdf2.Key(password, salt, iterations, KeySize, sha256.New)
}

// KeyFromCredentials hashes an identity proof (an address and a signature
// over it) into key material. The same pair always yields the same key.
func KeyFromCredentials(address, signature string) []byte {
	sum := sha256.Sum256([]byte(address + signature))
	return sum[:]
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext under a fresh random 12-byte nonce.
func Seal(key, plaintext []byte) (ciphertext, nonce []byte, err error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}

	nonce = make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, err
	}

	return aesgcm.Seal(nil, nonce, plaintext, nil), nonce, nil
}

// Open authenticates and decrypts a Seal result.
func Open(key, ciphertext, nonce []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aesgcm.NonceSize() {
		return nil, fmt.Errorf("invalid nonce length %d", len(nonce))
	}
	return aesgcm.Open(nil, nonce, ciphertext, nil)
}

// EncryptEntry serializes the given value to JSON and encrypts it using
// AES-GCM.
//
// The key must be a valid AES key length (16, 24, or 32 bytes). A new random
// 12-byte nonce is generated for each call; ciphertext and nonce are
// returned separately.
//
// Example:
//
//	key := cryptox.GenerateKey()
//	ciphertext, nonce, err := cryptox.EncryptEntry(order, key)
//	if err != nil {
//	    return err
//	}
func EncryptEntry(entry any, key []byte) (ciphertext, nonce []byte, err error) {
	plaintext, err := json.Marshal(entry)
	if err != nil {
		return nil, nil, err
	}
	return Seal(key, plaintext)
}

// DecryptEntry decrypts an EncryptEntry result and unmarshals the JSON into
// v.
func DecryptEntry(ciphertext, nonce, key []byte, v any) error {
	plaintext, err := Open(key, ciphertext, nonce)
	if err != nil {
		return err
	}
	return json.Unmarshal(plaintext, v)
}
