package vault

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophstore/internal/common"
	"github.com/dmitrijs2005/gophstore/internal/cryptox"
	"github.com/dmitrijs2005/gophstore/internal/logging"
	"github.com/dmitrijs2005/gophstore/internal/repositories/metadata"
	"github.com/google/uuid"
)

// Password key-derivation functions.
const (
	KDFPBKDF2   = "pbkdf2"
	KDFArgon2id = "argon2id"
)

// DefaultKeyID is used when a password key is derived without an id.
const DefaultKeyID = "default"

const (
	saltKeyPrefix     = "kdf:salt:"
	verifierKeyPrefix = "kdf:verifier:"
	algoKeyPrefix     = "kdf:algo:"
)

type Manager struct {
	mu   sync.RWMutex
	keys map[string][]byte

	meta       metadata.Repository
	kdf        string
	iterations int
	log        logging.Logger
	now        func() time.Time
}

// NewManager creates a manager whose new password keys use kdf
// ("pbkdf2" or "argon2id"). Keys derived earlier keep the algorithm they
// were created with.
func NewManager(meta metadata.Repository, kdf string, iterations int, log logging.Logger) *Manager {
	if kdf != KDFArgon2id {
		kdf = KDFPBKDF2
	}
	return &Manager{
		keys:       make(map[string][]byte),
		meta:       meta,
		kdf:        kdf,
		iterations: max(iterations, cryptox.MinPBKDF2Iterations),
		log:        log.With("component", "vault"),
		now:        time.Now,
	}
}

func (m *Manager) put(id string, key []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.keys[id]; ok {
		common.WipeByteArray(old)
	}
	m.keys[id] = key
}

func (m *Manager) key(id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	k, ok := m.keys[id]
	if !ok {
		return nil, fmt.Errorf("key %q: %w", id, common.ErrorKeyNotFound)
	}
	// Lock, RemoveKey and put wipe the stored slice in place.
	return bytes.Clone(k), nil
}

// GenerateKey loads a fresh random key and returns its id (generated when
// id is empty).
func (m *Manager) GenerateKey(id string) string {
	if id == "" {
		id = uuid.NewString()
	}
	m.put(id, cryptox.GenerateKey())
	return id
}

// DeriveFromPassword loads the key of password. The first derivation for an
// id creates and persists its salt and verifier; later derivations must
// match the verifier or fail with common.ErrorWrongPassword.
//
// PBKDF2 with the configured iterations (at least 100,000) takes a
// noticeable fraction of a second by intent.
func (m *Manager) DeriveFromPassword(ctx context.Context, password, id string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("%w: empty password", common.ErrorValidation)
	}
	if id == "" {
		id = DefaultKeyID
	}

	salt, err := m.meta.Get(ctx, saltKeyPrefix+id)
	if errors.Is(err, common.ErrorNotFound) {
		return id, m.createPasswordKey(ctx, password, id)
	}
	if err != nil {
		return "", fmt.Errorf("failed to load salt of %q: %w", id, err)
	}

	algo := m.kdf
	if raw, err := m.meta.Get(ctx, algoKeyPrefix+id); err == nil {
		algo = string(raw)
	}

	key := m.stretch(algo, []byte(password), salt)

	verifier, err := m.meta.Get(ctx, verifierKeyPrefix+id)
	if err != nil {
		common.WipeByteArray(key)
		return "", fmt.Errorf("failed to load verifier of %q: %w", id, err)
	}
	if subtle.ConstantTimeCompare(verifier, cryptox.MakeVerifier(key)) != 1 {
		common.WipeByteArray(key)
		return "", fmt.Errorf("key %q: %w", id, common.ErrorWrongPassword)
	}

	m.put(id, key)
	return id, nil
}

func (m *Manager) createPasswordKey(ctx context.Context, password, id string) error {
	salt := common.GenerateRandByteArray(cryptox.SaltSize)
	key := m.stretch(m.kdf, []byte(password), salt)

	for k, v := range map[string][]byte{
		saltKeyPrefix + id:     salt,
		verifierKeyPrefix + id: cryptox.MakeVerifier(key),
		algoKeyPrefix + id:     []byte(m.kdf),
	} {
		if err := m.meta.Set(ctx, k, v); err != nil {
			common.WipeByteArray(key)
			return fmt.Errorf("failed to persist %s: %w", k, err)
		}
	}

	m.log.Info(ctx, "password key created", "key_id", id, "kdf", m.kdf)
	m.put(id, key)
	return nil
}

func (m *Manager) stretch(algo string, password, salt []byte) []byte {
	if algo == KDFArgon2id {
		return cryptox.DeriveMasterKey(password, salt)
	}
	return cryptox.DeriveKeyPBKDF2(password, salt, m.iterations)
}

// ForgetPassword drops the persisted salt and verifier of a password key,
// so the next derivation for id starts over with a new password.
func (m *Manager) ForgetPassword(ctx context.Context, id string) error {
	if id == "" {
		id = DefaultKeyID
	}
	for _, prefix := range []string{saltKeyPrefix, verifierKeyPrefix, algoKeyPrefix} {
		if err := m.meta.Delete(ctx, prefix+id); err != nil {
			return err
		}
	}
	m.RemoveKey(id)
	return nil
}

// DeriveFromCredentials loads the key bound to an address and a signature.
func (m *Manager) DeriveFromCredentials(address, signature, id string) (string, error) {
	if address == "" || signature == "" {
		return "", fmt.Errorf("%w: address and signature are required", common.ErrorValidation)
	}
	if id == "" {
		id = address
	}
	m.put(id, cryptox.KeyFromCredentials(address, signature))
	return id, nil
}

// Encrypt seals data under the key. Strings are sealed as is, anything
// else as its JSON encoding. The result is an encoded Envelope.
func (m *Manager) Encrypt(data any, keyID string) (string, error) {
	key, err := m.key(keyID)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(key)

	var (
		plaintext []byte
		encoding  string
	)
	if s, ok := data.(string); ok {
		plaintext, encoding = []byte(s), EncodingText
	} else {
		plaintext, err = json.Marshal(data)
		if err != nil {
			return "", fmt.Errorf("%w: value is not JSON encodable: %v", common.ErrorValidation, err)
		}
		encoding = EncodingJSON
	}

	ciphertext, nonce, err := cryptox.Seal(key, plaintext)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt: %w", err)
	}

	return Envelope{
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
		IV:         base64.StdEncoding.EncodeToString(nonce),
		Algorithm:  cryptox.Algorithm,
		KeyID:      keyID,
		Timestamp:  m.now().UnixMilli(),
		Encoding:   encoding,
	}.Encode()
}

func (m *Manager) open(envelope, keyID string) ([]byte, Envelope, error) {
	env, err := ParseEnvelope(envelope)
	if err != nil {
		return nil, Envelope{}, err
	}
	if env.Algorithm != "" && env.Algorithm != cryptox.Algorithm {
		return nil, env, fmt.Errorf("%w: unsupported algorithm %q", common.ErrorValidation, env.Algorithm)
	}

	if keyID == "" {
		keyID = env.KeyID
	}
	key, err := m.key(keyID)
	if err != nil {
		return nil, env, err
	}
	defer common.WipeByteArray(key)

	ciphertext, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, env, fmt.Errorf("%w: ciphertext is not base64", common.ErrorValidation)
	}
	nonce, err := base64.StdEncoding.DecodeString(env.IV)
	if err != nil {
		return nil, env, fmt.Errorf("%w: iv is not base64", common.ErrorValidation)
	}

	plaintext, err := cryptox.Open(key, ciphertext, nonce)
	if err != nil {
		return nil, env, fmt.Errorf("failed to decrypt with key %q: %w", keyID, err)
	}
	return plaintext, env, nil
}

// Decrypt opens an envelope with keyID, or with the key the envelope names
// when keyID is empty. JSON payloads come back decoded; text comes back as
// a string. A key that is not loaded is common.ErrorKeyNotFound.
func (m *Manager) Decrypt(envelope, keyID string) (any, error) {
	plaintext, env, err := m.open(envelope, keyID)
	if err != nil {
		return nil, err
	}

	if env.Encoding == EncodingText {
		return string(plaintext), nil
	}

	var v any
	if err := json.Unmarshal(plaintext, &v); err != nil {
		return string(plaintext), nil
	}
	return v, nil
}

// DecryptInto opens an envelope and decodes the payload into out.
func (m *Manager) DecryptInto(envelope, keyID string, out any) error {
	plaintext, env, err := m.open(envelope, keyID)
	if err != nil {
		return err
	}

	if env.Encoding == EncodingText {
		if s, ok := out.(*string); ok {
			*s = string(plaintext)
			return nil
		}
	}
	return json.Unmarshal(plaintext, out)
}

func (m *Manager) HasKey(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.keys[id]
	return ok
}

// KeyIDs lists the loaded keys.
func (m *Manager) KeyIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.keys))
	for id := range m.keys {
		ids = append(ids, id)
	}
	return ids
}

// RemoveKey wipes and unloads one key.
func (m *Manager) RemoveKey(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if k, ok := m.keys[id]; ok {
		common.WipeByteArray(k)
		delete(m.keys, id)
	}
}

// Lock wipes and unloads every key.
func (m *Manager) Lock() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, k := range m.keys {
		common.WipeByteArray(k)
		delete(m.keys, id)
	}
}
