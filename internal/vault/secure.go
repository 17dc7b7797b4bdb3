package vault

import (
	"context"
	"strings"
	"sync"

	"github.com/dmitrijs2005/gophstore/internal/common"
	"github.com/dmitrijs2005/gophstore/internal/logging"
	"github.com/dmitrijs2005/gophstore/internal/store"
)

// SecureKeyPrefix namespaces encrypted entries inside the unified store.
const SecureKeyPrefix = "secure:"

// SecureKeyID is the key id used by SecureStorage.Unlock.
const SecureKeyID = "secure-storage"

// SecureStorage is a keyed map whose values are sealed before they reach
// the store. Every operation fails with common.ErrorLocked until the
// storage is unlocked, and again after Lock.
type SecureStorage struct {
	st   *store.Store
	keys *Manager
	log  logging.Logger

	mu    sync.RWMutex
	keyID string
}

func NewSecureStorage(st *store.Store, keys *Manager, log logging.Logger) *SecureStorage {
	return &SecureStorage{
		st:   st,
		keys: keys,
		log:  log.With("component", "secure-storage"),
	}
}

// Unlock derives the storage key from password.
func (s *SecureStorage) Unlock(ctx context.Context, password string) error {
	id, err := s.keys.DeriveFromPassword(ctx, password, SecureKeyID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.keyID = id
	s.mu.Unlock()
	return nil
}

// UseKey switches the storage to a key already loaded in the manager.
func (s *SecureStorage) UseKey(id string) error {
	if !s.keys.HasKey(id) {
		return common.ErrorKeyNotFound
	}

	s.mu.Lock()
	s.keyID = id
	s.mu.Unlock()
	return nil
}

func (s *SecureStorage) IsUnlocked() bool {
	s.mu.RLock()
	id := s.keyID
	s.mu.RUnlock()

	return id != "" && s.keys.HasKey(id)
}

func (s *SecureStorage) activeKey() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.keyID == "" || !s.keys.HasKey(s.keyID) {
		return "", common.ErrorLocked
	}
	return s.keyID, nil
}

func (s *SecureStorage) Set(ctx context.Context, key string, value any) error {
	id, err := s.activeKey()
	if err != nil {
		return err
	}

	env, err := s.keys.Encrypt(value, id)
	if err != nil {
		return err
	}
	return s.st.Set(ctx, SecureKeyPrefix+key, env)
}

// Get decrypts the value under key into out and reports whether it did.
// Lock state, missing entries and decryption failures all read as absent;
// the latter two are logged.
func (s *SecureStorage) Get(ctx context.Context, key string, out any) bool {
	id, err := s.activeKey()
	if err != nil {
		s.log.Debug(ctx, "secure read while locked", "key", key)
		return false
	}

	var env string
	switch status := s.st.Get(ctx, SecureKeyPrefix+key, &env); status {
	case store.StatusHit:
	case store.StatusMiss:
		return false
	default:
		s.log.Warn(ctx, "secure read failed", "key", key, "status", status.String())
		return false
	}

	if err := s.keys.DecryptInto(env, id, out); err != nil {
		s.log.Warn(ctx, "secure value cannot be decrypted", "key", key, "error", err)
		return false
	}
	return true
}

func (s *SecureStorage) Delete(ctx context.Context, key string) error {
	if _, err := s.activeKey(); err != nil {
		return err
	}
	return s.st.Delete(ctx, SecureKeyPrefix+key)
}

// Keys lists the secure entries without their namespace prefix.
func (s *SecureStorage) Keys(ctx context.Context) ([]string, error) {
	if _, err := s.activeKey(); err != nil {
		return nil, err
	}

	var keys []string
	for _, k := range s.st.Keys(ctx) {
		if rest, ok := strings.CutPrefix(k, SecureKeyPrefix); ok {
			keys = append(keys, rest)
		}
	}
	return keys, nil
}

// Clear removes every secure entry and leaves the rest of the store alone.
func (s *SecureStorage) Clear(ctx context.Context) error {
	keys, err := s.Keys(ctx)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := s.st.Delete(ctx, SecureKeyPrefix+k); err != nil {
			return err
		}
	}
	return nil
}

// Lock unloads the storage key.
func (s *SecureStorage) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.keyID != "" {
		s.keys.RemoveKey(s.keyID)
		s.keyID = ""
	}
}
