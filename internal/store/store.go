package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/gophstore/internal/common"
	"github.com/dmitrijs2005/gophstore/internal/logging"
	"github.com/patrickmn/go-cache"
)

// Strategy selects the backend arrangement of a Store.
type Strategy string

const (
	StrategyMemory        Strategy = "memory"
	StrategyFlat          Strategy = "flat-durable"
	StrategyTransactional Strategy = "transactional-durable"
	StrategyMulti         Strategy = "multi"
)

// DefaultCacheTTL is the lifetime of memory-tier entries.
const DefaultCacheTTL = time.Hour

func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(s); st {
	case StrategyMemory, StrategyFlat, StrategyTransactional, StrategyMulti:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown store strategy %q", common.ErrorValidation, s)
}

// Status is the outcome of a read.
type Status int

const (
	// StatusMiss means the key is known to be absent.
	StatusMiss Status = iota
	// StatusHit means the value was found and decoded.
	StatusHit
	// StatusUnavailable means the backend failed; the value is unknown.
	StatusUnavailable
)

func (s Status) String() string {
	switch s {
	case StatusHit:
		return "hit"
	case StatusMiss:
		return "miss"
	default:
		return "unavailable"
	}
}

// Stats reports memory-tier effectiveness.
type Stats struct {
	Strategy    Strategy
	CacheHits   uint64
	CacheMisses uint64
	CacheItems  int
}

type setOptions struct {
	skipCache bool
}

type SetOption func(*setOptions)

// SkipCache writes through to the durable backend without refreshing the
// memory tier. The stale tier entry is dropped.
func SkipCache() SetOption {
	return func(o *setOptions) { o.skipCache = true }
}

// Store is the unified key/value façade.
type Store struct {
	strategy Strategy
	backend  Backend
	tier     *cache.Cache
	ttl      time.Duration
	log      logging.Logger

	hits   atomic.Uint64
	misses atomic.Uint64
}

// New wraps backend. The memory tier is enabled only for StrategyMulti;
// ttl <= 0 selects DefaultCacheTTL.
func New(strategy Strategy, backend Backend, ttl time.Duration, log logging.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	s := &Store{
		strategy: strategy,
		backend:  backend,
		ttl:      ttl,
		log:      log.With("component", "store", "strategy", string(strategy)),
	}
	if strategy == StrategyMulti {
		s.tier = cache.New(ttl, 2*ttl)
	}
	return s
}

func (s *Store) Strategy() Strategy {
	return s.strategy
}

// Get decodes the value under key into out.
func (s *Store) Get(ctx context.Context, key string, out any) Status {
	raw, status := s.getRaw(ctx, key)
	if status != StatusHit {
		return status
	}

	if err := json.Unmarshal(raw, out); err != nil {
		s.log.Warn(ctx, "stored value cannot be decoded", "key", key, "error", err)
		return StatusUnavailable
	}
	return StatusHit
}

// GetAs is the generic form of Store.Get.
func GetAs[T any](ctx context.Context, s *Store, key string) (T, Status) {
	var v T
	status := s.Get(ctx, key, &v)
	return v, status
}

func (s *Store) getRaw(ctx context.Context, key string) ([]byte, Status) {
	if key == "" {
		return nil, StatusMiss
	}

	if s.tier != nil {
		if v, ok := s.tier.Get(key); ok {
			s.hits.Add(1)
			return v.([]byte), StatusHit
		}
		s.misses.Add(1)
	}

	raw, err := s.backend.Get(ctx, key)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, StatusMiss
	}
	if err != nil {
		s.log.Warn(ctx, "durable read failed", "key", key, "error", err)
		return nil, StatusUnavailable
	}

	if s.tier != nil {
		s.tier.Set(key, raw, s.ttl)
	}
	return raw, StatusHit
}

// Set writes value through to the backend and refreshes the memory tier
// unless SkipCache is given.
func (s *Store) Set(ctx context.Context, key string, value any, opts ...SetOption) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", common.ErrorValidation)
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: value for %q is not JSON encodable: %v", common.ErrorValidation, key, err)
	}

	var o setOptions
	for _, opt := range opts {
		opt(&o)
	}

	if err := s.backend.Set(ctx, key, raw); err != nil {
		s.log.Error(ctx, "durable write failed", "key", key, "error", err)
		return err
	}

	s.refresh(key, raw, o)
	return nil
}

func (s *Store) refresh(key string, raw []byte, o setOptions) {
	if s.tier == nil {
		return
	}
	if o.skipCache {
		s.tier.Delete(key)
		return
	}
	s.tier.Set(key, raw, s.ttl)
}

// Entry is one result of GetMultiple.
type Entry struct {
	Value  json.RawMessage
	Status Status
}

// Decode unmarshals a hit into out.
func (e Entry) Decode(out any) error {
	if e.Status != StatusHit {
		return fmt.Errorf("%w: entry is %s", common.ErrorNotFound, e.Status)
	}
	return json.Unmarshal(e.Value, out)
}

// GetMultiple reads every key; each entry carries its own status.
func (s *Store) GetMultiple(ctx context.Context, keys []string) map[string]Entry {
	result := make(map[string]Entry, len(keys))
	for _, k := range keys {
		raw, status := s.getRaw(ctx, k)
		result[k] = Entry{Value: raw, Status: status}
	}
	return result
}

// SetMultiple writes all values, atomically when the backend supports it.
func (s *Store) SetMultiple(ctx context.Context, values map[string]any, opts ...SetOption) error {
	encoded := make(map[string][]byte, len(values))
	for k, v := range values {
		if k == "" {
			return fmt.Errorf("%w: empty key", common.ErrorValidation)
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("%w: value for %q is not JSON encodable: %v", common.ErrorValidation, k, err)
		}
		encoded[k] = raw
	}

	var o setOptions
	for _, opt := range opts {
		opt(&o)
	}

	if batch, ok := s.backend.(BatchSetter); ok {
		if err := batch.SetMany(ctx, encoded); err != nil {
			s.log.Error(ctx, "durable batch write failed", "keys", len(encoded), "error", err)
			return err
		}
	} else {
		for k, raw := range encoded {
			if err := s.backend.Set(ctx, k, raw); err != nil {
				s.log.Error(ctx, "durable write failed", "key", k, "error", err)
				return err
			}
		}
	}

	for k, raw := range encoded {
		s.refresh(k, raw, o)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if s.tier != nil {
		s.tier.Delete(key)
	}
	if err := s.backend.Delete(ctx, key); err != nil {
		s.log.Error(ctx, "durable delete failed", "key", key, "error", err)
		return err
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if s.tier != nil {
		s.tier.Flush()
	}
	if err := s.backend.Clear(ctx); err != nil {
		s.log.Error(ctx, "durable clear failed", "error", err)
		return err
	}
	return nil
}

// Keys lists the durable keys. A backend failure is logged and yields nil.
func (s *Store) Keys(ctx context.Context) []string {
	keys, err := s.backend.Keys(ctx)
	if err != nil {
		s.log.Warn(ctx, "durable key scan failed", "error", err)
		return nil
	}
	return keys
}

func (s *Store) Stats() Stats {
	st := Stats{
		Strategy:    s.strategy,
		CacheHits:   s.hits.Load(),
		CacheMisses: s.misses.Load(),
	}
	if s.tier != nil {
		st.CacheItems = s.tier.ItemCount()
	}
	return st
}

func (s *Store) Close() error {
	if s.tier != nil {
		s.tier.Flush()
	}
	return s.backend.Close()
}
