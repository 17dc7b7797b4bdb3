package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophstore/internal/common"
	"github.com/syndtr/goleveldb/leveldb"
	ldb_opt "github.com/syndtr/goleveldb/leveldb/opt"
	ldb_util "github.com/syndtr/goleveldb/leveldb/util"
)

// keys of the store live under this prefix so the same LevelDB directory
// can carry other records later without colliding with user keys
const levelDBPrefix = "kv/"

// LevelDBBackend is the flat-durable backend.
type LevelDBBackend struct {
	db    *leveldb.DB
	write *ldb_opt.WriteOptions
}

var (
	_ Backend     = (*LevelDBBackend)(nil)
	_ BatchSetter = (*LevelDBBackend)(nil)
)

// OpenLevelDB opens or creates the LevelDB directory at path.
func OpenLevelDB(path string) (*LevelDBBackend, error) {
	opt := &ldb_opt.Options{
		ErrorIfExist:   false,
		ErrorIfMissing: false,
	}

	db, err := leveldb.OpenFile(path, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb %s: %w", path, err)
	}

	return &LevelDBBackend{db: db, write: &ldb_opt.WriteOptions{Sync: true}}, nil
}

func prefixKey(key string) []byte {
	return []byte(levelDBPrefix + key)
}

func (l *LevelDBBackend) Get(_ context.Context, key string) ([]byte, error) {
	value, err := l.db.Get(prefixKey(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("leveldb get %q: %w", key, err)
	}
	return value, nil
}

func (l *LevelDBBackend) Set(_ context.Context, key string, value []byte) error {
	if err := l.db.Put(prefixKey(key), value, l.write); err != nil {
		return fmt.Errorf("leveldb put %q: %w", key, err)
	}
	return nil
}

func (l *LevelDBBackend) SetMany(_ context.Context, values map[string][]byte) error {
	batch := new(leveldb.Batch)
	for k, v := range values {
		batch.Put(prefixKey(k), v)
	}
	if err := l.db.Write(batch, l.write); err != nil {
		return fmt.Errorf("leveldb batch write: %w", err)
	}
	return nil
}

func (l *LevelDBBackend) Delete(_ context.Context, key string) error {
	if err := l.db.Delete(prefixKey(key), l.write); err != nil {
		return fmt.Errorf("leveldb delete %q: %w", key, err)
	}
	return nil
}

func (l *LevelDBBackend) Clear(_ context.Context) error {
	iter := l.db.NewIterator(ldb_util.BytesPrefix([]byte(levelDBPrefix)), nil)
	batch := new(leveldb.Batch)
	for iter.Next() {
		batch.Delete(append([]byte(nil), iter.Key()...))
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return fmt.Errorf("leveldb scan: %w", err)
	}

	if err := l.db.Write(batch, l.write); err != nil {
		return fmt.Errorf("leveldb clear: %w", err)
	}
	return nil
}

func (l *LevelDBBackend) Keys(_ context.Context) ([]string, error) {
	iter := l.db.NewIterator(ldb_util.BytesPrefix([]byte(levelDBPrefix)), nil)
	defer iter.Release()

	var keys []string
	for iter.Next() {
		keys = append(keys, string(iter.Key()[len(levelDBPrefix):]))
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("leveldb scan: %w", err)
	}
	return keys, nil
}

func (l *LevelDBBackend) Close() error {
	return l.db.Close()
}
