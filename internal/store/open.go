package store

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/gophstore/internal/logging"
)

// Deps are the resources Open may build a backend from.
type Deps struct {
	// DB is the local database; required by transactional-durable.
	DB *sql.DB
	// DataDir holds the LevelDB directory of flat-durable and multi.
	DataDir  string
	CacheTTL time.Duration
	Logger   logging.Logger
}

// LevelDBDir is the directory name of the flat-durable backend.
const LevelDBDir = "kv.ldb"

// Open builds the backend the strategy calls for and wraps it in a Store.
func Open(strategy Strategy, deps Deps) (*Store, error) {
	var backend Backend

	switch strategy {
	case StrategyMemory:
		backend = NewMemoryBackend()
	case StrategyTransactional:
		if deps.DB == nil {
			return nil, fmt.Errorf("store strategy %s needs a database", strategy)
		}
		backend = NewSQLiteBackend(deps.DB)
	case StrategyFlat, StrategyMulti:
		ldb, err := OpenLevelDB(filepath.Join(deps.DataDir, LevelDBDir))
		if err != nil {
			return nil, err
		}
		backend = ldb
	default:
		_, err := ParseStrategy(string(strategy))
		return nil, err
	}

	return New(strategy, backend, deps.CacheTTL, deps.Logger), nil
}
