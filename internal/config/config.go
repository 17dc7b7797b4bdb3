package config

import "time"

// Store strategies understood by the unified store.
const (
	StrategyMemory        = "memory"
	StrategyFlat          = "flat-durable"
	StrategyTransactional = "transactional-durable"
	StrategyMulti         = "multi"
)

// Config holds runtime settings for the gophstore engine and CLI.
//
// Units: sizes are bytes, durations are time.Duration, qualities are 1..100.
type Config struct {
	DataDir string

	StoreStrategy string
	CacheTTL      time.Duration

	BlobMaxSize         int64
	BlobCompressQuality int
	BlobMaxDimension    int
	BlobMaxPixels       int
	ThumbnailSize       int

	SearchMaxResults  int
	SearchCollections map[string][]string

	SyncCollections  []string
	ConflictStrategy string

	KDF           string
	KDFIterations int

	LogFormat string
	LogLevel  string

	S3Bucket       string
	S3Region       string
	S3BaseEndpoint string
	S3AccessKey    string
	S3SecretKey    string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DataDir = "gophstore-data"
	c.StoreStrategy = StrategyMulti
	c.CacheTTL = time.Hour
	c.BlobMaxSize = 10 * 1024 * 1024
	c.BlobCompressQuality = 80
	c.BlobMaxDimension = 1920
	c.BlobMaxPixels = 40_000_000
	c.ThumbnailSize = 200
	c.SearchMaxResults = 50
	c.SearchCollections = map[string][]string{}
	c.SyncCollections = nil
	c.ConflictStrategy = "latest-wins"
	c.KDF = "pbkdf2"
	c.KDFIterations = 100_000
	c.LogFormat = "text"
	c.LogLevel = "info"
	c.S3Region = "us-east-1"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if a -c/--config path is present in args) and command-line flags.
// Later sources take precedence over earlier ones.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsSynced reports whether mutations on collection must be change-tracked.
func (c *Config) IsSynced(collection string) bool {
	for _, name := range c.SyncCollections {
		if name == collection || name == "*" {
			return true
		}
	}
	return false
}

// IndexedFields returns the fields indexed for collection and whether the
// collection is indexed at all. A nil field list means "every text field".
func (c *Config) IndexedFields(collection string) ([]string, bool) {
	fields, ok := c.SearchCollections[collection]
	return fields, ok
}
