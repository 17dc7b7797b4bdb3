// Package config loads runtime configuration for gophstore.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c or --config. The file may contain
//     comments and trailing commas (it is standardized with hujson first).
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-d, --data-dir string   directory holding the SQLite and LevelDB files
//	-s, --strategy string   unified store strategy (memory, flat-durable,
//	                        transactional-durable, multi)
//	-t, --cache-ttl int     memory cache TTL in seconds (multi strategy)
//	-l, --log-level string  debug, info, warn or error
//
// # JSON schema
//
//	{
//	  // where everything lives
//	  "data_dir": "/var/lib/gophstore",
//	  "store_strategy": "multi",
//	  "cache_ttl": "1h",
//	  "blob_max_size": 10485760,
//	  "search_collections": {"orders": ["customer", "notes"], "products": null},
//	  "sync_collections": ["orders", "products"],
//	  "conflict_strategy": "latest-wins",
//	  "kdf": "pbkdf2",
//	  "kdf_iterations": 100000,
//	}
//
// Environment variables are not read; use the JSON file or flags.
package config
