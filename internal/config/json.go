package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/gophstore/internal/flagx"
	"github.com/dmitrijs2005/gophstore/internal/timex"
	"github.com/tailscale/hujson"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Pointer fields
// distinguish "absent" from zero so a partial file only overrides what it
// names.
type JsonConfig struct {
	DataDir             *string             `json:"data_dir"`
	StoreStrategy       *string             `json:"store_strategy"`
	CacheTTL            *timex.Duration     `json:"cache_ttl"`
	BlobMaxSize         *int64              `json:"blob_max_size"`
	BlobCompressQuality *int                `json:"blob_compress_quality"`
	BlobMaxDimension    *int                `json:"blob_max_dimension"`
	BlobMaxPixels       *int                `json:"blob_max_pixels"`
	ThumbnailSize       *int                `json:"thumbnail_size"`
	SearchMaxResults    *int                `json:"search_max_results"`
	SearchCollections   map[string][]string `json:"search_collections"`
	SyncCollections     []string            `json:"sync_collections"`
	ConflictStrategy    *string             `json:"conflict_strategy"`
	KDF                 *string             `json:"kdf"`
	KDFIterations       *int                `json:"kdf_iterations"`
	LogFormat           *string             `json:"log_format"`
	LogLevel            *string             `json:"log_level"`
	S3Bucket            *string             `json:"s3_bucket"`
	S3Region            *string             `json:"s3_region"`
	S3BaseEndpoint      *string             `json:"s3_base_endpoint"`
	S3AccessKey         *string             `json:"s3_access_key"`
	S3SecretKey         *string             `json:"s3_secret_key"`
}

// parseJson overlays cfg with values from the JSON file named by -c/--config
// in args. Without such a flag it does nothing.
func parseJson(cfg *Config, args []string) error {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(standardized, &jc); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}

	jc.apply(cfg)
	return nil
}

func (jc *JsonConfig) apply(cfg *Config) {
	setIf(&cfg.DataDir, jc.DataDir)
	setIf(&cfg.StoreStrategy, jc.StoreStrategy)
	if jc.CacheTTL != nil {
		cfg.CacheTTL = jc.CacheTTL.Duration
	}
	setIf(&cfg.BlobMaxSize, jc.BlobMaxSize)
	setIf(&cfg.BlobCompressQuality, jc.BlobCompressQuality)
	setIf(&cfg.BlobMaxDimension, jc.BlobMaxDimension)
	setIf(&cfg.BlobMaxPixels, jc.BlobMaxPixels)
	setIf(&cfg.ThumbnailSize, jc.ThumbnailSize)
	setIf(&cfg.SearchMaxResults, jc.SearchMaxResults)
	if jc.SearchCollections != nil {
		cfg.SearchCollections = jc.SearchCollections
	}
	if jc.SyncCollections != nil {
		cfg.SyncCollections = jc.SyncCollections
	}
	setIf(&cfg.ConflictStrategy, jc.ConflictStrategy)
	setIf(&cfg.KDF, jc.KDF)
	setIf(&cfg.KDFIterations, jc.KDFIterations)
	setIf(&cfg.LogFormat, jc.LogFormat)
	setIf(&cfg.LogLevel, jc.LogLevel)
	setIf(&cfg.S3Bucket, jc.S3Bucket)
	setIf(&cfg.S3Region, jc.S3Region)
	setIf(&cfg.S3BaseEndpoint, jc.S3BaseEndpoint)
	setIf(&cfg.S3AccessKey, jc.S3AccessKey)
	setIf(&cfg.S3SecretKey, jc.S3SecretKey)
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
