package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/gophstore/internal/config"
	"github.com/dmitrijs2005/gophstore/internal/logging"
)

// DefaultS3Prefix is the key prefix backups are written under.
const DefaultS3Prefix = "snapshots/"

// ObjectClient is the part of *s3.Client the backup needs.
type ObjectClient interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

var loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

// NewS3Client builds a client for cfg's bucket. Static credentials and a
// base endpoint make it work against MinIO as well as AWS.
func NewS3Client(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3Region),
	}
	if cfg.S3AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		))
	}

	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
			o.UsePathStyle = true
		}
	}), nil
}

type S3Backup struct {
	client ObjectClient
	bucket string
	prefix string
	log    logging.Logger
}

func NewS3Backup(client ObjectClient, bucket string, log logging.Logger) *S3Backup {
	return &S3Backup{
		client: client,
		bucket: bucket,
		prefix: DefaultS3Prefix,
		log:    log.With("component", "s3-backup", "bucket", bucket),
	}
}

// Key is the object key a backup called name is stored under.
func (b *S3Backup) Key(name string) string {
	if !strings.HasSuffix(name, ".json.gz") {
		name += ".json.gz"
	}
	return path.Join(b.prefix, name)
}

// Upload stores snap compressed. An empty name is derived from the export
// time.
func (b *S3Backup) Upload(ctx context.Context, snap *Snapshot, name string) (string, error) {
	if name == "" {
		name = snap.Metadata.ExportedAt.UTC().Format("20060102T150405Z")
	}

	var buf bytes.Buffer
	if err := Encode(&buf, snap, true); err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}

	key := b.Key(name)
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(b.bucket),
		Key:             aws.String(key),
		Body:            bytes.NewReader(buf.Bytes()),
		ContentType:     aws.String("application/json"),
		ContentEncoding: aws.String("gzip"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	b.log.Info(ctx, "snapshot uploaded", "key", key, "bytes", buf.Len())
	return key, nil
}

// Download fetches the backup under key (or under Key(key) when key lacks
// the backup prefix).
func (b *S3Backup) Download(ctx context.Context, key string) (*Snapshot, error) {
	if !strings.HasPrefix(key, b.prefix) {
		key = b.Key(key)
	}

	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", key, err)
	}
	defer out.Body.Close()

	return Decode(out.Body)
}

// List returns the stored backup keys, oldest name first.
func (b *S3Backup) List(ctx context.Context) ([]string, error) {
	var (
		keys  []string
		token *string
	)
	for {
		out, err := b.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(b.bucket),
			Prefix:            aws.String(b.prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list backups: %w", err)
		}
		for _, o := range out.Contents {
			keys = append(keys, aws.ToString(o.Key))
		}
		if !aws.ToBool(out.IsTruncated) || out.NextContinuationToken == nil {
			break
		}
		token = out.NextContinuationToken
	}

	slices.Sort(keys)
	return keys, nil
}
