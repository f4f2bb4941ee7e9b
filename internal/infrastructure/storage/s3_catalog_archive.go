// Package storage archives raw supplier catalogs in S3-compatible object storage.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/printhub/fulfillment/internal/application/supplysync"
	infraconfig "github.com/printhub/fulfillment/internal/infrastructure/config"
)

const (
	snapshotContentType = "application/json"
	snapshotTimeLayout  = "20060102T150405.000Z"
)

var _ supplysync.CatalogArchive = (*S3CatalogArchive)(nil)

// S3CatalogArchive stores catalog snapshots as JSON objects keyed
// <prefix>/<supplier code>/<fetched at>.json. It works against AWS S3 and
// S3-compatible servers such as MinIO.
type S3CatalogArchive struct {
	client *s3.Client
	bucket string
	prefix string
	logger *zap.Logger
}

// S3CatalogArchiveOption is a functional option for configuring S3CatalogArchive
type S3CatalogArchiveOption func(*S3CatalogArchive)

// WithLogger sets a custom logger for S3CatalogArchive
func WithLogger(logger *zap.Logger) S3CatalogArchiveOption {
	return func(s *S3CatalogArchive) {
		s.logger = logger
	}
}

// NewS3CatalogArchive creates an archive from configuration
func NewS3CatalogArchive(cfg *infraconfig.StorageConfig, opts ...S3CatalogArchiveOption) (*S3CatalogArchive, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if cfg.AccessKey == "" {
		return nil, errors.New("storage access key is required")
	}
	if cfg.SecretKey == "" {
		return nil, errors.New("storage secret key is required")
	}

	endpoint, err := normalizeEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		// S3-compatible servers do not all accept flexible checksum trailers
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	archive := &S3CatalogArchive{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(archive)
	}

	return archive, nil
}

// normalizeEndpoint adds a scheme to host:port endpoints. Empty stays empty (AWS).
func normalizeEndpoint(endpoint string, useSSL bool) (string, error) {
	if endpoint == "" {
		return "", nil
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		if useSSL {
			endpoint = "https://" + endpoint
		} else {
			endpoint = "http://" + endpoint
		}
	}
	if _, err := url.Parse(endpoint); err != nil {
		return "", fmt.Errorf("invalid storage endpoint: %w", err)
	}
	return endpoint, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
// Call this during application startup to ensure the bucket is ready.
func (s *S3CatalogArchive) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	s.logger.Info("Creating catalog archive bucket", zap.String("bucket", s.bucket))
	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		// Another replica may have created it first
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	return nil
}

// SnapshotKey returns the object key a snapshot is stored under
func (s *S3CatalogArchive) SnapshotKey(snapshot supplysync.CatalogSnapshot) string {
	code := snapshot.SupplierCode
	if code == "" {
		code = snapshot.SupplierID.String()
	}
	name := snapshot.FetchedAt.UTC().Format(snapshotTimeLayout) + ".json"
	return path.Join(s.prefix, code, name)
}

// Archive uploads snapshot as JSON and returns its key
func (s *S3CatalogArchive) Archive(ctx context.Context, snapshot supplysync.CatalogSnapshot) (string, error) {
	body, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("failed to encode catalog snapshot: %w", err)
	}

	key := s.SnapshotKey(snapshot)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(snapshotContentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload catalog snapshot %s: %w", key, err)
	}

	s.logger.Debug("Catalog snapshot archived",
		zap.String("key", key),
		zap.Int("products", len(snapshot.Products)),
	)
	return key, nil
}

// Fetch reads a stored snapshot back
func (s *S3CatalogArchive) Fetch(ctx context.Context, key string) (*supplysync.CatalogSnapshot, error) {
	if key == "" {
		return nil, errors.New("storage key is required")
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch catalog snapshot %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog snapshot %s: %w", key, err)
	}

	var snapshot supplysync.CatalogSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode catalog snapshot %s: %w", key, err)
	}
	return &snapshot, nil
}

// Bucket returns the bucket name
func (s *S3CatalogArchive) Bucket() string {
	return s.bucket
}
