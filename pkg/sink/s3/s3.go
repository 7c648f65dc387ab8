// Package s3 implements a sink uploading the fetched file to Amazon S3 or an
// S3-compatible service.
package s3

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/marmos91/nfsfetch/internal/logger"
	"github.com/marmos91/nfsfetch/pkg/sink"
	"github.com/marmos91/nfsfetch/pkg/sink/memory"
)

// Config configures an S3 sink.
type Config struct {
	// Bucket is the destination bucket. It must already exist.
	Bucket string `mapstructure:"bucket"`

	// Key is the object key. When empty, KeyPrefix plus the fetched file
	// name is used, or KeyPrefix plus a random UUID if there is no name.
	Key string `mapstructure:"key"`

	// KeyPrefix is prepended to generated keys.
	// Example: "boot/" results in keys like "boot/vmlinuz"
	KeyPrefix string `mapstructure:"key_prefix"`

	// Region is the AWS region.
	Region string `mapstructure:"region"`

	// Endpoint overrides the service endpoint (MinIO, Localstack, etc.).
	// Path-style addressing is used when set.
	Endpoint string `mapstructure:"endpoint"`

	// AccessKeyID and SecretAccessKey select static credentials. When empty
	// the default credential chain is used.
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`

	// MaxRetries is the number of attempts for transient errors. Zero
	// selects 10.
	MaxRetries int `mapstructure:"max_retries"`

	// MaxSize bounds the buffered object size. Zero means no limit.
	MaxSize uint64 `mapstructure:"max_size"`

	// ContentType is stored with the object. Zero value selects
	// application/octet-stream.
	ContentType string `mapstructure:"content_type"`
}

// NewClient builds an S3 client from cfg.
//
// Returns an error if Region is missing or the AWS configuration cannot be
// loaded.
func NewClient(ctx context.Context, cfg Config) (*s3.Client, error) {
	if cfg.Region == "" {
		return nil, fmt.Errorf("s3 sink: region is required")
	}

	// ========================================================================
	// Step 1: Build AWS config
	// ========================================================================

	configOptions := []func(*awsConfig.LoadOptions) error{
		awsConfig.WithRegion(cfg.Region),
	}

	// Static credentials if provided, otherwise the default credential chain
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// ========================================================================
	// Step 2: Create S3 client
	// ========================================================================

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// Sink buffers the file in memory and uploads it with a single PutObject on
// Commit.
//
// S3 objects cannot be written at arbitrary offsets, and READ replies may
// arrive out of order, so the whole file is assembled locally first. Use
// MaxSize to bound memory use.
type Sink struct {
	client      *s3.Client
	bucket      string
	key         string
	contentType string
	buf         *memory.Sink
	committed   bool
	closed      bool
}

// New creates an S3 sink for the object derived from cfg and name.
//
// The bucket is checked with HeadBucket; it is not created.
func New(ctx context.Context, client *s3.Client, cfg Config, name string) (*Sink, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if client == nil {
		return nil, fmt.Errorf("s3 sink: client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 sink: bucket is required")
	}

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.Bucket)}); err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	contentType := cfg.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return &Sink{
		client:      client,
		bucket:      cfg.Bucket,
		key:         objectKey(cfg, name),
		contentType: contentType,
		buf:         memory.New(memory.Config{MaxSize: cfg.MaxSize}),
	}, nil
}

// objectKey picks the key: explicit Key, else prefix+name, else prefix+UUID.
func objectKey(cfg Config, name string) string {
	switch {
	case cfg.Key != "":
		return cfg.Key
	case name != "":
		return cfg.KeyPrefix + name
	default:
		return cfg.KeyPrefix + uuid.NewString()
	}
}

// Key returns the destination object key.
func (s *Sink) Key() string {
	return s.key
}

// WriteAt implements sink.Sink.
func (s *Sink) WriteAt(ctx context.Context, data []byte, offset uint64) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.buf.WriteAt(ctx, data, offset)
}

// Truncate implements sink.Sink.
func (s *Sink) Truncate(ctx context.Context, size uint64) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.buf.Truncate(ctx, size)
}

// Commit uploads the buffered file.
func (s *Sink) Commit(ctx context.Context) error {
	if err := s.check(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data := s.buf.Bytes()
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(s.contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload s3://%s/%s: %w", s.bucket, s.key, err)
	}

	s.committed = true
	logger.Debug("s3 sink: uploaded s3://%s/%s (%d bytes)", s.bucket, s.key, len(data))
	return nil
}

// Close implements sink.Sink. Nothing is uploaded without Commit.
func (s *Sink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.buf.Close()
}

func (s *Sink) check() error {
	if s.closed {
		return sink.ErrClosed
	}
	if s.committed {
		return sink.ErrCommitted
	}
	return nil
}
