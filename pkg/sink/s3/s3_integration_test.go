//go:build integration

package s3

import (
	"context"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/nfsfetch/pkg/sink"
	"github.com/marmos91/nfsfetch/pkg/sink/sinktest"
)

// TestS3Sink_Integration runs the sink contract suite against a real
// S3-compatible service (Localstack).
//
// Prerequisites:
//   - Localstack running on localhost:4566
//   - Run with: go test -tags=integration ./pkg/sink/s3/...
//
// To start Localstack:
//
//	docker run --rm -p 4566:4566 localstack/localstack
func TestS3Sink_Integration(t *testing.T) {
	ctx := context.Background()

	endpoint := os.Getenv("LOCALSTACK_ENDPOINT")
	if endpoint == "" {
		endpoint = "http://localhost:4566"
	}

	cfg := Config{
		Region:          "us-east-1",
		Endpoint:        endpoint,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		MaxRetries:      3,
	}
	client, err := NewClient(ctx, cfg)
	require.NoError(t, err)

	// ========================================================================
	// Create test bucket
	// ========================================================================

	cfg.Bucket = fmt.Sprintf("nfsfetch-test-%d", time.Now().UnixNano())
	_, err = client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(cfg.Bucket)})
	require.NoError(t, err)

	t.Cleanup(func() {
		listResp, _ := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{Bucket: aws.String(cfg.Bucket)})
		if listResp != nil {
			for _, obj := range listResp.Contents {
				_, _ = client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(cfg.Bucket), Key: obj.Key})
			}
		}
		_, _ = client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(cfg.Bucket)})
	})

	// ========================================================================
	// Run the contract suite, one object per test
	// ========================================================================

	n := 0
	suite := &sinktest.Suite{
		New: func(t *testing.T) (sink.Sink, sinktest.ReadBack) {
			n++
			name := fmt.Sprintf("file-%d", n)
			s, err := New(ctx, client, cfg, name)
			require.NoError(t, err)

			return s, func(ctx context.Context) ([]byte, bool, error) {
				return getObject(ctx, client, cfg.Bucket, s.Key())
			}
		},
	}

	suite.Run(t)
}

func getObject(ctx context.Context, client *s3.Client, bucket, key string) ([]byte, bool, error) {
	exists, err := client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil || exists == nil {
		// Not uploaded
		return nil, false, nil
	}

	out, err := client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}
