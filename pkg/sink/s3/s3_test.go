package s3

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/nfsfetch/pkg/sink"
	"github.com/marmos91/nfsfetch/pkg/sink/sinktest"
)

// ============================================================================
// Test Helper Functions
// ============================================================================

// fakeS3 is a minimal path-style S3 endpoint: HEAD bucket and PUT object.
type fakeS3 struct {
	bucket string

	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newFakeS3(t *testing.T, bucket string) (*fakeS3, *httptest.Server) {
	t.Helper()
	f := &fakeS3{bucket: bucket, objects: map[string][]byte{}, types: map[string]string{}}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")
	bucket, key, _ := strings.Cut(path, "/")
	if bucket != f.bucket {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch {
	case r.Method == http.MethodHead && key == "":
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut && key != "":
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.objects[key] = body
		f.types[key] = r.Header.Get("Content-Type")
		f.mu.Unlock()
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeS3) object(key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	return data, ok
}

// newTestClient builds a client for the fake endpoint without loading any
// shared AWS configuration.
func newTestClient(endpoint string) *s3.Client {
	return s3.New(s3.Options{
		Region:                     "us-east-1",
		BaseEndpoint:               aws.String(endpoint),
		UsePathStyle:               true,
		Credentials:                credentials.NewStaticCredentialsProvider("test", "test", ""),
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
	})
}

// ============================================================================
// Tests
// ============================================================================

// TestS3Sink runs the sink contract suite against the S3 sink.
func TestS3Sink(t *testing.T) {
	suite := &sinktest.Suite{
		New: func(t *testing.T) (sink.Sink, sinktest.ReadBack) {
			fake, srv := newFakeS3(t, "boot")
			s, err := New(context.Background(), newTestClient(srv.URL), Config{Bucket: "boot"}, "vmlinuz")
			require.NoError(t, err)

			return s, func(context.Context) ([]byte, bool, error) {
				data, ok := fake.object("vmlinuz")
				return data, ok, nil
			}
		},
	}

	suite.Run(t)
}

func TestObjectKey(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		file string
		want string
	}{
		{name: "ExplicitKey", cfg: Config{Key: "images/k", KeyPrefix: "p/"}, file: "vmlinuz", want: "images/k"},
		{name: "PrefixAndName", cfg: Config{KeyPrefix: "boot/"}, file: "vmlinuz", want: "boot/vmlinuz"},
		{name: "NameOnly", file: "initrd.img", want: "initrd.img"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, objectKey(tt.cfg, tt.file))
		})
	}

	t.Run("GeneratedKey", func(t *testing.T) {
		key := objectKey(Config{KeyPrefix: "tmp/"}, "")
		assert.True(t, strings.HasPrefix(key, "tmp/"))
		assert.Len(t, key, len("tmp/")+36)
	})
}

func TestS3SinkUpload(t *testing.T) {
	fake, srv := newFakeS3(t, "boot")

	s, err := New(context.Background(), newTestClient(srv.URL),
		Config{Bucket: "boot", KeyPrefix: "pxe/", ContentType: "application/x-iso9660-image"}, "boot.iso")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Truncate(context.Background(), 5))
	require.NoError(t, s.WriteAt(context.Background(), []byte("hello"), 0))
	require.NoError(t, s.Commit(context.Background()))

	data, ok := fake.object("pxe/boot.iso")
	require.True(t, ok)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, "application/x-iso9660-image", fake.types["pxe/boot.iso"])
	assert.Equal(t, "pxe/boot.iso", s.Key())
}

func TestS3SinkErrors(t *testing.T) {
	_, srv := newFakeS3(t, "boot")
	client := newTestClient(srv.URL)

	t.Run("MissingBucket", func(t *testing.T) {
		_, err := New(context.Background(), client, Config{Bucket: "other"}, "f")
		assert.Error(t, err)
	})

	t.Run("BucketRequired", func(t *testing.T) {
		_, err := New(context.Background(), client, Config{}, "f")
		assert.Error(t, err)
	})

	t.Run("RegionRequired", func(t *testing.T) {
		_, err := NewClient(context.Background(), Config{Bucket: "boot"})
		assert.Error(t, err)
	})
}
