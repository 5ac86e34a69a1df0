package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/mouleshgs/onboardX/config"
)

// BlobInfo carries the response metadata forwarded by the file
// streaming endpoint.
type BlobInfo struct {
	ContentType  string
	Size         int64
	Disposition  string
	AcceptRanges string
}

// ObjectBackend is the cloud-store capability the resolver and writer
// depend on. ObjectStore implements it with MinIO; tests substitute
// fakes.
type ObjectBackend interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, BlobInfo, error)
	Stat(ctx context.Context, key string) (BlobInfo, error)
	// ShareLink mints a time-limited download URL for key.
	ShareLink(ctx context.Context, key string) (string, error)
	// KeyFromLink recovers the object key from a link this backend
	// minted, or reports false.
	KeyFromLink(link string) (string, bool)
}

// ObjectStore is the S3-compatible primary blob backend.
type ObjectStore struct {
	client *minio.Client
	bucket string
	expiry time.Duration
}

// NewObjectStore creates the cloud backend. A nil store (unconfigured
// endpoint) is a valid state: the writer then falls back to local
// storage and the resolver skips cloud strategies.
func NewObjectStore(cfg *config.MinioConfig) (*ObjectStore, error) {
	if cfg.Endpoint == "" {
		return nil, nil
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &ObjectStore{
		client: client,
		bucket: cfg.Bucket,
		expiry: time.Duration(cfg.ExpireHours) * time.Hour,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (s *ObjectStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	if !exists {
		err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

// Put uploads data under key with overwrite semantics.
func (s *ObjectStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload object: %w", err)
	}

	return nil
}

// Get downloads the full object content.
func (s *ObjectStore) Get(ctx context.Context, key string) ([]byte, BlobInfo, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, BlobInfo{}, fmt.Errorf("failed to get object: %w", err)
	}
	defer obj.Close()

	st, err := obj.Stat()
	if err != nil {
		return nil, BlobInfo{}, fmt.Errorf("failed to stat object: %w", err)
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, BlobInfo{}, fmt.Errorf("failed to read object: %w", err)
	}

	return data, BlobInfo{ContentType: st.ContentType, Size: st.Size}, nil
}

// Stat returns object metadata without fetching content.
func (s *ObjectStore) Stat(ctx context.Context, key string) (BlobInfo, error) {
	st, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return BlobInfo{}, fmt.Errorf("failed to stat object: %w", err)
	}
	return BlobInfo{ContentType: st.ContentType, Size: st.Size}, nil
}

// ShareLink generates a presigned URL for the object with expiration.
func (s *ObjectStore) ShareLink(ctx context.Context, key string) (string, error) {
	url, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return url.String(), nil
}

// KeyFromLink extracts the object key from a presigned URL previously
// minted for this bucket.
func (s *ObjectStore) KeyFromLink(link string) (string, bool) {
	marker := "/" + s.bucket + "/"
	idx := strings.Index(link, marker)
	if idx < 0 {
		return "", false
	}
	rest := link[idx+len(marker):]
	if q := strings.IndexByte(rest, '?'); q >= 0 {
		rest = rest[:q]
	}
	if rest == "" {
		return "", false
	}
	return rest, true
}
