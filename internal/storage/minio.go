package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrMinIONotConfigured is returned when MinIO storage lacks an endpoint or bucket.
var ErrMinIONotConfigured = errors.New("MinIO storage is not configured")

// MinIOConfig holds the configuration for MinIO storage.
type MinIOConfig struct {
	Endpoint  string // host:port, no scheme
	Bucket    string
	Region    string
	Prefix    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// MinIOStorage implements Storage on a MinIO (or other S3-compatible) server.
type MinIOStorage struct {
	client *minio.Client
	cfg    MinIOConfig
	prefix string
}

// NewMinIOStorage creates a client. It does not contact the server.
func NewMinIOStorage(cfg MinIOConfig) (*MinIOStorage, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, ErrMinIONotConfigured
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       cfg.UseSSL,
		Region:       cfg.Region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("create MinIO client: %w", err)
	}

	return &MinIOStorage{
		client: client,
		cfg:    cfg,
		prefix: path.Clean("/" + cfg.Prefix)[1:],
	}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *MinIOStorage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.cfg.Bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{Region: s.cfg.Region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.cfg.Bucket, err)
	}
	return nil
}

// Key returns the object key an export named name is stored under.
func (s *MinIOStorage) Key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

// Save uploads data in a single request and returns the object URL.
func (s *MinIOStorage) Save(ctx context.Context, name, contentType string, data io.Reader) (string, error) {
	base, err := cleanName(name)
	if err != nil {
		return "", err
	}
	key := s.Key(base)

	body, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("read export: %w", err)
	}

	_, err = s.client.PutObject(ctx, s.cfg.Bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType:        contentType,
		ContentDisposition: fmt.Sprintf("attachment; filename=%q", base),
	})
	if err != nil {
		return "", fmt.Errorf("upload to MinIO: %w", err)
	}

	return s.objectURL(key), nil
}

func (s *MinIOStorage) objectURL(key string) string {
	scheme := "http"
	if s.cfg.UseSSL {
		scheme = "https"
	}
	escaped := (&url.URL{Path: key}).EscapedPath()
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.cfg.Endpoint, s.cfg.Bucket, escaped)
}

// Compile-time check that MinIOStorage implements Storage.
var _ Storage = (*MinIOStorage)(nil)
