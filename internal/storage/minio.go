package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/snapreel/backend/internal/config"
)

// minioClient is the subset of *minio.Client used here.
type minioClient interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// MinioStorage writes media to a MinIO (or other S3 API) server through minio-go.
type MinioStorage struct {
	client minioClient
	bucket string
	locator
}

// NewMinioStorage connects to cfg.Endpoint and creates the bucket when missing.
func NewMinioStorage(ctx context.Context, cfg config.ObjectStoreConfig) (*MinioStorage, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	endpoint = strings.TrimPrefix(strings.TrimPrefix(endpoint, "https://"), "http://")
	if endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("minio storage: endpoint and bucket are required")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	baseURL := strings.TrimSuffix(cfg.PublicBaseURL, "/")
	if baseURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		baseURL = fmt.Sprintf("%s://%s/%s", scheme, endpoint, cfg.Bucket)
	}

	store := newMinioStorage(client, cfg.Bucket, baseURL)
	if err := store.ensureBucket(ctx, cfg.Region); err != nil {
		return nil, err
	}
	return store, nil
}

func newMinioStorage(client minioClient, bucket, baseURL string) *MinioStorage {
	return &MinioStorage{client: client, bucket: bucket, locator: locator{baseURL: baseURL}}
}

func (s *MinioStorage) ensureBucket(ctx context.Context, region string) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Put streams r to the bucket. size may be -1 when unknown.
func (s *MinioStorage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", fmt.Errorf("minio storage: %w", err)
	}
	if size <= 0 {
		size = -1
	}
	if _, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return "", fmt.Errorf("minio storage upload %s: %w", key, err)
	}
	return s.location(key), nil
}

// Delete removes the object behind a location returned by Put.
func (s *MinioStorage) Delete(ctx context.Context, location string) error {
	key, err := s.key(location)
	if err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("minio storage delete %s: %w", key, err)
	}
	return nil
}
