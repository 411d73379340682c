package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DefaultSignTTL is the expiry for signed access URLs when the caller does
// not ask for a specific one.
const DefaultSignTTL = time.Hour

// ObjectStorage is the gateway to the binary object store.
type ObjectStorage interface {
	Put(ctx context.Context, objectKey string, r io.Reader, size int64, contentType string) error
	// PutFile uploads a file from the local filesystem, for assets produced
	// on disk such as rendered videos.
	PutFile(ctx context.Context, objectKey, path, contentType string) error
	// Delete is idempotent: removing a missing key is not an error.
	Delete(ctx context.Context, objectKey string) error
	// SignedURL mints a time-limited access URL for a private object.
	// asAttachment forces a download disposition on the response.
	SignedURL(ctx context.Context, objectKey string, ttl time.Duration, asAttachment bool) (string, error)
}

// MinioObjectStorage stores photo and video blobs in a MinIO/S3 bucket.
type MinioObjectStorage struct {
	client *minio.Client
	bucket string
	log    *zap.Logger
}

// MinioConfig carries the connection settings for the object store.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// NewMinioObjectStorage connects to the object store and verifies the
// bucket exists, creating it when missing.
func NewMinioObjectStorage(ctx context.Context, cfg MinioConfig, log *zap.Logger) (*MinioObjectStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, storeErr("object", errors.Wrap(err, "connect"))
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, storeErr("object", errors.Wrapf(err, "check bucket %q", cfg.Bucket))
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, storeErr("object", errors.Wrapf(err, "create bucket %q", cfg.Bucket))
		}
		log.Info("created object store bucket", zap.String("bucket", cfg.Bucket))
	}

	log.Info("connected to object store",
		zap.String("endpoint", cfg.Endpoint),
		zap.String("bucket", cfg.Bucket))

	return &MinioObjectStorage{client: client, bucket: cfg.Bucket, log: log}, nil
}

func (s *MinioObjectStorage) Put(ctx context.Context, objectKey string, r io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, objectKey, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return storeErr("object", errors.Wrapf(err, "put %q", objectKey))
	}
	s.log.Debug("object stored", zap.String("key", objectKey), zap.Int64("size", size))
	return nil
}

func (s *MinioObjectStorage) PutFile(ctx context.Context, objectKey, path, contentType string) error {
	_, err := s.client.FPutObject(ctx, s.bucket, objectKey, path, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return storeErr("object", errors.Wrapf(err, "put file %q", objectKey))
	}
	s.log.Debug("object stored from file", zap.String("key", objectKey), zap.String("path", path))
	return nil
}

func (s *MinioObjectStorage) Delete(ctx context.Context, objectKey string) error {
	err := s.client.RemoveObject(ctx, s.bucket, objectKey, minio.RemoveObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.Code == "NotFound" {
			return nil // already gone
		}
		return storeErr("object", errors.Wrapf(err, "delete %q", objectKey))
	}
	return nil
}

func (s *MinioObjectStorage) SignedURL(ctx context.Context, objectKey string, ttl time.Duration, asAttachment bool) (string, error) {
	if ttl <= 0 {
		ttl = DefaultSignTTL
	}

	params := url.Values{}
	if asAttachment {
		params.Set("response-content-disposition",
			fmt.Sprintf("attachment; filename=%q", filepath.Base(objectKey)))
	}

	u, err := s.client.PresignedGetObject(ctx, s.bucket, objectKey, ttl, params)
	if err != nil {
		return "", storeErr("object", errors.Wrapf(err, "sign %q", objectKey))
	}
	return u.String(), nil
}
