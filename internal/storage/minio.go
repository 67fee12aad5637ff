package storage

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// listing metadata keys come back with the raw S3 header prefix
const amzMetaPrefix = "X-Amz-Meta-"

// MinioStorage implements Storage using a MinIO (or any S3-compatible) backend.
type MinioStorage struct {
	client *minio.Client
	bucket string
}

// NewMinioStorage creates a MinIO client, ensures the bucket exists, and
// returns a ready-to-use MinioStorage.
func NewMinioStorage(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinioStorage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	ctx := context.Background()

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", bucket, err)
		}
		log.Printf("storage: created bucket %q", bucket)
	}

	return &MinioStorage{client: client, bucket: bucket}, nil
}

// Put writes data under key with the given content type, cache control and
// user metadata.
func (s *MinioStorage) Put(ctx context.Context, key string, data []byte, opts PutOptions) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  opts.ContentType,
		CacheControl: opts.CacheControl,
		UserMetadata: opts.Metadata,
	})
	if err != nil {
		return fmt.Errorf("put object %q: %w", key, err)
	}
	return nil
}

// Get opens the object at key. A missing key maps to ErrNotFound.
func (s *MinioStorage) Get(ctx context.Context, key string) (*ObjectBody, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %q: %w", key, err)
	}

	// GetObject is lazy; Stat performs the request and surfaces a missing key.
	stat, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("stat object %q: %w", key, err)
	}

	return &ObjectBody{
		Body:        obj,
		ContentType: stat.ContentType,
		ETag:        stat.ETag,
	}, nil
}

// List returns up to limit objects under prefix, including their user metadata.
func (s *MinioStorage) List(ctx context.Context, prefix string, limit int) ([]Object, error) {
	objects := make([]Object, 0, limit)
	for info := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:       prefix,
		Recursive:    true,
		WithMetadata: true,
		MaxKeys:      limit,
	}) {
		if info.Err != nil {
			return nil, fmt.Errorf("list objects %q: %w", prefix, info.Err)
		}
		objects = append(objects, Object{
			Key:      info.Key,
			Size:     info.Size,
			Uploaded: info.LastModified,
			Metadata: normalizeMetadata(info.UserMetadata),
		})
		if len(objects) >= limit {
			break
		}
	}
	return objects, nil
}

// SignedURL returns a presigned GET URL for key valid for expiry.
func (s *MinioStorage) SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign object %q: %w", key, err)
	}
	return u.String(), nil
}

// normalizeMetadata strips the S3 header prefix and lowercases metadata keys,
// so stored and listed metadata read the same.
func normalizeMetadata(raw map[string]string) map[string]string {
	if len(raw) == 0 {
		return map[string]string{}
	}
	meta := make(map[string]string, len(raw))
	for k, v := range raw {
		k = strings.TrimPrefix(k, amzMetaPrefix)
		meta[strings.ToLower(k)] = v
	}
	return meta
}
