package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"studybuddy-backend/internal/shared/storage/blob"
)

type backend interface {
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	StatObject(ctx context.Context, bucket, key string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	PresignedGetObject(ctx context.Context, bucket, key string, expiry time.Duration, params url.Values) (*url.URL, error)
	RemoveObject(ctx context.Context, bucket, key string, opts minio.RemoveObjectOptions) error
	getObject(ctx context.Context, bucket, key string) ([]byte, string, error)
}

// Store implements blob.Store for MinIO or any S3 compatible endpoint.
type Store struct {
	client backend
	bucket string
}

// Options configures the MinIO connection.
type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// New connects to MinIO and ensures the bucket exists.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Endpoint == "" || opts.Bucket == "" {
		return nil, fmt.Errorf("minio endpoint and bucket are required")
	}
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}
	return &Store{client: clientAdapter{client}, bucket: opts.Bucket}, nil
}

// Put uploads an object at the exact storage path.
func (m *Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	clean, err := blob.CleanPath(key)
	if err != nil {
		return err
	}
	_, err = m.client.PutObject(ctx, m.bucket, clean, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// SignedURL generates a pre-signed GET URL after confirming the object exists.
func (m *Store) SignedURL(ctx context.Context, key string, validity time.Duration) (string, error) {
	clean, err := blob.CleanPath(key)
	if err != nil {
		return "", err
	}
	if _, err := m.client.StatObject(ctx, m.bucket, clean, minio.StatObjectOptions{}); err != nil {
		if isNotFound(err) {
			return "", blob.NotFound(key)
		}
		return "", fmt.Errorf("stat object: %w", err)
	}
	u, err := m.client.PresignedGetObject(ctx, m.bucket, clean, validity, nil)
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return u.String(), nil
}

// Fetch downloads an object.
func (m *Store) Fetch(ctx context.Context, key string) (blob.Object, error) {
	clean, err := blob.CleanPath(key)
	if err != nil {
		return blob.Object{}, err
	}
	data, contentType, err := m.client.getObject(ctx, m.bucket, clean)
	if err != nil {
		if isNotFound(err) {
			return blob.Object{}, blob.NotFound(key)
		}
		return blob.Object{}, fmt.Errorf("get object: %w", err)
	}
	return blob.Object{Data: data, ContentType: contentType}, nil
}

// Delete removes an object.
func (m *Store) Delete(ctx context.Context, key string) error {
	clean, err := blob.CleanPath(key)
	if err != nil {
		return err
	}
	if err := m.client.RemoveObject(ctx, m.bucket, clean, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return true
	}
	return false
}

type clientAdapter struct {
	*minio.Client
}

// getObject reads the whole object. GetObject is lazy, so Stat surfaces a missing key.
func (a clientAdapter) getObject(ctx context.Context, bucket, key string) ([]byte, string, error) {
	obj, err := a.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", err
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		return nil, "", err
	}
	if info.Size > blob.MaxObjectBytes {
		return nil, "", fmt.Errorf("object too large: %d bytes", info.Size)
	}
	data, err := io.ReadAll(io.LimitReader(obj, blob.MaxObjectBytes+1))
	if err != nil {
		return nil, "", err
	}
	return data, info.ContentType, nil
}

var _ blob.Store = (*Store)(nil)
