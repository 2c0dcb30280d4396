// Package minio stores file bytes in a MinIO or other S3-compatible server
// through the minio-go client. Locators share the s3://bucket/key format of
// the s3 backend.
package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/tendant/simple-files/pkg/filestore"
)

const backendName = "minio"

type Config struct {
	Endpoint     string // host:port, without scheme
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	UseSSL       bool
	PathStyle    bool
	CreateBucket bool
}

type Backend struct {
	cl     *minio.Client
	bucket string
}

func New(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}

	opts := &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	}
	if cfg.PathStyle {
		opts.BucketLookup = minio.BucketLookupPath
	}
	cl, err := minio.New(cfg.Endpoint, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	b := &Backend{cl: cl, bucket: cfg.Bucket}
	if cfg.CreateBucket {
		if err := b.ensureBucket(ctx, cfg.Region); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (b *Backend) Name() string { return backendName }

func (b *Backend) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if key == "" {
		return "", filestore.NewWriteError(backendName, key, "put", fmt.Errorf("%w: empty key", filestore.ErrInvalidLocator))
	}

	_, err := b.cl.PutObject(ctx, b.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", filestore.NewWriteError(backendName, key, "put", err)
	}
	return filestore.ObjectLocator(b.bucket, key), nil
}

func (b *Backend) Get(ctx context.Context, locator string) ([]byte, error) {
	key, err := keyFor(b.bucket, locator)
	if err != nil {
		return nil, filestore.NewReadError(backendName, locator, "get", err)
	}

	obj, err := b.cl.GetObject(ctx, b.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, readError(locator, err)
	}
	defer obj.Close()

	// GetObject is lazy, a missing key surfaces on the first read
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, readError(locator, err)
	}
	return data, nil
}

// Delete removes the object; RemoveObject already succeeds for absent keys.
func (b *Backend) Delete(ctx context.Context, locator string) error {
	key, err := keyFor(b.bucket, locator)
	if err != nil {
		return filestore.NewWriteError(backendName, locator, "delete", err)
	}

	err = b.cl.RemoveObject(ctx, b.bucket, key, minio.RemoveObjectOptions{})
	if err != nil && !isNotFound(err) {
		return filestore.NewWriteError(backendName, locator, "delete", err)
	}
	return nil
}

func (b *Backend) ensureBucket(ctx context.Context, region string) error {
	exists, err := b.cl.BucketExists(ctx, b.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := b.cl.MakeBucket(ctx, b.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		switch minio.ToErrorResponse(err).Code {
		case "BucketAlreadyOwnedByYou", "BucketAlreadyExists":
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

func keyFor(bucket, locator string) (string, error) {
	got, key, err := filestore.ParseObjectLocator(locator)
	if err != nil {
		return "", err
	}
	if got != bucket {
		return "", fmt.Errorf("%w: bucket %q does not match %q", filestore.ErrInvalidLocator, got, bucket)
	}
	return key, nil
}

func readError(locator string, err error) error {
	if isNotFound(err) {
		return filestore.NewBlobNotFoundError(backendName, locator)
	}
	return filestore.NewReadError(backendName, locator, "get", err)
}

func isNotFound(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return true
	}
	return false
}
