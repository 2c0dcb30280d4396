package config

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/tendant/simple-files/pkg/filestore"
	"github.com/tendant/simple-files/pkg/filestore/storage/fs"
	memorystorage "github.com/tendant/simple-files/pkg/filestore/storage/memory"
	miniostorage "github.com/tendant/simple-files/pkg/filestore/storage/minio"
	s3storage "github.com/tendant/simple-files/pkg/filestore/storage/s3"
	"github.com/tendant/simple-files/pkg/filestore/storagekey"
	"github.com/tendant/simple-files/pkg/filestore/store/memory"
	"github.com/tendant/simple-files/pkg/filestore/store/mongo"
	"github.com/tendant/simple-files/pkg/filestore/store/postgres"
	"github.com/tendant/simple-files/pkg/filestore/store/rediscache"
)

// Built holds a configured service and the connections backing it.
type Built struct {
	Service filestore.Service
	Metrics *filestore.Metrics

	closers []func()
}

// Close releases store connections in reverse order of creation.
func (b *Built) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}

// BuildService creates a Service instance from the configuration
func (c *Config) BuildService(ctx context.Context, logger *slog.Logger) (*Built, error) {
	if logger == nil {
		logger = slog.Default()
	}
	built := &Built{Metrics: filestore.NewMetrics()}

	store, err := c.buildMetadataStore(ctx, logger, built)
	if err != nil {
		built.Close()
		return nil, fmt.Errorf("failed to build metadata store: %w", err)
	}

	backend, err := c.buildBlobBackend(ctx)
	if err != nil {
		built.Close()
		return nil, fmt.Errorf("failed to build storage backend %s: %w", c.Storage.Type, err)
	}

	keys, err := storagekey.New(c.Upload.KeyStrategy)
	if err != nil {
		built.Close()
		return nil, err
	}

	svc, err := filestore.New(
		filestore.WithBlobBackend(backend),
		filestore.WithMetadataStore(store),
		filestore.WithAllowedContentTypes(c.Upload.AllowedContentTypes...),
		filestore.WithKeyGenerator(keys),
		filestore.WithMaxUploadSize(c.Upload.MaxUploadSize),
		filestore.WithOperationTimeout(c.Upload.OperationTimeout),
		filestore.WithLogger(logger),
		filestore.WithMetrics(built.Metrics),
	)
	if err != nil {
		built.Close()
		return nil, err
	}
	built.Service = svc

	logger.Info("File service configured",
		"metadata_store", c.Metadata.Store,
		"storage_type", c.Storage.Type,
		"backend", backend.Name(),
		"key_strategy", c.Upload.KeyStrategy,
		"redis_cache", c.Redis.Addr != "",
	)
	return built, nil
}

// buildMetadataStore creates a MetadataStore based on the configuration
func (c *Config) buildMetadataStore(ctx context.Context, logger *slog.Logger, built *Built) (filestore.MetadataStore, error) {
	var store filestore.MetadataStore

	switch c.Metadata.Store {
	case MetadataMemory:
		store = memory.New()
	case MetadataMongo:
		s, err := mongo.New(mongo.Config{URI: c.Metadata.MongoURI, Database: c.Metadata.MongoDatabase})
		if err != nil {
			return nil, err
		}
		built.closers = append(built.closers, s.Close)
		store = s
	case MetadataPostgres:
		s, err := postgres.New(ctx, postgres.Config{DatabaseURL: c.Metadata.DatabaseURL, Schema: c.Metadata.DBSchema}, logger)
		if err != nil {
			return nil, err
		}
		built.closers = append(built.closers, s.Close)
		store = s
	default:
		return nil, fmt.Errorf("unsupported metadata store: %s", c.Metadata.Store)
	}

	if c.Redis.Addr == "" {
		return store, nil
	}

	client := rediscache.NewClient(rediscache.Config{
		Addr:     c.Redis.Addr,
		DB:       c.Redis.DB,
		Password: c.Redis.Password,
	})
	built.closers = append(built.closers, func() {
		if err := client.Close(); err != nil {
			logger.Warn("Failed to close redis client", "error", err)
		}
	})
	if err := client.Ping(ctx); err != nil {
		// Cache misses fall through to the store, so an unreachable Redis is not fatal
		logger.Warn("Redis ping failed, cache reads will fall through", "addr", c.Redis.Addr, "error", err)
	}
	return rediscache.New(store, client, c.Redis.TTL, logger), nil
}

// buildBlobBackend creates a BlobBackend based on the configuration
func (c *Config) buildBlobBackend(ctx context.Context) (filestore.BlobBackend, error) {
	switch c.Storage.Type {
	case StorageMemory:
		return memorystorage.New(), nil

	case StorageLocal:
		return fs.New(fs.Config{RootDir: c.Storage.LocalDir})

	case StorageS3, StorageObjectStore:
		return s3storage.New(ctx, s3storage.Config{
			Region:                 c.S3.Region,
			Bucket:                 c.S3.Bucket,
			AccessKeyID:            c.S3.AccessKey,
			SecretAccessKey:        c.S3.SecretKey,
			Endpoint:               c.S3.Endpoint,
			UseSSL:                 c.S3.UseSSL,
			UsePathStyle:           c.S3.UsePathStyle,
			CreateBucketIfNotExist: c.S3.CreateBucket,
		})

	case StorageMinio:
		endpoint, secure, err := minioEndpoint(c.S3.Endpoint, c.S3.UseSSL)
		if err != nil {
			return nil, err
		}
		return miniostorage.New(ctx, miniostorage.Config{
			Endpoint:     endpoint,
			Region:       c.S3.Region,
			Bucket:       c.S3.Bucket,
			AccessKey:    c.S3.AccessKey,
			SecretKey:    c.S3.SecretKey,
			UseSSL:       secure,
			PathStyle:    c.S3.UsePathStyle,
			CreateBucket: c.S3.CreateBucket,
		})

	default:
		return nil, fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}
}

// minioEndpoint strips the scheme minio-go does not accept. An explicit
// scheme wins over useSSL.
func minioEndpoint(endpoint string, useSSL bool) (string, bool, error) {
	if !strings.Contains(endpoint, "://") {
		return endpoint, useSSL, nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("invalid AWS_S3_ENDPOINT: %w", err)
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("invalid AWS_S3_ENDPOINT: %q has no host", endpoint)
	}
	return u.Host, u.Scheme == "https", nil
}
