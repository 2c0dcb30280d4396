package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tendant/simple-files/pkg/filestore"
	"github.com/tendant/simple-files/pkg/filestore/storagekey"
)

// Metadata store kinds
const (
	MetadataMemory   = "memory"
	MetadataMongo    = "mongo"
	MetadataPostgres = "postgres"
)

// Storage backend kinds. StorageObjectStore is an alias of StorageS3.
const (
	StorageLocal       = "local"
	StorageS3          = "s3"
	StorageObjectStore = "object-store"
	StorageMinio       = "minio"
	StorageMemory      = "memory"
)

// Option applies configuration to a Config instance.
type Option func(*Config) error

// Load constructs a Config by applying the supplied options on top of library defaults.
// WithEnv resets unset variables to their defaults, so pass it before other options.
func Load(opts ...Option) (*Config, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() Config {
	return Config{
		Environment: "development",
		Metadata: MetadataConfig{
			Store:         MetadataMemory,
			MongoDatabase: "file_storage",
			DBSchema:      "public",
		},
		Redis: RedisConfig{
			TTL: time.Hour,
		},
		Storage: StorageConfig{
			Type:     StorageLocal,
			LocalDir: "files",
		},
		S3: S3Config{
			Region: "us-east-1",
		},
		Upload: UploadConfig{
			AllowedContentTypes: append([]string(nil), filestore.DefaultAllowedContentTypes...),
			KeyStrategy:         storagekey.StrategyUnique,
			MaxUploadSize:       32 << 20,
			OperationTimeout:    30 * time.Second,
		},
		CORSAllowedOrigins: []string{"http://localhost:5173", "http://localhost:5174"},
	}
}

// Config represents the file storage service configuration
type Config struct {
	Environment string `env:"ENVIRONMENT" env-default:"development"` // development, production, testing

	Metadata MetadataConfig
	Redis    RedisConfig
	Storage  StorageConfig
	S3       S3Config
	Upload   UploadConfig

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" env-separator:"," env-default:"http://localhost:5173,http://localhost:5174"`
}

// MetadataConfig selects and configures the metadata store
type MetadataConfig struct {
	Store         string `env:"METADATA_STORE" env-default:"memory"` // memory, mongo, postgres
	MongoURI      string `env:"MONGO_URI"`
	MongoDatabase string `env:"MONGO_DATABASE" env-default:"file_storage"`
	DatabaseURL   string `env:"DATABASE_URL"`
	DBSchema      string `env:"DB_SCHEMA" env-default:"public"`
}

// RedisConfig enables the metadata read cache when Addr is set
type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR"`
	DB       int           `env:"REDIS_DB" env-default:"0"`
	Password string        `env:"REDIS_PASSWORD"`
	TTL      time.Duration `env:"REDIS_TTL" env-default:"1h"`
}

// StorageConfig selects the blob backend
type StorageConfig struct {
	Type     string `env:"STORAGE_TYPE" env-default:"local"` // local, s3, object-store, minio, memory
	LocalDir string `env:"LOCAL_STORAGE_DIR" env-default:"files"`
}

// S3Config configures the s3, object-store and minio backends
type S3Config struct {
	AccessKey    string `env:"AWS_ACCESS_KEY"`
	SecretKey    string `env:"AWS_SECRET_KEY"`
	Region       string `env:"AWS_REGION" env-default:"us-east-1"`
	Bucket       string `env:"AWS_S3_BUCKET_NAME"`
	Endpoint     string `env:"AWS_S3_ENDPOINT"`
	UsePathStyle bool   `env:"AWS_S3_USE_PATH_STYLE" env-default:"false"`
	UseSSL       bool   `env:"AWS_S3_USE_SSL" env-default:"true"`
	CreateBucket bool   `env:"AWS_S3_CREATE_BUCKET" env-default:"false"`
}

// UploadConfig controls validation and key derivation for uploads
type UploadConfig struct {
	AllowedContentTypes []string      `env:"ALLOWED_CONTENT_TYPES" env-separator:"," env-default:"text/plain,application/json,image/jpeg,image/png,image/gif"`
	KeyStrategy         string        `env:"STORAGE_KEY_STRATEGY" env-default:"unique"` // unique, filename
	MaxUploadSize       int64         `env:"MAX_UPLOAD_SIZE" env-default:"33554432"`
	OperationTimeout    time.Duration `env:"OPERATION_TIMEOUT" env-default:"30s"`
}

// IsDevelopment reports whether the service runs in the development environment
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Metadata.Store {
	case MetadataMemory:
	case MetadataMongo:
		if c.Metadata.MongoURI == "" {
			return errors.New("MONGO_URI is required when METADATA_STORE is mongo")
		}
		if c.Metadata.MongoDatabase == "" {
			return errors.New("MONGO_DATABASE is required when METADATA_STORE is mongo")
		}
	case MetadataPostgres:
		if c.Metadata.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when METADATA_STORE is postgres")
		}
	default:
		return fmt.Errorf("unsupported metadata store: %q (use memory, mongo or postgres)", c.Metadata.Store)
	}

	switch c.Storage.Type {
	case StorageMemory:
	case StorageLocal:
		if c.Storage.LocalDir == "" {
			return errors.New("LOCAL_STORAGE_DIR is required for local storage")
		}
	case StorageS3, StorageObjectStore:
		if c.S3.Bucket == "" {
			return fmt.Errorf("AWS_S3_BUCKET_NAME is required for %s storage", c.Storage.Type)
		}
	case StorageMinio:
		if c.S3.Bucket == "" {
			return errors.New("AWS_S3_BUCKET_NAME is required for minio storage")
		}
		if c.S3.Endpoint == "" {
			return errors.New("AWS_S3_ENDPOINT is required for minio storage")
		}
	default:
		return fmt.Errorf("unsupported storage type: %q (use local, s3, object-store, minio or memory)", c.Storage.Type)
	}

	if _, err := storagekey.New(c.Upload.KeyStrategy); err != nil {
		return err
	}
	if len(nonEmpty(c.Upload.AllowedContentTypes)) == 0 {
		return errors.New("ALLOWED_CONTENT_TYPES must list at least one type")
	}
	if c.Upload.MaxUploadSize < 0 {
		return errors.New("MAX_UPLOAD_SIZE must not be negative")
	}
	if c.Upload.OperationTimeout < 0 {
		return errors.New("OPERATION_TIMEOUT must not be negative")
	}
	if c.Redis.TTL < 0 {
		return errors.New("REDIS_TTL must not be negative")
	}

	return nil
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
