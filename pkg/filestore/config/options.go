package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// WithEnv reads every setting from the environment, falling back to the
// env-default of each field for unset variables.
func WithEnv() Option {
	return func(c *Config) error {
		if err := cleanenv.ReadEnv(c); err != nil {
			return fmt.Errorf("failed to read environment: %w", err)
		}
		c.Upload.AllowedContentTypes = nonEmpty(c.Upload.AllowedContentTypes)
		c.CORSAllowedOrigins = nonEmpty(c.CORSAllowedOrigins)
		return nil
	}
}

// WithMetadataStore selects the metadata store kind
func WithMetadataStore(kind string) Option {
	return func(c *Config) error {
		c.Metadata.Store = kind
		return nil
	}
}

// WithStorageType selects the blob backend kind
func WithStorageType(kind string) Option {
	return func(c *Config) error {
		c.Storage.Type = kind
		return nil
	}
}

// WithLocalStorageDir sets the root directory of the local backend
func WithLocalStorageDir(dir string) Option {
	return func(c *Config) error {
		c.Storage.LocalDir = dir
		return nil
	}
}

// WithKeyStrategy selects how storage keys are derived
func WithKeyStrategy(strategy string) Option {
	return func(c *Config) error {
		c.Upload.KeyStrategy = strategy
		return nil
	}
}

// WithAllowedContentTypes replaces the content type allow-list
func WithAllowedContentTypes(types ...string) Option {
	return func(c *Config) error {
		c.Upload.AllowedContentTypes = nonEmpty(types)
		return nil
	}
}

// WithMaxUploadSize sets the upload size limit in bytes
func WithMaxUploadSize(n int64) Option {
	return func(c *Config) error {
		c.Upload.MaxUploadSize = n
		return nil
	}
}

// WithOperationTimeout bounds each backend and store call
func WithOperationTimeout(d time.Duration) Option {
	return func(c *Config) error {
		c.Upload.OperationTimeout = d
		return nil
	}
}
