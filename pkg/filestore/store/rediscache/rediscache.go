// Package rediscache puts a Redis read-through cache in front of another
// filestore.MetadataStore. Records are immutable once inserted, so cached
// entries never need invalidation. Pages and counts change on every insert
// and are always read from the underlying store.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tendant/simple-files/pkg/filestore"
)

const (
	keyPrefix  = "filestore:file:"
	defaultTTL = time.Hour
)

// Cache is the byte cache the store reads through. A miss returns nil, nil.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

type Config struct {
	Addr     string
	DB       int
	Password string
}

// Client is a Cache backed by a Redis server.
type Client struct {
	rdb *redis.Client
}

func NewClient(cfg Config) *Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		DB:       cfg.DB,
		Password: cfg.Password,
	})
	return &Client{rdb: rdb}
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return b, err
}

func (c *Client) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, val, ttl).Err()
}

// Store implements filestore.MetadataStore by caching FindByID results.
// Cache failures are logged and never fail an operation.
type Store struct {
	next   filestore.MetadataStore
	cache  Cache
	ttl    time.Duration
	logger *slog.Logger
}

// New wraps next. A ttl of zero uses one hour.
func New(next filestore.MetadataStore, cache Cache, ttl time.Duration, logger *slog.Logger) *Store {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{next: next, cache: cache, ttl: ttl, logger: logger}
}

func (s *Store) Insert(ctx context.Context, record *filestore.FileRecord) (string, error) {
	id, err := s.next.Insert(ctx, record)
	if err != nil {
		return "", err
	}

	stored := *record
	stored.ID = id
	s.put(ctx, &stored)
	return id, nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*filestore.FileRecord, error) {
	if record, ok := s.get(ctx, id); ok {
		return record, nil
	}

	record, err := s.next.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.put(ctx, record)
	return record, nil
}

func (s *Store) List(ctx context.Context, params filestore.ListParams) ([]*filestore.FileRecord, error) {
	return s.next.List(ctx, params)
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	return s.next.Count(ctx)
}

func (s *Store) get(ctx context.Context, id string) (*filestore.FileRecord, bool) {
	b, err := s.cache.Get(ctx, keyPrefix+id)
	if err != nil {
		s.logger.Warn("Cache read failed", "id", id, "error", err)
		return nil, false
	}
	if b == nil {
		return nil, false
	}

	var record filestore.FileRecord
	if err := json.Unmarshal(b, &record); err != nil {
		s.logger.Warn("Discarding malformed cache entry", "id", id, "error", err)
		return nil, false
	}
	return &record, true
}

func (s *Store) put(ctx context.Context, record *filestore.FileRecord) {
	b, err := json.Marshal(record)
	if err != nil {
		s.logger.Warn("Cache encode failed", "id", record.ID, "error", err)
		return
	}
	if err := s.cache.Set(ctx, keyPrefix+record.ID, b, s.ttl); err != nil {
		s.logger.Warn("Cache write failed", "id", record.ID, "error", err)
	}
}
