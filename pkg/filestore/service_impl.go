package filestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/tendant/simple-files/pkg/filestore/storagekey"
	"golang.org/x/sync/errgroup"
)

// service implements the Service interface
type service struct {
	backend       BlobBackend
	store         MetadataStore
	contentTypes  contentTypes
	keys          KeyGenerator
	timeout       time.Duration
	maxUploadSize int64
	logger        *slog.Logger
	metrics       *Metrics
	now           func() time.Time
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithBlobBackend sets the backend that holds file bytes
func WithBlobBackend(backend BlobBackend) Option {
	return func(s *service) {
		s.backend = backend
	}
}

// WithMetadataStore sets the store that holds file records
func WithMetadataStore(store MetadataStore) Option {
	return func(s *service) {
		s.store = store
	}
}

// WithAllowedContentTypes replaces the default content type allow-list
func WithAllowedContentTypes(types ...string) Option {
	return func(s *service) {
		s.contentTypes = newContentTypes(types)
	}
}

// WithKeyGenerator sets how storage keys are derived from file names
func WithKeyGenerator(keys KeyGenerator) Option {
	return func(s *service) {
		s.keys = keys
	}
}

// WithOperationTimeout bounds every backend and store call. Zero disables it.
func WithOperationTimeout(d time.Duration) Option {
	return func(s *service) {
		s.timeout = d
	}
}

// WithMaxUploadSize rejects uploads larger than n bytes. Zero disables it.
func WithMaxUploadSize(n int64) Option {
	return func(s *service) {
		s.maxUploadSize = n
	}
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithMetrics records operation metrics on m
func WithMetrics(m *Metrics) Option {
	return func(s *service) {
		s.metrics = m
	}
}

// WithClock overrides the clock used for upload dates
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		contentTypes: newContentTypes(DefaultAllowedContentTypes),
		logger:       slog.Default(),
		now:          time.Now,
	}

	for _, option := range options {
		option(s)
	}

	if s.backend == nil {
		return nil, errors.New("blob backend is required")
	}
	if s.store == nil {
		return nil, errors.New("metadata store is required")
	}
	if len(s.contentTypes.allowed) == 0 {
		return nil, errors.New("content type allow-list is empty")
	}
	if s.keys == nil {
		s.keys = storagekey.NewUniqueGenerator()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s, nil
}

func (s *service) SaveFile(ctx context.Context, req SaveFileRequest) (record *FileRecord, err error) {
	defer func(start time.Time) { s.metrics.observe("save", start, err) }(time.Now())

	// All validation happens before any I/O.
	contentType, err := s.contentTypes.check(req.ContentType)
	if err != nil {
		return nil, err
	}
	if err := validateFilename(req.Filename); err != nil {
		return nil, err
	}

	data, err := s.readUpload(req.Body)
	if err != nil {
		return nil, err
	}

	key := s.keys.GenerateKey(req.Filename)
	locator, err := s.put(ctx, key, data, contentType)
	if err != nil {
		s.logger.Error("Failed to write file bytes", "filename", req.Filename, "key", key, "backend", s.backend.Name(), "error", err)
		return nil, err
	}

	record = &FileRecord{
		Filename:       req.Filename,
		ContentType:    contentType,
		StorageLocator: locator,
		Size:           int64(len(data)),
		UploadDate:     s.now().UTC().Truncate(time.Millisecond),
	}

	id, err := s.insert(ctx, record)
	if err != nil {
		s.handleOrphan(ctx, locator, err)
		return nil, err
	}
	record.ID = id

	s.logger.Info("File saved", "id", id, "filename", record.Filename, "locator", locator, "size", record.Size)
	return record, nil
}

func (s *service) ListFiles(ctx context.Context, skip, limit int) (list *FileList, err error) {
	defer func(start time.Time) { s.metrics.observe("list", start, err) }(time.Now())

	var (
		total   int64
		records []*FileRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cctx, cancel := s.withTimeout(gctx)
		defer cancel()
		n, err := s.store.Count(cctx)
		if err != nil {
			return storeError("count", "", err)
		}
		total = n
		return nil
	})
	g.Go(func() error {
		cctx, cancel := s.withTimeout(gctx)
		defer cancel()
		rs, err := s.store.List(cctx, ListParams{Skip: skip, Limit: limit})
		if err != nil {
			return storeError("list", "", err)
		}
		records = rs
		return nil
	})
	if err = g.Wait(); err != nil {
		return nil, err
	}

	if records == nil {
		records = []*FileRecord{}
	}
	return &FileList{Total: total, Files: records}, nil
}

func (s *service) GetFileMetadata(ctx context.Context, id string) (record *FileRecord, err error) {
	defer func(start time.Time) { s.metrics.observe("get_metadata", start, err) }(time.Now())
	return s.find(ctx, id)
}

func (s *service) GetFileContent(ctx context.Context, id string) (data []byte, record *FileRecord, err error) {
	defer func(start time.Time) { s.metrics.observe("get_content", start, err) }(time.Now())

	record, err = s.find(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	cctx, cancel := s.withTimeout(ctx)
	defer cancel()
	data, err = s.backend.Get(cctx, record.StorageLocator)
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			s.logger.Error("File content missing for existing record", "id", id, "locator", record.StorageLocator, "backend", s.backend.Name())
			return nil, nil, fmt.Errorf("%w: file %s: %w", ErrContentMissing, id, err)
		}
		if !errors.Is(err, ErrBackendRead) {
			err = NewReadError(s.backend.Name(), record.StorageLocator, "get", err)
		}
		return nil, nil, err
	}

	return data, record, nil
}

func (s *service) find(ctx context.Context, id string) (*FileRecord, error) {
	cctx, cancel := s.withTimeout(ctx)
	defer cancel()

	record, err := s.store.FindByID(cctx, id)
	if err != nil {
		return nil, storeError("find", id, err)
	}
	return record, nil
}

func (s *service) put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	cctx, cancel := s.withTimeout(ctx)
	defer cancel()

	locator, err := s.backend.Put(cctx, key, data, contentType)
	if err != nil {
		if !errors.Is(err, ErrBackendWrite) {
			err = NewWriteError(s.backend.Name(), key, "put", err)
		}
		return "", err
	}
	return locator, nil
}

// insert is detached from caller cancellation once the bytes are written, so a
// client hanging up cannot abort a record write that is already in flight.
func (s *service) insert(ctx context.Context, record *FileRecord) (string, error) {
	cctx, cancel := s.withTimeout(context.WithoutCancel(ctx))
	defer cancel()

	id, err := s.store.Insert(cctx, record)
	if err != nil {
		return "", storeError("insert", "", err)
	}
	return id, nil
}

// handleOrphan deals with bytes written for a record that was never inserted.
// Keys from a non-unique generator may still be referenced by an earlier
// record, so those blobs are left in place. An insert that ran out of time may
// still commit, so its blob is kept as well.
func (s *service) handleOrphan(ctx context.Context, locator string, insertErr error) {
	if errors.Is(insertErr, context.DeadlineExceeded) || errors.Is(insertErr, context.Canceled) {
		s.metrics.orphaned()
		s.logger.Warn("Metadata insert outcome unknown, blob kept", "locator", locator, "backend", s.backend.Name(), "error", insertErr)
		return
	}
	if !s.keys.Unique() {
		s.metrics.orphaned()
		s.logger.Warn("Metadata insert failed, blob left orphaned", "locator", locator, "backend", s.backend.Name(), "error", insertErr)
		return
	}

	cctx, cancel := s.withTimeout(context.WithoutCancel(ctx))
	defer cancel()

	if err := s.backend.Delete(cctx, locator); err != nil {
		s.metrics.orphaned()
		s.logger.Error("Compensating delete failed, blob left orphaned", "locator", locator, "backend", s.backend.Name(), "insert_error", insertErr, "error", err)
		return
	}
	s.logger.Warn("Metadata insert failed, blob removed", "locator", locator, "backend", s.backend.Name(), "error", insertErr)
}

func (s *service) readUpload(body io.Reader) ([]byte, error) {
	if body == nil {
		return []byte{}, nil
	}
	if s.maxUploadSize <= 0 {
		data, err := io.ReadAll(body)
		if err != nil {
			return nil, fmt.Errorf("failed to read upload: %w", err)
		}
		return data, nil
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(body, s.maxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if n > s.maxUploadSize {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, s.maxUploadSize)
	}
	return buf.Bytes(), nil
}

func (s *service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return ctx, func() {}
}

func validateFilename(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || trimmed == "." || trimmed == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	}
	if strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidFilename, name)
	}
	return nil
}

// storeError keeps not-found as is and classifies everything else as a
// metadata store failure.
func storeError(op, id string, err error) error {
	if errors.Is(err, ErrFileNotFound) || errors.Is(err, ErrMetadataStore) {
		return err
	}
	return NewMetadataError(op, id, err)
}
