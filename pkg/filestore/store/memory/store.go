package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/tendant/simple-files/pkg/filestore"
)

// Store implements filestore.MetadataStore using in-memory storage
type Store struct {
	mu      sync.RWMutex
	records map[string]*filestore.FileRecord
	order   []string // ids in insertion order
}

// New creates a new in-memory metadata store
func New() *Store {
	return &Store{
		records: make(map[string]*filestore.FileRecord),
	}
}

func (s *Store) Insert(ctx context.Context, record *filestore.FileRecord) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Create a copy to avoid external modifications
	recordCopy := *record
	recordCopy.ID = uuid.NewString()
	s.records[recordCopy.ID] = &recordCopy
	s.order = append(s.order, recordCopy.ID)

	return recordCopy.ID, nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*filestore.FileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, exists := s.records[id]
	if !exists {
		return nil, filestore.ErrFileNotFound
	}

	// Return a copy to prevent external modifications
	recordCopy := *record
	return &recordCopy, nil
}

func (s *Store) List(ctx context.Context, params filestore.ListParams) ([]*filestore.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	result := make([]*filestore.FileRecord, 0, len(s.order))
	// Walk newest insert first so equal upload dates keep a stable order
	for i := len(s.order) - 1; i >= 0; i-- {
		recordCopy := *s.records[s.order[i]]
		result = append(result, &recordCopy)
	}
	s.mu.RUnlock()

	// Sort by upload_date descending
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].UploadDate.After(result[j].UploadDate)
	})

	skip := max(params.Skip, 0)
	if skip >= len(result) {
		return []*filestore.FileRecord{}, nil
	}
	result = result[skip:]
	if params.Limit > 0 && params.Limit < len(result) {
		result = result[:params.Limit]
	}
	return result, nil
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.records)), nil
}
