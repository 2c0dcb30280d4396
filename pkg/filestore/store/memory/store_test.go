package memory_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-files/pkg/filestore"
	"github.com/tendant/simple-files/pkg/filestore/store/memory"
)

func TestMemoryStore_InsertAndFind(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	record := &filestore.FileRecord{
		ID:             "ignored",
		Filename:       "a.txt",
		ContentType:    "text/plain",
		StorageLocator: "mem://a.txt",
		Size:           5,
		UploadDate:     time.Now().UTC(),
	}

	id, err := store.Insert(ctx, record)
	require.NoError(t, err)
	assert.NotEqual(t, "ignored", id)
	_, err = uuid.Parse(id)
	assert.NoError(t, err)

	found, err := store.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, found.ID)
	assert.Equal(t, record.Filename, found.Filename)
	assert.Equal(t, record.StorageLocator, found.StorageLocator)

	// Mutating the returned copy must not affect the store
	found.Filename = "changed"
	again, err := store.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "a.txt", again.Filename)
}

func TestMemoryStore_FindByID_NotFound(t *testing.T) {
	store := memory.New()

	_, err := store.FindByID(context.Background(), "not-an-id")
	assert.ErrorIs(t, err, filestore.ErrFileNotFound)

	_, err = store.FindByID(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, filestore.ErrFileNotFound)
}

func TestMemoryStore_ListNewestFirst(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 15; i++ {
		_, err := store.Insert(ctx, &filestore.FileRecord{
			Filename:   fmt.Sprintf("file-%02d.txt", i),
			UploadDate: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(15), count)

	tests := []struct {
		name      string
		params    filestore.ListParams
		wantLen   int
		wantFirst string
	}{
		{"first page", filestore.ListParams{Skip: 0, Limit: 10}, 10, "file-14.txt"},
		{"second page", filestore.ListParams{Skip: 10, Limit: 10}, 5, "file-04.txt"},
		{"past the end", filestore.ListParams{Skip: 20, Limit: 10}, 0, ""},
		{"no limit", filestore.ListParams{}, 15, "file-14.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := store.List(ctx, tt.params)
			require.NoError(t, err)
			require.Len(t, records, tt.wantLen)
			if tt.wantLen == 0 {
				assert.NotNil(t, records)
				return
			}
			assert.Equal(t, tt.wantFirst, records[0].Filename)
			for i := 1; i < len(records); i++ {
				assert.False(t, records[i].UploadDate.After(records[i-1].UploadDate))
			}
		})
	}
}

func TestMemoryStore_ListEqualDates(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := store.Insert(ctx, &filestore.FileRecord{Filename: "first", UploadDate: now})
	require.NoError(t, err)
	_, err = store.Insert(ctx, &filestore.FileRecord{Filename: "second", UploadDate: now})
	require.NoError(t, err)

	records, err := store.List(ctx, filestore.ListParams{Limit: 10})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "second", records[0].Filename)
	assert.Equal(t, "first", records[1].Filename)
}
