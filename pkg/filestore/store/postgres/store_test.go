package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-files/pkg/filestore"
)

func TestQueries(t *testing.T) {
	id := uuid.MustParse("987fcdeb-51a2-43d1-9f12-345678901234")

	t.Run("insert", func(t *testing.T) {
		sqlStr, args, err := insertQuery(id, &filestore.FileRecord{
			Filename:       "a.txt",
			ContentType:    "text/plain",
			StorageLocator: "a.txt",
			Size:           5,
			UploadDate:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		}).ToSql()
		require.NoError(t, err)
		assert.Equal(t, "INSERT INTO files (id,filename,content_type,file_path,size,upload_date) VALUES ($1,$2,$3,$4,$5,$6)", sqlStr)
		assert.Len(t, args, 6)
		assert.Equal(t, id, args[0])
	})

	t.Run("find", func(t *testing.T) {
		sqlStr, args, err := findQuery(id).ToSql()
		require.NoError(t, err)
		assert.Equal(t, "SELECT id, filename, content_type, file_path, size, upload_date FROM files WHERE id = $1", sqlStr)
		assert.Equal(t, []interface{}{id.String()}, args)
	})

	t.Run("list", func(t *testing.T) {
		sqlStr, _, err := listQuery(filestore.ListParams{Skip: 10, Limit: 10}).ToSql()
		require.NoError(t, err)
		assert.Equal(t, "SELECT id, filename, content_type, file_path, size, upload_date FROM files ORDER BY upload_date DESC, id DESC LIMIT 10 OFFSET 10", sqlStr)

		sqlStr, _, err = listQuery(filestore.ListParams{}).ToSql()
		require.NoError(t, err)
		assert.NotContains(t, sqlStr, "LIMIT")
		assert.NotContains(t, sqlStr, "OFFSET")
	})
}

func TestFindByID_MalformedID(t *testing.T) {
	// Malformed ids never reach the database
	store := NewWithDB(nil)
	_, err := store.FindByID(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, filestore.ErrFileNotFound)
}

func TestNew_RequiresURL(t *testing.T) {
	_, err := New(context.Background(), Config{}, nil)
	assert.Error(t, err)
}

func TestPostgresStore_Integration(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	schema := fmt.Sprintf("filestore_test_%d", time.Now().UnixNano())
	store, err := New(ctx, Config{DatabaseURL: dsn, Schema: schema}, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = store.pool.Exec(context.Background(), fmt.Sprintf("DROP SCHEMA %s CASCADE", schema))
		store.Close()
	})

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 15; i++ {
		id, err := store.Insert(ctx, &filestore.FileRecord{
			Filename:       fmt.Sprintf("file-%02d.txt", i),
			ContentType:    "text/plain",
			StorageLocator: fmt.Sprintf("file-%02d.txt", i),
			Size:           1,
			UploadDate:     base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	found, err := store.FindByID(ctx, ids[3])
	require.NoError(t, err)
	assert.Equal(t, "file-03.txt", found.Filename)
	assert.True(t, found.UploadDate.Equal(base.Add(3*time.Second)))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(15), count)

	page, err := store.List(ctx, filestore.ListParams{Skip: 10, Limit: 10})
	require.NoError(t, err)
	require.Len(t, page, 5)
	assert.Equal(t, "file-04.txt", page[0].Filename)

	_, err = store.FindByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, filestore.ErrFileNotFound)
}
