package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-files/pkg/filestore"
)

func TestMemoryBackend_BasicOps(t *testing.T) {
	b := New()
	ctx := context.Background()

	locator, err := b.Put(ctx, "a.txt", []byte("hello"), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "mem://a.txt", locator)

	got, err := b.Get(ctx, locator)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)

	require.NoError(t, b.Delete(ctx, locator))
	_, err = b.Get(ctx, locator)
	assert.ErrorIs(t, err, filestore.ErrBlobNotFound)

	// Deleting again is a no-op
	assert.NoError(t, b.Delete(ctx, locator))
}

func TestMemoryBackend_CopiesData(t *testing.T) {
	b := New()
	ctx := context.Background()

	data := []byte("hello")
	locator, err := b.Put(ctx, "k", data, "text/plain")
	require.NoError(t, err)
	data[0] = 'j'

	got, err := b.Get(ctx, locator)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	got[0] = 'y'
	again, err := b.Get(ctx, locator)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(again))
}

func TestMemoryBackend_InvalidLocator(t *testing.T) {
	b := New()
	ctx := context.Background()

	_, err := b.Get(ctx, "s3://bucket/key")
	assert.ErrorIs(t, err, filestore.ErrInvalidLocator)
	assert.ErrorIs(t, err, filestore.ErrBackendRead)

	err = b.Delete(ctx, "")
	assert.ErrorIs(t, err, filestore.ErrBackendWrite)
}

func TestMemoryBackend_Overwrite(t *testing.T) {
	b := New()
	ctx := context.Background()

	l1, err := b.Put(ctx, "same", []byte("first"), "text/plain")
	require.NoError(t, err)
	l2, err := b.Put(ctx, "same", []byte("second"), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, l1, l2)

	got, err := b.Get(ctx, l1)
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))
	assert.Equal(t, 1, b.Len())
}
