package filestore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectLocator(t *testing.T) {
	locator := ObjectLocator("uploads", "ab/cdef_a.txt")
	assert.Equal(t, "s3://uploads/ab/cdef_a.txt", locator)

	bucket, key, err := ParseObjectLocator(locator)
	require.NoError(t, err)
	assert.Equal(t, "uploads", bucket)
	assert.Equal(t, "ab/cdef_a.txt", key)
}

func TestParseObjectLocator_Invalid(t *testing.T) {
	for _, locator := range []string{"", "a.txt", "mem://a.txt", "s3://", "s3://bucket", "s3://bucket/", "s3:///key"} {
		t.Run(locator, func(t *testing.T) {
			_, _, err := ParseObjectLocator(locator)
			assert.ErrorIs(t, err, ErrInvalidLocator)
		})
	}
}

func TestNormalizeContentType(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"text/plain", "text/plain"},
		{"Text/Plain; charset=utf-8", "text/plain"},
		{"  image/png  ", "image/png"},
		{"application/json;", "application/json"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeContentType(tt.in))
		})
	}
}

func TestContentTypes_Check(t *testing.T) {
	ct := newContentTypes([]string{"text/plain", "TEXT/PLAIN", "image/png", ""})
	assert.Equal(t, []string{"text/plain", "image/png"}, ct.allowed)

	got, err := ct.check("text/plain; charset=utf-8")
	require.NoError(t, err)
	assert.Equal(t, "text/plain", got)

	_, err = ct.check("")
	assert.ErrorIs(t, err, ErrUnsupportedContentType)

	_, err = ct.check("application/x-exe")
	var ctErr *ContentTypeError
	require.ErrorAs(t, err, &ctErr)
	assert.Equal(t, []string{"text/plain", "image/png"}, ctErr.Allowed)
}
