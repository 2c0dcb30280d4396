package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-files/pkg/filestore"
	memorystorage "github.com/tendant/simple-files/pkg/filestore/storage/memory"
	"github.com/tendant/simple-files/pkg/filestore/store/memory"
)

type handlerFixture struct {
	router  chi.Router
	backend *memorystorage.Backend
	store   *memory.Store
}

// setupFilesHandlerTest mounts a FilesHandler backed by in-memory storage
func setupFilesHandlerTest(t *testing.T, opts ...filestore.Option) *handlerFixture {
	return setupFilesHandlerWith(t, nil, opts...)
}

func setupFilesHandlerWith(t *testing.T, handlerOpts []HandlerOption, opts ...filestore.Option) *handlerFixture {
	backend := memorystorage.New()
	store := memory.New()

	service, err := filestore.New(append([]filestore.Option{
		filestore.WithBlobBackend(backend),
		filestore.WithMetadataStore(store),
	}, opts...)...)
	require.NoError(t, err)

	router := chi.NewRouter()
	// The parent already has routes, as the server mux does.
	router.Get("/healthz", Health)
	RegisterRoutes(router, NewFilesHandler(service, nil, handlerOpts...), []string{"http://localhost:5173"})

	return &handlerFixture{router: router, backend: backend, store: store}
}

func (f *handlerFixture) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func uploadRequest(t *testing.T, filename, contentType, body string) *http.Request {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/files", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func (f *handlerFixture) upload(t *testing.T, filename, contentType, body string) filestore.FileRecord {
	w := f.do(uploadRequest(t, filename, contentType, body))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var record filestore.FileRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &record))
	return record
}

func decodeDetail(t *testing.T, w *httptest.ResponseRecorder) string {
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Detail
}

func TestFilesHandler_UploadAndDownload(t *testing.T) {
	f := setupFilesHandlerTest(t)

	record := f.upload(t, "a.txt", "text/plain", "hello")
	assert.NotEmpty(t, record.ID)
	assert.Equal(t, "a.txt", record.Filename)
	assert.Equal(t, "text/plain", record.ContentType)
	assert.Equal(t, int64(5), record.Size)
	assert.NotEmpty(t, record.StorageLocator)

	w := f.do(httptest.NewRequest(http.MethodGet, "/files/"+record.ID, nil))
	require.Equal(t, http.StatusOK, w.Code)
	var fetched filestore.FileRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fetched))
	assert.Equal(t, record.ID, fetched.ID)
	assert.True(t, record.UploadDate.Equal(fetched.UploadDate))

	w = f.do(httptest.NewRequest(http.MethodGet, "/files/"+record.ID+"/download", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hello", w.Body.String())
	assert.Equal(t, "text/plain", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="a.txt"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "5", w.Header().Get("Content-Length"))
}

func TestFilesHandler_UploadRejected(t *testing.T) {
	f := setupFilesHandlerTest(t, filestore.WithMaxUploadSize(4))

	t.Run("unsupported content type", func(t *testing.T) {
		w := f.do(uploadRequest(t, "run.exe", "application/x-exe", "MZ"))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		detail := decodeDetail(t, w)
		assert.Contains(t, detail, "application/x-exe")
		for _, allowed := range filestore.DefaultAllowedContentTypes {
			assert.Contains(t, detail, allowed)
		}
	})

	t.Run("too large", func(t *testing.T) {
		w := f.do(uploadRequest(t, "big.txt", "text/plain", "hello"))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing file field", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		require.NoError(t, mw.WriteField("other", "value"))
		require.NoError(t, mw.Close())
		req := httptest.NewRequest(http.MethodPost, "/files", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())

		w := f.do(req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "file field is required", decodeDetail(t, w))
	})

	t.Run("not multipart", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/files", bytes.NewBufferString(`{"file":"x"}`))
		req.Header.Set("Content-Type", "application/json")

		w := f.do(req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	count, err := f.store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, f.backend.Len())
}

func TestFilesHandler_UploadBodyLimit(t *testing.T) {
	f := setupFilesHandlerWith(t, []HandlerOption{WithMaxUploadSize(16)})

	body := strings.Repeat("x", 2*multipartOverhead)
	w := f.do(uploadRequest(t, "big.txt", "text/plain", body))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "request body too large, limit is 16 bytes", decodeDetail(t, w))

	// Within the limit the upload still goes through.
	f.upload(t, "small.txt", "text/plain", "hello")

	count, err := f.store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, 1, f.backend.Len())
}

func TestFilesHandler_ListFiles(t *testing.T) {
	f := setupFilesHandlerTest(t)
	for i := 0; i < 15; i++ {
		f.upload(t, fmt.Sprintf("file%02d.txt", i), "text/plain", "x")
	}

	list := func(query string) filestore.FileList {
		w := f.do(httptest.NewRequest(http.MethodGet, "/files"+query, nil))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var result filestore.FileList
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		return result
	}

	first := list("")
	assert.Equal(t, int64(15), first.Total)
	require.Len(t, first.Files, 10)
	assert.Equal(t, "file14.txt", first.Files[0].Filename)

	second := list("?skip=10&limit=10")
	assert.Equal(t, int64(15), second.Total)
	assert.Len(t, second.Files, 5)

	seen := make(map[string]bool)
	for _, r := range append(first.Files, second.Files...) {
		assert.False(t, seen[r.ID], "duplicate id %s", r.ID)
		seen[r.ID] = true
	}
	assert.Len(t, seen, 15)

	assert.Empty(t, list("?skip=20").Files)
}

func TestFilesHandler_ListFiles_InvalidParams(t *testing.T) {
	f := setupFilesHandlerTest(t)

	for _, query := range []string{"?skip=-1", "?skip=abc", "?limit=0", "?limit=101", "?limit=x"} {
		t.Run(query, func(t *testing.T) {
			w := f.do(httptest.NewRequest(http.MethodGet, "/files"+query, nil))
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.NotEmpty(t, decodeDetail(t, w))
		})
	}
}

func TestFilesHandler_NotFound(t *testing.T) {
	f := setupFilesHandlerTest(t)

	for _, path := range []string{"/files/unknown", "/files/unknown/download"} {
		w := f.do(httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, w.Code, path)
		assert.Equal(t, "file not found", decodeDetail(t, w))
	}
}

func TestFilesHandler_ContentMissing(t *testing.T) {
	f := setupFilesHandlerTest(t)
	record := f.upload(t, "a.txt", "text/plain", "hello")
	require.NoError(t, f.backend.Delete(context.Background(), record.StorageLocator))

	w := f.do(httptest.NewRequest(http.MethodGet, "/files/"+record.ID+"/download", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	// Metadata is still served
	w = f.do(httptest.NewRequest(http.MethodGet, "/files/"+record.ID, nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealth(t *testing.T) {
	f := setupFilesHandlerTest(t)

	w := f.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}

func TestCORS(t *testing.T) {
	f := setupFilesHandlerTest(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := f.do(req)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = f.do(req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_Preflight(t *testing.T) {
	f := setupFilesHandlerTest(t)

	for _, tc := range []struct {
		path   string
		method string
	}{
		{"/health", http.MethodGet},
		{"/files", http.MethodPost},
		{"/files/abc/download", http.MethodGet},
	} {
		t.Run(tc.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, tc.path, nil)
			req.Header.Set("Origin", "http://localhost:5173")
			req.Header.Set("Access-Control-Request-Method", tc.method)

			w := f.do(req)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestContentDisposition(t *testing.T) {
	assert.Equal(t, `attachment; filename="a.txt"`, contentDisposition("a.txt"))
	assert.Equal(t, `attachment; filename="say \"hi\".txt"`, contentDisposition(`say "hi".txt`))
}
