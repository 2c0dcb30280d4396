package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/tendant/simple-files/pkg/filestore"
)

const (
	defaultListLimit = 10
	maxListLimit     = 100

	// multipartMemory bounds the form parts held in memory; larger parts spill to disk.
	multipartMemory = 8 << 20

	// multipartOverhead is the room left for boundaries and part headers on
	// top of the file size limit.
	multipartOverhead = 64 << 10

	defaultMaxUploadSize = 32 << 20
)

// FilesHandler handles file upload and retrieval API endpoints
type FilesHandler struct {
	service       filestore.Service
	logger        *slog.Logger
	maxUploadSize int64
}

// HandlerOption configures a FilesHandler
type HandlerOption func(*FilesHandler)

// WithMaxUploadSize caps the upload request body at n bytes plus multipart
// framing. Zero or less disables the cap.
func WithMaxUploadSize(n int64) HandlerOption {
	return func(h *FilesHandler) {
		h.maxUploadSize = n
	}
}

func NewFilesHandler(service filestore.Service, logger *slog.Logger, options ...HandlerOption) *FilesHandler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &FilesHandler{
		service:       service,
		logger:        logger,
		maxUploadSize: defaultMaxUploadSize,
	}
	for _, option := range options {
		option(h)
	}
	return h
}

// RegisterRoutes mounts the files API and the health check on r behind the
// CORS middleware. Preflight requests are answered for every route.
func RegisterRoutes(r chi.Router, h *FilesHandler, allowedOrigins []string) {
	r.Group(func(r chi.Router) {
		r.Use(CORS(allowedOrigins))
		r.Get("/health", Health)
		r.Options("/health", Health)
		r.Mount("/files", h.Routes())
	})
}

// Routes returns the router for files endpoints
func (h *FilesHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.UploadFile)
	r.Get("/", h.ListFiles)
	r.Get("/{id}", h.GetFile)
	r.Get("/{id}/download", h.DownloadFile)
	return r
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// UploadFile stores the multipart field "file" and returns its record
func (h *FilesHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+multipartOverhead)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.logger.Info("Rejected upload", "limit", tooLarge.Limit, "error", err)
			h.writeDetail(w, r, http.StatusBadRequest, fmt.Sprintf("request body too large, limit is %d bytes", h.maxUploadSize))
			return
		}
		h.logger.Warn("Failed to parse multipart form", "error", err)
		h.writeDetail(w, r, http.StatusBadRequest, "request must be multipart/form-data with a file field")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeDetail(w, r, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	record, err := h.service.SaveFile(r.Context(), filestore.SaveFileRequest{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
	})
	if err != nil {
		h.writeError(w, r, err, "filename", header.Filename)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, record)
}

// ListFiles returns a page of records, newest first
func (h *FilesHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	skip, limit, err := parsePage(r)
	if err != nil {
		h.writeDetail(w, r, http.StatusBadRequest, err.Error())
		return
	}

	list, err := h.service.ListFiles(r.Context(), skip, limit)
	if err != nil {
		h.writeError(w, r, err, "skip", skip, "limit", limit)
		return
	}

	render.JSON(w, r, list)
}

// GetFile returns the record for an id
func (h *FilesHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	record, err := h.service.GetFileMetadata(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, "id", id)
		return
	}

	render.JSON(w, r, record)
}

// DownloadFile streams the stored bytes as an attachment
func (h *FilesHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	data, record, err := h.service.GetFileContent(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, "id", id)
		return
	}

	w.Header().Set("Content-Type", record.ContentType)
	w.Header().Set("Content-Disposition", contentDisposition(record.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Warn("Failed to write download", "id", id, "error", err)
	}
}

// Health reports that the process is serving requests
func Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "healthy"})
}

// CORS returns the cross-origin middleware for the given origins
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}

func (h *FilesHandler) writeError(w http.ResponseWriter, r *http.Request, err error, args ...any) {
	switch {
	case filestore.IsValidation(err):
		h.logger.Info("Rejected upload", append(args, "error", err)...)
		h.writeDetail(w, r, http.StatusBadRequest, err.Error())
	case filestore.IsNotFound(err):
		h.writeDetail(w, r, http.StatusNotFound, "file not found")
	default:
		if errors.Is(err, filestore.ErrContentMissing) {
			h.logger.Error("File record has no content", append(args, "error", err)...)
		} else {
			h.logger.Error("Request failed", append(args, "error", err)...)
		}
		h.writeDetail(w, r, http.StatusInternalServerError, "internal server error")
	}
}

func (h *FilesHandler) writeDetail(w http.ResponseWriter, r *http.Request, status int, detail string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Detail: detail})
}

func parsePage(r *http.Request) (skip, limit int, err error) {
	limit = defaultListLimit
	query := r.URL.Query()

	if v := query.Get("skip"); v != "" {
		skip, err = strconv.Atoi(v)
		if err != nil || skip < 0 {
			return 0, 0, errors.New("skip must be a non-negative integer")
		}
	}
	if v := query.Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 1 || limit > maxListLimit {
			return 0, 0, fmt.Errorf("limit must be an integer between 1 and %d", maxListLimit)
		}
	}
	return skip, limit, nil
}

func contentDisposition(filename string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(filename)
	return fmt.Sprintf(`attachment; filename="%s"`, escaped)
}
