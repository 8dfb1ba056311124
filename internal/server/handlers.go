package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/media-compiler/internal/engine"
	"github.com/maauso/media-compiler/internal/export"
	"github.com/maauso/media-compiler/internal/export/id"
	"github.com/maauso/media-compiler/internal/intake"
	"github.com/maauso/media-compiler/internal/progress"
	"github.com/maauso/media-compiler/internal/session"
)

// DefaultMaxUploadBytes bounds a single upload request.
const DefaultMaxUploadBytes int64 = 256 << 20

// multipartMemory is how much of a multipart body is kept in memory.
const multipartMemory = 32 << 20

// User-facing messages.
const (
	msgNotReady         = "A video (GIF) or images and an MP3 file are required."
	msgProcessingFailed = "An error occurred during processing. Please check the logs."
	msgExportInProgress = "An export is already running."
)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	session        *session.Session
	intake         *intake.Service
	orchestrator   *export.Orchestrator
	loader         *engine.Loader
	hub            *progress.Hub
	validator      *validator.Validate
	logger         *slog.Logger
	maxUploadBytes int64
	origins        originSet
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithMaxUploadBytes bounds the size of POST /session/files bodies.
func WithMaxUploadBytes(n int64) HandlerOption {
	return func(h *Handlers) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

// WithAllowedOrigins restricts which browser origins may open GET /progress.
// Defaults to any origin.
func WithAllowedOrigins(origins []string) HandlerOption {
	return func(h *Handlers) {
		h.origins = newOriginSet(origins)
	}
}

// WithEngineLoader exposes the engine state on GET /health.
func WithEngineLoader(l *engine.Loader) HandlerOption {
	return func(h *Handlers) {
		h.loader = l
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(sess *session.Session, in *intake.Service, orch *export.Orchestrator, hub *progress.Hub, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		session:        sess,
		intake:         in,
		orchestrator:   orch,
		hub:            hub,
		validator:      validator.New(),
		logger:         logger,
		maxUploadBytes: DefaultMaxUploadBytes,
		origins:        newOriginSet([]string{"*"}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}
	if h.loader != nil {
		resp.EngineLoaded = h.loader.Loaded()
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetSession handles GET /session requests.
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SessionResponse{
		Snapshot: h.session.Snapshot(),
		Progress: h.hub.Last(),
	})
}

// ResetSession handles DELETE /session requests.
func (h *Handlers) ResetSession(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Reset(); err != nil {
		if errors.Is(err, session.ErrExportInProgress) {
			writeError(w, http.StatusConflict, msgExportInProgress, "EXPORT_IN_PROGRESS")
			return
		}
		h.logger.Error("failed to reset session", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to reset session", "SESSION_RESET_FAILED")
		return
	}
	h.logger.Info("session reset")
	writeJSON(w, http.StatusOK, SessionResponse{
		Snapshot: h.session.Snapshot(),
		Progress: h.hub.Last(),
	})
}

// UploadFiles handles POST /session/files requests.
func (h *Handlers) UploadFiles(w http.ResponseWriter, r *http.Request) {
	query := UploadQuery{Channel: r.URL.Query().Get("channel")}
	if err := h.validator.Struct(query); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "channel must be one of visual, audio, any", "VALIDATION_ERROR")
		return
	}
	ch, err := intake.ParseChannel(query.Channel)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit), "UPLOAD_TOO_LARGE")
			return
		}
		h.logger.Warn("failed to parse multipart body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid multipart body", "INVALID_MULTIPART")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "no files in field \"files\"", "NO_FILES")
		return
	}

	files := make([]intake.File, 0, len(headers))
	for _, fh := range headers {
		f, err := readUpload(fh)
		if err != nil {
			h.logger.Error("failed to read upload",
				slog.String("name", fh.Filename),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusBadRequest, "failed to read uploaded file", "UPLOAD_READ_FAILED")
			return
		}
		files = append(files, f)
	}

	res := h.intake.Submit(r.Context(), ch, files)
	writeJSON(w, http.StatusOK, UploadResponse{
		Result:   res,
		Accepted: res.Accepted(),
		Warnings: res.Warnings(),
	})
}

func readUpload(fh *multipart.FileHeader) (intake.File, error) {
	src, err := fh.Open()
	if err != nil {
		return intake.File{}, err
	}
	defer func() {
		_ = src.Close()
	}()

	data, err := io.ReadAll(src)
	if err != nil {
		return intake.File{}, err
	}
	return intake.File{
		Name:     fh.Filename,
		MIMEType: fh.Header.Get("Content-Type"),
		Data:     data,
	}, nil
}

// Export handles POST /export requests. A successful export is streamed back
// as an attachment. A client disconnect does not cancel a running export.
func (h *Handlers) Export(w http.ResponseWriter, r *http.Request) {
	res, err := h.orchestrator.Export(context.WithoutCancel(r.Context()))
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNotReady):
			writeError(w, http.StatusBadRequest, msgNotReady, "EXPORT_NOT_READY")
		case errors.Is(err, session.ErrExportInProgress):
			writeError(w, http.StatusConflict, msgExportInProgress, "EXPORT_IN_PROGRESS")
		default:
			writeError(w, http.StatusInternalServerError, msgProcessingFailed, "PROCESSING_FAILED")
		}
		return
	}

	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(res.Name))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
	w.Header().Set("X-Export-ID", res.Job.ID)
	if res.Location != "" {
		w.Header().Set("X-Export-Location", res.Location)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.Data); err != nil {
		h.logger.Warn("failed to write export response",
			slog.String("export_id", res.Job.ID),
			slog.String("error", err.Error()),
		)
	}
}

// ListExports handles GET /exports requests.
func (h *Handlers) ListExports(w http.ResponseWriter, r *http.Request) {
	history := h.orchestrator.History()
	resp := ExportListResponse{Exports: []ExportResponse{}}
	if history == nil {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	jobs, err := history.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list exports", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list exports", "EXPORT_FETCH_FAILED")
		return
	}
	for _, j := range jobs {
		resp.Exports = append(resp.Exports, newExportResponse(j))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetExport handles GET /exports/{id} requests.
func (h *Handlers) GetExport(w http.ResponseWriter, r *http.Request) {
	exportID := r.PathValue("id")
	if !id.Valid(exportID) {
		writeError(w, http.StatusBadRequest, "invalid export ID", "INVALID_EXPORT_ID")
		return
	}

	history := h.orchestrator.History()
	if history == nil {
		writeError(w, http.StatusNotFound, "export not found", "EXPORT_NOT_FOUND")
		return
	}

	j, err := history.FindByID(r.Context(), exportID)
	if err != nil {
		if errors.Is(err, export.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "export not found", "EXPORT_NOT_FOUND")
			return
		}
		h.logger.Error("failed to get export",
			slog.String("export_id", exportID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get export", "EXPORT_FETCH_FAILED")
		return
	}
	writeJSON(w, http.StatusOK, newExportResponse(j))
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
