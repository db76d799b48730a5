package upload

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rngallery/rngallery/internal/auth"
	"github.com/rngallery/rngallery/internal/httputil"
	"github.com/rngallery/rngallery/internal/validate"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	// multipartOverhead leaves room for boundaries and part headers on top of
	// the file itself.
	multipartOverhead = 1 << 20
)

var mimeByExtension = map[string]string{
	".gif": GifMIMEType,
	".mp4": "video/mp4",
	".mov": "video/quicktime",
}

// Records is the read side of the uploads table.
type Records interface {
	Get(ctx context.Context, id uuid.UUID) (*Record, error)
	ListRecent(ctx context.Context, nickname string, limit int) ([]Record, error)
}

type Handler struct {
	manager  *Manager
	records  Records
	maxBytes int64
	tempDir  string
}

// NewHandler serves the upload page and API. Spooled files go to tempDir,
// or the system temp directory when it is empty.
func NewHandler(manager *Manager, records Records, maxBytes int64, tempDir string) *Handler {
	if maxBytes <= 0 {
		maxBytes = validate.MaxUploadBytes
	}
	return &Handler{manager: manager, records: records, maxBytes: maxBytes, tempDir: tempDir}
}

type pageData struct {
	Accept   string
	MaxBytes int64
	Nonce    string
}

// Page renders /upload. Anonymous viewers are sent to sign in first.
func (h *Handler) Page(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.ViewerFromContext(r.Context()); !ok {
		http.Redirect(w, r, auth.SignInURL(r.URL.Path), http.StatusSeeOther)
		return
	}
	httputil.WriteHTML(w, http.StatusOK, pageTemplate, pageData{
		Accept:   strings.Join(AcceptedExtensions, ","),
		MaxBytes: h.maxBytes,
		Nonce:    httputil.NonceFromContext(r.Context()),
	})
}

type createResponse struct {
	ID uuid.UUID `json:"id"`
}

// Create spools the multipart "file" field to disk and starts an upload
// for it.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	viewer, ok := auth.ViewerFromContext(r.Context())
	if !ok {
		httputil.WriteRedirectError(w, http.StatusUnauthorized, "sign in required", auth.SignInURL("/upload"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+multipartOverhead)
	reader, err := r.MultipartReader()
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "expected a multipart form")
		return
	}

	part, err := nextFilePart(reader)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer func() { _ = part.Close() }()

	name := filepath.Base(part.FileName())
	if msg := validate.FileName(name); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	path, size, err := h.spool(part, filepath.Ext(name))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			httputil.WriteError(w, http.StatusRequestEntityTooLarge, validate.UploadSize(h.maxBytes+1, h.maxBytes))
			return
		}
		slog.Error("upload: failed to spool file", "file", name, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to read upload")
		return
	}
	removeSpool := func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("upload: failed to remove spooled file", "path", path, "error", err)
		}
	}

	if msg := validate.UploadSize(size, h.maxBytes); msg != "" {
		removeSpool()
		status := http.StatusBadRequest
		if size > h.maxBytes {
			status = http.StatusRequestEntityTooLarge
		}
		httputil.WriteError(w, status, msg)
		return
	}

	mimeType, err := detectMIME(path, name, part.Header.Get("Content-Type"))
	if err != nil {
		removeSpool()
		httputil.WriteError(w, http.StatusUnsupportedMediaType, err.Error())
		return
	}

	id, err := h.manager.Begin(r.Context(), Request{
		Nickname: viewer.Nickname,
		Token:    viewer.Token,
		File: File{
			Name:     name,
			MIMEType: mimeType,
			Size:     size,
			Open:     func() (io.ReadCloser, error) { return os.Open(path) },
		},
		Cleanup: removeSpool,
	})
	if err != nil {
		removeSpool()
		if errors.Is(err, ErrCancelled) {
			httputil.WriteError(w, http.StatusServiceUnavailable, "server is shutting down")
			return
		}
		slog.Error("upload: failed to begin", "file", name, "nickname", viewer.Nickname, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to start upload")
		return
	}

	httputil.WriteJSON(w, http.StatusAccepted, createResponse{ID: id})
}

func nextFilePart(reader *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := reader.NextPart()
		if err != nil {
			return nil, err
		}
		if part.FormName() == "file" && part.FileName() != "" {
			return part, nil
		}
		_ = part.Close()
	}
}

func (h *Handler) spool(src io.Reader, ext string) (string, int64, error) {
	f, err := os.CreateTemp(h.tempDir, "rngallery-upload-*"+strings.ToLower(ext))
	if err != nil {
		return "", 0, err
	}
	// One byte past the limit is enough to tell an oversized file apart.
	n, copyErr := io.Copy(f, io.LimitReader(src, h.maxBytes+1))
	closeErr := f.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		_ = os.Remove(f.Name())
		return "", 0, copyErr
	}
	return f.Name(), n, nil
}

var errUnsupportedMedia = errors.New("only gif, mp4 and mov files can be uploaded")

// detectMIME settles the media type from the declared type, the extension
// and the first bytes of the file. A gif has to look like one.
func detectMIME(path, name, declared string) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	byExt, ok := mimeByExtension[ext]
	if !ok {
		return "", errUnsupportedMedia
	}
	if declared != "" && declared != "application/octet-stream" && declared != byExt {
		return "", errUnsupportedMedia
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()
	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", err
	}
	sniffed := http.DetectContentType(head[:n])

	switch byExt {
	case GifMIMEType:
		if sniffed != GifMIMEType {
			return "", errUnsupportedMedia
		}
	default:
		if strings.HasPrefix(sniffed, "image/") || strings.HasPrefix(sniffed, "text/") {
			return "", errUnsupportedMedia
		}
	}
	return byExt, nil
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, "upload not found")
		return uuid.Nil, false
	}
	return id, true
}

// Status reports an upload, from memory while it is tracked and from the
// uploads table afterwards.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	viewer, _ := auth.ViewerFromContext(r.Context())
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	if owner, err := h.manager.Owner(id); err == nil {
		if owner != viewer.Nickname {
			httputil.WriteError(w, http.StatusNotFound, "upload not found")
			return
		}
		snap, err := h.manager.Snapshot(id)
		if err == nil {
			httputil.WriteJSON(w, http.StatusOK, snap)
			return
		}
	}

	if h.records == nil {
		httputil.WriteError(w, http.StatusNotFound, "upload not found")
		return
	}
	rec, err := h.records.Get(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		httputil.WriteError(w, http.StatusNotFound, "upload not found")
		return
	}
	if err != nil {
		slog.Error("upload: failed to load upload", "upload_id", id, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load upload")
		return
	}
	if rec.Nickname != viewer.Nickname {
		httputil.WriteError(w, http.StatusNotFound, "upload not found")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec.Snapshot())
}

// Cancel stops an upload the viewer started. Leaving the upload page calls
// this.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	viewer, _ := auth.ViewerFromContext(r.Context())
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	owner, err := h.manager.Owner(id)
	if err != nil || owner != viewer.Nickname {
		httputil.WriteError(w, http.StatusNotFound, "upload not found")
		return
	}
	if err := h.manager.Cancel(id); err != nil {
		httputil.WriteError(w, http.StatusNotFound, "upload not found")
		return
	}
	slog.Info("upload: cancelled by viewer", "upload_id", id, "nickname", viewer.Nickname)
	w.WriteHeader(http.StatusNoContent)
}

// List returns the viewer's most recent uploads.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	viewer, _ := auth.ViewerFromContext(r.Context())
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			httputil.WriteError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxListLimit)
	}

	if h.records == nil {
		httputil.WriteJSON(w, http.StatusOK, []Record{})
		return
	}
	records, err := h.records.ListRecent(r.Context(), viewer.Nickname, limit)
	if err != nil {
		slog.Error("upload: failed to list uploads", "nickname", viewer.Nickname, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list uploads")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, records)
}

// Limits exposes the upload constraints the page checks before sending.
func (h *Handler) Limits(w http.ResponseWriter, r *http.Request) {
	limits := validate.FieldLimits()
	limits["uploadBytes"] = h.maxBytes
	httputil.WriteJSON(w, http.StatusOK, limits)
}
