package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"photo-ingest/internal/app"
	"photo-ingest/internal/database"
	"photo-ingest/internal/ingest"
	"photo-ingest/internal/logging"
	"photo-ingest/internal/media"
	"photo-ingest/internal/upload"
)

// uploadMemory is how much of a multipart form is held in memory before
// spilling parts to temp files.
const uploadMemory = 32 << 20

// BatchResponse is the reply to an upload.
type BatchResponse struct {
	*upload.BatchResult
	Status  upload.BatchStatus `json:"status"`
	Summary string             `json:"summary"`
}

// PhotoResponse is a photo row plus the public address of each tier.
type PhotoResponse struct {
	database.Photo
	URLs map[string]string `json:"urls"`
}

// UploadPhotos ingests and uploads the "files" parts of a multipart form.
// Optional form fields: concurrency, maxRetries, prefix, user.
func (h *Handlers) UploadPhotos(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxRequestBytes())
	if err := r.ParseMultipartForm(uploadMemory); err != nil {
		if isBodyTooLarge(err) {
			http.Error(w, "Upload exceeds batch size limit", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			logging.Debug("Failed to remove multipart temp files: %v", err)
		}
	}()

	opts, err := batchOptions(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	files, err := readParts(r.MultipartForm.File["files"])
	if err != nil {
		logging.Warn("Failed to read uploaded files: %v", err)
		http.Error(w, "Failed to read uploaded files", http.StatusBadRequest)
		return
	}

	result, err := h.app.IngestAndUploadBatch(r.Context(), files, opts, nil)
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrEmptyBatch):
			http.Error(w, "No files provided", http.StatusBadRequest)
		case errors.Is(err, ingest.ErrTooManyFiles), errors.Is(err, ingest.ErrBatchTooLarge):
			http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
		default:
			logging.Error("Upload batch failed: %v", err)
			http.Error(w, "Upload failed", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(batchStatusCode(result))
	writeJSON(w, BatchResponse{
		BatchResult: result,
		Status:      result.Status(),
		Summary:     result.Summary(),
	})
}

// batchStatusCode maps a batch outcome to an HTTP status. An auth failure
// anywhere in the batch wins so clients know to sign in again.
func batchStatusCode(result *upload.BatchResult) int {
	switch {
	case result.NeedsReauth:
		return http.StatusUnauthorized
	case result.Status() == upload.AllSucceeded:
		return http.StatusOK
	case result.Status() == upload.PartiallySucceeded:
		return http.StatusMultiStatus
	default:
		return http.StatusUnprocessableEntity
	}
}

// isBodyTooLarge reports whether err came from the MaxBytesReader. The
// multipart reader does not always wrap it.
func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large")
}

func batchOptions(r *http.Request) (app.BatchOptions, error) {
	opts := app.DefaultBatchOptions()
	opts.KeyPrefix = r.FormValue("prefix")
	opts.UserID = r.FormValue("user")

	if v := r.FormValue("concurrency"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return opts, fmt.Errorf("invalid concurrency %q", v)
		}
		opts.Concurrency = n
	}
	if v := r.FormValue("maxRetries"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return opts, fmt.Errorf("invalid maxRetries %q", v)
		}
		opts.MaxRetries = n
	}
	return opts, nil
}

func readParts(parts []*multipart.FileHeader) ([]ingest.RawInput, error) {
	files := make([]ingest.RawInput, 0, len(parts))
	for _, fh := range parts {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
		}
		files = append(files, ingest.RawInput{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return files, nil
}

// ListPhotos returns recent photos, newest first. Query: user, limit.
// Their thumbnails are warmed into the handle cache.
func (h *Handlers) ListPhotos(w http.ResponseWriter, r *http.Request) {
	limit := database.DefaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	photos, err := h.app.Database().ListPhotos(r.Context(), r.URL.Query().Get("user"), limit)
	if err != nil {
		logging.Error("Failed to list photos: %v", err)
		http.Error(w, "Failed to list photos", http.StatusInternalServerError)
		return
	}

	h.app.WarmThumbnails(photos)

	resp := make([]PhotoResponse, 0, len(photos))
	for _, p := range photos {
		resp = append(resp, h.photoResponse(p))
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, resp)
}

// GetPhoto returns one photo by ID.
func (h *Handlers) GetPhoto(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid photo ID", http.StatusBadRequest)
		return
	}

	p, err := h.app.Database().GetPhoto(r.Context(), id)
	if err != nil {
		if app.IsNotFound(err) {
			http.Error(w, "Photo not found", http.StatusNotFound)
			return
		}
		logging.Error("Failed to get photo %d: %v", id, err)
		http.Error(w, "Failed to get photo", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, h.photoResponse(*p))
}

// DeletePhoto removes a photo and its stored tiers.
func (h *Handlers) DeletePhoto(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid photo ID", http.StatusBadRequest)
		return
	}

	res, err := h.app.DeletePhoto(r.Context(), id)
	if err != nil {
		if app.IsNotFound(err) {
			http.Error(w, "Photo not found", http.StatusNotFound)
			return
		}
		logging.Error("Failed to delete photo %d: %v", id, err)
		http.Error(w, "Failed to delete photo", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, res)
}

func (h *Handlers) photoResponse(p database.Photo) PhotoResponse {
	urls := make(map[string]string, 3)
	for tier, key := range map[string]string{
		media.TierFull:      p.StoragePath,
		media.TierMedium:    p.CompressedPath,
		media.TierThumbnail: p.ThumbnailPath,
	} {
		if key != "" {
			urls[tier] = h.app.PublicURL(key)
		}
	}
	return PhotoResponse{Photo: p, URLs: urls}
}
