package handlers

import (
	"time"

	"github.com/gorilla/mux"

	"photo-ingest/internal/app"
)

// multipartOverhead is allowed on top of the batch byte limit for form
// boundaries and part headers.
const multipartOverhead = 1 << 20

type Handlers struct {
	app       *app.App
	startTime time.Time
}

func New(a *app.App) *Handlers {
	return &Handlers{
		app:       a,
		startTime: time.Now(),
	}
}

// NewRouter registers every API route on a fresh router.
func NewRouter(h *Handlers) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/photos", h.UploadPhotos).Methods("POST")
	api.HandleFunc("/photos", h.ListPhotos).Methods("GET")
	api.HandleFunc("/photos/{id:[0-9]+}", h.GetPhoto).Methods("GET")
	api.HandleFunc("/photos/{id:[0-9]+}", h.DeletePhoto).Methods("DELETE")
	api.HandleFunc("/objects/{key:.*}", h.GetObject).Methods("GET", "HEAD")
	api.HandleFunc("/stats", h.GetStats).Methods("GET")

	api.HandleFunc("/cache/stats", h.GetCacheStats).Methods("GET")
	api.HandleFunc("/cache/invalidate", h.InvalidateCache).Methods("POST")
	api.HandleFunc("/cache", h.ClearCache).Methods("DELETE")
	api.HandleFunc("/cache/entries/{key:.*}", h.GetCacheEntry).Methods("GET")
	api.HandleFunc("/cache/entries/{key:.*}", h.PutCacheEntry).Methods("PUT")
	api.HandleFunc("/cache/entries/{key:.*}", h.DeleteCacheEntry).Methods("DELETE")

	return r
}

// maxRequestBytes bounds an upload request body.
func (h *Handlers) maxRequestBytes() int64 {
	return h.app.Pipeline().Config().MaxBatchBytes + multipartOverhead
}
