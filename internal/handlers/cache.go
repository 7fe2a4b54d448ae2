package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"photo-ingest/internal/app"
	"photo-ingest/internal/database"
	"photo-ingest/internal/logging"
	"photo-ingest/internal/memory"
)

// StatsResponse combines library totals with the last batch summary.
type StatsResponse struct {
	Photos    database.PhotoStats   `json:"photos"`
	LastBatch *database.BatchRecord `json:"lastBatch,omitempty"`
}

// CacheStatsResponse reports the caches and, when monitored, memory use.
type CacheStatsResponse struct {
	app.CacheStats
	Memory      *memory.Stats `json:"memory,omitempty"`
	FeedEnabled bool          `json:"feedEnabled"`
}

// cacheEntryRequest is the body of a PUT to /api/cache/entries/{key}.
type cacheEntryRequest struct {
	Value      string `json:"value"`
	Category   string `json:"category"`
	TTLSeconds int    `json:"ttlSeconds"`
}

// GetStats returns library statistics, served from cache when fresh.
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.app.Stats(r.Context())
	if err != nil {
		logging.Error("Failed to get stats: %v", err)
		http.Error(w, "Failed to get stats", http.StatusInternalServerError)
		return
	}

	last, err := h.app.LastBatch(r.Context())
	if err != nil {
		logging.Warn("Failed to get last batch: %v", err)
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, StatsResponse{Photos: stats, LastBatch: last})
}

func (h *Handlers) GetCacheStats(w http.ResponseWriter, _ *http.Request) {
	resp := CacheStatsResponse{
		CacheStats:  h.app.CacheStats(),
		FeedEnabled: h.app.FeedConnected(),
	}
	if mem, ok := h.app.MemoryStats(); ok {
		resp.Memory = &mem
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, resp)
}

// InvalidateCache drops ?key= from every local cache.
func (h *Handlers) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		http.Error(w, "Key is required", http.StatusBadRequest)
		return
	}

	removed := h.app.Invalidate(key)
	logging.Debug("Cache invalidate %s: removed=%v", key, removed)

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]interface{}{
		"key":     key,
		"removed": removed,
	})
}

func (h *Handlers) ClearCache(w http.ResponseWriter, _ *http.Request) {
	h.app.ClearCaches()
	logging.Info("Caches cleared")
	writeJSONStatus(w, "cleared")
}

func (h *Handlers) GetCacheEntry(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if key == "" {
		http.Error(w, "Key is required", http.StatusBadRequest)
		return
	}

	entry, err := h.app.CacheEntry(r.Context(), key)
	if err != nil {
		if app.IsNotFound(err) {
			http.Error(w, "Entry not found", http.StatusNotFound)
			return
		}
		logging.Error("Failed to get cache entry %s: %v", key, err)
		http.Error(w, "Failed to get cache entry", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, entry)
}

func (h *Handlers) PutCacheEntry(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if key == "" {
		http.Error(w, "Key is required", http.StatusBadRequest)
		return
	}

	var req cacheEntryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.TTLSeconds < 0 {
		http.Error(w, "ttlSeconds must not be negative", http.StatusBadRequest)
		return
	}

	entry := database.CacheEntry{
		Key:        key,
		Value:      req.Value,
		Category:   req.Category,
		TTLSeconds: req.TTLSeconds,
	}
	if err := h.app.SetCacheEntry(r.Context(), entry); err != nil {
		logging.Error("Failed to set cache entry %s: %v", key, err)
		http.Error(w, "Failed to set cache entry", http.StatusInternalServerError)
		return
	}

	writeJSONStatus(w, "ok")
}

func (h *Handlers) DeleteCacheEntry(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if key == "" {
		http.Error(w, "Key is required", http.StatusBadRequest)
		return
	}

	deleted, err := h.app.DeleteCacheEntry(r.Context(), key)
	if err != nil {
		logging.Error("Failed to delete cache entry %s: %v", key, err)
		http.Error(w, "Failed to delete cache entry", http.StatusInternalServerError)
		return
	}
	if !deleted {
		http.Error(w, "Entry not found", http.StatusNotFound)
		return
	}

	writeJSONStatus(w, "deleted")
}
