package handlers

import (
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"photo-ingest/internal/logging"
)

// GetObject serves a stored object through the handle cache. When the
// bytes are unavailable it redirects to the object's public address.
func (h *Handlers) GetObject(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if key == "" || strings.Contains(key, "..") {
		http.Error(w, "Invalid object key", http.StatusBadRequest)
		return
	}

	handle := h.app.Handle(r.Context(), key)
	if handle.Direct() {
		http.Redirect(w, r, h.app.PublicURL(key), http.StatusTemporaryRedirect)
		return
	}

	rd, err := handle.Reader()
	if err != nil {
		// Evicted between lookup and read.
		logging.Debug("Handle for %s released before read: %v", key, err)
		http.Redirect(w, r, h.app.PublicURL(key), http.StatusTemporaryRedirect)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeContent(w, r, path.Base(key), time.Time{}, rd)
}
