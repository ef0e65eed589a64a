package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/video-stream/summarizer/internal/storage"
)

const maxSearchResults = 200

// extractPath extracts and URL-decodes the wildcard path from chi router
func extractPath(r *http.Request) string {
	path := chi.URLParam(r, "*")
	decoded, err := url.PathUnescape(path)
	if err != nil {
		return path
	}
	decoded = strings.TrimPrefix(decoded, "/")
	decoded = strings.TrimSuffix(decoded, "/")
	return decoded
}

// FilesHandler browses the stored thumbnail gallery.
type FilesHandler struct {
	store *storage.Store
}

func NewFilesHandler(store *storage.Store) *FilesHandler {
	return &FilesHandler{store: store}
}

// GetTree lists a directory below the thumbnail root.
func (h *FilesHandler) GetTree(w http.ResponseWriter, r *http.Request) {
	path := storage.ThumbnailDir
	if sub := extractPath(r); sub != "" {
		path += "/" + sub
	}

	entries, err := h.store.ListDirectory(path)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidPath) {
			jsonError(w, "invalid path", http.StatusBadRequest)
			return
		}
		jsonError(w, "failed to list directory", http.StatusNotFound)
		return
	}

	jsonResponse(w, map[string]any{
		"path":    path,
		"entries": entries,
	}, http.StatusOK)
}

// Search finds stored thumbnails whose name contains ?q=.
func (h *FilesHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		jsonError(w, "query parameter 'q' is required", http.StatusBadRequest)
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			jsonError(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxSearchResults)
	}

	results, err := h.store.Search(q, limit)
	if err != nil {
		jsonError(w, "search failed", http.StatusInternalServerError)
		return
	}

	jsonResponse(w, map[string]any{
		"query":   q,
		"results": results,
	}, http.StatusOK)
}
