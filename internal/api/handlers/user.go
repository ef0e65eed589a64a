package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/video-stream/summarizer/internal/db"
	"github.com/video-stream/summarizer/internal/youtube"
)

const maxHistoryPage = 100

// UserHandler serves the summary history.
type UserHandler struct {
	db *db.Database
}

func NewUserHandler(db *db.Database) *UserHandler {
	return &UserHandler{db: db}
}

// ListHistory returns recorded summaries, newest first. ?video= accepts a
// video ID or URL; ?limit= and ?offset= page the result.
func (h *UserHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	videoID := q.Get("video")
	if videoID != "" && !youtube.ValidVideoID(videoID) {
		id, err := youtube.ExtractVideoID(videoID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		videoID = id
	}

	limit, err := queryInt(q.Get("limit"), 20)
	if err != nil || limit < 1 {
		jsonError(w, "invalid limit", http.StatusBadRequest)
		return
	}
	limit = min(limit, maxHistoryPage)
	offset, err := queryInt(q.Get("offset"), 0)
	if err != nil || offset < 0 {
		jsonError(w, "invalid offset", http.StatusBadRequest)
		return
	}

	summaries, err := h.db.ListSummaries(videoID, limit, offset)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, map[string]any{
		"items":  summaries,
		"limit":  limit,
		"offset": offset,
	}, http.StatusOK)
}

func (h *UserHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		jsonError(w, "invalid history ID", http.StatusBadRequest)
		return
	}
	s, err := h.db.GetSummary(id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, s, http.StatusOK)
}

func (h *UserHandler) DeleteHistory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		jsonError(w, "invalid history ID", http.StatusBadRequest)
		return
	}
	if err := h.db.DeleteSummary(id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func queryInt(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
