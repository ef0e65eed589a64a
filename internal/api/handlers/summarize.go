package handlers

import (
	"net/http"

	"github.com/video-stream/summarizer/internal/db"
	"github.com/video-stream/summarizer/internal/service"
)

type SummarizeHandler struct {
	svc      *service.Service
	database *db.Database
}

func NewSummarizeHandler(svc *service.Service, database *db.Database) *SummarizeHandler {
	return &SummarizeHandler{svc: svc, database: database}
}

// Summarize answers POST /api/summarize. Fields left out of the request
// take the stored defaults.
func (h *SummarizeHandler) Summarize(w http.ResponseWriter, r *http.Request) {
	var req service.SummarizeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	d := loadDefaults(h.database)
	if req.TargetLanguage == "" {
		req.TargetLanguage = d.TargetLanguage
	}
	if req.Mode == "" {
		req.Mode = d.Mode
	}
	if req.MaxSentences == 0 {
		req.MaxSentences = d.MaxSentences
	}

	resp, err := h.svc.Summarize(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, resp, http.StatusOK)
}
