package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/video-stream/summarizer/internal/service"
	"github.com/video-stream/summarizer/internal/youtube"
)

// SubtitleHandler serves video transcripts as JSON or caption files.
type SubtitleHandler struct {
	svc *service.Service
}

func NewSubtitleHandler(svc *service.Service) *SubtitleHandler {
	return &SubtitleHandler{svc: svc}
}

// GetTranscript answers GET /api/transcript?url=&format=json|vtt|srt|txt.
func (h *SubtitleHandler) GetTranscript(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "vtt" && format != "srt" && format != "txt" {
		jsonError(w, "format must be one of: json, vtt, srt, txt", http.StatusBadRequest)
		return
	}

	t, err := h.svc.Transcript(r.Context(), r.URL.Query().Get("url"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "max-age=3600")
	switch format {
	case "vtt":
		w.Header().Set("Content-Type", "text/vtt; charset=utf-8")
		w.Write(toVTT(t.Fragments))
	case "srt":
		w.Header().Set("Content-Type", "application/x-subrip; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s.srt"`, t.VideoID, t.Language))
		w.Write(toSRT(t.Fragments))
	case "txt":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(t.Text()))
	default:
		jsonResponse(w, t, http.StatusOK)
	}
}

// toVTT renders fragments as WebVTT cues
func toVTT(frags []youtube.Fragment) []byte {
	var buf bytes.Buffer
	buf.WriteString("WEBVTT\n\n")
	for _, f := range frags {
		fmt.Fprintf(&buf, "%s --> %s\n%s\n\n", timestamp(f.Start, '.'), timestamp(f.Start+f.Duration, '.'), f.Text)
	}
	return buf.Bytes()
}

// toSRT renders fragments as numbered SubRip cues
func toSRT(frags []youtube.Fragment) []byte {
	var buf bytes.Buffer
	for i, f := range frags {
		fmt.Fprintf(&buf, "%d\n%s --> %s\n%s\n\n", i+1, timestamp(f.Start, ','), timestamp(f.Start+f.Duration, ','), f.Text)
	}
	return buf.Bytes()
}

// timestamp formats seconds as HH:MM:SS<sep>mmm
func timestamp(seconds float64, sep byte) string {
	if seconds < 0 {
		seconds = 0
	}
	ms := int64(seconds*1000 + 0.5)
	h := ms / 3_600_000
	m := ms / 60_000 % 60
	s := ms / 1000 % 60
	return fmt.Sprintf("%02d:%02d:%02d%c%03d", h, m, s, sep, ms%1000)
}
