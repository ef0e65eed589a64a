package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/video-stream/summarizer/internal/db"
	"github.com/video-stream/summarizer/internal/job"
	"github.com/video-stream/summarizer/internal/service"
	"github.com/video-stream/summarizer/internal/upscale"
	"github.com/video-stream/summarizer/internal/youtube"
)

// errorStatus maps domain errors to an HTTP status and a client message.
func errorStatus(err error) (int, string) {
	var upstream *youtube.StatusError
	switch {
	case errors.Is(err, service.ErrMissingURL):
		return http.StatusBadRequest, "Missing video URL"
	case errors.Is(err, youtube.ErrNoTranscript):
		return http.StatusBadRequest, "Could not retrieve transcript for this video"
	case errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, youtube.ErrInvalidURL),
		errors.Is(err, upscale.ErrInvalidScale),
		errors.Is(err, upscale.ErrUnknownResolution):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, youtube.ErrThumbnailNotFound),
		errors.Is(err, db.ErrNotFound),
		errors.Is(err, job.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, job.ErrActive), errors.Is(err, job.ErrNotRetried):
		return http.StatusConflict, err.Error()
	case errors.As(err, &upstream), errors.Is(err, upscale.ErrDecode):
		return http.StatusBadGateway, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "upstream timed out"
	}
	return http.StatusInternalServerError, "internal server error"
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := errorStatus(err)
	if status >= 500 {
		slog.Error("request failed", slog.String("component", "api"),
			slog.String("path", r.URL.Path), slog.Int("status", status), slog.Any("err", err))
	}
	jsonError(w, msg, status)
}
