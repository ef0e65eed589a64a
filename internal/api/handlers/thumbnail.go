package handlers

import (
	"net/http"
	"strconv"

	"github.com/video-stream/summarizer/internal/db"
	"github.com/video-stream/summarizer/internal/job"
	"github.com/video-stream/summarizer/internal/service"
	"github.com/video-stream/summarizer/internal/storage"
)

type ThumbnailHandler struct {
	svc      *service.Service
	database *db.Database
}

func NewThumbnailHandler(svc *service.Service, database *db.Database) *ThumbnailHandler {
	return &ThumbnailHandler{svc: svc, database: database}
}

// Get downloads the thumbnail for ?url= and returns the image itself.
func (h *ThumbnailHandler) Get(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.DownloadThumbnail(r.Context(), r.URL.Query().Get("url"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	contentType := res.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
	w.Header().Set("Cache-Control", "max-age=3600")
	w.Write(res.Data)
}

type videoURLRequest struct {
	VideoURL string `json:"video_url"`
}

// Download stores the thumbnail and returns where it can be fetched.
func (h *ThumbnailHandler) Download(w http.ResponseWriter, r *http.Request) {
	var req videoURLRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.svc.DownloadThumbnail(r.Context(), req.VideoURL)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	jsonResponse(w, map[string]any{
		"success":        true,
		"thumbnail_path": storage.DisplayPath(res.Path),
		"url":            storage.URLFor(res.Path),
		"quality":        res.Quality,
	}, http.StatusOK)
}

type upscaleRequest struct {
	VideoURL         string   `json:"video_url"`
	ScaleFactor      *float64 `json:"scale_factor"`
	TargetResolution *string  `json:"target_resolution"`
}

// params fills fields missing from the request with the stored defaults.
func (req upscaleRequest) params(d defaults) job.UpscaleParams {
	p := job.UpscaleParams{VideoURL: req.VideoURL, ScaleFactor: d.ScaleFactor, TargetResolution: d.TargetResolution}
	if req.ScaleFactor != nil {
		p.ScaleFactor = *req.ScaleFactor
	}
	if req.TargetResolution != nil {
		p.TargetResolution = *req.TargetResolution
	}
	return p
}

type upscaleResponse struct {
	Success bool `json:"success"`
	job.UpscaleResult
}

// Upscale downloads and upscales the thumbnail within the request.
func (h *ThumbnailHandler) Upscale(w http.ResponseWriter, r *http.Request) {
	var req upscaleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.VideoURL == "" {
		writeServiceError(w, r, service.ErrMissingURL)
		return
	}

	res, err := h.svc.UpscaleThumbnail(r.Context(), req.params(loadDefaults(h.database)))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, upscaleResponse{Success: true, UpscaleResult: res}, http.StatusOK)
}
