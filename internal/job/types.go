package job

import (
	"context"
	"encoding/json"
	"time"
)

// JobType represents the kind of job
type JobType string

const (
	JobUpscale JobType = "upscale"
)

// JobStatus represents the current state of a job
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether a job in this status will not run again without
// an explicit retry.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Job represents a queued task
type Job struct {
	ID          string          `json:"id"`
	Type        JobType         `json:"type"`
	Status      JobStatus       `json:"status"`
	Source      string          `json:"source"` // video URL the job works on
	Params      json.RawMessage `json:"params"`
	Progress    float64         `json:"progress"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// UpscaleParams are parameters for an upscale job
type UpscaleParams struct {
	VideoURL         string  `json:"video_url"`
	ScaleFactor      float64 `json:"scale_factor"`
	TargetResolution string  `json:"target_resolution,omitempty"` // "", "4K", "8K"
}

// UpscaleResult is the output of a finished upscale job
type UpscaleResult struct {
	VideoID               string  `json:"video_id"`
	OriginalThumbnailPath string  `json:"original_thumbnail_path"`
	UpscaledThumbnailPath string  `json:"upscaled_thumbnail_path"`
	OriginalURL           string  `json:"original_url"`
	UpscaledURL           string  `json:"upscaled_url"`
	Resolution            string  `json:"resolution"`
	Width                 int     `json:"width"`
	Height                int     `json:"height"`
	Degraded              bool    `json:"degraded"`
	Duration              float64 `json:"duration"` // processing time in seconds
}

// JobHandler processes a job. The returned value is stored as the job
// result.
type JobHandler func(ctx context.Context, job *Job, updateProgress func(float64)) (any, error)
