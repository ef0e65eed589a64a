// Package service ties the summarizer and the upscaler to the video host,
// the thumbnail store, the cache and the history table.
package service

import (
	"context"
	"errors"

	"github.com/video-stream/summarizer/internal/cache"
	"github.com/video-stream/summarizer/internal/db/models"
	"github.com/video-stream/summarizer/internal/storage"
	"github.com/video-stream/summarizer/internal/youtube"
)

var (
	ErrMissingURL     = errors.New("missing video URL")
	ErrInvalidRequest = errors.New("invalid request")
)

// VideoSource is the part of the video host client the service uses.
type VideoSource interface {
	VideoInfoOrDefault(ctx context.Context, videoID string) youtube.VideoInfo
	Transcript(ctx context.Context, videoID string) (youtube.Transcript, error)
	Thumbnail(ctx context.Context, videoID string) (youtube.Thumbnail, error)
}

// History records produced summaries.
type History interface {
	SaveSummary(s *models.Summary) (int64, error)
}

type Service struct {
	videos   VideoSource
	store    *storage.Store
	cache    *cache.Cache
	history  History
	upscales *semaphore
}

// New builds a Service. cache and history may be nil.
func New(videos VideoSource, store *storage.Store, c *cache.Cache, history History, maxConcurrentUpscales int) *Service {
	if maxConcurrentUpscales < 1 {
		maxConcurrentUpscales = 1
	}
	return &Service{
		videos:   videos,
		store:    store,
		cache:    c,
		history:  history,
		upscales: newSemaphore(maxConcurrentUpscales),
	}
}
