package service

import (
	"context"

	"github.com/video-stream/summarizer/internal/cache"
	"github.com/video-stream/summarizer/internal/youtube"
)

// Transcript returns the caption transcript of the video behind videoURL.
func (s *Service) Transcript(ctx context.Context, videoURL string) (youtube.Transcript, error) {
	if videoURL == "" {
		return youtube.Transcript{}, ErrMissingURL
	}
	videoID, err := youtube.ExtractVideoID(videoURL)
	if err != nil {
		return youtube.Transcript{}, err
	}

	key := cache.Key("transcript", videoID)
	var t youtube.Transcript
	if s.cache.Get(ctx, key, &t) {
		return t, nil
	}
	t, err = s.videos.Transcript(ctx, videoID)
	if err != nil {
		return youtube.Transcript{}, err
	}
	s.cache.Set(ctx, key, t)
	return t, nil
}
