package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/video-stream/summarizer/internal/job"
	"github.com/video-stream/summarizer/internal/storage"
	"github.com/video-stream/summarizer/internal/upscale"
	"github.com/video-stream/summarizer/internal/youtube"
)

// DownloadResult describes a stored original thumbnail.
type DownloadResult struct {
	VideoID     string
	Path        string // relative to the static root
	Quality     string
	ContentType string
	Data        []byte
}

// DownloadThumbnail fetches the best available thumbnail and stores it,
// replacing any earlier copy.
func (s *Service) DownloadThumbnail(ctx context.Context, videoURL string) (DownloadResult, error) {
	if videoURL == "" {
		return DownloadResult{}, ErrMissingURL
	}
	videoID, err := youtube.ExtractVideoID(videoURL)
	if err != nil {
		return DownloadResult{}, err
	}

	thumb, err := s.videos.Thumbnail(ctx, videoID)
	if err != nil {
		return DownloadResult{}, err
	}
	rel, err := s.store.SaveThumbnail(videoID, thumb.Data)
	if err != nil {
		return DownloadResult{}, fmt.Errorf("save thumbnail: %w", err)
	}
	slog.Info("downloaded thumbnail", slog.String("component", "service"),
		slog.String("video_id", videoID), slog.String("quality", thumb.Quality), slog.String("path", rel))

	return DownloadResult{
		VideoID:     videoID,
		Path:        rel,
		Quality:     thumb.Quality,
		ContentType: thumb.ContentType,
		Data:        thumb.Data,
	}, nil
}

// UpscaleOptions validates params before any network work happens.
func UpscaleOptions(p job.UpscaleParams) (upscale.Options, error) {
	target, err := upscale.ParseResolution(p.TargetResolution)
	if err != nil {
		return upscale.Options{}, err
	}
	scale := p.ScaleFactor
	if scale != 0 && !upscale.ValidScale(scale) {
		return upscale.Options{}, fmt.Errorf("%w: %v", upscale.ErrInvalidScale, scale)
	}
	return upscale.Options{ScaleFactor: scale, Target: target}, nil
}

// UpscaleThumbnail downloads the thumbnail and upscales it. Enhancement
// failures are not errors: the original is returned with Degraded set. Only
// download and decode failures fail the call.
func (s *Service) UpscaleThumbnail(ctx context.Context, p job.UpscaleParams) (job.UpscaleResult, error) {
	return s.upscaleThumbnail(ctx, p, func(float64) {})
}

func (s *Service) upscaleThumbnail(ctx context.Context, p job.UpscaleParams, progress func(float64)) (job.UpscaleResult, error) {
	start := time.Now()
	opts, err := UpscaleOptions(p)
	if err != nil {
		return job.UpscaleResult{}, err
	}

	orig, err := s.DownloadThumbnail(ctx, p.VideoURL)
	if err != nil {
		return job.UpscaleResult{}, err
	}
	progress(0.3)

	res, err := s.process(ctx, orig.Data, opts)
	if err != nil {
		return job.UpscaleResult{}, err
	}
	progress(0.8)

	if res.Outcome == upscale.OutcomeDecodeError {
		return job.UpscaleResult{}, fmt.Errorf("thumbnail for %s: %w", orig.VideoID, res.Err)
	}

	out := job.UpscaleResult{
		VideoID:               orig.VideoID,
		OriginalThumbnailPath: storage.DisplayPath(orig.Path),
		OriginalURL:           storage.URLFor(orig.Path),
		Resolution:            resolutionLabel(res.Plan, opts),
		Degraded:              res.Degraded(),
	}

	upscaledRel := orig.Path
	if res.Degraded() {
		slog.Warn("upscale degraded, returning original thumbnail", slog.String("component", "service"),
			slog.String("video_id", orig.VideoID), slog.Any("err", res.Err))
	} else {
		name := upscale.FileName(orig.Path, res.Plan.Target, res.Plan.Width, res.Plan.Height)
		upscaledRel, err = s.store.SaveUpscaled(name, func(w io.Writer) error {
			return upscale.Encode(w, res.Image)
		})
		if err != nil {
			return job.UpscaleResult{}, fmt.Errorf("save upscaled thumbnail: %w", err)
		}
	}

	b := res.Image.Bounds()
	out.Width, out.Height = b.Dx(), b.Dy()
	out.UpscaledThumbnailPath = storage.DisplayPath(upscaledRel)
	out.UpscaledURL = storage.URLFor(upscaledRel)
	out.Duration = time.Since(start).Seconds()
	progress(1)
	return out, nil
}

// processImage is swapped in tests.
var processImage = upscale.Process

// process runs one upscale while holding a semaphore slot.
func (s *Service) process(ctx context.Context, data []byte, opts upscale.Options) (upscale.Result, error) {
	if err := s.upscales.acquire(ctx); err != nil {
		return upscale.Result{}, err
	}
	defer s.upscales.release()
	return processImage(data, opts), nil
}

// UpscaleJobHandler runs upscale jobs from the queue.
func (s *Service) UpscaleJobHandler() job.JobHandler {
	return func(ctx context.Context, j *job.Job, updateProgress func(float64)) (any, error) {
		var p job.UpscaleParams
		if err := json.Unmarshal(j.Params, &p); err != nil {
			return nil, fmt.Errorf("decode params: %w", err)
		}
		return s.upscaleThumbnail(ctx, p, updateProgress)
	}
}

func resolutionLabel(plan upscale.Plan, opts upscale.Options) string {
	if plan.Scale != 0 || plan.Target != upscale.ResolutionNone {
		return plan.Label()
	}
	if opts.Target != upscale.ResolutionNone {
		return string(opts.Target)
	}
	scale := opts.ScaleFactor
	if scale == 0 {
		scale = upscale.DefaultScale
	}
	return strconv.FormatFloat(scale, 'f', -1, 64) + "x"
}
