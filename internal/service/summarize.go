package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/video-stream/summarizer/internal/cache"
	"github.com/video-stream/summarizer/internal/db/models"
	"github.com/video-stream/summarizer/internal/summarizer"
	"github.com/video-stream/summarizer/internal/youtube"
)

const (
	ModeClassic     = "classic"
	ModeDistributed = "distributed"

	DefaultTargetLanguage = "hi"
	MaxSentencesLimit     = 10
)

type SummarizeRequest struct {
	VideoURL       string `json:"video_url"`
	MaxSentences   int    `json:"max_sentences,omitempty"`
	Mode           string `json:"mode,omitempty"`
	TargetLanguage string `json:"target_language,omitempty"`
}

type SummarizeResponse struct {
	VideoInfo          youtube.VideoInfo `json:"video_info"`
	EnglishSummary     string            `json:"english_summary"`
	HindiSummary       string            `json:"hindi_summary"`
	TranslatedSummary  string            `json:"translated_summary"`
	TargetLanguage     string            `json:"target_language"`
	Mode               string            `json:"mode"`
	MaxSentences       int               `json:"max_sentences"`
	TranscriptLanguage string            `json:"transcript_language"`
	TranscriptSource   string            `json:"transcript_source"`
	HistoryID          int64             `json:"history_id,omitempty"`
	Cached             bool              `json:"cached"`
}

func (r *SummarizeRequest) normalize() error {
	if r.VideoURL == "" {
		return ErrMissingURL
	}
	if r.Mode == "" {
		r.Mode = ModeClassic
	}
	if r.Mode != ModeClassic && r.Mode != ModeDistributed {
		return fmt.Errorf("%w: mode must be %q or %q", ErrInvalidRequest, ModeClassic, ModeDistributed)
	}
	if r.MaxSentences == 0 {
		r.MaxSentences = summarizer.DefaultMaxSentences
	}
	if r.MaxSentences < 1 || r.MaxSentences > MaxSentencesLimit {
		return fmt.Errorf("%w: max_sentences must be between 1 and %d", ErrInvalidRequest, MaxSentencesLimit)
	}
	if r.TargetLanguage == "" {
		r.TargetLanguage = DefaultTargetLanguage
	}
	return nil
}

// Summarize fetches metadata and a transcript for the video and returns an
// English summary plus its (stub) translations. Results are cached per
// video and options; fresh results are recorded in the history.
func (s *Service) Summarize(ctx context.Context, req SummarizeRequest) (SummarizeResponse, error) {
	if err := req.normalize(); err != nil {
		return SummarizeResponse{}, err
	}
	videoID, err := youtube.ExtractVideoID(req.VideoURL)
	if err != nil {
		return SummarizeResponse{}, err
	}

	key := cache.Key("summary", videoID, req.Mode, strconv.Itoa(req.MaxSentences), req.TargetLanguage)
	var cached SummarizeResponse
	if s.cache.Get(ctx, key, &cached) {
		cached.Cached = true
		return cached, nil
	}

	info := s.videos.VideoInfoOrDefault(ctx, videoID)

	transcript, err := s.videos.Transcript(ctx, videoID)
	if err != nil {
		return SummarizeResponse{}, err
	}
	text := transcript.Text()
	if text == "" {
		return SummarizeResponse{}, fmt.Errorf("%w: empty transcript", youtube.ErrNoTranscript)
	}

	english := summarize(text, req.Mode, req.MaxSentences)

	resp := SummarizeResponse{
		VideoInfo:          info,
		EnglishSummary:     english,
		HindiSummary:       summarizer.TranslateText(english, DefaultTargetLanguage),
		TranslatedSummary:  summarizer.TranslateText(english, req.TargetLanguage),
		TargetLanguage:     req.TargetLanguage,
		Mode:               req.Mode,
		MaxSentences:       req.MaxSentences,
		TranscriptLanguage: transcript.Language,
		TranscriptSource:   transcript.Source,
	}

	if s.history != nil {
		id, err := s.history.SaveSummary(&models.Summary{
			VideoID:            videoID,
			Title:              info.Title,
			Channel:            info.Channel,
			Mode:               req.Mode,
			MaxSentences:       req.MaxSentences,
			EnglishSummary:     english,
			TargetLanguage:     req.TargetLanguage,
			TranslatedSummary:  resp.TranslatedSummary,
			TranscriptLanguage: transcript.Language,
			TranscriptSource:   transcript.Source,
		})
		if err != nil {
			slog.Warn("failed to record summary", slog.String("component", "service"),
				slog.String("video_id", videoID), slog.Any("err", err))
		} else {
			resp.HistoryID = id
		}
	}

	s.cache.Set(ctx, key, resp)
	return resp, nil
}

func summarize(text, mode string, maxSentences int) string {
	switch {
	case mode == ModeDistributed:
		return summarizer.Distributed(text, maxSentences)
	case maxSentences == summarizer.DefaultMaxSentences:
		return summarizer.Generate(text)
	default:
		return summarizer.Summarize(text, maxSentences)
	}
}
