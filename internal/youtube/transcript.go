package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
)

var (
	ErrNoTranscript        = errors.New("could not retrieve transcript")
	ErrNoCaptions          = errors.New("video has no caption tracks")
	ErrLanguageUnavailable = errors.New("no caption track in requested language")
)

const playerResponseMarker = "ytInitialPlayerResponse = "

// Fragment is one timed caption line.
type Fragment struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// Transcript is the caption text of a video in one language.
type Transcript struct {
	VideoID    string     `json:"video_id"`
	Language   string     `json:"language"`
	Translated bool       `json:"translated"`
	Source     string     `json:"source"`
	Fragments  []Fragment `json:"fragments"`
}

// Text joins all fragment texts with single spaces.
func (t Transcript) Text() string {
	parts := make([]string, 0, len(t.Fragments))
	for _, f := range t.Fragments {
		if s := strings.TrimSpace(f.Text); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

type captionTrack struct {
	BaseURL        string `json:"baseUrl"`
	LanguageCode   string `json:"languageCode"`
	Kind           string `json:"kind"` // "asr" = auto-generated
	IsTranslatable bool   `json:"isTranslatable"`
}

func (t captionTrack) manual() bool { return t.Kind != "asr" }

type playerResponse struct {
	Captions *struct {
		Renderer struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
	PlayabilityStatus *struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
}

type timedText struct {
	Lines []struct {
		Start string `xml:"start,attr"`
		Dur   string `xml:"dur,attr"`
		Text  string `xml:",chardata"`
	} `xml:"text"`
}

// Strategy is one way of obtaining a transcript.
type Strategy struct {
	Name  string
	Fetch func(ctx context.Context, videoID string) (Transcript, error)
}

// Chain tries strategies in order and returns the first transcript with any
// text in it.
type Chain []Strategy

//
// The caption track list is read once per call and shared by the strategies.
func (ch Chain) Fetch(ctx context.Context, videoID string) (Transcript, error) {
	ctx = context.WithValue(ctx, trackListKey{}, &trackList{videoID: videoID})
	var errs []error
	for _, s := range ch {
		if err := ctx.Err(); err != nil {
			return Transcript{}, err
		}
		t, err := s.Fetch(ctx, videoID)
		if err == nil && t.Text() == "" {
			err = errors.New("empty transcript")
		}
		if err != nil {
			slog.Warn("transcript strategy failed", slog.String("component", "youtube"),
				slog.String("video_id", videoID), slog.String("strategy", s.Name), slog.Any("err", err))
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
			continue
		}
		t.Source = s.Name
		return t, nil
	}
	if len(errs) == 0 {
		return Transcript{}, ErrNoTranscript
	}
	return Transcript{}, fmt.Errorf("%w: %w", ErrNoTranscript, errors.Join(errs...))
}

// DefaultChain is the transcript fallback order: English, then any
// available track (manual first, translated to English when possible), then
// Hindi as a last resort.
func (c *Client) DefaultChain() Chain {
	return Chain{
		c.LanguageStrategy("en"),
		c.AnyTrackStrategy("en"),
		c.LastResortStrategy("hi", "en"),
	}
}

// Transcript fetches a transcript through DefaultChain.
func (c *Client) Transcript(ctx context.Context, videoID string) (Transcript, error) {
	return c.DefaultChain().Fetch(ctx, videoID)
}

// LanguageStrategy fetches the track in lang, preferring a manual one.
func (c *Client) LanguageStrategy(lang string) Strategy {
	return Strategy{
		Name: "language:" + lang,
		Fetch: func(ctx context.Context, videoID string) (Transcript, error) {
			tracks, err := c.captionTracks(ctx, videoID)
			if err != nil {
				return Transcript{}, err
			}
			track, ok := findTrack(tracks, lang)
			if !ok {
				return Transcript{}, fmt.Errorf("%w: %s", ErrLanguageUnavailable, lang)
			}
			return c.fetchTrack(ctx, videoID, track, "")
		},
	}
}

// AnyTrackStrategy takes a manual track as is when one exists. Otherwise it
// takes the first listed track and asks for a translation into translateTo,
// falling back to the untranslated text.
func (c *Client) AnyTrackStrategy(translateTo string) Strategy {
	return Strategy{
		Name: "any-available",
		Fetch: func(ctx context.Context, videoID string) (Transcript, error) {
			tracks, err := c.captionTracks(ctx, videoID)
			if err != nil {
				return Transcript{}, err
			}
			for _, t := range tracks {
				if t.manual() {
					return c.fetchTrack(ctx, videoID, t, "")
				}
			}
			return c.fetchTranslatedOrRaw(ctx, videoID, tracks[0], translateTo)
		},
	}
}

// LastResortStrategy fetches the track in lang and tries to translate it to
// translateTo, keeping the original text when translation fails.
func (c *Client) LastResortStrategy(lang, translateTo string) Strategy {
	return Strategy{
		Name: "last-resort:" + lang,
		Fetch: func(ctx context.Context, videoID string) (Transcript, error) {
			tracks, err := c.captionTracks(ctx, videoID)
			if err != nil {
				return Transcript{}, err
			}
			track, ok := findTrack(tracks, lang)
			if !ok {
				return Transcript{}, fmt.Errorf("%w: %s", ErrLanguageUnavailable, lang)
			}
			return c.fetchTranslatedOrRaw(ctx, videoID, track, translateTo)
		},
	}
}

func (c *Client) fetchTranslatedOrRaw(ctx context.Context, videoID string, track captionTrack, to string) (Transcript, error) {
	if to != "" && track.LanguageCode != to && track.IsTranslatable {
		t, err := c.fetchTrack(ctx, videoID, track, to)
		if err == nil && len(t.Fragments) > 0 {
			return t, nil
		}
		slog.Debug("caption translation failed, using original", slog.String("component", "youtube"),
			slog.String("video_id", videoID), slog.String("lang", track.LanguageCode), slog.Any("err", err))
	}
	return c.fetchTrack(ctx, videoID, track, "")
}

type trackListKey struct{}

// trackList memoizes the caption tracks of one video for a Chain.Fetch.
type trackList struct {
	videoID string
	once    sync.Once
	tracks  []captionTrack
	err     error
}

func (c *Client) captionTracks(ctx context.Context, videoID string) ([]captionTrack, error) {
	if l, ok := ctx.Value(trackListKey{}).(*trackList); ok && l.videoID == videoID {
		l.once.Do(func() { l.tracks, l.err = c.loadCaptionTracks(ctx, videoID) })
		return l.tracks, l.err
	}
	return c.loadCaptionTracks(ctx, videoID)
}

func (c *Client) loadCaptionTracks(ctx context.Context, videoID string) ([]captionTrack, error) {
	page, err := c.watchPage(ctx, videoID)
	if err != nil {
		return nil, err
	}
	return parseCaptionTracks(page)
}

func parseCaptionTracks(page []byte) ([]captionTrack, error) {
	idx := bytes.Index(page, []byte(playerResponseMarker))
	if idx < 0 {
		return nil, errors.New("ytInitialPlayerResponse not found in watch page")
	}
	raw := extractJSON(page[idx+len(playerResponseMarker):])
	if raw == nil {
		return nil, errors.New("failed to extract ytInitialPlayerResponse JSON")
	}

	var pr playerResponse
	if err := json.Unmarshal(raw, &pr); err != nil {
		return nil, fmt.Errorf("decode ytInitialPlayerResponse: %w", err)
	}
	if pr.Captions == nil || len(pr.Captions.Renderer.CaptionTracks) == 0 {
		if pr.PlayabilityStatus != nil && pr.PlayabilityStatus.Reason != "" {
			return nil, fmt.Errorf("%w: %s", ErrNoCaptions, pr.PlayabilityStatus.Reason)
		}
		return nil, ErrNoCaptions
	}
	return pr.Captions.Renderer.CaptionTracks, nil
}

// findTrack returns the manual track in lang, else the auto-generated one.
func findTrack(tracks []captionTrack, lang string) (captionTrack, bool) {
	for _, t := range tracks {
		if t.LanguageCode == lang && t.manual() {
			return t, true
		}
	}
	for _, t := range tracks {
		if t.LanguageCode == lang {
			return t, true
		}
	}
	return captionTrack{}, false
}

func (c *Client) fetchTrack(ctx context.Context, videoID string, track captionTrack, translateTo string) (Transcript, error) {
	u, err := url.Parse(track.BaseURL)
	if err != nil {
		return Transcript{}, fmt.Errorf("caption url: %w", err)
	}
	if translateTo != "" {
		q := u.Query()
		q.Set("tlang", translateTo)
		u.RawQuery = q.Encode()
	}

	body, _, err := c.getBytes(ctx, u.String(), "", maxPageBytes)
	if err != nil {
		return Transcript{}, fmt.Errorf("fetch timedtext: %w", err)
	}
	fragments, err := parseTimedText(body)
	if err != nil {
		return Transcript{}, err
	}

	lang := track.LanguageCode
	if translateTo != "" {
		lang = translateTo
	}
	return Transcript{
		VideoID:    videoID,
		Language:   lang,
		Translated: translateTo != "",
		Fragments:  fragments,
	}, nil
}

func parseTimedText(body []byte) ([]Fragment, error) {
	var tt timedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return nil, fmt.Errorf("parse timedtext XML: %w", err)
	}

	fragments := make([]Fragment, 0, len(tt.Lines))
	for _, line := range tt.Lines {
		text := strings.Join(strings.Fields(html.UnescapeString(line.Text)), " ")
		if text == "" {
			continue
		}
		start, _ := strconv.ParseFloat(line.Start, 64)
		dur, _ := strconv.ParseFloat(line.Dur, 64)
		fragments = append(fragments, Fragment{Text: text, Start: start, Duration: dur})
	}
	return fragments, nil
}

// extractJSON returns the JSON object starting at b[0] by tracking brace
// depth outside string literals.
func extractJSON(b []byte) []byte {
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	depth := 0
	inStr, escaped := false, false
	for i, ch := range b {
		if inStr {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inStr = false
			}
			continue
		}
		switch ch {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return b[:i+1]
			}
		}
	}
	return nil
}
