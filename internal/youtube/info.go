package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// VideoInfo is the metadata shown next to a summary.
type VideoInfo struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Channel   string `json:"channel"`
	Thumbnail string `json:"thumbnail"`
	Duration  int    `json:"duration"`
	ViewCount int64  `json:"view_count"`
}

const unknownChannel = "Unknown Channel"

var isoDurationRE = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// ThumbnailURL is the image URL for videoID at the given quality tier.
func (c *Client) ThumbnailURL(videoID, quality string) string {
	return fmt.Sprintf("%s/%s/%s.jpg", c.imageURL, videoID, quality)
}

// PlaceholderInfo is returned when metadata cannot be scraped.
func (c *Client) PlaceholderInfo(videoID string) VideoInfo {
	return VideoInfo{
		ID:        videoID,
		Title:     fmt.Sprintf("YouTube Video (ID: %s)", videoID),
		Channel:   unknownChannel,
		Thumbnail: c.ThumbnailURL(videoID, "maxresdefault"),
	}
}

// VideoInfo scrapes title, channel, duration and view count from the watch
// page. Microdata tags are read first and the embedded player response fills
// whatever they lack.
func (c *Client) VideoInfo(ctx context.Context, videoID string) (VideoInfo, error) {
	page, err := c.watchPage(ctx, videoID)
	if err != nil {
		return VideoInfo{}, err
	}
	return c.parseVideoInfo(videoID, page)
}

// VideoInfoOrDefault never fails: scraping errors are logged and yield
// PlaceholderInfo.
func (c *Client) VideoInfoOrDefault(ctx context.Context, videoID string) VideoInfo {
	info, err := c.VideoInfo(ctx, videoID)
	if err != nil {
		slog.Warn("video info unavailable, using placeholder", slog.String("component", "youtube"),
			slog.String("video_id", videoID), slog.Any("err", err))
		return c.PlaceholderInfo(videoID)
	}
	return info
}

type videoDetails struct {
	VideoDetails *struct {
		Title         string `json:"title"`
		Author        string `json:"author"`
		LengthSeconds string `json:"lengthSeconds"`
		ViewCount     string `json:"viewCount"`
	} `json:"videoDetails"`
}

func (c *Client) parseVideoInfo(videoID string, page []byte) (VideoInfo, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return VideoInfo{}, fmt.Errorf("parse watch page: %w", err)
	}

	info := VideoInfo{
		ID:        videoID,
		Thumbnail: c.ThumbnailURL(videoID, "maxresdefault"),
	}

	info.Title = strings.TrimSpace(doc.Find(`meta[property="og:title"]`).AttrOr("content", ""))
	if info.Title == "" {
		info.Title = strings.TrimSpace(doc.Find(`meta[name="title"]`).AttrOr("content", ""))
	}
	if info.Title == "" {
		info.Title = strings.TrimSpace(strings.TrimSuffix(doc.Find("title").First().Text(), " - YouTube"))
	}
	info.Channel = strings.TrimSpace(doc.Find(`[itemprop="author"] [itemprop="name"]`).AttrOr("content", ""))
	info.Duration = parseISODuration(doc.Find(`meta[itemprop="duration"]`).AttrOr("content", ""))
	info.ViewCount, _ = strconv.ParseInt(doc.Find(`meta[itemprop="interactionCount"]`).AttrOr("content", ""), 10, 64)

	if idx := bytes.Index(page, []byte(playerResponseMarker)); idx >= 0 {
		if raw := extractJSON(page[idx+len(playerResponseMarker):]); raw != nil {
			var vd videoDetails
			if json.Unmarshal(raw, &vd) == nil && vd.VideoDetails != nil {
				d := vd.VideoDetails
				if info.Title == "" {
					info.Title = d.Title
				}
				if info.Channel == "" {
					info.Channel = d.Author
				}
				if info.Duration == 0 {
					info.Duration, _ = strconv.Atoi(d.LengthSeconds)
				}
				if info.ViewCount == 0 {
					info.ViewCount, _ = strconv.ParseInt(d.ViewCount, 10, 64)
				}
			}
		}
	}

	if info.Title == "" {
		return VideoInfo{}, fmt.Errorf("no title found for video %s", videoID)
	}
	if info.Channel == "" {
		info.Channel = unknownChannel
	}
	return info, nil
}

// parseISODuration converts "PT1H2M3S" to seconds. Unparseable input is 0.
func parseISODuration(s string) int {
	m := isoDurationRE.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0
	}
	total := 0
	for i, mult := range []int{86400, 3600, 60, 1} {
		if m[i+1] == "" {
			continue
		}
		n, _ := strconv.Atoi(m[i+1])
		total += n * mult
	}
	return total
}
