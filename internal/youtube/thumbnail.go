package youtube

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

var ErrThumbnailNotFound = errors.New("failed to download thumbnail: no valid thumbnail found")

// ThumbnailQualities lists thumbnail tiers from highest to lowest resolution.
var ThumbnailQualities = []string{"maxresdefault", "sddefault", "hqdefault", "mqdefault", "default"}

// Thumbnail is a downloaded thumbnail image.
type Thumbnail struct {
	VideoID     string
	Quality     string
	URL         string
	ContentType string
	Data        []byte
}

// Thumbnail downloads the best available thumbnail, walking ThumbnailQualities
// until a tier answers 200 with an image content type.
func (c *Client) Thumbnail(ctx context.Context, videoID string) (Thumbnail, error) {
	for _, quality := range ThumbnailQualities {
		thumbURL := c.ThumbnailURL(videoID, quality)
		data, contentType, err := c.getBytes(ctx, thumbURL, "image/*", maxImageBytes)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Thumbnail{}, ctxErr
			}
			slog.Debug("thumbnail tier unavailable", slog.String("component", "youtube"),
				slog.String("video_id", videoID), slog.String("quality", quality), slog.Any("err", err))
			continue
		}
		if !strings.HasPrefix(contentType, "image") || len(data) == 0 {
			slog.Debug("thumbnail tier is not an image", slog.String("component", "youtube"),
				slog.String("video_id", videoID), slog.String("quality", quality),
				slog.String("content_type", contentType))
			continue
		}
		return Thumbnail{
			VideoID:     videoID,
			Quality:     quality,
			URL:         thumbURL,
			ContentType: contentType,
			Data:        data,
		}, nil
	}
	return Thumbnail{}, fmt.Errorf("%w: %s", ErrThumbnailNotFound, videoID)
}
