package youtube

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrInvalidURL = errors.New("could not extract video ID from the provided URL")

var (
	videoIDRE      = regexp.MustCompile(`^[0-9A-Za-z_-]{11}$`)
	pathVideoIDRE  = regexp.MustCompile(`(?:v=|/)([0-9A-Za-z_-]{11})`)
	paramVideoIDRE = regexp.MustCompile(`[?&]v=([0-9A-Za-z_-]{11})`)
)

// ExtractVideoID returns the 11-character video ID from a watch, embed,
// youtu.be or shorts URL.
func ExtractVideoID(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", ErrInvalidURL
	}

	if strings.Contains(rawURL, "youtu.be") || strings.Contains(rawURL, "youtube.com/shorts") {
		parts := strings.Split(strings.TrimSuffix(rawURL, "/"), "/")
		id := strings.SplitN(parts[len(parts)-1], "?", 2)[0]
		if !videoIDRE.MatchString(id) {
			return "", fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
		}
		return id, nil
	}

	if m := pathVideoIDRE.FindStringSubmatch(rawURL); m != nil {
		return m[1], nil
	}
	if m := paramVideoIDRE.FindStringSubmatch(rawURL); m != nil {
		return m[1], nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
}

// ValidVideoID reports whether id has the shape of a video ID.
func ValidVideoID(id string) bool {
	return videoIDRE.MatchString(id)
}
