package youtube

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"
)

const (
	defaultWatchURL  = "https://www.youtube.com/watch"
	defaultImageURL  = "https://img.youtube.com/vi"
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36"

	maxPageBytes  = 6 << 20
	maxImageBytes = 10 << 20
)

// Config configures a Client. Zero values pick production defaults.
type Config struct {
	HTTPClient        *http.Client
	WatchURL          string
	ImageURL          string
	UserAgent         string
	RequestsPerSecond float64
	Burst             int
	MaxTries          uint
	RetryInterval     time.Duration
}

// Client talks to the video host: watch pages, caption tracks and thumbnail
// images. All requests share one rate limiter.
type Client struct {
	http          *http.Client
	limiter       *rate.Limiter
	watchURL      string
	imageURL      string
	userAgent     string
	maxTries      uint
	retryInterval time.Duration
}

func New(cfg Config) *Client {
	c := &Client{
		http:          cfg.HTTPClient,
		watchURL:      cfg.WatchURL,
		imageURL:      cfg.ImageURL,
		userAgent:     cfg.UserAgent,
		maxTries:      cfg.MaxTries,
		retryInterval: cfg.RetryInterval,
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 15 * time.Second}
	}
	if c.watchURL == "" {
		c.watchURL = defaultWatchURL
	}
	if c.imageURL == "" {
		c.imageURL = defaultImageURL
	}
	if c.userAgent == "" {
		c.userAgent = defaultUserAgent
	}
	if c.maxTries == 0 {
		c.maxTries = 3
	}
	if c.retryInterval <= 0 {
		c.retryInterval = 500 * time.Millisecond
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(limit, burst)
	return c
}

// StatusError is returned for a non-200 response that is not worth retrying.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d", e.URL, e.Code)
}

// get issues a GET with retries on transport errors, 429 and 5xx. The caller
// owns the body of a successful response.
func (c *Client) get(ctx context.Context, url, accept string) (*http.Response, error) {
	operation := func() (*http.Response, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
		if accept != "" {
			req.Header.Set("Accept", accept)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}

		if isRetryableStatus(resp.StatusCode) {
			resp.Body.Close()
			slog.Debug("retryable status", slog.String("component", "youtube"),
				slog.String("url", url), slog.Int("status", resp.StatusCode))
			return nil, &StatusError{URL: url, Code: resp.StatusCode}
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, backoff.Permanent(&StatusError{URL: url, Code: resp.StatusCode})
		}
		return resp, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryInterval
	bo.MaxInterval = 10 * time.Second

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(c.maxTries),
		backoff.WithMaxElapsedTime(30*time.Second),
	)
}

func (c *Client) getBytes(ctx context.Context, url, accept string, limit int64) ([]byte, string, error) {
	resp, err := c.get(ctx, url, accept)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", url, err)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

func (c *Client) watchPage(ctx context.Context, videoID string) ([]byte, error) {
	body, _, err := c.getBytes(ctx, c.watchURL+"?v="+videoID,
		"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8", maxPageBytes)
	if err != nil {
		return nil, fmt.Errorf("watch page: %w", err)
	}
	return body, nil
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
