package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"ghtrending/models"
)

const (
	DefaultTrendingURL  = "https://github.com/trending"
	DefaultBaseURL      = "https://github.com"
	DefaultTimeout      = 30 * time.Second
	DefaultMaxRedirects = 5

	// maxDocumentSize bounds how much of the listing body is read.
	maxDocumentSize = 10 << 20
)

var (
	ErrFetchFailed        = errors.New("trending fetch failed")
	ErrUnexpectedStatus   = errors.New("unexpected status from trending source")
	ErrUnreadableDocument = errors.New("trending document unreadable")
)

// StatusError is returned when the listing responds with a non-2xx status.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %d from %s", ErrUnexpectedStatus, e.StatusCode, e.URL)
}

func (e *StatusError) Unwrap() error {
	return ErrUnexpectedStatus
}

// browserHeaders is sent on every listing request so it looks like a regular page view.
// Accept-Encoding is left to the transport, which then decompresses transparently.
var browserHeaders = map[string]string{
	"User-Agent":                "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.5",
	"Connection":                "keep-alive",
	"Upgrade-Insecure-Requests": "1",
}

// ClientConfig configures the listing client. An empty TrendingURL, a zero Timeout
// and a negative MaxRedirects fall back to the defaults above; MaxRedirects 0 disables redirects.
type ClientConfig struct {
	TrendingURL  string
	Timeout      time.Duration
	MaxRedirects int
}

// Client fetches the raw trending listing document.
type Client struct {
	httpClient  *http.Client
	trendingURL *url.URL
	logger      *zap.Logger
}

func NewClient(cfg ClientConfig, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	raw := cfg.TrendingURL
	if raw == "" {
		raw = DefaultTrendingURL
	}
	trendingURL, err := url.Parse(raw)
	if err != nil || trendingURL.Scheme == "" || trendingURL.Host == "" {
		return nil, fmt.Errorf("invalid trending url %q", raw)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxRedirects := cfg.MaxRedirects
	if maxRedirects < 0 {
		maxRedirects = DefaultMaxRedirects
	}

	logger.Info("Initializing trending client",
		zap.String("url", trendingURL.String()),
		zap.Duration("timeout", timeout),
		zap.Int("max_redirects", maxRedirects))

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) > maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		trendingURL: trendingURL,
		logger:      logger,
	}, nil
}

// FetchTrending performs one GET against the listing and returns the body.
// No retry is attempted here.
func (c *Client) FetchTrending(ctx context.Context, language string, since models.TimeWindow) ([]byte, error) {
	reqURL := *c.trendingURL
	q := reqURL.Query()
	if language != "" {
		q.Set("spoken_language_code", language)
	}
	if since != "" {
		q.Set("since", string(since))
	}
	reqURL.RawQuery = q.Encode()

	c.logger.Info("Fetching trending listing",
		zap.String("url", reqURL.String()),
		zap.String("language", language),
		zap.String("since", string(since)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Failed to fetch trending listing", zap.Error(err), zap.String("url", reqURL.String()))
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("Failed to fetch trending listing",
			zap.Int("status_code", resp.StatusCode),
			zap.String("url", reqURL.String()))
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: reqURL.String()}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableDocument, err)
	}

	c.logger.Debug("Fetched trending listing", zap.Int("bytes", len(body)))
	return body, nil
}
