package summarizer

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

const maxPageContext = 2000

// PageReader returns the readable text of a project page.
type PageReader interface {
	Read(ctx context.Context, pageURL string) (string, error)
}

type readabilityReader struct {
	client *http.Client
}

// NewPageReader extracts the main text of a page (for a repository, its README).
func NewPageReader(timeout time.Duration) PageReader {
	return &readabilityReader{client: &http.Client{Timeout: timeout}}
}

func (r *readabilityReader) Read(ctx context.Context, pageURL string) (string, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", pageURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating page request for %s: %w", pageURL, err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching %s returned status %d", pageURL, resp.StatusCode)
	}

	article, err := readability.FromReader(resp.Body, parsed)
	if err != nil {
		return "", fmt.Errorf("extracting content from %s: %w", pageURL, err)
	}

	return truncate(strings.Join(strings.Fields(article.TextContent), " "), maxPageContext), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
