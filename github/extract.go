package github

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/andybalholm/cascadia"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"ghtrending/models"
)

var (
	entrySelector       = cascadia.MustCompile("article.Box-row")
	linkSelector        = cascadia.MustCompile("h2 a")
	descriptionSelector = cascadia.MustCompile("p")
	languageSelector    = cascadia.MustCompile(`[itemprop="programmingLanguage"]`)
	starsSelector       = cascadia.MustCompile(`a[href*="/stargazers"]`)
)

// Skip reasons reported for dropped entries.
const (
	SkipMissingLink   = "missing_link"
	SkipMalformedPath = "malformed_path"
)

// SkipRecorder is notified about every dropped entry.
type SkipRecorder interface {
	EntrySkipped(reason string)
}

// Extractor turns a listing document into candidate records.
type Extractor struct {
	baseURL string
	logger  *zap.Logger
	skips   SkipRecorder
}

type ExtractorOption func(*Extractor)

// WithBaseURL sets the prefix used to build canonical project urls.
func WithBaseURL(baseURL string) ExtractorOption {
	return func(e *Extractor) {
		if baseURL != "" {
			e.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

func WithLogger(logger *zap.Logger) ExtractorOption {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithSkipRecorder(r SkipRecorder) ExtractorOption {
	return func(e *Extractor) {
		e.skips = r
	}
}

func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		baseURL: DefaultBaseURL,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExtractBytes is a convenience wrapper around Extract.
func (e *Extractor) ExtractBytes(doc []byte) ([]models.CandidateRecord, error) {
	return e.Extract(bytes.NewReader(doc))
}

// Extract walks the listing entries in document order. Entries without a usable
// owner/name link are dropped and do not consume a rank, so ranks run 1..N over
// the records returned. Only an unreadable document is an error; a document with
// no entries yields an empty slice.
func (e *Extractor) Extract(r io.Reader) ([]models.CandidateRecord, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableDocument, err)
	}

	entries := entrySelector.MatchAll(root)
	records := make([]models.CandidateRecord, 0, len(entries))
	for i, entry := range entries {
		record, reason := e.extractEntry(entry)
		if reason != "" {
			e.logger.Warn("Skipping trending entry",
				zap.Int("entry_index", i),
				zap.String("reason", reason))
			if e.skips != nil {
				e.skips.EntrySkipped(reason)
			}
			continue
		}
		record.Rank = len(records) + 1
		records = append(records, record)
	}

	if len(entries) == 0 {
		e.logger.Warn("No trending entries found in document")
	}
	e.logger.Debug("Extracted trending entries",
		zap.Int("entries", len(entries)),
		zap.Int("records", len(records)))
	return records, nil
}

func (e *Extractor) extractEntry(entry *html.Node) (models.CandidateRecord, string) {
	link := linkSelector.MatchFirst(entry)
	if link == nil {
		return models.CandidateRecord{}, SkipMissingLink
	}
	href, ok := attr(link, "href")
	if !ok || strings.TrimSpace(href) == "" {
		return models.CandidateRecord{}, SkipMissingLink
	}

	owner, name, ok := splitRepoPath(href)
	if !ok {
		return models.CandidateRecord{}, SkipMalformedPath
	}
	fullName := owner + "/" + name

	record := models.CandidateRecord{
		Name:     name,
		FullName: fullName,
		Owner:    owner,
		URL:      e.baseURL + "/" + fullName,
	}

	if p := descriptionSelector.MatchFirst(entry); p != nil {
		record.Description = normalizeSpace(text(p))
	}
	if lang := languageSelector.MatchFirst(entry); lang != nil {
		record.Language = models.StringPtr(normalizeSpace(text(lang)))
	}
	if stars := starsSelector.MatchFirst(entry); stars != nil {
		record.Stars = ParseStars(text(stars))
	}

	return record, ""
}

// ParseStars reads a star count such as "1,234". Anything unparseable or negative is 0.
func ParseStars(s string) int {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// splitRepoPath accepts "/owner/name" (or an absolute url to it) and nothing else.
func splitRepoPath(href string) (owner, name string, ok bool) {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", "", false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func text(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
