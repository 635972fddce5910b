// Package summarizer attaches best-effort generated text to stored projects.
// It runs outside the scrape cycle and never reports generation failures to it.
package summarizer

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ghtrending/metrics"
	"ghtrending/models"
)

const (
	defaultConcurrency = 2
	defaultTimeout     = 2 * time.Minute
)

const systemMessage = `You are a technical analyst specializing in evaluating open-source GitHub projects.
Provide clear, concise, and informative summaries that help developers quickly understand a project's value and purpose.`

// ProjectInfo is what the generator is told about a project.
type ProjectInfo struct {
	Name        string
	Description string
	Language    *string
	Stars       *int
	URL         string
}

// InfoFromProject builds the generator input for a stored project.
func InfoFromProject(p models.Project) ProjectInfo {
	return ProjectInfo{
		Name:        p.Name,
		Description: p.Description,
		Language:    p.Language,
		Stars:       models.IntPtr(p.Stars),
		URL:         p.URL,
	}
}

// Store defines the storage operations needed for batch summaries
type Store interface {
	ListProjectsWithoutSummary(ctx context.Context, limit int) ([]models.Project, error)
	SaveSummary(ctx context.Context, summary *models.Summary) error
}

type Summarizer struct {
	completer   Completer
	pages       PageReader
	store       Store
	metrics     *metrics.Manager
	logger      *zap.Logger
	concurrency int
	timeout     time.Duration
	now         func() time.Time
}

type Option func(*Summarizer)

func WithStore(store Store) Option {
	return func(s *Summarizer) { s.store = store }
}

// WithPageReader adds the readable text of the project page to the prompt.
func WithPageReader(pages PageReader) Option {
	return func(s *Summarizer) { s.pages = pages }
}

func WithMetrics(m *metrics.Manager) Option {
	return func(s *Summarizer) { s.metrics = m }
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Summarizer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithConcurrency(n int) Option {
	return func(s *Summarizer) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithTimeout bounds a single Generate call.
func WithTimeout(d time.Duration) Option {
	return func(s *Summarizer) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New returns a Summarizer. A nil completer yields a summarizer that always
// produces empty text.
func New(completer Completer, opts ...Option) *Summarizer {
	s := &Summarizer{
		completer:   completer,
		logger:      zap.NewNop(),
		concurrency: defaultConcurrency,
		timeout:     defaultTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate returns generated text for the project, or "" on any failure.
func (s *Summarizer) Generate(ctx context.Context, info ProjectInfo) string {
	if s == nil || s.completer == nil {
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var pageText string
	if s.pages != nil && info.URL != "" {
		text, err := s.pages.Read(ctx, info.URL)
		if err != nil {
			s.logger.Debug("Project page unavailable for summary", zap.String("url", info.URL), zap.Error(err))
		} else {
			pageText = text
		}
	}

	text, err := s.completer.Complete(ctx, systemMessage, buildPrompt(info, pageText))
	if err != nil {
		s.logger.Warn("Summary generation failed", zap.String("name", info.Name), zap.Error(err))
		s.metrics.SummaryGenerated(false)
		return ""
	}

	s.metrics.SummaryGenerated(true)
	return text
}

// SummarizePending generates and stores summaries for up to limit projects that
// have none. Per-project failures are logged and skipped; only a failure to list
// candidates is returned.
func (s *Summarizer) SummarizePending(ctx context.Context, limit int) (int, error) {
	if s.store == nil || s.completer == nil || limit <= 0 {
		return 0, nil
	}

	projects, err := s.store.ListProjectsWithoutSummary(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list projects without summary: %w", err)
	}
	s.logger.Info("Generating summaries", zap.Int("projects", len(projects)))

	var saved atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, p := range projects {
		p := p
		g.Go(func() error {
			text := s.Generate(gctx, InfoFromProject(p))
			if text == "" {
				return nil
			}

			now := s.now().UTC()
			summary := &models.Summary{
				ProjectID:   p.ID,
				SummaryText: text,
				Analysis:    text,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := s.store.SaveSummary(gctx, summary); err != nil {
				s.logger.Error("Failed to save summary", zap.String("full_name", p.FullName), zap.Error(err))
				return nil
			}
			saved.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Info("Summaries generated", zap.Int64("saved", saved.Load()), zap.Int("candidates", len(projects)))
	return int(saved.Load()), nil
}

func buildPrompt(info ProjectInfo, pageText string) string {
	orDefault := func(s, def string) string {
		if strings.TrimSpace(s) == "" {
			return def
		}
		return s
	}

	language := "Unknown"
	if info.Language != nil {
		language = orDefault(*info.Language, language)
	}
	stars := "0"
	if info.Stars != nil {
		stars = strconv.Itoa(*info.Stars)
	}

	var sb strings.Builder
	sb.WriteString("Analyze this GitHub project and provide a comprehensive summary:\n\n")
	fmt.Fprintf(&sb, "Project Name: %s\n", orDefault(info.Name, "Unknown"))
	fmt.Fprintf(&sb, "Description: %s\n", orDefault(info.Description, "No description"))
	fmt.Fprintf(&sb, "Programming Language: %s\n", language)
	fmt.Fprintf(&sb, "Stars: %s\n", stars)
	fmt.Fprintf(&sb, "URL: %s\n", info.URL)
	if pageText != "" {
		fmt.Fprintf(&sb, "\nREADME excerpt:\n%s\n", pageText)
	}
	sb.WriteString(`
Please provide:
1. What this project does (2-3 sentences)
2. Usefulness rating (1-10 with brief justification)
3. Key technologies and frameworks used
4. Target audience and use cases
5. Notable features or advantages

Format your response as a structured analysis.`)
	return sb.String()
}
