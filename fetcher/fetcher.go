package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ghtrending/metrics"
	"ghtrending/models"
)

// SourceInterface defines the listing fetch needed by the fetcher
type SourceInterface interface {
	FetchTrending(ctx context.Context, language string, since models.TimeWindow) ([]byte, error)
}

// ExtractorInterface turns a fetched document into candidate records
type ExtractorInterface interface {
	ExtractBytes(doc []byte) ([]models.CandidateRecord, error)
}

// BatchSaver persists one extracted batch
type BatchSaver interface {
	SaveBatch(ctx context.Context, records []models.CandidateRecord) (int, error)
}

// Fetcher drives one fetch, extract and reconcile cycle. It never retries;
// retry policy belongs to whoever triggers the cycle.
type Fetcher struct {
	source    SourceInterface
	extractor ExtractorInterface
	saver     BatchSaver
	metrics   *metrics.Manager
	logger    *zap.Logger
}

type Option func(*Fetcher)

func WithMetrics(m *metrics.Manager) Option {
	return func(f *Fetcher) {
		f.metrics = m
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

func New(source SourceInterface, extractor ExtractorInterface, saver BatchSaver, opts ...Option) *Fetcher {
	f := &Fetcher{
		source:    source,
		extractor: extractor,
		saver:     saver,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchAndSave runs one cycle and returns the number of snapshots persisted.
// An empty listing is not an error and yields 0.
func (f *Fetcher) FetchAndSave(ctx context.Context, language string, since models.TimeWindow) (int, error) {
	window, err := models.ParseTimeWindow(string(since))
	if err != nil {
		return 0, err
	}

	start := time.Now()
	log := f.logger.With(
		zap.String("cycle_id", uuid.NewString()),
		zap.String("language", language),
		zap.String("since", string(window)))
	log.Info("Starting trending cycle")

	saved, err := f.run(ctx, log, language, window)
	if err != nil {
		f.metrics.CycleFinished(metrics.ResultFailure, time.Since(start))
		log.Error("Trending cycle failed",
			zap.Error(err),
			zap.Int("persisted_count", saved),
			zap.Duration("duration", time.Since(start)))
		return saved, err
	}

	f.metrics.CycleFinished(metrics.ResultSuccess, time.Since(start))
	log.Info("Trending cycle finished",
		zap.Int("persisted_count", saved),
		zap.Duration("duration", time.Since(start)))
	return saved, nil
}

func (f *Fetcher) run(ctx context.Context, log *zap.Logger, language string, since models.TimeWindow) (int, error) {
	doc, err := f.source.FetchTrending(ctx, language, since)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch trending listing: %w", err)
	}

	records, err := f.extractor.ExtractBytes(doc)
	if err != nil {
		return 0, fmt.Errorf("failed to extract trending listing: %w", err)
	}
	f.metrics.EntriesExtracted(len(records))
	if len(records) == 0 {
		log.Warn("Trending listing produced no records, the page layout may have changed")
		return 0, nil
	}

	saved, err := f.saver.SaveBatch(ctx, records)
	f.metrics.SnapshotsPersisted(saved)
	if err != nil {
		return saved, fmt.Errorf("failed to save trending batch: %w", err)
	}
	return saved, nil
}
