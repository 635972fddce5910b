package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"ghtrending/api"
	"ghtrending/config"
	"ghtrending/db"
	"ghtrending/fetcher"
	"ghtrending/github"
	"ghtrending/logger"
	"ghtrending/metrics"
	"ghtrending/models"
	"ghtrending/scheduler"
	"ghtrending/summarizer"
)

// FetcherInterface abstracts one scrape cycle
// (for testability)
type FetcherInterface interface {
	FetchAndSave(ctx context.Context, language string, since models.TimeWindow) (int, error)
}

// SummarizerInterface abstracts the enrichment pass
// (for testability)
type SummarizerInterface interface {
	SummarizePending(ctx context.Context, limit int) (int, error)
}

// Service errors
var (
	ErrServiceInit     = errors.New("service initialization error")
	ErrServiceShutdown = errors.New("service shutdown error")
)

const shutdownTimeout = 30 * time.Second

// Service represents the main application service
type Service struct {
	config     *config.Config
	database   *db.DB
	fetcher    FetcherInterface
	summarizer SummarizerInterface
	scheduler  *scheduler.Scheduler
	server     *http.Server
	metrics    *metrics.Manager
	logger     *zap.Logger

	// cycleMu serialises scrape cycles from the timer and the HTTP trigger
	cycleMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
}

// NewService opens storage, applies migrations and wires every component.
// The returned service owns the storage handle until Close.
func NewService(cfg *config.Config, log *zap.Logger) (*Service, error) {
	if log == nil {
		log = logger.L()
	}

	ctx, cancel := context.WithCancel(context.Background())

	database, err := db.New(ctx, db.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger.Named(log, "db"))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: failed to initialize database: %v", ErrServiceInit, err)
	}
	if err := database.Migrate(); err != nil {
		cancel()
		database.Close()
		return nil, fmt.Errorf("%w: failed to migrate database: %v", ErrServiceInit, err)
	}

	m := metrics.NewManager()

	client, err := github.NewClient(github.ClientConfig{
		TrendingURL:  cfg.TrendingURL,
		Timeout:      cfg.FetchTimeout,
		MaxRedirects: cfg.MaxRedirects,
	}, logger.Named(log, "trending_client"))
	if err != nil {
		cancel()
		database.Close()
		return nil, fmt.Errorf("%w: %v", ErrServiceInit, err)
	}

	extractor := github.NewExtractor(
		github.WithBaseURL(cfg.TrendingBaseURL),
		github.WithLogger(logger.Named(log, "extractor")),
		github.WithSkipRecorder(m),
	)
	reconciler := fetcher.NewReconciler(database, logger.Named(log, "reconciler"))
	f := fetcher.New(client, extractor, reconciler,
		fetcher.WithMetrics(m),
		fetcher.WithLogger(logger.Named(log, "fetcher")))

	var completer summarizer.Completer
	if cfg.SummariesEnabled() {
		oc, err := summarizer.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL, nil)
		if err != nil {
			cancel()
			database.Close()
			return nil, fmt.Errorf("%w: %v", ErrServiceInit, err)
		}
		completer = oc
	}
	sum := summarizer.New(completer,
		summarizer.WithStore(database),
		summarizer.WithPageReader(summarizer.NewPageReader(cfg.FetchTimeout)),
		summarizer.WithMetrics(m),
		summarizer.WithTimeout(cfg.SummaryTimeout),
		summarizer.WithLogger(logger.Named(log, "summarizer")))

	sched, err := scheduler.New(cfg.Timezone, logger.Named(log, "scheduler"))
	if err != nil {
		cancel()
		database.Close()
		return nil, fmt.Errorf("%w: %v", ErrServiceInit, err)
	}

	s := &Service{
		config:     cfg,
		database:   database,
		fetcher:    f,
		summarizer: sum,
		scheduler:  sched,
		metrics:    m,
		logger:     log,
		ctx:        ctx,
		cancel:     cancel,
	}
	s.server = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(database, s, m, logger.Named(log, "api")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("Service initialized successfully",
		zap.String("driver", database.Driver()),
		zap.String("schedule", cfg.Schedule),
		zap.String("timezone", cfg.Timezone),
		zap.String("http_addr", cfg.HTTPAddr),
		zap.Bool("summaries_enabled", cfg.SummariesEnabled()))

	return s, nil
}

// RunCycle runs one scrape cycle unless another one is in flight, in which case
// it returns models.ErrCycleInProgress without waiting.
func (s *Service) RunCycle(ctx context.Context, language string, since models.TimeWindow) (int, error) {
	if !s.cycleMu.TryLock() {
		s.metrics.CycleFinished(metrics.ResultSkipped, 0)
		s.logger.Warn("Scrape cycle requested while another is running")
		return 0, models.ErrCycleInProgress
	}
	defer s.cycleMu.Unlock()

	return s.fetcher.FetchAndSave(ctx, language, since)
}

// RunOnce runs the scheduled job a single time: one cycle, then enrichment.
func (s *Service) RunOnce(ctx context.Context) (int, error) {
	count, err := s.RunCycle(ctx, s.config.TrendingLanguage, s.config.TrendingSince)
	s.enrich(ctx)
	return count, err
}

// runScheduledJob is the cron task; failures are logged and retried on the next tick.
func (s *Service) runScheduledJob() {
	if s.ctx.Err() != nil {
		return
	}
	if _, err := s.RunOnce(s.ctx); err != nil {
		s.logger.Error("Scheduled cycle failed", zap.Error(err))
	}
}

// enrich never affects the outcome of a cycle.
func (s *Service) enrich(ctx context.Context) {
	if s.summarizer == nil || !s.config.SummariesEnabled() {
		return
	}
	n, err := s.summarizer.SummarizePending(ctx, s.config.SummaryBatchLimit)
	if err != nil {
		s.logger.Warn("Summary enrichment failed", zap.Error(err))
		return
	}
	s.logger.Info("Summary enrichment finished", zap.Int("saved", n))
}

// Start schedules the job, serves HTTP and blocks until a shutdown signal.
func (s *Service) Start() error {
	if err := s.scheduler.Schedule(s.config.Schedule, s.runScheduledJob); err != nil {
		return fmt.Errorf("%w: %v", ErrServiceInit, err)
	}
	if s.config.RunOnStart {
		go s.runScheduledJob()
	}
	s.scheduler.Start()

	serverErr := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", s.server.Addr))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	return s.waitForShutdown(serverErr)
}

// waitForShutdown waits for the shutdown signal
func (s *Service) waitForShutdown(serverErr <-chan error) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-sigChan:
		s.logger.Info("Shutdown signal received, initiating graceful shutdown")
		s.cancel()
		return nil
	case err := <-serverErr:
		s.cancel()
		return fmt.Errorf("http server: %w", err)
	case <-s.ctx.Done():
		return nil
	}
}

// Close stops the scheduler and HTTP server, waits for a running job, then closes storage.
func (s *Service) Close() error {
	s.logger.Info("Closing service")
	s.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if s.scheduler != nil {
		select {
		case <-s.scheduler.Stop().Done():
		case <-ctx.Done():
			errs = append(errs, errors.New("timed out waiting for running job"))
		}
	}
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop http server: %w", err))
		}
	}
	if s.database != nil {
		if err := s.database.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %v", ErrServiceShutdown, errors.Join(errs...))
	}
	return nil
}
