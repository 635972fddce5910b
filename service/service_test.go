package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ghtrending/config"
	"ghtrending/models"
)

// MockFetcher is a mock implementation of FetcherInterface
type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) FetchAndSave(ctx context.Context, language string, since models.TimeWindow) (int, error) {
	args := m.Called(ctx, language, since)
	return args.Int(0), args.Error(1)
}

// MockSummarizer is a mock implementation of SummarizerInterface
type MockSummarizer struct {
	mock.Mock
}

func (m *MockSummarizer) SummarizePending(ctx context.Context, limit int) (int, error) {
	args := m.Called(ctx, limit)
	return args.Int(0), args.Error(1)
}

func newTestService(f FetcherInterface, s SummarizerInterface, cfg *config.Config) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		config:     cfg,
		fetcher:    f,
		summarizer: s,
		logger:     zap.NewNop(),
		ctx:        ctx,
		cancel:     cancel,
	}
}

func TestRunOnce(t *testing.T) {
	errUpstream := errors.New("upstream 503")

	testCases := []struct {
		name          string
		apiKey        string
		setupMocks    func(*MockFetcher, *MockSummarizer)
		expectedCount int
		expectedError error
	}{
		{
			name:   "cycle then enrichment",
			apiKey: "key",
			setupMocks: func(f *MockFetcher, s *MockSummarizer) {
				f.On("FetchAndSave", mock.Anything, "en", models.Weekly).Return(25, nil)
				s.On("SummarizePending", mock.Anything, 5).Return(5, nil)
			},
			expectedCount: 25,
		},
		{
			name:   "enrichment disabled without key",
			apiKey: "",
			setupMocks: func(f *MockFetcher, s *MockSummarizer) {
				f.On("FetchAndSave", mock.Anything, "en", models.Weekly).Return(25, nil)
			},
			expectedCount: 25,
		},
		{
			name:   "enrichment failure does not fail the cycle",
			apiKey: "key",
			setupMocks: func(f *MockFetcher, s *MockSummarizer) {
				f.On("FetchAndSave", mock.Anything, "en", models.Weekly).Return(25, nil)
				s.On("SummarizePending", mock.Anything, 5).Return(0, errors.New("db down"))
			},
			expectedCount: 25,
		},
		{
			name:   "cycle failure is returned",
			apiKey: "key",
			setupMocks: func(f *MockFetcher, s *MockSummarizer) {
				f.On("FetchAndSave", mock.Anything, "en", models.Weekly).Return(0, errUpstream)
				s.On("SummarizePending", mock.Anything, 5).Return(0, nil)
			},
			expectedError: errUpstream,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := &MockFetcher{}
			s := &MockSummarizer{}
			tc.setupMocks(f, s)

			cfg := &config.Config{
				TrendingLanguage:  "en",
				TrendingSince:     models.Weekly,
				OpenAIAPIKey:      tc.apiKey,
				SummaryBatchLimit: 5,
			}
			svc := newTestService(f, s, cfg)

			count, err := svc.RunOnce(context.Background())
			if tc.expectedError != nil {
				assert.ErrorIs(t, err, tc.expectedError)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tc.expectedCount, count)

			f.AssertExpectations(t)
			s.AssertExpectations(t)
		})
	}
}

func TestRunCycleRejectsOverlap(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	f := &MockFetcher{}
	f.On("FetchAndSave", mock.Anything, "", models.Daily).
		Run(func(args mock.Arguments) {
			close(started)
			<-release
		}).
		Return(3, nil).Once()

	svc := newTestService(f, nil, &config.Config{})

	var wg sync.WaitGroup
	wg.Add(1)
	var firstCount int
	var firstErr error
	go func() {
		defer wg.Done()
		firstCount, firstErr = svc.RunCycle(context.Background(), "", models.Daily)
	}()

	<-started
	count, err := svc.RunCycle(context.Background(), "", models.Daily)
	assert.ErrorIs(t, err, models.ErrCycleInProgress)
	assert.Zero(t, count)

	close(release)
	wg.Wait()
	require.NoError(t, firstErr)
	assert.Equal(t, 3, firstCount)

	f.On("FetchAndSave", mock.Anything, "", models.Daily).Return(4, nil).Once()
	count, err = svc.RunCycle(context.Background(), "", models.Daily)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestScheduledJobStopsAfterCancel(t *testing.T) {
	f := &MockFetcher{}
	svc := newTestService(f, nil, &config.Config{})
	svc.cancel()

	svc.runScheduledJob()
	f.AssertNotCalled(t, "FetchAndSave", mock.Anything, mock.Anything, mock.Anything)
}

func TestServiceEndToEnd(t *testing.T) {
	fixture, err := os.ReadFile("../github/testdata/trending.html")
	require.NoError(t, err)

	source := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(fixture)
	}))
	defer source.Close()

	cfg := &config.Config{
		Database:        config.Database{URL: "sqlite://" + filepath.Join(t.TempDir(), "trending.db")},
		TrendingURL:     source.URL,
		TrendingBaseURL: "https://github.com",
		TrendingSince:   models.Daily,
		FetchTimeout:    5 * time.Second,
		MaxRedirects:    5,
		Schedule:        "0 10 * * *",
		Timezone:        "UTC",
		HTTPAddr:        "127.0.0.1:0",
	}

	svc, err := NewService(cfg, zap.NewNop())
	require.NoError(t, err)
	defer func() { assert.NoError(t, svc.Close()) }()

	count, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	entries, err := svc.database.ListTrending(context.Background(), models.TrendingQuery{Limit: 10})
	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.True(t, entries[0].Date.After(entries[3].Date) || entries[0].Date.Equal(entries[3].Date))
	assert.Equal(t, "golang/go", entries[0].Project.FullName)
	assert.Equal(t, 1, *entries[0].Rank)

	project, err := svc.database.GetProjectByFullName(context.Background(), "golang/go")
	require.NoError(t, err)
	history, err := svc.database.ListProjectHistory(context.Background(), project.ID, 10)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	rec := httptest.NewRecorder()
	svc.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/trending?language=GO", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"full_name":"golang/go"`)
	assert.NotContains(t, rec.Body.String(), "someone/dotfiles")
}

func TestNewServiceInitErrors(t *testing.T) {
	_, err := NewService(&config.Config{Database: config.Database{URL: "mysql://nope"}}, nil)
	assert.ErrorIs(t, err, ErrServiceInit)

	_, err = NewService(&config.Config{
		Database: config.Database{URL: "sqlite://" + filepath.Join(t.TempDir(), "x.db")},
		Timezone: "Nowhere/Special",
	}, nil)
	assert.ErrorIs(t, err, ErrServiceInit)
}
