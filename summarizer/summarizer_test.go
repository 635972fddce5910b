package summarizer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ghtrending/models"
)

// fakeCompleter answers from a function and tracks peak concurrency.
type fakeCompleter struct {
	fn      func(prompt string) (string, error)
	delay   time.Duration
	active  atomic.Int32
	peak    atomic.Int32
	mu      sync.Mutex
	prompts []string
}

func (f *fakeCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.fn(prompt)
}

type pageFunc func(ctx context.Context, url string) (string, error)

func (p pageFunc) Read(ctx context.Context, url string) (string, error) { return p(ctx, url) }

// MockStore is a mock implementation of the summary Store
type MockStore struct {
	mock.Mock
}

func (m *MockStore) ListProjectsWithoutSummary(ctx context.Context, limit int) ([]models.Project, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Project), args.Error(1)
}

func (m *MockStore) SaveSummary(ctx context.Context, summary *models.Summary) error {
	args := m.Called(ctx, summary)
	return args.Error(0)
}

func TestGenerate(t *testing.T) {
	t.Run("successful generation", func(t *testing.T) {
		completer := &fakeCompleter{fn: func(string) (string, error) { return "useful tool", nil }}
		s := New(completer)

		text := s.Generate(context.Background(), ProjectInfo{
			Name:        "go",
			Description: "The Go programming language",
			Language:    models.StringPtr("Go"),
			Stars:       models.IntPtr(125310),
			URL:         "https://github.com/golang/go",
		})
		assert.Equal(t, "useful tool", text)

		require.Len(t, completer.prompts, 1)
		prompt := completer.prompts[0]
		assert.Contains(t, prompt, "Project Name: go")
		assert.Contains(t, prompt, "Programming Language: Go")
		assert.Contains(t, prompt, "Stars: 125310")
		assert.NotContains(t, prompt, "README excerpt")
	})

	t.Run("optional fields absent", func(t *testing.T) {
		completer := &fakeCompleter{fn: func(string) (string, error) { return "ok", nil }}
		New(completer).Generate(context.Background(), ProjectInfo{Name: "x"})

		require.Len(t, completer.prompts, 1)
		assert.Contains(t, completer.prompts[0], "Description: No description")
		assert.Contains(t, completer.prompts[0], "Programming Language: Unknown")
		assert.Contains(t, completer.prompts[0], "Stars: 0")
	})

	t.Run("failure yields empty text", func(t *testing.T) {
		completer := &fakeCompleter{fn: func(string) (string, error) { return "", errors.New("quota exceeded") }}
		assert.Equal(t, "", New(completer).Generate(context.Background(), ProjectInfo{Name: "x"}))
	})

	t.Run("no completer", func(t *testing.T) {
		assert.Equal(t, "", New(nil).Generate(context.Background(), ProjectInfo{Name: "x"}))

		var s *Summarizer
		assert.Equal(t, "", s.Generate(context.Background(), ProjectInfo{Name: "x"}))
	})

	t.Run("page text is included when available", func(t *testing.T) {
		completer := &fakeCompleter{fn: func(string) (string, error) { return "ok", nil }}
		pages := pageFunc(func(ctx context.Context, url string) (string, error) {
			if url == "https://github.com/a/b" {
				return "Install with go get", nil
			}
			return "", errors.New("not found")
		})
		s := New(completer, WithPageReader(pages))

		s.Generate(context.Background(), ProjectInfo{Name: "b", URL: "https://github.com/a/b"})
		s.Generate(context.Background(), ProjectInfo{Name: "d", URL: "https://github.com/c/d"})

		require.Len(t, completer.prompts, 2)
		assert.Contains(t, completer.prompts[0], "README excerpt:\nInstall with go get")
		assert.NotContains(t, completer.prompts[1], "README excerpt")
	})

	t.Run("timeout bounds the call", func(t *testing.T) {
		completer := &blockingCompleter{}
		start := time.Now()
		text := New(completer, WithTimeout(20*time.Millisecond)).Generate(context.Background(), ProjectInfo{Name: "x"})
		assert.Equal(t, "", text)
		assert.Less(t, time.Since(start), time.Second)
	})
}

type blockingCompleter struct{}

func (blockingCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestSummarizePending(t *testing.T) {
	projects := []models.Project{
		{ID: 1, Name: "one", FullName: "a/one"},
		{ID: 2, Name: "two", FullName: "a/two"},
		{ID: 3, Name: "three", FullName: "a/three"},
		{ID: 4, Name: "four", FullName: "a/four"},
		{ID: 5, Name: "five", FullName: "a/five"},
	}

	completer := &fakeCompleter{
		delay: 20 * time.Millisecond,
		fn: func(prompt string) (string, error) {
			if strings.Contains(prompt, "Project Name: three") {
				return "", errors.New("model overloaded")
			}
			return "summary", nil
		},
	}

	store := &MockStore{}
	store.On("ListProjectsWithoutSummary", mock.Anything, 5).Return(projects, nil)
	store.On("SaveSummary", mock.Anything, mock.MatchedBy(func(s *models.Summary) bool {
		return s.ProjectID == 4
	})).Return(errors.New("constraint"))
	store.On("SaveSummary", mock.Anything, mock.MatchedBy(func(s *models.Summary) bool {
		return s.ProjectID != 4 && s.SummaryText == "summary" && s.Analysis == "summary" && !s.CreatedAt.IsZero()
	})).Return(nil)

	s := New(completer, WithStore(store))
	saved, err := s.SummarizePending(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 3, saved)
	assert.LessOrEqual(t, completer.peak.Load(), int32(2))

	store.AssertNumberOfCalls(t, "SaveSummary", 4)
	store.AssertExpectations(t)
}

func TestSummarizePendingEdgeCases(t *testing.T) {
	completer := &fakeCompleter{fn: func(string) (string, error) { return "summary", nil }}

	t.Run("listing failure", func(t *testing.T) {
		store := &MockStore{}
		store.On("ListProjectsWithoutSummary", mock.Anything, 3).Return(nil, errors.New("db down"))

		saved, err := New(completer, WithStore(store)).SummarizePending(context.Background(), 3)
		assert.Error(t, err)
		assert.Zero(t, saved)
	})

	t.Run("disabled without completer", func(t *testing.T) {
		store := &MockStore{}
		saved, err := New(nil, WithStore(store)).SummarizePending(context.Background(), 3)
		assert.NoError(t, err)
		assert.Zero(t, saved)
		store.AssertNotCalled(t, "ListProjectsWithoutSummary", mock.Anything, mock.Anything)
	})

	t.Run("zero limit", func(t *testing.T) {
		store := &MockStore{}
		saved, err := New(completer, WithStore(store)).SummarizePending(context.Background(), 0)
		assert.NoError(t, err)
		assert.Zero(t, saved)
	})
}

func TestPageReader(t *testing.T) {
	long := strings.Repeat("Readable paragraph text about the project. ", 100)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>repo</title></head><body>
			<nav>menu</nav>
			<article><h1>README</h1><p>` + long + `</p></article>
		</body></html>`))
	}))
	defer server.Close()

	reader := NewPageReader(5 * time.Second)

	text, err := reader.Read(context.Background(), server.URL+"/a/b")
	require.NoError(t, err)
	assert.Contains(t, text, "Readable paragraph text")
	assert.LessOrEqual(t, len([]rune(text)), maxPageContext)

	_, err = reader.Read(context.Background(), server.URL+"/missing")
	assert.Error(t, err)
}
