package summarizer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOpenAIClient(t *testing.T) {
	_, err := NewOpenAIClient("", "", "", nil)
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	client, err := NewOpenAIClient("key", "", "https://example.test/", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, client.model)
	assert.Equal(t, "https://example.test", client.baseURL)
	assert.NotNil(t, client.client)
}

func TestComplete(t *testing.T) {
	testCases := []struct {
		name        string
		status      int
		response    string
		expected    string
		expectedErr error
	}{
		{
			name:     "successful completion",
			status:   http.StatusOK,
			response: `{"choices":[{"message":{"role":"assistant","content":"  A fast web framework.  "}}]}`,
			expected: "A fast web framework.",
		},
		{
			name:        "rate limited",
			status:      http.StatusTooManyRequests,
			response:    `{"error":{"message":"Rate limit reached","type":"requests"}}`,
			expectedErr: ErrAPIStatus,
		},
		{
			name:        "server error without body",
			status:      http.StatusBadGateway,
			response:    ``,
			expectedErr: ErrAPIStatus,
		},
		{
			name:        "no choices",
			status:      http.StatusOK,
			response:    `{"choices":[]}`,
			expectedErr: ErrEmptyCompletion,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/v1/chat/completions", r.URL.Path)
				assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

				var req chatRequest
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, "test-model", req.Model)
				if assert.Len(t, req.Messages, 2) {
					assert.Equal(t, "system", req.Messages[0].Role)
					assert.Equal(t, "user", req.Messages[1].Role)
					assert.Equal(t, "describe it", req.Messages[1].Content)
				}

				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.response))
			}))
			defer server.Close()

			client, err := NewOpenAIClient("test-key", "test-model", server.URL, server.Client())
			require.NoError(t, err)

			text, err := client.Complete(context.Background(), "be brief", "describe it")
			if tc.expectedErr != nil {
				assert.ErrorIs(t, err, tc.expectedErr)
				assert.Empty(t, text)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, text)
		})
	}
}
