package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTimeWindow(t *testing.T) {
	tests := []struct {
		input    string
		expected TimeWindow
		wantErr  bool
	}{
		{input: "", expected: Daily},
		{input: "daily", expected: Daily},
		{input: "Weekly", expected: Weekly},
		{input: " monthly ", expected: Monthly},
		{input: "yearly", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			w, err := ParseTimeWindow(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTimeWindow)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, w)
		})
	}
}

func TestNewTrendingQuery(t *testing.T) {
	assert.Equal(t, TrendingQuery{Language: "Go", Limit: 30}, NewTrendingQuery(" Go ", 0))
	assert.Equal(t, TrendingQuery{Limit: 10}, NewTrendingQuery("", 10))
	assert.Equal(t, TrendingQuery{Limit: 100}, NewTrendingQuery("", 500))
	assert.Equal(t, 30, NewTrendingQuery("", -4).Limit)
}

func TestStringPtr(t *testing.T) {
	assert.Nil(t, StringPtr(""))
	if p := StringPtr("Rust"); assert.NotNil(t, p) {
		assert.Equal(t, "Rust", *p)
	}
}
