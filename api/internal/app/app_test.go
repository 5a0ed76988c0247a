package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coupon-market/api/internal/config"
	"coupon-market/api/internal/engines"
)

func TestNew_WithoutDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PGHOST", "")

	a, err := New(context.Background(), &config.Config{
		GeminiAPIKey:   "k",
		OpenAIAPIKey:   "o",
		Models:         []string{"gemini-2.0-flash", "openai:gpt-4o"},
		Backoff:        time.Second,
		BackendTimeout: 30 * time.Second,
		RequestTimeout: 90 * time.Second,
	})
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, []string{"gemini-2.0-flash", "openai:gpt-4o"}, a.Verifier.Models())
	assert.Nil(t, a.DB)
	assert.Nil(t, a.Pinger())
	assert.NotNil(t, a.Handle())
}

func TestNew_NoBackends(t *testing.T) {
	_, err := New(context.Background(), &config.Config{Models: []string{"gemini-2.0-flash"}})
	assert.ErrorIs(t, err, engines.ErrNoBackends)
}
