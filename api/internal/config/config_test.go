package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	unset(t, "PORT", "VERIFY_MODELS", "VERIFY_BACKOFF", "VERIFY_BACKEND_TIMEOUT",
		"VERIFY_REQUEST_TIMEOUT", "TESSERACT_LANGUAGES", "MAX_UPLOAD_BYTES")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, []string{
		"gemini-flash-latest",
		"gemini-2.0-flash-lite-preview-02-05",
		"gemini-2.0-flash-lite",
		"gemini-2.0-flash",
		"gemini-2.5-flash",
	}, cfg.Models)
	assert.Equal(t, time.Second, cfg.Backoff)
	assert.Equal(t, 30*time.Second, cfg.BackendTimeout)
	assert.Equal(t, 90*time.Second, cfg.RequestTimeout)
	assert.Equal(t, []string{"eng"}, cfg.TesseractLanguages)
	assert.EqualValues(t, 10<<20, cfg.MaxUploadBytes)
	assert.Equal(t, "0.0.0.0:8000", cfg.Addr())
}

// unset clears both spellings of each key for the duration of the test.
func unset(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		for _, name := range []string{k, "COUPON_" + k} {
			t.Setenv(name, "")
			require.NoError(t, os.Unsetenv(name))
		}
	}
}

func TestParse_PrefixedAndBareKeys(t *testing.T) {
	t.Setenv("COUPON_OPENAI_API_KEY", "prefixed-key")
	t.Setenv("COUPON_VERIFY_MODELS", " gemini-2.0-flash , openai:gpt-4.1-mini,, tesseract ")
	t.Setenv("COUPON_VERIFY_BACKOFF", "250ms")
	unset(t, "PORT")
	t.Setenv("PORT", "9090")
	unset(t, "GEMINI_API_KEY")
	t.Setenv("GEMINI_API_KEY", "bare-key")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, "bare-key", cfg.GeminiAPIKey)
	assert.Equal(t, "prefixed-key", cfg.OpenAIAPIKey)
	assert.Equal(t, []string{"gemini-2.0-flash", "openai:gpt-4.1-mini", "tesseract"}, cfg.Models)
	assert.Equal(t, 250*time.Millisecond, cfg.Backoff)
	assert.Equal(t, "9090", cfg.Port)
}

func TestParse_BadDuration(t *testing.T) {
	unset(t, "VERIFY_BACKOFF")
	t.Setenv("COUPON_VERIFY_BACKOFF", "soon")
	_, err := Parse()
	assert.Error(t, err)
}
