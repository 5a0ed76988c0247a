package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coupon-market/api/internal/verify"
)

var img = verify.Image{Data: []byte{0x89, 'P', 'N', 'G'}, MIMEType: "image/png"}

func newTestEngine(t *testing.T, h http.HandlerFunc) *Engine {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	e := New("sk-test", "gpt-4.1-mini").WithHTTPClient(srv.Client())
	e.BaseURL = srv.URL
	return e
}

func TestRecognize_OK(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/responses", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		b, _ := io.ReadAll(r.Body)
		var body map[string]any
		require.NoError(t, json.Unmarshal(b, &body))
		assert.Equal(t, "gpt-4.1-mini", body["model"])
		assert.Contains(t, string(b), "data:image/png;base64,")
		assert.Contains(t, string(b), `SAVE20`)

		_, _ = w.Write([]byte(`{"output":[{"role":"assistant","content":[{"type":"output_text","text":"{\"found\":true,\"extractedText\":\"SAVE20\",\"confidence\":\"high\"}"}]}]}`))
	})

	reply, err := e.Recognize(context.Background(), img, "SAVE20")
	require.NoError(t, err)
	assert.True(t, reply.Verdict)

	res, err := verify.ParseVerdict(reply.Text)
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, "openai:gpt-4.1-mini", e.ID())
}

func TestRecognize_RateLimitedIsTransient(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"Rate limit reached"}}`, http.StatusTooManyRequests)
	})
	_, err := e.Recognize(context.Background(), img, "SAVE20")
	require.Error(t, err)
	assert.True(t, verify.IsTransient(err))
}

func TestRecognize_AuthErrorIsPermanent(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"Incorrect API key provided"}}`, http.StatusUnauthorized)
	})
	_, err := e.Recognize(context.Background(), img, "SAVE20")
	require.Error(t, err)
	assert.False(t, verify.IsTransient(err))
	assert.True(t, strings.HasPrefix(err.Error(), "openai 401"))
}

func TestRecognize_Guards(t *testing.T) {
	_, err := New("", "gpt-4.1-mini").Recognize(context.Background(), img, "X")
	assert.Error(t, err)

	_, err = New("k", "gpt-4.1-mini").Recognize(context.Background(), verify.Image{MIMEType: "image/heic"}, "X")
	assert.Error(t, err)
}

func TestExtractResponsesText(t *testing.T) {
	assert.Equal(t, "hi", extractResponsesText([]byte(`{"output_text":" hi "}`)))
	assert.Equal(t, "a\nb", extractResponsesText([]byte(`{"output":[{"content":[{"type":"output_text","text":"a"},{"type":"refusal","text":"no"},{"type":"text","text":"b"}]}]}`)))
	assert.Empty(t, extractResponsesText([]byte(`not json`)))
}
