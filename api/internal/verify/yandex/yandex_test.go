package yandex

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coupon-market/api/internal/verify"
)

func newServer(t *testing.T, ocr http.HandlerFunc) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var iamCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/iam", func(w http.ResponseWriter, r *http.Request) {
		iamCalls.Add(1)
		_, _ = w.Write([]byte(`{"iamToken":"t-1"}`))
	})
	mux.HandleFunc("/ocr", ocr)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &iamCalls
}

func TestRecognize(t *testing.T) {
	srv, iamCalls := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer t-1", r.Header.Get("Authorization"))
		assert.Equal(t, "folder", r.Header.Get("x-folder-id"))
		var req request
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "PNG", req.MimeType)
		assert.Equal(t, "page", req.Model)
		assert.Equal(t, []string{"en"}, req.LanguageCodes)
		_, _ = w.Write([]byte(`{"result":{"textAnnotation":{"fullText":"","blocks":[{"lines":[{"text":"USE CODE"},{"text":" SAVE20 "}]}]}}}`))
	})

	e := New("oauth", "folder", "").WithEndpoints(srv.URL+"/iam", srv.URL+"/ocr")
	assert.Equal(t, "yandex", e.ID())

	for i := 0; i < 2; i++ {
		reply, err := e.Recognize(context.Background(), verify.Image{Data: []byte("png"), MIMEType: "image/png"}, "SAVE20")
		require.NoError(t, err)
		assert.False(t, reply.Verdict)
		assert.Equal(t, "USE CODE\nSAVE20", reply.Text)
	}
	assert.EqualValues(t, 1, iamCalls.Load(), "token is cached")
}

func TestRecognize_Errors(t *testing.T) {
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`quota`))
	})
	e := New("oauth", "folder", "handwritten").WithEndpoints(srv.URL+"/iam", srv.URL+"/ocr")
	assert.Equal(t, "yandex:handwritten", e.ID())

	_, err := e.Recognize(context.Background(), verify.Image{Data: []byte("x"), MIMEType: "image/jpeg"}, "")
	require.Error(t, err)
	assert.True(t, verify.IsTransient(err))

	_, err = e.Recognize(context.Background(), verify.Image{Data: []byte("x"), MIMEType: "image/webp"}, "")
	require.Error(t, err)
	assert.False(t, verify.IsTransient(err))
}

func TestRecognize_RefreshesRejectedToken(t *testing.T) {
	var calls atomic.Int32
	srv, iamCalls := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"result":{"textAnnotation":{"fullText":"NOCODE"}}}`))
	})
	e := New("oauth", "folder", "").WithEndpoints(srv.URL+"/iam", srv.URL+"/ocr")

	reply, err := e.Recognize(context.Background(), verify.Image{Data: []byte("x"), MIMEType: "image/png"}, "NOCODE")
	require.NoError(t, err)
	assert.Equal(t, "NOCODE", reply.Text)
	assert.EqualValues(t, 2, iamCalls.Load())
}
