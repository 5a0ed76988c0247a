package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"coupon-market/api/internal/util"
	"coupon-market/api/internal/verify"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Engine calls the OpenAI Responses API with the screenshot and asks for a
// JSON verdict constrained by a strict schema.
type Engine struct {
	APIKey  string
	Model   string
	BaseURL string
	httpc   *http.Client
}

func New(key, model string) *Engine {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 120 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
	}
	return &Engine{
		APIKey:  strings.TrimSpace(key),
		Model:   strings.TrimSpace(model),
		BaseURL: defaultBaseURL,
		// no client timeout: calls are bounded by the request context
		httpc: &http.Client{Transport: tr},
	}
}

// WithHTTPClient overrides the internal HTTP client (e.g., for tests or tracing).
func (e *Engine) WithHTTPClient(c *http.Client) *Engine {
	if c != nil {
		e.httpc = c
	}
	return e
}

func (e *Engine) ID() string { return "openai:" + e.Model }

var verdictSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"found":         map[string]any{"type": "boolean"},
		"extractedText": map[string]any{"type": "string"},
		"confidence":    map[string]any{"type": "string", "enum": []string{"high", "medium", "low"}},
	},
	"required":             []string{"found", "extractedText", "confidence"},
	"additionalProperties": false,
}

func (e *Engine) Recognize(ctx context.Context, img verify.Image, expectedCode string) (verify.Reply, error) {
	if e.APIKey == "" {
		return verify.Reply{}, fmt.Errorf("OPENAI_API_KEY is empty")
	}
	if !isOpenAIImageMIME(img.MIMEType) {
		return verify.Reply{}, fmt.Errorf("openai: unsupported image type %q", img.MIMEType)
	}

	body := map[string]any{
		"model": e.Model,
		"input": []any{
			map[string]any{
				"role": "user",
				"content": []any{
					map[string]any{"type": "input_text", "text": verify.Prompt(expectedCode)},
					map[string]any{"type": "input_image", "image_url": util.MakeDataURL(img.MIMEType, img.Data)},
				},
			},
		},
		"temperature": 0,
		"text": map[string]any{
			"format": map[string]any{
				"type":   "json_schema",
				"name":   "coupon_verdict",
				"strict": true,
				"schema": verdictSchema,
			},
		},
	}
	if strings.Contains(e.Model, "gpt-5") {
		body["temperature"] = 1
	}
	payload, _ := json.Marshal(body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(e.BaseURL, "/")+"/responses", bytes.NewReader(payload))
	if err != nil {
		return verify.Reply{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.APIKey)

	resp, err := e.httpc.Do(req)
	if err != nil {
		return verify.Reply{}, err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return verify.Reply{}, fmt.Errorf("openai %d: %s", resp.StatusCode, truncateBytes(bytes.TrimSpace(raw), 512))
	}

	out := extractResponsesText(raw)
	if strings.TrimSpace(out) == "" {
		return verify.Reply{}, fmt.Errorf("responses: empty output; body=%s", truncateBytes(raw, 1024))
	}
	return verify.Reply{Text: out, Verdict: true}, nil
}

// extractResponsesText extracts model text from the Responses API envelope.
// It prefers `output_text`, and otherwise concatenates text segments found in
// `output[i].content[j].text` where `type` is `output_text` or `text`.
func extractResponsesText(raw []byte) string {
	type content struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	type output struct {
		Content []content `json:"content"`
		Role    string    `json:"role,omitempty"`
	}
	var env struct {
		Output     []output `json:"output"`
		OutputText string   `json:"output_text"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return ""
	}
	if s := strings.TrimSpace(env.OutputText); s != "" {
		return s
	}

	var b strings.Builder
	for _, o := range env.Output {
		for _, c := range o.Content {
			if strings.TrimSpace(c.Text) == "" {
				continue
			}
			if c.Type == "output_text" || c.Type == "text" || c.Type == "" {
				if b.Len() > 0 {
					b.WriteByte('\n')
				}
				b.WriteString(c.Text)
			}
		}
	}
	return b.String()
}

func truncateBytes(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}

func isOpenAIImageMIME(m string) bool {
	switch strings.ToLower(strings.TrimSpace(m)) {
	case "image/jpeg", "image/jpg", "image/png", "image/webp", "image/gif":
		return true
	}
	return false
}
