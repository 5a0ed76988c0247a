package yandex

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"coupon-market/api/internal/verify"
)

const (
	DefaultOCRURL = "https://ocr.api.cloud.yandex.net/ocr/v1/recognizeText"
	DefaultModel  = "page"
)

// Engine reads screenshot text with Yandex Vision OCR. It only extracts
// text; the verifier decides whether the code is there.
type Engine struct {
	Model     string
	Languages []string

	iamc     *IamClient
	folderID string
	ocrURL   string
	httpc    *http.Client
}

func New(oauthToken, folderID, model string, languages ...string) *Engine {
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	if len(languages) == 0 {
		languages = []string{"en"}
	}
	return &Engine{
		Model:     strings.TrimSpace(model),
		Languages: languages,
		iamc:      NewIamClient(strings.TrimSpace(oauthToken)),
		folderID:  strings.TrimSpace(folderID),
		ocrURL:    DefaultOCRURL,
		httpc:     &http.Client{Timeout: 60 * time.Second},
	}
}

// WithEndpoints points the engine at other IAM and OCR URLs.
func (e *Engine) WithEndpoints(iamURL, ocrURL string) *Engine {
	e.iamc.url = iamURL
	e.ocrURL = ocrURL
	return e
}

func (e *Engine) ID() string {
	if e.Model == DefaultModel {
		return "yandex"
	}
	return "yandex:" + e.Model
}

type request struct {
	Content       string   `json:"content"`
	MimeType      string   `json:"mimeType,omitempty"` // JPEG | PNG | PDF
	LanguageCodes []string `json:"languageCodes,omitempty"`
	Model         string   `json:"model,omitempty"`
}

type line struct {
	Text string `json:"text,omitempty"`
}

type textAnnotation struct {
	FullText string `json:"fullText,omitempty"`
	Blocks   []struct {
		Lines []line `json:"lines,omitempty"`
	} `json:"blocks,omitempty"`
}

type response struct {
	Result *struct {
		TextAnnotation *textAnnotation `json:"textAnnotation,omitempty"`
	} `json:"result,omitempty"`
}

func (e *Engine) Recognize(ctx context.Context, img verify.Image, _ string) (verify.Reply, error) {
	mt, ok := ocrMIME(img.MIMEType)
	if !ok {
		return verify.Reply{}, fmt.Errorf("yandex ocr: unsupported image type %q", img.MIMEType)
	}
	payload, _ := json.Marshal(request{
		Content:       base64.StdEncoding.EncodeToString(img.Data),
		MimeType:      mt,
		LanguageCodes: e.Languages,
		Model:         e.Model,
	})

	resp, err := e.post(ctx, payload)
	if err != nil {
		return verify.Reply{}, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		e.iamc.invalidate()
		if resp, err = e.post(ctx, payload); err != nil {
			return verify.Reply{}, err
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		x, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return verify.Reply{}, fmt.Errorf("yandex ocr %d: %s", resp.StatusCode, strings.TrimSpace(string(x)))
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return verify.Reply{}, fmt.Errorf("yandex ocr: decode: %w", err)
	}
	return verify.Reply{Text: out.text()}, nil
}

func (e *Engine) post(ctx context.Context, payload []byte) (*http.Response, error) {
	token, err := e.iamc.Token(ctx)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.ocrURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("x-folder-id", e.folderID)
	return e.httpc.Do(req)
}

// text prefers fullText and falls back to the recognised lines.
func (r *response) text() string {
	if r == nil || r.Result == nil || r.Result.TextAnnotation == nil {
		return ""
	}
	ta := r.Result.TextAnnotation
	if t := strings.TrimSpace(ta.FullText); t != "" {
		return t
	}
	var lines []string
	for _, b := range ta.Blocks {
		for _, l := range b.Lines {
			if s := strings.TrimSpace(l.Text); s != "" {
				lines = append(lines, s)
			}
		}
	}
	return strings.Join(lines, "\n")
}

func ocrMIME(m string) (string, bool) {
	switch strings.ToLower(m) {
	case "image/jpeg", "image/jpg":
		return "JPEG", true
	case "image/png":
		return "PNG", true
	}
	return "", false
}
