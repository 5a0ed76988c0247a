package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"coupon-market/api/internal/verify"
)

// Engine asks a Gemini model to read the screenshot and decide on the code
// in one call. It answers with a JSON verdict.
type Engine struct {
	APIKey string
	Model  string
}

func New(apiKey, model string) *Engine {
	return &Engine{
		APIKey: strings.TrimSpace(apiKey),
		Model:  strings.TrimSpace(model),
	}
}

func (e *Engine) ID() string { return e.Model }

func (e *Engine) Recognize(ctx context.Context, img verify.Image, expectedCode string) (verify.Reply, error) {
	if e.APIKey == "" {
		return verify.Reply{}, errors.New("GEMINI_API_KEY is empty")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(e.APIKey))
	if err != nil {
		return verify.Reply{}, err
	}
	defer cl.Close()

	m := cl.GenerativeModel(e.Model)
	if m == nil {
		return verify.Reply{}, fmt.Errorf("gemini: model is nil")
	}
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      ptrFloat32(0),
		ResponseMIMEType: "application/json",
	}

	resp, err := m.GenerateContent(ctx,
		genai.Text(verify.Prompt(expectedCode)),
		genai.Blob{MIMEType: img.MIMEType, Data: img.Data},
	)
	if err != nil {
		return verify.Reply{}, fmt.Errorf("gemini %s: %w", e.Model, err)
	}
	out := firstText(resp)
	if strings.TrimSpace(out) == "" {
		return verify.Reply{}, fmt.Errorf("gemini %s: empty response", e.Model)
	}
	return verify.Reply{Text: out, Verdict: true}, nil
}

// firstText returns the first text part of the first candidate that has one.
func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

func ptrFloat32(v float32) *float32 { return &v }
