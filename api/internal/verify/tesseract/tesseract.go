//go:build cgo && !notesseract

package tesseract

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"coupon-market/api/internal/verify"
)

// Engine reads screenshots locally with libtesseract. It only extracts
// text; the match decision is left to the verifier.
type Engine struct {
	Languages     []string
	clientFactory func() *gosseract.Client
}

func New(languages ...string) *Engine {
	return &Engine{
		Languages:     append([]string(nil), languages...),
		clientFactory: gosseract.NewClient,
	}
}

func (e *Engine) ID() string { return "tesseract" }

func (e *Engine) Recognize(ctx context.Context, img verify.Image, _ string) (verify.Reply, error) {
	if err := ctx.Err(); err != nil {
		return verify.Reply{}, err
	}
	c := e.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(img.Data); err != nil {
		return verify.Reply{}, fmt.Errorf("tesseract: set image: %w", err)
	}
	if len(e.Languages) > 0 {
		if err := c.SetLanguage(e.Languages...); err != nil {
			return verify.Reply{}, fmt.Errorf("tesseract: set languages: %w", err)
		}
	}
	text, err := c.Text()
	if err != nil {
		return verify.Reply{}, fmt.Errorf("tesseract: recognize text: %w", err)
	}
	return verify.Reply{Text: strings.TrimSpace(text), Score: meanConfidence(c)}, nil
}

// meanConfidence averages word confidences into 0..1.
func meanConfidence(c *gosseract.Client) float64 {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return 0
	}
	var sum float64
	for _, b := range boxes {
		sum += b.Confidence / 100.0
	}
	return sum / float64(len(boxes))
}
