//go:build cgo && !notesseract

package tesseract

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"coupon-market/api/internal/verify"
)

func ensureTesseractAvailable(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("tesseract"); err != nil {
		t.Skip("tesseract not installed in PATH")
	}
}

func renderCode(t *testing.T, text string) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 320, 80))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	d := &font.Drawer{Dst: img, Src: image.Black, Face: basicfont.Face7x13, Dot: fixed.P(10, 45)}
	d.DrawString(text)

	// the 7x13 bitmap font is too small for tesseract at 1x
	big := image.NewRGBA(image.Rect(0, 0, 960, 240))
	xdraw.NearestNeighbor.Scale(big, big.Bounds(), img, img.Bounds(), draw.Src, nil)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, big))
	return buf.Bytes()
}

func TestVerifyScreenshotLocally(t *testing.T) {
	ensureTesseractAvailable(t)

	data := renderCode(t, "Use code SAVEBIG2024 now")
	v := verify.New([]verify.Backend{New("eng")}, verify.WithBackoff(time.Millisecond))

	res, err := v.Verify(context.Background(), verify.Request{Image: data, ExpectedCode: "SAVEBIG2024"})
	require.NoError(t, err)
	assert.Equal(t, "tesseract", res.Model)
	assert.NotEmpty(t, res.ExtractedText)
	assert.True(t, res.Found, "extracted %q", res.ExtractedText)
}

func TestRecognize_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Recognize(ctx, verify.Image{}, "")
	assert.ErrorIs(t, err, context.Canceled)
}
