//go:build cgo && !notesseract

package engines

import (
	"coupon-market/api/internal/verify"
	"coupon-market/api/internal/verify/tesseract"
)

const tesseractAvailable = true

func newTesseract(languages []string) (verify.Backend, error) {
	return tesseract.New(languages...), nil
}
