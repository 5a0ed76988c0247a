//go:build !cgo || notesseract

package engines

import (
	"errors"

	"coupon-market/api/internal/verify"
)

const tesseractAvailable = false

func newTesseract([]string) (verify.Backend, error) {
	return nil, errors.New("built without tesseract (cgo disabled or notesseract tag)")
}
