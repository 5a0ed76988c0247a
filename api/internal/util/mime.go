package util

import (
	"encoding/base64"
	"net/http"
	"strings"
)

// ImageMIME resolves the MIME type of an uploaded image. The sniffed type wins
// when the bytes are recognisable; the declared type is only trusted for
// binary formats the sniffer does not know (HEIC and friends).
// ok is false when data does not look like an image.
func ImageMIME(declared string, data []byte) (string, bool) {
	if len(data) == 0 {
		return "", false
	}
	decl := strings.ToLower(strings.TrimSpace(declared))
	if i := strings.IndexByte(decl, ';'); i >= 0 {
		decl = strings.TrimSpace(decl[:i])
	}
	sniffed := http.DetectContentType(data)
	switch {
	case strings.HasPrefix(sniffed, "image/"):
		return sniffed, true
	case sniffed == "application/octet-stream" && strings.HasPrefix(decl, "image/"):
		return decl, true
	}
	return "", false
}

func MakeDataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeBase64MaybeDataURL decodes base64. For a data: URI the MIME from the prefix is returned too.
func DecodeBase64MaybeDataURL(s string) ([]byte, string, error) {
	s = strings.TrimSpace(s)
	var hintMIME string
	if strings.HasPrefix(s, "data:") {
		// data:<mime>;base64,<payload>
		if idx := strings.IndexByte(s, ','); idx > 0 {
			meta := s[len("data:"):idx]
			if semi := strings.IndexByte(meta, ';'); semi >= 0 {
				hintMIME = meta[:semi]
			} else {
				hintMIME = meta
			}
			s = s[idx+1:]
		}
	}
	// standard first, then URL-safe
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, hintMIME, nil
	} else if b2, err2 := base64.URLEncoding.DecodeString(s); err2 == nil {
		return b2, hintMIME, nil
	} else {
		return nil, "", err
	}
}

// PickMIME takes the explicit MIME, then the data: URI hint.
func PickMIME(explicit, hint string) string {
	if exp := strings.TrimSpace(explicit); exp != "" {
		return exp
	}
	return strings.TrimSpace(hint)
}
