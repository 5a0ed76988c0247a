package verify

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var fenceRe = regexp.MustCompile("(?i)```(?:json)?")

// StripCodeFences removes every markdown code fence marker from s.
func StripCodeFences(s string) string {
	return strings.TrimSpace(fenceRe.ReplaceAllString(s, ""))
}

type verdictJSON struct {
	Found         *bool   `json:"found"`
	ExtractedText *string `json:"extractedText"`
	Confidence    *string `json:"confidence"`
}

// ParseVerdict reads a backend verdict of the form
// {"found": bool, "extractedText": string, "confidence": "high"|"medium"|"low"},
// optionally wrapped in code fences. found and confidence are required.
func ParseVerdict(raw string) (Result, error) {
	s := StripCodeFences(raw)
	if s == "" {
		return Result{}, errors.New("empty response")
	}
	var v verdictJSON
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return Result{}, fmt.Errorf("bad JSON: %w", err)
	}
	if v.Found == nil {
		return Result{}, errors.New(`missing "found"`)
	}
	if v.Confidence == nil {
		return Result{}, errors.New(`missing "confidence"`)
	}
	conf, ok := ParseConfidence(*v.Confidence)
	if !ok {
		return Result{}, fmt.Errorf("unknown confidence %q", *v.Confidence)
	}
	r := Result{Found: *v.Found, Confidence: conf}
	if v.ExtractedText != nil {
		r.ExtractedText = *v.ExtractedText
	}
	return r, nil
}
