package verify

import (
	"context"
	"strings"
	"time"
)

// Confidence is the backend's own estimate of how sure it is about the verdict.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ParseConfidence accepts high|medium|low in any case.
func ParseConfidence(s string) (Confidence, bool) {
	switch c := Confidence(strings.ToLower(strings.TrimSpace(s))); c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return c, true
	}
	return "", false
}

// confidenceFromScore maps an OCR mean confidence (0..1) onto the verdict scale.
func confidenceFromScore(score float64) Confidence {
	switch {
	case score >= 0.80:
		return ConfidenceHigh
	case score >= 0.50:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Request is one verification attempt: a screenshot and the code it should show.
type Request struct {
	Image        []byte `validate:"required,min=1"`
	MIMEType     string // declared type; sniffed bytes take precedence
	ExpectedCode string `validate:"required"`
}

// Result is the verdict for a Request.
type Result struct {
	Found         bool       `json:"found"`
	ExtractedText string     `json:"extractedText"`
	Confidence    Confidence `json:"confidence"`
	// Model is the identifier of the backend that produced the verdict.
	Model string `json:"usedModel"`
	// Attempts lists every backend invoked, in priority order.
	Attempts []Attempt `json:"-"`
}

// Outcome of a single backend invocation.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeTransient Outcome = "transient_error"
	OutcomePermanent Outcome = "permanent_error"
	OutcomeAmbiguous Outcome = "ambiguous"
)

// Attempt records what happened with one candidate backend. A transient
// failure that was retried is still a single Attempt with Retried set.
type Attempt struct {
	Model    string        `json:"model"`
	Outcome  Outcome       `json:"outcome"`
	Detail   string        `json:"error,omitempty"`
	Retried  bool          `json:"retried,omitempty"`
	Duration time.Duration `json:"-"`
}

func (a Attempt) String() string {
	if a.Detail == "" {
		return a.Model + ": " + string(a.Outcome)
	}
	return a.Model + ": " + a.Detail
}

// Reply is the raw output of a backend.
type Reply struct {
	// Text is either the backend's JSON verdict (Verdict=true) or the
	// plain text it read off the image.
	Text    string
	Verdict bool
	// Score is an optional 0..1 OCR confidence for plain text replies.
	Score float64
}

// Backend is a vision service able to read a coupon screenshot.
type Backend interface {
	// ID is the priority list identifier, e.g. "gemini-2.0-flash".
	ID() string
	Recognize(ctx context.Context, img Image, expectedCode string) (Reply, error)
}

// Image is the payload handed to a backend.
type Image struct {
	Data     []byte
	MIMEType string
}
