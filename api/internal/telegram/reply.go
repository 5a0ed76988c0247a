package telegram

import (
	"errors"
	"fmt"
	"strings"

	"coupon-market/api/internal/verify"
)

type outcome struct {
	status verify.Status
	res    verify.Result
	err    error
}

// rank orders outcomes by how useful they are to report.
func rank(s verify.Status) int {
	switch s {
	case verify.StatusVerified:
		return 5
	case verify.StatusNotFound:
		return 4
	case verify.StatusAmbiguous:
		return 3
	case verify.StatusUnavailable:
		return 2
	case verify.StatusInvalid:
		return 1
	}
	return 0
}

func (o outcome) keep(next outcome) outcome {
	if rank(next.status) >= rank(o.status) {
		return next
	}
	return o
}

func formatReply(code string, o outcome) string {
	var sb strings.Builder
	switch o.status {
	case verify.StatusVerified:
		fmt.Fprintf(&sb, "✅ Coupon verified: %s is on the screenshot.", code)
	case verify.StatusNotFound:
		fmt.Fprintf(&sb, "❌ Coupon code %s not found in the screenshot.", code)
	case verify.StatusAmbiguous:
		return "⚠️ The AI answer could not be interpreted. Please try again."
	case verify.StatusInvalid:
		return "⚠️ " + o.err.Error()
	default:
		msg := "⏳ All AI models failed to process the image. Please try again later."
		var ex *verify.ExhaustionError
		if errors.As(o.err, &ex) && len(ex.Attempts) > 0 {
			msg += fmt.Sprintf(" (%d models tried)", len(ex.Attempts))
		}
		return msg
	}

	if o.res.Model != "" {
		fmt.Fprintf(&sb, "\nModel: %s, confidence: %s", o.res.Model, o.res.Confidence)
	}
	if t := strings.TrimSpace(o.res.ExtractedText); t != "" {
		sb.WriteString("\n\n📝 Text read:\n")
		sb.WriteString(t)
	}
	return sb.String()
}
