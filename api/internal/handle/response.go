package handle

import (
	"errors"
	"net/http"

	"coupon-market/api/internal/coupon"
	"coupon-market/api/internal/verify"
)

const (
	msgVerified    = "Coupon Verified Successfully!"
	msgNotFound    = "Coupon code not found in image."
	msgAmbiguous   = "AI response was not valid JSON."
	msgUnavailable = "All AI models failed to process the image. Please try again later."
	msgMissing     = "Missing file or coupon code"
	msgNoCoupon    = "Coupon not found"
)

// Response is the body of every verification endpoint.
type Response struct {
	Success bool           `json:"success"`
	Status  verify.Status  `json:"status"`
	Message string         `json:"message"`
	Data    *verify.Result `json:"data,omitempty"`
	// Raw is the unreadable backend output of an ambiguous result.
	Raw         string   `json:"raw,omitempty"`
	FormatValid *bool    `json:"formatValid,omitempty"`
	Debug       []string `json:"debug,omitempty"`
}

func invalid(msg string) (int, Response) {
	return http.StatusBadRequest, Response{Status: verify.StatusInvalid, Message: msg}
}

// buildResponse maps the outcome of Verify to an HTTP status and body.
func buildResponse(code string, res verify.Result, err error) (int, Response) {
	status := verify.StatusOf(res, err)
	out := Response{Status: status}
	if code != "" {
		v := coupon.ValidFormat(code)
		out.FormatValid = &v
	}

	switch status {
	case verify.StatusVerified:
		out.Success = true
		out.Message = msgVerified
		out.Data = &res
		return http.StatusOK, out
	case verify.StatusNotFound:
		out.Message = msgNotFound
		out.Data = &res
		return http.StatusOK, out
	case verify.StatusInvalid:
		out.Message = err.Error()
		return http.StatusBadRequest, out
	case verify.StatusAmbiguous:
		var amb *verify.AmbiguousResponseError
		errors.As(err, &amb)
		out.Message = msgAmbiguous
		out.Raw = amb.Raw
		out.Debug = []string{amb.Error()}
		return http.StatusBadGateway, out
	}

	out.Message = msgUnavailable
	var ex *verify.ExhaustionError
	if errors.As(err, &ex) {
		out.Debug = ex.Details()
		if ex.Err != nil {
			out.Debug = append(out.Debug, ex.Err.Error())
		}
	} else {
		out.Debug = []string{err.Error()}
	}
	return http.StatusServiceUnavailable, out
}
