package verify

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// transientMarkers are looked up in lower-cased error messages. Providers
// report overload in the message text ("googleapi: Error 429", "openai 503: ...",
// "rpc error: code = ResourceExhausted").
var transientMarkers = []string{
	"429",
	"503",
	"too many requests",
	"service unavailable",
	"resource exhausted",
	"resourceexhausted",
	"code = unavailable",
	"overloaded",
}

// IsTransient reports whether err signals rate limiting or temporary
// unavailability, i.e. whether the same backend may be retried once.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var be *BackendError
	if errors.As(err, &be) {
		return be.Transient
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusTooManyRequests, http.StatusServiceUnavailable:
			return true
		}
	}
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.ResourceExhausted, codes.Unavailable:
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	for _, m := range transientMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
