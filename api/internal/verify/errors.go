package verify

import (
	"errors"
	"fmt"
	"strings"
)

// InputError rejects a request before any backend is contacted.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// BackendError wraps a failure of one backend call.
type BackendError struct {
	Model     string
	Transient bool
	Err       error
}

func (e *BackendError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("%s (%s): %v", e.Model, kind, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// AmbiguousResponseError means a backend answered but its output could not be
// read as a verdict. The code may or may not be present; callers must not
// treat this as "not found".
type AmbiguousResponseError struct {
	Model string
	Raw   string
	Err   error
	// Attempts lists every backend invoked, the ambiguous one last.
	Attempts []Attempt
}

func (e *AmbiguousResponseError) Error() string {
	return fmt.Sprintf("%s: could not interpret response: %v", e.Model, e.Err)
}

func (e *AmbiguousResponseError) Unwrap() error { return e.Err }

// ExhaustionError is returned when every candidate backend failed.
// It is retryable and distinct from "code not found".
type ExhaustionError struct {
	Attempts []Attempt
	// Err is set when the loop was cut short by the request context.
	Err error
}

func (e *ExhaustionError) Error() string {
	msg := "all verification backends failed"
	if e.Err != nil {
		msg += " (" + e.Err.Error() + ")"
	}
	if len(e.Attempts) == 0 {
		return msg
	}
	return msg + ": " + strings.Join(e.Details(), "; ")
}

func (e *ExhaustionError) Unwrap() error { return e.Err }

// AttemptsOf returns the backends invoked for a verification, whatever its outcome.
func AttemptsOf(res Result, err error) []Attempt {
	var (
		ex  *ExhaustionError
		amb *AmbiguousResponseError
	)
	switch {
	case errors.As(err, &ex):
		return ex.Attempts
	case errors.As(err, &amb):
		return amb.Attempts
	}
	return res.Attempts
}

// Details returns one error string per invoked backend in priority order.
func (e *ExhaustionError) Details() []string {
	out := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		out = append(out, a.String())
	}
	return out
}
