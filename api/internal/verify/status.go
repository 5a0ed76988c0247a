package verify

import "errors"

// Status summarises a finished verification for callers.
type Status string

const (
	StatusVerified    Status = "verified"
	StatusNotFound    Status = "not_found"
	StatusAmbiguous   Status = "ambiguous"
	StatusUnavailable Status = "unavailable"
	StatusInvalid     Status = "invalid"
)

// StatusOf maps the return values of Verify onto a Status. Any error that is
// neither an input nor an interpretation problem counts as unavailable, so a
// failure is never reported as "not found".
func StatusOf(res Result, err error) Status {
	if err == nil {
		if res.Found {
			return StatusVerified
		}
		return StatusNotFound
	}
	var (
		inErr  *InputError
		ambErr *AmbiguousResponseError
	)
	switch {
	case errors.As(err, &inErr):
		return StatusInvalid
	case errors.As(err, &ambErr):
		return StatusAmbiguous
	default:
		return StatusUnavailable
	}
}
