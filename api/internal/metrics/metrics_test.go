package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"coupon-market/api/internal/verify"
)

func TestObserveAttempt(t *testing.T) {
	before := testutil.ToFloat64(BackendAttempts.WithLabelValues("m-test", "transient_error"))
	retriesBefore := testutil.ToFloat64(BackendRetries.WithLabelValues("m-test"))

	ObserveAttempt(verify.Attempt{Model: "m-test", Outcome: verify.OutcomeTransient, Retried: true, Duration: time.Second})
	ObserveAttempt(verify.Attempt{Model: "m-test", Outcome: verify.OutcomeTransient})

	assert.Equal(t, before+2, testutil.ToFloat64(BackendAttempts.WithLabelValues("m-test", "transient_error")))
	assert.Equal(t, retriesBefore+1, testutil.ToFloat64(BackendRetries.WithLabelValues("m-test")))
}

func TestObserveVerification(t *testing.T) {
	c := Verifications.WithLabelValues("test", "unavailable")
	before := testutil.ToFloat64(c)
	ObserveVerification("test", verify.StatusUnavailable, time.Now())
	assert.Equal(t, before+1, testutil.ToFloat64(c))
}
