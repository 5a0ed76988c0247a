package handle

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"coupon-market/api/internal/store"
	"coupon-market/api/internal/verify"
)

const (
	DefaultTimeout   = 90 * time.Second
	DefaultMaxUpload = 10 << 20
)

// Verifier runs one coupon verification.
type Verifier interface {
	Verify(ctx context.Context, req verify.Request) (verify.Result, error)
}

// CouponLookup resolves the listed code of a coupon.
type CouponLookup interface {
	Code(ctx context.Context, id string) (string, error)
}

// AuditLog stores finished verifications.
type AuditLog interface {
	Insert(ctx context.Context, v store.Verification) (uuid.UUID, error)
}

type Handle struct {
	verifier  Verifier
	coupons   CouponLookup
	audit     AuditLog
	timeout   time.Duration
	maxUpload int64
	validate  *validator.Validate
}

type Option func(*Handle)

func WithCoupons(c CouponLookup) Option { return func(h *Handle) { h.coupons = c } }
func WithAudit(a AuditLog) Option       { return func(h *Handle) { h.audit = a } }

// WithTimeout sets the default request deadline; X-Request-Timeout overrides it.
func WithTimeout(d time.Duration) Option {
	return func(h *Handle) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// WithMaxUpload limits the request body size.
func WithMaxUpload(n int64) Option {
	return func(h *Handle) {
		if n > 0 {
			h.maxUpload = n
		}
	}
}

func New(v Verifier, opts ...Option) *Handle {
	h := &Handle{
		verifier:  v,
		timeout:   DefaultTimeout,
		maxUpload: DefaultMaxUpload,
		validate:  validator.New(),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// deadline reads X-Request-Timeout (or ?timeoutSec=) in seconds. The
// value can only shorten the configured timeout.
func (h *Handle) deadline(r *http.Request) time.Duration {
	ts := r.Header.Get("X-Request-Timeout")
	if ts == "" {
		ts = r.URL.Query().Get("timeoutSec")
	}
	v, err := strconv.ParseInt(ts, 10, 64)
	if err != nil || v <= 0 || v >= int64(h.timeout/time.Second) {
		return h.timeout
	}
	return time.Duration(v) * time.Second
}
