package verify

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/go-playground/validator/v10"

	"coupon-market/api/internal/coupon"
	"coupon-market/api/internal/logger"
	"coupon-market/api/internal/util"
)

const (
	DefaultBackoff        = 1 * time.Second
	DefaultBackendTimeout = 30 * time.Second
)

// Verifier checks coupon screenshots against an ordered list of backends.
// It holds no per-request state and is safe for concurrent use.
type Verifier struct {
	backends       []Backend
	backoff        time.Duration
	backendTimeout time.Duration
	observe        func(Attempt)
	validate       *validator.Validate
}

type Option func(*Verifier)

// WithBackoff sets the pause before the single retry of a transient failure.
func WithBackoff(d time.Duration) Option {
	return func(v *Verifier) { v.backoff = d }
}

// WithBackendTimeout bounds each individual backend call. Zero disables it.
func WithBackendTimeout(d time.Duration) Option {
	return func(v *Verifier) { v.backendTimeout = d }
}

// WithObserver registers a callback invoked once per finished Attempt.
func WithObserver(fn func(Attempt)) Option {
	return func(v *Verifier) { v.observe = fn }
}

// New builds a Verifier. backends are tried in the given order.
func New(backends []Backend, opts ...Option) *Verifier {
	v := &Verifier{
		backends:       append([]Backend(nil), backends...),
		backoff:        DefaultBackoff,
		backendTimeout: DefaultBackendTimeout,
		validate:       validator.New(),
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Models returns the candidate identifiers in priority order.
func (v *Verifier) Models() []string {
	out := make([]string, 0, len(v.backends))
	for _, b := range v.backends {
		out = append(out, b.ID())
	}
	return out
}

// Verify runs the candidates in order until one produces a readable answer.
//
// Errors: *InputError before any backend is called, *AmbiguousResponseError
// when the first answering backend returned something that is not a verdict,
// *ExhaustionError when no backend answered.
func (v *Verifier) Verify(ctx context.Context, req Request) (Result, error) {
	img, err := v.prepare(req)
	if err != nil {
		return Result{}, err
	}
	log := logger.C(ctx).With().Str("component", "verify").Logger()

	attempts := make([]Attempt, 0, len(v.backends))
	for _, b := range v.backends {
		if err := ctx.Err(); err != nil {
			return Result{}, &ExhaustionError{Attempts: attempts, Err: err}
		}

		started := time.Now()
		reply, calls, err := v.call(ctx, b, img, req.ExpectedCode)
		a := Attempt{Model: b.ID(), Retried: calls > 1, Duration: time.Since(started)}

		if err != nil {
			a.Outcome = OutcomePermanent
			if IsTransient(err) {
				a.Outcome = OutcomeTransient
			}
			a.Detail = err.Error()
			attempts = append(attempts, a)
			v.finish(a)
			log.Warn().Err(err).Str("model", a.Model).Str("outcome", string(a.Outcome)).
				Bool("retried", a.Retried).Dur("took", a.Duration).Msg("backend failed")
			continue
		}

		res, err := interpret(b.ID(), reply, req.ExpectedCode)
		if err != nil {
			a.Outcome = OutcomeAmbiguous
			a.Detail = err.Error()
			attempts = append(attempts, a)
			v.finish(a)
			log.Warn().Err(err).Str("model", a.Model).Msg("backend response not understood")
			var amb *AmbiguousResponseError
			if errors.As(err, &amb) {
				amb.Attempts = attempts
			}
			return Result{}, err
		}

		a.Outcome = OutcomeSuccess
		attempts = append(attempts, a)
		v.finish(a)
		res.Attempts = attempts
		log.Info().Str("model", a.Model).Bool("found", res.Found).Str("confidence", string(res.Confidence)).
			Dur("took", a.Duration).Msg("verification done")
		return res, nil
	}
	return Result{}, &ExhaustionError{Attempts: attempts}
}

// call invokes b, retrying once after the backoff if the failure is transient.
// It reports how many times the backend was called.
func (v *Verifier) call(ctx context.Context, b Backend, img Image, code string) (Reply, int, error) {
	var (
		reply Reply
		calls int
	)
	err := retry.Do(
		func() error {
			calls++
			cctx, cancel := v.callContext(ctx)
			defer cancel()
			r, err := b.Recognize(cctx, img, code)
			if err != nil {
				return err
			}
			reply = r
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(2),
		retry.Delay(v.backoff),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(IsTransient),
		retry.OnRetry(func(n uint, err error) {
			if n == 0 {
				logger.C(ctx).Debug().Str("model", b.ID()).Dur("backoff", v.backoff).Msg("transient failure, retrying")
			}
		}),
	)
	return reply, calls, err
}

func (v *Verifier) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if v.backendTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, v.backendTimeout)
}

func (v *Verifier) finish(a Attempt) {
	if v.observe != nil {
		v.observe(a)
	}
}

// prepare validates req and resolves the image MIME type.
func (v *Verifier) prepare(req Request) (Image, error) {
	if err := v.validate.Struct(req); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			return Image{}, &InputError{Field: fieldName(ve[0].Field()), Reason: "failed " + ve[0].Tag()}
		}
		return Image{}, &InputError{Field: "request", Reason: err.Error()}
	}
	if coupon.Normalize(req.ExpectedCode) == "" {
		return Image{}, &InputError{Field: "expectedCode", Reason: "blank"}
	}
	mime, ok := util.ImageMIME(req.MIMEType, req.Image)
	if !ok {
		return Image{}, &InputError{Field: "image", Reason: "not a readable image"}
	}
	return Image{Data: req.Image, MIMEType: mime}, nil
}

func fieldName(f string) string {
	switch f {
	case "Image":
		return "image"
	case "MIMEType":
		return "mimeType"
	case "ExpectedCode":
		return "expectedCode"
	}
	return f
}

// interpret turns a backend reply into a Result. Plain text is matched
// locally; verdicts are parsed and re-checked against the same rules.
func interpret(model string, reply Reply, code string) (Result, error) {
	if !reply.Verdict {
		return Result{
			Found:         coupon.Evaluate(code, reply.Text),
			ExtractedText: reply.Text,
			Confidence:    confidenceFromScore(reply.Score),
			Model:         model,
		}, nil
	}
	res, err := ParseVerdict(reply.Text)
	if err != nil {
		return Result{}, &AmbiguousResponseError{Model: model, Raw: StripCodeFences(reply.Text), Err: err}
	}
	res.Found = res.Found || coupon.Evaluate(code, res.ExtractedText)
	res.Model = model
	return res, nil
}
