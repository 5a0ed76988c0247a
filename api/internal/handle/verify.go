package handle

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"coupon-market/api/internal/logger"
	"coupon-market/api/internal/metrics"
	"coupon-market/api/internal/store"
	"coupon-market/api/internal/util"
	"coupon-market/api/internal/verify"
)

const source = "http"

// VerifyUpload handles the multipart form of POST /api/verify-coupon:
// file, expectedCode and an optional couponId.
func (h *Handle) VerifyUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		rejectBody(w, err)
		return
	}

	var (
		data     []byte
		declared string
	)
	if f, hdr, err := r.FormFile("file"); err == nil {
		defer f.Close()
		if data, err = io.ReadAll(f); err != nil {
			rejectBody(w, err)
			return
		}
		declared = hdr.Header.Get("Content-Type")
	}

	h.run(w, r, runInput{
		Image:        data,
		MIMEType:     declared,
		ExpectedCode: r.FormValue("expectedCode"),
		CouponID:     r.FormValue("couponId"),
	})
}

type verifyJSON struct {
	// Image is base64 or a data: URL.
	Image        string `json:"image" validate:"required"`
	MIME         string `json:"mime"`
	ExpectedCode string `json:"expected_code" validate:"required_without=CouponID"`
	CouponID     string `json:"coupon_id"`
}

// VerifyJSON handles POST /v1/verify.
func (h *Handle) VerifyJSON(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	var req verifyJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rejectBody(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		code, body := invalid(msgMissing)
		writeJSON(w, code, body)
		return
	}
	img, hint, err := util.DecodeBase64MaybeDataURL(req.Image)
	if err != nil {
		code, body := invalid("bad image: " + err.Error())
		writeJSON(w, code, body)
		return
	}
	h.run(w, r, runInput{
		Image:        img,
		MIMEType:     util.PickMIME(req.MIME, hint),
		ExpectedCode: req.ExpectedCode,
		CouponID:     req.CouponID,
	})
}

type runInput struct {
	Image        []byte
	MIMEType     string
	ExpectedCode string
	CouponID     string
}

func (h *Handle) run(w http.ResponseWriter, r *http.Request, in runInput) {
	started := time.Now()
	ctx, cancel := context.WithTimeout(r.Context(), h.deadline(r))
	defer cancel()
	log := logger.C(ctx).With().Str("component", "handle").Logger()

	if len(in.Image) == 0 {
		code, body := invalid(msgMissing)
		writeJSON(w, code, body)
		return
	}
	expected, code, body, ok := h.resolveCode(ctx, in)
	if !ok {
		writeJSON(w, code, body)
		return
	}

	res, err := h.verifier.Verify(ctx, verify.Request{
		Image:        in.Image,
		MIMEType:     in.MIMEType,
		ExpectedCode: expected,
	})
	code, body = buildResponse(expected, res, err)
	metrics.ObserveVerification(source, body.Status, started)
	if err != nil {
		log.Warn().Err(err).Str("status", string(body.Status)).Msg("verification failed")
	}
	h.record(ctx, in.CouponID, expected, body.Status, res, err)
	writeJSON(w, code, body)
}

// resolveCode picks the code to look for. With a coupon store the listed
// code of CouponID wins over a code sent by the client.
func (h *Handle) resolveCode(ctx context.Context, in runInput) (string, int, Response, bool) {
	id := strings.TrimSpace(in.CouponID)
	if id == "" || h.coupons == nil {
		if strings.TrimSpace(in.ExpectedCode) == "" {
			code, body := invalid(msgMissing)
			return "", code, body, false
		}
		return in.ExpectedCode, 0, Response{}, true
	}

	listed, err := h.coupons.Code(ctx, id)
	switch {
	case err == nil:
		return listed, 0, Response{}, true
	case store.IsNotFound(err):
		return "", http.StatusNotFound, Response{Status: verify.StatusInvalid, Message: msgNoCoupon}, false
	default:
		logger.C(ctx).Error().Err(err).Str("coupon_id", id).Msg("coupon lookup failed")
		return "", http.StatusServiceUnavailable, Response{
			Status:  verify.StatusUnavailable,
			Message: msgUnavailable,
			Debug:   []string{"coupon lookup: " + err.Error()},
		}, false
	}
}

// record writes the audit row. It must outlive a cancelled request.
func (h *Handle) record(ctx context.Context, couponID, code string, status verify.Status, res verify.Result, err error) {
	if h.audit == nil {
		return
	}
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if _, ierr := h.audit.Insert(actx, store.Verification{
		RequestID:    logger.RequestID(ctx),
		Source:       source,
		CouponID:     strings.TrimSpace(couponID),
		ExpectedCode: code,
		Status:       status,
		Result:       res,
		Attempts:     verify.AttemptsOf(res, err),
	}); ierr != nil {
		logger.C(ctx).Error().Err(ierr).Msg("audit insert failed")
	}
}

func rejectBody(w http.ResponseWriter, err error) {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		writeJSON(w, http.StatusRequestEntityTooLarge, Response{Status: verify.StatusInvalid, Message: "upload too large"})
		return
	}
	code, body := invalid("bad request body: " + err.Error())
	writeJSON(w, code, body)
}
