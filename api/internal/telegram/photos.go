package telegram

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	xdraw "golang.org/x/image/draw"

	"coupon-market/api/internal/logger"
	"coupon-market/api/internal/metrics"
	"coupon-market/api/internal/store"
	"coupon-market/api/internal/verify"
)

const source = "telegram"

// imageFileID picks the largest photo size, or an image sent as a file.
func imageFileID(msg *tgbotapi.Message) (string, bool) {
	if n := len(msg.Photo); n > 0 {
		return msg.Photo[n-1].FileID, true
	}
	if d := msg.Document; d != nil && strings.HasPrefix(strings.ToLower(d.MimeType), "image/") {
		return d.FileID, true
	}
	return "", false
}

func (r *Router) acceptImage(ctx context.Context, msg *tgbotapi.Message, fileID string) {
	cid := msg.Chat.ID
	t, _ := ParseCaption(msg.Caption)

	if msg.MediaGroupID == "" {
		if t.Empty() {
			t, _ = getPending(cid)
		}
		if t.Empty() {
			r.send(cid, "Which code should I look for? Resend the screenshot with the code as caption, or use /code <CODE>.")
			return
		}
		clearPending(cid)
		r.processImages(ctx, cid, []string{fileID}, t)
		return
	}

	// albums arrive as separate updates; the caption sits on one of them
	key := "grp:" + msg.MediaGroupID
	bi, _ := batches.LoadOrStore(key, &photoBatch{ChatID: cid, Key: key, MediaGroupID: msg.MediaGroupID})
	b := bi.(*photoBatch)

	b.mu.Lock()
	b.fileIDs = append(b.fileIDs, fileID)
	if b.target.Empty() {
		b.target = t
	}
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(debounce, func() { r.processBatch(context.WithoutCancel(ctx), key) })
	b.mu.Unlock()
}

func (r *Router) processBatch(ctx context.Context, key string) {
	bi, ok := batches.LoadAndDelete(key)
	if !ok {
		return
	}
	b := bi.(*photoBatch)

	b.mu.Lock()
	ids := append([]string(nil), b.fileIDs...)
	t := b.target
	chatID := b.ChatID
	b.mu.Unlock()

	if t.Empty() {
		t, _ = getPending(chatID)
	}
	if t.Empty() {
		r.send(chatID, "Which code should I look for? Resend the screenshots with the code as caption.")
		return
	}
	clearPending(chatID)
	r.processImages(ctx, chatID, ids, t)
}

// processImages checks each screenshot in turn and stops at the first one
// that shows the code.
func (r *Router) processImages(ctx context.Context, chatID int64, fileIDs []string, t Target) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	log := logger.C(ctx).With().Str("component", "telegram").Int64("chat_id", chatID).Logger()

	code, problem := r.resolveCode(ctx, t)
	if problem != "" {
		r.send(chatID, problem)
		return
	}

	var best outcome
	for i, id := range fileIDs {
		started := time.Now()
		img, err := r.fetch(ctx, id)
		if err != nil {
			log.Warn().Err(err).Str("file_id", id).Msg("download failed")
			best = best.keep(outcome{status: verify.StatusUnavailable, err: fmt.Errorf("download: %w", err)})
			continue
		}
		res, err := r.Verifier.Verify(ctx, verify.Request{Image: img, ExpectedCode: code})
		o := outcome{status: verify.StatusOf(res, err), res: res, err: err}
		metrics.ObserveVerification(source, o.status, started)
		r.record(ctx, t.CouponID, code, o)
		log.Info().Int("image", i+1).Str("status", string(o.status)).Msg("screenshot checked")

		best = best.keep(o)
		if o.status == verify.StatusVerified {
			break
		}
	}
	r.send(chatID, formatReply(code, best))
}

// resolveCode turns the target into a code. problem is a message for the
// user when that is not possible.
func (r *Router) resolveCode(ctx context.Context, t Target) (code, problem string) {
	if t.CouponID == "" {
		return t.Code, ""
	}
	if r.Coupons == nil {
		return "", "Coupon lookup is not available here, send the code itself."
	}
	code, err := r.Coupons.Code(ctx, t.CouponID)
	switch {
	case store.IsNotFound(err):
		return "", "Coupon " + t.CouponID + " not found."
	case err != nil:
		logger.C(ctx).Error().Err(err).Str("coupon_id", t.CouponID).Msg("coupon lookup failed")
		return "", "Coupon lookup failed, please try again later."
	}
	return code, ""
}

func (r *Router) record(ctx context.Context, couponID, code string, o outcome) {
	if r.Audit == nil {
		return
	}
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if _, err := r.Audit.Insert(actx, store.Verification{
		RequestID:    logger.RequestID(ctx),
		Source:       source,
		CouponID:     couponID,
		ExpectedCode: code,
		Status:       o.status,
		Result:       o.res,
		Attempts:     verify.AttemptsOf(o.res, o.err),
	}); err != nil {
		logger.C(ctx).Error().Err(err).Msg("audit insert failed")
	}
}

// fetch downloads a Telegram file and shrinks oversized images.
func (r *Router) fetch(ctx context.Context, fileID string) ([]byte, error) {
	url, err := r.Bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, err
	}
	b, err := download(ctx, r.httpClient(), url)
	if err != nil {
		return nil, err
	}
	return shrink(b)
}

func (r *Router) httpClient() *http.Client {
	if r.HTTP != nil {
		return r.HTTP
	}
	return &http.Client{Timeout: 60 * time.Second}
}

func download(ctx context.Context, c *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxFile+1))
	if err != nil {
		return nil, err
	}
	if len(b) > maxFile {
		return nil, fmt.Errorf("file larger than %d bytes", maxFile)
	}
	return b, nil
}

// shrink re-encodes images above maxPixels as JPEG. Anything it cannot
// decode is passed through for the verifier to judge.
func shrink(b []byte) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(b))
	if err != nil {
		return b, nil
	}
	total := cfg.Width * cfg.Height
	if total <= maxPixels {
		return b, nil
	}
	src, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return b, nil
	}
	scale := math.Sqrt(float64(maxPixels) / float64(total))
	w := max(1, int(float64(cfg.Width)*scale))
	h := max(1, int(float64(cfg.Height)*scale))
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, dst, &jpeg.Options{Quality: 90}); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
