package telegram

import (
	"context"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"coupon-market/api/internal/logger"
	"coupon-market/api/internal/store"
	"coupon-market/api/internal/verify"
)

// Bot is the part of *tgbotapi.BotAPI the router needs.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
}

type Verifier interface {
	Verify(ctx context.Context, req verify.Request) (verify.Result, error)
}

type CouponLookup interface {
	Code(ctx context.Context, id string) (string, error)
}

type AuditLog interface {
	Insert(ctx context.Context, v store.Verification) (uuid.UUID, error)
}

type Router struct {
	Bot      Bot
	Verifier Verifier
	Coupons  CouponLookup // optional
	Audit    AuditLog     // optional

	// Models is shown by /models.
	Models  []string
	Timeout time.Duration
	HTTP    *http.Client
}

const helpText = "Send a screenshot of your coupon with the code as caption, e.g. SAVE20.\n" +
	"Commands:\n" +
	"/code <CODE> - code for the next screenshot\n" +
	"/coupon <ID> - check against a listed coupon\n" +
	"/models - verification models in order\n" +
	"/cancel - forget the pending code"

func (r *Router) HandleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	args := strings.TrimSpace(msg.CommandArguments())
	switch msg.Command() {
	case "start", "help":
		r.send(cid, helpText)
	case "health":
		r.send(cid, "✅ OK")
	case "models":
		if len(r.Models) == 0 {
			r.send(cid, "No verification models configured.")
			return
		}
		r.send(cid, "Models in priority order:\n"+strings.Join(r.Models, "\n"))
	case "code":
		t, ok := ParseCaption(args)
		if !ok || t.Code == "" {
			r.send(cid, "Usage: /code <CODE>")
			return
		}
		setPending(cid, t)
		r.send(cid, "Ok, now send the screenshot for "+t.Code+".")
	case "coupon":
		t, ok := ParseCaption("coupon: " + args)
		if args == "" || !ok || t.CouponID == "" {
			r.send(cid, "Usage: /coupon <ID>")
			return
		}
		setPending(cid, t)
		r.send(cid, "Ok, now send the screenshot for coupon "+t.CouponID+".")
	case "cancel":
		clearPending(cid)
		r.send(cid, "Cancelled.")
	default:
		r.send(cid, "Unknown command. /help")
	}
}

func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	ctx = logger.WithRequestID(ctx, "tg-"+uuid.NewString())

	if msg.IsCommand() {
		r.HandleCommand(ctx, msg)
		return
	}
	if fileID, ok := imageFileID(msg); ok {
		r.acceptImage(ctx, msg, fileID)
		return
	}
	if msg.Text != "" {
		if t, ok := ParseCaption(msg.Text); ok {
			setPending(msg.Chat.ID, t)
			r.send(msg.Chat.ID, "Ok, now send the screenshot.")
		}
	}
}

func (r *Router) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, truncate(text, maxText))
	if _, err := r.Bot.Send(msg); err != nil {
		logger.Named("telegram").Warn().Err(err).Int64("chat_id", chatID).Msg("send failed")
	}
}

// truncate cuts text to at most n bytes on a rune boundary.
func truncate(text string, n int) string {
	if len(text) <= n {
		return text
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "…"
}
