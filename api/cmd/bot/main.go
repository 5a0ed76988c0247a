package main

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"net"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"coupon-market/api/internal/app"
	"coupon-market/api/internal/config"
	"coupon-market/api/internal/httpserver"
	"coupon-market/api/internal/logger"
	"coupon-market/api/internal/telegram"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger.Init(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "verify-bot"})
	log := logger.Named("main")

	if strings.TrimSpace(cfg.TelegramBotToken) == "" {
		log.Fatal().Msg("TELEGRAM_BOT_TOKEN is empty")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer a.Close()

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		log.Fatal().Err(err).Msg("telegram login failed")
	}
	bot.Debug = false

	r := &telegram.Router{
		Bot:      bot,
		Verifier: a.Verifier,
		Models:   a.Verifier.Models(),
		Timeout:  cfg.RequestTimeout,
	}
	if a.DB != nil {
		r.Coupons = a.Coupons
		r.Audit = a.Audit
	}

	rc := httpserver.RoutesConfig{
		Handle:      a.Handle(),
		DB:          a.Pinger(),
		CORSOrigins: cfg.CORSOrigins,
	}

	webhookURL := strings.TrimSpace(cfg.WebhookURL)
	if webhookURL != "" {
		path := "/webhook/" + shortHash(bot.Token)
		if err := registerWebhook(bot, strings.TrimRight(webhookURL, "/")+path); err != nil {
			log.Fatal().Err(err).Msg("set webhook failed")
		}
		rc.Extra = func(m chi.Router) {
			m.Post(path, func(w http.ResponseWriter, req *http.Request) {
				upd, err := bot.HandleUpdate(req)
				if err != nil {
					http.Error(w, err.Error(), http.StatusBadRequest)
					return
				}
				// answer Telegram right away; verification can take a while
				go r.HandleUpdate(context.WithoutCancel(ctx), *upd)
			})
		}
		log.Info().Str("path", path).Msg("webhook mode")
	} else {
		if _, err := bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
			log.Warn().Err(err).Msg("delete webhook failed")
		}
		go runPolling(ctx, bot, func(upd tgbotapi.Update) { r.HandleUpdate(ctx, upd) })
		log.Info().Msg("polling mode")
	}

	srv := httpserver.New(cfg.Addr(), httpserver.Routes(rc))
	if err := srv.Run(ctx); err != nil {
		log.Error().Err(err).Msg("http server stopped")
	}
}

func registerWebhook(bot *tgbotapi.BotAPI, public string) error {
	wh, err := tgbotapi.NewWebhook(public)
	if err != nil {
		return err
	}
	wh.DropPendingUpdates = true
	_, err = bot.Request(wh)
	return err
}

var reRetryAfter = regexp.MustCompile(`(?i)retry after\s+(\d+)`)

func retryDelayFromError(err error) time.Duration {
	if err == nil {
		return 0
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "too many requests") {
		if m := reRetryAfter.FindStringSubmatch(s); len(m) == 2 {
			if n, _ := strconv.Atoi(m[1]); n > 0 {
				return time.Duration(n) * time.Second
			}
		}
		return 3 * time.Second
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return 2 * time.Second
	}
	return 1 * time.Second
}

func clampDelay(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}

// updateSource is the part of *tgbotapi.BotAPI used for long polling.
type updateSource interface {
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
}

func runPolling(ctx context.Context, bot updateSource, handle func(tgbotapi.Update)) {
	log := logger.Named("polling")
	offset := 0
	for {
		if ctx.Err() != nil {
			log.Info().Msg("polling stopped")
			return
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = 30

		updates, err := bot.GetUpdates(u)
		if err != nil {
			d := clampDelay(retryDelayFromError(err), time.Second, 15*time.Second)
			log.Warn().Err(err).Dur("retry_in", d).Msg("polling error")
			sleep(ctx, d)
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			handle(upd)
		}
		if len(updates) == 0 {
			sleep(ctx, 200*time.Millisecond)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// shortHash keeps the bot token out of the webhook path.
func shortHash(s string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return fmt.Sprintf("%016x", h.Sum64())
}
