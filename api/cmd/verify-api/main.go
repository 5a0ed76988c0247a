package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"coupon-market/api/internal/app"
	"coupon-market/api/internal/config"
	"coupon-market/api/internal/httpserver"
	"coupon-market/api/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger.Init(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "verify-api"})
	log := logger.Named("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer a.Close()

	srv := httpserver.New(cfg.Addr(), httpserver.Routes(httpserver.RoutesConfig{
		Handle:      a.Handle(),
		DB:          a.Pinger(),
		CORSOrigins: cfg.CORSOrigins,
	}))
	if err := srv.Run(ctx); err != nil {
		log.Error().Err(err).Msg("http server stopped")
	}
}
