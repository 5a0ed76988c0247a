// Package app wires configuration, backends and storage for the binaries.
package app

import (
	"context"
	"database/sql"

	"coupon-market/api/internal/config"
	"coupon-market/api/internal/engines"
	"coupon-market/api/internal/handle"
	"coupon-market/api/internal/httpserver"
	"coupon-market/api/internal/logger"
	"coupon-market/api/internal/metrics"
	"coupon-market/api/internal/store"
	"coupon-market/api/internal/verify"
)

type App struct {
	Config   *config.Config
	Verifier *verify.Verifier

	// nil without DATABASE_URL
	DB      *sql.DB
	Coupons *store.CouponRepo
	Audit   *store.VerificationRepo
}

// New builds the verifier from cfg and connects the database when one is configured.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	backends, err := engines.Build(cfg)
	if err != nil {
		return nil, err
	}
	a := &App{
		Config: cfg,
		Verifier: verify.New(backends,
			verify.WithBackoff(cfg.Backoff),
			verify.WithBackendTimeout(cfg.BackendTimeout),
			verify.WithObserver(metrics.ObserveAttempt),
		),
	}

	log := logger.Named("app")
	dsn := store.ResolveDSN(cfg.DatabaseURL)
	if dsn == "" {
		log.Info().Msg("no database configured, coupon lookup and audit log disabled")
		return a, nil
	}
	db, err := store.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	log.Info().Str("db", store.SafeDSNSummary(dsn)).Msg("db connected")
	a.DB = db
	a.Coupons = store.NewCouponRepo(db)
	a.Audit = store.NewVerificationRepo(db)
	return a, nil
}

// Handle returns the HTTP handlers backed by this app.
func (a *App) Handle() *handle.Handle {
	opts := []handle.Option{
		handle.WithTimeout(a.Config.RequestTimeout),
		handle.WithMaxUpload(a.Config.MaxUploadBytes),
	}
	if a.DB != nil {
		opts = append(opts, handle.WithCoupons(a.Coupons), handle.WithAudit(a.Audit))
	}
	return handle.New(a.Verifier, opts...)
}

// Pinger is nil when there is no database.
func (a *App) Pinger() httpserver.Pinger {
	if a.DB == nil {
		return nil
	}
	return a.DB
}

func (a *App) Close() error {
	if a.DB == nil {
		return nil
	}
	return a.DB.Close()
}
