// Command verifyctl checks coupon screenshots from the shell with the same
// candidate list the API uses.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"coupon-market/api/internal/app"
	"coupon-market/api/internal/config"
	"coupon-market/api/internal/engines"
	"coupon-market/api/internal/logger"
	"coupon-market/api/internal/store"
	"coupon-market/api/internal/verify"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("verifyctl failed")
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "verifyctl",
		Usage: "verify coupon screenshots against the configured models",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "models", Usage: "override VERIFY_MODELS"},
		},
		Commands: []*cli.Command{
			checkCommand(),
			modelsCommand(),
			historyCommand(),
		},
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if m := c.StringSlice("models"); len(m) > 0 {
		cfg.Models = m
	}
	logger.Init(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "verifyctl", Writer: c.App.ErrWriter})
	return cfg, nil
}

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:      "check",
		Usage:     "verify one or more screenshots",
		ArgsUsage: "<screenshot>...",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "code", Usage: "code the screenshot should show"},
			&cli.StringFlag{Name: "coupon", Usage: "look the code up by coupon id"},
		},
		Action: check,
	}
}

type checkLine struct {
	File   string         `json:"file"`
	Status verify.Status  `json:"status"`
	Result *verify.Result `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
	Debug  []string       `json:"debug,omitempty"`
}

func check(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("no screenshot given", 2)
	}
	code, coupon := c.String("code"), c.String("coupon")
	if code == "" && coupon == "" {
		return cli.Exit("--code or --coupon is required", 2)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	a, err := app.New(c.Context, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if coupon != "" {
		if a.Coupons == nil {
			return cli.Exit("--coupon needs DATABASE_URL", 2)
		}
		if code, err = a.Coupons.Code(c.Context, coupon); err != nil {
			if store.IsNotFound(err) {
				return cli.Exit("coupon "+coupon+" not found", 1)
			}
			return err
		}
	}

	enc := json.NewEncoder(c.App.Writer)
	failed := 0
	for _, path := range c.Args().Slice() {
		line := checkLine{File: path}
		data, err := os.ReadFile(path)
		if err != nil {
			line.Status, line.Error = verify.StatusInvalid, err.Error()
		} else {
			line = verifyFile(c.Context, a.Verifier, cfg, path, data, code)
		}
		if line.Status != verify.StatusVerified {
			failed++
		}
		if err := enc.Encode(line); err != nil {
			return err
		}
	}
	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d screenshots not verified", failed, c.NArg()), 1)
	}
	return nil
}

func verifyFile(ctx context.Context, v *verify.Verifier, cfg *config.Config, path string, data []byte, code string) checkLine {
	ctx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()

	res, err := v.Verify(ctx, verify.Request{Image: data, ExpectedCode: code})
	line := checkLine{File: path, Status: verify.StatusOf(res, err)}
	if err != nil {
		line.Error = err.Error()
		var ex *verify.ExhaustionError
		if errors.As(err, &ex) {
			line.Debug = ex.Details()
		}
		return line
	}
	line.Result = &res
	return line
}

func modelsCommand() *cli.Command {
	return &cli.Command{
		Name:  "models",
		Usage: "print the usable candidates in priority order",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			backends, err := engines.Build(cfg)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			for _, b := range backends {
				fmt.Fprintln(c.App.Writer, b.ID())
			}
			return nil
		},
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "show the latest recorded verification of a coupon",
		ArgsUsage: "<coupon-id>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("exactly one coupon id expected", 2)
			}
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			dsn := store.ResolveDSN(cfg.DatabaseURL)
			if dsn == "" {
				return cli.Exit("history needs DATABASE_URL", 2)
			}
			db, err := store.Open(c.Context, dsn)
			if err != nil {
				return err
			}
			defer db.Close()

			v, err := store.NewVerificationRepo(db).LatestForCoupon(c.Context, c.Args().First())
			if store.IsNotFound(err) {
				return cli.Exit("no verifications recorded", 1)
			}
			if err != nil {
				return err
			}
			enc := json.NewEncoder(c.App.Writer)
			enc.SetIndent("", "  ")
			return enc.Encode(v)
		},
	}
}
