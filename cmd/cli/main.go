package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dmitrijs2005/reembolsai/internal/cli"
	"github.com/dmitrijs2005/reembolsai/internal/logging"
	"github.com/dmitrijs2005/reembolsai/internal/server"
	"github.com/dmitrijs2005/reembolsai/internal/server/archive"
	"github.com/dmitrijs2005/reembolsai/internal/server/config"
	"github.com/dmitrijs2005/reembolsai/internal/server/mailer"
	"github.com/dmitrijs2005/reembolsai/internal/server/pdf"
	"github.com/dmitrijs2005/reembolsai/internal/server/ratelimit"
	"github.com/dmitrijs2005/reembolsai/internal/server/services"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx := context.Background()
	cfg := config.LoadConfig()
	logger := logging.NewJSONLogger(os.Stderr, "warn")

	m, err := server.OpenStore(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer m.Close()

	limiter := ratelimit.NewMemory(cfg.ResendCooldown, ratelimit.DefaultMaxKeys)
	defer limiter.Close()

	notifier := mailer.NewNotifier(mailer.Disabled{}, cfg.AppURL, logger)
	us := services.NewUserService(m, notifier, limiter, cfg, logger)
	rs := services.NewReimbursementService(m, pdf.NewRenderer(), archive.Noop{}, logger)

	app := cli.NewApp(us, rs, os.Stdin, os.Stdout)
	if err := app.Run(ctx, config.Positional(os.Args[1:])); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, cli.ErrUsage) {
			return 2
		}
		return 1
	}
	return 0
}
