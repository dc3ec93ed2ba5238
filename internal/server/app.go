// Package server wires the ReembolsAí HTTP service together: storage
// backend, mail transport, rate limiter, PDF archive and the HTTP router,
// and runs it until the process is asked to stop.
package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrijs2005/reembolsai/internal/logging"
	"github.com/dmitrijs2005/reembolsai/internal/server/archive"
	"github.com/dmitrijs2005/reembolsai/internal/server/config"
	"github.com/dmitrijs2005/reembolsai/internal/server/httpx"
	"github.com/dmitrijs2005/reembolsai/internal/server/mailer"
	"github.com/dmitrijs2005/reembolsai/internal/server/pdf"
	"github.com/dmitrijs2005/reembolsai/internal/server/ratelimit"
	"github.com/dmitrijs2005/reembolsai/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/reembolsai/internal/server/services"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	repomanager repomanager.RepositoryManager
	limiter     ratelimit.Limiter
	router      *httpx.Router
}

// OpenStore selects the storage backend: PostgreSQL when a DSN is set,
// otherwise the JSON document at DataFile. Migrations are applied.
func OpenStore(ctx context.Context, c *config.Config, logger logging.Logger) (repomanager.RepositoryManager, error) {
	var (
		m   repomanager.RepositoryManager
		err error
	)
	if c.DatabaseDSN != "" {
		logger.Info(ctx, "using PostgreSQL store")
		m, err = repomanager.NewPostgresRepositoryManager(c.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
	} else {
		logger.Info(ctx, "using JSON document store", "path", c.DataFile)
		m = repomanager.NewDocumentRepositoryManager(c.DataFile)
	}

	if err := m.RunMigrations(ctx); err != nil {
		_ = m.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return m, nil
}

func newLimiter(ctx context.Context, c *config.Config, logger logging.Logger) (ratelimit.Limiter, error) {
	if c.RedisAddr == "" {
		return ratelimit.NewMemory(c.ResendCooldown, ratelimit.DefaultMaxKeys), nil
	}
	l, err := ratelimit.NewRedis(ctx, &redis.Options{
		Addr:     c.RedisAddr,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}, c.ResendCooldown, logger)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func newArchiver(ctx context.Context, c *config.Config, logger logging.Logger) archive.Archiver {
	if c.S3Bucket == "" {
		return archive.Noop{}
	}
	a, err := archive.NewS3Archiver(ctx, archive.Config{
		Region:       c.S3Region,
		User:         c.S3RootUser,
		Password:     c.S3RootPassword,
		BaseEndpoint: c.S3BaseEndpoint,
		Bucket:       c.S3Bucket,
	})
	if err != nil {
		logger.Warn(ctx, "pdf archive disabled", "error", err)
		return archive.Noop{}
	}
	return a
}

func newTransport(ctx context.Context, c *config.Config, logger logging.Logger) mailer.Transport {
	if !c.MailConfigured() {
		logger.Warn(ctx, "smtp not configured, registration will fail until it is")
		return mailer.Disabled{}
	}
	return mailer.NewSMTPTransport(mailer.SMTPConfig{
		Host:     c.SMTPHost,
		Port:     c.SMTPPort,
		User:     c.SMTPUser,
		Password: c.SMTPPassword,
		From:     c.EmailFrom,
		Timeout:  c.SMTPTimeout,
	})
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	m, err := OpenStore(ctx, c, logger)
	if err != nil {
		return nil, err
	}

	limiter, err := newLimiter(ctx, c, logger)
	if err != nil {
		_ = m.Close()
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	notifier := mailer.NewNotifier(newTransport(ctx, c, logger), c.AppURL, logger)

	us := services.NewUserService(m, notifier, limiter, c, logger)
	rs := services.NewReimbursementService(m, pdf.NewRenderer(), newArchiver(ctx, c, logger), logger)

	router := httpx.NewRouter(logger, us, rs, notifier, httpx.Options{
		SecureCookies: c.SecureCookies,
		StaticDir:     c.StaticDir,
		Health:        m.Ping,
	})

	return &App{config: c, logger: logger, repomanager: m, limiter: limiter, router: router}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves HTTP until a termination signal arrives or ctx is canceled,
// then releases the store and the limiter.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	runErr := httpx.NewServer(app.config.HTTPAddr, app.router, app.logger).Run(ctx)
	if runErr != nil {
		app.logger.Error(ctx, "http server stopped", "error", runErr)
	}

	closeErr := errors.Join(app.limiter.Close(), app.repomanager.Close())
	app.logger.Info(ctx, "App stopped")
	return errors.Join(runErr, closeErr)
}
