// Package server assembles the gophauth application: storage backends, the
// OTP store, mailer, token issuer and auth service, and the HTTP and gRPC
// servers, with graceful shutdown on SIGINT/SIGTERM/SIGQUIT.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/mail"
	"github.com/dmitrijs2005/gophauth/internal/server/otp"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
	"github.com/dmitrijs2005/gophauth/internal/server/rest"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/gophauth/internal/server/grpc"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	registry *prometheus.Registry
	issuer   *auth.Issuer
	auth     *services.AuthService
	closers  []func() error
}

// NewApp builds every component named by c. Resources opened before a
// failure are released.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	return newApp(ctx, c, logging.NewJSONLogger(os.Stdout, c.LogLevel), os.Stderr)
}

// newApp takes the logger and the dev mail sink explicitly.
func newApp(ctx context.Context, c *config.Config, logger logging.Logger, devMail io.Writer) (_ *App, err error) {
	app := &App{config: c, logger: logger}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	store, err := app.openUserStore(ctx)
	if err != nil {
		return nil, err
	}

	otps, err := app.openOTPStore(ctx)
	if err != nil {
		return nil, err
	}

	issuer, err := auth.NewIssuer(auth.IssuerConfig{
		AccessSecret:  c.AccessTokenSecret,
		RefreshSecret: c.RefreshTokenSecret,
		AccessTTL:     c.AccessTokenValidityDuration,
		RefreshTTL:    c.RefreshTokenValidityDuration,
	})
	if err != nil {
		return nil, fmt.Errorf("token issuer init error: %w", err)
	}
	app.issuer = issuer

	svc, err := services.NewAuthService(services.AuthDeps{
		Store:  store,
		Tokens: issuer,
		OTPs:   otps,
		Mailer: app.newMailer(ctx, devMail),
		Logger: logger,
	}, services.WithOTPTTL(c.OTPTTL))
	if err != nil {
		return nil, err
	}
	app.auth = svc

	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return app, nil
}

func (app *App) openUserStore(ctx context.Context) (services.UserStore, error) {
	if app.config.Storage != config.StoragePostgres {
		app.logger.Warn(ctx, "Using in-memory user storage; accounts are lost on restart")
		return users.NewMemoryStore(), nil
	}

	db, err := sql.Open("pgx", app.config.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app.closers = append(app.closers, db.Close)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	m := repomanager.NewPostgresRepositoryManager()
	if err := m.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("db migration error: %w", err)
	}

	return repomanager.NewStore(db, m), nil
}

func (app *App) openOTPStore(ctx context.Context) (otp.Store, error) {
	if app.config.OTPStore != config.OTPRedis {
		return otp.NewMemoryStore(nil), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     app.config.RedisAddr,
		Password: app.config.RedisPassword,
		DB:       app.config.RedisDB,
	})
	app.closers = append(app.closers, client.Close)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis init error: %w", err)
	}

	return otp.NewRedisStore(client, app.config.RedisPrefix, otp.DefaultRetention, nil), nil
}

func (app *App) newMailer(ctx context.Context, devMail io.Writer) services.Mailer {
	r := mail.Renderer{
		AppName: app.config.AppName,
		From:    app.config.MailFrom,
		CodeTTL: app.config.OTPTTL,
	}

	if app.config.SMTPHost == "" {
		app.logger.Warn(ctx, "SMTP host not set; emails are written to the dev sink")
		return mail.NewWriterSender(devMail, r)
	}

	return mail.NewSMTPSender(mail.SMTPConfig{
		Host:       app.config.SMTPHost,
		Port:       app.config.SMTPPort,
		Username:   app.config.SMTPUsername,
		Password:   app.config.SMTPPassword,
		Timeout:    app.config.SMTPTimeout,
		RequireTLS: app.config.SMTPRequireTLS,
	}, r, app.logger)
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigs)
		select {
		case <-sigs:
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

// Run starts the HTTP and gRPC servers and blocks until ctx is cancelled, a
// signal arrives or either server fails. Every server is shut down before it
// returns, and the result joins the errors of all servers that failed.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(ctx, cancelFunc)

	metrics := rest.NewMetrics(app.registry)
	router := rest.NewRouter(rest.NewAuthHandler(app.auth, app.issuer, metrics), app.logger, metrics, app.registry)

	runners := []interface{ Run(context.Context) error }{
		rest.NewHTTPServer(app.config.EndpointAddrHTTP, router, app.logger),
		gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger),
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, r := range runners {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.Run(ctx); err != nil {
				app.logger.Error(ctx, "server failed", "error", err.Error())
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				cancelFunc()
			}
		}()
	}

	wg.Wait()
	app.logger.Info(context.Background(), "App stopped")

	return errors.Join(errs...)
}

// Close releases the database and redis connections.
func (app *App) Close() error {
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		errs = append(errs, app.closers[i]())
	}
	app.closers = nil
	return errors.Join(errs...)
}
