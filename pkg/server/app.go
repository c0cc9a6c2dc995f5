package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"optionscan/internal/domain/repository"
	"optionscan/internal/service/corr"
	"optionscan/internal/service/gateway"
	"optionscan/internal/usecase"
	pkgch "optionscan/pkg/clickhouse"
	"optionscan/pkg/config"
	xhttp "optionscan/pkg/http"
	applogger "optionscan/pkg/logger"
)

// App encapsulates the entire application lifecycle: gateway connection,
// scan loop, ops HTTP server, and graceful teardown.
type App struct {
	cfg     *config.Config
	gw      *gateway.Client
	engine  *corr.Engine
	scanner *usecase.Scanner
	log     *applogger.Logger

	chClient  *pkgch.Client        // nil when persistence is disabled
	publisher repository.Publisher // nil when no topic is configured

	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	gw *gateway.Client,
	engine *corr.Engine,
	scanner *usecase.Scanner,
	log *applogger.Logger,
) *App {
	return &App{
		cfg:     cfg,
		gw:      gw,
		engine:  engine,
		scanner: scanner,
		log:     log,
	}
}

// SetHTTPHandler allows DI to inject the ops HTTP handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// SetClickHouse attaches the ClickHouse client for teardown.
func (a *App) SetClickHouse(c *pkgch.Client) { a.chClient = c }

// SetPublisher attaches the signal publisher for teardown.
func (a *App) SetPublisher(p repository.Publisher) { a.publisher = p }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.httpHandler, a.log,
		xhttp.WithPort(a.cfg.Ops.Port),
		xhttp.WithTimeouts(a.cfg.Ops.ReadTimeout, a.cfg.Ops.WriteTimeout, a.cfg.Ops.ShutdownTimeout),
	)

	// Initial dial. On failure hand the error to the engine so its
	// reconnect loop takes over instead of aborting startup.
	if err := a.gw.Connect(); err != nil {
		a.log.Warn("initial gateway connect failed, reconnecting",
			applogger.String("url", a.cfg.Gateway.URL),
			applogger.Error(err))
		a.engine.OnDisconnected(err)
	} else {
		a.log.Info("gateway connected", applogger.String("url", a.cfg.Gateway.URL))
	}

	scanErr := make(chan error, 1)
	go func() {
		scanErr <- a.scanner.Run(ctx)
	}()
	a.log.Info("scanner started",
		applogger.Strings("watchlist", a.cfg.Scanner.Watchlist),
		applogger.Duration("interval", a.cfg.Scanner.Interval))

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.log.Info("shutdown signal received", applogger.String("signal", sig.String()))
	case err := <-scanErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			a.log.Error("scanner stopped", applogger.Error(err))
			a.shutdown(cancel)
			return err
		}
		a.log.Info("scanner finished")
	}

	a.shutdown(cancel)
	return nil
}

// shutdown gracefully stops all services.
func (a *App) shutdown(cancel context.CancelFunc) {
	a.log.Info("shutting down...")
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), a.cfg.Ops.ShutdownTimeout)
	defer stop()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Warn("http shutdown error", applogger.Error(err))
	}

	if err := a.gw.Close(); err != nil {
		a.log.Warn("gateway close error", applogger.Error(err))
	}

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.log.Warn("publisher close error", applogger.Error(err))
		}
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
}
