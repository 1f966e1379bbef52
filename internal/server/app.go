// Package server initializes and runs the main application server: it wires
// the storage manager, metrics and the HTTP adapter together, maps the
// engine's operations onto a JSON-over-HTTP API, and handles graceful
// shutdown on SIGINT/SIGTERM. The engine itself stays transport-agnostic.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrijs2005/chunksync/internal/blobstore"
	"github.com/dmitrijs2005/chunksync/internal/logging"
	"github.com/dmitrijs2005/chunksync/internal/metrics"
	"github.com/dmitrijs2005/chunksync/internal/server/config"
	"github.com/dmitrijs2005/chunksync/internal/storage"
)

// shutdownGrace bounds how long in-flight requests may drain after a
// termination signal.
const shutdownGrace = 10 * time.Second

type App struct {
	config  *config.Config
	logger  logging.Logger
	manager *storage.Manager
	api     *API
}

func NewApp(c *config.Config) (*App, error) {
	sl := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(sl)

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	broadcaster := NewBroadcaster()

	var blobOpts []blobstore.Option
	if c.VerifyChunkReads {
		blobOpts = append(blobOpts, blobstore.WithVerifyOnRead())
	}

	manager, err := storage.NewManager(c.StorageRoot, logger, m,
		storage.WithPublisher(broadcaster),
		storage.WithBlobOptions(blobOpts...),
	)
	if err != nil {
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	api := NewAPI(manager, broadcaster, registry, logger, c.EventPollTimeout)

	return &App{config: c, logger: logger, manager: manager, api: api}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves HTTP until the context is cancelled or a termination signal
// arrives, then drains in-flight requests and closes the stores.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.initSignalHandler(cancelFunc)

	srv := &http.Server{
		Addr:    app.config.EndpointAddr,
		Handler: app.api.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info(ctx, "starting HTTP server",
			"address", app.config.EndpointAddr, "root", app.config.StorageRoot)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	app.logger.Info(ctx, "stopping HTTP server...")
	shutdownCtx, release := context.WithTimeout(context.Background(), shutdownGrace)
	defer release()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(ctx, "shutdown error", "error", err.Error())
	}

	if err := app.manager.Close(); err != nil {
		app.logger.Error(ctx, "close stores", "error", err.Error())
	}
	return nil
}
