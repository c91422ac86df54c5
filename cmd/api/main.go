package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/contexta-ingest/internal/app"
	"github.com/markdave123-py/contexta-ingest/internal/config"
	"github.com/markdave123-py/contexta-ingest/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()
	logger.SetDefault(logger.New(cfg.Environment))
	if err := cfg.Validate(); err != nil {
		logger.FatalErr(err, "invalid configuration")
	}

	application, err := app.NewApp(ctx, cfg)
	if err != nil {
		logger.FatalErr(err, "startup failed")
	}
	defer application.Close()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(application.Server.Start)

	if cfg.WorkerEnabled {
		g.Go(func() error {
			return application.Poller.Start(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		application.Poller.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return application.Server.Shutdown(shutdownCtx)
	})

	logger.Info("contexta ingest is running", "port", cfg.Port, "worker", cfg.WorkerEnabled)
	if err := g.Wait(); err != nil {
		logger.ErrorErr(err, "server stopped with error")
		return
	}
	logger.Info("shutdown complete")
}
