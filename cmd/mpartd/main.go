// Command mpartd stores uploaded request bodies and multipart parts on disk.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/me7398/monarch/application/http/actor/server"
	"github.com/me7398/monarch/application/http/actor/upload"
	"github.com/me7398/monarch/application/http/webconn"
	"github.com/me7398/monarch/transport/stream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)

	envErr := godotenv.Load()

	cfg, err := newConfig(env.Options{Prefix: envPrefix})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %s\n", err)
		os.Exit(1)
	}

	logger := newLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	if envErr != nil {
		logger.Warn("no .env file found, using environment variables")
	}

	if err := start(ctx, g, cfg, logger); err != nil {
		logger.Error("mpartd not started", slog.String("error", err.Error()))
		os.Exit(1)
	}

	g.Go(func() error {
		return stopSignalHandler(ctx, cancel, logger)
	})

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("mpartd terminated with error: %s", err))
	} else {
		logger.Info("mpartd stopped")
	}
}

func start(ctx context.Context, g *errgroup.Group, cfg config, logger *slog.Logger) error {
	connCfg, err := webconn.NewConfig(env.Options{Prefix: envConnPrefix})
	if err != nil {
		return err
	}
	connOpts, err := connCfg.Options()
	if err != nil {
		return err
	}
	connOpts.Metrics = webconn.NewMetrics(prometheus.DefaultRegisterer, "mpartd")

	store, err := upload.NewStore(cfg.Dir, logger, upload.NewMetrics(prometheus.DefaultRegisterer, "mpartd"))
	if err != nil {
		return err
	}

	l, err := stream.Listen("tcp", cfg.Address)
	if err != nil {
		return err
	}

	srv := server.New(l, logger, clock.New(), store.Handle, server.Options{
		Conn: connOpts,
		Timeout: server.TimeoutOptions{
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
	})

	g.Go(func() error {
		defer l.Close()
		logger.Info("accepting uploads", slog.String("address", l.Addr().String()), slog.String("dir", cfg.Dir))
		return srv.Serve(ctx)
	})

	g.Go(func() error {
		return serveMetrics(ctx, cfg.MetricsAddress, logger)
	})

	return nil
}

func serveMetrics(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown failed", slog.String("error", err.Error()))
		}
	}()

	logger.Info("serving metrics", slog.String("address", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func stopSignalHandler(ctx context.Context, cancel context.CancelFunc, logger *slog.Logger) error {
	c := make(chan os.Signal, 2)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-c:
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
		return nil
	case <-ctx.Done():
		return nil
	}
}
