package main

import (
	"context"
	"errors"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/chessbuilder"
	appcfg "github.com/park285/cheese-arena/internal/config"
	"github.com/park285/cheese-arena/internal/obslog"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer obslog.Sync()
	logger := obslog.L()

	cfg, err := appcfg.Load()
	if err != nil {
		logger.Fatal("config_error", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := chessbuilder.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("init_error", zap.Error(err))
	}

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go deps.Registry.RunSweeper(sweepCtx, cfg.SweepInterval)

	ln, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		logger.Fatal("listen_error", zap.String("addr", cfg.HTTPAddr), zap.Error(err))
	}
	serveErr := make(chan error, 1)
	go func() { serveErr <- deps.App.Listener(ln) }()
	logger.Info("server_started",
		zap.String("addr", ln.Addr().String()),
		zap.String("match_policy", cfg.MatchPolicy),
		zap.Int("ai_workers", cfg.AIWorkers),
		zap.Bool("postgres", deps.DB != nil),
		zap.Bool("notify", cfg.NotifyURL != ""),
	)

	select {
	case <-ctx.Done():
		logger.Info("shutdown_signal")
	case err := <-serveErr:
		if err != nil && !errors.Is(err, net.ErrClosed) {
			logger.Error("serve_error", zap.Error(err))
		}
	}

	stopSweep()
	if err := deps.App.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("http_shutdown", zap.Error(err))
	}
	if err := deps.Close(shutdownTimeout); err != nil {
		logger.Warn("deps_close", zap.Error(err))
	}
	logger.Info("server_stopped")
	if ctx.Err() == nil {
		obslog.Sync()
		os.Exit(1)
	}
}
