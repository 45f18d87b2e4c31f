// Package main is the entry point for cadmatch: it bakes reference views
// of a CAD mesh and scores live frames against them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Faultbox/cadmatch/internal/config"
	"github.com/Faultbox/cadmatch/internal/logger"
)

func main() {
	// Parse CLI flags first
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("=== CADMatch ===")
	logger.Sugar.Debugf("Config: %+v", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Preview.Headless {
		err = runHeadless(ctx, cfg)
	} else {
		err = runPreview(ctx, cfg)
	}
	if err != nil {
		logger.Error("cadmatch failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	logger.Info("cadmatch closed normally")
}
