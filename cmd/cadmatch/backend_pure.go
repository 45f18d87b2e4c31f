//go:build purego

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/Faultbox/cadmatch/internal/config"
	"github.com/Faultbox/cadmatch/internal/engine/render"
	"github.com/Faultbox/cadmatch/internal/logger"
	"github.com/Faultbox/cadmatch/internal/pipeline"
	"github.com/Faultbox/cadmatch/internal/vision"
	"github.com/Faultbox/cadmatch/internal/vision/gokit"
)

var errNeedsNative = errors.New("not available in the purego build")

func newToolkit(cfg *config.Config) (vision.Toolkit, error) {
	if cfg.Vision.Toolkit != "go" {
		logger.Warn("OpenCV toolkit not built in, using the Go toolkit")
	}
	return gokit.New(gokit.Options{Seed: cfg.Vision.Seed}), nil
}

func openCamera(context.Context, *config.Config) (pipeline.FrameSource, error) {
	return nil, fmt.Errorf("camera source: %w", errNeedsNative)
}

func headlessRenderer(cfg *config.Config) func() (render.Offscreen, error) {
	if cfg.Render.Backend != "software" {
		logger.Warn("OpenGL renderer not built in, using the software renderer")
	}
	return softwareRenderer(cfg)
}

func runPreview(context.Context, *config.Config) error {
	return fmt.Errorf("preview window (use -headless): %w", errNeedsNative)
}
