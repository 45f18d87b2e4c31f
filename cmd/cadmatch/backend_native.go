//go:build !purego

package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/cadmatch/internal/config"
	"github.com/Faultbox/cadmatch/internal/engine/render"
	"github.com/Faultbox/cadmatch/internal/engine/render/glrender"
	"github.com/Faultbox/cadmatch/internal/engine/window"
	"github.com/Faultbox/cadmatch/internal/host/display"
	"github.com/Faultbox/cadmatch/internal/host/frames"
	"github.com/Faultbox/cadmatch/internal/logger"
	"github.com/Faultbox/cadmatch/internal/pipeline"
	"github.com/Faultbox/cadmatch/internal/vision"
	"github.com/Faultbox/cadmatch/internal/vision/cvkit"
	"github.com/Faultbox/cadmatch/internal/vision/gokit"
)

func newToolkit(cfg *config.Config) (vision.Toolkit, error) {
	switch cfg.Vision.Toolkit {
	case "opencv":
		return cvkit.New(), nil
	case "go":
		return gokit.New(gokit.Options{Seed: cfg.Vision.Seed}), nil
	}
	return nil, fmt.Errorf("unknown vision toolkit %q", cfg.Vision.Toolkit)
}

func openCamera(ctx context.Context, cfg *config.Config) (pipeline.FrameSource, error) {
	cam, err := frames.OpenCamera(cfg.Source.Camera, 0, 0)
	if err != nil {
		return nil, err
	}
	go cam.Run(ctx)
	return cam, nil
}

// headlessRenderer renders in a hidden GL window when opengl is selected.
func headlessRenderer(cfg *config.Config) func() (render.Offscreen, error) {
	if cfg.Render.Backend != "opengl" {
		return softwareRenderer(cfg)
	}
	return func() (render.Offscreen, error) {
		return glrender.New(renderOptions(cfg))
	}
}

// runPreview opens the preview window and runs until it is closed. C
// requests a compute; the score is shown in the title bar.
func runPreview(ctx context.Context, cfg *config.Config) error {
	log := logger.Named("preview")

	kit, err := newToolkit(cfg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	src, err := openSource(ctx, cfg)
	if err != nil {
		return err
	}
	mesh, err := loadMesh(cfg)
	if err != nil {
		return err
	}

	win, err := window.New(window.Config{
		Title:  cfg.Preview.Title,
		Width:  cfg.Preview.Width,
		Height: cfg.Preview.Height,
		VSync:  cfg.Preview.VSync,
	})
	if err != nil {
		return err
	}
	defer win.Close()

	ui := pipeline.NewUILoop(8)
	defer ui.Stop()

	opts := pipelineOptions(cfg, kit)
	opts.Source = src
	opts.UI = ui
	if cfg.Render.Backend == "opengl" {
		// share the preview context
		opts.NewRenderer = func() (render.Offscreen, error) {
			return glrender.NewWithWindow(win, renderOptions(cfg))
		}
	} else {
		opts.NewRenderer = softwareRenderer(cfg)
	}

	c := pipeline.New(opts)
	if err := c.Bootstrap(mesh); err != nil {
		return err
	}

	surface, err := display.New(win)
	if err != nil {
		c.Close()
		return err
	}
	defer surface.Close()
	if err := c.OnSurfaceReady(surface); err != nil {
		c.Close()
		return err
	}

	title := cfg.Preview.Title
	surface.SetStatus(title + " - press C to match")
	c.Subscribe(pipeline.ListenerFunc(func(p float64) {
		surface.SetStatus(fmt.Sprintf("%s - match %.1f%%", title, p))
	}))

	input := display.NewInput()
	loop := &pipeline.RenderLoop{
		Coordinator: c,
		FPS:         cfg.Preview.FPS,
		BeforeFrame: func() bool {
			if input.Update() {
				return false
			}
			if w, h, ok := input.Resized(); ok {
				c.OnSurfaceResized(w, h)
			}
			if input.ComputeRequested() {
				if err := c.RequestCompute(); err == nil {
					surface.SetStatus(title + " - matching...")
				}
			}
			return true
		},
		AfterFrame: func() {
			ui.Drain()
			surface.Present()
		},
	}
	log.Info("preview running", zap.String("toolkit", kit.Name()), zap.String("renderer", cfg.Render.Backend))
	return loop.Run(ctx)
}
