package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/Faultbox/cadmatch/internal/config"
	"github.com/Faultbox/cadmatch/internal/debug"
	"github.com/Faultbox/cadmatch/internal/engine/bake"
	"github.com/Faultbox/cadmatch/internal/engine/render"
	"github.com/Faultbox/cadmatch/internal/fixtures"
	"github.com/Faultbox/cadmatch/internal/host/frames"
	"github.com/Faultbox/cadmatch/internal/logger"
	"github.com/Faultbox/cadmatch/internal/match"
	"github.com/Faultbox/cadmatch/internal/pipeline"
	"github.com/Faultbox/cadmatch/internal/vision"
	"github.com/Faultbox/cadmatch/pkg/math"
)

// loadMesh reads the configured OBJ, or the built-in bracket when none is
// set.
func loadMesh(cfg *config.Config) ([]byte, error) {
	if cfg.Source.Mesh == "" {
		logger.Warn("no mesh configured, using the built-in bracket")
		return fixtures.BracketOBJ(), nil
	}
	data, err := os.ReadFile(cfg.Source.Mesh)
	if err != nil {
		return nil, fmt.Errorf("reading mesh: %w", err)
	}
	return data, nil
}

// openSource creates the live frame source. Producers that need a
// goroutine are started on ctx.
func openSource(ctx context.Context, cfg *config.Config) (pipeline.FrameSource, error) {
	switch cfg.Source.Kind {
	case "still":
		if cfg.Source.Image == "" {
			return nil, errors.New("still source needs an image (-image)")
		}
		return frames.LoadStill(cfg.Source.Image)
	case "dir":
		d, err := frames.NewDir(cfg.Source.Dir)
		if err != nil {
			return nil, err
		}
		go d.Run(ctx)
		return d, nil
	case "camera":
		return openCamera(ctx, cfg)
	}
	return nil, fmt.Errorf("unknown frame source %q", cfg.Source.Kind)
}

func ringFromConfig(b config.BakeConfig, w, h int) bake.Ring {
	r := bake.DefaultRing()
	r.Angles = b.Angles
	r.Eye = math.Vec3{X: b.Eye[0], Y: b.Eye[1], Z: b.Eye[2]}
	r.Scale = b.Scale
	r.FovY = b.FovY
	r.Aspect = float32(w) / float32(h)
	r.Near = b.Near
	r.Far = b.Far
	return r
}

// pipelineOptions translates the config into coordinator options. The
// caller fills in the renderer factory, source and dispatcher.
func pipelineOptions(cfg *config.Config, kit vision.Toolkit) pipeline.Options {
	f := cfg.Features
	algo := vision.Algorithm(f.Algorithm)

	opts := pipeline.Options{
		Extractor: vision.NewExtractor(kit, vision.Preprocess{
			BlurKernel: f.BlurKernel,
			CannyLow:   f.CannyLow,
			CannyHigh:  f.CannyHigh,
		}),
		Ring:            ringFromConfig(cfg.Bake, cfg.Render.Width, cfg.Render.Height),
		ReferenceParams: vision.DetectorParams{Algorithm: algo, Threshold: f.ReferenceThreshold, MaxFeatures: f.ReferenceMaxFeatures},
		LiveParams:      vision.DetectorParams{Algorithm: algo, Threshold: f.LiveThreshold, MaxFeatures: f.LiveMaxFeatures},
		Matcher: match.Config{
			Ratio:      cfg.Matcher.Ratio,
			MinMatches: cfg.Matcher.MinMatches,
			Homography: vision.HomographyParams{
				Threshold:  cfg.Matcher.RansacThreshold,
				MaxIters:   cfg.Matcher.RansacMaxIters,
				Confidence: cfg.Matcher.Confidence,
			},
			Workers: cfg.Matcher.Workers,
		},
		Async: cfg.Matcher.Async,
	}
	if cfg.Debug.DumpViews || cfg.Debug.DumpKeypoints {
		opts.Dumper = debug.NewDumper(cfg.Debug.Dir, cfg.Debug.DumpViews, cfg.Debug.DumpKeypoints)
	}
	return opts
}

func renderOptions(cfg *config.Config) render.Options {
	return render.Options{Width: cfg.Render.Width, Height: cfg.Render.Height}
}

func softwareRenderer(cfg *config.Config) func() (render.Offscreen, error) {
	return func() (render.Offscreen, error) {
		return render.NewSoftware(renderOptions(cfg))
	}
}
