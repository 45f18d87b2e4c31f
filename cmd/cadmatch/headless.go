package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/cadmatch/internal/config"
	"github.com/Faultbox/cadmatch/internal/host/display"
	"github.com/Faultbox/cadmatch/internal/logger"
	"github.com/Faultbox/cadmatch/internal/match"
	"github.com/Faultbox/cadmatch/internal/pipeline"
)

var _ pipeline.ReportListener = (*scoreListener)(nil)

// republisher is implemented by sources that can offer their last frame
// again, such as frames.Dir.
type republisher interface {
	Republish() bool
}

// scoreListener keeps the first report it receives.
type scoreListener struct {
	report *match.Report
}

func (l *scoreListener) OnMatchPercentage(float64) {}

func (l *scoreListener) OnMatchReport(r *match.Report) {
	if l.report == nil {
		l.report = r
	}
}

// runHeadless computes once on the first available frame and prints the
// score.
func runHeadless(ctx context.Context, cfg *config.Config) error {
	kit, err := newToolkit(cfg)
	if err != nil {
		return err
	}
	src, err := openSource(ctx, cfg)
	if err != nil {
		return err
	}
	mesh, err := loadMesh(cfg)
	if err != nil {
		return err
	}

	opts := pipelineOptions(cfg, kit)
	opts.NewRenderer = headlessRenderer(cfg)
	opts.Source = src
	opts.UI = pipeline.Inline
	opts.Async = false

	c := pipeline.New(opts)
	if err := c.Bootstrap(mesh); err != nil {
		return err
	}
	if err := c.OnSurfaceReady(display.NewNull(cfg.Preview.Width, cfg.Preview.Height)); err != nil {
		c.Close()
		return err
	}

	l := &scoreListener{}
	c.Subscribe(l)
	if err := c.RequestCompute(); err != nil {
		c.Close()
		return err
	}
	// a directory source may already hold the frame to score
	if r, ok := src.(republisher); ok {
		r.Republish()
	}

	loop := &pipeline.RenderLoop{
		Coordinator: c,
		FPS:         cfg.Preview.FPS,
		BeforeFrame: func() bool { return l.report == nil },
	}
	if err := loop.Run(ctx); err != nil {
		return err
	}
	if l.report == nil {
		return errors.New("stopped before a frame was scored")
	}

	r := l.report
	for _, e := range r.Entries {
		logger.Info("view scored",
			zap.Int("view", e.ViewIndex),
			zap.Float32("azimuth", e.Azimuth),
			zap.Int("candidates", e.Candidates),
			zap.Int("inliers", e.Inliers),
			zap.Bool("skipped", e.Skipped))
	}
	logger.Info("match complete",
		zap.Stringer("request", r.RequestID),
		zap.Int("candidates", r.TotalCandidates),
		zap.Int("inliers", r.Inliers),
		zap.Duration("elapsed", r.Elapsed))
	fmt.Printf("%.2f\n", r.MatchPercentage)
	return nil
}
