// Package debug writes intermediate pipeline images to disk: the baked
// reference views, and keypoint overlays for reference and live frames.
package debug

import (
	"fmt"
	"image"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/cadmatch/internal/imaging"
	"github.com/Faultbox/cadmatch/internal/logger"
	"github.com/Faultbox/cadmatch/internal/match"
	"github.com/Faultbox/cadmatch/internal/vision"
)

// Dumper saves PNGs under one directory.
type Dumper struct {
	dir       string
	views     bool
	keypoints bool
	now       func() time.Time
	log       *zap.Logger
}

// NewDumper writes into dir. views enables the raw renders and keypoints
// the overlays.
func NewDumper(dir string, views, keypoints bool) *Dumper {
	return &Dumper{
		dir:       dir,
		views:     views,
		keypoints: keypoints,
		now:       time.Now,
		log:       logger.Named("debug"),
	}
}

// Dir returns the output directory.
func (d *Dumper) Dir() string { return d.dir }

// DumpBank saves every reference view, and its keypoints when enabled.
func (d *Dumper) DumpBank(bank *match.Bank) error {
	n := 0
	for _, e := range bank.All() {
		if e.View == nil || e.View.Image == nil {
			continue
		}
		base := fmt.Sprintf("view_%02d_%03.0fdeg", e.ViewIndex, e.Azimuth)
		if d.views {
			if err := imaging.SavePNG(d.path(base+".png"), e.View.Image); err != nil {
				return fmt.Errorf("view %d: %w", e.ViewIndex, err)
			}
			n++
		}
		if d.keypoints {
			overlay := DrawKeypoints(e.View.Image, e.Features.Keypoints)
			if err := imaging.SavePNG(d.path(base+"_kp.png"), overlay); err != nil {
				return fmt.Errorf("view %d keypoints: %w", e.ViewIndex, err)
			}
			n++
		}
	}
	d.log.Info("reference views dumped", zap.String("dir", d.dir), zap.Int("files", n))
	return nil
}

// DumpLive saves the live frame used for a report and its keypoints.
func (d *Dumper) DumpLive(report *match.Report, img image.Image, f vision.Features) error {
	base := "live_" + d.now().Format("2006-01-02_15-04-05")
	if report != nil {
		base += "_" + report.RequestID.String()[:8]
	}
	if d.views {
		if err := imaging.SavePNG(d.path(base+".png"), img); err != nil {
			return err
		}
	}
	if d.keypoints {
		if err := imaging.SavePNG(d.path(base+"_kp.png"), DrawKeypoints(img, f.Keypoints)); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dumper) path(name string) string {
	return filepath.Join(d.dir, name)
}
