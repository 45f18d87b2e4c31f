package debug

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Faultbox/cadmatch/internal/engine/render"
	"github.com/Faultbox/cadmatch/internal/imaging"
	"github.com/Faultbox/cadmatch/internal/match"
	"github.com/Faultbox/cadmatch/internal/vision"
)

func TestDrawKeypoints(t *testing.T) {
	img := imaging.NewRGB(32, 32)
	out := DrawKeypoints(img, []vision.Keypoint{{X: 16, Y: 16, Size: 10, Angle: 0}})

	if out.RGBAAt(21, 16) != KeypointColor {
		t.Errorf("circle/orientation pixel = %v", out.RGBAAt(21, 16))
	}
	if out.RGBAAt(16, 16) != KeypointColor {
		t.Errorf("orientation line start = %v", out.RGBAAt(16, 16))
	}
	if out.RGBAAt(0, 0).G != 0 {
		t.Error("overlay touched an unrelated pixel")
	}
	if img.At(21, 16) == KeypointColor {
		t.Error("source image modified")
	}
}

func TestDumpBank(t *testing.T) {
	dir := t.TempDir()
	bank := match.NewBank([]match.Entry{
		{ViewIndex: 0, Azimuth: 0, View: &render.RenderedView{Index: 0, Image: imaging.NewRGB(8, 8)}},
		{ViewIndex: 1, Azimuth: 45, View: &render.RenderedView{Index: 1, Azimuth: 45, Image: imaging.NewRGB(8, 8)},
			Features: vision.Features{Keypoints: []vision.Keypoint{{X: 4, Y: 4, Size: 4}}}},
		{ViewIndex: 2},
	})

	d := NewDumper(dir, true, true)
	if err := d.DumpBank(bank); err != nil {
		t.Fatalf("DumpBank: %v", err)
	}
	for _, name := range []string{"view_00_000deg.png", "view_00_000deg_kp.png", "view_01_045deg.png", "view_01_045deg_kp.png"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 4 {
		t.Errorf("wrote %d files, want 4", len(entries))
	}
}

func TestDumpLive(t *testing.T) {
	dir := t.TempDir()
	d := NewDumper(dir, false, true)
	d.now = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) }

	if err := d.DumpLive(nil, imaging.NewRGB(8, 8), vision.Features{}); err != nil {
		t.Fatalf("DumpLive: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "live_2026-03-04_05-06-07_kp.png")); err != nil {
		t.Error(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "live_2026-03-04_05-06-07.png")); !os.IsNotExist(err) {
		t.Error("raw frame written with views disabled")
	}
}
