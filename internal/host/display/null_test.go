package display

import (
	"testing"

	"github.com/Faultbox/cadmatch/internal/pipeline"
)

var _ pipeline.DisplaySurface = (*Null)(nil)

func TestNull(t *testing.T) {
	n := NewNull(320, 240)
	if w, h := n.Size(); w != 320 || h != 240 {
		t.Errorf("Size = %dx%d", w, h)
	}
	for i := 0; i < 3; i++ {
		if err := n.Blit(&pipeline.Frame{}); err != nil {
			t.Fatal(err)
		}
	}
	if n.Frames() != 3 {
		t.Errorf("Frames = %d", n.Frames())
	}
	n.Resize(64, 48)
	if w, h := n.Size(); w != 64 || h != 48 {
		t.Errorf("Size after resize = %dx%d", w, h)
	}
	if n.CameraTexture() != 0 {
		t.Error("null surface has a texture")
	}
}

func TestLetterbox(t *testing.T) {
	tests := []struct {
		name                       string
		dw, dh, sw, sh             int
		wantX, wantY, wantW, wantH int
	}{
		{"same aspect", 800, 600, 400, 300, 0, 0, 800, 600},
		{"wide source", 800, 800, 1600, 800, 0, 200, 800, 400},
		{"tall source", 800, 400, 400, 800, 300, 0, 200, 400},
		{"empty source", 640, 480, 0, 0, 0, 0, 640, 480},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y, w, h := letterbox(tt.dw, tt.dh, tt.sw, tt.sh)
			if x != tt.wantX || y != tt.wantY || w != tt.wantW || h != tt.wantH {
				t.Errorf("letterbox = %d,%d %dx%d", x, y, w, h)
			}
		})
	}
}
