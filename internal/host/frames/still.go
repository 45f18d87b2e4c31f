package frames

import (
	"fmt"
	"image"
	"time"

	"github.com/Faultbox/cadmatch/internal/imaging"
	"github.com/Faultbox/cadmatch/internal/pipeline"
)

// Still serves the same image on every call, stamped with the call time.
type Still struct {
	img        image.Image
	intrinsics pipeline.Intrinsics
}

// NewStill wraps img.
func NewStill(img image.Image) *Still {
	b := img.Bounds()
	return &Still{img: img, intrinsics: NominalIntrinsics(b.Dx(), b.Dy())}
}

// LoadStill decodes the image at path.
func LoadStill(path string) (*Still, error) {
	img, err := imaging.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading still %s: %w", path, err)
	}
	return NewStill(img), nil
}

// AcquireLatest implements pipeline.FrameSource.
func (s *Still) AcquireLatest() (*pipeline.Frame, error) {
	b := s.img.Bounds()
	return &pipeline.Frame{
		Image:      s.img,
		Width:      b.Dx(),
		Height:     b.Dy(),
		Intrinsics: s.intrinsics,
		Timestamp:  time.Now(),
	}, nil
}

// NominalIntrinsics is a pinhole camera with a 53° horizontal field of
// view centred on the image.
func NominalIntrinsics(w, h int) pipeline.Intrinsics {
	f := float32(max(w, h))
	return pipeline.Intrinsics{Fx: f, Fy: f, Cx: float32(w) / 2, Cy: float32(h) / 2}
}
