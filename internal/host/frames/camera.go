//go:build !purego

package frames

import (
	"context"
	"fmt"
	"image"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/Faultbox/cadmatch/internal/imaging"
	"github.com/Faultbox/cadmatch/internal/logger"
	"github.com/Faultbox/cadmatch/internal/pipeline"
)

// Camera captures from a video device on its own goroutine.
type Camera struct {
	*Slot
	device  int
	capture *gocv.VideoCapture
	log     *zap.Logger
}

// OpenCamera opens device id, requesting width×height when both are set.
func OpenCamera(id, width, height int) (*Camera, error) {
	vc, err := gocv.OpenVideoCapture(id)
	if err != nil {
		return nil, fmt.Errorf("opening camera %d: %w", id, err)
	}
	if width > 0 && height > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(height))
	}
	return &Camera{
		Slot:    &Slot{},
		device:  id,
		capture: vc,
		log:     logger.Named("camera").With(zap.Int("device", id)),
	}, nil
}

// Run reads frames until ctx is done, then closes the device.
func (c *Camera) Run(ctx context.Context) {
	defer c.capture.Close()

	bgr := gocv.NewMat()
	defer bgr.Close()
	rgb := gocv.NewMat()
	defer rgb.Close()

	misses := 0
	for ctx.Err() == nil {
		if ok := c.capture.Read(&bgr); !ok || bgr.Empty() {
			misses++
			if misses == 30 {
				c.log.Warn("camera returns no frames")
			}
			time.Sleep(10 * time.Millisecond)
			continue
		}
		misses = 0

		gocv.CvtColor(bgr, &rgb, gocv.ColorBGRToRGB)
		w, h := rgb.Cols(), rgb.Rows()
		img := &imaging.RGB{Pix: rgb.ToBytes(), Stride: w * 3, Rect: image.Rect(0, 0, w, h)}
		c.Put(&pipeline.Frame{
			Image:      img,
			Width:      w,
			Height:     h,
			Intrinsics: NominalIntrinsics(w, h),
		})
	}
}
