package pipeline

import (
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/Faultbox/cadmatch/internal/imaging"
	"github.com/Faultbox/cadmatch/internal/match"
	"github.com/Faultbox/cadmatch/pkg/math"
)

// Frame errors.
var (
	ErrFrameNotReady     = errors.New("no new frame available")
	ErrUnsupportedFormat = errors.New("unsupported frame format")
)

// Intrinsics are pinhole camera parameters in pixels. Lens distortion is
// taken as zero.
type Intrinsics struct {
	Fx, Fy float32
	Cx, Cy float32
}

// Frame is one camera image with its capture metadata.
type Frame struct {
	Image      image.Image
	Width      int
	Height     int
	Intrinsics Intrinsics
	Pose       math.Mat4
	Timestamp  time.Time
}

// RGB converts the frame image to packed RGB. YUV 4:2:0 frames are read
// with NV21 plane order.
func (f *Frame) RGB() (*imaging.RGB, error) {
	switch img := f.Image.(type) {
	case nil:
		return nil, fmt.Errorf("%w: frame has no image", ErrUnsupportedFormat)
	case *imaging.YUV420:
		rgb, err := img.ToRGB()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnsupportedFormat, err)
		}
		return rgb, nil
	default:
		if img.Bounds().Empty() {
			return nil, fmt.Errorf("%w: empty image", ErrUnsupportedFormat)
		}
		return imaging.ToRGB(img), nil
	}
}

// FrameSource yields the most recent camera frame. It returns
// ErrFrameNotReady when nothing new arrived since the last call.
type FrameSource interface {
	AcquireLatest() (*Frame, error)
}

// TextureBinder is implemented by sources that stream into the display's
// camera texture.
type TextureBinder interface {
	BindTexture(id uint32) error
}

// DisplaySurface is the on-screen preview target.
type DisplaySurface interface {
	CameraTexture() uint32
	Blit(f *Frame) error
	Resize(width, height int)
	Size() (width, height int)
}

// Dispatcher runs callbacks on the goroutine the host designated for UI
// work, in submission order.
type Dispatcher interface {
	Dispatch(fn func())
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(fn func())

// Dispatch implements Dispatcher.
func (d DispatcherFunc) Dispatch(fn func()) { d(fn) }

// Inline runs callbacks on the calling goroutine.
var Inline Dispatcher = DispatcherFunc(func(fn func()) { fn() })

// Listener receives the score of each completed compute.
type Listener interface {
	OnMatchPercentage(p float64)
}

// ReportListener is optionally implemented by listeners that want the full
// report.
type ReportListener interface {
	OnMatchReport(r *match.Report)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(p float64)

// OnMatchPercentage implements Listener.
func (f ListenerFunc) OnMatchPercentage(p float64) { f(p) }
