package debug

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"

	"github.com/Faultbox/cadmatch/internal/vision"
)

// KeypointColor is the overlay colour.
var KeypointColor = color.RGBA{0, 255, 0, 255}

// DrawKeypoints copies img and draws each keypoint as a circle of its
// size with a radius showing its orientation.
func DrawKeypoints(img image.Image, kps []vision.Keypoint) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Rect, img, b.Min, draw.Src)

	for _, kp := range kps {
		r := math.Max(kp.Size/2, 2)
		circle(out, kp.X, kp.Y, r, KeypointColor)
		if kp.Angle >= 0 {
			s, c := math.Sincos(kp.Angle * math.Pi / 180)
			line(out, kp.X, kp.Y, kp.X+r*c, kp.Y+r*s, KeypointColor)
		}
	}
	return out
}

func circle(img *image.RGBA, cx, cy, r float64, c color.RGBA) {
	steps := max(int(2*math.Pi*r), 8)
	for i := 0; i < steps; i++ {
		s, co := math.Sincos(2 * math.Pi * float64(i) / float64(steps))
		img.SetRGBA(int(math.Round(cx+r*co)), int(math.Round(cy+r*s)), c)
	}
}

func line(img *image.RGBA, x0, y0, x1, y1 float64, c color.RGBA) {
	steps := int(math.Max(math.Abs(x1-x0), math.Abs(y1-y0))) + 1
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		img.SetRGBA(int(math.Round(x0+(x1-x0)*t)), int(math.Round(y0+(y1-y0)*t)), c)
	}
}
