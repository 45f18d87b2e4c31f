package gokit

import (
	"fmt"
	"image"
	"math"

	"github.com/Faultbox/cadmatch/internal/imaging"
)

// Grayscale implements vision.Toolkit using BT.601 luma weights in 14-bit
// fixed point.
func (k *Kit) Grayscale(img image.Image) (*image.Gray, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, errEmptyImage
	}
	rgb := imaging.ToRGB(img)
	w, h := rgb.Width(), rgb.Height()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		row := rgb.Row(y)
		out := dst.Pix[y*dst.Stride : y*dst.Stride+w]
		for x := range out {
			r, g, b := uint32(row[3*x]), uint32(row[3*x+1]), uint32(row[3*x+2])
			out[x] = uint8((r*4899 + g*9617 + b*1868 + 8192) >> 14)
		}
	}
	return dst, nil
}

// NormalizeMinMax implements vision.Toolkit. A constant image maps to 0.
func (k *Kit) NormalizeMinMax(src *image.Gray) (*image.Gray, error) {
	if src == nil || src.Rect.Empty() {
		return nil, errEmptyImage
	}
	g := compact(src)
	lo, hi := uint8(255), uint8(0)
	for _, v := range g.Pix {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	var lut [256]uint8
	if hi > lo {
		// exact rational rounding, halves up
		span := int(hi - lo)
		for v := int(lo); v <= int(hi); v++ {
			lut[v] = uint8((2*(v-int(lo))*255 + span) / (2 * span))
		}
	}
	dst := image.NewGray(g.Rect)
	for i, v := range g.Pix {
		dst.Pix[i] = lut[v]
	}
	return dst, nil
}

// fixed small kernels used when sigma is derived from the size
var smallGaussian = map[int][]float32{
	1: {1},
	3: {0.25, 0.5, 0.25},
	5: {0.0625, 0.25, 0.375, 0.25, 0.0625},
	7: {0.03125, 0.109375, 0.21875, 0.28125, 0.21875, 0.109375, 0.03125},
}

func gaussianKernel(ksize int) []float32 {
	if k, ok := smallGaussian[ksize]; ok {
		return k
	}
	sigma := 0.3*(float64(ksize-1)*0.5-1) + 0.8
	kernel := make([]float32, ksize)
	var sum float64
	c := float64(ksize-1) / 2
	for i := range kernel {
		d := float64(i) - c
		v := math.Exp(-d * d / (2 * sigma * sigma))
		kernel[i] = float32(v)
		sum += v
	}
	for i := range kernel {
		kernel[i] = float32(float64(kernel[i]) / sum)
	}
	return kernel
}

// GaussianBlur implements vision.Toolkit with a separable kernel and
// reflect-101 borders.
func (k *Kit) GaussianBlur(src *image.Gray, ksize int) (*image.Gray, error) {
	if src == nil || src.Rect.Empty() {
		return nil, errEmptyImage
	}
	if ksize <= 0 || ksize%2 == 0 {
		return nil, fmt.Errorf("kernel size %d must be positive and odd", ksize)
	}
	g := compact(src)
	return convolve(g, gaussianKernel(ksize)), nil
}

func convolve(g *image.Gray, kernel []float32) *image.Gray {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	r := len(kernel) / 2
	tmp := make([]float32, w*h)
	for y := 0; y < h; y++ {
		row := g.Pix[y*g.Stride:]
		for x := 0; x < w; x++ {
			var acc float32
			for i, kv := range kernel {
				acc += kv * float32(row[reflect101(x+i-r, w)])
			}
			tmp[y*w+x] = acc
		}
	}
	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var acc float32
			for i, kv := range kernel {
				acc += kv * tmp[reflect101(y+i-r, h)*w+x]
			}
			dst.Pix[y*dst.Stride+x] = clampByte(acc)
		}
	}
	return dst
}

// Canny implements vision.Toolkit: 3×3 Sobel, L1 magnitude, non-maximum
// suppression along the quantised gradient direction, then hysteresis.
func (k *Kit) Canny(src *image.Gray, low, high float64) (*image.Gray, error) {
	if src == nil || src.Rect.Empty() {
		return nil, errEmptyImage
	}
	if low > high {
		low, high = high, low
	}
	g := compact(src)
	w, h := g.Rect.Dx(), g.Rect.Dy()
	dx, dy := sobel(g)

	mag := make([]int32, w*h)
	for i := range mag {
		mag[i] = abs32(dx[i]) + abs32(dy[i])
	}

	const (
		none = iota
		weak
		strong
	)
	// tan(22.5°) and tan(67.5°) in 15-bit fixed point.
	const tg22 = 13573
	const tg67 = 79109

	state := make([]uint8, w*h)
	stack := make([]int, 0, 1024)
	at := func(x, y int) int32 {
		if x < 0 || y < 0 || x >= w || y >= h {
			return 0
		}
		return mag[y*w+x]
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			m := mag[i]
			if float64(m) <= low {
				continue
			}
			ax, ay := int64(abs32(dx[i])), int64(abs32(dy[i]))<<15
			var a, b int32
			switch {
			case ay < ax*tg22:
				a, b = at(x-1, y), at(x+1, y)
			case ay > ax*tg67:
				a, b = at(x, y-1), at(x, y+1)
			default:
				if (dx[i] < 0) != (dy[i] < 0) {
					a, b = at(x+1, y-1), at(x-1, y+1)
				} else {
					a, b = at(x-1, y-1), at(x+1, y+1)
				}
			}
			if m <= a || m < b {
				continue
			}
			if float64(m) > high {
				state[i] = strong
				stack = append(stack, i)
			} else {
				state[i] = weak
			}
		}
	}

	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w
		for ny := y - 1; ny <= y+1; ny++ {
			for nx := x - 1; nx <= x+1; nx++ {
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				j := ny*w + nx
				if state[j] == weak {
					state[j] = strong
					stack = append(stack, j)
				}
			}
		}
	}

	dst := image.NewGray(image.Rect(0, 0, w, h))
	for i, s := range state {
		if s == strong {
			dst.Pix[i] = 255
		}
	}
	return dst, nil
}

// sobel returns the 3×3 x and y derivatives with replicated borders.
func sobel(g *image.Gray) (dx, dy []int32) {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	dx = make([]int32, w*h)
	dy = make([]int32, w*h)
	px := func(x, y int) int32 {
		x = min(max(x, 0), w-1)
		y = min(max(y, 0), h-1)
		return int32(g.Pix[y*g.Stride+x])
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			dx[i] = px(x+1, y-1) + 2*px(x+1, y) + px(x+1, y+1) -
				px(x-1, y-1) - 2*px(x-1, y) - px(x-1, y+1)
			dy[i] = px(x-1, y+1) + 2*px(x, y+1) + px(x+1, y+1) -
				px(x-1, y-1) - 2*px(x, y-1) - px(x+1, y-1)
		}
	}
	return dx, dy
}

// compact returns g with origin (0,0) and Stride == width, copying only
// when needed.
func compact(g *image.Gray) *image.Gray {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	if g.Rect.Min == (image.Point{}) && g.Stride == w {
		return g
	}
	c := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		off := g.PixOffset(g.Rect.Min.X, g.Rect.Min.Y+y)
		copy(c.Pix[y*w:(y+1)*w], g.Pix[off:off+w])
	}
	return c
}

func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*n - 2 - i
		}
	}
	return i
}

func clampByte(v float32) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v + 0.5)
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
