package imaging

import (
	"errors"
	"fmt"
	"image"
	"image/color"
)

// ErrYUVLayout is returned when plane sizes do not match the declared geometry.
var ErrYUVLayout = errors.New("inconsistent YUV_420_888 layout")

// YUV420 is a camera frame in the YUV_420_888 layout: a full resolution Y
// plane and 2×2 subsampled U and V planes, each with its own row stride and
// a pixel stride of 1 (planar) or 2 (semi-planar, interleaved).
type YUV420 struct {
	Width, Height int

	Y, U, V []byte

	YRowStride    int
	UVRowStride   int
	UVPixelStride int
}

// NewNV21 wraps a packed NV21 buffer: Y plane then interleaved V/U pairs.
func NewNV21(buf []byte, width, height int) (*YUV420, error) {
	ySize := width * height
	cw, ch := (width+1)/2, (height+1)/2
	if len(buf) < ySize+2*cw*ch {
		return nil, fmt.Errorf("%w: NV21 %dx%d needs %d bytes, got %d",
			ErrYUVLayout, width, height, ySize+2*cw*ch, len(buf))
	}
	vu := buf[ySize:]
	return &YUV420{
		Width:         width,
		Height:        height,
		Y:             buf[:ySize],
		V:             vu,
		U:             vu[1:],
		YRowStride:    width,
		UVRowStride:   cw * 2,
		UVPixelStride: 2,
	}, nil
}

// Validate checks that every plane covers the declared geometry.
func (f *YUV420) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("%w: size %dx%d", ErrYUVLayout, f.Width, f.Height)
	}
	if f.YRowStride < f.Width || len(f.Y) < f.YRowStride*(f.Height-1)+f.Width {
		return fmt.Errorf("%w: Y plane too small", ErrYUVLayout)
	}
	if f.UVPixelStride < 1 {
		return fmt.Errorf("%w: pixel stride %d", ErrYUVLayout, f.UVPixelStride)
	}
	cw, ch := (f.Width+1)/2, (f.Height+1)/2
	need := f.UVRowStride*(ch-1) + f.UVPixelStride*(cw-1) + 1
	if len(f.U) < need || len(f.V) < need {
		return fmt.Errorf("%w: chroma planes too small", ErrYUVLayout)
	}
	return nil
}

// NV21 packs the frame as Y, then V, then U interleaved per chroma sample.
func (f *YUV420) NV21() []byte {
	cw, ch := (f.Width+1)/2, (f.Height+1)/2
	out := make([]byte, f.Width*f.Height+2*cw*ch)

	for y := 0; y < f.Height; y++ {
		copy(out[y*f.Width:(y+1)*f.Width], f.Y[y*f.YRowStride:])
	}
	vu := out[f.Width*f.Height:]
	for y := 0; y < ch; y++ {
		for x := 0; x < cw; x++ {
			i := y*f.UVRowStride + x*f.UVPixelStride
			vu[(y*cw+x)*2] = f.V[i]
			vu[(y*cw+x)*2+1] = f.U[i]
		}
	}
	return out
}

// ColorModel implements image.Image.
func (f *YUV420) ColorModel() color.Model { return color.RGBAModel }

// Bounds implements image.Image.
func (f *YUV420) Bounds() image.Rectangle { return image.Rect(0, 0, f.Width, f.Height) }

// At implements image.Image.
func (f *YUV420) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= f.Width || y >= f.Height {
		return color.RGBA{}
	}
	r, g, b := f.rgbAt(x, y)
	return color.RGBA{r, g, b, 0xff}
}

// ToRGB converts the frame to packed RGB.
func (f *YUV420) ToRGB() (*RGB, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	out := NewRGB(f.Width, f.Height)
	f.convertInto(out)
	return out, nil
}

func (f *YUV420) convertInto(out *RGB) {
	for y := 0; y < f.Height; y++ {
		row := out.Row(y)
		for x := 0; x < f.Width; x++ {
			row[x*3], row[x*3+1], row[x*3+2] = f.rgbAt(x, y)
		}
	}
}

func (f *YUV420) rgbAt(x, y int) (byte, byte, byte) {
	ci := (y/2)*f.UVRowStride + (x/2)*f.UVPixelStride
	return YUVToRGB(f.Y[y*f.YRowStride+x], f.U[ci], f.V[ci])
}

// YUVToRGB converts one BT.601 video-range sample using the same fixed-point
// constants as the usual NV21 camera decoders.
func YUVToRGB(y, u, v byte) (byte, byte, byte) {
	yy := int32(y) - 16
	if yy < 0 {
		yy = 0
	}
	yy *= 1192 // 1.164 << 10
	uu := int32(u) - 128
	vv := int32(v) - 128

	r := (yy + 1634*vv) >> 10
	g := (yy - 833*vv - 400*uu) >> 10
	b := (yy + 2066*uu) >> 10
	return clamp8(r), clamp8(g), clamp8(b)
}

func clamp8(v int32) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}
