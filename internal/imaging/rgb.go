// Package imaging holds the packed 8-bit RGB raster shared by the renderer,
// the frame sources and the vision toolkits, plus the conversions between it
// and the image formats those collaborators produce.
package imaging

import (
	"image"
	"image/color"
	"image/draw"
)

// RGB is a packed 8-bit RGB image with a top-left origin.
type RGB struct {
	Pix    []byte
	Stride int
	Rect   image.Rectangle
}

// NewRGB allocates a black w×h image.
func NewRGB(w, h int) *RGB {
	return &RGB{
		Pix:    make([]byte, w*h*3),
		Stride: w * 3,
		Rect:   image.Rect(0, 0, w, h),
	}
}

// ColorModel implements image.Image.
func (p *RGB) ColorModel() color.Model { return color.RGBAModel }

// Bounds implements image.Image.
func (p *RGB) Bounds() image.Rectangle { return p.Rect }

// At implements image.Image.
func (p *RGB) At(x, y int) color.Color {
	if !(image.Point{x, y}.In(p.Rect)) {
		return color.RGBA{}
	}
	i := p.PixOffset(x, y)
	return color.RGBA{p.Pix[i], p.Pix[i+1], p.Pix[i+2], 0xff}
}

// Set implements draw.Image.
func (p *RGB) Set(x, y int, c color.Color) {
	if !(image.Point{x, y}.In(p.Rect)) {
		return
	}
	i := p.PixOffset(x, y)
	r, g, b, _ := c.RGBA()
	p.Pix[i], p.Pix[i+1], p.Pix[i+2] = byte(r>>8), byte(g>>8), byte(b>>8)
}

// SetRGB writes one pixel without going through color.Color.
func (p *RGB) SetRGB(x, y int, r, g, b byte) {
	i := p.PixOffset(x, y)
	p.Pix[i], p.Pix[i+1], p.Pix[i+2] = r, g, b
}

// PixOffset returns the index of the first byte of pixel (x, y).
func (p *RGB) PixOffset(x, y int) int {
	return (y-p.Rect.Min.Y)*p.Stride + (x-p.Rect.Min.X)*3
}

// Width returns the image width.
func (p *RGB) Width() int { return p.Rect.Dx() }

// Height returns the image height.
func (p *RGB) Height() int { return p.Rect.Dy() }

// Row returns the packed bytes of row y (relative to Rect.Min.Y).
func (p *RGB) Row(y int) []byte {
	off := y * p.Stride
	return p.Pix[off : off+p.Rect.Dx()*3]
}

// Clone returns a deep copy.
func (p *RGB) Clone() *RGB {
	c := &RGB{Pix: make([]byte, len(p.Pix)), Stride: p.Stride, Rect: p.Rect}
	copy(c.Pix, p.Pix)
	return c
}

// Equal reports whether both images have the same size and pixels.
func (p *RGB) Equal(o *RGB) bool {
	if p.Rect.Size() != o.Rect.Size() {
		return false
	}
	for y := 0; y < p.Rect.Dy(); y++ {
		a, b := p.Row(y), o.Row(y)
		for i := range a {
			if a[i] != b[i] {
				return false
			}
		}
	}
	return true
}

// FlipVertical mirrors the image top to bottom in place.
// GL framebuffers have their origin at the bottom-left.
func (p *RGB) FlipVertical() {
	h := p.Rect.Dy()
	n := p.Rect.Dx() * 3
	tmp := make([]byte, n)
	for y := 0; y < h/2; y++ {
		top := p.Pix[y*p.Stride : y*p.Stride+n]
		bot := p.Pix[(h-1-y)*p.Stride : (h-1-y)*p.Stride+n]
		copy(tmp, top)
		copy(top, bot)
		copy(bot, tmp)
	}
}

// FromRGBA packs width*height*4 RGBA bytes into an RGB image, dropping alpha.
// When flip is set the rows are reversed on the way (bottom-left origin input).
func FromRGBA(pix []byte, width, height int, flip bool) *RGB {
	out := NewRGB(width, height)
	for y := 0; y < height; y++ {
		sy := y
		if flip {
			sy = height - 1 - y
		}
		src := pix[sy*width*4 : (sy+1)*width*4]
		dst := out.Pix[y*out.Stride : y*out.Stride+width*3]
		for x := 0; x < width; x++ {
			dst[x*3] = src[x*4]
			dst[x*3+1] = src[x*4+1]
			dst[x*3+2] = src[x*4+2]
		}
	}
	return out
}

// ToRGB converts any image to a tightly packed RGB image with origin (0,0).
// Alpha is dropped without premultiplying against a background.
func ToRGB(img image.Image) *RGB {
	b := img.Bounds()
	out := NewRGB(b.Dx(), b.Dy())

	switch src := img.(type) {
	case *RGB:
		for y := 0; y < b.Dy(); y++ {
			copy(out.Row(y), src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):])
		}
	case *YUV420:
		src.convertInto(out)
	case *image.RGBA:
		for y := 0; y < b.Dy(); y++ {
			s := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
			d := out.Row(y)
			for x := 0; x < b.Dx(); x++ {
				d[x*3], d[x*3+1], d[x*3+2] = s[x*4], s[x*4+1], s[x*4+2]
			}
		}
	case *image.NRGBA:
		for y := 0; y < b.Dy(); y++ {
			s := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
			d := out.Row(y)
			for x := 0; x < b.Dx(); x++ {
				d[x*3], d[x*3+1], d[x*3+2] = s[x*4], s[x*4+1], s[x*4+2]
			}
		}
	case *image.Gray:
		for y := 0; y < b.Dy(); y++ {
			s := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
			d := out.Row(y)
			for x := 0; x < b.Dx(); x++ {
				d[x*3], d[x*3+1], d[x*3+2] = s[x], s[x], s[x]
			}
		}
	default:
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
				out.SetRGB(x, y, byte(r>>8), byte(g>>8), byte(bl>>8))
			}
		}
	}
	return out
}

// ToRGBA copies img into a new *image.RGBA, the layout GL texture uploads expect.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Rect, img, b.Min, draw.Src)
	return out
}
