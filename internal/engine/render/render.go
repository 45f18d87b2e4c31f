// Package render draws a mesh off screen from a viewpoint and reads the
// result back as an RGB raster with a top-left origin.
//
// Two backends share the Offscreen contract: Software, a deterministic
// scan converter that follows the OpenGL rasterisation rules, and the
// glrender package, which uses a real OpenGL 4.1 context.
package render

import (
	"errors"
	"fmt"

	"github.com/Faultbox/cadmatch/internal/engine/model"
	"github.com/Faultbox/cadmatch/internal/imaging"
	"github.com/Faultbox/cadmatch/pkg/math"
)

// Render errors.
var (
	ErrShaderCompile         = errors.New("shader compile failed")
	ErrShaderLink            = errors.New("shader link failed")
	ErrFramebufferIncomplete = errors.New("framebuffer incomplete")
	ErrSurfaceUnavailable    = errors.New("render surface unavailable")
)

// DefaultSize is the edge length of the square render target.
const DefaultSize = 1024

// Lighting shared by every backend. Two fixed directional lights over a
// constant ambient term; the sum is clamped to [0,1] before quantisation.
const (
	Ambient = 0.2
	Diffuse = 0.4
)

var (
	// Light1 points along +Z towards the camera.
	Light1 = math.Vec3{X: 0, Y: 0, Z: 1}
	// Light2 is the normalised (1,1,1) key light.
	Light2 = math.Vec3{X: 1, Y: 1, Z: 1}.Normalize()
)

// Viewpoint is one camera placement around the model.
type Viewpoint struct {
	Index      int
	Azimuth    float32 // degrees around +Y
	Model      math.Mat4
	View       math.Mat4
	Projection math.Mat4
}

// MVP returns Projection · View · Model.
func (v Viewpoint) MVP() math.Mat4 {
	return math.MVP(v.Projection, v.View, v.Model)
}

// RenderedView is the readback of one Render call.
type RenderedView struct {
	Index   int
	Azimuth float32
	Image   *imaging.RGB
}

// Offscreen renders an uploaded mesh into host memory.
// Implementations are not safe for concurrent use.
type Offscreen interface {
	// Upload stores the mesh for later draws. It is called once.
	Upload(mesh *model.Mesh) error
	// Render draws the uploaded mesh from vp.
	Render(vp Viewpoint) (*RenderedView, error)
	// Size returns the render target dimensions.
	Size() (width, height int)
	// Close releases the target, buffers and programs in reverse creation order.
	Close() error
}

// Options configures a render target.
type Options struct {
	Width  int
	Height int
}

// DefaultOptions returns a DefaultSize square target.
func DefaultOptions() Options {
	return Options{Width: DefaultSize, Height: DefaultSize}
}

func (o Options) validate() error {
	if o.Width <= 0 || o.Height <= 0 {
		return fmt.Errorf("%w: invalid size %dx%d", ErrSurfaceUnavailable, o.Width, o.Height)
	}
	return nil
}

// Shade evaluates the fragment colour for an interpolated normal and
// returns the intensity, identical on all three channels.
func Shade(n math.Vec3) float32 {
	n = n.Normalize()
	c := float32(Ambient) + (max(n.Dot(Light1), 0)+max(n.Dot(Light2), 0))*Diffuse
	return min(max(c, 0), 1)
}

// Quantize converts a [0,1] channel to a UNORM8 value the way GL does.
func Quantize(c float32) byte {
	return byte(c*255 + 0.5)
}
