// Package display provides pipeline.DisplaySurface implementations: an
// SDL2 window showing the camera feed on a textured quad (cgo builds) and
// a Null surface for headless runs.
package display

import (
	"sync/atomic"

	"github.com/Faultbox/cadmatch/internal/pipeline"
)

// Null accepts frames without drawing them.
type Null struct {
	width, height int
	frames        atomic.Int64
}

// NewNull creates a surface of the given size.
func NewNull(width, height int) *Null {
	return &Null{width: width, height: height}
}

// CameraTexture implements pipeline.DisplaySurface. Null has no texture.
func (n *Null) CameraTexture() uint32 { return 0 }

// Blit implements pipeline.DisplaySurface.
func (n *Null) Blit(*pipeline.Frame) error {
	n.frames.Add(1)
	return nil
}

// Resize implements pipeline.DisplaySurface.
func (n *Null) Resize(width, height int) { n.width, n.height = width, height }

// Size implements pipeline.DisplaySurface.
func (n *Null) Size() (int, int) { return n.width, n.height }

// Frames returns how many frames were blitted.
func (n *Null) Frames() int64 { return n.frames.Load() }
