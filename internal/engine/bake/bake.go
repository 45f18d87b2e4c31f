// Package bake renders the reference ring of views a model is matched against.
package bake

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/cadmatch/internal/engine/model"
	"github.com/Faultbox/cadmatch/internal/engine/render"
	"github.com/Faultbox/cadmatch/internal/logger"
	"github.com/Faultbox/cadmatch/pkg/math"
)

// Ring describes a turntable of cameras: the model spins around +Y in
// front of a fixed camera looking at the origin.
type Ring struct {
	Angles []float32 // azimuths in degrees, in bake order
	Eye    math.Vec3
	Target math.Vec3
	Up     math.Vec3
	Scale  float32 // isotropic model scale
	FovY   float32 // degrees
	Aspect float32
	Near   float32
	Far    float32
}

// DefaultRing returns eight views 45° apart, a camera at (0,0,5) and a
// 45° frustum from 1 to 10, with the model scaled by 0.01.
func DefaultRing() Ring {
	return Ring{
		Angles: []float32{0, 45, 90, 135, 180, 225, 270, 315},
		Eye:    math.Vec3{X: 0, Y: 0, Z: 5},
		Target: math.Vec3{},
		Up:     math.Vec3{X: 0, Y: 1, Z: 0},
		Scale:  0.01,
		FovY:   45,
		Aspect: 1,
		Near:   1,
		Far:    10,
	}
}

// Viewpoints expands the ring into one viewpoint per angle, in order.
// The model matrix is Scale(s) · RotY(θ).
func (r Ring) Viewpoints() []render.Viewpoint {
	view := math.LookAt(r.Eye, r.Target, r.Up)
	proj := math.Perspective(math.Radians(r.FovY), r.Aspect, r.Near, r.Far)
	scale := math.Uniform(r.Scale)

	vps := make([]render.Viewpoint, len(r.Angles))
	for i, deg := range r.Angles {
		vps[i] = render.Viewpoint{
			Index:      i,
			Azimuth:    deg,
			Model:      scale.Mul(math.RotateY(math.Radians(deg))),
			View:       view,
			Projection: proj,
		}
	}
	return vps
}

// Bake uploads mesh to r and renders every viewpoint in order.
// The result always has len(vps) views or an error.
func Bake(r render.Offscreen, mesh *model.Mesh, vps []render.Viewpoint) ([]*render.RenderedView, error) {
	log := logger.Named("bake")
	start := time.Now()

	if err := r.Upload(mesh); err != nil {
		return nil, fmt.Errorf("uploading mesh: %w", err)
	}

	views := make([]*render.RenderedView, 0, len(vps))
	for _, vp := range vps {
		v, err := r.Render(vp)
		if err != nil {
			return nil, fmt.Errorf("rendering view %d (%.0f°): %w", vp.Index, vp.Azimuth, err)
		}
		views = append(views, v)
	}

	w, h := r.Size()
	log.Info("reference views baked",
		zap.Int("views", len(views)),
		zap.Int("width", w),
		zap.Int("height", h),
		zap.Duration("elapsed", time.Since(start)))
	return views, nil
}
