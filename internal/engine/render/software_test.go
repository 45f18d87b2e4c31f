package render

import (
	"errors"
	"testing"

	"github.com/Faultbox/cadmatch/internal/engine/model"
	"github.com/Faultbox/cadmatch/pkg/math"
)

func flatViewpoint() Viewpoint {
	return Viewpoint{Model: math.Identity(), View: math.Identity(), Projection: math.Identity()}
}

func meshOf(positions [][3]float32, tris [][3]uint32) *model.Mesh {
	return &model.Mesh{
		Positions: positions,
		Normals:   model.SmoothNormals(positions, tris),
		Triangles: tris,
	}
}

func newTarget(t *testing.T, size int) *Software {
	t.Helper()
	r, err := NewSoftware(Options{Width: size, Height: size})
	if err != nil {
		t.Fatalf("NewSoftware failed: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func pixel(v *RenderedView, x, y int) [3]byte {
	i := v.Image.PixOffset(x, y)
	return [3]byte{v.Image.Pix[i], v.Image.Pix[i+1], v.Image.Pix[i+2]}
}

func TestShadeFacingCamera(t *testing.T) {
	// ambient + (1 + 1/sqrt(3)) * 0.4 = 0.8309
	got := Quantize(Shade(math.Vec3{Z: 1}))
	if got != 212 {
		t.Errorf("facing normal shade = %d, want 212", got)
	}
	if got := Quantize(Shade(math.Vec3{Z: -1})); got != 51 {
		t.Errorf("back normal shade = %d, want ambient 51", got)
	}
	if got := Quantize(Shade(math.Vec3{})); got != 51 {
		t.Errorf("zero normal shade = %d, want ambient 51", got)
	}
}

func TestRenderOriginIsTopLeft(t *testing.T) {
	r := newTarget(t, 8)
	// Lower-left half of clip space.
	mesh := meshOf([][3]float32{{-1, -1, 0}, {1, -1, 0}, {-1, 1, 0}}, [][3]uint32{{0, 1, 2}})
	if err := r.Upload(mesh); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	view, err := r.Render(flatViewpoint())
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if w, h := view.Image.Width(), view.Image.Height(); w != 8 || h != 8 {
		t.Fatalf("image size %dx%d", w, h)
	}

	if got := pixel(view, 0, 7); got != [3]byte{212, 212, 212} {
		t.Errorf("bottom-left pixel = %v, want lit", got)
	}
	if got := pixel(view, 7, 0); got != [3]byte{0, 0, 0} {
		t.Errorf("top-right pixel = %v, want black background", got)
	}
}

func TestRenderSharedEdgeHasNoGaps(t *testing.T) {
	r := newTarget(t, 16)
	mesh := meshOf(
		[][3]float32{{-1, -1, 0}, {1, -1, 0}, {1, 1, 0}, {-1, 1, 0}},
		[][3]uint32{{0, 1, 2}, {0, 2, 3}},
	)
	if err := r.Upload(mesh); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	view, err := r.Render(flatViewpoint())
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			if pixel(view, x, y)[0] == 0 {
				t.Fatalf("pixel (%d,%d) not covered by full-screen quad", x, y)
			}
		}
	}
}

func TestRenderDepthTest(t *testing.T) {
	// Two full-screen quads: the near one faces +Z (bright), the far one
	// is wound the other way so its computed normal faces -Z (ambient only).
	positions := [][3]float32{
		{-1, -1, -0.5}, {1, -1, -0.5}, {1, 1, -0.5}, {-1, 1, -0.5}, // near
		{-1, -1, 0.5}, {1, 1, 0.5}, {1, -1, 0.5}, {-1, 1, 0.5}, // far
	}
	nearQuad := [][3]uint32{{0, 1, 2}, {0, 2, 3}}
	farQuad := [][3]uint32{{4, 5, 6}, {4, 7, 5}}

	tests := []struct {
		name string
		tris [][3]uint32
	}{
		{"near first", append(append([][3]uint32{}, nearQuad...), farQuad...)},
		{"far first", append(append([][3]uint32{}, farQuad...), nearQuad...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTarget(t, 8)
			if err := r.Upload(meshOf(positions, tt.tris)); err != nil {
				t.Fatalf("Upload failed: %v", err)
			}
			view, err := r.Render(flatViewpoint())
			if err != nil {
				t.Fatalf("Render failed: %v", err)
			}
			if got := pixel(view, 4, 4)[0]; got != 212 {
				t.Errorf("center = %d, want near surface 212", got)
			}
		})
	}
}

func TestRenderNearPlaneClipping(t *testing.T) {
	r := newTarget(t, 32)
	vp := Viewpoint{
		Model:      math.Identity(),
		View:       math.Identity(),
		Projection: math.Perspective(math.Radians(45), 1, 1, 10),
	}
	// A floor strip running from behind the camera to beyond the far plane.
	mesh := meshOf(
		[][3]float32{{-1, -0.5, 2}, {1, -0.5, 2}, {1, -0.5, -20}, {-1, -0.5, -20}},
		[][3]uint32{{0, 2, 1}, {0, 3, 2}},
	)
	if err := r.Upload(mesh); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	view, err := r.Render(vp)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	lit := 0
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			if pixel(view, x, y)[0] != 0 {
				lit++
			}
		}
	}
	if lit == 0 {
		t.Error("clipped floor drew nothing")
	}
	// The upper half looks above the horizon.
	if got := pixel(view, 16, 2); got[0] != 0 {
		t.Errorf("sky pixel = %v, want background", got)
	}
}

func TestRenderDeterministic(t *testing.T) {
	r := newTarget(t, 64)
	mesh := meshOf(
		[][3]float32{{-80, -60, 20}, {70, -50, -10}, {10, 90, 30}, {-20, 10, -90}},
		[][3]uint32{{0, 1, 2}, {0, 2, 3}, {1, 3, 2}, {0, 3, 1}},
	)
	if err := r.Upload(mesh); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	vp := Viewpoint{
		Model:      math.Uniform(0.01).Mul(math.RotateY(math.Radians(135))),
		View:       math.LookAt(math.Vec3{Z: 5}, math.Vec3{}, math.Vec3{Y: 1}),
		Projection: math.Perspective(math.Radians(45), 1, 1, 10),
	}
	a, err := r.Render(vp)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	b, err := r.Render(vp)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !a.Image.Equal(b.Image) {
		t.Error("identical viewpoints produced different pixels")
	}
}

func TestRenderErrors(t *testing.T) {
	r, err := NewSoftware(Options{Width: 4, Height: 4})
	if err != nil {
		t.Fatalf("NewSoftware failed: %v", err)
	}

	if _, err := r.Render(flatViewpoint()); !errors.Is(err, ErrSurfaceUnavailable) {
		t.Errorf("render before upload: got %v, want ErrSurfaceUnavailable", err)
	}
	if err := r.Upload(nil); !errors.Is(err, ErrSurfaceUnavailable) {
		t.Errorf("nil upload: got %v, want ErrSurfaceUnavailable", err)
	}

	if err := r.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
	if _, err := r.Render(flatViewpoint()); !errors.Is(err, ErrSurfaceUnavailable) {
		t.Errorf("render after close: got %v, want ErrSurfaceUnavailable", err)
	}

	if _, err := NewSoftware(Options{}); !errors.Is(err, ErrSurfaceUnavailable) {
		t.Errorf("zero size: got %v, want ErrSurfaceUnavailable", err)
	}
}
