package render

import (
	"fmt"
	gomath "math"

	"go.uber.org/zap"

	"github.com/Faultbox/cadmatch/internal/engine/model"
	"github.com/Faultbox/cadmatch/internal/imaging"
	"github.com/Faultbox/cadmatch/internal/logger"
	"github.com/Faultbox/cadmatch/pkg/math"
)

const depthClear = 0xFFFF

// Software is a CPU implementation of Offscreen.
//
// It reproduces the fixed pipeline of the GL backend: vertices are
// transformed by the MVP, clipped against the near plane, mapped to a
// bottom-left window, and filled with pixel-centre sampling and a top-left
// fill rule. Normals are interpolated perspective-correct, depth is
// quantised to 16 bits and tested with LESS, and nothing is culled.
type Software struct {
	width, height int

	// Creation order: framebuffer (color + depth) then vertex data.
	color []byte   // RGBA, row 0 at the bottom
	depth []uint16 // DEPTH_COMPONENT16

	positions []math.Vec3
	normals   []math.Vec3
	indices   [][3]uint32

	closed bool
	log    *zap.Logger
}

// NewSoftware allocates the color and depth attachments.
func NewSoftware(opts Options) (*Software, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	s := &Software{
		width:  opts.Width,
		height: opts.Height,
		color:  make([]byte, opts.Width*opts.Height*4),
		depth:  make([]uint16, opts.Width*opts.Height),
		log:    logger.Named("render.software"),
	}
	s.log.Debug("software target created", zap.Int("width", s.width), zap.Int("height", s.height))
	return s, nil
}

// Size implements Offscreen.
func (s *Software) Size() (int, int) { return s.width, s.height }

// Upload implements Offscreen.
func (s *Software) Upload(mesh *model.Mesh) error {
	if s.closed {
		return fmt.Errorf("%w: renderer closed", ErrSurfaceUnavailable)
	}
	if mesh == nil || len(mesh.Triangles) == 0 {
		return fmt.Errorf("%w: nothing to upload", ErrSurfaceUnavailable)
	}

	s.positions = make([]math.Vec3, len(mesh.Positions))
	s.normals = make([]math.Vec3, len(mesh.Positions))
	for i, p := range mesh.Positions {
		s.positions[i] = math.V3(p)
		s.normals[i] = math.V3(mesh.Normals[i])
	}
	s.indices = append([][3]uint32(nil), mesh.Triangles...)

	s.log.Debug("mesh uploaded",
		zap.Int("vertices", len(s.positions)),
		zap.Int("triangles", len(s.indices)))
	return nil
}

// Render implements Offscreen.
func (s *Software) Render(vp Viewpoint) (*RenderedView, error) {
	if s.closed {
		return nil, fmt.Errorf("%w: renderer closed", ErrSurfaceUnavailable)
	}
	if s.indices == nil {
		return nil, fmt.Errorf("%w: no mesh uploaded", ErrSurfaceUnavailable)
	}

	s.clear()

	mvp := vp.MVP()
	clip := make([]clipVertex, len(s.positions))
	for i, p := range s.positions {
		clip[i] = clipVertex{pos: mvp.Project(p), normal: s.normals[i]}
	}

	var poly [4]clipVertex
	for _, t := range s.indices {
		n := clipNear(clip[t[0]], clip[t[1]], clip[t[2]], &poly)
		for k := 1; k+1 < n; k++ {
			s.fill(poly[0], poly[k], poly[k+1])
		}
	}

	return &RenderedView{
		Index:   vp.Index,
		Azimuth: vp.Azimuth,
		Image:   s.readPixels(),
	}, nil
}

// Close implements Offscreen.
func (s *Software) Close() error {
	if s.closed {
		return nil
	}
	s.indices, s.normals, s.positions = nil, nil, nil
	s.depth, s.color = nil, nil
	s.closed = true
	s.log.Debug("software target released")
	return nil
}

func (s *Software) clear() {
	for i := 0; i < len(s.color); i += 4 {
		s.color[i], s.color[i+1], s.color[i+2], s.color[i+3] = 0, 0, 0, 0xFF
	}
	for i := range s.depth {
		s.depth[i] = depthClear
	}
}

// readPixels copies the bottom-up attachment into a top-down RGB image.
func (s *Software) readPixels() *imaging.RGB {
	return imaging.FromRGBA(s.color, s.width, s.height, true)
}

type clipVertex struct {
	pos    math.Vec4
	normal math.Vec3
}

func lerpClip(a, b clipVertex, t float32) clipVertex {
	var out clipVertex
	for i := 0; i < 4; i++ {
		out.pos[i] = a.pos[i] + (b.pos[i]-a.pos[i])*t
	}
	out.normal = a.normal.Add(b.normal.Sub(a.normal).Scale(t))
	return out
}

// clipNear clips a triangle against z >= -w and writes the resulting
// convex polygon (0, 3 or 4 vertices) to out.
func clipNear(a, b, c clipVertex, out *[4]clipVertex) int {
	in := [3]clipVertex{a, b, c}
	n := 0
	for i := 0; i < 3; i++ {
		cur, next := in[i], in[(i+1)%3]
		dc := cur.pos[2] + cur.pos[3]
		dn := next.pos[2] + next.pos[3]
		if dc >= 0 {
			out[n] = cur
			n++
		}
		if (dc >= 0) != (dn >= 0) {
			out[n] = lerpClip(cur, next, dc/(dc-dn))
			n++
		}
	}
	return n
}

type windowVertex struct {
	x, y, z float64 // window coordinates, z in [0,1]
	invW    float64
	nOverW  math.Vec3
}

func (s *Software) toWindow(v clipVertex) windowVertex {
	w := float64(v.pos[3])
	inv := 1 / w
	return windowVertex{
		x:      (float64(v.pos[0])*inv + 1) * 0.5 * float64(s.width),
		y:      (float64(v.pos[1])*inv + 1) * 0.5 * float64(s.height),
		z:      (float64(v.pos[2])*inv + 1) * 0.5,
		invW:   inv,
		nOverW: v.normal.Scale(float32(inv)),
	}
}

// edge is positive when p lies to the left of a→b in a y-up frame.
func edge(ax, ay, bx, by, px, py float64) float64 {
	return (bx-ax)*(py-ay) - (by-ay)*(px-ax)
}

// topLeft reports whether a→b is a top or left edge of a CCW triangle.
func topLeft(ax, ay, bx, by float64) bool {
	dy := by - ay
	return dy < 0 || (dy == 0 && bx-ax < 0)
}

func (s *Software) fill(c0, c1, c2 clipVertex) {
	v0, v1, v2 := s.toWindow(c0), s.toWindow(c1), s.toWindow(c2)

	area := edge(v0.x, v0.y, v1.x, v1.y, v2.x, v2.y)
	if area == 0 || gomath.IsNaN(area) {
		return
	}
	// No culling: present every triangle counter-clockwise.
	if area < 0 {
		v1, v2 = v2, v1
		area = -area
	}

	minX := max(int(gomath.Floor(min(v0.x, v1.x, v2.x))), 0)
	maxX := min(int(gomath.Ceil(max(v0.x, v1.x, v2.x))), s.width-1)
	minY := max(int(gomath.Floor(min(v0.y, v1.y, v2.y))), 0)
	maxY := min(int(gomath.Ceil(max(v0.y, v1.y, v2.y))), s.height-1)
	if minX > maxX || minY > maxY {
		return
	}

	tl0 := topLeft(v1.x, v1.y, v2.x, v2.y)
	tl1 := topLeft(v2.x, v2.y, v0.x, v0.y)
	tl2 := topLeft(v0.x, v0.y, v1.x, v1.y)

	for py := minY; py <= maxY; py++ {
		sy := float64(py) + 0.5
		for px := minX; px <= maxX; px++ {
			sx := float64(px) + 0.5

			w0 := edge(v1.x, v1.y, v2.x, v2.y, sx, sy)
			w1 := edge(v2.x, v2.y, v0.x, v0.y, sx, sy)
			w2 := edge(v0.x, v0.y, v1.x, v1.y, sx, sy)
			if !covers(w0, tl0) || !covers(w1, tl1) || !covers(w2, tl2) {
				continue
			}

			b0, b1, b2 := w0/area, w1/area, w2/area

			z := b0*v0.z + b1*v1.z + b2*v2.z
			if z < 0 || z > 1 {
				continue // outside the far plane
			}
			d := uint16(z*depthClear + 0.5)
			di := py*s.width + px
			if d >= s.depth[di] {
				continue
			}

			invW := b0*v0.invW + b1*v1.invW + b2*v2.invW
			n := v0.nOverW.Scale(float32(b0)).
				Add(v1.nOverW.Scale(float32(b1))).
				Add(v2.nOverW.Scale(float32(b2))).
				Scale(float32(1 / invW))

			q := Quantize(Shade(n))
			s.depth[di] = d
			ci := di * 4
			s.color[ci], s.color[ci+1], s.color[ci+2], s.color[ci+3] = q, q, q, 0xFF
		}
	}
}

func covers(w float64, topLeft bool) bool {
	return w > 0 || (w == 0 && topLeft)
}
