package main

import (
	"fmt"
	"math"

	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/Faultbox/cadmatch/pkg/formats"
)

// FlangeParams describes a round plate with a centre bore, bolt holes on a
// pitch circle and a locating lug on one side, in model units.
type FlangeParams struct {
	Radius     float64
	Height     float64
	BoreRadius float64
	Holes      int
	Cells      int
}

// DefaultFlange fits the default bake ring, whose model scale is 0.01.
func DefaultFlange() FlangeParams {
	return FlangeParams{Radius: 80, Height: 24, BoreRadius: 25, Holes: 4, Cells: 64}
}

// Flange builds the solid and meshes it.
func Flange(p FlangeParams) (*formats.OBJ, error) {
	if p.Radius <= 0 || p.Height <= 0 || p.BoreRadius <= 0 || p.BoreRadius >= p.Radius {
		return nil, fmt.Errorf("invalid flange dimensions %+v", p)
	}
	if p.Cells < 8 {
		return nil, fmt.Errorf("need at least 8 cells, got %d", p.Cells)
	}

	plate, err := sdf.Cylinder3D(p.Height, p.Radius, 2)
	if err != nil {
		return nil, fmt.Errorf("plate: %w", err)
	}
	// the lug breaks rotational symmetry so views differ
	lug, err := sdf.Box3D(v3.Vec{X: p.Radius * 0.5, Y: p.Radius * 0.4, Z: p.Height * 2}, 0)
	if err != nil {
		return nil, fmt.Errorf("lug: %w", err)
	}
	lug = sdf.Transform3D(lug, sdf.Translate3d(v3.Vec{X: p.Radius, Z: p.Height / 2}))
	body := sdf.Union3D(plate, lug)

	bore, err := sdf.Cylinder3D(p.Height*4, p.BoreRadius, 0)
	if err != nil {
		return nil, fmt.Errorf("bore: %w", err)
	}
	cuts := []sdf.SDF3{bore}

	holeR := (p.Radius - p.BoreRadius) / 6
	pitch := (p.Radius + p.BoreRadius) / 2
	for i := 0; i < p.Holes; i++ {
		a := 2*math.Pi*float64(i)/float64(p.Holes) + math.Pi/float64(max(p.Holes, 1))
		hole, err := sdf.Cylinder3D(p.Height*4, holeR, 0)
		if err != nil {
			return nil, fmt.Errorf("hole %d: %w", i, err)
		}
		cuts = append(cuts, sdf.Transform3D(hole, sdf.Translate3d(v3.Vec{X: pitch * math.Cos(a), Y: pitch * math.Sin(a)})))
	}
	solid := sdf.Difference3D(body, sdf.Union3D(cuts...))

	// stand the part up so the turntable shows its face
	solid = sdf.Transform3D(solid, sdf.RotateX(math.Pi/2))

	return mesh(solid, p.Cells), nil
}

// mesh runs marching cubes and emits flat-shaded triangles, dropping
// degenerate ones.
func mesh(s sdf.SDF3, cells int) *formats.OBJ {
	tris := render.ToTriangles(s, render.NewMarchingCubesUniform(cells))

	obj := &formats.OBJ{
		Positions: make([][3]float32, 0, len(tris)*3),
		Normals:   make([][3]float32, 0, len(tris)*3),
		Faces:     make([][3]int32, 0, len(tris)),
	}
	for _, t := range tris {
		n := t.Normal()
		if math.IsNaN(n.X) || math.IsNaN(n.Y) || math.IsNaN(n.Z) {
			continue // degenerate
		}
		nf := [3]float32{float32(n.X), float32(n.Y), float32(n.Z)}
		base := int32(len(obj.Positions))
		for j := 0; j < 3; j++ {
			v := t[j]
			obj.Positions = append(obj.Positions, [3]float32{float32(v.X), float32(v.Y), float32(v.Z)})
			obj.Normals = append(obj.Normals, nf)
		}
		obj.Faces = append(obj.Faces, [3]int32{base, base + 1, base + 2})
	}
	return obj
}
