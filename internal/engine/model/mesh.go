// Package model turns OBJ documents into validated triangle meshes ready for
// rendering.
package model

import "github.com/Faultbox/cadmatch/pkg/math"

// Mesh is an indexed triangle mesh. Positions and Normals are parallel;
// every index in Triangles is zero-based and lies in [0, len(Positions)).
type Mesh struct {
	Positions [][3]float32
	Normals   [][3]float32
	Triangles [][3]uint32
	Bounds    Bounds
}

// Bounds holds the axis-aligned bounding box of the mesh.
type Bounds struct {
	Min [3]float32
	Max [3]float32
}

// Center returns the middle of the box.
func (b Bounds) Center() [3]float32 {
	return [3]float32{
		(b.Min[0] + b.Max[0]) / 2,
		(b.Min[1] + b.Max[1]) / 2,
		(b.Min[2] + b.Max[2]) / 2,
	}
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int { return len(m.Positions) }

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int { return len(m.Triangles) }

// Indices flattens Triangles for an element buffer.
func (m *Mesh) Indices() []uint32 {
	out := make([]uint32, 0, len(m.Triangles)*3)
	for _, t := range m.Triangles {
		out = append(out, t[0], t[1], t[2])
	}
	return out
}

// Interleaved packs position and normal per vertex (6 floats each).
func (m *Mesh) Interleaved() []float32 {
	out := make([]float32, 0, len(m.Positions)*6)
	for i, p := range m.Positions {
		n := m.Normals[i]
		out = append(out, p[0], p[1], p[2], n[0], n[1], n[2])
	}
	return out
}

// computeBounds returns the box enclosing every position.
func computeBounds(positions [][3]float32) Bounds {
	b := Bounds{
		Min: [3]float32{1e30, 1e30, 1e30},
		Max: [3]float32{-1e30, -1e30, -1e30},
	}
	for _, p := range positions {
		for i := 0; i < 3; i++ {
			b.Min[i] = min(b.Min[i], p[i])
			b.Max[i] = max(b.Max[i], p[i])
		}
	}
	return b
}

// SmoothNormals computes per-vertex normals as the area weighted sum of
// the incident face normals. Vertices touched by no triangle get +Z.
func SmoothNormals(positions [][3]float32, triangles [][3]uint32) [][3]float32 {
	acc := make([]math.Vec3, len(positions))
	for _, t := range triangles {
		a := math.V3(positions[t[0]])
		b := math.V3(positions[t[1]])
		c := math.V3(positions[t[2]])
		// The unnormalised cross product is twice the triangle area.
		n := b.Sub(a).Cross(c.Sub(a))
		for _, i := range t {
			acc[i] = acc[i].Add(n)
		}
	}

	out := make([][3]float32, len(positions))
	for i, n := range acc {
		if n.Length() == 0 {
			out[i] = [3]float32{0, 0, 1}
			continue
		}
		out[i] = n.Normalize().Array()
	}
	return out
}
