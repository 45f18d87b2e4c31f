// Package fixtures builds small known meshes and images: a machined bracket
// used as the built-in demo part, a single triangle and noise frames.
package fixtures

import (
	"bytes"

	"golang.org/x/exp/rand"

	"github.com/Faultbox/cadmatch/internal/engine/model"
	"github.com/Faultbox/cadmatch/internal/imaging"
	"github.com/Faultbox/cadmatch/pkg/formats"
)

// Box is an axis-aligned block in model units.
type Box struct {
	Min, Max [3]float32
}

// bracketBoxes is an L bracket with a rib and a tab. No two boxes share a
// coplanar face, so the render has no depth fighting.
var bracketBoxes = []Box{
	{Min: [3]float32{-100, -60, -50}, Max: [3]float32{100, -30, 50}},
	{Min: [3]float32{-95, -40, -45}, Max: [3]float32{-60, 80, 45}},
	{Min: [3]float32{10, -40, -20}, Max: [3]float32{60, 20, 10}},
	{Min: [3]float32{-65, 40, 10}, Max: [3]float32{-20, 60, 40}},
}

// Boxes returns flat-shaded geometry for the blocks: every face has its own
// four vertices carrying the face normal.
func Boxes(boxes []Box) *formats.OBJ {
	obj := &formats.OBJ{}
	for _, b := range boxes {
		x0, y0, z0 := b.Min[0], b.Min[1], b.Min[2]
		x1, y1, z1 := b.Max[0], b.Max[1], b.Max[2]
		faces := []struct {
			n [3]float32
			c [4][3]float32
		}{
			{[3]float32{1, 0, 0}, [4][3]float32{{x1, y0, z0}, {x1, y1, z0}, {x1, y1, z1}, {x1, y0, z1}}},
			{[3]float32{-1, 0, 0}, [4][3]float32{{x0, y0, z0}, {x0, y0, z1}, {x0, y1, z1}, {x0, y1, z0}}},
			{[3]float32{0, 1, 0}, [4][3]float32{{x0, y1, z0}, {x0, y1, z1}, {x1, y1, z1}, {x1, y1, z0}}},
			{[3]float32{0, -1, 0}, [4][3]float32{{x0, y0, z0}, {x1, y0, z0}, {x1, y0, z1}, {x0, y0, z1}}},
			{[3]float32{0, 0, 1}, [4][3]float32{{x0, y0, z1}, {x1, y0, z1}, {x1, y1, z1}, {x0, y1, z1}}},
			{[3]float32{0, 0, -1}, [4][3]float32{{x0, y0, z0}, {x0, y1, z0}, {x1, y1, z0}, {x1, y0, z0}}},
		}
		for _, f := range faces {
			base := int32(len(obj.Positions))
			for _, c := range f.c {
				obj.Positions = append(obj.Positions, c)
				obj.Normals = append(obj.Normals, f.n)
			}
			obj.Faces = append(obj.Faces,
				[3]int32{base, base + 1, base + 2},
				[3]int32{base, base + 2, base + 3})
		}
	}
	return obj
}

// Bracket returns the demo part as an OBJ document.
func Bracket() *formats.OBJ { return Boxes(bracketBoxes) }

// BracketOBJ returns the demo part serialised as OBJ text.
func BracketOBJ() []byte { return encode(Bracket()) }

// BracketMesh returns the demo part as a validated mesh.
func BracketMesh() *model.Mesh {
	m, err := model.FromOBJ(Bracket())
	if err != nil {
		panic(err)
	}
	return m
}

// TriangleOBJ is a single unit triangle in the XY plane.
func TriangleOBJ() []byte {
	return encode(&formats.OBJ{
		Positions: [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Faces:     [][3]int32{{0, 1, 2}},
	})
}

// Black returns an all-zero frame.
func Black(w, h int) *imaging.RGB { return imaging.NewRGB(w, h) }

// Noise returns a frame of uniformly random pixels. The same seed gives
// the same frame.
func Noise(w, h int, seed uint64) *imaging.RGB {
	rng := rand.New(rand.NewSource(seed))
	img := imaging.NewRGB(w, h)
	for i := range img.Pix {
		img.Pix[i] = byte(rng.Uint32())
	}
	return img
}

func encode(obj *formats.OBJ) []byte {
	var buf bytes.Buffer
	if err := formats.WriteOBJ(&buf, obj); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
