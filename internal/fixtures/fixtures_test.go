package fixtures

import (
	"testing"

	"github.com/Faultbox/cadmatch/internal/engine/model"
)

func TestBracketRoundTrip(t *testing.T) {
	m, err := model.LoadBytes(BracketOBJ())
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	want := BracketMesh()
	if m.VertexCount() != want.VertexCount() || m.TriangleCount() != want.TriangleCount() {
		t.Errorf("loaded %d/%d, want %d/%d",
			m.VertexCount(), m.TriangleCount(), want.VertexCount(), want.TriangleCount())
	}
	if m.TriangleCount() != len(bracketBoxes)*12 {
		t.Errorf("triangles = %d", m.TriangleCount())
	}
	for i, n := range m.Normals {
		if n != want.Normals[i] {
			t.Fatalf("normal %d = %v, want %v", i, n, want.Normals[i])
		}
	}
}

func TestTriangleOBJ(t *testing.T) {
	m, err := model.LoadBytes(TriangleOBJ())
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	if m.VertexCount() != 3 || m.TriangleCount() != 1 {
		t.Errorf("got %d vertices, %d triangles", m.VertexCount(), m.TriangleCount())
	}
}

func TestNoiseDeterministic(t *testing.T) {
	a, b := Noise(16, 16, 7), Noise(16, 16, 7)
	if !a.Equal(b) {
		t.Error("same seed produced different frames")
	}
	if a.Equal(Noise(16, 16, 8)) {
		t.Error("different seeds produced identical frames")
	}
}
