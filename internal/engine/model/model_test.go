package model

import (
	"errors"
	"io"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Faultbox/cadmatch/internal/logger"
)

const unitTriangle = `v 0 0 0
v 1 0 0
v 0 1 0
f 1 2 3
`

func TestLoadUnitTriangle(t *testing.T) {
	mesh, err := Load(strings.NewReader(unitTriangle))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if mesh.VertexCount() != 3 || mesh.TriangleCount() != 1 {
		t.Fatalf("got %d vertices, %d triangles", mesh.VertexCount(), mesh.TriangleCount())
	}
	if len(mesh.Normals) != 3 {
		t.Fatalf("expected 3 normals, got %d", len(mesh.Normals))
	}
	// No vn records: the computed normal faces +Z for this winding.
	for i, n := range mesh.Normals {
		if n != [3]float32{0, 0, 1} {
			t.Errorf("normal %d = %v, want (0,0,1)", i, n)
		}
	}
	if mesh.Bounds.Max != [3]float32{1, 1, 0} {
		t.Errorf("bounds max = %v", mesh.Bounds.Max)
	}
}

func TestLoadMalformedVertexMidFile(t *testing.T) {
	src := `v -1 -1 0
v 1 -1 0
v 1 1 0 0.5
v 0 zero 0
v -1 1 0
f 1 2 3
f 1 3 4
`
	mesh, err := Load(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if mesh.VertexCount() != 4 {
		t.Errorf("expected the 4 well-formed vertices, got %d", mesh.VertexCount())
	}
	if mesh.Positions[3] != [3]float32{-1, 1, 0} {
		t.Errorf("vertex after malformed line = %v", mesh.Positions[3])
	}
	if mesh.TriangleCount() != 2 {
		t.Errorf("expected 2 triangles, got %d", mesh.TriangleCount())
	}
}

func TestLoadFormatErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"empty", ""},
		{"no triangles", "v 0 0 0\nv 1 0 0\nv 0 1 0\n"},
		{"two vertices", "v 0 0 0\nv 1 0 0\nf 1 2 2\n"},
		{"index out of range", "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 4\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.src))
			if !errors.Is(err, ErrMeshFormat) {
				t.Errorf("expected ErrMeshFormat, got %v", err)
			}
		})
	}
}

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }

func TestLoadIOError(t *testing.T) {
	_, err := Load(brokenReader{})
	if !errors.Is(err, ErrMeshIO) {
		t.Errorf("expected ErrMeshIO, got %v", err)
	}
	if errors.Is(err, ErrMeshFormat) {
		t.Error("stream failures must not be reported as format errors")
	}

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.obj"))
	if !errors.Is(err, ErrMeshIO) {
		t.Errorf("expected ErrMeshIO for missing file, got %v", err)
	}
}

func TestLoadKeepsParallelNormals(t *testing.T) {
	src := unitTriangle + "vn 0 1 0\nvn 0 1 0\nvn 0 1 0\n"
	mesh, err := LoadBytes([]byte(src))
	if err != nil {
		t.Fatalf("LoadBytes failed: %v", err)
	}
	// Normals are taken as given, even when they disagree with the winding.
	if mesh.Normals[0] != [3]float32{0, 1, 0} {
		t.Errorf("normal = %v, want file value (0,1,0)", mesh.Normals[0])
	}
}

func TestLoadWarnsOnNormalCountMismatch(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	prev := logger.Log
	logger.Log = zap.New(core)
	t.Cleanup(func() { logger.Log = prev })

	mesh, err := LoadBytes([]byte(unitTriangle + "vn 0 1 0\n"))
	if err != nil {
		t.Fatalf("LoadBytes failed: %v", err)
	}
	if mesh.Normals[0] != [3]float32{0, 0, 1} {
		t.Errorf("normal = %v, want recomputed (0,0,1)", mesh.Normals[0])
	}

	entries := logs.FilterMessageSnippet("normal count").All()
	if len(entries) != 1 {
		t.Fatalf("got %d normal count entries, want 1", len(entries))
	}
	if entries[0].Level != zapcore.WarnLevel {
		t.Errorf("level = %v, want warn", entries[0].Level)
	}
}

func TestSmoothNormalsSharedEdge(t *testing.T) {
	// Two triangles folded 90 degrees along the X axis.
	positions := [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	tris := [][3]uint32{{0, 1, 2}, {0, 3, 1}}

	normals := SmoothNormals(positions, tris)
	shared := normals[0]
	want := float32(1 / math.Sqrt2)
	if abs(shared[1]-want) > 1e-5 || abs(shared[2]-want) > 1e-5 {
		t.Errorf("shared vertex normal = %v, want (0,%.4f,%.4f)", shared, want, want)
	}
}

func TestIndicesAndInterleaved(t *testing.T) {
	mesh, err := Load(strings.NewReader(unitTriangle))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := mesh.Indices(); len(got) != 3 || got[2] != 2 {
		t.Errorf("Indices = %v", got)
	}
	inter := mesh.Interleaved()
	if len(inter) != 18 {
		t.Fatalf("expected 18 floats, got %d", len(inter))
	}
	// Second vertex: position (1,0,0) followed by its normal.
	if inter[6] != 1 || inter[11] != 1 {
		t.Errorf("unexpected interleaving: %v", inter[6:12])
	}
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
