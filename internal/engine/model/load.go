package model

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/Faultbox/cadmatch/internal/logger"
	"github.com/Faultbox/cadmatch/pkg/formats"
)

// Mesh loading errors.
var (
	ErrMeshIO     = errors.New("mesh io")
	ErrMeshFormat = errors.New("mesh format")
)

// Load parses an OBJ stream into a validated mesh.
//
// Malformed lines are dropped with a warning. Only a failing stream yields
// ErrMeshIO; a mesh that parses but cannot be rendered (fewer than three
// vertices, no triangles, an index out of range) yields ErrMeshFormat.
func Load(r io.Reader) (*Mesh, error) {
	log := logger.Named("mesh")

	obj, err := formats.ParseOBJ(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMeshIO, err)
	}
	for _, w := range obj.Warnings {
		log.Warn("dropped malformed OBJ line",
			zap.Int("line", w.Line),
			zap.String("text", w.Text),
			zap.Error(w.Err))
	}

	mesh, err := FromOBJ(obj)
	if err != nil {
		return nil, err
	}

	log.Info("mesh loaded",
		zap.Int("vertices", mesh.VertexCount()),
		zap.Int("triangles", mesh.TriangleCount()),
		zap.Int("warnings", len(obj.Warnings)))
	return mesh, nil
}

// LoadBytes parses an in-memory OBJ document.
func LoadBytes(data []byte) (*Mesh, error) {
	return Load(bytes.NewReader(data))
}

// LoadFile parses the OBJ file at path.
func LoadFile(path string) (*Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMeshIO, err)
	}
	defer f.Close()
	return Load(f)
}

// FromOBJ validates a parsed document and builds the mesh.
// When the document does not carry exactly one normal per vertex the
// normals are recomputed from the geometry.
func FromOBJ(obj *formats.OBJ) (*Mesh, error) {
	v := len(obj.Positions)
	if v < 3 {
		return nil, fmt.Errorf("%w: need at least 3 vertices, got %d", ErrMeshFormat, v)
	}
	if len(obj.Faces) == 0 {
		return nil, fmt.Errorf("%w: no triangles", ErrMeshFormat)
	}

	tris := make([][3]uint32, len(obj.Faces))
	for i, f := range obj.Faces {
		for k, idx := range f {
			if idx < 0 || int(idx) >= v {
				return nil, fmt.Errorf("%w: triangle %d references vertex %d of %d",
					ErrMeshFormat, i, idx, v)
			}
			tris[i][k] = uint32(idx)
		}
	}

	positions := make([][3]float32, v)
	copy(positions, obj.Positions)

	var normals [][3]float32
	if len(obj.Normals) == v {
		normals = make([][3]float32, v)
		copy(normals, obj.Normals)
	} else {
		if len(obj.Normals) > 0 {
			logger.Named("mesh").Warn("normal count differs from vertex count, recomputing",
				zap.Int("normals", len(obj.Normals)),
				zap.Int("vertices", v))
		}
		normals = SmoothNormals(positions, tris)
	}

	return &Mesh{
		Positions: positions,
		Normals:   normals,
		Triangles: tris,
		Bounds:    computeBounds(positions),
	}, nil
}
