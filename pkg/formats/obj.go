// Package formats provides readers and writers for mesh interchange formats.
package formats

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// OBJ format errors.
var (
	ErrOBJRead       = errors.New("reading OBJ stream")
	ErrOBJBadNumber  = errors.New("malformed number")
	ErrOBJShortLine  = errors.New("too few components")
	ErrOBJZeroIndex  = errors.New("face index 0 is not valid")
	ErrOBJBackRefOOB = errors.New("relative face index before first vertex")
)

// maxOBJLine bounds a single line; CAD exports can emit very long comment lines.
const maxOBJLine = 1 << 20

// OBJWarning records a line that was dropped while parsing.
type OBJWarning struct {
	Line int
	Text string
	Err  error
}

// String formats the warning for logs.
func (w OBJWarning) String() string {
	return fmt.Sprintf("line %d: %v: %q", w.Line, w.Err, w.Text)
}

// OBJ is the triangle subset of a Wavefront OBJ file.
// Face indices are zero-based.
type OBJ struct {
	Positions [][3]float32
	Normals   [][3]float32
	Faces     [][3]int32
	Warnings  []OBJWarning
}

// ParseOBJ reads v, vn and f records from r. Other records are ignored.
// Faces keep only their first three vertices; for each vertex only the
// position index before the first slash is read. Lines with malformed
// numbers are dropped and reported in Warnings. The only error returned
// is a read failure of the underlying stream.
func ParseOBJ(r io.Reader) (*OBJ, error) {
	obj := &OBJ{}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxOBJLine)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		text := sc.Text()
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}

		var err error
		switch fields[0] {
		case "v":
			var p [3]float32
			if p, err = parseVec3(fields[1:]); err == nil {
				obj.Positions = append(obj.Positions, p)
			}
		case "vn":
			var n [3]float32
			if n, err = parseVec3(fields[1:]); err == nil {
				obj.Normals = append(obj.Normals, n)
			}
		case "f":
			var f [3]int32
			if f, err = parseFace(fields[1:], len(obj.Positions)); err == nil {
				obj.Faces = append(obj.Faces, f)
			}
		}
		if err != nil {
			obj.Warnings = append(obj.Warnings, OBJWarning{Line: lineNo, Text: text, Err: err})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: line %d: %w", ErrOBJRead, lineNo+1, err)
	}

	return obj, nil
}

// ParseOBJBytes parses an in-memory OBJ document.
func ParseOBJBytes(data []byte) (*OBJ, error) {
	return ParseOBJ(bytes.NewReader(data))
}

// LoadOBJ parses the OBJ file at path.
func LoadOBJ(path string) (*OBJ, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOBJRead, err)
	}
	defer f.Close()
	return ParseOBJ(f)
}

func parseVec3(fields []string) ([3]float32, error) {
	var v [3]float32
	if len(fields) < 3 {
		return v, ErrOBJShortLine
	}
	for i := 0; i < 3; i++ {
		f, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return v, fmt.Errorf("%w: %q", ErrOBJBadNumber, fields[i])
		}
		v[i] = float32(f)
	}
	return v, nil
}

// parseFace resolves the first three vertex references of a face.
// seen is the number of positions defined so far, used for negative indices.
func parseFace(fields []string, seen int) ([3]int32, error) {
	var f [3]int32
	if len(fields) < 3 {
		return f, ErrOBJShortLine
	}
	for i := 0; i < 3; i++ {
		tok := fields[i]
		if slash := strings.IndexByte(tok, '/'); slash >= 0 {
			tok = tok[:slash]
		}
		idx, err := strconv.ParseInt(tok, 10, 32)
		if err != nil {
			return f, fmt.Errorf("%w: %q", ErrOBJBadNumber, fields[i])
		}
		switch {
		case idx > 0:
			f[i] = int32(idx - 1)
		case idx < 0:
			if int(-idx) > seen {
				return f, ErrOBJBackRefOOB
			}
			f[i] = int32(seen + int(idx))
		default:
			return f, ErrOBJZeroIndex
		}
	}
	return f, nil
}

// WriteOBJ writes positions, normals and faces in the subset ParseOBJ reads.
// When the normal count equals the position count faces use v//vn references.
func WriteOBJ(w io.Writer, obj *OBJ) error {
	bw := bufio.NewWriter(w)

	for _, p := range obj.Positions {
		fmt.Fprintf(bw, "v %s %s %s\n", ftoa(p[0]), ftoa(p[1]), ftoa(p[2]))
	}
	for _, n := range obj.Normals {
		fmt.Fprintf(bw, "vn %s %s %s\n", ftoa(n[0]), ftoa(n[1]), ftoa(n[2]))
	}

	paired := len(obj.Normals) == len(obj.Positions) && len(obj.Normals) > 0
	for _, f := range obj.Faces {
		a, b, c := f[0]+1, f[1]+1, f[2]+1
		if paired {
			fmt.Fprintf(bw, "f %d//%d %d//%d %d//%d\n", a, a, b, b, c, c)
		} else {
			fmt.Fprintf(bw, "f %d %d %d\n", a, b, c)
		}
	}

	return bw.Flush()
}

func ftoa(v float32) string {
	return strconv.FormatFloat(float64(v), 'g', -1, 32)
}
