// Package vision defines the feature types shared by the reference and live
// paths, the Toolkit contract the computer-vision backends implement, and the
// Extractor that runs the fixed preprocessing chain before detection.
package vision

import (
	"errors"
	"fmt"
	"image"
	"math"
)

// Vision errors.
var (
	ErrExtract    = errors.New("feature extraction failed")
	ErrMatch      = errors.New("descriptor matching failed")
	ErrHomography = errors.New("homography estimation failed")
)

// Point is a subpixel image coordinate, origin top-left.
type Point struct {
	X, Y float64
}

// Keypoint is a detected feature location with its scale and orientation.
type Keypoint struct {
	X, Y     float64
	Size     float64 // diameter of the described neighbourhood
	Angle    float64 // degrees in [0,360), -1 when not oriented
	Response float64
	Octave   int
}

// Pt returns the keypoint location.
func (k Keypoint) Pt() Point { return Point{k.X, k.Y} }

// DescriptorBlock is a Rows×Cols byte matrix, one binary descriptor per row.
type DescriptorBlock struct {
	Rows, Cols int
	Data       []byte
}

// NewDescriptorBlock allocates a zeroed block.
func NewDescriptorBlock(rows, cols int) DescriptorBlock {
	return DescriptorBlock{Rows: rows, Cols: cols, Data: make([]byte, rows*cols)}
}

// Row returns descriptor i.
func (d DescriptorBlock) Row(i int) []byte {
	return d.Data[i*d.Cols : (i+1)*d.Cols]
}

// Empty reports whether the block has no descriptors.
func (d DescriptorBlock) Empty() bool { return d.Rows == 0 || d.Cols == 0 }

// Clone returns a deep copy.
func (d DescriptorBlock) Clone() DescriptorBlock {
	c := DescriptorBlock{Rows: d.Rows, Cols: d.Cols, Data: make([]byte, len(d.Data))}
	copy(c.Data, d.Data)
	return c
}

// Features pairs keypoints with their descriptors index by index.
type Features struct {
	Keypoints   []Keypoint
	Descriptors DescriptorBlock
}

// Len returns the number of features.
func (f Features) Len() int { return len(f.Keypoints) }

// Empty reports whether there is nothing to match.
func (f Features) Empty() bool { return len(f.Keypoints) == 0 || f.Descriptors.Empty() }

// Validate checks the row/keypoint alignment.
func (f Features) Validate() error {
	if f.Descriptors.Rows != len(f.Keypoints) {
		return fmt.Errorf("%w: %d descriptors for %d keypoints", ErrExtract, f.Descriptors.Rows, len(f.Keypoints))
	}
	if len(f.Descriptors.Data) != f.Descriptors.Rows*f.Descriptors.Cols {
		return fmt.Errorf("%w: descriptor data is %d bytes, want %d", ErrExtract,
			len(f.Descriptors.Data), f.Descriptors.Rows*f.Descriptors.Cols)
	}
	return nil
}

// Clone returns a deep copy that shares nothing with f.
func (f Features) Clone() Features {
	return Features{
		Keypoints:   append([]Keypoint(nil), f.Keypoints...),
		Descriptors: f.Descriptors.Clone(),
	}
}

// DMatch is one query→train correspondence.
type DMatch struct {
	QueryIdx int
	TrainIdx int
	Distance float64
}

// Homography is a 3×3 projective transform in row-major order.
type Homography [9]float64

// Apply maps p through the homography. Points at infinity map to NaN.
func (h Homography) Apply(p Point) Point {
	w := h[6]*p.X + h[7]*p.Y + h[8]
	if w == 0 {
		return Point{math.NaN(), math.NaN()}
	}
	return Point{
		X: (h[0]*p.X + h[1]*p.Y + h[2]) / w,
		Y: (h[3]*p.X + h[4]*p.Y + h[5]) / w,
	}
}

// Algorithm names a binary feature detector.
type Algorithm string

// Supported detectors.
const (
	AKAZE Algorithm = "akaze"
	ORB   Algorithm = "orb"
)

// DetectorParams configures one DetectAndCompute call.
type DetectorParams struct {
	Algorithm Algorithm
	// Threshold is the detector response threshold; 0 keeps the default.
	Threshold float32
	// MaxFeatures caps the strongest keypoints kept (ORB); 0 keeps the default.
	MaxFeatures int
}

// HomographyParams configures robust estimation.
type HomographyParams struct {
	Threshold  float64 // max reprojection error in pixels
	MaxIters   int
	Confidence float64
}

// DefaultHomographyParams matches the usual RANSAC settings: 3 px, 2000
// iterations, 0.995 confidence.
func DefaultHomographyParams() HomographyParams {
	return HomographyParams{Threshold: 3.0, MaxIters: 2000, Confidence: 0.995}
}

// Toolkit is the set of image primitives the pipeline is built on.
// Implementations must be deterministic for identical input.
type Toolkit interface {
	// Name identifies the backend in logs.
	Name() string

	// Grayscale converts a colour image to 8-bit luminance.
	Grayscale(img image.Image) (*image.Gray, error)
	// NormalizeMinMax stretches intensities linearly onto [0,255].
	NormalizeMinMax(src *image.Gray) (*image.Gray, error)
	// GaussianBlur smooths with a ksize×ksize kernel and automatic sigma.
	GaussianBlur(src *image.Gray, ksize int) (*image.Gray, error)
	// Canny returns a binary edge map (0 or 255).
	Canny(src *image.Gray, low, high float64) (*image.Gray, error)

	// DetectAndCompute finds keypoints and their binary descriptors.
	DetectAndCompute(src *image.Gray, p DetectorParams) (Features, error)
	// KnnMatch returns, for every query row, up to k train rows ordered
	// by increasing Hamming distance.
	KnnMatch(query, train DescriptorBlock, k int) ([][]DMatch, error)
	// FindHomography robustly fits dst ≈ H·src and returns the inlier mask.
	FindHomography(src, dst []Point, p HomographyParams) (Homography, []bool, error)
}
