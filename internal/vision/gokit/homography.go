package gokit

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"github.com/Faultbox/cadmatch/internal/vision"
)

const minimalSample = 4

var (
	errTooFewPoints = errors.New("need at least 4 point pairs")
	errNoModel      = errors.New("no non-degenerate sample")
)

// sampler draws distinct indices in [0,n).
type sampler struct {
	rng *rand.Rand
	n   int
}

func (s *sampler) Sample(ids []int) {
	for i := range ids {
		v := s.rng.Intn(s.n)
		for slices.Contains(ids[:i], v) {
			v = s.rng.Intn(s.n)
		}
		ids[i] = v
	}
}

// homographyModel fits and scores candidate transforms for one
// correspondence set.
type homographyModel struct {
	src, dst []vision.Point
	thr2     float64
}

func (m *homographyModel) Fit(ids []int) (vision.Homography, bool) {
	s := make([]vision.Point, len(ids))
	d := make([]vision.Point, len(ids))
	for i, id := range ids {
		s[i], d[i] = m.src[id], m.dst[id]
	}
	if len(ids) == minimalSample && !consistentQuad(s, d) {
		return vision.Homography{}, false
	}
	return dlt(s, d)
}

// Inliers marks pairs whose squared reprojection error is within the
// threshold.
func (m *homographyModel) Inliers(h vision.Homography, mask []bool) int {
	n := 0
	for i := range m.src {
		p := h.Apply(m.src[i])
		dx, dy := p.X-m.dst[i].X, p.Y-m.dst[i].Y
		in := dx*dx+dy*dy <= m.thr2
		mask[i] = in
		if in {
			n++
		}
	}
	return n
}

// FindHomography implements vision.Toolkit with adaptive RANSAC over
// minimal samples followed by a least-squares refit on the inliers.
// The inlier mask is the one of the best minimal model.
func (k *Kit) FindHomography(src, dst []vision.Point, p vision.HomographyParams) (vision.Homography, []bool, error) {
	if len(src) != len(dst) {
		return vision.Homography{}, nil, fmt.Errorf("point count mismatch: %d vs %d", len(src), len(dst))
	}
	n := len(src)
	if n < minimalSample {
		return vision.Homography{}, nil, errTooFewPoints
	}
	if p.MaxIters <= 0 {
		p.MaxIters = 2000
	}
	if p.Confidence <= 0 || p.Confidence >= 1 {
		p.Confidence = 0.995
	}

	model := &homographyModel{src: src, dst: dst, thr2: p.Threshold * p.Threshold}
	smp := &sampler{rng: rand.New(rand.NewSource(k.seed)), n: n}

	var (
		best      vision.Homography
		bestCount int
		found     bool
		ids       = make([]int, minimalSample)
		mask      = make([]bool, n)
		bestMask  = make([]bool, n)
		iters     = p.MaxIters
	)
	for i := 0; i < iters; i++ {
		smp.Sample(ids)
		h, ok := model.Fit(ids)
		if !ok {
			continue
		}
		c := model.Inliers(h, mask)
		if c > bestCount {
			best, bestCount, found = h, c, true
			copy(bestMask, mask)
			iters = min(iters, ransacIterations(p.Confidence, float64(c)/float64(n), p.MaxIters))
		}
	}
	if !found {
		return vision.Homography{}, nil, errNoModel
	}

	inliers := make([]int, 0, bestCount)
	for i, in := range bestMask {
		if in {
			inliers = append(inliers, i)
		}
	}
	if h, ok := model.Fit(inliers); ok {
		best = h
	}
	return best, bestMask, nil
}

// ransacIterations is the number of minimal samples needed to draw one
// all-inlier sample with the given confidence.
func ransacIterations(confidence, inlierRatio float64, maxIters int) int {
	num := math.Log(1 - confidence)
	denom := math.Log(1 - math.Pow(inlierRatio, minimalSample))
	if denom >= 0 || -num >= float64(maxIters)*(-denom) {
		return maxIters
	}
	return int(math.Round(num / denom))
}

// consistentQuad rejects samples with three collinear points or whose
// triangles change orientation between the two images.
func consistentQuad(s, d []vision.Point) bool {
	tri := [4][3]int{{0, 1, 2}, {0, 1, 3}, {0, 2, 3}, {1, 2, 3}}
	for _, t := range tri {
		as := cross(s[t[0]], s[t[1]], s[t[2]])
		ad := cross(d[t[0]], d[t[1]], d[t[2]])
		if math.Abs(as) < 1e-6 || math.Abs(ad) < 1e-6 {
			return false
		}
		if (as < 0) != (ad < 0) {
			return false
		}
	}
	return true
}

func cross(a, b, c vision.Point) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

// dlt solves dst ≈ H·src by the normalised direct linear transform.
func dlt(src, dst []vision.Point) (vision.Homography, bool) {
	n := len(src)
	if n < minimalSample {
		return vision.Homography{}, false
	}
	ts, ns := normalize(src)
	td, nd := normalize(dst)

	a := mat.NewDense(2*n, 9, nil)
	for i := 0; i < n; i++ {
		x, y := ns[i].X, ns[i].Y
		u, v := nd[i].X, nd[i].Y
		a.SetRow(2*i, []float64{-x, -y, -1, 0, 0, 0, u * x, u * y, u})
		a.SetRow(2*i+1, []float64{0, 0, 0, -x, -y, -1, v * x, v * y, v})
	}

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDFull) {
		return vision.Homography{}, false
	}
	var vt mat.Dense
	svd.VTo(&vt)
	hn := mat.NewDense(3, 3, nil)
	for i := 0; i < 9; i++ {
		hn.Set(i/3, i%3, vt.At(i, 8))
	}

	// H = Td⁻¹ · Hn · Ts
	var tdInv mat.Dense
	if err := tdInv.Inverse(td); err != nil {
		return vision.Homography{}, false
	}
	var h mat.Dense
	h.Product(&tdInv, hn, ts)

	scale := h.At(2, 2)
	if math.Abs(scale) < 1e-12 {
		return vision.Homography{}, false
	}
	var out vision.Homography
	for i := 0; i < 9; i++ {
		out[i] = h.At(i/3, i%3) / scale
		if math.IsNaN(out[i]) || math.IsInf(out[i], 0) {
			return vision.Homography{}, false
		}
	}
	return out, true
}

// normalize translates points to their centroid and scales them to a mean
// distance of √2, returning the transform and the moved points.
func normalize(pts []vision.Point) (*mat.Dense, []vision.Point) {
	var cx, cy float64
	for _, p := range pts {
		cx += p.X
		cy += p.Y
	}
	cx /= float64(len(pts))
	cy /= float64(len(pts))

	var dist float64
	for _, p := range pts {
		dist += math.Hypot(p.X-cx, p.Y-cy)
	}
	dist /= float64(len(pts))
	s := 1.0
	if dist > 0 {
		s = math.Sqrt2 / dist
	}

	out := make([]vision.Point, len(pts))
	for i, p := range pts {
		out[i] = vision.Point{X: (p.X - cx) * s, Y: (p.Y - cy) * s}
	}
	t := mat.NewDense(3, 3, []float64{
		s, 0, -s * cx,
		0, s, -s * cy,
		0, 0, 1,
	})
	return t, out
}
