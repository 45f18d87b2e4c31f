package gokit

import (
	"cmp"
	"image"
	"math"
	"slices"

	"golang.org/x/image/draw"

	"github.com/Faultbox/cadmatch/internal/vision"
)

const (
	defaultMaxFeatures = 500
	fastThreshold      = 20
	pyramidLevels      = 8
	pyramidScale       = 1.2
	patchSize          = 31
	halfPatch          = patchSize / 2
	// rotated BRIEF samples reach halfPatch·√2 from the centre
	edgeBorder  = 22
	harrisBlock = 7
	harrisK     = 0.04
	descBytes   = 32
)

// fastCircle is the 16-pixel Bresenham circle of radius 3, clockwise from
// the top.
var fastCircle = [16][2]int{
	{0, -3}, {1, -3}, {2, -2}, {3, -1}, {3, 0}, {3, 1}, {2, 2}, {1, 3},
	{0, 3}, {-1, 3}, {-2, 2}, {-3, 1}, {-3, 0}, {-3, -1}, {-2, -2}, {-1, -3},
}

type candidate struct {
	x, y     int
	response float64
}

// orb detects oriented FAST corners on a scale pyramid, ranks them by the
// Harris measure and describes each with 256 rotated intensity tests.
// The per-level budget is a fixed fraction of maxFeatures and the ranking
// is total, so a smaller budget always selects a prefix of a larger one.
func (k *Kit) orb(src *image.Gray, maxFeatures int) vision.Features {
	if maxFeatures <= 0 {
		maxFeatures = defaultMaxFeatures
	}
	budgets := levelBudgets(maxFeatures)

	var kps []vision.Keypoint
	var desc []byte

	level := compact(src)
	scale := 1.0
	for l := 0; l < pyramidLevels; l++ {
		if l > 0 {
			scale *= pyramidScale
			w := int(math.Round(float64(src.Rect.Dx()) / scale))
			h := int(math.Round(float64(src.Rect.Dy()) / scale))
			if w <= 2*edgeBorder || h <= 2*edgeBorder {
				break
			}
			next := image.NewGray(image.Rect(0, 0, w, h))
			draw.BiLinear.Scale(next, next.Rect, level, level.Rect, draw.Src, nil)
			level = next
		}
		if budgets[l] == 0 {
			continue
		}

		cands := fastCorners(level, fastThreshold)
		if len(cands) == 0 {
			continue
		}
		harrisRank(level, cands)
		if len(cands) > budgets[l] {
			cands = cands[:budgets[l]]
		}

		smooth := convolve(level, gaussianKernelSigma(7, 2))
		for _, c := range cands {
			angle := icAngle(level, c.x, c.y)
			desc = append(desc, k.describe(smooth, c.x, c.y, angle)...)
			kps = append(kps, vision.Keypoint{
				X:        float64(c.x) * scale,
				Y:        float64(c.y) * scale,
				Size:     patchSize * scale,
				Angle:    angle,
				Response: c.response,
				Octave:   l,
			})
		}
	}

	return vision.Features{
		Keypoints:   kps,
		Descriptors: vision.DescriptorBlock{Rows: len(kps), Cols: descBytes, Data: desc},
	}
}

// levelBudgets splits n geometrically across the pyramid, finer levels
// getting more.
func levelBudgets(n int) []int {
	out := make([]int, pyramidLevels)
	factor := 1 / pyramidScale
	desired := float64(n) * (1 - factor) / (1 - math.Pow(factor, pyramidLevels))
	sum := 0
	for l := 0; l < pyramidLevels-1; l++ {
		out[l] = int(math.Round(desired))
		sum += out[l]
		desired *= factor
	}
	out[pyramidLevels-1] = max(n-sum, 0)
	return out
}

// fastCorners runs FAST-9 with non-maximum suppression over the 3×3
// neighbourhood. Equal scores are resolved in favour of the earlier pixel
// in raster order.
func fastCorners(g *image.Gray, t int) []candidate {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	score := make([]int32, w*h)
	for y := edgeBorder; y < h-edgeBorder; y++ {
		for x := edgeBorder; x < w-edgeBorder; x++ {
			score[y*w+x] = fastScore(g, x, y, t)
		}
	}

	var out []candidate
	for y := edgeBorder; y < h-edgeBorder; y++ {
		for x := edgeBorder; x < w-edgeBorder; x++ {
			s := score[y*w+x]
			if s == 0 {
				continue
			}
			if s <= score[(y-1)*w+x-1] || s <= score[(y-1)*w+x] || s <= score[(y-1)*w+x+1] ||
				s <= score[y*w+x-1] || s < score[y*w+x+1] ||
				s < score[(y+1)*w+x-1] || s < score[(y+1)*w+x] || s < score[(y+1)*w+x+1] {
				continue
			}
			out = append(out, candidate{x: x, y: y})
		}
	}
	return out
}

// fastScore returns 0 unless at least 9 contiguous circle pixels are all
// brighter or all darker than the centre by more than t. The score is the
// summed excess over t on the winning side.
func fastScore(g *image.Gray, x, y, t int) int32 {
	c := int(g.Pix[y*g.Stride+x])
	var d [16]int
	for i, o := range fastCircle {
		d[i] = int(g.Pix[(y+o[1])*g.Stride+x+o[0]]) - c
	}

	bright, dark := 0, 0
	for i := 0; i < 16; i += 4 {
		if d[i] > t {
			bright++
		} else if d[i] < -t {
			dark++
		}
	}
	if bright < 2 && dark < 2 {
		return 0
	}

	var best int32
	if bright >= 2 && longestRun(&d, func(v int) bool { return v > t }) >= 9 {
		var s int32
		for _, v := range d {
			if v > t {
				s += int32(v - t)
			}
		}
		best = s
	}
	if dark >= 2 && longestRun(&d, func(v int) bool { return v < -t }) >= 9 {
		var s int32
		for _, v := range d {
			if v < -t {
				s += int32(-v - t)
			}
		}
		best = max(best, s)
	}
	return best
}

func longestRun(d *[16]int, pred func(int) bool) int {
	run, best := 0, 0
	for i := 0; i < 32; i++ {
		if pred(d[i&15]) {
			run++
			best = max(best, min(run, 16))
		} else {
			run = 0
		}
	}
	return best
}

// harrisRank scores candidates with the Harris measure over a 7×7 block
// and sorts them strongest first, ties by position.
func harrisRank(g *image.Gray, cands []candidate) {
	dx, dy := sobel(g)
	w := g.Rect.Dx()
	r := harrisBlock / 2
	norm := 1.0 / (4.0 * harrisBlock * 255.0)
	norm = norm * norm * norm * norm

	for i := range cands {
		c := &cands[i]
		var a, b, cc float64
		for y := c.y - r; y <= c.y+r; y++ {
			for x := c.x - r; x <= c.x+r; x++ {
				ix, iy := float64(dx[y*w+x]), float64(dy[y*w+x])
				a += ix * ix
				b += iy * iy
				cc += ix * iy
			}
		}
		c.response = (a*b - cc*cc - harrisK*(a+b)*(a+b)) * norm
	}

	slices.SortStableFunc(cands, func(p, q candidate) int {
		if p.response != q.response {
			return cmp.Compare(q.response, p.response)
		}
		if p.y != q.y {
			return cmp.Compare(p.y, q.y)
		}
		return cmp.Compare(p.x, q.x)
	})
}

// icAngle returns the intensity-centroid orientation in degrees [0,360).
func icAngle(g *image.Gray, cx, cy int) float64 {
	var m01, m10 float64
	for dy := -halfPatch; dy <= halfPatch; dy++ {
		for dx := -halfPatch; dx <= halfPatch; dx++ {
			if dx*dx+dy*dy > halfPatch*halfPatch {
				continue
			}
			v := float64(g.Pix[(cy+dy)*g.Stride+cx+dx])
			m10 += float64(dx) * v
			m01 += float64(dy) * v
		}
	}
	a := math.Atan2(m01, m10) * 180 / math.Pi
	if a < 0 {
		a += 360
	}
	return a
}

// describe evaluates the rotated test pattern on the smoothed level.
// Bit j is set when the first sample of pair j is darker than the second.
func (k *Kit) describe(g *image.Gray, cx, cy int, angle float64) []byte {
	sin, cos := math.Sincos(angle * math.Pi / 180)
	sample := func(p [2]float64) int {
		x := int(math.Round(p[0]*cos - p[1]*sin))
		y := int(math.Round(p[0]*sin + p[1]*cos))
		return int(g.Pix[(cy+y)*g.Stride+cx+x])
	}

	out := make([]byte, descBytes)
	for j, pr := range k.pattern {
		if sample(pr.a) < sample(pr.b) {
			out[j>>3] |= 1 << (j & 7)
		}
	}
	return out
}

func gaussianKernelSigma(ksize int, sigma float64) []float32 {
	kernel := make([]float32, ksize)
	c := float64(ksize-1) / 2
	var sum float64
	vals := make([]float64, ksize)
	for i := range vals {
		d := float64(i) - c
		vals[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sum += vals[i]
	}
	for i, v := range vals {
		kernel[i] = float32(v / sum)
	}
	return kernel
}
