//go:build !purego

// Package cvkit implements vision.Toolkit on OpenCV through gocv.
package cvkit

import (
	"errors"
	"fmt"
	"image"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/Faultbox/cadmatch/internal/imaging"
	"github.com/Faultbox/cadmatch/internal/logger"
	"github.com/Faultbox/cadmatch/internal/vision"
)

const (
	orbDefaultFeatures = 500
	orbFastThreshold   = 20
)

var (
	errEmptyImage  = errors.New("empty image")
	errEmptyResult = errors.New("opencv returned an empty matrix")
)

// Kit implements vision.Toolkit. Every call owns its matrices, so a Kit
// may be shared between goroutines.
type Kit struct {
	log *zap.Logger
}

// New creates an OpenCV-backed toolkit.
func New() *Kit {
	return &Kit{log: logger.Named("cvkit")}
}

// Name implements vision.Toolkit.
func (k *Kit) Name() string { return "opencv" }

// Grayscale implements vision.Toolkit.
func (k *Kit) Grayscale(img image.Image) (*image.Gray, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, errEmptyImage
	}
	rgb := imaging.ToRGB(img)
	src, err := gocv.NewMatFromBytes(rgb.Height(), rgb.Width(), gocv.MatTypeCV8UC3, packed(rgb))
	if err != nil {
		return nil, err
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.CvtColor(src, &dst, gocv.ColorRGBToGray)
	return toGray(dst)
}

// NormalizeMinMax implements vision.Toolkit.
func (k *Kit) NormalizeMinMax(src *image.Gray) (*image.Gray, error) {
	return k.filter(src, func(in gocv.Mat, out *gocv.Mat) {
		gocv.Normalize(in, out, 0, 255, gocv.NormMinMax)
	})
}

// GaussianBlur implements vision.Toolkit.
func (k *Kit) GaussianBlur(src *image.Gray, ksize int) (*image.Gray, error) {
	if ksize <= 0 || ksize%2 == 0 {
		return nil, fmt.Errorf("kernel size %d must be positive and odd", ksize)
	}
	return k.filter(src, func(in gocv.Mat, out *gocv.Mat) {
		gocv.GaussianBlur(in, out, image.Pt(ksize, ksize), 0, 0, gocv.BorderDefault)
	})
}

// Canny implements vision.Toolkit.
func (k *Kit) Canny(src *image.Gray, low, high float64) (*image.Gray, error) {
	return k.filter(src, func(in gocv.Mat, out *gocv.Mat) {
		gocv.Canny(in, out, float32(low), float32(high))
	})
}

func (k *Kit) filter(src *image.Gray, op func(gocv.Mat, *gocv.Mat)) (*image.Gray, error) {
	if src == nil || src.Rect.Empty() {
		return nil, errEmptyImage
	}
	in, err := gocv.ImageGrayToMatGray(src)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	out := gocv.NewMat()
	defer out.Close()
	op(in, &out)
	return toGray(out)
}

// DetectAndCompute implements vision.Toolkit.
func (k *Kit) DetectAndCompute(src *image.Gray, p vision.DetectorParams) (vision.Features, error) {
	if src == nil || src.Rect.Empty() {
		return vision.Features{}, errEmptyImage
	}
	in, err := gocv.ImageGrayToMatGray(src)
	if err != nil {
		return vision.Features{}, err
	}
	defer in.Close()

	mask := gocv.NewMat()
	defer mask.Close()

	var (
		kps  []gocv.KeyPoint
		desc gocv.Mat
	)
	switch p.Algorithm {
	case vision.AKAZE, "":
		akaze := gocv.NewAKAZE()
		defer akaze.Close()
		if p.Threshold != 0 {
			k.log.Debug("akaze uses the library threshold", zap.Float32("requested", p.Threshold))
		}
		kps, desc = akaze.DetectAndCompute(in, mask)
	case vision.ORB:
		n := p.MaxFeatures
		if n <= 0 {
			n = orbDefaultFeatures
		}
		fast := orbFastThreshold
		if p.Threshold >= 1 {
			fast = int(p.Threshold)
		}
		orb := gocv.NewORBWithParams(n, 1.2, 8, 31, 0, 2, gocv.ORBScoreTypeHarris, 31, fast)
		defer orb.Close()
		kps, desc = orb.DetectAndCompute(in, mask)
	default:
		return vision.Features{}, fmt.Errorf("unknown algorithm %q", p.Algorithm)
	}
	defer desc.Close()

	if len(kps) == 0 || desc.Empty() {
		return vision.Features{}, nil
	}
	f := vision.Features{
		Keypoints: make([]vision.Keypoint, len(kps)),
		Descriptors: vision.DescriptorBlock{
			Rows: desc.Rows(),
			Cols: desc.Cols(),
			Data: desc.ToBytes(),
		},
	}
	for i, kp := range kps {
		f.Keypoints[i] = vision.Keypoint{
			X:        kp.X,
			Y:        kp.Y,
			Size:     kp.Size,
			Angle:    kp.Angle,
			Response: kp.Response,
			Octave:   kp.Octave,
		}
	}
	return f, nil
}

// KnnMatch implements vision.Toolkit with a Hamming brute-force matcher.
func (k *Kit) KnnMatch(query, train vision.DescriptorBlock, n int) ([][]vision.DMatch, error) {
	if n <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", n)
	}
	if query.Empty() || train.Empty() {
		return make([][]vision.DMatch, query.Rows), nil
	}
	if query.Cols != train.Cols {
		return nil, fmt.Errorf("descriptor width mismatch: %d vs %d", query.Cols, train.Cols)
	}

	q, err := descriptorMat(query)
	if err != nil {
		return nil, err
	}
	defer q.Close()
	t, err := descriptorMat(train)
	if err != nil {
		return nil, err
	}
	defer t.Close()

	bf := gocv.NewBFMatcherWithParams(gocv.NormHamming, false)
	defer bf.Close()

	raw := bf.KnnMatch(q, t, n)
	out := make([][]vision.DMatch, query.Rows)
	for _, row := range raw {
		for _, m := range row {
			if m.QueryIdx < 0 || m.QueryIdx >= len(out) {
				continue
			}
			out[m.QueryIdx] = append(out[m.QueryIdx], vision.DMatch{
				QueryIdx: m.QueryIdx,
				TrainIdx: m.TrainIdx,
				Distance: m.Distance,
			})
		}
	}
	return out, nil
}

// FindHomography implements vision.Toolkit with cv::findHomography(RANSAC).
func (k *Kit) FindHomography(src, dst []vision.Point, p vision.HomographyParams) (vision.Homography, []bool, error) {
	if len(src) != len(dst) {
		return vision.Homography{}, nil, fmt.Errorf("point count mismatch: %d vs %d", len(src), len(dst))
	}
	if len(src) < 4 {
		return vision.Homography{}, nil, errors.New("need at least 4 point pairs")
	}

	s := pointMat(src)
	defer s.Close()
	d := pointMat(dst)
	defer d.Close()
	mask := gocv.NewMat()
	defer mask.Close()

	h := gocv.FindHomography(s, d, gocv.HomographyMethodRANSAC, p.Threshold, &mask, p.MaxIters, p.Confidence)
	defer h.Close()
	if h.Empty() || h.Rows() != 3 || h.Cols() != 3 {
		return vision.Homography{}, nil, errEmptyResult
	}

	var out vision.Homography
	for i := 0; i < 9; i++ {
		out[i] = h.GetDoubleAt(i/3, i%3)
	}
	inliers := make([]bool, len(src))
	if !mask.Empty() {
		for i := range inliers {
			inliers[i] = mask.GetUCharAt(i, 0) != 0
		}
	}
	return out, inliers, nil
}

func pointMat(pts []vision.Point) gocv.Mat {
	m := gocv.NewMatWithSize(len(pts), 1, gocv.MatTypeCV64FC2)
	for i, p := range pts {
		m.SetDoubleAt(i, 0, p.X)
		m.SetDoubleAt(i, 1, p.Y)
	}
	return m
}

func descriptorMat(d vision.DescriptorBlock) (gocv.Mat, error) {
	return gocv.NewMatFromBytes(d.Rows, d.Cols, gocv.MatTypeCV8UC1, d.Data)
}

func toGray(m gocv.Mat) (*image.Gray, error) {
	if m.Empty() {
		return nil, errEmptyResult
	}
	img, err := m.ToImage()
	if err != nil {
		return nil, err
	}
	g, ok := img.(*image.Gray)
	if !ok {
		return nil, fmt.Errorf("unexpected image type %T", img)
	}
	return g, nil
}

// packed returns rgb pixels without row padding.
func packed(rgb *imaging.RGB) []byte {
	w := rgb.Width() * 3
	if rgb.Stride == w {
		return rgb.Pix[:w*rgb.Height()]
	}
	out := make([]byte, 0, w*rgb.Height())
	for y := 0; y < rgb.Height(); y++ {
		out = append(out, rgb.Row(y)...)
	}
	return out
}
