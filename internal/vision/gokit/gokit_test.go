package gokit

import (
	"bytes"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/Faultbox/cadmatch/internal/vision"
)

func uniformGray(w, h int, v uint8) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for i := range g.Pix {
		g.Pix[i] = v
	}
	return g
}

// blocks draws a few bright rectangles on black.
func blocks(w, h int) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	rects := []image.Rectangle{
		image.Rect(40, 40, 90, 80),
		image.Rect(120, 50, 160, 140),
		image.Rect(60, 120, 100, 170),
		image.Rect(110, 160, 170, 175),
	}
	for _, r := range rects {
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				g.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return g
}

func TestGrayscale(t *testing.T) {
	k := New(Options{})
	img := image.NewRGBA(image.Rect(0, 0, 3, 1))
	img.Set(0, 0, color.RGBA{255, 0, 0, 255})
	img.Set(1, 0, color.RGBA{255, 255, 255, 255})
	img.Set(2, 0, color.RGBA{0, 0, 0, 255})

	g, err := k.Grayscale(img)
	if err != nil {
		t.Fatalf("Grayscale: %v", err)
	}
	want := []uint8{76, 255, 0}
	if !bytes.Equal(g.Pix, want) {
		t.Errorf("Pix = %v, want %v", g.Pix, want)
	}

	if _, err := k.Grayscale(image.NewRGBA(image.Rectangle{})); err == nil {
		t.Error("expected error for empty image")
	}
}

func TestNormalizeMinMax(t *testing.T) {
	k := New(Options{})
	tests := []struct {
		name string
		in   []uint8
		want []uint8
	}{
		{"stretch", []uint8{50, 100, 150}, []uint8{0, 128, 255}},
		{"half rounds up", []uint8{0, 1, 2}, []uint8{0, 128, 255}},
		{"constant", []uint8{9, 9, 9}, []uint8{0, 0, 0}},
		{"full range", []uint8{0, 255, 7}, []uint8{0, 255, 7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := image.NewGray(image.Rect(0, 0, len(tt.in), 1))
			copy(src.Pix, tt.in)
			got, err := k.NormalizeMinMax(src)
			if err != nil {
				t.Fatalf("NormalizeMinMax: %v", err)
			}
			if !bytes.Equal(got.Pix, tt.want) {
				t.Errorf("got %v, want %v", got.Pix, tt.want)
			}
		})
	}
}

func TestGaussianBlur(t *testing.T) {
	k := New(Options{})

	t.Run("constant preserved", func(t *testing.T) {
		got, err := k.GaussianBlur(uniformGray(16, 12, 100), 5)
		if err != nil {
			t.Fatalf("GaussianBlur: %v", err)
		}
		for i, v := range got.Pix {
			if v != 100 {
				t.Fatalf("pixel %d = %d, want 100", i, v)
			}
		}
	})

	t.Run("spreads impulse", func(t *testing.T) {
		src := image.NewGray(image.Rect(0, 0, 9, 9))
		src.SetGray(4, 4, color.Gray{Y: 255})
		got, err := k.GaussianBlur(src, 5)
		if err != nil {
			t.Fatalf("GaussianBlur: %v", err)
		}
		centre := got.GrayAt(4, 4).Y
		if centre == 0 || centre == 255 {
			t.Errorf("centre = %d, want attenuated peak", centre)
		}
		if got.GrayAt(3, 4).Y >= centre || got.GrayAt(3, 4).Y == 0 {
			t.Errorf("neighbour = %d, centre = %d", got.GrayAt(3, 4).Y, centre)
		}
		if got.GrayAt(0, 0).Y != 0 {
			t.Errorf("far corner = %d, want 0", got.GrayAt(0, 0).Y)
		}
	})

	t.Run("even kernel rejected", func(t *testing.T) {
		if _, err := k.GaussianBlur(uniformGray(4, 4, 1), 4); err == nil {
			t.Error("expected error")
		}
	})
}

func TestCanny(t *testing.T) {
	k := New(Options{})

	flat, err := k.Canny(uniformGray(32, 32, 128), 50, 150)
	if err != nil {
		t.Fatalf("Canny: %v", err)
	}
	for _, v := range flat.Pix {
		if v != 0 {
			t.Fatal("flat image produced edges")
		}
	}

	step := image.NewGray(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 16; x < 32; x++ {
			step.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	edges, err := k.Canny(step, 50, 150)
	if err != nil {
		t.Fatalf("Canny: %v", err)
	}
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			v := edges.GrayAt(x, y).Y
			want := uint8(0)
			if x == 15 {
				want = 255
			}
			if v != want {
				t.Fatalf("edge(%d,%d) = %d, want %d", x, y, v, want)
			}
		}
	}
}

func TestKnnMatch(t *testing.T) {
	k := New(Options{})
	block := func(rows ...[]byte) vision.DescriptorBlock {
		d := vision.NewDescriptorBlock(len(rows), len(rows[0]))
		for i, r := range rows {
			copy(d.Row(i), r)
		}
		return d
	}

	query := block([]byte{0x00, 0x00})
	train := block(
		[]byte{0xFF, 0x00}, // 8
		[]byte{0x01, 0x00}, // 1
		[]byte{0x00, 0x01}, // 1
		[]byte{0x00, 0x00}, // 0
	)

	got, err := k.KnnMatch(query, train, 3)
	if err != nil {
		t.Fatalf("KnnMatch: %v", err)
	}
	want := []vision.DMatch{
		{QueryIdx: 0, TrainIdx: 3, Distance: 0},
		{QueryIdx: 0, TrainIdx: 1, Distance: 1},
		{QueryIdx: 0, TrainIdx: 2, Distance: 1},
	}
	if len(got) != 1 || len(got[0]) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[0][i] != want[i] {
			t.Errorf("match %d = %+v, want %+v", i, got[0][i], want[i])
		}
	}

	t.Run("k larger than train", func(t *testing.T) {
		got, err := k.KnnMatch(query, block([]byte{1, 1}), 2)
		if err != nil {
			t.Fatal(err)
		}
		if len(got[0]) != 1 {
			t.Errorf("neighbours = %d, want 1", len(got[0]))
		}
	})

	t.Run("empty train", func(t *testing.T) {
		got, err := k.KnnMatch(query, vision.DescriptorBlock{}, 2)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || len(got[0]) != 0 {
			t.Errorf("got %v", got)
		}
	})

	t.Run("width mismatch", func(t *testing.T) {
		if _, err := k.KnnMatch(query, block([]byte{1, 2, 3}), 2); err == nil {
			t.Error("expected error")
		}
	})
}

func TestHamming(t *testing.T) {
	a := bytes.Repeat([]byte{0xAA}, 32)
	b := bytes.Repeat([]byte{0x55}, 32)
	if got := hamming(a, b); got != 256 {
		t.Errorf("hamming = %d, want 256", got)
	}
	if got := hamming(a[:3], a[:3]); got != 0 {
		t.Errorf("hamming = %d, want 0", got)
	}
}

func TestFindHomography(t *testing.T) {
	k := New(Options{})
	truth := vision.Homography{1.1, 0.05, 12, -0.03, 0.95, -7, 0.0001, 0.0002, 1}

	var src, dst []vision.Point
	for i := 0; i < 40; i++ {
		p := vision.Point{X: float64((i*37)%200) + 3, Y: float64((i*91)%170) + 5}
		src = append(src, p)
		dst = append(dst, truth.Apply(p))
	}
	outliers := []int{3, 11, 19, 27, 35}
	for _, i := range outliers {
		dst[i].X += 80
		dst[i].Y -= 60
	}

	params := vision.DefaultHomographyParams()
	h, mask, err := k.FindHomography(src, dst, params)
	if err != nil {
		t.Fatalf("FindHomography: %v", err)
	}
	if len(mask) != len(src) {
		t.Fatalf("mask length = %d", len(mask))
	}
	for i, in := range mask {
		isOutlier := false
		for _, o := range outliers {
			isOutlier = isOutlier || o == i
		}
		if in == isOutlier {
			t.Errorf("mask[%d] = %v", i, in)
		}
	}
	p := vision.Point{X: 100, Y: 80}
	got, want := h.Apply(p), truth.Apply(p)
	if math.Hypot(got.X-want.X, got.Y-want.Y) > 1e-6 {
		t.Errorf("H·p = %+v, want %+v", got, want)
	}

	h2, mask2, _ := k.FindHomography(src, dst, params)
	if h2 != h {
		t.Error("estimate is not deterministic")
	}
	for i := range mask {
		if mask[i] != mask2[i] {
			t.Fatal("mask is not deterministic")
		}
	}
}

func TestFindHomographyErrors(t *testing.T) {
	k := New(Options{})
	pts := []vision.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}}
	if _, _, err := k.FindHomography(pts, pts, vision.DefaultHomographyParams()); err == nil {
		t.Error("expected error for 3 points")
	}

	line := []vision.Point{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 3}, {X: 4, Y: 4}}
	if _, _, err := k.FindHomography(line, line, vision.DefaultHomographyParams()); err == nil {
		t.Error("expected error for collinear points")
	}

	if _, _, err := k.FindHomography(pts, pts[:2], vision.DefaultHomographyParams()); err == nil {
		t.Error("expected error for length mismatch")
	}
}

func TestLevelBudgets(t *testing.T) {
	for _, n := range []int{1, 100, 1000, 2000} {
		b := levelBudgets(n)
		sum := 0
		for i, v := range b {
			sum += v
			if i > 0 && i < len(b)-1 && v > b[i-1] {
				t.Errorf("n=%d: level %d budget %d exceeds level %d", n, i, v, i-1)
			}
		}
		if sum != n {
			t.Errorf("n=%d: budgets sum to %d", n, sum)
		}
	}
}

func TestBriefPattern(t *testing.T) {
	a := briefPattern(DefaultSeed)
	b := briefPattern(DefaultSeed)
	if len(a) != 256 {
		t.Fatalf("pairs = %d, want 256", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("pattern is not deterministic")
		}
		for _, c := range [][2]float64{a[i].a, a[i].b} {
			if math.Abs(c[0]) > halfPatch || math.Abs(c[1]) > halfPatch {
				t.Fatalf("pair %d outside patch: %v", i, a[i])
			}
		}
		if a[i].a == a[i].b {
			t.Fatalf("pair %d compares a point with itself", i)
		}
	}
}

func TestDetectAndCompute(t *testing.T) {
	k := New(Options{})
	img := blocks(200, 200)

	f, err := k.DetectAndCompute(img, vision.DetectorParams{Algorithm: vision.ORB, MaxFeatures: 100})
	if err != nil {
		t.Fatalf("DetectAndCompute: %v", err)
	}
	if f.Len() == 0 {
		t.Fatal("no features on a textured image")
	}
	if f.Len() > 100 {
		t.Errorf("features = %d, cap 100", f.Len())
	}
	if err := f.Validate(); err != nil {
		t.Fatal(err)
	}
	if f.Descriptors.Cols != 32 {
		t.Errorf("descriptor width = %d, want 32", f.Descriptors.Cols)
	}
	for _, kp := range f.Keypoints {
		if kp.X < 0 || kp.Y < 0 || kp.X >= 200 || kp.Y >= 200 {
			t.Errorf("keypoint out of image: %+v", kp)
		}
		if kp.Angle < 0 || kp.Angle >= 360 {
			t.Errorf("angle out of range: %v", kp.Angle)
		}
	}

	again, _ := k.DetectAndCompute(img, vision.DetectorParams{Algorithm: vision.ORB, MaxFeatures: 100})
	if again.Len() != f.Len() || !bytes.Equal(again.Descriptors.Data, f.Descriptors.Data) {
		t.Error("detection is not deterministic")
	}

	t.Run("smaller cap selects a subset", func(t *testing.T) {
		small, err := k.DetectAndCompute(img, vision.DetectorParams{Algorithm: vision.ORB, MaxFeatures: 40})
		if err != nil {
			t.Fatal(err)
		}
		for i, kp := range small.Keypoints {
			found := false
			for j, other := range f.Keypoints {
				if kp == other && bytes.Equal(small.Descriptors.Row(i), f.Descriptors.Row(j)) {
					found = true
					break
				}
			}
			if !found {
				t.Fatalf("keypoint %+v missing from larger set", kp)
			}
		}
	})

	t.Run("akaze falls back", func(t *testing.T) {
		got, err := k.DetectAndCompute(img, vision.DetectorParams{Algorithm: vision.AKAZE, MaxFeatures: 100})
		if err != nil {
			t.Fatal(err)
		}
		if got.Len() != f.Len() {
			t.Errorf("fallback features = %d, want %d", got.Len(), f.Len())
		}
	})

	t.Run("blank image", func(t *testing.T) {
		got, err := k.DetectAndCompute(uniformGray(100, 100, 0), vision.DetectorParams{Algorithm: vision.ORB})
		if err != nil {
			t.Fatal(err)
		}
		if got.Len() != 0 || got.Descriptors.Rows != 0 {
			t.Errorf("features = %d on a blank image", got.Len())
		}
	})

	t.Run("unknown algorithm", func(t *testing.T) {
		if _, err := k.DetectAndCompute(img, vision.DetectorParams{Algorithm: "sift"}); err == nil {
			t.Error("expected error")
		}
	})
}
