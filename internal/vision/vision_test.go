package vision

import (
	"errors"
	"image"
	"math"
	"slices"
	"testing"
)

// recordingKit logs the order of primitive calls.
type recordingKit struct {
	calls    []string
	failAt   string
	features Features
}

var errInjected = errors.New("injected")

func (r *recordingKit) step(name string, src *image.Gray) (*image.Gray, error) {
	r.calls = append(r.calls, name)
	if r.failAt == name {
		return nil, errInjected
	}
	if src == nil {
		return image.NewGray(image.Rect(0, 0, 4, 4)), nil
	}
	return src, nil
}

func (r *recordingKit) Name() string { return "recording" }
func (r *recordingKit) Grayscale(image.Image) (*image.Gray, error) {
	return r.step("gray", nil)
}
func (r *recordingKit) NormalizeMinMax(src *image.Gray) (*image.Gray, error) {
	return r.step("normalize", src)
}
func (r *recordingKit) GaussianBlur(src *image.Gray, _ int) (*image.Gray, error) {
	return r.step("blur", src)
}
func (r *recordingKit) Canny(src *image.Gray, _, _ float64) (*image.Gray, error) {
	return r.step("canny", src)
}
func (r *recordingKit) DetectAndCompute(*image.Gray, DetectorParams) (Features, error) {
	r.calls = append(r.calls, "detect")
	if r.failAt == "detect" {
		return Features{}, errInjected
	}
	return r.features, nil
}
func (r *recordingKit) KnnMatch(DescriptorBlock, DescriptorBlock, int) ([][]DMatch, error) {
	return nil, nil
}
func (r *recordingKit) FindHomography([]Point, []Point, HomographyParams) (Homography, []bool, error) {
	return Homography{}, nil, nil
}

func TestExtractorOrder(t *testing.T) {
	tests := []struct {
		name string
		img  image.Image
		want []string
	}{
		{"colour input", image.NewRGBA(image.Rect(0, 0, 4, 4)), []string{"gray", "normalize", "blur", "canny", "detect"}},
		{"gray input", image.NewGray(image.Rect(0, 0, 4, 4)), []string{"normalize", "blur", "canny", "detect"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kit := &recordingKit{}
			if _, err := NewExtractor(kit, DefaultPreprocess()).Extract(tt.img, DetectorParams{Algorithm: ORB}); err != nil {
				t.Fatalf("Extract: %v", err)
			}
			if !slices.Equal(kit.calls, tt.want) {
				t.Errorf("calls = %v, want %v", kit.calls, tt.want)
			}
		})
	}
}

func TestExtractorErrors(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for _, stage := range []string{"gray", "normalize", "blur", "canny", "detect"} {
		t.Run(stage, func(t *testing.T) {
			kit := &recordingKit{failAt: stage}
			_, err := NewExtractor(kit, DefaultPreprocess()).Extract(img, DetectorParams{Algorithm: ORB})
			if !errors.Is(err, ErrExtract) || !errors.Is(err, errInjected) {
				t.Errorf("err = %v, want ErrExtract wrapping the cause", err)
			}
		})
	}

	t.Run("misaligned descriptors", func(t *testing.T) {
		kit := &recordingKit{features: Features{
			Keypoints:   make([]Keypoint, 2),
			Descriptors: NewDescriptorBlock(1, 32),
		}}
		_, err := NewExtractor(kit, DefaultPreprocess()).Extract(img, DetectorParams{Algorithm: ORB})
		if !errors.Is(err, ErrExtract) {
			t.Errorf("err = %v, want ErrExtract", err)
		}
	})
}

func TestFeaturesClone(t *testing.T) {
	f := Features{
		Keypoints:   []Keypoint{{X: 1, Y: 2}},
		Descriptors: NewDescriptorBlock(1, 4),
	}
	f.Descriptors.Row(0)[0] = 7

	c := f.Clone()
	c.Keypoints[0].X = 99
	c.Descriptors.Row(0)[0] = 0

	if f.Keypoints[0].X != 1 || f.Descriptors.Row(0)[0] != 7 {
		t.Error("clone shares storage with the original")
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
	if f.Empty() {
		t.Error("Empty() on non-empty features")
	}
	if !(Features{}).Empty() {
		t.Error("zero Features should be empty")
	}
}

func TestHomographyApply(t *testing.T) {
	translate := Homography{1, 0, 5, 0, 1, -3, 0, 0, 1}
	got := translate.Apply(Point{2, 2})
	if got != (Point{7, -1}) {
		t.Errorf("Apply = %+v", got)
	}

	projective := Homography{2, 0, 0, 0, 2, 0, 0, 0, 2}
	if got := projective.Apply(Point{3, 4}); got != (Point{3, 4}) {
		t.Errorf("Apply = %+v", got)
	}

	inf := Homography{1, 0, 0, 0, 1, 0, 0, 0, 0}
	if got := inf.Apply(Point{1, 1}); !math.IsNaN(got.X) {
		t.Errorf("point at infinity = %+v", got)
	}
}
