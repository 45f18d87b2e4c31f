package vision

import (
	"fmt"
	"image"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/cadmatch/internal/logger"
)

// Preprocess configures the chain applied before detection.
type Preprocess struct {
	BlurKernel int
	CannyLow   float64
	CannyHigh  float64
}

// DefaultPreprocess is a 5×5 blur and Canny thresholds 50/150.
func DefaultPreprocess() Preprocess {
	return Preprocess{BlurKernel: 5, CannyLow: 50, CannyHigh: 150}
}

// Extractor turns an image into features. The same instance serves
// rendered reference views and live camera frames.
type Extractor struct {
	kit Toolkit
	pre Preprocess
	log *zap.Logger
}

// NewExtractor binds a toolkit and preprocessing settings.
func NewExtractor(kit Toolkit, pre Preprocess) *Extractor {
	return &Extractor{
		kit: kit,
		pre: pre,
		log: logger.Named("extractor"),
	}
}

// Toolkit returns the backend used by the extractor.
func (e *Extractor) Toolkit() Toolkit { return e.kit }

// Preprocess runs, in order: luminance conversion when img has colour,
// min-max normalisation, Gaussian blur and Canny edge detection.
func (e *Extractor) Preprocess(img image.Image) (*image.Gray, error) {
	gray, ok := img.(*image.Gray)
	if !ok {
		var err error
		if gray, err = e.kit.Grayscale(img); err != nil {
			return nil, fmt.Errorf("%w: grayscale: %w", ErrExtract, err)
		}
	}

	norm, err := e.kit.NormalizeMinMax(gray)
	if err != nil {
		return nil, fmt.Errorf("%w: normalize: %w", ErrExtract, err)
	}
	blurred, err := e.kit.GaussianBlur(norm, e.pre.BlurKernel)
	if err != nil {
		return nil, fmt.Errorf("%w: blur: %w", ErrExtract, err)
	}
	edges, err := e.kit.Canny(blurred, e.pre.CannyLow, e.pre.CannyHigh)
	if err != nil {
		return nil, fmt.Errorf("%w: canny: %w", ErrExtract, err)
	}
	return edges, nil
}

// Extract preprocesses img and detects features on the edge map.
// An image without features yields empty Features and no error.
func (e *Extractor) Extract(img image.Image, p DetectorParams) (Features, error) {
	f, _, err := e.ExtractWithEdges(img, p)
	return f, err
}

// ExtractWithEdges is Extract that also returns the edge map the
// detector ran on.
func (e *Extractor) ExtractWithEdges(img image.Image, p DetectorParams) (Features, *image.Gray, error) {
	start := time.Now()

	edges, err := e.Preprocess(img)
	if err != nil {
		return Features{}, nil, err
	}

	f, err := e.kit.DetectAndCompute(edges, p)
	if err != nil {
		return Features{}, edges, fmt.Errorf("%w: %s: %w", ErrExtract, p.Algorithm, err)
	}
	if err := f.Validate(); err != nil {
		return Features{}, edges, err
	}

	e.log.Debug("features extracted",
		zap.String("toolkit", e.kit.Name()),
		zap.String("algorithm", string(p.Algorithm)),
		zap.Int("keypoints", f.Len()),
		zap.Duration("elapsed", time.Since(start)))
	return f, edges, nil
}
