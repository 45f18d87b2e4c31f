// Package gokit is a pure-Go vision.Toolkit: luminance, normalisation,
// Gaussian blur, Canny, an oriented-FAST/rotated-BRIEF detector, brute-force
// Hamming matching and RANSAC homography estimation on gonum.
//
// It does not implement AKAZE; requests for it fall back to ORB with a
// warning.
package gokit

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/cadmatch/internal/logger"
	"github.com/Faultbox/cadmatch/internal/vision"
)

// DefaultSeed seeds RANSAC sampling and the BRIEF test pattern.
const DefaultSeed uint64 = 0x5eed

var errEmptyImage = errors.New("empty image")

// Options configures the kit.
type Options struct {
	Seed uint64
}

// Kit implements vision.Toolkit. It is safe for concurrent use.
type Kit struct {
	seed    uint64
	pattern []patternPair
	log     *zap.Logger
	warn    sync.Once
}

// New creates a kit. A zero seed selects DefaultSeed.
func New(opts Options) *Kit {
	seed := opts.Seed
	if seed == 0 {
		seed = DefaultSeed
	}
	return &Kit{
		seed:    seed,
		pattern: briefPattern(seed),
		log:     logger.Named("gokit"),
	}
}

// Name implements vision.Toolkit.
func (k *Kit) Name() string { return "go" }

// DetectAndCompute implements vision.Toolkit.
func (k *Kit) DetectAndCompute(src *image.Gray, p vision.DetectorParams) (vision.Features, error) {
	if src == nil || src.Rect.Empty() {
		return vision.Features{}, errEmptyImage
	}
	switch p.Algorithm {
	case vision.ORB, "":
	case vision.AKAZE:
		k.warn.Do(func() {
			k.log.Warn("akaze is not available in the pure-Go toolkit, using orb")
		})
	default:
		return vision.Features{}, fmt.Errorf("unknown algorithm %q", p.Algorithm)
	}
	return k.orb(src, p.MaxFeatures), nil
}
