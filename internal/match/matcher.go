package match

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Faultbox/cadmatch/internal/logger"
	"github.com/Faultbox/cadmatch/internal/vision"
)

// Config tunes matching.
type Config struct {
	Ratio      float64 // Lowe ratio; keep when d0 < Ratio·d1
	MinMatches int     // candidates needed before fitting a homography
	Homography vision.HomographyParams
	Workers    int // entries evaluated in parallel; <= 1 is serial
}

// DefaultConfig returns ratio 0.75, 4 matches minimum and RANSAC at 3 px.
func DefaultConfig() Config {
	return Config{
		Ratio:      0.75,
		MinMatches: 4,
		Homography: vision.DefaultHomographyParams(),
		Workers:    1,
	}
}

// minimalSample is the number of correspondences that determine a
// homography.
const minimalSample = 4

// Matcher scores live features against a bank.
type Matcher struct {
	kit vision.Toolkit
	cfg Config
	log *zap.Logger
}

// NewMatcher creates a matcher on kit.
func NewMatcher(kit vision.Toolkit, cfg Config) *Matcher {
	if cfg.MinMatches < 4 {
		cfg.MinMatches = 4
	}
	return &Matcher{kit: kit, cfg: cfg, log: logger.Named("matcher")}
}

// Match evaluates every bank entry and aggregates the result. Toolkit
// failures in one entry are logged and count as zero inliers; Match itself
// never fails.
func (m *Matcher) Match(live vision.Features, bank *Bank) *Report {
	start := time.Now()
	r := &Report{RequestID: uuid.New()}
	if bank == nil {
		return r
	}
	log := m.log.With(zap.String("request", r.RequestID.String()))

	r.Entries = make([]EntryResult, bank.Len())
	if m.cfg.Workers > 1 && bank.Len() > 1 {
		var wg sync.WaitGroup
		jobs := make(chan int)
		for w := 0; w < min(m.cfg.Workers, bank.Len()); w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range jobs {
					r.Entries[i] = m.evaluate(live, bank.At(i))
				}
			}()
		}
		for i := range r.Entries {
			jobs <- i
		}
		close(jobs)
		wg.Wait()
	} else {
		for i := range r.Entries {
			r.Entries[i] = m.evaluate(live, bank.At(i))
		}
	}

	for _, e := range r.Entries {
		if e.Err != nil {
			log.Warn("entry failed", zap.Int("view", e.ViewIndex), zap.Error(e.Err))
		}
		r.TotalCandidates += e.Candidates
		r.Inliers += e.Inliers
	}
	r.MatchPercentage = Percentage(r.Inliers, r.TotalCandidates)
	r.Elapsed = time.Since(start)

	log.Info("match computed",
		zap.Int("live_keypoints", live.Len()),
		zap.Int("candidates", r.TotalCandidates),
		zap.Int("inliers", r.Inliers),
		zap.Float64("percentage", r.MatchPercentage),
		zap.Duration("elapsed", r.Elapsed))
	return r
}

// evaluate runs ratio test and geometric verification for one entry.
func (m *Matcher) evaluate(live vision.Features, e *Entry) (res EntryResult) {
	res = EntryResult{ViewIndex: e.ViewIndex, Azimuth: e.Azimuth}
	if e.Empty() {
		res.Skipped = true
		return res
	}
	if live.Empty() {
		return res
	}

	defer func() {
		if p := recover(); p != nil {
			res.Inliers = 0
			res.Err = fmt.Errorf("%w: panic: %v", vision.ErrMatch, p)
		}
	}()

	knn, err := m.kit.KnnMatch(e.Features.Descriptors, live.Descriptors, 2)
	if err != nil {
		res.Err = fmt.Errorf("%w: %w", vision.ErrMatch, err)
		return res
	}

	var src, dst []vision.Point
	for _, nn := range knn {
		if len(nn) < 2 {
			continue
		}
		if nn[0].Distance < m.cfg.Ratio*nn[1].Distance {
			src = append(src, e.Features.Keypoints[nn[0].QueryIdx].Pt())
			dst = append(dst, live.Keypoints[nn[0].TrainIdx].Pt())
		}
	}
	res.Candidates = len(src)
	if res.Candidates < m.cfg.MinMatches {
		return res
	}

	_, mask, err := m.kit.FindHomography(src, dst, m.cfg.Homography)
	if err != nil {
		res.Err = fmt.Errorf("%w: %w", vision.ErrHomography, err)
		return res
	}
	for _, in := range mask {
		if in {
			res.Inliers++
		}
	}
	res.Inliers = min(res.Inliers, res.Candidates)
	// Any four points fit some homography exactly, so a model supported
	// only by its own sample carries no geometric evidence.
	if res.Inliers <= minimalSample {
		res.Inliers = 0
	}
	return res
}
