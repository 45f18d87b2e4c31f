package match

import (
	"time"

	"github.com/google/uuid"
)

// EntryResult is the outcome for one bank entry.
type EntryResult struct {
	ViewIndex  int
	Azimuth    float32
	Candidates int  // pairs that passed the ratio test
	Inliers    int  // candidates consistent with the fitted homography
	Skipped    bool // entry had no reference descriptors
	Err        error
}

// Report aggregates one Match call.
type Report struct {
	RequestID       uuid.UUID
	TotalCandidates int
	Inliers         int
	MatchPercentage float64
	Entries         []EntryResult
	Elapsed         time.Duration
}

// Percentage returns 100·inliers/candidates, or 0 when there are no
// candidates.
func Percentage(inliers, candidates int) float64 {
	if candidates <= 0 {
		return 0
	}
	return 100 * float64(inliers) / float64(candidates)
}

// Best returns the entry with the most inliers; the earliest wins ties.
func (r *Report) Best() (EntryResult, bool) {
	best := -1
	for i, e := range r.Entries {
		if best < 0 || e.Inliers > r.Entries[best].Inliers {
			best = i
		}
	}
	if best < 0 {
		return EntryResult{}, false
	}
	return r.Entries[best], true
}

// Failed returns the number of entries that hit a toolkit error.
func (r *Report) Failed() int {
	n := 0
	for _, e := range r.Entries {
		if e.Err != nil {
			n++
		}
	}
	return n
}
