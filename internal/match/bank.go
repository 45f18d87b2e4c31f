// Package match builds the reference feature bank from baked views and
// scores live features against it.
package match

import (
	"errors"
	"iter"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/cadmatch/internal/engine/render"
	"github.com/Faultbox/cadmatch/internal/logger"
	"github.com/Faultbox/cadmatch/internal/vision"
)

// Entry is the reference data of one baked view.
type Entry struct {
	ViewIndex int
	Azimuth   float32
	View      *render.RenderedView
	Features  vision.Features
}

// Empty reports whether the entry has nothing to match against.
func (e *Entry) Empty() bool { return e.Features.Empty() }

// Bank is the immutable set of reference entries, in bake order.
// It is safe for concurrent readers.
type Bank struct {
	entries []Entry
}

// NewBank wraps prepared entries. The slice is not copied.
func NewBank(entries []Entry) *Bank {
	return &Bank{entries: entries}
}

// BuildBank extracts features from every view. A view whose extraction
// fails is kept as an empty entry so indices stay aligned with the ring.
func BuildBank(views []*render.RenderedView, ex *vision.Extractor, p vision.DetectorParams) (*Bank, error) {
	if ex == nil {
		return nil, errors.New("nil extractor")
	}
	log := logger.Named("bank")
	start := time.Now()

	entries := make([]Entry, len(views))
	total := 0
	for i, v := range views {
		entries[i] = Entry{ViewIndex: i}
		if v == nil || v.Image == nil {
			log.Warn("missing view", zap.Int("view", i))
			continue
		}
		entries[i].ViewIndex = v.Index
		entries[i].Azimuth = v.Azimuth
		entries[i].View = v

		f, err := ex.Extract(v.Image, p)
		if err != nil {
			log.Warn("reference extraction failed, keeping empty entry",
				zap.Int("view", v.Index), zap.Error(err))
			continue
		}
		entries[i].Features = f
		total += f.Len()
	}

	log.Info("feature bank built",
		zap.Int("entries", len(entries)),
		zap.Int("keypoints", total),
		zap.String("algorithm", string(p.Algorithm)),
		zap.Duration("elapsed", time.Since(start)))
	return NewBank(entries), nil
}

// Len returns the number of entries.
func (b *Bank) Len() int { return len(b.entries) }

// At returns entry i.
func (b *Bank) At(i int) *Entry { return &b.entries[i] }

// All yields entries in bake order.
func (b *Bank) All() iter.Seq2[int, *Entry] {
	return func(yield func(int, *Entry) bool) {
		for i := range b.entries {
			if !yield(i, &b.entries[i]) {
				return
			}
		}
	}
}

// Keypoints returns the total number of reference keypoints.
func (b *Bank) Keypoints() int {
	n := 0
	for _, e := range b.All() {
		n += e.Features.Len()
	}
	return n
}
