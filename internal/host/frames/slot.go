// Package frames provides pipeline.FrameSource implementations: a
// latest-wins slot fed by producer goroutines, a still image, a watched
// directory and (with cgo) a camera.
package frames

import (
	"sync"
	"time"

	"github.com/Faultbox/cadmatch/internal/pipeline"
)

// Slot holds at most one pending frame. Put replaces an unread frame, so
// a slow consumer always sees the newest one.
type Slot struct {
	mu      sync.Mutex
	frame   *pipeline.Frame
	fresh   bool
	dropped uint64
	texture uint32
}

// Put publishes f, stamping it with the current time if it has none.
func (s *Slot) Put(f *pipeline.Frame) {
	if f.Timestamp.IsZero() {
		f.Timestamp = time.Now()
	}
	s.mu.Lock()
	if s.fresh {
		s.dropped++
	}
	s.frame = f
	s.fresh = true
	s.mu.Unlock()
}

// AcquireLatest implements pipeline.FrameSource.
func (s *Slot) AcquireLatest() (*pipeline.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.fresh {
		return nil, pipeline.ErrFrameNotReady
	}
	s.fresh = false
	return s.frame, nil
}

// Republish offers the last frame again, stamped with the current time,
// and reports whether there was one. A consumer waiting for a frame newer
// than a request uses it when no producer is running.
func (s *Slot) Republish() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame == nil {
		return false
	}
	f := *s.frame
	f.Timestamp = time.Now()
	s.frame = &f
	s.fresh = true
	return true
}

// Dropped returns how many frames were replaced before being read.
func (s *Slot) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// BindTexture implements pipeline.TextureBinder by remembering the id of
// the preview texture frames are shown in.
func (s *Slot) BindTexture(id uint32) error {
	s.mu.Lock()
	s.texture = id
	s.mu.Unlock()
	return nil
}

// Texture returns the bound preview texture, 0 if none.
func (s *Slot) Texture() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.texture
}
