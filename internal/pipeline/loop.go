package pipeline

import (
	"context"
	"sync"
	"time"
)

// UILoop is a Dispatcher that runs callbacks one at a time, in order, on
// the goroutine that calls Run or Drain.
type UILoop struct {
	tasks chan func()
	stop  chan struct{}
	once  sync.Once
}

// NewUILoop creates a loop with room for queue pending callbacks.
func NewUILoop(queue int) *UILoop {
	return &UILoop{
		tasks: make(chan func(), max(queue, 1)),
		stop:  make(chan struct{}),
	}
}

// Dispatch implements Dispatcher. It blocks while the queue is full and
// drops fn once the loop is stopped.
func (u *UILoop) Dispatch(fn func()) {
	select {
	case <-u.stop:
		return
	default:
	}
	select {
	case u.tasks <- fn:
	case <-u.stop:
	}
}

// Run executes callbacks until ctx is done or Stop is called.
func (u *UILoop) Run(ctx context.Context) {
	for {
		select {
		case fn := <-u.tasks:
			fn()
		case <-ctx.Done():
			return
		case <-u.stop:
			return
		}
	}
}

// Drain runs the callbacks queued so far without waiting and returns how
// many ran. Hosts with their own event loop call it once per iteration.
func (u *UILoop) Drain() int {
	n := 0
	for {
		select {
		case fn := <-u.tasks:
			fn()
			n++
		default:
			return n
		}
	}
}

// Stop ends Run and discards later dispatches.
func (u *UILoop) Stop() {
	u.once.Do(func() { close(u.stop) })
}

// RenderLoop calls OnFrame at a fixed rate on the goroutine that runs it.
type RenderLoop struct {
	Coordinator *Coordinator
	FPS         int
	// BeforeFrame runs at the start of every frame; returning false ends
	// the loop.
	BeforeFrame func() bool
	// AfterFrame runs after OnFrame, e.g. to present the back buffer.
	AfterFrame func()
}

// Run drives frames until ctx is done, BeforeFrame declines or the
// coordinator is torn down. The coordinator is closed on return.
func (l *RenderLoop) Run(ctx context.Context) error {
	fps := l.FPS
	if fps <= 0 {
		fps = 30
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()
	defer l.Coordinator.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if l.BeforeFrame != nil && !l.BeforeFrame() {
			return nil
		}
		l.Coordinator.OnFrame()
		if l.Coordinator.State() == StateTornDown {
			return nil
		}
		if l.AfterFrame != nil {
			l.AfterFrame()
		}
	}
}
