// Package pipeline drives the match pipeline: it bootstraps the reference
// bank from a mesh, runs the per-frame preview and turns compute requests
// into match reports delivered on the UI dispatcher.
package pipeline

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/cadmatch/internal/engine/bake"
	"github.com/Faultbox/cadmatch/internal/engine/model"
	"github.com/Faultbox/cadmatch/internal/engine/render"
	"github.com/Faultbox/cadmatch/internal/logger"
	"github.com/Faultbox/cadmatch/internal/match"
	"github.com/Faultbox/cadmatch/internal/vision"
)

// Dumper receives intermediate results for offline inspection.
type Dumper interface {
	DumpBank(bank *match.Bank) error
	DumpLive(report *match.Report, img image.Image, f vision.Features) error
}

// Options configures a Coordinator.
type Options struct {
	// NewRenderer creates the offscreen renderer on the bootstrap
	// goroutine.
	NewRenderer func() (render.Offscreen, error)
	Extractor   *vision.Extractor
	Source      FrameSource
	UI          Dispatcher

	Ring            bake.Ring
	ReferenceParams vision.DetectorParams
	LiveParams      vision.DetectorParams
	Matcher         match.Config
	// Async runs matching on a worker goroutine while preview continues.
	Async bool

	Dumper Dumper
	Clock  func() time.Time
}

// Coordinator owns the mesh, renderer and bank and sequences the pipeline.
//
// Bootstrap, OnSurfaceReady, OnSurfaceResized, OnFrame, Close, Bank and
// Views belong to the render goroutine. RequestCompute, Subscribe,
// Unsubscribe and Release may be called from any goroutine.
type Coordinator struct {
	opts    Options
	matcher *match.Matcher
	log     *zap.Logger

	mu          sync.Mutex
	state       State
	requestedAt time.Time
	running     bool // a compute has been picked up by a frame

	// cb serialises listener calls against Release.
	cb       sync.RWMutex
	listener Listener
	// delivering counts listener calls in progress. Release skips the
	// wait on cb while it is set, so a listener may release.
	delivering atomic.Int32

	released atomic.Bool
	teardown sync.Once
	inflight sync.WaitGroup

	// render goroutine only
	mesh     *model.Mesh
	renderer render.Offscreen
	views    []*render.RenderedView
	bank     *match.Bank
	surface  DisplaySurface
}

// New creates a coordinator in StateUninit.
func New(opts Options) *Coordinator {
	if opts.UI == nil {
		opts.UI = Inline
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if len(opts.Ring.Angles) == 0 {
		opts.Ring = bake.DefaultRing()
	}
	if opts.Matcher.Ratio == 0 {
		opts.Matcher = match.DefaultConfig()
	}
	c := &Coordinator{
		opts: opts,
		log:  logger.Named("pipeline"),
	}
	if opts.Extractor != nil {
		c.matcher = match.NewMatcher(opts.Extractor.Toolkit(), opts.Matcher)
	}
	return c
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Bank returns the reference bank, nil before Bootstrap or after teardown.
// Like Bootstrap it belongs to the render goroutine.
func (c *Coordinator) Bank() *match.Bank { return c.bank }

// Views returns the baked reference views. Render goroutine only.
func (c *Coordinator) Views() []*render.RenderedView { return c.views }

// Bootstrap loads the mesh, bakes the reference ring and builds the feature
// bank, leaving the coordinator Idle. On failure everything created so far
// is released, the state stays Uninit and a *BootstrapError is returned.
func (c *Coordinator) Bootstrap(meshBytes []byte) error {
	if st := c.State(); st != StateUninit {
		return c.invalid("bootstrap", st)
	}
	if c.opts.NewRenderer == nil || c.opts.Extractor == nil {
		return &BootstrapError{Stage: StageRenderer, Err: errors.New("renderer factory and extractor are required")}
	}
	start := time.Now()

	mesh, err := model.LoadBytes(meshBytes)
	if err != nil {
		return c.bootstrapFailed(StageMesh, err, nil)
	}

	r, err := c.opts.NewRenderer()
	if err != nil {
		return c.bootstrapFailed(StageRenderer, err, nil)
	}

	views, err := bake.Bake(r, mesh, c.opts.Ring.Viewpoints())
	if err != nil {
		return c.bootstrapFailed(StageBake, err, r)
	}

	bank, err := match.BuildBank(views, c.opts.Extractor, c.opts.ReferenceParams)
	if err != nil {
		return c.bootstrapFailed(StageBank, err, r)
	}

	if c.opts.Dumper != nil {
		if err := c.opts.Dumper.DumpBank(bank); err != nil {
			c.log.Warn("dumping reference views", zap.Error(err))
		}
	}

	c.mesh, c.renderer, c.views, c.bank = mesh, r, views, bank

	c.mu.Lock()
	c.state = StateIdle
	c.mu.Unlock()

	c.log.Info("bootstrap complete",
		zap.Int("vertices", mesh.VertexCount()),
		zap.Int("triangles", mesh.TriangleCount()),
		zap.Int("views", bank.Len()),
		zap.Int("keypoints", bank.Keypoints()),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (c *Coordinator) bootstrapFailed(stage Stage, err error, r render.Offscreen) error {
	if r != nil {
		if cerr := r.Close(); cerr != nil {
			c.log.Warn("closing renderer after failed bootstrap", zap.Error(cerr))
		}
	}
	c.log.Error("bootstrap failed", zap.String("stage", string(stage)), zap.Error(err))
	return &BootstrapError{Stage: stage, Err: err}
}

// OnSurfaceReady attaches the preview surface and starts the preview.
// The camera texture id is handed to the frame source before the first
// frame is drawn.
func (c *Coordinator) OnSurfaceReady(s DisplaySurface) error {
	if st := c.State(); st != StateIdle {
		return c.invalid("surface ready", st)
	}
	if s == nil {
		return fmt.Errorf("%w: nil surface", render.ErrSurfaceUnavailable)
	}

	tex := s.CameraTexture()
	if b, ok := c.opts.Source.(TextureBinder); ok {
		if err := b.BindTexture(tex); err != nil {
			return fmt.Errorf("binding camera texture %d: %w", tex, err)
		}
	}
	c.surface = s

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle {
		return ErrInvalidState
	}
	c.state = StateReady
	w, h := s.Size()
	c.log.Info("preview started", zap.Uint32("texture", tex), zap.Int("width", w), zap.Int("height", h))
	return nil
}

// OnSurfaceResized forwards the new surface size.
func (c *Coordinator) OnSurfaceResized(width, height int) {
	if c.surface == nil || c.released.Load() {
		return
	}
	c.surface.Resize(width, height)
}

// RequestCompute asks for a match on the first frame captured at or after
// now. Requests made while one is pending collapse into it.
func (c *Coordinator) RequestCompute() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateReady:
		c.state = StateComputing
		c.requestedAt = c.opts.Clock()
		return nil
	case StateComputing:
		return nil
	}
	return c.invalid("request compute", c.state)
}

// Subscribe sets the listener, replacing any previous one.
func (c *Coordinator) Subscribe(l Listener) {
	c.cb.Lock()
	c.listener = l
	c.cb.Unlock()
}

// Unsubscribe removes the listener.
func (c *Coordinator) Unsubscribe() { c.Subscribe(nil) }

// Release moves to StateTornDown. Resources are dropped by the next
// OnFrame, or by Close. No listener call starts after Release returns.
// It may be called from inside a listener.
func (c *Coordinator) Release() {
	if !c.released.CompareAndSwap(false, true) {
		return
	}
	c.mu.Lock()
	c.state = StateTornDown
	c.mu.Unlock()

	// A listener is running, possibly the caller: it already passed the
	// released check, and later deliveries see the flag.
	if c.delivering.Load() == 0 {
		// wait for a delivery that is about to start
		c.cb.Lock()
		c.listener = nil
		c.cb.Unlock()
	}
	c.log.Info("released")
}

// Close releases the coordinator and frees its resources immediately.
// It must run on the render goroutine.
func (c *Coordinator) Close() {
	c.Release()
	c.free()
}

// free drops resources in reverse creation order.
func (c *Coordinator) free() {
	c.teardown.Do(func() {
		c.inflight.Wait()
		if c.renderer != nil {
			if err := c.renderer.Close(); err != nil {
				c.log.Warn("closing renderer", zap.Error(err))
			}
			c.renderer = nil
		}
		c.bank = nil
		c.views = nil
		c.mesh = nil
		c.surface = nil
		c.log.Debug("resources freed")
	})
}

// OnFrame runs one preview frame: acquire, blit and, when a compute is
// pending for this frame, extract and match.
func (c *Coordinator) OnFrame() {
	if c.released.Load() {
		c.free()
		return
	}

	c.mu.Lock()
	st := c.state
	c.mu.Unlock()
	if st != StateReady && st != StateComputing {
		return
	}

	f, err := c.opts.Source.AcquireLatest()
	if err != nil {
		if !errors.Is(err, ErrFrameNotReady) {
			c.log.Warn("acquiring frame", zap.Error(err))
		}
		return
	}
	if err := c.surface.Blit(f); err != nil {
		c.log.Warn("drawing preview, frame skipped", zap.Error(err))
		return
	}

	c.mu.Lock()
	due := c.state == StateComputing && !c.running && !f.Timestamp.Before(c.requestedAt)
	if due {
		c.running = true
	}
	c.mu.Unlock()
	if due {
		c.compute(f)
	}
}

func (c *Coordinator) compute(f *Frame) {
	live, img := c.extractLive(f)

	run := func() {
		report := c.matcher.Match(live, c.bank)
		if c.opts.Dumper != nil && img != nil {
			if err := c.opts.Dumper.DumpLive(report, img, live); err != nil {
				c.log.Warn("dumping live frame", zap.Error(err))
			}
		}
		c.finish(report)
	}

	if !c.opts.Async {
		run()
		return
	}
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		run()
	}()
}

// extractLive returns the live features, empty when the frame cannot be
// read. The returned features are owned by the caller.
func (c *Coordinator) extractLive(f *Frame) (vision.Features, image.Image) {
	img, err := f.RGB()
	if err != nil {
		c.log.Warn("converting frame", zap.Error(err))
		return vision.Features{}, nil
	}
	live, err := c.opts.Extractor.Extract(img, c.opts.LiveParams)
	if err != nil {
		c.log.Warn("live extraction failed", zap.Error(err))
		return vision.Features{}, img
	}
	return live.Clone(), img
}

// finish returns to Ready and hands the report to the UI dispatcher.
func (c *Coordinator) finish(report *match.Report) {
	c.mu.Lock()
	c.running = false
	if c.state == StateComputing {
		c.state = StateReady
	}
	c.mu.Unlock()

	if c.released.Load() {
		return
	}
	c.opts.UI.Dispatch(func() { c.deliver(report) })
}

// deliver calls the listener without holding cb, so the listener may call
// Release, Subscribe or Unsubscribe.
func (c *Coordinator) deliver(report *match.Report) {
	c.cb.RLock()
	c.delivering.Add(1)
	l := c.listener
	c.cb.RUnlock()
	defer c.delivering.Add(-1)

	if l == nil || c.released.Load() {
		return
	}
	if rl, ok := l.(ReportListener); ok {
		rl.OnMatchReport(report)
	}
	if c.released.Load() {
		return
	}
	l.OnMatchPercentage(report.MatchPercentage)
}

func (c *Coordinator) invalid(op string, st State) error {
	c.log.Warn("operation not allowed", zap.String("op", op), zap.Stringer("state", st))
	return fmt.Errorf("%w: %s in state %s", ErrInvalidState, op, st)
}
