// Package upscaler drives the upscaling pipeline for one graphics context and
// recovers from GPU failures by falling back, stepping down to the basic variant
// and finally disabling itself.
package upscaler

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/richinsley/gofsr/config"
	"github.com/richinsley/gofsr/graphics"
	"github.com/richinsley/gofsr/log"
	"github.com/richinsley/gofsr/quality"
	"github.com/richinsley/gofsr/renderer"
	"github.com/richinsley/gofsr/rendertarget"
	"github.com/richinsley/gofsr/shader"
)

var logger = log.New("upscaler")

// Host is the render loop the processor is embedded in.
type Host interface {
	DisplaySize() (width, height int)
	// FrameSource returns the frame used for the initialization self-test.
	FrameSource() renderer.Frame
	MaxTextureSize() int
	NotifyUser(message string)
	IsOnOwnerThread() bool
}

// Configuration is the persisted user configuration.
type Configuration interface {
	Current() config.Snapshot
	NotifyDisabledDueToError()
	SetUpscaleVariant(variant quality.Variant) error
}

const (
	DefaultFrameErrorThreshold = 3
	DefaultStageErrorThreshold = 5
)

type Options struct {
	// FrameErrorThreshold is the number of consecutive failed frames that forces
	// the basic variant, or disables the processor when already basic.
	FrameErrorThreshold int
	// StageErrorThreshold is the number of consecutive stage failures after
	// which copy-through is no longer attempted.
	StageErrorThreshold int
	// Registry holds the shared quad. Nil means renderer.Shared().
	Registry *renderer.Registry
	// Translator rewrites fragment sources for the context. Nil passes them
	// through unchanged.
	Translator shader.Translator
	GLES       bool
}

// Processor owns the render targets and programs of one context. Every method
// except State, Stats, RenderDimensions and GenerationID must be called on the
// context's owner thread.
type Processor struct {
	dev  graphics.Device
	host Host
	cfg  Configuration
	opts Options

	registry *renderer.Registry
	manager  *rendertarget.Manager
	programs *shader.Cache
	exec     *renderer.Executor

	gen      *rendertarget.Generation
	dims     quality.Dimensions
	mode     quality.Mode
	variant  quality.Variant
	frameGen bool

	displayWidth  int
	displayHeight int

	frameFailures int
	stageFailures int
	notified      bool

	state atomic.Int32

	mu    sync.Mutex
	stats Stats
}

func New(dev graphics.Device, host Host, cfg Configuration, opts Options) *Processor {
	if opts.FrameErrorThreshold <= 0 {
		opts.FrameErrorThreshold = DefaultFrameErrorThreshold
	}
	if opts.StageErrorThreshold <= 0 {
		opts.StageErrorThreshold = DefaultStageErrorThreshold
	}
	registry := opts.Registry
	if registry == nil {
		registry = renderer.Shared()
	}
	p := &Processor{
		dev:      dev,
		host:     host,
		cfg:      cfg,
		opts:     opts,
		registry: registry,
		manager:  rendertarget.NewManager(dev),
		programs: shader.NewCache(dev, opts.Translator, opts.GLES),
	}
	p.setState(Uninitialized)
	return p
}

func (p *Processor) State() State {
	return State(p.state.Load())
}

func (p *Processor) setState(s State) {
	p.state.Store(int32(s))
	p.record(func(st *Stats) { st.State = s })
}

// RenderDimensions returns the size the host should render at.
func (p *Processor) RenderDimensions() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats.RenderWidth, p.stats.RenderHeight
}

// GenerationID returns the ID of the live render-target generation, or 0.
func (p *Processor) GenerationID() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats.Generation
}

func (p *Processor) ownerThread(op string) error {
	if p.host.IsOnOwnerThread() {
		return nil
	}
	logger.Warningf("%s rejected: not on the render thread", op)
	return ErrThreadViolation
}

// Initialize compiles the programs, creates the render targets and runs a
// self-test frame through the full pipeline. On failure everything allocated is
// released and the processor stays Uninitialized.
func (p *Processor) Initialize() error {
	if err := p.ownerThread("initialize"); err != nil {
		return err
	}
	switch p.State() {
	case Uninitialized:
	case Disabled:
		return ErrDisabled
	default:
		return nil
	}
	p.setState(Initializing)
	logger.Info("initializing upscaler")

	p.displayWidth, p.displayHeight = p.host.DisplaySize()
	if err := p.initialize(); err != nil {
		p.release()
		p.setState(Uninitialized)
		logger.Errorf("initialization failed: %v", err)
		return err
	}

	p.resetCounters()
	p.setState(Ready)
	logger.Noticef("upscaler ready: %s %s %s", p.variant, p.mode, p.dims)
	return nil
}

func (p *Processor) initialize() error {
	snap := p.cfg.Current().Clamped()
	if err := p.build(snap); err != nil {
		return err
	}

	state := graphics.SaveState(p.dev)
	defer state.Restore()
	frame := p.host.FrameSource()
	if _, err := p.exec.Run(p.gen, p.effective(snap), frame); err != nil {
		return fmt.Errorf("self-test frame: %w", err)
	}
	p.dev.Finish()
	return nil
}

// build compiles the programs and creates the generation for snap. On error
// the generation is left absent.
func (p *Processor) build(snap config.Snapshot) error {
	dims := quality.Compute(p.displayWidth, p.displayHeight, snap.Quality)
	if err := dims.Validate(p.host.MaxTextureSize()); err != nil {
		return err
	}
	frameGen := snap.FrameGeneration && snap.Variant.FrameGeneration()

	p.destroyGeneration()
	p.programs.Release()
	quad := p.registry.Quad(p.dev)
	if p.exec == nil {
		p.exec = renderer.NewExecutor(p.dev, p.programs, quad)
	}
	p.exec.ResetHistory()

	for _, stage := range renderer.Programs(snap.Variant, frameGen) {
		if _, err := p.programs.Load(stage); err != nil {
			return err
		}
	}
	gen, err := p.manager.Create(dims, rendertarget.StagesFor(snap.Variant, frameGen))
	if err != nil {
		return err
	}

	p.gen = gen
	p.dims = dims
	p.mode = snap.Quality
	p.variant = snap.Variant
	p.frameGen = frameGen
	p.record(func(st *Stats) {
		st.RenderWidth, st.RenderHeight = dims.RenderWidth, dims.RenderHeight
		st.DisplayWidth, st.DisplayHeight = dims.DisplayWidth, dims.DisplayHeight
		st.Generation = gen.ID
		st.Variant = snap.Variant
	})
	logger.Infof("created generation %s", gen)
	return nil
}

func (p *Processor) needsRebuild(snap config.Snapshot) bool {
	frameGen := snap.FrameGeneration && snap.Variant.FrameGeneration()
	return p.gen == nil || snap.Quality != p.mode || snap.Variant != p.variant || frameGen != p.frameGen
}

// effective is snap as the live generation was built for it.
func (p *Processor) effective(snap config.Snapshot) config.Snapshot {
	snap.Quality = p.mode
	snap.Variant = p.variant
	snap.FrameGeneration = p.frameGen
	return snap
}

// ProcessFrame upscales src onto the display framebuffer. A frame that failed
// but reached the display through a fallback returns a nil error; the fallback
// is visible in Presented.Passes. ErrDisabled is returned with the frame that
// caused the processor to disable itself.
func (p *Processor) ProcessFrame(src renderer.Source, ts time.Duration) (renderer.Presented, error) {
	if err := p.ownerThread("process frame"); err != nil {
		return renderer.Presented{}, err
	}
	switch p.State() {
	case Ready:
	case Disabled:
		return renderer.Presented{}, ErrDisabled
	default:
		return renderer.Presented{}, ErrNotReady
	}

	p.dev.Finish()
	defer p.dev.Finish()
	state := graphics.SaveState(p.dev)
	defer state.Restore()

	snap := p.cfg.Current().Clamped()
	if !snap.Enabled {
		return renderer.Presented{}, ErrNotEnabled
	}

	p.setState(Processing)
	frame := renderer.Frame{Source: src, Timestamp: ts}

	var err error
	if p.needsRebuild(snap) {
		logger.Infof("rebuilding for %s %s", snap.Variant, snap.Quality)
		p.dev.Finish()
		err = p.build(snap)
		if err != nil {
			logger.Warningf("rebuild failed: %v", err)
		}
	}

	var presented renderer.Presented
	if err == nil {
		presented, err = p.exec.Run(p.gen, p.effective(snap), frame)
		if err == nil {
			p.resetCounters()
			p.record(func(st *Stats) { st.Frames++ })
			p.setState(Ready)
			return presented, nil
		}
	}

	return p.recover(frame, err)
}

// recover puts frame on the display through the cheapest working fallback and
// applies the failure thresholds.
func (p *Processor) recover(frame renderer.Frame, cause error) (renderer.Presented, error) {
	p.setState(Degraded)
	p.frameFailures++

	var stageErr *renderer.StageError
	if errors.As(cause, &stageErr) {
		p.stageFailures++
		p.record(func(st *Stats) { st.StageFailures++ })
	}
	logger.Warningf("frame failed (%d consecutive): %v", p.frameFailures, cause)

	presented := renderer.Presented{
		Width:     p.displayWidth,
		Height:    p.displayHeight,
		Timestamp: frame.Timestamp,
	}
	copied := false
	if p.gen != nil && p.stageFailures < p.opts.StageErrorThreshold {
		if err := p.exec.CopyThrough(p.gen, frame); err != nil {
			p.stageFailures++
			p.record(func(st *Stats) { st.StageFailures++ })
			logger.Warningf("copy-through failed: %v", err)
		} else {
			copied = true
			presented.Passes = []renderer.Pass{renderer.PassCapture, renderer.PassCopyThrough}
			p.record(func(st *Stats) { st.CopyThroughs++ })
		}
	}
	if !copied {
		if err := p.exec.DirectBlit(frame, p.displayWidth, p.displayHeight); err != nil {
			logger.Warningf("direct blit failed: %v", err)
		}
		presented.Passes = []renderer.Pass{renderer.PassDirectBlit}
		p.record(func(st *Stats) { st.DirectBlits++ })
	}
	p.record(func(st *Stats) {
		st.FrameFailures = p.frameFailures
		st.ConsecutiveStageFailures = p.stageFailures
	})

	if p.frameFailures < p.opts.FrameErrorThreshold {
		p.setState(Ready)
		return presented, nil
	}

	if p.variant.MoreAdvancedThan(quality.Basic) {
		p.stepDown()
		p.setState(Ready)
		return presented, nil
	}

	p.disable(fmt.Sprintf("%d consecutive failed frames on %s", p.frameFailures, p.variant))
	return presented, ErrDisabled
}

// stepDown forces the basic variant and rebuilds. The failure counters are kept
// so the next failure on the basic variant disables the processor.
func (p *Processor) stepDown() {
	logger.Errorf("too many errors on %s, falling back to %s", p.variant, quality.Basic)
	if err := p.cfg.SetUpscaleVariant(quality.Basic); err != nil {
		logger.Warningf("could not persist variant: %v", err)
	}
	p.record(func(st *Stats) { st.Degradations++ })

	snap := p.cfg.Current().Clamped()
	snap.Variant = quality.Basic
	p.dev.Finish()
	if err := p.build(snap); err != nil {
		logger.Warningf("rebuild after fallback failed: %v", err)
	}
}

func (p *Processor) disable(reason string) {
	logger.Errorf("disabling upscaler: %s", reason)
	p.setState(Disabled)
	p.record(func(st *Stats) { st.Disables++ })
	p.cfg.NotifyDisabledDueToError()
	p.release()

	if !p.notified {
		p.notified = true
		p.record(func(st *Stats) { st.UserNotified++ })
		p.host.NotifyUser(DisabledNotice)
	}
}

// ReportExternalError disables the processor after a failure the host detected
// outside the pipeline.
func (p *Processor) ReportExternalError(err error) error {
	if terr := p.ownerThread("report external error"); terr != nil {
		return terr
	}
	if p.State() == Disabled {
		logger.Warningf("external error while disabled: %v", err)
		return nil
	}
	p.disable(fmt.Sprintf("external error: %v", err))
	return nil
}

// RequestReenable leaves Disabled on the basic variant and initializes again.
// It does nothing in any other state.
func (p *Processor) RequestReenable() error {
	if err := p.ownerThread("re-enable"); err != nil {
		return err
	}
	if p.State() != Disabled {
		logger.Debugf("re-enable ignored in state %s", p.State())
		return nil
	}
	logger.Notice("re-enabling upscaler on the basic variant")
	if err := p.cfg.SetUpscaleVariant(quality.Basic); err != nil {
		logger.Warningf("could not persist variant: %v", err)
	}
	p.resetCounters()
	p.notified = false
	p.setState(Uninitialized)
	return p.Initialize()
}

// ResizeBuffers replaces the generation for a new display size. Identical
// dimensions keep the live generation. When the new generation cannot be
// created none is left, and the next frame retries.
func (p *Processor) ResizeBuffers(width, height int) error {
	if err := p.ownerThread("resize"); err != nil {
		return err
	}
	switch p.State() {
	case Ready:
	case Disabled:
		return ErrDisabled
	default:
		return ErrNotReady
	}

	dims := quality.Compute(width, height, p.mode)
	if p.gen != nil && dims.Equal(p.dims) {
		return nil
	}
	if err := dims.Validate(p.host.MaxTextureSize()); err != nil {
		return err
	}

	p.displayWidth, p.displayHeight = width, height
	p.dev.Finish()
	p.destroyGeneration()
	p.exec.ResetHistory()

	gen, err := p.manager.Create(dims, rendertarget.StagesFor(p.variant, p.frameGen))
	if err != nil {
		logger.Warningf("resize to %dx%d failed: %v", width, height, err)
		return err
	}
	p.gen = gen
	p.dims = dims
	p.record(func(st *Stats) {
		st.RenderWidth, st.RenderHeight = dims.RenderWidth, dims.RenderHeight
		st.DisplayWidth, st.DisplayHeight = dims.DisplayWidth, dims.DisplayHeight
		st.Generation = gen.ID
	})
	logger.Infof("resized to %s", gen)
	return nil
}

// Cleanup releases every GPU resource and returns to Uninitialized. It is safe
// to call repeatedly.
func (p *Processor) Cleanup() error {
	if err := p.ownerThread("cleanup"); err != nil {
		return err
	}
	p.release()
	if p.State() != Uninitialized {
		logger.Info("upscaler cleaned up")
	}
	p.setState(Uninitialized)
	return nil
}

func (p *Processor) release() {
	p.dev.Finish()
	p.destroyGeneration()
	p.programs.Release()
	if p.exec != nil {
		p.exec.ResetHistory()
	}
}

func (p *Processor) destroyGeneration() {
	if p.gen == nil {
		return
	}
	p.manager.Destroy(p.gen)
	p.gen = nil
	p.record(func(st *Stats) { st.Generation = 0 })
}

func (p *Processor) resetCounters() {
	p.frameFailures = 0
	p.stageFailures = 0
	p.record(func(st *Stats) {
		st.FrameFailures = 0
		st.ConsecutiveStageFailures = 0
	})
}
