// Package host embeds the upscaler in a simple render loop: a window, a scene
// rendered at the upscaler's render resolution, and the user controls.
package host

import (
	"context"
	"errors"
	"time"

	"github.com/richinsley/gofsr/config"
	"github.com/richinsley/gofsr/graphics"
	"github.com/richinsley/gofsr/log"
	"github.com/richinsley/gofsr/quality"
	"github.com/richinsley/gofsr/renderer"
	"github.com/richinsley/gofsr/upscaler"
)

var logger = log.New("host")

// Surface is the window the loop draws into.
type Surface interface {
	graphics.Context
	SetTitle(title string)
}

// Window implements upscaler.Host over a Surface.
type Window struct {
	surface  Surface
	dev      graphics.Device
	scene    *Scene
	registry *renderer.Registry
	title    string

	// Clock overrides the surface clock for frame timestamps.
	Clock func() time.Duration
}

func NewWindow(surface Surface, dev graphics.Device, scene *Scene, title string) *Window {
	return &Window{
		surface:  surface,
		dev:      dev,
		scene:    scene,
		registry: renderer.Shared(),
		title:    title,
	}
}

func (w *Window) DisplaySize() (int, int) {
	return w.surface.GetFramebufferSize()
}

// FrameSource renders the scene at display size; capture reads the render
// rectangle out of it.
func (w *Window) FrameSource() renderer.Frame {
	width, height := w.DisplaySize()
	src, err := w.scene.Render(width, height)
	if err != nil {
		logger.Warningf("frame source: %v", err)
	}
	return renderer.Frame{Source: src, Timestamp: w.Timestamp()}
}

func (w *Window) MaxTextureSize() int {
	return w.registry.MaxTextureSize(w.dev)
}

func (w *Window) NotifyUser(message string) {
	logger.Warning(message)
	w.surface.SetTitle(w.title + " | " + message)
}

func (w *Window) IsOnOwnerThread() bool {
	return w.surface.IsOwnerThread()
}

// Timestamp is the surface clock as a duration.
func (w *Window) Timestamp() time.Duration {
	if w.Clock != nil {
		return w.Clock()
	}
	return time.Duration(w.surface.Time() * float64(time.Second))
}

// Controls maps user input onto the configuration and the processor.
type Controls struct {
	Store     *config.Store
	Processor *upscaler.Processor
}

// Toggle flips the feature on or off. When the processor disabled itself, or
// never initialized, it is brought back up instead.
func (c *Controls) Toggle() {
	switch c.Processor.State() {
	case upscaler.Disabled:
		if err := c.Store.SetEnabled(true); err != nil {
			logger.Warningf("toggle: %v", err)
		}
		if err := c.Processor.RequestReenable(); err != nil {
			logger.Errorf("re-enable failed: %v", err)
		}
		return
	case upscaler.Uninitialized:
		if err := c.Store.SetEnabled(true); err != nil {
			logger.Warningf("toggle: %v", err)
		}
		if err := c.Processor.Initialize(); err != nil {
			logger.Errorf("initialize failed: %v", err)
		}
		return
	}
	enabled := !c.Store.Current().Enabled
	if err := c.Store.SetEnabled(enabled); err != nil {
		logger.Warningf("toggle: %v", err)
	}
	logger.Infof("upscaling enabled: %v", enabled)
}

func (c *Controls) CycleQuality() {
	mode := c.Store.Current().Quality.Next()
	if err := c.Store.SetQuality(mode); err != nil {
		logger.Warningf("quality: %v", err)
	}
	logger.Infof("quality mode %s", mode.DisplayName())
}

func (c *Controls) CycleVariant() {
	variant := c.Store.Current().Variant.Next()
	if err := c.Store.SetUpscaleVariant(variant); err != nil {
		logger.Warningf("variant: %v", err)
	}
	logger.Infof("upscaler %s: %s", variant.DisplayName(), variant.Description())
}

func (c *Controls) ToggleFrameGeneration() {
	snap := c.Store.Current()
	if err := c.Store.SetFrameGeneration(!snap.FrameGeneration, snap.FrameGenerationStrength); err != nil {
		logger.Warningf("frame generation: %v", err)
	}
	if !snap.FrameGeneration && !snap.Variant.FrameGeneration() {
		logger.Infof("frame generation needs %s", quality.FrameGen.DisplayName())
	}
}

// Loop is the interactive render loop.
type Loop struct {
	Window    *Window
	Controls  *Controls
	Throttle  *ResizeThrottle
	Auto      *AutoEnabler
	OnPresent func(renderer.Presented)

	now func() time.Time
}

func NewLoop(window *Window, controls *Controls) *Loop {
	return &Loop{
		Window:   window,
		Controls: controls,
		Throttle: NewResizeThrottle(),
		Auto:     NewAutoEnabler(),
		now:      time.Now,
	}
}

// Run initializes the processor and renders until the surface closes or ctx
// is done. The processor is cleaned up on return.
func (l *Loop) Run(ctx context.Context) error {
	proc := l.Controls.Processor
	if err := proc.Initialize(); err != nil {
		logger.Errorf("upscaler unavailable: %v", err)
	}
	defer func() {
		if err := proc.Cleanup(); err != nil {
			logger.Warningf("cleanup: %v", err)
		}
	}()

	width, height := l.Window.DisplaySize()
	l.Throttle.Reset(width, height, l.now())

	for !l.Window.surface.ShouldClose() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		l.Step()
		l.Window.surface.EndFrame()
	}
	return nil
}

// sourceSize is the render size the processor will use for this frame. A
// quality change is applied by the processor inside ProcessFrame, so the scene
// is rendered at the new size right away.
func (l *Loop) sourceSize(st upscaler.Stats, snap config.Snapshot, width, height int) (int, int) {
	if st.DisplayWidth > 0 && st.DisplayHeight > 0 {
		width, height = st.DisplayWidth, st.DisplayHeight
	}
	dims := quality.Compute(width, height, snap.Quality)
	return dims.RenderWidth, dims.RenderHeight
}

// Step renders one frame.
func (l *Loop) Step() {
	proc := l.Controls.Processor
	now := l.now()
	width, height := l.Window.DisplaySize()

	if l.Throttle.Observe(width, height, now) {
		logger.Infof("display resized to %dx%d", width, height)
		if err := proc.ResizeBuffers(width, height); err != nil && !errors.Is(err, upscaler.ErrNotReady) {
			logger.Warningf("resize: %v", err)
		}
	}

	snap := l.Controls.Store.Current()
	if l.Auto.Tick(now, snap.AutoEnable, snap.Enabled) {
		if err := l.Controls.Store.SetEnabled(true); err != nil {
			logger.Warningf("auto-enable: %v", err)
		}
		snap.Enabled = true
	}

	if proc.State() == upscaler.Ready {
		src, err := l.Window.scene.Render(l.sourceSize(proc.Stats(), snap, width, height))
		if err != nil {
			// the processor falls back to a direct blit of whatever it is given
			logger.Warningf("scene: %v", err)
		}
		presented, err := proc.ProcessFrame(src, l.Window.Timestamp())
		switch {
		case err == nil:
			if l.OnPresent != nil {
				l.OnPresent(presented)
			}
			return
		case errors.Is(err, upscaler.ErrDisabled):
			// the failing frame is already on the display
			return
		case !errors.Is(err, upscaler.ErrNotEnabled):
			logger.Warningf("frame: %v", err)
		}
	}

	if err := l.Window.scene.Present(width, height); err != nil {
		logger.Warningf("present: %v", err)
	}
}
