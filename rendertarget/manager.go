package rendertarget

import (
	"errors"
	"fmt"

	"github.com/richinsley/gofsr/graphics"
	"github.com/richinsley/gofsr/log"
	"github.com/richinsley/gofsr/quality"
)

var logger = log.New("rendertarget")

// Target is one framebuffer and its attachments.
type Target struct {
	Stage       Stage
	Framebuffer uint32
	Color       uint32
	Depth       uint32
	Format      graphics.TextureFormat
	Width       int
	Height      int
}

// Rect covers the whole target.
func (t *Target) Rect() graphics.Rect {
	return graphics.FullRect(t.Width, t.Height)
}

// Generation is a complete set of render targets. It is never exposed half
// built: Create either returns every requested target framebuffer-complete or
// nothing.
type Generation struct {
	ID      uint64
	Dims    quality.Dimensions
	stages  StageSet
	targets map[Stage]*Target
}

func (g *Generation) Target(stage Stage) (*Target, bool) {
	if g == nil {
		return nil, false
	}
	t, ok := g.targets[stage]
	return t, ok
}

func (g *Generation) Stages() StageSet {
	if g == nil {
		return 0
	}
	return g.stages
}

// Empty reports whether the generation holds no resources.
func (g *Generation) Empty() bool {
	return g == nil || len(g.targets) == 0
}

// Manager creates and destroys generations on one device.
type Manager struct {
	dev    graphics.Device
	nextID uint64
}

func NewManager(dev graphics.Device) *Manager {
	return &Manager{dev: dev}
}

// Create validates dims against the device texture limit and allocates one
// target per stage: render resolution for input and motion vectors, display
// resolution for the rest.
func (m *Manager) Create(dims quality.Dimensions, stages StageSet) (*Generation, error) {
	if err := dims.Validate(m.dev.MaxTextureSize()); err != nil {
		return nil, err
	}
	if stages == 0 {
		return nil, errors.New("rendertarget: empty stage set")
	}

	g := &Generation{
		Dims:    dims,
		stages:  stages,
		targets: make(map[Stage]*Target),
	}
	for _, stage := range stages.Stages() {
		t, err := m.createTarget(stage, dims)
		if err != nil {
			logger.Warningf("rolling back generation %s: %v", dims, err)
			m.Destroy(g)
			return nil, err
		}
		g.targets[stage] = t
	}

	m.nextID++
	g.ID = m.nextID
	logger.Infof("created generation %d %s stages %s", g.ID, dims, stages)
	return g, nil
}

func (m *Manager) createTarget(stage Stage, dims quality.Dimensions) (*Target, error) {
	spec := stageSpecs[stage]
	t := &Target{Stage: stage, Format: spec.color, Width: dims.DisplayWidth, Height: dims.DisplayHeight}
	if spec.renderRes {
		t.Width, t.Height = dims.RenderWidth, dims.RenderHeight
	}

	var err error
	if t.Color, err = m.dev.CreateTexture(spec.color, t.Width, t.Height); err != nil {
		return nil, &ResourceError{Stage: stage, Op: "allocate color texture", Err: err}
	}
	if spec.depth {
		if t.Depth, err = m.dev.CreateTexture(graphics.FormatDepth24, t.Width, t.Height); err != nil {
			m.release(t)
			return nil, &ResourceError{Stage: stage, Op: "allocate depth texture", Err: err}
		}
	}

	t.Framebuffer = m.dev.CreateFramebuffer()
	m.dev.AttachTexture(t.Framebuffer, graphics.ColorAttachment, t.Color)
	if t.Depth != 0 {
		m.dev.AttachTexture(t.Framebuffer, graphics.DepthAttachment, t.Depth)
	}
	if status := m.dev.FramebufferStatus(t.Framebuffer); status != graphics.FramebufferComplete {
		m.release(t)
		return nil, &ResourceError{Stage: stage, Op: "check framebuffer", Status: status}
	}
	return t, nil
}

func (m *Manager) release(t *Target) {
	m.dev.DeleteFramebuffer(t.Framebuffer)
	m.dev.DeleteTexture(t.Color)
	m.dev.DeleteTexture(t.Depth)
	t.Framebuffer, t.Color, t.Depth = 0, 0, 0
}

// Destroy waits for in-flight GPU work and releases every target. It is safe on
// nil or already destroyed generations.
func (m *Manager) Destroy(g *Generation) {
	if g.Empty() {
		return
	}
	m.dev.Finish()
	for _, stage := range stageOrder {
		if t, ok := g.targets[stage]; ok {
			m.release(t)
		}
	}
	g.targets = map[Stage]*Target{}
	if g.ID != 0 {
		logger.Infof("destroyed generation %d", g.ID)
	}
}

// Check re-validates every framebuffer of the generation.
func (m *Manager) Check(g *Generation) error {
	if g.Empty() {
		return errors.New("rendertarget: generation is absent")
	}
	for _, stage := range g.stages.Stages() {
		t := g.targets[stage]
		if status := m.dev.FramebufferStatus(t.Framebuffer); status != graphics.FramebufferComplete {
			return &ResourceError{Stage: stage, Op: "check framebuffer", Status: status}
		}
	}
	return nil
}

func (g *Generation) String() string {
	if g == nil {
		return "generation(nil)"
	}
	return fmt.Sprintf("generation(%d %s)", g.ID, g.Dims)
}
