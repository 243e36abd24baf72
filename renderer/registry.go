package renderer

import "github.com/richinsley/gofsr/graphics"

// Quad is the fullscreen triangle strip every pass draws.
type Quad struct {
	VAO   uint32
	VBO   uint32
	Count int
}

// x, y, u, v
var quadVertices = []float32{
	-1.0, -1.0, 0.0, 0.0,
	1.0, -1.0, 1.0, 0.0,
	-1.0, 1.0, 0.0, 1.0,
	1.0, 1.0, 1.0, 1.0,
}

// Registry holds process-wide GPU state shared by every processor: the
// fullscreen quad and the device texture limit. It is initialised lazily on the
// render thread and torn down once, when the GL context goes away.
type Registry struct {
	dev            graphics.Device
	quad           *Quad
	maxTextureSize int
}

var shared = &Registry{}

// Shared returns the process registry.
func Shared() *Registry { return shared }

// Quad returns the shared quad, creating it on first use.
func (r *Registry) Quad(dev graphics.Device) *Quad {
	if r.quad == nil {
		vao, vbo := dev.CreateQuad(quadVertices)
		r.quad = &Quad{VAO: vao, VBO: vbo, Count: len(quadVertices) / 4}
		r.dev = dev
		logger.Debugf("created fullscreen quad vao %d", vao)
	}
	return r.quad
}

// MaxTextureSize returns the device limit, querying it once.
func (r *Registry) MaxTextureSize(dev graphics.Device) int {
	if r.maxTextureSize == 0 {
		r.maxTextureSize = dev.MaxTextureSize()
	}
	return r.maxTextureSize
}

// Teardown deletes the quad and forgets cached limits.
func (r *Registry) Teardown() {
	if r.quad != nil && r.dev != nil {
		r.dev.DeleteQuad(r.quad.VAO, r.quad.VBO)
	}
	r.quad = nil
	r.dev = nil
	r.maxTextureSize = 0
}
