// Package graphicstest provides an in-memory graphics.Device that tracks object
// lifetimes, stores pixels and can be told to fail.
package graphicstest

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/richinsley/gofsr/graphics"
)

// GL error codes raised by the fake.
const (
	InvalidOperation            uint32 = 0x0502
	OutOfMemory                 uint32 = 0x0505
	InvalidFramebufferOperation uint32 = 0x0506
)

// Counts is the number of live objects per kind.
type Counts struct {
	Textures     int
	Framebuffers int
	Shaders      int
	Programs     int
	VertexArrays int
	Buffers      int
}

func (c Counts) Total() int {
	return c.Textures + c.Framebuffers + c.Shaders + c.Programs + c.VertexArrays + c.Buffers
}

// DrawCall records one DrawQuad.
type DrawCall struct {
	Program     uint32
	Framebuffer uint32
	Texture     uint32
}

type texture struct {
	format graphics.TextureFormat
	width  int
	height int
	pix    []byte
}

type framebuffer struct {
	color      uint32
	depth      uint32
	incomplete bool
}

type shaderObject struct {
	kind     graphics.ShaderKind
	source   string
	compiled bool
}

type programObject struct {
	shaders  map[uint32]bool
	linked   bool
	fragment string
	uniforms map[string]int32
	values   map[int32][]float32
}

var uniformDecl = regexp.MustCompile(`uniform\s+(?:(?:lowp|mediump|highp)\s+)?\w+\s+(\w+)\s*;`)

// Device is a single-threaded stand-in for a GL context. The zero value is not
// usable; call New.
type Device struct {
	MaxTexture int

	// IncompleteFramebuffer makes the n-th created framebuffer (1-based) report
	// GL_FRAMEBUFFER_INCOMPLETE_ATTACHMENT. Zero disables it.
	IncompleteFramebuffer int
	// FailTexture makes the n-th texture allocation (1-based) fail.
	FailTexture int
	// CompileFailures and LinkFailures fail that many upcoming compiles or links.
	CompileFailures  int
	LinkFailures     int
	ValidateFailures int
	// FailBlits raises GL_INVALID_FRAMEBUFFER_OPERATION on every blit.
	FailBlits bool

	failDraws []string

	displayWidth  int
	displayHeight int
	display       []byte

	nextName     uint32
	textures     map[uint32]*texture
	framebuffers map[uint32]*framebuffer
	shaders      map[uint32]*shaderObject
	programs     map[uint32]*programObject
	vertexArrays map[uint32]bool
	buffers      map[uint32]bool
	textureCount int
	fboCount     int
	allocations  int
	units        map[int]uint32
	readFBO      uint32
	drawFBO      uint32
	program      uint32
	clearColor   [4]byte
	pendingError uint32
	finishes     int
	draws        []DrawCall
}

// New returns a device with a displayWidth x displayHeight default framebuffer.
func New(displayWidth, displayHeight int) *Device {
	d := &Device{
		MaxTexture:   16384,
		textures:     make(map[uint32]*texture),
		framebuffers: make(map[uint32]*framebuffer),
		shaders:      make(map[uint32]*shaderObject),
		programs:     make(map[uint32]*programObject),
		vertexArrays: make(map[uint32]bool),
		buffers:      make(map[uint32]bool),
		units:        make(map[int]uint32),
	}
	d.SetDisplaySize(displayWidth, displayHeight)
	return d
}

// SetDisplaySize resizes the default framebuffer, discarding its contents.
func (d *Device) SetDisplaySize(width, height int) {
	d.displayWidth, d.displayHeight = width, height
	d.display = make([]byte, width*height*4)
}

// FailDrawsContaining raises GL_INVALID_OPERATION for draws whose program's
// fragment source contains substr. An empty substr clears all draw failures.
func (d *Device) FailDrawsContaining(substr string) {
	if substr == "" {
		d.failDraws = nil
		return
	}
	d.failDraws = append(d.failDraws, substr)
}

// Live reports the objects currently allocated.
func (d *Device) Live() Counts {
	return Counts{
		Textures:     len(d.textures),
		Framebuffers: len(d.framebuffers),
		Shaders:      len(d.shaders),
		Programs:     len(d.programs),
		VertexArrays: len(d.vertexArrays),
		Buffers:      len(d.buffers),
	}
}

// Allocations counts every object creation call since New.
func (d *Device) Allocations() int { return d.allocations }

func (d *Device) Finishes() int { return d.finishes }

func (d *Device) Draws() []DrawCall { return d.draws }

// Pixel returns the RGBA value at (x, y) of the framebuffer's color attachment.
func (d *Device) Pixel(fbo uint32, x, y int) [4]byte {
	pix, w, h := d.colorStore(fbo)
	var out [4]byte
	if pix == nil || x < 0 || y < 0 || x >= w || y >= h {
		return out
	}
	copy(out[:], pix[(y*w+x)*4:])
	return out
}

// TextureSize returns the dimensions and format of a live texture.
func (d *Device) TextureSize(tex uint32) (int, int, graphics.TextureFormat, bool) {
	t, ok := d.textures[tex]
	if !ok {
		return 0, 0, 0, false
	}
	return t.width, t.height, t.format, true
}

// FramebufferTextures returns the color and depth attachments of a framebuffer.
func (d *Device) FramebufferTextures(fbo uint32) (color, depth uint32) {
	if f, ok := d.framebuffers[fbo]; ok {
		return f.color, f.depth
	}
	return 0, 0
}

// UniformValue returns the last value set for a program uniform.
func (d *Device) UniformValue(program uint32, name string) []float32 {
	p, ok := d.programs[program]
	if !ok {
		return nil
	}
	loc, ok := p.uniforms[name]
	if !ok {
		return nil
	}
	return p.values[loc]
}

func (d *Device) name() uint32 {
	d.nextName++
	d.allocations++
	return d.nextName
}

func (d *Device) raise(code uint32) {
	if d.pendingError == graphics.NoError {
		d.pendingError = code
	}
}

func (d *Device) MaxTextureSize() int { return d.MaxTexture }

func (d *Device) Finish() { d.finishes++ }

func (d *Device) Error() uint32 {
	code := d.pendingError
	d.pendingError = graphics.NoError
	return code
}

func (d *Device) CreateTexture(format graphics.TextureFormat, width, height int) (uint32, error) {
	d.textureCount++
	if d.FailTexture > 0 && d.textureCount == d.FailTexture {
		return 0, fmt.Errorf("allocate %s texture %dx%d: %s", format, width, height, graphics.ErrorString(OutOfMemory))
	}
	if width <= 0 || height <= 0 || width > d.MaxTexture || height > d.MaxTexture {
		return 0, fmt.Errorf("allocate %s texture %dx%d: %s", format, width, height, graphics.ErrorString(0x0501))
	}
	id := d.name()
	d.textures[id] = &texture{format: format, width: width, height: height, pix: make([]byte, width*height*4)}
	return id, nil
}

func (d *Device) UploadTexture(tex uint32, width, height int, rgba []byte) {
	t, ok := d.textures[tex]
	if !ok || t.width != width || t.height != height || len(rgba) < width*height*4 {
		d.raise(0x0501)
		return
	}
	copy(t.pix, rgba)
}

func (d *Device) DeleteTexture(tex uint32) {
	delete(d.textures, tex)
	for unit, bound := range d.units {
		if bound == tex {
			d.units[unit] = 0
		}
	}
}

func (d *Device) BindTexture(unit int, tex uint32) {
	if _, ok := d.textures[tex]; tex != 0 && !ok {
		d.raise(InvalidOperation)
		return
	}
	d.units[unit] = tex
}

func (d *Device) BoundTexture() uint32 { return d.units[0] }

func (d *Device) CreateFramebuffer() uint32 {
	d.fboCount++
	id := d.name()
	d.framebuffers[id] = &framebuffer{incomplete: d.IncompleteFramebuffer > 0 && d.fboCount == d.IncompleteFramebuffer}
	return id
}

func (d *Device) AttachTexture(fbo uint32, attachment graphics.Attachment, tex uint32) {
	f, ok := d.framebuffers[fbo]
	if !ok {
		d.raise(InvalidOperation)
		return
	}
	if attachment == graphics.DepthAttachment {
		f.depth = tex
	} else {
		f.color = tex
	}
}

func (d *Device) FramebufferStatus(fbo uint32) uint32 {
	if fbo == graphics.DefaultFramebuffer {
		return graphics.FramebufferComplete
	}
	f, ok := d.framebuffers[fbo]
	switch {
	case !ok:
		return graphics.FramebufferUndefined
	case f.incomplete:
		return graphics.FramebufferIncompleteAttachment
	case f.color == 0:
		return graphics.FramebufferIncompleteMissingAttachment
	}
	if _, ok := d.textures[f.color]; !ok {
		return graphics.FramebufferIncompleteAttachment
	}
	if f.depth != 0 {
		if _, ok := d.textures[f.depth]; !ok {
			return graphics.FramebufferIncompleteAttachment
		}
	}
	return graphics.FramebufferComplete
}

func (d *Device) DeleteFramebuffer(fbo uint32) {
	delete(d.framebuffers, fbo)
	if d.readFBO == fbo {
		d.readFBO = 0
	}
	if d.drawFBO == fbo {
		d.drawFBO = 0
	}
}

func (d *Device) BindFramebuffer(target graphics.FramebufferTarget, fbo uint32) {
	if _, ok := d.framebuffers[fbo]; fbo != 0 && !ok {
		d.raise(InvalidOperation)
		return
	}
	switch target {
	case graphics.ReadFramebuffer:
		d.readFBO = fbo
	case graphics.DrawFramebuffer:
		d.drawFBO = fbo
	default:
		d.readFBO, d.drawFBO = fbo, fbo
	}
}

func (d *Device) BoundFramebuffer(target graphics.FramebufferTarget) uint32 {
	if target == graphics.ReadFramebuffer {
		return d.readFBO
	}
	return d.drawFBO
}

func (d *Device) colorStore(fbo uint32) ([]byte, int, int) {
	if fbo == graphics.DefaultFramebuffer {
		return d.display, d.displayWidth, d.displayHeight
	}
	f, ok := d.framebuffers[fbo]
	if !ok {
		return nil, 0, 0
	}
	t, ok := d.textures[f.color]
	if !ok {
		return nil, 0, 0
	}
	return t.pix, t.width, t.height
}

func (d *Device) depthStore(fbo uint32) ([]byte, int, int) {
	f, ok := d.framebuffers[fbo]
	if !ok {
		return nil, 0, 0
	}
	t, ok := d.textures[f.depth]
	if !ok {
		return nil, 0, 0
	}
	return t.pix, t.width, t.height
}

// BlitFramebuffer copies with nearest sampling whatever the requested filter.
func (d *Device) BlitFramebuffer(src, dst graphics.Rect, mask graphics.BufferMask, filter graphics.Filter) {
	if d.FailBlits ||
		d.FramebufferStatus(d.readFBO) != graphics.FramebufferComplete ||
		d.FramebufferStatus(d.drawFBO) != graphics.FramebufferComplete {
		d.raise(InvalidFramebufferOperation)
		return
	}
	if src.Empty() || dst.Empty() {
		return
	}
	if mask&graphics.ColorBuffer != 0 {
		sp, sw, sh := d.colorStore(d.readFBO)
		dp, dw, dh := d.colorStore(d.drawFBO)
		resample(sp, sw, sh, src, dp, dw, dh, dst)
	}
	if mask&graphics.DepthBuffer != 0 {
		sp, sw, sh := d.depthStore(d.readFBO)
		dp, dw, dh := d.depthStore(d.drawFBO)
		if sp == nil || dp == nil {
			d.raise(InvalidOperation)
			return
		}
		resample(sp, sw, sh, src, dp, dw, dh, dst)
	}
}

func resample(sp []byte, sw, sh int, src graphics.Rect, dp []byte, dw, dh int, dst graphics.Rect) {
	for y := dst.Y0; y < dst.Y1; y++ {
		if y < 0 || y >= dh {
			continue
		}
		sy := src.Y0 + (y-dst.Y0)*src.Height()/dst.Height()
		if sy < 0 || sy >= sh {
			continue
		}
		for x := dst.X0; x < dst.X1; x++ {
			if x < 0 || x >= dw {
				continue
			}
			sx := src.X0 + (x-dst.X0)*src.Width()/dst.Width()
			if sx < 0 || sx >= sw {
				continue
			}
			copy(dp[(y*dw+x)*4:(y*dw+x)*4+4], sp[(sy*sw+sx)*4:])
		}
	}
}

func (d *Device) ReadPixels(fbo uint32, width, height int) []byte {
	pix, w, h := d.colorStore(fbo)
	out := make([]byte, width*height*4)
	if pix == nil {
		d.raise(InvalidFramebufferOperation)
		return out
	}
	for y := 0; y < height && y < h; y++ {
		n := min(width, w) * 4
		copy(out[y*width*4:y*width*4+n], pix[y*w*4:])
	}
	return out
}

func (d *Device) Viewport(width, height int) {}

func (d *Device) ClearColor(r, g, b, a float32) {
	d.clearColor = [4]byte{unorm(r), unorm(g), unorm(b), unorm(a)}
}

func unorm(v float32) byte {
	return byte(max(0, min(1, v))*255 + 0.5)
}

func (d *Device) Clear(mask graphics.BufferMask) {
	if d.FramebufferStatus(d.drawFBO) != graphics.FramebufferComplete {
		d.raise(InvalidFramebufferOperation)
		return
	}
	if mask&graphics.ColorBuffer == 0 {
		return
	}
	pix, _, _ := d.colorStore(d.drawFBO)
	for i := 0; i+4 <= len(pix); i += 4 {
		copy(pix[i:i+4], d.clearColor[:])
	}
}

func (d *Device) CreateShader(kind graphics.ShaderKind) uint32 {
	id := d.name()
	d.shaders[id] = &shaderObject{kind: kind}
	return id
}

func (d *Device) CompileShader(shader uint32, source string) (bool, string) {
	s, ok := d.shaders[shader]
	if !ok {
		return false, "invalid shader object"
	}
	s.source = source
	if d.CompileFailures > 0 {
		d.CompileFailures--
		return false, "0:1(1): error: injected compile failure"
	}
	if strings.TrimSpace(source) == "" {
		return false, "0:1(1): error: empty source"
	}
	s.compiled = true
	return true, ""
}

func (d *Device) DeleteShader(shader uint32) {
	delete(d.shaders, shader)
}

func (d *Device) CreateProgram() uint32 {
	id := d.name()
	d.programs[id] = &programObject{
		shaders:  make(map[uint32]bool),
		uniforms: make(map[string]int32),
		values:   make(map[int32][]float32),
	}
	return id
}

func (d *Device) AttachShader(program, shader uint32) {
	p, ok := d.programs[program]
	if !ok {
		d.raise(InvalidOperation)
		return
	}
	p.shaders[shader] = true
}

func (d *Device) DetachShader(program, shader uint32) {
	if p, ok := d.programs[program]; ok {
		delete(p.shaders, shader)
	}
}

func (d *Device) LinkProgram(program uint32) (bool, string) {
	p, ok := d.programs[program]
	if !ok {
		return false, "invalid program object"
	}
	if d.LinkFailures > 0 {
		d.LinkFailures--
		return false, "error: injected link failure"
	}
	for id := range p.shaders {
		s, ok := d.shaders[id]
		if !ok || !s.compiled {
			return false, "error: attached shader not compiled"
		}
		if s.kind == graphics.FragmentShader {
			p.fragment = s.source
		}
	}
	for i, m := range uniformDecl.FindAllStringSubmatch(p.fragment, -1) {
		p.uniforms[m[1]] = int32(i)
	}
	p.linked = true
	return true, ""
}

func (d *Device) ValidateProgram(program uint32) (bool, string) {
	if d.ValidateFailures > 0 {
		d.ValidateFailures--
		return false, "warning: injected validate failure"
	}
	p, ok := d.programs[program]
	return ok && p.linked, ""
}

func (d *Device) DeleteProgram(program uint32) {
	delete(d.programs, program)
	if d.program == program {
		d.program = 0
	}
}

func (d *Device) UseProgram(program uint32) {
	if p, ok := d.programs[program]; program != 0 && (!ok || !p.linked) {
		d.raise(InvalidOperation)
		return
	}
	d.program = program
}

func (d *Device) CurrentProgram() uint32 { return d.program }

func (d *Device) UniformLocation(program uint32, name string) int32 {
	p, ok := d.programs[program]
	if !ok {
		return -1
	}
	if loc, ok := p.uniforms[name]; ok {
		return loc
	}
	return -1
}

func (d *Device) setUniform(loc int32, v ...float32) {
	p, ok := d.programs[d.program]
	if !ok {
		d.raise(InvalidOperation)
		return
	}
	if loc < 0 {
		return
	}
	p.values[loc] = v
}

func (d *Device) Uniform1f(loc int32, v float32)    { d.setUniform(loc, v) }
func (d *Device) Uniform2f(loc int32, x, y float32) { d.setUniform(loc, x, y) }
func (d *Device) Uniform1i(loc int32, v int32)      { d.setUniform(loc, float32(v)) }

func (d *Device) CreateQuad(vertices []float32) (uint32, uint32) {
	vao := d.name()
	vbo := d.name()
	d.vertexArrays[vao] = true
	d.buffers[vbo] = true
	return vao, vbo
}

// DrawQuad resamples the texture bound to unit 0 into the draw framebuffer.
func (d *Device) DrawQuad(vao uint32, count int) {
	p, ok := d.programs[d.program]
	if !ok || !d.vertexArrays[vao] {
		d.raise(InvalidOperation)
		return
	}
	if d.FramebufferStatus(d.drawFBO) != graphics.FramebufferComplete {
		d.raise(InvalidFramebufferOperation)
		return
	}
	for _, substr := range d.failDraws {
		if strings.Contains(p.fragment, substr) {
			d.raise(InvalidOperation)
			return
		}
	}
	tex := d.units[0]
	d.draws = append(d.draws, DrawCall{Program: d.program, Framebuffer: d.drawFBO, Texture: tex})
	t, ok := d.textures[tex]
	if !ok {
		return
	}
	dp, dw, dh := d.colorStore(d.drawFBO)
	resample(t.pix, t.width, t.height, graphics.FullRect(t.width, t.height), dp, dw, dh, graphics.FullRect(dw, dh))
}

func (d *Device) DeleteQuad(vao, vbo uint32) {
	delete(d.vertexArrays, vao)
	delete(d.buffers, vbo)
}

var _ graphics.Device = (*Device)(nil)
