// Package gldevice implements graphics.Device on an OpenGL 4.1 core context.
package gldevice

import (
	"fmt"
	"strings"
	"sync"

	gl "github.com/go-gl/gl/v4.1-core/gl"
	"github.com/richinsley/gofsr/graphics"
	"github.com/richinsley/gofsr/log"
)

var logger = log.New("gldevice")

var glInitOnce sync.Once
var glInitErr error

// Device issues GL calls against the context current on the calling thread.
type Device struct {
	maxTextureSize int
}

// New loads GL function pointers (once per process) and queries device limits.
// A GL context must be current.
func New() (*Device, error) {
	glInitOnce.Do(func() {
		glInitErr = gl.Init()
		if glInitErr == nil {
			logger.Noticef("OpenGL %s (%s)", gl.GoStr(gl.GetString(gl.VERSION)), gl.GoStr(gl.GetString(gl.RENDERER)))
		}
	})
	if glInitErr != nil {
		return nil, fmt.Errorf("failed to initialize gl: %w", glInitErr)
	}
	var size int32
	gl.GetIntegerv(gl.MAX_TEXTURE_SIZE, &size)
	return &Device{maxTextureSize: int(size)}, nil
}

func (d *Device) MaxTextureSize() int { return d.maxTextureSize }

func (d *Device) Finish() { gl.Finish() }

func (d *Device) Error() uint32 { return gl.GetError() }

type textureFormat struct {
	internal int32
	format   uint32
	xtype    uint32
}

var textureFormats = map[graphics.TextureFormat]textureFormat{
	graphics.FormatRGBA8:   {gl.RGBA8, gl.RGBA, gl.UNSIGNED_BYTE},
	graphics.FormatRGBA16F: {gl.RGBA16F, gl.RGBA, gl.FLOAT},
	graphics.FormatRG16F:   {gl.RG16F, gl.RG, gl.FLOAT},
	graphics.FormatDepth24: {gl.DEPTH_COMPONENT24, gl.DEPTH_COMPONENT, gl.UNSIGNED_INT},
}

func (d *Device) CreateTexture(format graphics.TextureFormat, width, height int) (uint32, error) {
	tf, ok := textureFormats[format]
	if !ok {
		return 0, fmt.Errorf("unsupported texture format %s", format)
	}
	prev := d.BoundTexture()
	// drain errors left by the host so the check below is ours
	for gl.GetError() != gl.NO_ERROR {
	}

	var tex uint32
	gl.GenTextures(1, &tex)
	gl.BindTexture(gl.TEXTURE_2D, tex)
	gl.TexImage2D(gl.TEXTURE_2D, 0, tf.internal, int32(width), int32(height), 0, tf.format, tf.xtype, nil)
	filter := int32(gl.LINEAR)
	if format == graphics.FormatDepth24 {
		filter = gl.NEAREST
	}
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, filter)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, filter)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	code := gl.GetError()
	gl.BindTexture(gl.TEXTURE_2D, prev)

	if code != gl.NO_ERROR {
		gl.DeleteTextures(1, &tex)
		return 0, fmt.Errorf("allocate %s texture %dx%d: %s", format, width, height, graphics.ErrorString(code))
	}
	return tex, nil
}

func (d *Device) UploadTexture(tex uint32, width, height int, rgba []byte) {
	if len(rgba) < width*height*4 {
		logger.Warningf("texture upload of %d bytes is short for %dx%d", len(rgba), width, height)
		return
	}
	prev := d.BoundTexture()
	gl.BindTexture(gl.TEXTURE_2D, tex)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.TexSubImage2D(gl.TEXTURE_2D, 0, 0, 0, int32(width), int32(height), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(rgba))
	gl.BindTexture(gl.TEXTURE_2D, prev)
}

func (d *Device) DeleteTexture(tex uint32) {
	if tex != 0 {
		gl.DeleteTextures(1, &tex)
	}
}

func (d *Device) BindTexture(unit int, tex uint32) {
	gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
	gl.BindTexture(gl.TEXTURE_2D, tex)
	if unit != 0 {
		gl.ActiveTexture(gl.TEXTURE0)
	}
}

func (d *Device) BoundTexture() uint32 {
	var active, tex int32
	gl.GetIntegerv(gl.ACTIVE_TEXTURE, &active)
	gl.ActiveTexture(gl.TEXTURE0)
	gl.GetIntegerv(gl.TEXTURE_BINDING_2D, &tex)
	gl.ActiveTexture(uint32(active))
	return uint32(tex)
}

func (d *Device) CreateFramebuffer() uint32 {
	var fbo uint32
	gl.GenFramebuffers(1, &fbo)
	return fbo
}

func (d *Device) AttachTexture(fbo uint32, attachment graphics.Attachment, tex uint32) {
	prev := d.BoundFramebuffer(graphics.DrawFramebuffer)
	gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, fbo)
	point := uint32(gl.COLOR_ATTACHMENT0)
	if attachment == graphics.DepthAttachment {
		point = gl.DEPTH_ATTACHMENT
	}
	gl.FramebufferTexture2D(gl.DRAW_FRAMEBUFFER, point, gl.TEXTURE_2D, tex, 0)
	gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, prev)
}

func (d *Device) FramebufferStatus(fbo uint32) uint32 {
	prev := d.BoundFramebuffer(graphics.DrawFramebuffer)
	gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, fbo)
	status := gl.CheckFramebufferStatus(gl.DRAW_FRAMEBUFFER)
	gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, prev)
	return status
}

func (d *Device) DeleteFramebuffer(fbo uint32) {
	if fbo != 0 {
		gl.DeleteFramebuffers(1, &fbo)
	}
}

func framebufferTarget(target graphics.FramebufferTarget) uint32 {
	switch target {
	case graphics.ReadFramebuffer:
		return gl.READ_FRAMEBUFFER
	case graphics.DrawFramebuffer:
		return gl.DRAW_FRAMEBUFFER
	}
	return gl.FRAMEBUFFER
}

func (d *Device) BindFramebuffer(target graphics.FramebufferTarget, fbo uint32) {
	gl.BindFramebuffer(framebufferTarget(target), fbo)
}

func (d *Device) BoundFramebuffer(target graphics.FramebufferTarget) uint32 {
	var fbo int32
	if target == graphics.ReadFramebuffer {
		gl.GetIntegerv(gl.READ_FRAMEBUFFER_BINDING, &fbo)
	} else {
		gl.GetIntegerv(gl.DRAW_FRAMEBUFFER_BINDING, &fbo)
	}
	return uint32(fbo)
}

func (d *Device) BlitFramebuffer(src, dst graphics.Rect, mask graphics.BufferMask, filter graphics.Filter) {
	var bits uint32
	if mask&graphics.ColorBuffer != 0 {
		bits |= gl.COLOR_BUFFER_BIT
	}
	if mask&graphics.DepthBuffer != 0 {
		bits |= gl.DEPTH_BUFFER_BIT
	}
	glFilter := uint32(gl.NEAREST)
	if filter == graphics.FilterLinear && bits&gl.DEPTH_BUFFER_BIT == 0 {
		glFilter = gl.LINEAR
	}
	gl.BlitFramebuffer(
		int32(src.X0), int32(src.Y0), int32(src.X1), int32(src.Y1),
		int32(dst.X0), int32(dst.Y0), int32(dst.X1), int32(dst.Y1),
		bits, glFilter)
}

func (d *Device) ReadPixels(fbo uint32, width, height int) []byte {
	pixels := make([]byte, width*height*4)
	prev := d.BoundFramebuffer(graphics.ReadFramebuffer)
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, fbo)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(0, 0, int32(width), int32(height), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pixels))
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, prev)
	return pixels
}

func (d *Device) Viewport(width, height int) {
	gl.Viewport(0, 0, int32(width), int32(height))
}

func (d *Device) ClearColor(r, g, b, a float32) {
	gl.ClearColor(r, g, b, a)
}

func (d *Device) Clear(mask graphics.BufferMask) {
	var bits uint32
	if mask&graphics.ColorBuffer != 0 {
		bits |= gl.COLOR_BUFFER_BIT
	}
	if mask&graphics.DepthBuffer != 0 {
		bits |= gl.DEPTH_BUFFER_BIT
	}
	gl.Clear(bits)
}

func (d *Device) CreateShader(kind graphics.ShaderKind) uint32 {
	if kind == graphics.VertexShader {
		return gl.CreateShader(gl.VERTEX_SHADER)
	}
	return gl.CreateShader(gl.FRAGMENT_SHADER)
}

func (d *Device) CompileShader(shader uint32, source string) (bool, string) {
	csources, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csources, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)
		logText := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(shader, logLength, nil, gl.Str(logText))
		return false, strings.TrimRight(logText, "\x00")
	}
	return true, ""
}

func (d *Device) DeleteShader(shader uint32) {
	if shader != 0 {
		gl.DeleteShader(shader)
	}
}

func (d *Device) CreateProgram() uint32 { return gl.CreateProgram() }

func (d *Device) AttachShader(program, shader uint32) { gl.AttachShader(program, shader) }

func (d *Device) DetachShader(program, shader uint32) { gl.DetachShader(program, shader) }

func programLog(program uint32) string {
	var logLength int32
	gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLength)
	logText := strings.Repeat("\x00", int(logLength+1))
	gl.GetProgramInfoLog(program, logLength, nil, gl.Str(logText))
	return strings.TrimRight(logText, "\x00")
}

func (d *Device) LinkProgram(program uint32) (bool, string) {
	gl.LinkProgram(program)
	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		return false, programLog(program)
	}
	return true, ""
}

func (d *Device) ValidateProgram(program uint32) (bool, string) {
	gl.ValidateProgram(program)
	var status int32
	gl.GetProgramiv(program, gl.VALIDATE_STATUS, &status)
	if status == gl.FALSE {
		return false, programLog(program)
	}
	return true, ""
}

func (d *Device) DeleteProgram(program uint32) {
	if program != 0 {
		gl.DeleteProgram(program)
	}
}

func (d *Device) UseProgram(program uint32) { gl.UseProgram(program) }

func (d *Device) CurrentProgram() uint32 {
	var program int32
	gl.GetIntegerv(gl.CURRENT_PROGRAM, &program)
	return uint32(program)
}

func (d *Device) UniformLocation(program uint32, name string) int32 {
	return gl.GetUniformLocation(program, gl.Str(name+"\x00"))
}

func (d *Device) Uniform1f(loc int32, v float32)    { gl.Uniform1f(loc, v) }
func (d *Device) Uniform2f(loc int32, x, y float32) { gl.Uniform2f(loc, x, y) }
func (d *Device) Uniform1i(loc int32, v int32)      { gl.Uniform1i(loc, v) }

func (d *Device) CreateQuad(vertices []float32) (uint32, uint32) {
	var vao, vbo uint32
	gl.GenVertexArrays(1, &vao)
	gl.GenBuffers(1, &vbo)
	gl.BindVertexArray(vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(vertices)*4, gl.Ptr(vertices), gl.STATIC_DRAW)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointer(0, 2, gl.FLOAT, false, 4*4, gl.PtrOffset(0))
	gl.EnableVertexAttribArray(1)
	gl.VertexAttribPointer(1, 2, gl.FLOAT, false, 4*4, gl.PtrOffset(2*4))
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	gl.BindVertexArray(0)
	return vao, vbo
}

func (d *Device) DrawQuad(vao uint32, count int) {
	gl.BindVertexArray(vao)
	gl.DrawArrays(gl.TRIANGLE_STRIP, 0, int32(count))
	gl.BindVertexArray(0)
}

func (d *Device) DeleteQuad(vao, vbo uint32) {
	if vbo != 0 {
		gl.DeleteBuffers(1, &vbo)
	}
	if vao != 0 {
		gl.DeleteVertexArrays(1, &vao)
	}
}

var _ graphics.Device = (*Device)(nil)
