package graphics

// TextureFormat is the storage format of a render-target texture.
type TextureFormat int

const (
	FormatRGBA8 TextureFormat = iota
	FormatRGBA16F
	FormatRG16F
	FormatDepth24
)

func (f TextureFormat) String() string {
	switch f {
	case FormatRGBA8:
		return "RGBA8"
	case FormatRGBA16F:
		return "RGBA16F"
	case FormatRG16F:
		return "RG16F"
	case FormatDepth24:
		return "DEPTH24"
	}
	return "unknown"
}

type Filter int

const (
	FilterNearest Filter = iota
	FilterLinear
)

// BufferMask selects the buffers a blit or clear touches.
type BufferMask uint32

const (
	ColorBuffer BufferMask = 1 << iota
	DepthBuffer
)

type Attachment int

const (
	ColorAttachment Attachment = iota
	DepthAttachment
)

type FramebufferTarget int

const (
	ReadFramebuffer FramebufferTarget = iota
	DrawFramebuffer
	// BothFramebuffers binds read and draw at once.
	BothFramebuffers
)

type ShaderKind int

const (
	VertexShader ShaderKind = iota
	FragmentShader
)

func (k ShaderKind) String() string {
	if k == VertexShader {
		return "vertex"
	}
	return "fragment"
}

// Rect is a half-open pixel rectangle [X0,X1)x[Y0,Y1).
type Rect struct {
	X0, Y0, X1, Y1 int
}

// FullRect covers a whole width x height surface.
func FullRect(width, height int) Rect {
	return Rect{0, 0, width, height}
}

func (r Rect) Width() int  { return r.X1 - r.X0 }
func (r Rect) Height() int { return r.Y1 - r.Y0 }

// Empty reports whether the rectangle covers no pixels.
func (r Rect) Empty() bool {
	return r.Width() <= 0 || r.Height() <= 0
}

// NoError is the value Device.Error returns when no GL error is pending.
const NoError uint32 = 0

// DefaultFramebuffer is the window-system display framebuffer.
const DefaultFramebuffer uint32 = 0

// Device is the subset of GL the upscaler needs. All methods must be called on the
// thread that owns the GL context. Object names are GL names; zero means none.
type Device interface {
	MaxTextureSize() int
	// Finish blocks until all submitted GPU work is complete.
	Finish()
	// Error returns and clears the oldest pending GL error.
	Error() uint32

	CreateTexture(format TextureFormat, width, height int) (uint32, error)
	UploadTexture(tex uint32, width, height int, rgba []byte)
	DeleteTexture(tex uint32)
	BindTexture(unit int, tex uint32)
	BoundTexture() uint32

	CreateFramebuffer() uint32
	AttachTexture(fbo uint32, attachment Attachment, tex uint32)
	FramebufferStatus(fbo uint32) uint32
	DeleteFramebuffer(fbo uint32)
	BindFramebuffer(target FramebufferTarget, fbo uint32)
	BoundFramebuffer(target FramebufferTarget) uint32
	BlitFramebuffer(src, dst Rect, mask BufferMask, filter Filter)
	ReadPixels(fbo uint32, width, height int) []byte

	Viewport(width, height int)
	ClearColor(r, g, b, a float32)
	Clear(mask BufferMask)

	CreateShader(kind ShaderKind) uint32
	CompileShader(shader uint32, source string) (ok bool, log string)
	DeleteShader(shader uint32)
	CreateProgram() uint32
	AttachShader(program, shader uint32)
	DetachShader(program, shader uint32)
	LinkProgram(program uint32) (ok bool, log string)
	ValidateProgram(program uint32) (ok bool, log string)
	DeleteProgram(program uint32)
	UseProgram(program uint32)
	CurrentProgram() uint32
	UniformLocation(program uint32, name string) int32
	Uniform1f(loc int32, v float32)
	Uniform2f(loc int32, x, y float32)
	Uniform1i(loc int32, v int32)

	// CreateQuad uploads interleaved (x, y, u, v) vertices drawn as a triangle strip.
	CreateQuad(vertices []float32) (vao, vbo uint32)
	DrawQuad(vao uint32, count int)
	DeleteQuad(vao, vbo uint32)
}
