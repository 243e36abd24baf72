package host

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/richinsley/gofsr/graphics"
	"github.com/richinsley/gofsr/renderer"
)

// Scene stands in for a game engine: it holds one image and "renders" it into
// a framebuffer with color and depth at whatever resolution it is asked for.
type Scene struct {
	dev graphics.Device

	imageTex uint32
	imageFBO uint32
	imageW   int
	imageH   int

	fbo    uint32
	color  uint32
	depth  uint32
	width  int
	height int
}

// NewScene uploads img. GL rows run bottom-up, so the image is flipped on the
// way in.
func NewScene(dev graphics.Device, img image.Image) (*Scene, error) {
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)

	s := &Scene{dev: dev, imageW: b.Dx(), imageH: b.Dy()}
	tex, err := dev.CreateTexture(graphics.FormatRGBA8, s.imageW, s.imageH)
	if err != nil {
		return nil, fmt.Errorf("scene image: %w", err)
	}
	dev.UploadTexture(tex, s.imageW, s.imageH, flipRows(rgba.Pix, s.imageW, s.imageH))
	s.imageTex = tex

	s.imageFBO = dev.CreateFramebuffer()
	dev.AttachTexture(s.imageFBO, graphics.ColorAttachment, tex)
	if status := dev.FramebufferStatus(s.imageFBO); status != graphics.FramebufferComplete {
		s.Destroy()
		return nil, fmt.Errorf("scene image framebuffer: %s", graphics.FramebufferStatusString(status))
	}
	return s, nil
}

// Update replaces the scene image. img must have the size the scene was created
// with.
func (s *Scene) Update(img *image.RGBA) error {
	if b := img.Bounds(); b.Dx() != s.imageW || b.Dy() != s.imageH {
		return fmt.Errorf("scene: image is %dx%d, want %dx%d", b.Dx(), b.Dy(), s.imageW, s.imageH)
	}
	s.dev.UploadTexture(s.imageTex, s.imageW, s.imageH, flipRows(img.Pix, s.imageW, s.imageH))
	return nil
}

// Render draws the scene at width x height and returns it as a frame source.
// The target is reallocated only when the size changes.
func (s *Scene) Render(width, height int) (renderer.Source, error) {
	if width <= 0 || height <= 0 {
		return renderer.Source{}, fmt.Errorf("scene: invalid size %dx%d", width, height)
	}
	if width != s.width || height != s.height || s.fbo == 0 {
		if err := s.allocate(width, height); err != nil {
			return renderer.Source{}, err
		}
	}

	s.dev.BindFramebuffer(graphics.ReadFramebuffer, s.imageFBO)
	s.dev.BindFramebuffer(graphics.DrawFramebuffer, s.fbo)
	s.dev.BlitFramebuffer(graphics.FullRect(s.imageW, s.imageH), graphics.FullRect(width, height), graphics.ColorBuffer, graphics.FilterLinear)
	s.dev.BindFramebuffer(graphics.BothFramebuffers, graphics.DefaultFramebuffer)
	if code := s.dev.Error(); code != graphics.NoError {
		return renderer.Source{}, fmt.Errorf("scene render: %s", graphics.ErrorString(code))
	}
	return renderer.Source{Framebuffer: s.fbo, Width: width, Height: height, HasDepth: true}, nil
}

// Present draws the scene straight onto the display, for frames the upscaler
// does not handle.
func (s *Scene) Present(width, height int) error {
	s.dev.BindFramebuffer(graphics.ReadFramebuffer, s.imageFBO)
	s.dev.BindFramebuffer(graphics.DrawFramebuffer, graphics.DefaultFramebuffer)
	s.dev.Viewport(width, height)
	s.dev.ClearColor(0, 0, 0, 1)
	s.dev.Clear(graphics.ColorBuffer)
	s.dev.BlitFramebuffer(graphics.FullRect(s.imageW, s.imageH), graphics.FullRect(width, height), graphics.ColorBuffer, graphics.FilterLinear)
	s.dev.BindFramebuffer(graphics.BothFramebuffers, graphics.DefaultFramebuffer)
	if code := s.dev.Error(); code != graphics.NoError {
		return fmt.Errorf("scene present: %s", graphics.ErrorString(code))
	}
	return nil
}

func (s *Scene) allocate(width, height int) error {
	s.releaseTarget()

	color, err := s.dev.CreateTexture(graphics.FormatRGBA8, width, height)
	if err != nil {
		return fmt.Errorf("scene target: %w", err)
	}
	depth, err := s.dev.CreateTexture(graphics.FormatDepth24, width, height)
	if err != nil {
		s.dev.DeleteTexture(color)
		return fmt.Errorf("scene depth: %w", err)
	}
	fbo := s.dev.CreateFramebuffer()
	s.dev.AttachTexture(fbo, graphics.ColorAttachment, color)
	s.dev.AttachTexture(fbo, graphics.DepthAttachment, depth)
	s.fbo, s.color, s.depth = fbo, color, depth
	s.width, s.height = width, height

	if status := s.dev.FramebufferStatus(fbo); status != graphics.FramebufferComplete {
		s.releaseTarget()
		return fmt.Errorf("scene framebuffer: %s", graphics.FramebufferStatusString(status))
	}
	logger.Debugf("scene target %dx%d", width, height)
	return nil
}

func (s *Scene) releaseTarget() {
	if s.fbo != 0 {
		s.dev.DeleteFramebuffer(s.fbo)
	}
	if s.color != 0 {
		s.dev.DeleteTexture(s.color)
	}
	if s.depth != 0 {
		s.dev.DeleteTexture(s.depth)
	}
	s.fbo, s.color, s.depth = 0, 0, 0
	s.width, s.height = 0, 0
}

// Destroy releases every GPU object the scene owns.
func (s *Scene) Destroy() {
	s.releaseTarget()
	if s.imageFBO != 0 {
		s.dev.DeleteFramebuffer(s.imageFBO)
		s.imageFBO = 0
	}
	if s.imageTex != 0 {
		s.dev.DeleteTexture(s.imageTex)
		s.imageTex = 0
	}
}

// ReadDisplay reads the display framebuffer back into a top-down image.
func ReadDisplay(dev graphics.Device, width, height int) *image.RGBA {
	pix := dev.ReadPixels(graphics.DefaultFramebuffer, width, height)
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	copy(img.Pix, flipRows(pix, width, height))
	return img
}

func flipRows(pix []byte, width, height int) []byte {
	out := make([]byte, len(pix))
	stride := width * 4
	for y := 0; y < height; y++ {
		copy(out[(height-1-y)*stride:(height-y)*stride], pix[y*stride:(y+1)*stride])
	}
	return out
}
