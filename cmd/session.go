package main

import (
	"fmt"
	"image"
	"time"

	"github.com/richinsley/gofsr/config"
	"github.com/richinsley/gofsr/gldevice"
	"github.com/richinsley/gofsr/glfwcontext"
	"github.com/richinsley/gofsr/headless"
	"github.com/richinsley/gofsr/host"
	"github.com/richinsley/gofsr/options"
	"github.com/richinsley/gofsr/renderer"
	"github.com/richinsley/gofsr/translator"
	"github.com/richinsley/gofsr/upscaler"
	"github.com/spf13/afero"
)

// surface is a window or pbuffer with a current GL context.
type surface interface {
	host.Surface
	IsGLES() bool
}

// session is one surface with an upscaler and a scene in it.
type session struct {
	surface surface
	dev     *gldevice.Device
	store   *config.Store
	scene   *host.Scene
	window  *host.Window
	proc    *upscaler.Processor
	loop    *host.Loop
}

// openSession creates everything drawing into surf. The settings are read from
// fsys. The session owns surf from here on.
func openSession(opts *options.Options, fsys afero.Fs, img image.Image, surf surface) (*session, error) {
	surf.MakeCurrent()
	s := &session{surface: surf}

	var err error
	s.dev, err = gldevice.New()
	if err != nil {
		s.Close()
		return nil, err
	}
	s.store, err = config.Open(fsys, opts.ConfigPath)
	if err != nil {
		s.Close()
		return nil, err
	}
	if err := opts.Apply(s.store); err != nil {
		s.Close()
		return nil, err
	}
	s.scene, err = host.NewScene(s.dev, img)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.window = host.NewWindow(surf, s.dev, s.scene, "gofsr")
	gles := surf.IsGLES()
	s.proc = upscaler.New(s.dev, s.window, s.store, upscaler.Options{
		Translator: translator.GLSL{IsGLES: gles},
		GLES:       gles,
	})
	s.loop = host.NewLoop(s.window, &host.Controls{Store: s.store, Processor: s.proc})
	return s, nil
}

// renderOnce initializes the processor if needed and draws one frame at ts.
func (s *session) renderOnce(ts time.Duration) (*image.RGBA, error) {
	if s.proc.State() == upscaler.Uninitialized {
		if err := s.proc.Initialize(); err != nil {
			return nil, err
		}
		width, height := s.window.DisplaySize()
		s.loop.Throttle.Reset(width, height, time.Now())
	}
	s.window.Clock = func() time.Duration { return ts }
	s.loop.Step()
	width, height := s.window.DisplaySize()
	return host.ReadDisplay(s.dev, width, height), nil
}

func (s *session) Close() {
	if s.proc != nil {
		if err := s.proc.Cleanup(); err != nil {
			logger.Warningf("cleanup: %v", err)
		}
	}
	if s.scene != nil {
		s.scene.Destroy()
	}
	renderer.Shared().Teardown()
	s.surface.Shutdown()
}

// offscreenSurface returns an EGL pbuffer when opts.Headless is set and a hidden
// glfw window otherwise. done releases the window system afterwards.
func offscreenSurface(opts *options.Options) (surf surface, done func(), err error) {
	if opts.Headless {
		ctx, err := headless.New(opts.Width, opts.Height)
		if err != nil {
			return nil, nil, err
		}
		return ctx, func() {}, nil
	}

	if err := glfwcontext.InitGraphics(); err != nil {
		return nil, nil, err
	}
	ctx, err := glfwcontext.New(opts.Width, opts.Height, "gofsr", false)
	if err != nil {
		glfwcontext.TerminateGraphics()
		return nil, nil, fmt.Errorf("create window: %w", err)
	}
	return ctx, glfwcontext.TerminateGraphics, nil
}

// scratchFs reads the settings from disk but keeps every change in memory, so
// one-shot commands never rewrite the user's settings.
func scratchFs() afero.Fs {
	return afero.NewCopyOnWriteFs(afero.NewReadOnlyFs(afero.NewOsFs()), afero.NewMemMapFs())
}
