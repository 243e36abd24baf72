//go:build !linux

// Package headless provides a GL ES 3 context on an EGL pbuffer, for upscaling
// without a window system.
package headless

import "errors"

var ErrUnsupported = errors.New("headless: EGL rendering is only available on linux")

// Context is unavailable on this platform.
type Context struct{}

func New(width, height int) (*Context, error) { return nil, ErrUnsupported }

func (c *Context) MakeCurrent()                   {}
func (c *Context) Shutdown()                      {}
func (c *Context) ShouldClose() bool              { return true }
func (c *Context) EndFrame()                      {}
func (c *Context) GetFramebufferSize() (int, int) { return 0, 0 }
func (c *Context) Time() float64                  { return 0 }
func (c *Context) IsOwnerThread() bool            { return false }
func (c *Context) IsGLES() bool                   { return false }
func (c *Context) SetTitle(title string)          {}
