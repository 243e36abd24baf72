//go:build linux

// Package headless provides a GL ES 3 context on an EGL pbuffer, for upscaling
// without a window system.
package headless

import (
	"fmt"
	"time"
	"unsafe"

	"github.com/richinsley/gofsr/graphics"
	"github.com/richinsley/gofsr/log"
)

/*
#cgo LDFLAGS: -lEGL
#include <EGL/egl.h>
#include <EGL/eglext.h>

static PFNEGLQUERYDEVICESEXTPROC query_devices_ptr = NULL;
static PFNEGLGETPLATFORMDISPLAYEXTPROC platform_display_ptr = NULL;

static void load_extensions() {
    query_devices_ptr = (PFNEGLQUERYDEVICESEXTPROC) eglGetProcAddress("eglQueryDevicesEXT");
    platform_display_ptr = (PFNEGLGETPLATFORMDISPLAYEXTPROC) eglGetProcAddress("eglGetPlatformDisplayEXT");
}

static EGLDisplay platform_display(EGLenum platform, void *native_display) {
    if (platform_display_ptr) {
        return platform_display_ptr(platform, native_display, NULL);
    }
    return EGL_NO_DISPLAY;
}

static EGLBoolean query_devices(EGLint max_devices, EGLDeviceEXT *devices, EGLint *num_devices) {
    if (query_devices_ptr) {
        return query_devices_ptr(max_devices, devices, num_devices);
    }
    return EGL_FALSE;
}
*/
import "C"

var logger = log.New("egl")

// Context is an EGL pbuffer surface with a current GL ES 3 context. Its
// framebuffer 0 is the pbuffer, so presented frames can be read back.
type Context struct {
	display C.EGLDisplay
	context C.EGLContext
	surface C.EGLSurface

	width  int
	height int
	owner  uint64
	start  time.Time
}

// display picks the first GPU that exposes a platform display, and falls back
// to the default display when device enumeration is unavailable.
func display() (C.EGLDisplay, error) {
	C.load_extensions()

	var count C.EGLint
	if C.query_devices(0, nil, &count) == C.EGL_FALSE || count == 0 {
		logger.Warning("EGL device enumeration unavailable, using the default display")
		d := C.eglGetDisplay(C.EGLNativeDisplayType(C.EGL_DEFAULT_DISPLAY))
		if d == C.EGLDisplay(C.EGL_NO_DISPLAY) {
			return d, fmt.Errorf("no default EGL display")
		}
		return d, nil
	}

	devices := make([]C.EGLDeviceEXT, count)
	if C.query_devices(count, &devices[0], &count) == C.EGL_FALSE {
		return C.EGLDisplay(C.EGL_NO_DISPLAY), fmt.Errorf("query EGL devices failed")
	}
	for i := 0; i < int(count); i++ {
		d := C.platform_display(C.EGL_PLATFORM_DEVICE_EXT, unsafe.Pointer(devices[i]))
		if d != C.EGLDisplay(C.EGL_NO_DISPLAY) {
			logger.Infof("using EGL device %d of %d", i, count)
			return d, nil
		}
	}
	return C.EGLDisplay(C.EGL_NO_DISPLAY), fmt.Errorf("none of %d EGL devices has a display", count)
}

// New creates a width x height pbuffer and makes its context current on the
// calling thread.
func New(width, height int) (*Context, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("headless: invalid size %dx%d", width, height)
	}
	d, err := display()
	if err != nil {
		return nil, err
	}
	c := &Context{display: d, width: width, height: height}

	var major, minor C.EGLint
	if C.eglInitialize(d, &major, &minor) == C.EGL_FALSE {
		return nil, fmt.Errorf("eglInitialize failed: 0x%x", uint32(C.eglGetError()))
	}
	logger.Infof("EGL %d.%d", major, minor)

	configAttribs := []C.EGLint{
		C.EGL_SURFACE_TYPE, C.EGL_PBUFFER_BIT,
		C.EGL_RED_SIZE, 8,
		C.EGL_GREEN_SIZE, 8,
		C.EGL_BLUE_SIZE, 8,
		C.EGL_ALPHA_SIZE, 8,
		C.EGL_DEPTH_SIZE, 24,
		C.EGL_RENDERABLE_TYPE, C.EGL_OPENGL_ES3_BIT,
		C.EGL_NONE,
	}
	var config C.EGLConfig
	var numConfig C.EGLint
	if C.eglChooseConfig(d, &configAttribs[0], &config, 1, &numConfig) == C.EGL_FALSE || numConfig == 0 {
		c.Shutdown()
		return nil, fmt.Errorf("no EGL config with RGBA8 and depth 24")
	}

	pbufferAttribs := []C.EGLint{
		C.EGL_WIDTH, C.EGLint(width),
		C.EGL_HEIGHT, C.EGLint(height),
		C.EGL_NONE,
	}
	c.surface = C.eglCreatePbufferSurface(d, config, &pbufferAttribs[0])
	if c.surface == C.EGLSurface(C.EGL_NO_SURFACE) {
		c.Shutdown()
		return nil, fmt.Errorf("eglCreatePbufferSurface %dx%d failed: 0x%x", width, height, uint32(C.eglGetError()))
	}

	contextAttribs := []C.EGLint{
		C.EGL_CONTEXT_CLIENT_VERSION, 3,
		C.EGL_NONE,
	}
	c.context = C.eglCreateContext(d, config, C.EGLContext(C.EGL_NO_CONTEXT), &contextAttribs[0])
	if c.context == C.EGLContext(C.EGL_NO_CONTEXT) {
		c.Shutdown()
		return nil, fmt.Errorf("eglCreateContext failed: 0x%x", uint32(C.eglGetError()))
	}

	c.MakeCurrent()
	c.owner = graphics.CurrentThreadID()
	c.start = time.Now()
	return c, nil
}

func (c *Context) MakeCurrent() {
	if C.eglMakeCurrent(c.display, c.surface, c.surface, c.context) == C.EGL_FALSE {
		logger.Errorf("eglMakeCurrent failed: 0x%x", uint32(C.eglGetError()))
	}
}

func (c *Context) Shutdown() {
	if c.display == C.EGLDisplay(C.EGL_NO_DISPLAY) {
		return
	}
	C.eglMakeCurrent(c.display, C.EGLSurface(C.EGL_NO_SURFACE), C.EGLSurface(C.EGL_NO_SURFACE), C.EGLContext(C.EGL_NO_CONTEXT))
	if c.context != C.EGLContext(C.EGL_NO_CONTEXT) {
		C.eglDestroyContext(c.display, c.context)
	}
	if c.surface != C.EGLSurface(C.EGL_NO_SURFACE) {
		C.eglDestroySurface(c.display, c.surface)
	}
	C.eglTerminate(c.display)
	c.display = C.EGLDisplay(C.EGL_NO_DISPLAY)
}

// ShouldClose is always false; a pbuffer cannot be closed by a user.
func (c *Context) ShouldClose() bool { return false }

func (c *Context) EndFrame() {
	C.eglSwapBuffers(c.display, c.surface)
}

func (c *Context) GetFramebufferSize() (int, int) { return c.width, c.height }

func (c *Context) Time() float64 { return time.Since(c.start).Seconds() }

func (c *Context) IsOwnerThread() bool { return graphics.CurrentThreadID() == c.owner }

func (c *Context) IsGLES() bool { return true }

// SetTitle logs the title, there is no window to put it on.
func (c *Context) SetTitle(title string) {
	logger.Notice(title)
}
