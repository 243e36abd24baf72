package host

import (
	"image"
	"image/color"
	"strings"
	"testing"
	"time"

	"github.com/richinsley/gofsr/config"
	"github.com/richinsley/gofsr/graphics"
	"github.com/richinsley/gofsr/graphics/graphicstest"
	"github.com/richinsley/gofsr/quality"
	"github.com/richinsley/gofsr/renderer"
	"github.com/richinsley/gofsr/upscaler"
	"github.com/spf13/afero"
)

func TestResizeThrottle(t *testing.T) {
	start := time.Unix(1000, 0)
	th := NewResizeThrottle()
	th.Reset(1920, 1080, start)

	steps := []struct {
		name  string
		w, h  int
		after time.Duration
		want  bool
	}{
		{"same size", 1920, 1080, time.Second, false},
		{"within tolerance", 1922, 1079, 2 * time.Second, false},
		{"resized", 1280, 720, 2*time.Second + 100*time.Millisecond, true},
		{"throttled", 1024, 768, 2*time.Second + 300*time.Millisecond, false},
		{"pending applied later", 1024, 768, 2*time.Second + 700*time.Millisecond, true},
	}
	for _, step := range steps {
		if got := th.Observe(step.w, step.h, start.Add(step.after)); got != step.want {
			t.Fatalf("%s: expected %v; got %v", step.name, step.want, got)
		}
	}
	if th.Pending(1024, 768) {
		t.Fatal("expected nothing pending after the last resize")
	}
}

func TestAutoEnabler(t *testing.T) {
	tests := []struct {
		name       string
		fps        int
		autoEnable bool
		enabled    bool
		want       bool
	}{
		{"slow", 30, true, false, true},
		{"fast", 60, true, false, false},
		{"opted out", 30, false, false, false},
		{"already on", 30, true, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAutoEnabler()
			now := time.Unix(0, 0)
			frame := time.Second / time.Duration(tt.fps)
			fired := 0
			// two full windows
			for i := 0; i <= tt.fps*10; i++ {
				if a.Tick(now, tt.autoEnable, tt.enabled) {
					fired++
				}
				now = now.Add(frame)
			}
			if (fired == 1) != tt.want || fired > 1 {
				t.Fatalf("expected fired=%v; fired %d times (fps %.1f)", tt.want, fired, a.FPS())
			}
		})
	}
}

func testImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: byte(x), G: byte(y), B: 9, A: 255})
		}
	}
	return img
}

func TestSceneRenderAndDestroy(t *testing.T) {
	dev := graphicstest.New(64, 32)
	before := dev.Live()

	scene, err := NewScene(dev, testImage(64, 32))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	src, err := scene.Render(32, 16)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.Width != 32 || src.Height != 16 || !src.HasDepth {
		t.Fatalf("unexpected source %+v", src)
	}

	again, _ := scene.Render(32, 16)
	if again.Framebuffer != src.Framebuffer {
		t.Fatal("expected the target to be reused at the same size")
	}
	if _, err := scene.Render(48, 24); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := scene.Render(0, 24); err == nil {
		t.Fatal("expected an invalid size to fail")
	}

	if err := scene.Present(64, 32); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// the display reads back top-down like the source image
	got := ReadDisplay(dev, 64, 32).RGBAAt(5, 3)
	if want := (color.RGBA{R: 5, G: 3, B: 9, A: 255}); got != want {
		t.Fatalf("expected %v; got %v", want, got)
	}

	scene.Destroy()
	if after := dev.Live(); after != before {
		t.Fatalf("expected everything released; before %+v, after %+v", before, after)
	}
}

func TestSceneUpdate(t *testing.T) {
	dev := graphicstest.New(16, 8)
	scene, err := NewScene(dev, testImage(16, 8))
	if err != nil {
		t.Fatal(err)
	}
	defer scene.Destroy()

	next := testImage(16, 8)
	next.SetRGBA(2, 1, color.RGBA{R: 250, A: 255})
	if err := scene.Update(next); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := scene.Present(16, 8); err != nil {
		t.Fatal(err)
	}
	if got := ReadDisplay(dev, 16, 8).RGBAAt(2, 1); got.R != 250 {
		t.Fatalf("expected the new image on the display; got %v", got)
	}
	if err := scene.Update(testImage(8, 8)); err == nil {
		t.Fatal("expected a size mismatch to fail")
	}
}

type fakeSurface struct {
	width, height int
	title         string
	owner         bool
	clock         float64
}

func (s *fakeSurface) MakeCurrent()                   {}
func (s *fakeSurface) Shutdown()                      {}
func (s *fakeSurface) ShouldClose() bool              { return false }
func (s *fakeSurface) EndFrame()                      {}
func (s *fakeSurface) GetFramebufferSize() (int, int) { return s.width, s.height }
func (s *fakeSurface) Time() float64                  { return s.clock }
func (s *fakeSurface) IsOwnerThread() bool            { return s.owner }
func (s *fakeSurface) SetTitle(title string)          { s.title = title }

type rig struct {
	dev     *graphicstest.Device
	surface *fakeSurface
	store   *config.Store
	proc    *upscaler.Processor
	loop    *Loop
	now     time.Time
}

func newRig(t *testing.T) *rig {
	t.Helper()
	dev := graphicstest.New(200, 100)
	surface := &fakeSurface{width: 200, height: 100, owner: true}
	store, err := config.Open(afero.NewMemMapFs(), "")
	if err != nil {
		t.Fatal(err)
	}
	if err := store.SetQuality(quality.Performance); err != nil {
		t.Fatal(err)
	}
	scene, err := NewScene(dev, testImage(200, 100))
	if err != nil {
		t.Fatal(err)
	}

	window := NewWindow(surface, dev, scene, "gofsr")
	window.registry = &renderer.Registry{}
	proc := upscaler.New(dev, window, store, upscaler.Options{Registry: &renderer.Registry{}})
	r := &rig{dev: dev, surface: surface, store: store, proc: proc, now: time.Unix(100, 0)}
	r.loop = NewLoop(window, &Controls{Store: store, Processor: proc})
	r.loop.now = func() time.Time { return r.now }
	return r
}

func TestLoopPresentsUpscaledFrames(t *testing.T) {
	r := newRig(t)
	if err := r.proc.Initialize(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r.loop.Throttle.Reset(200, 100, r.now)

	var frames []renderer.Presented
	r.loop.OnPresent = func(p renderer.Presented) { frames = append(frames, p) }
	r.loop.Step()
	if len(frames) != 1 || frames[0].Width != 200 {
		t.Fatalf("expected one upscaled frame; got %+v", frames)
	}

	// a quality change is picked up by the same frame
	r.loop.Controls.CycleQuality()
	r.loop.Step()
	if len(frames) != 2 || len(frames[1].Passes) != 3 {
		t.Fatalf("expected a full pipeline after the quality change; got %+v", frames)
	}
	if w, h := r.proc.RenderDimensions(); w != 67 || h != 33 {
		t.Fatalf("expected 67x33 for ultra performance; got %dx%d", w, h)
	}

	// throttled resize
	r.surface.width, r.surface.height = 160, 80
	r.now = r.now.Add(100 * time.Millisecond)
	r.loop.Step()
	if st := r.proc.Stats(); st.DisplayWidth != 200 {
		t.Fatalf("expected resize to be throttled; display %d", st.DisplayWidth)
	}
	r.now = r.now.Add(time.Second)
	r.loop.Step()
	if st := r.proc.Stats(); st.DisplayWidth != 160 {
		t.Fatalf("expected resize to be applied; display %d", st.DisplayWidth)
	}
}

func TestToggleRecoversFromDisabled(t *testing.T) {
	r := newRig(t)
	if err := r.proc.Initialize(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.proc.ReportExternalError(errTest); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(r.surface.title, "Press F10") {
		t.Fatalf("expected the notice in the title; got %q", r.surface.title)
	}

	// disabled frames still reach the display
	r.loop.Step()
	if fb := r.dev.BoundFramebuffer(graphics.DrawFramebuffer); fb != graphics.DefaultFramebuffer {
		t.Fatalf("expected the display bound; got %d", fb)
	}

	r.loop.Controls.Toggle()
	if r.proc.State() != upscaler.Ready || !r.store.Current().Enabled {
		t.Fatalf("expected Ready and enabled; got %s, %+v", r.proc.State(), r.store.Current())
	}

	r.loop.Controls.Toggle()
	if r.store.Current().Enabled {
		t.Fatal("expected toggle to disable")
	}
}

func TestControlsCycle(t *testing.T) {
	r := newRig(t)
	c := r.loop.Controls

	c.CycleVariant()
	c.CycleVariant()
	if v := r.store.Current().Variant; v != quality.FrameGen {
		t.Fatalf("expected %s; got %s", quality.FrameGen, v)
	}
	c.ToggleFrameGeneration()
	if !r.store.Current().FrameGeneration {
		t.Fatal("expected frame generation on")
	}
	c.CycleVariant()
	if v := r.store.Current().Variant; v != quality.Basic {
		t.Fatalf("expected variants to wrap; got %s", v)
	}
}

type testError string

func (e testError) Error() string { return string(e) }

const errTest = testError("render loop failed")
