package upscaler

import (
	"errors"
	"testing"
	"time"

	"github.com/richinsley/gofsr/config"
	"github.com/richinsley/gofsr/graphics"
	"github.com/richinsley/gofsr/graphics/graphicstest"
	"github.com/richinsley/gofsr/quality"
	"github.com/richinsley/gofsr/renderer"
	"github.com/spf13/afero"
)

type fakeHost struct {
	dev       *graphicstest.Device
	src       renderer.Source
	width     int
	height    int
	maxTex    int
	offThread bool
	notices   []string
}

func (h *fakeHost) DisplaySize() (int, int) { return h.width, h.height }

func (h *fakeHost) FrameSource() renderer.Frame {
	return renderer.Frame{Source: h.src}
}

func (h *fakeHost) MaxTextureSize() int {
	if h.maxTex > 0 {
		return h.maxTex
	}
	return h.dev.MaxTextureSize()
}

func (h *fakeHost) NotifyUser(message string) { h.notices = append(h.notices, message) }

func (h *fakeHost) IsOnOwnerThread() bool { return !h.offThread }

type countingConfig struct {
	*config.Store
	disabled int
}

func (c *countingConfig) NotifyDisabledDueToError() {
	c.disabled++
	c.Store.NotifyDisabledDueToError()
}

type harness struct {
	dev  *graphicstest.Device
	host *fakeHost
	cfg  *countingConfig
	proc *Processor
}

func newHarness(t *testing.T, width, height int, mode quality.Mode, variant quality.Variant, opts Options) *harness {
	t.Helper()
	dev := graphicstest.New(width, height)
	store, err := config.Open(afero.NewMemMapFs(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.SetQuality(mode); err != nil {
		t.Fatal(err)
	}
	if err := store.SetUpscaleVariant(variant); err != nil {
		t.Fatal(err)
	}
	cfg := &countingConfig{Store: store}

	color, err := dev.CreateTexture(graphics.FormatRGBA8, width, height)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pix := make([]byte, width*height*4)
	for i := range pix {
		pix[i] = byte(i)
	}
	dev.UploadTexture(color, width, height, pix)
	fbo := dev.CreateFramebuffer()
	dev.AttachTexture(fbo, graphics.ColorAttachment, color)

	host := &fakeHost{
		dev:    dev,
		src:    renderer.Source{Framebuffer: fbo, Width: width, Height: height},
		width:  width,
		height: height,
	}
	if opts.Registry == nil {
		opts.Registry = &renderer.Registry{}
	}
	return &harness{dev: dev, host: host, cfg: cfg, proc: New(dev, host, cfg, opts)}
}

func (h *harness) frame(t *testing.T, ts time.Duration) (renderer.Presented, error) {
	t.Helper()
	return h.proc.ProcessFrame(h.host.src, ts)
}

func samePasses(a, b []renderer.Pass) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

var copyThrough = []renderer.Pass{renderer.PassCapture, renderer.PassCopyThrough}

func TestInitializeAndProcess1080p(t *testing.T) {
	h := newHarness(t, 1920, 1080, quality.Balanced, quality.Basic, Options{})

	if _, err := h.frame(t, 0); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady before Initialize; got %v", err)
	}
	if err := h.proc.Initialize(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.proc.State() != Ready {
		t.Fatalf("expected Ready; got %s", h.proc.State())
	}
	if w, ht := h.proc.RenderDimensions(); w != 1129 || ht != 635 {
		t.Fatalf("expected render size 1129x635; got %dx%d", w, ht)
	}

	// the host's bindings survive the frame
	h.dev.BindFramebuffer(graphics.BothFramebuffers, h.host.src.Framebuffer)

	presented, err := h.frame(t, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if presented.Width != 1920 || presented.Height != 1080 {
		t.Fatalf("expected a 1920x1080 frame; got %dx%d", presented.Width, presented.Height)
	}
	want := []renderer.Pass{renderer.PassCapture, renderer.PassCombined, renderer.PassPresent}
	if !samePasses(presented.Passes, want) {
		t.Fatalf("expected passes %v; got %v", want, presented.Passes)
	}
	if fb := h.dev.BoundFramebuffer(graphics.ReadFramebuffer); fb != h.host.src.Framebuffer {
		t.Fatalf("expected read framebuffer %d restored; got %d", h.host.src.Framebuffer, fb)
	}
	if stats := h.proc.Stats(); stats.Frames != 1 || stats.State != Ready {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestInitializeInvalidDimensions(t *testing.T) {
	h := newHarness(t, 64, 64, quality.Balanced, quality.Basic, Options{})
	h.host.width, h.host.height = 16384, 1080
	h.host.maxTex = 8192
	before := h.dev.Allocations()

	if err := h.proc.Initialize(); !errors.Is(err, quality.ErrInvalidDimensions) {
		t.Fatalf("expected ErrInvalidDimensions; got %v", err)
	}
	if after := h.dev.Allocations(); after != before {
		t.Fatalf("expected no allocations; got %d", after-before)
	}
	if h.proc.State() != Uninitialized {
		t.Fatalf("expected Uninitialized; got %s", h.proc.State())
	}
}

func TestInitializeFailureReleasesResources(t *testing.T) {
	tests := []struct {
		name  string
		setup func(dev *graphicstest.Device)
	}{
		{"compile", func(dev *graphicstest.Device) { dev.CompileFailures = 2 }},
		{"link", func(dev *graphicstest.Device) { dev.LinkFailures = 2 }},
		// the harness source is framebuffer 1
		{"incomplete target", func(dev *graphicstest.Device) { dev.IncompleteFramebuffer = 3 }},
		{"self-test", func(dev *graphicstest.Device) { dev.FailDrawsContaining("FsrEasu") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 200, 100, quality.Performance, quality.Basic, Options{})
			before := h.dev.Live()
			tt.setup(h.dev)

			if err := h.proc.Initialize(); err == nil {
				t.Fatal("expected Initialize to fail")
			}
			if h.proc.State() != Uninitialized {
				t.Fatalf("expected Uninitialized; got %s", h.proc.State())
			}
			after := h.dev.Live()
			if after.Textures != before.Textures || after.Framebuffers != before.Framebuffers ||
				after.Shaders != before.Shaders || after.Programs != before.Programs {
				t.Fatalf("expected everything released; before %+v, after %+v", before, after)
			}
			if h.proc.GenerationID() != 0 {
				t.Fatalf("expected no generation; got %d", h.proc.GenerationID())
			}
		})
	}
}

func TestDegradationSteppingDownThenDisabled(t *testing.T) {
	h := newHarness(t, 200, 100, quality.Performance, quality.Temporal, Options{})
	if err := h.proc.Initialize(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	firstGen := h.proc.GenerationID()
	h.dev.FailDrawsContaining("FsrEasu")

	for i := 1; i <= 2; i++ {
		presented, err := h.frame(t, time.Duration(i)*time.Millisecond)
		if err != nil {
			t.Fatalf("frame %d: unexpected error: %v", i, err)
		}
		if !samePasses(presented.Passes, copyThrough) {
			t.Fatalf("frame %d: expected copy-through; got %v", i, presented.Passes)
		}
		if h.proc.State() != Ready || h.cfg.Current().Variant != quality.Temporal {
			t.Fatalf("frame %d: expected Ready on Temporal; got %s on %s", i, h.proc.State(), h.cfg.Current().Variant)
		}
	}

	if _, err := h.frame(t, 3*time.Millisecond); err != nil {
		t.Fatalf("frame 3: unexpected error: %v", err)
	}
	if v := h.cfg.Current().Variant; v != quality.Basic {
		t.Fatalf("expected step-down to Basic; got %s", v)
	}
	stats := h.proc.Stats()
	if stats.Degradations != 1 || stats.Variant != quality.Basic || stats.FrameFailures != 3 {
		t.Fatalf("unexpected stats after step-down %+v", stats)
	}
	if id := h.proc.GenerationID(); id == 0 || id == firstGen {
		t.Fatalf("expected a rebuilt generation; got %d (was %d)", id, firstGen)
	}
	if len(h.host.notices) != 0 {
		t.Fatalf("expected no notice yet; got %v", h.host.notices)
	}

	presented, err := h.frame(t, 4*time.Millisecond)
	if !errors.Is(err, ErrDisabled) {
		t.Fatalf("frame 4: expected ErrDisabled; got %v", err)
	}
	if !samePasses(presented.Passes, copyThrough) {
		t.Fatalf("frame 4: expected the failing frame to be shown; got %v", presented.Passes)
	}
	if h.proc.State() != Disabled {
		t.Fatalf("expected Disabled; got %s", h.proc.State())
	}
	if len(h.host.notices) != 1 || h.host.notices[0] != DisabledNotice {
		t.Fatalf("expected one notice; got %v", h.host.notices)
	}
	if h.cfg.disabled != 1 || h.cfg.Current().Enabled {
		t.Fatalf("expected configuration disabled once; got %d calls, enabled %v", h.cfg.disabled, h.cfg.Current().Enabled)
	}
	if live := h.dev.Live(); live.Programs != 0 || h.proc.GenerationID() != 0 {
		t.Fatalf("expected GPU resources released; %d programs, generation %d", live.Programs, h.proc.GenerationID())
	}

	// later frames and errors do not repeat the notice
	if _, err := h.frame(t, 5*time.Millisecond); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled; got %v", err)
	}
	if err := h.proc.ReportExternalError(errors.New("boom")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats := h.proc.Stats(); len(h.host.notices) != 1 || stats.UserNotified != 1 || stats.Disables != 1 {
		t.Fatalf("expected exactly one notice; got %v, stats %+v", h.host.notices, stats)
	}
}

func TestStageThresholdSkipsCopyThrough(t *testing.T) {
	h := newHarness(t, 200, 100, quality.Performance, quality.Basic, Options{FrameErrorThreshold: 10, StageErrorThreshold: 2})
	if err := h.proc.Initialize(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.dev.FailDrawsContaining("FsrEasu")

	want := [][]renderer.Pass{copyThrough, {renderer.PassDirectBlit}, {renderer.PassDirectBlit}}
	for i, passes := range want {
		presented, err := h.frame(t, 0)
		if err != nil {
			t.Fatalf("frame %d: unexpected error: %v", i, err)
		}
		if !samePasses(presented.Passes, passes) {
			t.Fatalf("frame %d: expected %v; got %v", i, passes, presented.Passes)
		}
	}
	if stats := h.proc.Stats(); stats.CopyThroughs != 1 || stats.DirectBlits != 2 || stats.StageFailures != 3 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if fb := h.dev.BoundFramebuffer(graphics.DrawFramebuffer); fb != graphics.DefaultFramebuffer {
		t.Fatalf("expected the display framebuffer bound; got %d", fb)
	}
}

func TestFailedCopyThroughCountsAsStageFailure(t *testing.T) {
	h := newHarness(t, 200, 100, quality.Performance, quality.Basic, Options{FrameErrorThreshold: 10})
	if err := h.proc.Initialize(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.dev.FailBlits = true

	for i := 0; i < 3; i++ {
		presented, err := h.frame(t, 0)
		if err != nil {
			t.Fatalf("frame %d: unexpected error: %v", i, err)
		}
		if !samePasses(presented.Passes, []renderer.Pass{renderer.PassDirectBlit}) {
			t.Fatalf("frame %d: expected direct blit; got %v", i, presented.Passes)
		}
	}
	stats := h.proc.Stats()
	if stats.FrameFailures != 3 || stats.ConsecutiveStageFailures != 5 || stats.CopyThroughs != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestSuccessResetsCounters(t *testing.T) {
	h := newHarness(t, 200, 100, quality.Performance, quality.Temporal, Options{})
	if err := h.proc.Initialize(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for round := 0; round < 2; round++ {
		h.dev.FailDrawsContaining("rcasFetch")
		for i := 0; i < 2; i++ {
			if _, err := h.frame(t, 0); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		h.dev.FailDrawsContaining("")
		if _, err := h.frame(t, 0); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if stats := h.proc.Stats(); stats.FrameFailures != 0 || stats.ConsecutiveStageFailures != 0 {
			t.Fatalf("expected counters reset; got %+v", stats)
		}
	}
	if v := h.cfg.Current().Variant; v != quality.Temporal {
		t.Fatalf("expected to stay on Temporal; got %s", v)
	}
}

func TestResizeBuffers(t *testing.T) {
	h := newHarness(t, 200, 100, quality.Performance, quality.Basic, Options{})
	if err := h.proc.Initialize(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	id := h.proc.GenerationID()

	for i := 0; i < 2; i++ {
		if err := h.proc.ResizeBuffers(200, 100); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := h.proc.GenerationID(); got != id {
			t.Fatalf("expected generation %d kept; got %d", id, got)
		}
	}

	if err := h.proc.ResizeBuffers(0, 100); !errors.Is(err, quality.ErrInvalidDimensions) {
		t.Fatalf("expected ErrInvalidDimensions; got %v", err)
	}
	if got := h.proc.GenerationID(); got != id {
		t.Fatalf("expected invalid resize to keep generation %d; got %d", id, got)
	}

	if err := h.proc.ResizeBuffers(160, 80); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := h.proc.GenerationID(); got == id {
		t.Fatal("expected a new generation")
	}
	if w, ht := h.proc.RenderDimensions(); w != 80 || ht != 40 {
		t.Fatalf("expected 80x40; got %dx%d", w, ht)
	}
	if live := h.dev.Live(); live.Framebuffers != 3 {
		t.Fatalf("expected the old generation destroyed; %d framebuffers live", live.Framebuffers)
	}
}

func TestFailedResizeRebuildsOnNextFrame(t *testing.T) {
	h := newHarness(t, 200, 100, quality.Performance, quality.Basic, Options{})
	if err := h.proc.Initialize(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// the host limit passes; the device refuses the allocation
	h.host.maxTex = 16384
	h.dev.MaxTexture = 150
	if err := h.proc.ResizeBuffers(180, 90); err == nil {
		t.Fatal("expected resize to fail")
	}
	if h.proc.GenerationID() != 0 {
		t.Fatalf("expected no generation; got %d", h.proc.GenerationID())
	}

	presented, err := h.frame(t, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !samePasses(presented.Passes, []renderer.Pass{renderer.PassDirectBlit}) {
		t.Fatalf("expected direct blit; got %v", presented.Passes)
	}
	if stats := h.proc.Stats(); stats.FrameFailures != 1 {
		t.Fatalf("expected a frame failure; got %+v", stats)
	}

	h.dev.MaxTexture = 16384
	presented, err = h.frame(t, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if presented.Width != 180 || h.proc.GenerationID() == 0 {
		t.Fatalf("expected rebuilt 180 wide frame; got %+v, generation %d", presented, h.proc.GenerationID())
	}
}

func TestThreadViolation(t *testing.T) {
	h := newHarness(t, 200, 100, quality.Performance, quality.Basic, Options{})
	h.host.offThread = true
	before := h.dev.Allocations()

	calls := map[string]func() error{
		"initialize": h.proc.Initialize,
		"cleanup":    h.proc.Cleanup,
		"resize":     func() error { return h.proc.ResizeBuffers(100, 100) },
		"frame":      func() error { _, err := h.frame(t, 0); return err },
		"reenable":   h.proc.RequestReenable,
		"external":   func() error { return h.proc.ReportExternalError(errors.New("x")) },
	}
	for name, call := range calls {
		if err := call(); !errors.Is(err, ErrThreadViolation) {
			t.Fatalf("%s: expected ErrThreadViolation; got %v", name, err)
		}
	}
	if h.dev.Allocations() != before || h.dev.Finishes() != 0 {
		t.Fatal("expected no GPU calls off the render thread")
	}
	if h.proc.State() != Uninitialized || len(h.host.notices) != 0 {
		t.Fatalf("expected state untouched; got %s", h.proc.State())
	}
}

func TestCleanupIsIdempotent(t *testing.T) {
	h := newHarness(t, 200, 100, quality.Performance, quality.Temporal, Options{})
	before := h.dev.Live()
	if err := h.proc.Initialize(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := h.proc.Cleanup(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	after := h.dev.Live()
	if after.Textures != before.Textures || after.Framebuffers != before.Framebuffers || after.Programs != 0 {
		t.Fatalf("expected everything released; before %+v, after %+v", before, after)
	}
	if h.proc.State() != Uninitialized {
		t.Fatalf("expected Uninitialized; got %s", h.proc.State())
	}

	if err := h.proc.Initialize(); err != nil {
		t.Fatalf("expected re-initialize to work; got %v", err)
	}
}

func TestRequestReenable(t *testing.T) {
	h := newHarness(t, 200, 100, quality.Performance, quality.Temporal, Options{})
	if err := h.proc.RequestReenable(); err != nil || h.proc.State() != Uninitialized {
		t.Fatalf("expected re-enable to be ignored; got %v in %s", err, h.proc.State())
	}
	if err := h.proc.Initialize(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := h.proc.ReportExternalError(errors.New("render loop crashed")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.proc.State() != Disabled || len(h.host.notices) != 1 {
		t.Fatalf("expected Disabled with a notice; got %s, %v", h.proc.State(), h.host.notices)
	}
	if err := h.proc.Initialize(); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled; got %v", err)
	}

	if err := h.proc.RequestReenable(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.proc.State() != Ready || h.cfg.Current().Variant != quality.Basic {
		t.Fatalf("expected Ready on Basic; got %s on %s", h.proc.State(), h.cfg.Current().Variant)
	}

	// the configuration still says disabled until the user turns it back on
	if _, err := h.frame(t, 0); !errors.Is(err, ErrNotEnabled) {
		t.Fatalf("expected ErrNotEnabled; got %v", err)
	}
	if err := h.cfg.SetEnabled(true); err != nil {
		t.Fatal(err)
	}
	if _, err := h.frame(t, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := h.proc.ReportExternalError(errors.New("again")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(h.host.notices) != 2 {
		t.Fatalf("expected one notice per disablement; got %v", h.host.notices)
	}
}

func TestConfigurationChangesRebuild(t *testing.T) {
	h := newHarness(t, 200, 100, quality.Performance, quality.Basic, Options{})
	if err := h.proc.Initialize(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	id := h.proc.GenerationID()

	if err := h.cfg.SetQuality(quality.Quality); err != nil {
		t.Fatal(err)
	}
	if _, err := h.frame(t, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w, ht := h.proc.RenderDimensions(); w != 133 || ht != 67 {
		t.Fatalf("expected 133x67; got %dx%d", w, ht)
	}
	if h.proc.GenerationID() == id {
		t.Fatal("expected a new generation after the quality change")
	}

	if err := h.cfg.SetUpscaleVariant(quality.FrameGen); err != nil {
		t.Fatal(err)
	}
	if err := h.cfg.SetFrameGeneration(true, 5); err != nil {
		t.Fatal(err)
	}
	presented, err := h.frame(t, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !presented.Interpolated {
		t.Fatalf("expected an interpolated frame; got passes %v", presented.Passes)
	}

	if err := h.cfg.SetEnabled(false); err != nil {
		t.Fatal(err)
	}
	if _, err := h.frame(t, 0); !errors.Is(err, ErrNotEnabled) {
		t.Fatalf("expected ErrNotEnabled; got %v", err)
	}
	if h.proc.State() != Ready {
		t.Fatalf("expected Ready; got %s", h.proc.State())
	}
}
