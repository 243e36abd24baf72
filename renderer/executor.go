package renderer

import (
	"errors"
	"fmt"
	"time"

	"github.com/richinsley/gofsr/config"
	"github.com/richinsley/gofsr/graphics"
	"github.com/richinsley/gofsr/log"
	"github.com/richinsley/gofsr/rendertarget"
	"github.com/richinsley/gofsr/shader"
)

var logger = log.New("renderer")

// History older than this is not blended into the next frame.
const maxHistoryGap = 250 * time.Millisecond

// Executor runs the pass list of a generation. Every pass binds its own
// framebuffer, program and textures; nothing is assumed to carry over.
type Executor struct {
	dev      graphics.Device
	programs *shader.Cache
	quad     *Quad

	historyGen    uint64
	lastTimestamp time.Duration
}

func NewExecutor(dev graphics.Device, programs *shader.Cache, quad *Quad) *Executor {
	return &Executor{dev: dev, programs: programs, quad: quad}
}

// ResetHistory drops the previous frame so the next frame-generate pass does not
// blend it.
func (e *Executor) ResetHistory() {
	e.historyGen = 0
}

// Run executes capture, upscale, sharpen, the optional frame-generate pass and
// present, in that order.
func (e *Executor) Run(gen *rendertarget.Generation, cfg config.Snapshot, frame Frame) (Presented, error) {
	passes := Passes(cfg.Variant, cfg.FrameGeneration)
	if gen.Empty() {
		return Presented{}, &StageError{Stage: passes[0], Cause: errors.New("no render targets")}
	}
	e.drainErrors()

	final := rendertarget.StageOutput
	interpolated := false
	for _, pass := range passes {
		var err error
		switch pass {
		case PassCapture:
			err = e.capture(gen, frame.Source)
		case PassCombined:
			err = e.upscale(gen, shader.StageFSR1, rendertarget.StageOutput, cfg.Sharpness)
		case PassUpscale:
			err = e.upscale(gen, shader.StageEASU, rendertarget.StageUpscaled, cfg.Sharpness)
		case PassSharpen:
			err = e.sharpen(gen, cfg.Sharpness)
		case PassFrameGenerate:
			err = e.frameGenerate(gen, cfg.FrameGenerationStrength, frame.Timestamp)
			final, interpolated = rendertarget.StageUpscaled, true
		case PassPresent:
			err = e.present(gen, final, graphics.FilterNearest)
		}
		if err != nil {
			return Presented{}, &StageError{Stage: pass, Cause: err}
		}
	}

	return Presented{
		Width:        gen.Dims.DisplayWidth,
		Height:       gen.Dims.DisplayHeight,
		Passes:       passes,
		Interpolated: interpolated,
		Timestamp:    frame.Timestamp,
	}, nil
}

// CopyThrough is the reduced pipeline: capture, then stretch the input target
// straight onto the display.
func (e *Executor) CopyThrough(gen *rendertarget.Generation, frame Frame) error {
	if gen.Empty() {
		return &StageError{Stage: PassCopyThrough, Cause: errors.New("no render targets")}
	}
	e.drainErrors()
	if err := e.capture(gen, frame.Source); err != nil {
		return &StageError{Stage: PassCapture, Cause: err}
	}
	if err := e.present(gen, rendertarget.StageInput, graphics.FilterLinear); err != nil {
		return &StageError{Stage: PassCopyThrough, Cause: err}
	}
	return nil
}

// DirectBlit stretches the source straight onto the display without touching any
// render target. The display framebuffer is bound when it returns, whatever
// happened; the error only reports whether the source could be copied.
func (e *Executor) DirectBlit(frame Frame, displayWidth, displayHeight int) error {
	defer e.dev.BindFramebuffer(graphics.BothFramebuffers, graphics.DefaultFramebuffer)
	e.drainErrors()

	src := frame.Source
	e.dev.BindFramebuffer(graphics.DrawFramebuffer, graphics.DefaultFramebuffer)
	if src.Framebuffer == graphics.DefaultFramebuffer {
		// the host drew straight to the display; leave its frame alone
		return nil
	}
	e.dev.Viewport(displayWidth, displayHeight)
	e.dev.ClearColor(0, 0, 0, 1)
	e.dev.Clear(graphics.ColorBuffer)

	if err := e.checkFramebuffer(src.Framebuffer, "source"); err != nil {
		return err
	}
	srcRect := graphics.FullRect(src.Width, src.Height)
	dstRect := graphics.FullRect(displayWidth, displayHeight)
	if srcRect.Empty() || dstRect.Empty() {
		return fmt.Errorf("invalid blit %dx%d -> %dx%d", src.Width, src.Height, displayWidth, displayHeight)
	}
	e.dev.BindFramebuffer(graphics.ReadFramebuffer, src.Framebuffer)
	e.dev.BlitFramebuffer(srcRect, dstRect, graphics.ColorBuffer, graphics.FilterLinear)
	return e.checkError()
}

func (e *Executor) capture(gen *rendertarget.Generation, src Source) error {
	input, ok := gen.Target(rendertarget.StageInput)
	if !ok {
		return errors.New("generation has no input target")
	}
	if src.Width < input.Width || src.Height < input.Height {
		return fmt.Errorf("source %dx%d is smaller than render size %dx%d", src.Width, src.Height, input.Width, input.Height)
	}
	if err := e.checkFramebuffer(src.Framebuffer, "source"); err != nil {
		return err
	}
	if err := e.checkFramebuffer(input.Framebuffer, "input"); err != nil {
		return err
	}

	mask := graphics.ColorBuffer
	if src.HasDepth {
		mask |= graphics.DepthBuffer
	}
	e.dev.BindFramebuffer(graphics.ReadFramebuffer, src.Framebuffer)
	e.dev.BindFramebuffer(graphics.DrawFramebuffer, input.Framebuffer)
	e.dev.BlitFramebuffer(input.Rect(), input.Rect(), mask, graphics.FilterNearest)
	if err := e.checkError(); err != nil {
		return err
	}

	motion, ok := gen.Target(rendertarget.StageMotion)
	if !ok {
		return nil
	}
	e.dev.BindFramebuffer(graphics.DrawFramebuffer, motion.Framebuffer)
	if src.MotionFramebuffer != 0 {
		e.dev.BindFramebuffer(graphics.ReadFramebuffer, src.MotionFramebuffer)
		e.dev.BlitFramebuffer(motion.Rect(), motion.Rect(), graphics.ColorBuffer, graphics.FilterNearest)
	} else {
		e.dev.Viewport(motion.Width, motion.Height)
		e.dev.ClearColor(0, 0, 0, 0)
		e.dev.Clear(graphics.ColorBuffer)
	}
	return e.checkError()
}

func (e *Executor) upscale(gen *rendertarget.Generation, stage shader.StageID, out rendertarget.Stage, sharpness float32) error {
	input, ok := gen.Target(rendertarget.StageInput)
	if !ok {
		return errors.New("generation has no input target")
	}
	target, ok := gen.Target(out)
	if !ok {
		return fmt.Errorf("generation has no %s target", out)
	}
	return e.draw(stage, target, []uint32{input.Color}, func(p *shader.Program) {
		p.Sampler("u_input").SetUnit(0)
		p.Vec2("u_inputSize").Set2f(float32(input.Width), float32(input.Height))
		p.Vec2("u_outputSize").Set2f(float32(target.Width), float32(target.Height))
		p.Float("u_sharpness").Set1f(sharpness)
	})
}

func (e *Executor) sharpen(gen *rendertarget.Generation, sharpness float32) error {
	upscaled, ok := gen.Target(rendertarget.StageUpscaled)
	if !ok {
		return errors.New("generation has no upscaled target")
	}
	output, ok := gen.Target(rendertarget.StageOutput)
	if !ok {
		return errors.New("generation has no output target")
	}
	return e.draw(shader.StageRCAS, output, []uint32{upscaled.Color}, func(p *shader.Program) {
		p.Sampler("u_input").SetUnit(0)
		p.Float("u_sharpness").Set1f(sharpness)
	})
}

func (e *Executor) frameGenerate(gen *rendertarget.Generation, strength int, ts time.Duration) error {
	output, ok1 := gen.Target(rendertarget.StageOutput)
	history, ok2 := gen.Target(rendertarget.StageHistory)
	motion, ok3 := gen.Target(rendertarget.StageMotion)
	scratch, ok4 := gen.Target(rendertarget.StageUpscaled)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return fmt.Errorf("generation stages %s cannot interpolate", gen.Stages())
	}

	weight := e.historyWeight(gen.ID, strength, ts)
	err := e.draw(shader.StageFrameGen, scratch, []uint32{output.Color, history.Color, motion.Color}, func(p *shader.Program) {
		p.Sampler("u_current").SetUnit(0)
		p.Sampler("u_history").SetUnit(1)
		p.Sampler("u_motion").SetUnit(2)
		p.Vec2("u_outputSize").Set2f(float32(scratch.Width), float32(scratch.Height))
		p.Float("u_historyWeight").Set1f(weight)
	})
	if err != nil {
		return err
	}

	e.dev.BindFramebuffer(graphics.ReadFramebuffer, scratch.Framebuffer)
	e.dev.BindFramebuffer(graphics.DrawFramebuffer, history.Framebuffer)
	e.dev.BlitFramebuffer(scratch.Rect(), history.Rect(), graphics.ColorBuffer, graphics.FilterNearest)
	if err := e.checkError(); err != nil {
		return fmt.Errorf("history copy: %w", err)
	}
	e.historyGen = gen.ID
	e.lastTimestamp = ts
	return nil
}

// historyWeight is zero when the history target does not hold a recent frame of
// this generation.
func (e *Executor) historyWeight(genID uint64, strength int, ts time.Duration) float32 {
	if e.historyGen != genID || ts < e.lastTimestamp || ts-e.lastTimestamp > maxHistoryGap {
		return 0
	}
	strength = max(1, min(10, strength))
	return float32(strength) / 10 * 0.5
}

func (e *Executor) present(gen *rendertarget.Generation, stage rendertarget.Stage, filter graphics.Filter) error {
	final, ok := gen.Target(stage)
	if !ok {
		return fmt.Errorf("generation has no %s target", stage)
	}
	if err := e.checkFramebuffer(final.Framebuffer, string(stage)); err != nil {
		return err
	}
	display := graphics.FullRect(gen.Dims.DisplayWidth, gen.Dims.DisplayHeight)

	e.dev.BindFramebuffer(graphics.ReadFramebuffer, final.Framebuffer)
	e.dev.BindFramebuffer(graphics.DrawFramebuffer, graphics.DefaultFramebuffer)
	e.dev.Viewport(display.Width(), display.Height())
	e.dev.ClearColor(0, 0, 0, 1)
	e.dev.Clear(graphics.ColorBuffer)
	e.dev.BlitFramebuffer(final.Rect(), display, graphics.ColorBuffer, filter)
	return e.checkError()
}

func (e *Executor) draw(stage shader.StageID, target *rendertarget.Target, textures []uint32, set func(*shader.Program)) error {
	prog, ok := e.programs.Get(stage)
	if !ok {
		return fmt.Errorf("program %s is not loaded", stage)
	}
	if err := e.checkFramebuffer(target.Framebuffer, string(target.Stage)); err != nil {
		return err
	}

	e.dev.BindFramebuffer(graphics.DrawFramebuffer, target.Framebuffer)
	e.dev.Viewport(target.Width, target.Height)
	prog.Use()
	for unit := len(textures) - 1; unit >= 0; unit-- {
		e.dev.BindTexture(unit, textures[unit])
	}
	set(prog)
	e.dev.DrawQuad(e.quad.VAO, e.quad.Count)
	err := e.checkError()

	for unit := len(textures) - 1; unit >= 0; unit-- {
		e.dev.BindTexture(unit, 0)
	}
	return err
}

func (e *Executor) checkFramebuffer(fbo uint32, what string) error {
	if status := e.dev.FramebufferStatus(fbo); status != graphics.FramebufferComplete {
		return fmt.Errorf("%s framebuffer %d: %s", what, fbo, graphics.FramebufferStatusString(status))
	}
	return nil
}

func (e *Executor) checkError() error {
	if code := e.dev.Error(); code != graphics.NoError {
		e.drainErrors()
		return errors.New(graphics.ErrorString(code))
	}
	return nil
}

// drainErrors clears errors left pending by earlier GL work.
func (e *Executor) drainErrors() {
	for i := 0; i < 16; i++ {
		if e.dev.Error() == graphics.NoError {
			return
		}
	}
}
