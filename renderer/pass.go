package renderer

import (
	"time"

	"github.com/richinsley/gofsr/quality"
	"github.com/richinsley/gofsr/shader"
)

// Pass names one step of the pipeline.
type Pass string

const (
	PassCapture       Pass = "capture"
	PassUpscale       Pass = "upscale"
	PassSharpen       Pass = "sharpen"
	PassCombined      Pass = "upscale+sharpen"
	PassFrameGenerate Pass = "frame-generate"
	PassPresent       Pass = "present"
	PassCopyThrough   Pass = "copy-through"
	PassDirectBlit    Pass = "direct-blit"
)

// Passes returns the ordered pass list for a variant.
func Passes(variant quality.Variant, frameGeneration bool) []Pass {
	passes := []Pass{PassCapture}
	if variant.Combined() {
		passes = append(passes, PassCombined)
	} else {
		passes = append(passes, PassUpscale, PassSharpen)
	}
	if frameGeneration && variant.FrameGeneration() {
		passes = append(passes, PassFrameGenerate)
	}
	return append(passes, PassPresent)
}

// Programs returns the built-in programs the passes of a variant draw with.
func Programs(variant quality.Variant, frameGeneration bool) []shader.StageID {
	var stages []shader.StageID
	if variant.Combined() {
		stages = append(stages, shader.StageFSR1)
	} else {
		stages = append(stages, shader.StageEASU, shader.StageRCAS)
	}
	if frameGeneration && variant.FrameGeneration() {
		stages = append(stages, shader.StageFrameGen)
	}
	return stages
}

// Source is the host's low-resolution frame.
type Source struct {
	Framebuffer uint32
	Width       int
	Height      int
	HasDepth    bool
	// MotionFramebuffer holds per-pixel motion in UV units, or 0 when the host
	// has none.
	MotionFramebuffer uint32
}

// Frame is one frame request. It is not retained after Run returns.
type Frame struct {
	Source    Source
	Timestamp time.Duration
}

// Presented describes what reached the display.
type Presented struct {
	Width        int
	Height       int
	Passes       []Pass
	Interpolated bool
	Timestamp    time.Duration
}
