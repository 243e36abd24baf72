package rendertarget

import (
	"strings"

	"github.com/richinsley/gofsr/graphics"
	"github.com/richinsley/gofsr/quality"
)

// Stage names a render target within a generation.
type Stage string

const (
	StageInput    Stage = "input"
	StageUpscaled Stage = "upscaled"
	StageOutput   Stage = "output"
	StageHistory  Stage = "history"
	StageMotion   Stage = "motion-vector"
)

// stageOrder is the allocation order of a generation.
var stageOrder = []Stage{StageInput, StageMotion, StageUpscaled, StageOutput, StageHistory}

type stageSpec struct {
	renderRes bool
	color     graphics.TextureFormat
	depth     bool
}

var stageSpecs = map[Stage]stageSpec{
	StageInput:    {renderRes: true, color: graphics.FormatRGBA16F, depth: true},
	StageMotion:   {renderRes: true, color: graphics.FormatRG16F},
	StageUpscaled: {color: graphics.FormatRGBA16F},
	StageOutput:   {color: graphics.FormatRGBA16F},
	StageHistory:  {color: graphics.FormatRGBA16F},
}

// StageSet is a set of stages.
type StageSet uint8

func bit(s Stage) StageSet {
	for i, stage := range stageOrder {
		if stage == s {
			return 1 << i
		}
	}
	return 0
}

func NewStageSet(stages ...Stage) StageSet {
	var set StageSet
	for _, s := range stages {
		set |= bit(s)
	}
	return set
}

func (s StageSet) Has(stage Stage) bool {
	b := bit(stage)
	return b != 0 && s&b != 0
}

func (s StageSet) With(stages ...Stage) StageSet {
	return s | NewStageSet(stages...)
}

// Stages lists the members in allocation order.
func (s StageSet) Stages() []Stage {
	var out []Stage
	for _, stage := range stageOrder {
		if s.Has(stage) {
			out = append(out, stage)
		}
	}
	return out
}

func (s StageSet) String() string {
	names := make([]string, 0, len(stageOrder))
	for _, stage := range s.Stages() {
		names = append(names, string(stage))
	}
	return "{" + strings.Join(names, ",") + "}"
}

// StagesFor returns the targets the pipeline of a variant needs. History and
// motion vectors only exist when frame generation runs; the upscaled target
// doubles as scratch for the frame-generate pass.
func StagesFor(variant quality.Variant, frameGeneration bool) StageSet {
	set := NewStageSet(StageInput, StageOutput)
	if !variant.Combined() {
		set = set.With(StageUpscaled)
	}
	if frameGeneration && variant.FrameGeneration() {
		set = set.With(StageUpscaled, StageHistory, StageMotion)
	}
	return set
}
