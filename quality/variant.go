package quality

import (
	"fmt"
	"strings"
)

// Variant selects the upscale pipeline. Variants are ordered from the most basic
// (and most stable) to the most advanced.
type Variant int

const (
	Basic Variant = iota
	Temporal
	FrameGen
)

type variantInfo struct {
	name            string
	displayName     string
	description     string
	combined        bool
	frameGeneration bool
}

var variants = [...]variantInfo{
	Basic:    {"fsr1", "FSR 1.0", "Basic upscaling with edge detection", true, false},
	Temporal: {"fsr2", "FSR 2.0", "Temporal upscaling with motion vectors", false, false},
	FrameGen: {"fsr3", "FSR 3.0", "Advanced upscaling with frame generation", false, true},
}

func Variants() []Variant {
	return []Variant{Basic, Temporal, FrameGen}
}

func (v Variant) valid() bool {
	return v >= Basic && v <= FrameGen
}

func (v Variant) info() variantInfo {
	if !v.valid() {
		return variants[Basic]
	}
	return variants[v]
}

func (v Variant) String() string {
	if !v.valid() {
		return fmt.Sprintf("variant(%d)", int(v))
	}
	return variants[v].name
}

func (v Variant) DisplayName() string { return v.info().displayName }

func (v Variant) Description() string { return v.info().description }

// Combined reports whether upscale and sharpen run as one pass.
func (v Variant) Combined() bool { return v.info().combined }

// FrameGeneration reports whether the variant may run the frame-generate pass.
func (v Variant) FrameGeneration() bool { return v.info().frameGeneration }

// MoreAdvancedThan reports whether v sits above o in the degradation order.
func (v Variant) MoreAdvancedThan(o Variant) bool { return v > o }

func (v Variant) Next() Variant {
	if !v.valid() {
		return Basic
	}
	return (v + 1) % Variant(len(variants))
}

func ParseVariant(s string) (Variant, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("_", "", " ", "", ".0", "").Replace(key)
	for i, info := range variants {
		if info.name == key {
			return Variant(i), nil
		}
	}
	return Basic, fmt.Errorf("unknown upscale variant %q", s)
}

func (v Variant) MarshalText() ([]byte, error) {
	if !v.valid() {
		return nil, fmt.Errorf("invalid upscale variant %d", int(v))
	}
	return []byte(v.String()), nil
}

func (v *Variant) UnmarshalText(text []byte) error {
	parsed, err := ParseVariant(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
