package quality

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidDimensions is returned for non-positive sizes, render sizes larger than
// the display, or sizes above the device texture limit.
var ErrInvalidDimensions = errors.New("quality: invalid dimensions")

// Dimensions pairs the low-resolution render size with the display size.
type Dimensions struct {
	RenderWidth   int
	RenderHeight  int
	DisplayWidth  int
	DisplayHeight int
}

// Compute derives render dimensions from the display size and the mode scale,
// rounding to the nearest pixel and never going below one pixel.
func Compute(displayWidth, displayHeight int, mode Mode) Dimensions {
	scale := mode.Scale()
	return Dimensions{
		RenderWidth:   scaleDown(displayWidth, scale),
		RenderHeight:  scaleDown(displayHeight, scale),
		DisplayWidth:  displayWidth,
		DisplayHeight: displayHeight,
	}
}

func scaleDown(size int, scale float64) int {
	if size <= 0 {
		return size
	}
	return max(1, int(math.Round(float64(size)/scale)))
}

// Validate checks the ordering render <= display <= maxTextureSize.
func (d Dimensions) Validate(maxTextureSize int) error {
	switch {
	case d.RenderWidth <= 0 || d.RenderHeight <= 0 || d.DisplayWidth <= 0 || d.DisplayHeight <= 0:
		return fmt.Errorf("%w: %s has a non-positive size", ErrInvalidDimensions, d)
	case d.RenderWidth > d.DisplayWidth || d.RenderHeight > d.DisplayHeight:
		return fmt.Errorf("%w: %s renders above display size", ErrInvalidDimensions, d)
	case maxTextureSize > 0 && (d.DisplayWidth > maxTextureSize || d.DisplayHeight > maxTextureSize):
		return fmt.Errorf("%w: %s exceeds max texture size %d", ErrInvalidDimensions, d, maxTextureSize)
	}
	return nil
}

func (d Dimensions) Equal(o Dimensions) bool {
	return d == o
}

func (d Dimensions) String() string {
	return fmt.Sprintf("%dx%d->%dx%d", d.RenderWidth, d.RenderHeight, d.DisplayWidth, d.DisplayHeight)
}
