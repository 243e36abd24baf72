package upscaler

import "errors"

var (
	// ErrThreadViolation is returned when a GPU operation is requested off the
	// thread that owns the graphics context. Nothing is queued; the caller
	// redelivers the request from the render thread.
	ErrThreadViolation = errors.New("upscaler: called off the render thread")
	ErrNotReady        = errors.New("upscaler: not initialized")
	ErrNotEnabled      = errors.New("upscaler: disabled in configuration")
	ErrDisabled        = errors.New("upscaler: disabled after errors")
)

// DisabledNotice is the message shown to the user when upscaling turns itself off.
const DisabledNotice = "[gofsr] Upscaling has been disabled due to errors. Press F10 to try again."
