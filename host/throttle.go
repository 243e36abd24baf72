package host

import "time"

const (
	DefaultResizeInterval  = 500 * time.Millisecond
	DefaultResizeTolerance = 2
)

// ResizeThrottle limits how often the display size is handed to the upscaler.
// A change that arrives too soon stays pending and is let through by a later
// Observe.
type ResizeThrottle struct {
	MinInterval time.Duration
	// Tolerance is the number of pixels a dimension may drift before it counts
	// as a resize.
	Tolerance int

	width   int
	height  int
	applied time.Time
}

func NewResizeThrottle() *ResizeThrottle {
	return &ResizeThrottle{MinInterval: DefaultResizeInterval, Tolerance: DefaultResizeTolerance}
}

// Reset records width x height as applied at now.
func (t *ResizeThrottle) Reset(width, height int, now time.Time) {
	t.width, t.height = width, height
	t.applied = now
}

// Pending reports whether width x height differs enough from the applied size.
func (t *ResizeThrottle) Pending(width, height int) bool {
	return abs(width-t.width) > t.Tolerance || abs(height-t.height) > t.Tolerance
}

// Observe returns true when width x height should be applied now, and records
// it as applied.
func (t *ResizeThrottle) Observe(width, height int, now time.Time) bool {
	if !t.Pending(width, height) {
		return false
	}
	if !t.applied.IsZero() && now.Sub(t.applied) < t.MinInterval {
		return false
	}
	t.Reset(width, height, now)
	return true
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
