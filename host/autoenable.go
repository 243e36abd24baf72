package host

import "time"

const (
	DefaultFPSThreshold = 40
	DefaultFPSWindow    = 5 * time.Second
)

// AutoEnabler watches the frame rate and asks for upscaling once when it stays
// below a threshold for a whole window.
type AutoEnabler struct {
	Threshold float64
	Window    time.Duration

	start  time.Time
	frames int
	fired  bool
	last   float64
}

func NewAutoEnabler() *AutoEnabler {
	return &AutoEnabler{Threshold: DefaultFPSThreshold, Window: DefaultFPSWindow}
}

// Tick counts one frame at now. It returns true at most once, at the end of a
// window whose average rate is below Threshold, when autoEnable is set and
// upscaling is not already enabled.
func (a *AutoEnabler) Tick(now time.Time, autoEnable, enabled bool) bool {
	if a.start.IsZero() {
		a.start = now
		return false
	}
	a.frames++
	elapsed := now.Sub(a.start)
	if elapsed < a.Window {
		return false
	}

	a.last = float64(a.frames) / elapsed.Seconds()
	a.start, a.frames = now, 0
	if a.fired || !autoEnable || enabled || a.last >= a.Threshold {
		return false
	}
	a.fired = true
	logger.Noticef("average %.1f fps is below %.0f, enabling upscaling", a.last, a.Threshold)
	return true
}

// FPS returns the average of the last completed window.
func (a *AutoEnabler) FPS() float64 { return a.last }
