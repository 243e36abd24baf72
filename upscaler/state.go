package upscaler

// State is the lifecycle state of a Processor.
type State int32

const (
	Uninitialized State = iota
	Initializing
	Ready
	Processing
	Degraded
	Disabled
)

var stateNames = [...]string{
	Uninitialized: "uninitialized",
	Initializing:  "initializing",
	Ready:         "ready",
	Processing:    "processing",
	Degraded:      "degraded",
	Disabled:      "disabled",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}
