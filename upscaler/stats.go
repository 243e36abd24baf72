package upscaler

import "github.com/richinsley/gofsr/quality"

// Stats is a point-in-time copy of the processor counters. It can be read from
// any goroutine.
type Stats struct {
	State   State
	Variant quality.Variant

	Frames        uint64
	StageFailures uint64
	CopyThroughs  uint64
	DirectBlits   uint64
	Degradations  uint64
	Disables      uint64
	UserNotified  uint64

	// consecutive failures since the last good frame
	FrameFailures            int
	ConsecutiveStageFailures int

	RenderWidth   int
	RenderHeight  int
	DisplayWidth  int
	DisplayHeight int
	Generation    uint64
}

func (p *Processor) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

func (p *Processor) record(fn func(*Stats)) {
	p.mu.Lock()
	fn(&p.stats)
	p.mu.Unlock()
}
