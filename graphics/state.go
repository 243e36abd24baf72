package graphics

// State is a snapshot of the bindings the host engine expects to find unchanged
// after the upscaler has run.
type State struct {
	dev      Device
	program  uint32
	texture  uint32
	readFBO  uint32
	drawFBO  uint32
	restored bool
}

// SaveState captures the current program, 2D texture on unit 0 and framebuffer
// bindings. Callers defer Restore on every path.
func SaveState(dev Device) *State {
	return &State{
		dev:     dev,
		program: dev.CurrentProgram(),
		texture: dev.BoundTexture(),
		readFBO: dev.BoundFramebuffer(ReadFramebuffer),
		drawFBO: dev.BoundFramebuffer(DrawFramebuffer),
	}
}

// Restore rebinds the captured state. Only the first call has an effect.
func (s *State) Restore() {
	if s == nil || s.restored {
		return
	}
	s.restored = true
	s.dev.UseProgram(s.program)
	s.dev.BindTexture(0, s.texture)
	s.dev.BindFramebuffer(ReadFramebuffer, s.readFBO)
	s.dev.BindFramebuffer(DrawFramebuffer, s.drawFBO)
}
