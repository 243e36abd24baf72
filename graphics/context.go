package graphics

// Context defines the interface for the window-system GL context that owns all
// GPU objects.
type Context interface {
	MakeCurrent()
	Shutdown()
	ShouldClose() bool
	EndFrame()
	GetFramebufferSize() (int, int)
	Time() float64
	// IsOwnerThread reports whether the caller runs on the thread the context was
	// created on.
	IsOwnerThread() bool
}
