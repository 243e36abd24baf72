//go:build !linux && !windows

package graphics

// Thread identity is not available here; every caller counts as the owner and
// the main-thread lock taken when the window system starts is relied on instead.
func CurrentThreadID() uint64 {
	return 0
}
