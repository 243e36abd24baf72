package graphics

import "golang.org/x/sys/unix"

// CurrentThreadID identifies the OS thread the caller runs on.
func CurrentThreadID() uint64 {
	return uint64(unix.Gettid())
}
