package rendertarget

import (
	"fmt"

	"github.com/richinsley/gofsr/graphics"
)

// ResourceError reports a failed allocation or an incomplete framebuffer.
type ResourceError struct {
	Stage  Stage
	Op     string
	Status uint32
	Err    error
}

func (e *ResourceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rendertarget: %s: %s: %v", e.Stage, e.Op, e.Err)
	}
	return fmt.Sprintf("rendertarget: %s: %s: %s", e.Stage, e.Op, graphics.FramebufferStatusString(e.Status))
}

func (e *ResourceError) Unwrap() error { return e.Err }
