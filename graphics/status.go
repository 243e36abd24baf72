package graphics

import "fmt"

// Framebuffer completeness values as reported by glCheckFramebufferStatus.
const (
	FramebufferComplete                    uint32 = 0x8CD5
	FramebufferUndefined                   uint32 = 0x8219
	FramebufferIncompleteAttachment        uint32 = 0x8CD6
	FramebufferIncompleteMissingAttachment uint32 = 0x8CD7
	FramebufferIncompleteDrawBuffer        uint32 = 0x8CDB
	FramebufferIncompleteReadBuffer        uint32 = 0x8CDC
	FramebufferUnsupported                 uint32 = 0x8CDD
	FramebufferIncompleteMultisample       uint32 = 0x8D56
)

// FramebufferStatusString names a completeness status for log and error text.
func FramebufferStatusString(status uint32) string {
	switch status {
	case FramebufferComplete:
		return "GL_FRAMEBUFFER_COMPLETE"
	case FramebufferUndefined:
		return "GL_FRAMEBUFFER_UNDEFINED"
	case FramebufferIncompleteAttachment:
		return "GL_FRAMEBUFFER_INCOMPLETE_ATTACHMENT"
	case FramebufferIncompleteMissingAttachment:
		return "GL_FRAMEBUFFER_INCOMPLETE_MISSING_ATTACHMENT"
	case FramebufferIncompleteDrawBuffer:
		return "GL_FRAMEBUFFER_INCOMPLETE_DRAW_BUFFER"
	case FramebufferIncompleteReadBuffer:
		return "GL_FRAMEBUFFER_INCOMPLETE_READ_BUFFER"
	case FramebufferUnsupported:
		return "GL_FRAMEBUFFER_UNSUPPORTED"
	case FramebufferIncompleteMultisample:
		return "GL_FRAMEBUFFER_INCOMPLETE_MULTISAMPLE"
	}
	return fmt.Sprintf("unknown framebuffer status 0x%x", status)
}

// ErrorString names a glGetError code.
func ErrorString(code uint32) string {
	switch code {
	case NoError:
		return "GL_NO_ERROR"
	case 0x0500:
		return "GL_INVALID_ENUM"
	case 0x0501:
		return "GL_INVALID_VALUE"
	case 0x0502:
		return "GL_INVALID_OPERATION"
	case 0x0505:
		return "GL_OUT_OF_MEMORY"
	case 0x0506:
		return "GL_INVALID_FRAMEBUFFER_OPERATION"
	}
	return fmt.Sprintf("GL error 0x%x", code)
}
