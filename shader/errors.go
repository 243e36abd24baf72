package shader

import (
	"errors"
	"fmt"

	"github.com/richinsley/gofsr/graphics"
)

// ErrMissingResource is returned when a stage has no source text.
var ErrMissingResource = errors.New("shader: missing shader source")

// CompileError carries the compiler log of a failed shader.
type CompileError struct {
	Stage StageID
	Kind  graphics.ShaderKind
	Log   string
	Err   error
}

func (e *CompileError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("shader: failed to compile %s %s shader: %v", e.Stage, e.Kind, e.Err)
	}
	return fmt.Sprintf("shader: failed to compile %s %s shader: %s", e.Stage, e.Kind, e.Log)
}

func (e *CompileError) Unwrap() error { return e.Err }

// LinkError carries the linker log of a failed program.
type LinkError struct {
	Stage StageID
	Log   string
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("shader: failed to link %s program: %s", e.Stage, e.Log)
}
