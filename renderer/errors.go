package renderer

import "fmt"

// StageError reports the pass that failed. No later pass runs after it.
type StageError struct {
	Stage Pass
	Cause error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("renderer: %s pass failed: %v", e.Stage, e.Cause)
}

func (e *StageError) Unwrap() error { return e.Cause }
