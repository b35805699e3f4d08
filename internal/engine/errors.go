package engine

import (
	"errors"
	"fmt"
)

// The engine's error taxonomy. All of these propagate to the immediate
// caller of Process/Validate/construction - the interpreter performs no
// silent recovery or retry, since masking a defect would silently
// mis-simulate. A failed call for one entity never corrupts another
// entity's state; callers treat it as "this entity's run for this module
// is aborted", not a reason to abort unrelated entities.

// ConfigurationError is a construction-time defect in a module definition:
// an unknown state-type discriminant, a malformed transition, or weighted
// options that do not sum to 1.0. Fatal to that module.
type ConfigurationError struct {
	Module  string
	State   string
	Message string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.State != "" {
		return fmt.Sprintf("module %q state %q: %s", e.Module, e.State, e.Message)
	}
	return fmt.Sprintf("module %q: %s", e.Module, e.Message)
}

// EvaluationError is a run-time defect in a module definition that passed
// loose structural validation: an unknown condition kind, comparison
// operator, or time unit. Fatal to that Process call.
type EvaluationError struct {
	Module  string
	Message string
}

// Error implements the error interface.
func (e *EvaluationError) Error() string {
	return fmt.Sprintf("module %q: %s", e.Module, e.Message)
}

// InfiniteLoopError reports that one Process invocation exceeded the
// iteration cap - a cyclic no-advance bug in the module graph.
type InfiniteLoopError struct {
	Module string
	Cap    int
}

// Error implements the error interface.
func (e *InfiniteLoopError) Error() string {
	return fmt.Sprintf("module %q: exceeded %d iterations in one process call; cyclic module graph", e.Module, e.Cap)
}

// UnknownStateError reports a transition naming a state absent from the
// graph. Unreachable if Validate passed before construction.
type UnknownStateError struct {
	Module string
	State  string
}

// Error implements the error interface.
func (e *UnknownStateError) Error() string {
	return fmt.Sprintf("module %q: transition to unknown state %q", e.Module, e.State)
}

// IsConfigurationError reports whether err is a ConfigurationError.
// Uses errors.As to handle wrapped errors.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsEvaluationError reports whether err is an EvaluationError.
func IsEvaluationError(err error) bool {
	var ee *EvaluationError
	return errors.As(err, &ee)
}

// IsInfiniteLoopError reports whether err is an InfiniteLoopError.
func IsInfiniteLoopError(err error) bool {
	var ie *InfiniteLoopError
	return errors.As(err, &ie)
}
