package orchestrator

import (
	"errors"
	"fmt"
)

var (
	// ErrPlanning marks runs whose plan could not become a valid task graph.
	ErrPlanning = errors.New("planning failed")
	// ErrPersistence marks runs aborted by a store failure.
	ErrPersistence = errors.New("persistence failed")
	// ErrCanceled marks runs stopped between phases by the caller's context.
	ErrCanceled = errors.New("run canceled")
	// ErrTaskExecution marks a single task failure. It never fails a run.
	ErrTaskExecution = errors.New("task execution failed")
)

// RunError is a run-level failure. Kind is one of the sentinels above and
// matches with errors.Is, as does Err.
type RunError struct {
	Kind error
	Msg  string
	Err  error
}

func (e *RunError) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Kind.Error()
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RunError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func planningf(format string, args ...any) error {
	return &RunError{Kind: ErrPlanning, Msg: fmt.Sprintf(format, args...)}
}

func persistenceErr(op string, err error) error {
	return &RunError{Kind: ErrPersistence, Msg: op, Err: err}
}
