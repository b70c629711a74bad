package loom

import "errors"

// Namespace prefixes every sentinel error this package defines.
const Namespace = "loom"

var (
	// ErrInvalidConfig is returned by Run when the assembled Config fails
	// validation (a non-positive Domains or Quanta).
	ErrInvalidConfig = errors.New(Namespace + ": invalid configuration")

	// ErrTaskPanicked wraps a recovered panic from inside a task closure.
	ErrTaskPanicked = errors.New(Namespace + ": task execution panicked")

	// ErrUnhandledEffect names the condition of a finaliser re-entering the
	// scheduler; finalisers run outside any task context and cannot perform
	// scheduling-point operations. No operation in this package returns it:
	// a finaliser that calls a Task method is not detected.
	ErrUnhandledEffect = errors.New(Namespace + ": finaliser attempted to re-enter the scheduler")
)
