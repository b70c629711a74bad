package loom

import (
	"errors"
	"fmt"
)

// Uncatchable fatal conditions. These never appear as a promise's
// failed result; they unwind through the scheduler and are reported to the
// root caller of Run.
var (
	ErrStillHasChildren  = errors.New(Namespace + ": task terminated while its child set is non-empty")
	ErrNotAChild         = errors.New(Namespace + ": promise is not a child of the calling task")
	ErrNotOwner          = errors.New(Namespace + ": resource handle is not owned by the calling task")
	ErrResourceLeak      = errors.New(Namespace + ": task terminated normally with a held resource")
	ErrNoDomainAvailable = errors.New(Namespace + ": no eligible worker domain available")
	ErrCancelled         = errors.New(Namespace + ": awaited promise was cancelled")
)

// FatalError carries promise/domain correlation for an uncatchable
// condition.
type FatalError struct {
	err      error
	promise  PromiseID
	domain   DomainID
	hasPID   bool
	hasDID   bool
}

func newFatal(err error, promise PromiseID, domain DomainID) *FatalError {
	return &FatalError{err: err, promise: promise, domain: domain, hasPID: true, hasDID: true}
}

func (e *FatalError) Error() string { return e.err.Error() }

func (e *FatalError) Unwrap() error { return e.err }

// Promise returns the correlated promise id, if any.
func (e *FatalError) Promise() (PromiseID, bool) { return e.promise, e.hasPID }

// Domain returns the correlated domain id, if any.
func (e *FatalError) Domain() (DomainID, bool) { return e.domain, e.hasDID }

func (e *FatalError) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			_, _ = fmt.Fprintf(s, "fatal(promise=%d,domain=%d): %s", e.promise, e.domain, e.err)
			return
		}
		fallthrough
	case 's':
		_, _ = fmt.Fprint(s, e.Error())
	case 'q':
		_, _ = fmt.Fprintf(s, "%q", e.Error())
	}
}

// IsFatal reports whether err is (or wraps) an uncatchable fatal condition.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
