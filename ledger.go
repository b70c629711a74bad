package loom

import (
	"strconv"
	"sync"
)

// ResourceState is the lifecycle state of a resource handle.
type ResourceState int

const (
	ResourceHeld ResourceState = iota
	ResourceDisowned
	ResourceTransferred
)

func (s ResourceState) String() string {
	switch s {
	case ResourceHeld:
		return "held"
	case ResourceDisowned:
		return "disowned"
	case ResourceTransferred:
		return "transferred"
	default:
		return "unknown"
	}
}

// Handle is a resource handle: a unique id, the value it wraps, an owning
// promise, a finaliser, and a state.
type Handle struct {
	id      ResourceID
	value   any
	finally func(any)
	owner   PromiseID
	state   ResourceState
}

// ID returns the handle's unique id.
func (h *Handle) ID() ResourceID { return h.id }

// Value returns the wrapped value.
func (h *Handle) Value() any { return h.value }

// PP is a diagnostic pretty-printer: it never affects scheduling.
func (h *Handle) PP() string {
	return fmtHandle(h)
}

// ledger is a per-task stack of owned resources, keyed by acquisition order,
// with finalisers swept in reverse order, one ordered finaliser stack per
// promise.
type ledger struct {
	mu      sync.Mutex
	owner   PromiseID
	entries []*Handle
}

func newLedger(owner PromiseID) *ledger {
	return &ledger{owner: owner}
}

// own appends a new held resource to the ledger and returns its handle.
func (l *ledger) own(ids *idAllocator, value any, finally func(any)) *Handle {
	h := &Handle{
		id:      ids.allocResource(),
		value:   value,
		finally: finally,
		owner:   l.owner,
		state:   ResourceHeld,
	}
	l.mu.Lock()
	l.entries = append(l.entries, h)
	l.mu.Unlock()
	return h
}

// disown marks h as disowned without running its finaliser. It fails with
// ErrNotOwner if the calling task does not own h.
func (l *ledger) disown(h *Handle) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if h.owner != l.owner {
		return newFatal(ErrNotOwner, PromiseID(h.owner), 0)
	}
	h.state = ResourceDisowned
	return nil
}

// check fails with ErrNotOwner if h is not owned by the calling task.
func (l *ledger) check(h *Handle) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if h.owner != l.owner || h.state == ResourceTransferred {
		return newFatal(ErrNotOwner, PromiseID(h.owner), 0)
	}
	return nil
}

// transfer reassigns h to parent's ledger: the entry is duplicated there and
// a transferred stub is kept in l so Check still reports not-owner instead
// of unknown-handle.
func (l *ledger) transfer(h *Handle, parent *ledger) error {
	l.mu.Lock()
	if h.owner != l.owner {
		l.mu.Unlock()
		return newFatal(ErrNotOwner, PromiseID(h.owner), 0)
	}
	h.state = ResourceTransferred
	l.mu.Unlock()

	dup := &Handle{
		id:      h.id,
		value:   h.value,
		finally: h.finally,
		owner:   parent.owner,
		state:   ResourceHeld,
	}
	parent.mu.Lock()
	parent.entries = append(parent.entries, dup)
	parent.mu.Unlock()
	return nil
}

// give duplicates h into recipient's ledger at spawn time: both giver and
// receiver must independently disown.
func (l *ledger) give(h *Handle, recipient *ledger) {
	dup := &Handle{
		id:      h.id,
		value:   h.value,
		finally: h.finally,
		owner:   recipient.owner,
		state:   ResourceHeld,
	}
	recipient.mu.Lock()
	recipient.entries = append(recipient.entries, dup)
	recipient.mu.Unlock()
}

// sweep runs finalisers for every still-held entry, in reverse acquisition
// order, and returns whether any entry was still held (a resource leak when
// the promise is otherwise terminating normally).
func (l *ledger) sweep() (leaked bool) {
	l.mu.Lock()
	entries := l.entries
	l.entries = nil
	l.mu.Unlock()

	for i := len(entries) - 1; i >= 0; i-- {
		h := entries[i]
		if h.state != ResourceHeld {
			continue
		}
		leaked = true
		if h.finally != nil {
			h.finally(h.value)
		}
		h.state = ResourceDisowned
	}
	return leaked
}

// settled reports whether every entry has left the held state, i.e. this
// ledger would not trigger a resource-leak fatal if swept now.
func (l *ledger) settled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, h := range l.entries {
		if h.state == ResourceHeld {
			return false
		}
	}
	return true
}

func fmtHandle(h *Handle) string {
	return "resource#" + strconv.FormatUint(uint64(h.id), 10) + "(" + h.state.String() + ")"
}
