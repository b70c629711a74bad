package loom

import (
	"strconv"
	"sync"
)

// ResultState is a promise's settlement state.
type ResultState int

const (
	Pending ResultState = iota
	Resolved
	Failed
	Cancelled
)

func (s ResultState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Resolved:
		return "resolved"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Promise is the observable handle of a task's lifecycle and result.
//
// Every field below is guarded by mu. A "mutated only by the owning domain"
// discipline is realized here by a mutex rather than by single-goroutine-only
// access: cancel-request and enqueue-for-start already cross domains via
// each domain's inbox (domain.go), and the mutex is the narrow safety net
// around the handful of fields (result, children, cancelRequested) that a
// cross-domain Await/Cancel call also touches directly through doneCh.
type Promise struct {
	id     PromiseID
	domain DomainID
	parent *Promise // nil for the root promise

	mu              sync.Mutex
	children        map[PromiseID]*Promise
	state           ResultState
	value           any
	err             error
	settling        bool
	terminal        bool
	cancelRequested bool
	selfCancelled   bool // Cancel was called directly on this promise by its own parent

	ledger *ledger
	orphan *OrphanCollector

	doneCh chan struct{} // closed exactly once, when terminal

	task *Task // nil once terminal
}

func newPromise(id PromiseID, domain DomainID, parent *Promise) *Promise {
	p := &Promise{
		id:       id,
		domain:   domain,
		parent:   parent,
		children: make(map[PromiseID]*Promise),
		doneCh:   make(chan struct{}),
	}
	p.ledger = newLedger(id)
	return p
}

// ID returns the promise's id.
func (p *Promise) ID() PromiseID { return p.id }

// Domain returns the owning domain id.
func (p *Promise) Domain() DomainID { return p.domain }

// State returns the current settlement state.
func (p *Promise) State() ResultState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// isTerminalLocked reports I1: non-pending result AND empty child set.
func (p *Promise) isTerminalLocked() bool {
	return p.state != Pending && len(p.children) == 0
}

// addChild registers c under p, enforcing I2 (parent can't settle while a
// child is outstanding) implicitly: children are only removed once terminal.
func (p *Promise) addChild(c *Promise) {
	p.mu.Lock()
	p.children[c.id] = c
	p.mu.Unlock()
}

func (p *Promise) removeChild(id PromiseID) {
	p.mu.Lock()
	delete(p.children, id)
	p.mu.Unlock()
}

// settle assigns the result slot if still pending (cancellation always wins
// retroactively) and attempts to finalize: a promise only
// becomes terminal once its children have drained.
func (p *Promise) settle(state ResultState, value any, err error) {
	p.mu.Lock()
	if p.terminal {
		p.mu.Unlock()
		return
	}
	if p.cancelRequested {
		state, value, err = Cancelled, nil, nil
	}
	if state == Cancelled || p.state == Pending {
		p.state = state
		p.value = value
		p.err = err
	}
	p.maybeFinalizeLocked()
	p.mu.Unlock()
}

// maybeFinalizeLocked must be called with mu held. It marks the promise
// terminal and closes doneCh exactly once, the moment I1 is satisfied.
func (p *Promise) maybeFinalizeLocked() {
	if p.terminal {
		return
	}
	if !p.isTerminalLocked() {
		p.settling = true
		return
	}
	p.terminal = true
	p.settling = false
	p.task = nil
	close(p.doneCh)
}

// onChildTerminal is invoked by a child when it becomes terminal, giving the
// parent a chance to drop it from the child set and re-check I1.
func (p *Promise) onChildTerminal(childID PromiseID) {
	p.mu.Lock()
	delete(p.children, childID)
	p.maybeFinalizeLocked()
	p.mu.Unlock()
}

// snapshot returns the settled (state, value, err) without blocking; callers
// must only use this once doneCh is closed.
func (p *Promise) snapshot() (ResultState, any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state, p.value, p.err
}

// markCancelRequested marks p cancel-requested, reporting whether this call
// is the one that newly set the flag (so callers deliver the cancellation
// to p's domain exactly once) and p's current children, for recursive
// propagation to descendants. direct is true only for the promise Cancel
// was actually called on, not for descendants reached through propagation
// (open question: distinguishing a caller-initiated cancellation from a
// propagated one).
//
// If p already settled and went terminal before this cancellation arrived,
// there is no further scheduling step left for p on its owning domain to
// write cancelled into the result slot, so it happens here instead:
// cancellation overrides a prior resolved/failed result retroactively.
func (p *Promise) markCancelRequested(direct bool) (newly bool, children []*Promise) {
	p.mu.Lock()
	newly = !p.cancelRequested
	p.cancelRequested = true
	if direct {
		p.selfCancelled = true
	}
	if p.terminal && p.state != Cancelled {
		p.state = Cancelled
		p.value = nil
		p.err = nil
	}
	children = make([]*Promise, 0, len(p.children))
	for _, c := range p.children {
		children = append(children, c)
	}
	p.mu.Unlock()
	return newly, children
}

func (p *Promise) isCancelRequested() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancelRequested
}

func (p *Promise) wasSelfCancelled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.selfCancelled
}

// fmtPromise is the diagnostic pretty-printer backing Task.PP/Handle.PP:
// it never affects scheduling.
func fmtPromise(p *Promise) string {
	p.mu.Lock()
	state := p.state
	p.mu.Unlock()
	return "promise#" + strconv.FormatUint(uint64(p.id), 10) +
		"@domain" + strconv.FormatUint(uint64(p.domain), 10) +
		"(" + state.String() + ")"
}
