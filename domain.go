package loom

import (
	"github.com/ygrebnov/loom/events"
)

// parkedTask is a task suspended on a user-defined suspension point (a
// Make/Suspend pair), waiting for its domain's events.Provider to deliver a
// matching ContinueRecord.
type parkedTask struct {
	promise *Promise
	task    *Task
}

// inboxKind is the kind of cross-domain message a domain's inbox accepts.
// Every cross-domain mutation of a promise or ledger not owned by the
// receiving domain's own goroutine is modeled as exactly one of these four
// kinds, matching the rule that a domain's state is mutated only by its own
// owning goroutine: the owning domain applies the message to its own state
// instead of the sender reaching across.
type inboxKind int

const (
	inboxStart inboxKind = iota
	inboxCancel
	inboxTransfer
	inboxWake
)

// inboxMsg is a single cross-domain message, single-producer-per-sender,
// single-consumer-by-owner (the domain that reads its own inbox channel).
type inboxMsg struct {
	kind    inboxKind
	promise *Promise      // inboxStart / inboxCancel: the affected promise
	xfer    *transferMsg  // inboxTransfer
	wake    func()        // inboxWake: run on the owning domain's goroutine
}

// transferMsg carries a cross-domain resource Transfer request and a
// reply channel for the result, since Transfer is synchronous from the
// caller's point of view even when it crosses domains.
type transferMsg struct {
	handle *Handle
	from   *ledger
	to     *ledger
	reply  chan error
}

// domain is one scheduling domain: a single executor goroutine owning a
// FIFO ready queue, a suspension table, and an inbox for cross-domain
// messages. Many domains cooperate, each single-threaded, to form the
// whole scheduler.
type domain struct {
	id    DomainID
	sched *scheduler

	ready []*Promise // FIFO of promises whose task is runnable right now

	suspended map[events.SyscallID]*parkedTask

	inbox chan inboxMsg

	provider events.Provider

	// ids mints promise, resource, and syscall ids for this domain only,
	// from one shared counter: uniqueness is per-domain, not global, so two
	// domains that have made the same number of allocations mint the same
	// next id (the first Make on a domain hosting one promise mints id 2 on
	// every domain).
	ids *idAllocator

	stopped bool
}

func newDomain(id DomainID, sched *scheduler, provider events.Provider) *domain {
	return &domain{
		id:        id,
		sched:     sched,
		suspended: make(map[events.SyscallID]*parkedTask),
		inbox:     make(chan inboxMsg, 64),
		provider:  provider,
		ids:       &idAllocator{},
	}
}

func (d *domain) enqueueReady(p *Promise) {
	d.ready = append(d.ready, p)
}

// popReady removes and returns the head of the ready queue, FIFO.
func (d *domain) popReady() (*Promise, bool) {
	if len(d.ready) == 0 {
		return nil, false
	}
	p := d.ready[0]
	d.ready = d.ready[1:]
	return p, true
}

// start enqueues a freshly created promise's task for its first run. Called
// either directly (same-domain Call) or via an inboxStart message
// (cross-domain Call/Parallel).
func (d *domain) start(p *Promise) {
	d.enqueueReady(p)
}

// requestTransfer applies a cross-domain Transfer on the parent's domain,
// where it arrives as an inboxTransfer message, and replies with the result.
func (d *domain) requestTransfer(msg *transferMsg) {
	msg.reply <- msg.from.transfer(msg.handle, msg.to)
}

// drainInboxNonBlocking applies every inbox message currently queued without
// blocking, used at the top of each executor loop iteration.
func (d *domain) drainInboxNonBlocking() {
	for {
		select {
		case m := <-d.inbox:
			d.applyInbox(m)
		default:
			return
		}
	}
}

func (d *domain) applyInbox(m inboxMsg) {
	switch m.kind {
	case inboxStart:
		d.start(m.promise)
	case inboxCancel:
		d.sched.applyCancel(d, m.promise)
	case inboxTransfer:
		d.requestTransfer(m.xfer)
	case inboxWake:
		if m.wake != nil {
			m.wake()
		}
	}
}

// pendingSyscallIDs lists every SyscallID currently parked, for Provider.Select.
func (d *domain) pendingSyscallIDs() []events.SyscallID {
	ids := make([]events.SyscallID, 0, len(d.suspended))
	for id := range d.suspended {
		ids = append(ids, id)
	}
	return ids
}

func (d *domain) isPending(id events.SyscallID) bool {
	_, ok := d.suspended[id]
	return ok
}

func (d *domain) idle() bool {
	return len(d.ready) == 0 && len(d.suspended) == 0
}
