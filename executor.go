package loom

import (
	"sync"

	"github.com/ygrebnov/loom/events"
)

// effectAction tells runQuantum what to do after applying one effect:
// continue synchronously within the same quantum, stop and re-enqueue for
// the next quantum (a voluntary or quota-forced yield), or stop without
// re-enqueuing because something else (an await watcher, a suspension
// table entry, a cross-domain reply) will re-enqueue the promise later.
type effectAction int

const (
	actionContinue effectAction = iota
	actionRequeue
	actionSuspend
)

// runDomainExecutor is the body of one domain's single executor goroutine:
// pop the ready queue, drive the popped task through as many synchronous
// scheduling-point effects as its quantum allows, poll external events,
// repeat. A popped task runs until it suspends, completes, or exhausts its
// quantum.
func (s *scheduler) runDomainExecutor(d *domain) {
	defer s.wg.Done()
	for {
		d.drainInboxNonBlocking()
		if d.stopped {
			return
		}

		if err := pollEvents(d); err != nil {
			s.latchFatal(err)
			return
		}

		p, ok := d.popReady()
		if !ok {
			if d.idle() {
				select {
				case m := <-d.inbox:
					d.applyInbox(m)
				case <-s.fatalCh:
					return
				}
			}
			continue
		}

		d.runQuantum(p)
	}
}

// runQuantum drives p's task through up to cfg.Quanta synchronous effects
// before forcing a yield.
func (d *domain) runQuantum(p *Promise) {
	t := p.task
	quota := d.sched.cfg.Quanta
	used := 0

	for {
		if !t.started {
			t.started = true
			t.spawn()
		} else {
			msg := t.takePendingResume()
			if p.isCancelRequested() {
				msg = resumeMsg{cancelled: true}
			}
			t.resumeCh <- msg
		}

		ym := <-t.yieldCh
		used++

		if ym.effect == EffectDone {
			d.finishTask(p, ym.payload.(taskOutcome))
			return
		}

		action, resume := d.applyEffect(p, t, ym)
		switch action {
		case actionSuspend:
			return
		case actionRequeue:
			t.pendingResume = &resume
			d.enqueueReady(p)
			return
		case actionContinue:
			t.pendingResume = &resume
			if used >= quota {
				t.forcedYield = true
				d.sched.recordForcedYield()
				d.enqueueReady(p)
				return
			}
		}
	}
}

// applyEffect performs the side effect named by ym and reports how
// runQuantum should proceed.
func (d *domain) applyEffect(p *Promise, t *Task, ym yieldMsg) (effectAction, resumeMsg) {
	s := d.sched
	switch ym.effect {
	case EffectYield:
		return actionRequeue, resumeMsg{}

	case EffectCall:
		payload := ym.payload.(callPayload)
		child := s.spawnChild(d, p, payload)
		return actionContinue, resumeMsg{value: child}

	case EffectCancel:
		target := ym.payload.(*Promise)
		s.cancelPromise(target)
		return actionContinue, resumeMsg{}

	case EffectOwn:
		payload := ym.payload.(ownPayload)
		h := p.ledger.own(d.ids, payload.value, payload.finally)
		return actionContinue, resumeMsg{value: h}

	case EffectDisown:
		h := ym.payload.(*Handle)
		err := p.ledger.disown(h)
		return actionContinue, resumeMsg{err: err}

	case EffectCheck:
		h := ym.payload.(*Handle)
		err := p.ledger.check(h)
		return actionContinue, resumeMsg{err: err}

	case EffectTransfer:
		h := ym.payload.(*Handle)
		return actionContinue, resumeMsg{err: s.transferHandle(p, h)}

	case EffectMake:
		label, _ := ym.payload.(string)
		_ = label
		return actionContinue, resumeMsg{value: events.SyscallID(d.ids.alloc())}

	case EffectSuspend:
		id := ym.payload.(events.SyscallID)
		d.suspended[id] = &parkedTask{promise: p, task: t}
		return actionSuspend, resumeMsg{}

	case EffectAwait:
		child := ym.payload.(*Promise)
		d.awaitOne(p, t, child)
		return actionSuspend, resumeMsg{}

	case EffectAwaitAll:
		children := ym.payload.([]*Promise)
		if len(children) == 0 {
			return actionContinue, resumeMsg{value: []Result{}}
		}
		d.awaitAll(p, t, children)
		return actionSuspend, resumeMsg{}

	case EffectAwaitFirst:
		children := ym.payload.([]*Promise)
		if action, resume, ok := d.awaitFirstImmediate(children); ok {
			return action, resume
		}
		d.awaitFirst(p, t, children)
		return actionSuspend, resumeMsg{}

	case EffectAwaitOne:
		payload := ym.payload.(awaitOnePayload)
		if action, resume, ok := d.awaitOnePredImmediate(payload); ok {
			return action, resume
		}
		d.awaitOnePred(p, t, payload)
		return actionSuspend, resumeMsg{}
	}
	return actionContinue, resumeMsg{}
}

// deliverResume is called (possibly by a watcher goroutine that does not
// belong to owner) to hand a prepared result back to a suspended task. The
// actual mutation of owner's ready queue happens only inside owner's own
// executor goroutine, via an inboxWake message.
func deliverResume(owner *domain, p *Promise, t *Task, msg resumeMsg) {
	if p.isCancelRequested() {
		msg = resumeMsg{cancelled: true}
	}
	owner.inbox <- inboxMsg{kind: inboxWake, wake: func() {
		t.pendingResume = &msg
		owner.enqueueReady(p)
	}}
	owner.provider.Interrupt()
}

func (d *domain) awaitOne(p *Promise, t *Task, child *Promise) {
	go func() {
		<-child.doneCh
		state, value, err := child.snapshot()
		d.sched.orphans.remove(child.id)
		deliverResume(d, p, t, resumeMsg{value: Result{State: state, Value: value, Err: err}})
	}()
}

func (d *domain) awaitAll(p *Promise, t *Task, children []*Promise) {
	results := make([]Result, len(children))
	var remaining sync.WaitGroup
	remaining.Add(len(children))
	var mu sync.Mutex
	left := len(children)
	for i, c := range children {
		i, c := i, c
		go func() {
			<-c.doneCh
			state, value, err := c.snapshot()
			d.sched.orphans.remove(c.id)
			mu.Lock()
			results[i] = Result{State: state, Value: value, Err: err}
			left--
			done := left == 0
			mu.Unlock()
			if done {
				deliverResume(d, p, t, resumeMsg{value: results, err: reconcileAwaitAllCancellation(children, results)})
			}
		}()
	}
}

// reconcileAwaitAllCancellation elevates a cancelled result to ErrCancelled
// unless the caller itself directly cancelled that exact promise.
func reconcileAwaitAllCancellation(children []*Promise, results []Result) error {
	for i, r := range results {
		if r.State == Cancelled && !children[i].wasSelfCancelled() {
			return newFatal(ErrCancelled, children[i].id, children[i].domain)
		}
	}
	return nil
}

// cancelRemainder cancels every child except the one at winner: an
// await-first that has a winner issues cancel on the remainder.
func cancelRemainder(s *scheduler, children []*Promise, winner int) {
	for i, c := range children {
		if i != winner {
			s.cancelPromise(c)
		}
	}
}

func (d *domain) awaitFirstImmediate(children []*Promise) (effectAction, resumeMsg, bool) {
	winner := -1
	for i, c := range children {
		select {
		case <-c.doneCh:
			if state, _, _ := c.snapshot(); winner < 0 || (state == Resolved && children[winner].State() != Resolved) {
				winner = i
			}
		default:
		}
	}
	if winner < 0 {
		return 0, resumeMsg{}, false
	}
	c := children[winner]
	state, value, err := c.snapshot()
	d.sched.orphans.remove(c.id)
	cancelRemainder(d.sched, children, winner)
	return actionContinue, resumeMsg{value: firstResult{index: winner, result: Result{State: state, Value: value, Err: err}}}, true
}

func (d *domain) awaitFirst(p *Promise, t *Task, children []*Promise) {
	var once sync.Once
	for i, c := range children {
		i, c := i, c
		go func() {
			<-c.doneCh
			once.Do(func() {
				state, value, err := c.snapshot()
				d.sched.orphans.remove(c.id)
				cancelRemainder(d.sched, children, i)
				deliverResume(d, p, t, resumeMsg{value: firstResult{index: i, result: Result{State: state, Value: value, Err: err}}})
			})
		}()
	}
}

func (d *domain) awaitOnePredImmediate(payload awaitOnePayload) (effectAction, resumeMsg, bool) {
	for i, c := range payload.children {
		select {
		case <-c.doneCh:
			state, value, err := c.snapshot()
			if payload.pred(state, value, err) {
				d.sched.orphans.remove(c.id)
				return actionContinue, resumeMsg{value: firstResult{index: i, result: Result{State: state, Value: value, Err: err}}}, true
			}
		default:
		}
	}
	return 0, resumeMsg{}, false
}

func (d *domain) awaitOnePred(p *Promise, t *Task, payload awaitOnePayload) {
	var once sync.Once
	for i, c := range payload.children {
		i, c := i, c
		go func() {
			<-c.doneCh
			state, value, err := c.snapshot()
			if !payload.pred(state, value, err) {
				return
			}
			once.Do(func() {
				d.sched.orphans.remove(c.id)
				deliverResume(d, p, t, resumeMsg{value: firstResult{index: i, result: Result{State: state, Value: value, Err: err}}})
			})
		}()
	}
}

// spawnChild creates promise and task for a Call/CallCC effect, places it on
// the chosen domain's ready queue (locally or via inbox), and registers it
// as a child of parent.
func (s *scheduler) spawnChild(caller *domain, parent *Promise, payload callPayload) *Promise {
	domID, err := s.chooseDomain(caller.id, payload.sameDomain)
	if err != nil {
		s.latchFatal(err)
		domID = caller.id
	}
	child := newPromise(s.domains[domID].ids.allocPromise(), domID, parent)
	child.orphan = s.orphans
	childTask := newTask(child, s.wrapFunc(payload.fn), s)
	child.task = childTask
	parent.addChild(child)
	for _, h := range payload.give {
		parent.ledger.give(h, child.ledger)
	}

	target := s.domains[domID]
	if domID == caller.id {
		target.start(child)
	} else {
		target.inbox <- inboxMsg{kind: inboxStart, promise: child}
		target.provider.Interrupt()
	}
	s.recordSpawn()
	return child
}

// transferHandle performs a Transfer, crossing domains via inbox when the
// parent promise lives elsewhere.
func (s *scheduler) transferHandle(p *Promise, h *Handle) error {
	parent := p.parent
	if parent == nil {
		return newFatal(ErrNotOwner, p.id, p.domain)
	}
	if parent.domain == p.domain {
		return p.ledger.transfer(h, parent.ledger)
	}
	reply := make(chan error, 1)
	target := s.domains[parent.domain]
	target.inbox <- inboxMsg{kind: inboxTransfer, xfer: &transferMsg{handle: h, from: p.ledger, to: parent.ledger, reply: reply}}
	target.provider.Interrupt()
	return <-reply
}

// finishTask applies a task's terminal outcome to its promise: a fatal
// short-circuits the whole Run; ErrStillHasChildren guards I2; otherwise the
// ledger is swept and the promise settles, notifying its parent and, if
// unretrieved, joining the orphan collector.
func (d *domain) finishTask(p *Promise, outcome taskOutcome) {
	s := d.sched

	if outcome.fatal != nil {
		s.latchFatal(outcome.fatal)
		return
	}

	p.mu.Lock()
	hasChildren := len(p.children) > 0
	p.mu.Unlock()
	if hasChildren {
		s.latchFatal(newFatal(ErrStillHasChildren, p.id, p.domain))
		return
	}

	switch {
	case outcome.cancelled:
		p.ledger.sweep()
		p.settle(Cancelled, nil, nil)
		s.recordSettle(Cancelled)
	case outcome.err != nil:
		p.ledger.sweep()
		p.settle(Failed, nil, outcome.err)
		s.recordSettle(Failed)
	default:
		if p.ledger.sweep() {
			s.latchFatal(newFatal(ErrResourceLeak, p.id, p.domain))
			return
		}
		p.settle(Resolved, outcome.value, nil)
		s.recordSettle(Resolved)
	}

	if parent := p.parent; parent != nil {
		parent.onChildTerminal(p.id)
		s.orphans.add(p)
	}
}
