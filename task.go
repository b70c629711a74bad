package loom

import "github.com/ygrebnov/loom/events"

// Func is a task body. It runs on its own goroutine (the "stackful
// coroutine") and receives the Task handle through which it performs every
// scheduling-point operation. A single signature covers every task
// regardless of result type, since the parent/child promise tree mixes
// arbitrary result types.
type Func func(t *Task) (any, error)

// Effect names a scheduling-point operation a task hands to its domain's
// executor through a repeated handoff protocol.
type Effect int

const (
	EffectYield Effect = iota
	EffectAwait
	EffectAwaitAll
	EffectAwaitFirst
	EffectAwaitOne
	EffectCall
	EffectCancel
	EffectMake
	EffectSuspend
	EffectOwn
	EffectDisown
	EffectTransfer
	EffectCheck
	EffectDone // task body returned, panicked, or was cancelled; terminal
)

// yieldMsg is sent task-goroutine -> executor-goroutine at every checkpoint.
type yieldMsg struct {
	effect  Effect
	payload any
}

// resumeMsg is sent executor-goroutine -> task-goroutine to hand control
// back, carrying the checkpoint's result. cancelled is set by the executor
// instead of value/err when the calling promise was cancel-requested by the
// time it was resumed: a task only observes its own cancellation at a
// scheduling point.
type resumeMsg struct {
	value     any
	err       error
	cancelled bool
}

// fatalSignal is panicked by raiseFatal and recovered only by runBody, to
// unwind a task's goroutine straight past its own logic, realising "unwinds
// through the scheduler" for a fatal condition.
type fatalSignal struct {
	err *FatalError
}

// cancelledSignal is panicked by checkpoint when a resume carries
// cancelled=true, unwinding the task goroutine so runBody can settle its
// promise as an ordinary Cancelled result (catchable, not a FatalError).
type cancelledSignal struct{}

// Task is the live execution record backing a non-terminal Promise: the
// goroutine, its rendezvous channels with the owning domain's executor, and
// per-task quota bookkeeping.
type Task struct {
	promise *Promise
	fn      Func
	sched   *scheduler

	yieldCh  chan yieldMsg
	resumeCh chan resumeMsg

	started       bool
	pendingResume *resumeMsg
	quantumUsed   int
	forcedYield   bool // set by the executor when the last resume was quota-forced
}

func newTask(p *Promise, fn Func, sched *scheduler) *Task {
	return &Task{
		promise:  p,
		fn:       fn,
		sched:    sched,
		yieldCh:  make(chan yieldMsg),
		resumeCh: make(chan resumeMsg),
	}
}

// takePendingResume returns and clears any resume message prepared for this
// task's next quantum, defaulting to an empty (no error, no cancel) resume.
func (t *Task) takePendingResume() resumeMsg {
	if t.pendingResume == nil {
		return resumeMsg{}
	}
	msg := *t.pendingResume
	t.pendingResume = nil
	return msg
}

// taskOutcome is what runBody reports once a task body returns, panics, is
// cancelled, or raises a fatal condition.
type taskOutcome struct {
	value     any
	err       error
	cancelled bool
	fatal     *FatalError
}

// spawn starts the task body on its own goroutine. Its terminal outcome is
// delivered through yieldCh as an EffectDone message, unifying task
// completion with every other scheduling point so the executor only ever
// needs to read one channel: a three-way outcome of result, cancelled, or
// fatal, recovered from a panic the same way a body's own panic is.
func (t *Task) spawn() {
	go t.runBody()
}

func (t *Task) runBody() {
	var outcome taskOutcome
	outcome.value, outcome.err = func() (v any, e error) {
		defer func() {
			if r := recover(); r != nil {
				switch sig := r.(type) {
				case fatalSignal:
					outcome.fatal = sig.err
				case cancelledSignal:
					outcome.cancelled = true
				default:
					e = newTaskPanicError(r)
				}
			}
		}()
		return t.fn(t)
	}()
	t.yieldCh <- yieldMsg{effect: EffectDone, payload: outcome}
}

func newTaskPanicError(recovered any) error {
	msg := ErrTaskPanicked.Error()
	if err, ok := recovered.(error); ok {
		msg += ": " + err.Error()
	}
	return &panicError{msg: msg, recovered: recovered}
}

type panicError struct {
	msg       string
	recovered any
}

func (e *panicError) Error() string { return e.msg }
func (e *panicError) Unwrap() error { return ErrTaskPanicked }

// checkpoint hands effect/payload to the domain executor and blocks until
// resumed. Every operation on Task bottoms out here. A resume carrying
// cancelled=true means the executor observed the calling promise was
// cancel-requested instead of performing the effect: checkpoint
// unwinds the task goroutine immediately rather than returning normally,
// so a cancelled task can never act on a stale effect result. A resume whose
// error is a FatalError unwinds the same way, as a fatal condition, instead
// of being returned to the task as an ordinary error.
func (t *Task) checkpoint(effect Effect, payload any) (any, error) {
	t.yieldCh <- yieldMsg{effect: effect, payload: payload}
	r := <-t.resumeCh
	if r.cancelled {
		panic(cancelledSignal{})
	}
	if fe, ok := r.err.(*FatalError); ok {
		panic(fatalSignal{err: fe})
	}
	return r.value, r.err
}

// raiseFatal aborts the task goroutine immediately via panic/recover,
// bypassing any remaining task logic, to realise "unwinds through the
// scheduler" for fatal conditions.
func raiseFatal(err error, promise PromiseID, domain DomainID) {
	fe, ok := err.(*FatalError)
	if !ok {
		fe = newFatal(err, promise, domain)
	}
	panic(fatalSignal{err: fe})
}

// Self returns the calling task's own promise.
func (t *Task) Self() *Promise { return t.promise }

// UID returns the calling task's promise id, named separately from Self
// since call sites frequently want only the id for logging/PP.
func (t *Task) UID() PromiseID { return t.promise.id }

// PP is a diagnostic pretty-printer for the calling task's promise.
func (t *Task) PP() string { return fmtPromise(t.promise) }

// Orphans lists every settled-but-unretrieved promise across the whole Run;
// not restricted to the calling task's own descendants.
func (t *Task) Orphans() []*Promise { return t.sched.orphans.Orphans() }

// Care non-blockingly pops the oldest orphan and its settled result; ok is
// false when there is no more work to care for.
func (t *Task) Care() (Result, bool) { return t.sched.orphans.Care() }

// Stats reports point-in-time scheduler counters, backed by the
// kept metrics package.
func (t *Task) Stats() Stats { return t.sched.stats() }

// Logger returns the scheduler's structured logger, scoped for use inside
// task bodies that want to emit their own log lines.
func (t *Task) Logger() Logger { return t.sched.logger }

// Yield voluntarily relinquishes the executor for one quantum.
func (t *Task) Yield() {
	t.checkpoint(EffectYield, nil)
}

// Result is the settled (state, value, err) of one awaited promise.
type Result struct {
	State ResultState
	Value any
	Err   error
}

func (t *Task) requireChild(c *Promise) {
	if c.parent != t.promise {
		raiseFatal(ErrNotAChild, c.id, c.domain)
	}
}

// Await suspends until child settles, returning its result. It
// fails with ErrNotAChild if child is not a child of the calling task.
func (t *Task) Await(child *Promise) (ResultState, any, error) {
	t.requireChild(child)
	v, err := t.checkpoint(EffectAwait, child)
	if err != nil {
		return Failed, nil, err
	}
	res := v.(Result)
	return res.State, res.Value, res.Err
}

// AwaitExn suspends until child settles like Await, but collapses Failed and
// Cancelled into a single returned error instead of a tri-state ResultState,
// for callers that want ordinary Go error handling rather than matching on
// state.
func (t *Task) AwaitExn(child *Promise) (any, error) {
	state, value, err := t.Await(child)
	switch state {
	case Failed:
		return nil, err
	case Cancelled:
		return nil, ErrCancelled
	default:
		return value, nil
	}
}

// AwaitAll suspends until every child has settled, returning their results
// in argument order. A cancelled result not directly attributable to
// the calling task's own prior Cancel of that same promise is elevated to
// the ErrCancelled fatal condition, which aborts the Run.
func (t *Task) AwaitAll(children ...*Promise) ([]Result, error) {
	for _, c := range children {
		t.requireChild(c)
	}
	v, err := t.checkpoint(EffectAwaitAll, children)
	if err != nil {
		return nil, err
	}
	return v.([]Result), nil
}

// firstResult is the (index, result) pair returned by AwaitFirst/AwaitOne.
type firstResult struct {
	index  int
	result Result
}

// AwaitFirst suspends until the first of children settles and returns its
// index and result, cancelling the others. Among children already settled
// when AwaitFirst is called, the earliest Resolved one in list order wins,
// else the earliest settled one in list order; otherwise the first child
// observed to settle wins.
func (t *Task) AwaitFirst(children ...*Promise) (int, ResultState, any, error) {
	for _, c := range children {
		t.requireChild(c)
	}
	v, err := t.checkpoint(EffectAwaitFirst, children)
	if err != nil {
		return -1, Failed, nil, err
	}
	r := v.(firstResult)
	return r.index, r.result.State, r.result.Value, r.result.Err
}

// awaitOnePayload pairs the candidate children with the predicate AwaitOne
// filters settlement on.
type awaitOnePayload struct {
	children []*Promise
	pred     func(ResultState, any, error) bool
}

// AwaitOne is AwaitFirst restricted to a result satisfying pred; it
// leaves non-matching settled children in place for a later Await.
func (t *Task) AwaitOne(pred func(ResultState, any, error) bool, children ...*Promise) (int, ResultState, any, error) {
	for _, c := range children {
		t.requireChild(c)
	}
	v, err := t.checkpoint(EffectAwaitOne, awaitOnePayload{children: children, pred: pred})
	if err != nil {
		return -1, Failed, nil, err
	}
	r := v.(firstResult)
	return r.index, r.result.State, r.result.Value, r.result.Err
}

// Both awaits exactly two children and returns both results once both have
// settled; a convenience form of AwaitAll.
func (t *Task) Both(a, b *Promise) (Result, Result, error) {
	results, err := t.AwaitAll(a, b)
	if err != nil {
		return Result{}, Result{}, err
	}
	return results[0], results[1], nil
}

// callPayload carries a spawn request to the dispatcher. sameDomain pins
// the new child to the caller's own domain (CallCC); otherwise the
// dispatcher picks per its own placement rules. give lists resource handles
// duplicated into the child's own ledger at spawn time: both the giving
// parent and the receiving child independently own their copy and must
// independently disown or transfer it.
type callPayload struct {
	fn         Func
	sameDomain bool
	give       []*Handle
}

// Call spawns fn as a new child on a domain chosen by the dispatcher,
// returning its promise immediately without suspending.
func (t *Task) Call(fn Func, give ...*Handle) *Promise {
	v, _ := t.checkpoint(EffectCall, callPayload{fn: fn, give: give})
	return v.(*Promise)
}

// CallCC spawns fn on the calling task's own domain, guaranteeing no
// cross-domain dispatch, the Go analogue of spawning on the current
// capability only.
func (t *Task) CallCC(fn Func, give ...*Handle) *Promise {
	v, _ := t.checkpoint(EffectCall, callPayload{fn: fn, sameDomain: true, give: give})
	return v.(*Promise)
}

// Parallel spawns every fn as a child and awaits all of them, returning
// results in argument order.
func (t *Task) Parallel(fns ...Func) ([]Result, error) {
	children := make([]*Promise, len(fns))
	for i, fn := range fns {
		children[i] = t.Call(fn)
	}
	return t.AwaitAll(children...)
}

// Cancel requests cancellation of target and its descendants. It
// does not suspend: propagation and teardown happen asynchronously.
func (t *Task) Cancel(target *Promise) error {
	t.requireChild(target)
	_, err := t.checkpoint(EffectCancel, target)
	return err
}

// Make declares a user-defined suspension point named label, returning a
// SyscallID that Suspend later parks on and an external ContinueWith call
// resumes.
func (t *Task) Make(label string) events.SyscallID {
	v, _ := t.checkpoint(EffectMake, label)
	return v.(events.SyscallID)
}

// Suspend parks the calling task on id until the domain's events Provider
// delivers a matching ContinueRecord.
func (t *Task) Suspend(id events.SyscallID) (any, error) {
	return t.checkpoint(EffectSuspend, id)
}

// ownPayload carries an Own request: the wrapped value and its finaliser.
// The resource id is minted by the calling task's owning domain when the
// effect is applied, not chosen by the caller.
type ownPayload struct {
	value   any
	finally func(any)
}

// Own registers value as a resource held by the calling task, with finally
// run at teardown if it is never disowned or transferred.
func (t *Task) Own(value any, finally func(any)) *Handle {
	v, _ := t.checkpoint(EffectOwn, ownPayload{value: value, finally: finally})
	return v.(*Handle)
}

// Disown releases h without running its finaliser.
func (t *Task) Disown(h *Handle) error {
	_, err := t.checkpoint(EffectDisown, h)
	return err
}

// Transfer reassigns ownership of h to the calling task's parent.
func (t *Task) Transfer(h *Handle) error {
	_, err := t.checkpoint(EffectTransfer, h)
	return err
}

// Check verifies that h is still owned (and not transferred away) by the
// calling task, without side effects; if it is not, the ErrNotOwner fatal
// condition aborts the Run.
func (t *Task) Check(h *Handle) error {
	_, err := t.checkpoint(EffectCheck, h)
	return err
}
