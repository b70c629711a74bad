// Package loom is a cooperative, multi-domain task scheduler.
//
// Run drives a root task to completion across a fixed number of scheduling
// domains. Each domain is a single goroutine that owns a ready queue, a
// suspension table, and an events.Provider; a task's goroutine communicates
// with its owning domain's executor through a rendezvous channel pair, so
// every scheduling-point operation (Yield, Await*, Call, Cancel, Make,
// Suspend, the resource-ledger ops) hands control back to the executor
// before the domain polls for external events.
//
// Promises form a structured-concurrency tree: a task may only await or
// cancel its own children, and a parent cannot settle while any child is
// still pending. Cancellation propagates down the tree; an unretrieved
// settled promise is tracked by an OrphanCollector until Care claims it.
// Resources registered with Own are swept by their owning promise's ledger
// at termination unless disowned or transferred beforehand.
//
// Structural violations of these invariants (ErrStillHasChildren,
// ErrNotAChild, ErrResourceLeak, ...) are reported as FatalError and abort
// the whole Run; an ordinary task error is instead captured into its
// promise's result and surfaced only when awaited.
package loom
