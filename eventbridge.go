package loom

// pollEvents calls the domain's events.Provider and applies any resulting
// ContinueRecords to parked tasks. It is invoked at every pass of the
// executor loop: a task never runs two quanta without an intervening check
// for external completions.
func pollEvents(d *domain) error {
	blocking := len(d.ready) == 0 && len(d.suspended) > 0
	pending := d.pendingSyscallIDs()
	recs, err := d.provider.Select(blocking, pending, d.isPending)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		parked, ok := d.suspended[rec.ID]
		if !ok {
			continue // stale record: the suspension was pruned by a cancellation first
		}
		delete(d.suspended, rec.ID)

		var value any
		var perr error
		if rec.Pre != nil {
			value, perr = rec.Pre()
		}
		d.resumeParked(parked, resumeMsg{value: value, err: perr})
	}
	return nil
}

// pruneCancelledSuspensions removes parked tasks whose promise has since
// been cancel-requested, waking each with a cancellation resume instead of
// leaving it parked forever on a suspension point nobody will ever continue:
// cancellation reaches a task the next time it would observe a scheduling
// point, which includes a pending Suspend.
func (d *domain) pruneCancelledSuspensions() {
	for id, parked := range d.suspended {
		if parked.promise.isCancelRequested() {
			delete(d.suspended, id)
			d.resumeParked(parked, resumeMsg{})
		}
	}
}

// resumeParked prepares a settled suspension's resume message and
// re-enqueues the promise as ready for its next quantum. It does not send on
// resumeCh directly: the parked task is blocked reading resumeCh with
// nothing yet read from yieldCh on the domain side, so delivery must go
// through the same pendingResume handoff runQuantum uses for every other
// resume, keeping exactly one send-then-receive pairing per quantum. A
// cancel-requested promise is resumed with cancelled=true regardless of msg,
// since a pending cancellation always takes priority over a late-arriving
// suspension result.
func (d *domain) resumeParked(parked *parkedTask, msg resumeMsg) {
	if parked.promise.isCancelRequested() {
		msg = resumeMsg{cancelled: true}
	}
	parked.task.pendingResume = &msg
	d.enqueueReady(parked.promise)
}
