package loom

// cancelPromise is the entry point for a Cancel effect: it marks target and
// every descendant cancel-requested and delivers each newly-marked
// promise to its owning domain so a parked or about-to-resume task observes
// the cancellation at its next scheduling point.
func (s *scheduler) cancelPromise(target *Promise) {
	s.propagateCancel(target, true)
}

func (s *scheduler) propagateCancel(p *Promise, direct bool) {
	newly, children := p.markCancelRequested(direct)
	if newly {
		s.deliverCancel(p)
	}
	for _, c := range children {
		s.propagateCancel(c, false)
	}
}

// deliverCancel routes a cancellation to p's owning domain's inbox. Sending
// to the owner's own inbox even when the sender IS that domain keeps the
// delivery path uniform: a domain only ever mutates its own ready
// queue/suspension table, whether the trigger was local or remote.
func (s *scheduler) deliverCancel(p *Promise) {
	d := s.domains[p.domain]
	d.inbox <- inboxMsg{kind: inboxCancel, promise: p}
	d.provider.Interrupt()
}

// applyCancel is run by p's owning domain when it drains an inboxCancel
// message: it prunes every live suspension whose promise is now
// cancel-requested (including but not limited to p) so a parked task wakes
// with cancelled=true instead of waiting forever, and wakes the
// provider in case the domain was blocking in Select.
func (s *scheduler) applyCancel(d *domain, _ *Promise) {
	d.pruneCancelledSuspensions()
	d.provider.Interrupt()
}
