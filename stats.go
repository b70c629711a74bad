package loom

import "sync/atomic"

// Stats is a point-in-time snapshot of scheduler activity, exposed via
// Task.Stats. Every counter here except Orphans is also recorded into the
// configured metrics.Provider, so a Run can be observed either in-process
// (Stats) or exported externally (Metrics).
type Stats struct {
	Spawned      int64
	Settled      int64
	Cancelled    int64
	ForcedYields int64
	Orphans      int64
}

// schedCounters holds the atomics the scheduler's record* methods mutate,
// reporting the same deltas to the configured metrics.Provider; stats reads
// them into a Stats snapshot.
type schedCounters struct {
	spawned      atomic.Int64
	settled      atomic.Int64
	cancelled    atomic.Int64
	forcedYields atomic.Int64
}

func (s *scheduler) stats() Stats {
	return Stats{
		Spawned:      s.counters.spawned.Load(),
		Settled:      s.counters.settled.Load(),
		Cancelled:    s.counters.cancelled.Load(),
		ForcedYields: s.counters.forcedYields.Load(),
		Orphans:      int64(len(s.orphans.Orphans())),
	}
}

func (s *scheduler) recordSpawn() {
	s.counters.spawned.Add(1)
	s.metrics.Counter("loom_tasks_spawned").Add(1)
}

func (s *scheduler) recordSettle(state ResultState) {
	s.counters.settled.Add(1)
	s.metrics.Counter("loom_tasks_settled").Add(1)
	if state == Cancelled {
		s.counters.cancelled.Add(1)
		s.metrics.Counter("loom_tasks_cancelled").Add(1)
	}
}

func (s *scheduler) recordForcedYield() {
	s.counters.forcedYields.Add(1)
	s.metrics.Counter("loom_forced_yields").Add(1)
}
