package loom

import (
	"sync"

	"golang.org/x/exp/rand"
)

// dispatcher assigns newly Call'd tasks to a domain: round robin across
// several independent domains, always excluding the caller's own and the
// reserved root domain.
type dispatcher struct {
	mu     sync.Mutex
	rng    *rand.Rand
	cursor int
}

func newDispatcher(seed uint64) *dispatcher {
	return &dispatcher{rng: rand.New(rand.NewSource(seed))}
}

// chooseDomain picks a domain for a new task spawned from caller.
// sameDomain forces placement on caller (CallCC) regardless of eligibility,
// since that placement is the caller's own explicit choice. Otherwise the
// target must be neither the reserved domain 0 nor the caller's own domain
// (excluding the caller prevents the dom0-awaits-dom1-awaits-dom0 deadlock
// when the caller is already a worker and only one worker exists); if no
// such domain exists, placement fails with ErrNoDomainAvailable rather than
// falling back to dom0 or the caller. Ties among equally-eligible
// candidates are broken by a seeded PRNG jitter on the round-robin cursor,
// so repeated Runs with the same Config.Seed place tasks identically.
func (s *scheduler) chooseDomain(caller DomainID, sameDomain bool) (DomainID, error) {
	if len(s.domains) == 0 {
		return 0, newFatal(ErrNoDomainAvailable, 0, caller)
	}
	if sameDomain {
		return caller, nil
	}

	candidates := make([]DomainID, 0, len(s.domains))
	for _, d := range s.domains {
		if d.id == 0 || d.id == caller {
			continue
		}
		candidates = append(candidates, d.id)
	}
	if len(candidates) == 0 {
		return 0, newFatal(ErrNoDomainAvailable, 0, caller)
	}

	s.dispatcher.mu.Lock()
	defer s.dispatcher.mu.Unlock()
	jitter := int(s.dispatcher.rng.Int63() % int64(len(candidates)))
	idx := (s.dispatcher.cursor + jitter) % len(candidates)
	s.dispatcher.cursor++
	return candidates[idx], nil
}
