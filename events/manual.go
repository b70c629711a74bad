package events

import "sync"

// ManualProvider is an in-memory Provider driven entirely by explicit calls
// to Fire, intended for deterministic tests: suspension/cancellation races
// can be exercised without real timers or sockets.
//
// Fire may be called from any goroutine, including from inside a task's own
// domain or from a test's main goroutine. It is buffered; Select drains
// whatever has accumulated.
type ManualProvider struct {
	mu      sync.Mutex
	pending []ContinueRecord
	wake    chan struct{}
}

// NewManualProvider constructs a ready-to-use ManualProvider.
func NewManualProvider() *ManualProvider {
	return &ManualProvider{wake: make(chan struct{}, 1)}
}

// Fire enqueues a continue record to be returned by the next Select call.
func (p *ManualProvider) Fire(rec ContinueRecord) {
	p.mu.Lock()
	p.pending = append(p.pending, rec)
	p.mu.Unlock()
	p.Interrupt()
}

func (p *ManualProvider) Select(poll bool, _ []SyscallID, _ IsPendingFunc) ([]ContinueRecord, error) {
	p.mu.Lock()
	if len(p.pending) > 0 {
		out := p.pending
		p.pending = nil
		p.mu.Unlock()
		return out, nil
	}
	p.mu.Unlock()

	if !poll {
		return nil, nil
	}

	<-p.wake

	p.mu.Lock()
	out := p.pending
	p.pending = nil
	p.mu.Unlock()
	return out, nil
}

func (p *ManualProvider) Interrupt() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}
