package events

import "time"

// NoopProvider never reports any continuations. A poll=true Select blocks
// until Interrupt is called or a small idle timeout elapses, whichever comes
// first, so a domain configured with no real I/O backend still drains
// cleanly on shutdown. Safe zero value: NoopProvider{} is usable, but its
// poll=true Select returns immediately and its Interrupt does nothing; only
// NewNoopProvider gives the blocking behaviour above.
//
// Useful as the default for domains that never call Suspend.
type NoopProvider struct {
	wake chan struct{}
}

// NewNoopProvider constructs a ready-to-use NoopProvider.
func NewNoopProvider() *NoopProvider {
	return &NoopProvider{wake: make(chan struct{}, 1)}
}

func (p *NoopProvider) Select(poll bool, _ []SyscallID, _ IsPendingFunc) ([]ContinueRecord, error) {
	if !poll {
		return nil, nil
	}
	if p.wake == nil {
		return nil, nil
	}
	select {
	case <-p.wake:
	case <-time.After(50 * time.Millisecond):
	}
	return nil, nil
}

func (p *NoopProvider) Interrupt() {
	if p.wake == nil {
		return
	}
	select {
	case p.wake <- struct{}{}:
	default:
	}
}
