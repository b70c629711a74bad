package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestManualProvider_FireBeforeSelectIsBuffered(t *testing.T) {
	p := NewManualProvider()
	p.Fire(ContinueWith(1, func() (any, error) { return "a", nil }))

	recs, err := p.Select(false, []SyscallID{1}, func(SyscallID) bool { return true })
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, SyscallID(1), recs[0].ID)
}

func TestManualProvider_BlockingSelectWaitsForFire(t *testing.T) {
	p := NewManualProvider()
	done := make(chan []ContinueRecord, 1)
	go func() {
		recs, _ := p.Select(true, nil, nil)
		done <- recs
	}()

	time.Sleep(10 * time.Millisecond)
	p.Fire(ContinueWith(2, nil))

	select {
	case recs := <-done:
		require.Len(t, recs, 1)
		require.Equal(t, SyscallID(2), recs[0].ID)
	case <-time.After(time.Second):
		t.Fatal("blocking Select did not return after Fire")
	}
}

func TestManualProvider_NonBlockingSelectReturnsEmptyWhenIdle(t *testing.T) {
	p := NewManualProvider()
	recs, err := p.Select(false, nil, nil)
	require.NoError(t, err)
	require.Empty(t, recs)
}

func TestNoopProvider_NonBlockingSelectReturnsImmediately(t *testing.T) {
	p := NewNoopProvider()
	recs, err := p.Select(false, nil, nil)
	require.NoError(t, err)
	require.Empty(t, recs)
}

func TestNoopProvider_InterruptUnblocksPollingSelect(t *testing.T) {
	p := NewNoopProvider()
	done := make(chan struct{})
	go func() {
		_, _ = p.Select(true, nil, nil)
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	p.Interrupt()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Interrupt did not unblock a polling Select")
	}
}
