package loom

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPromise_SettleWithoutChildrenFinalizesImmediately(t *testing.T) {
	p := newPromise(1, 0, nil)
	p.settle(Resolved, "value", nil)

	select {
	case <-p.doneCh:
	default:
		t.Fatal("doneCh should be closed once a childless promise settles")
	}
	state, value, err := p.snapshot()
	require.Equal(t, Resolved, state)
	require.Equal(t, "value", value)
	require.NoError(t, err)
}

func TestPromise_SettleWithPendingChildDoesNotFinalize(t *testing.T) {
	parent := newPromise(1, 0, nil)
	child := newPromise(2, 0, parent)
	parent.addChild(child)

	parent.settle(Resolved, "value", nil)
	select {
	case <-parent.doneCh:
		t.Fatal("parent should stay pending while a child is outstanding (I2)")
	default:
	}

	child.settle(Resolved, "child-value", nil)
	parent.onChildTerminal(child.id)

	select {
	case <-parent.doneCh:
	default:
		t.Fatal("parent should finalize once its only child settles")
	}
}

func TestPromise_CancellationWinsOverPendingSettle(t *testing.T) {
	p := newPromise(1, 0, nil)
	p.markCancelRequested(true)
	p.settle(Resolved, "value", errors.New("should be overridden"))

	state, _, err := p.snapshot()
	require.Equal(t, Cancelled, state)
	require.NoError(t, err)
}

func TestPromise_SettleIsIdempotentOnceTerminal(t *testing.T) {
	p := newPromise(1, 0, nil)
	p.settle(Resolved, "first", nil)
	p.settle(Failed, nil, errors.New("ignored"))

	state, value, err := p.snapshot()
	require.Equal(t, Resolved, state)
	require.Equal(t, "first", value)
	require.NoError(t, err)
}

func TestPromise_MarkCancelRequestedReportsNewlyOnce(t *testing.T) {
	p := newPromise(1, 0, nil)
	newly, _ := p.markCancelRequested(true)
	require.True(t, newly)

	newly, _ = p.markCancelRequested(false)
	require.False(t, newly, "a second cancel request on an already-cancelled promise is not newly marked")
}

func TestPromise_DirectCancelMarksSelfCancelled(t *testing.T) {
	direct := newPromise(1, 0, nil)
	direct.markCancelRequested(true)
	require.True(t, direct.wasSelfCancelled())

	propagated := newPromise(2, 0, nil)
	propagated.markCancelRequested(false)
	require.False(t, propagated.wasSelfCancelled())
}

func TestFmtPromise_IncludesIDDomainAndState(t *testing.T) {
	p := newPromise(7, 2, nil)
	p.settle(Resolved, nil, nil)
	require.Equal(t, "promise#7@domain2(resolved)", fmtPromise(p))
}
