package loom

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLedger_OwnSweepRunsFinalizer(t *testing.T) {
	ids := &idAllocator{}
	l := newLedger(1)

	var finalized any
	h := l.own(ids, "payload", func(v any) { finalized = v })
	require.Equal(t, "payload", h.Value())

	leaked := l.sweep()
	require.True(t, leaked, "sweep should report a leak for a still-held resource")
	require.Equal(t, "payload", finalized)
}

func TestLedger_DisownPreventsFinalizerAndLeak(t *testing.T) {
	ids := &idAllocator{}
	l := newLedger(1)

	finalizerRan := false
	h := l.own(ids, "payload", func(any) { finalizerRan = true })
	require.NoError(t, l.disown(h))

	leaked := l.sweep()
	require.False(t, leaked)
	require.False(t, finalizerRan)
}

func TestLedger_DisownByNonOwnerFails(t *testing.T) {
	ids := &idAllocator{}
	owner := newLedger(1)
	other := newLedger(2)

	h := owner.own(ids, "payload", nil)
	err := other.disown(h)
	require.ErrorIs(t, err, ErrNotOwner)
}

func TestLedger_TransferLeavesStubReportingNotOwner(t *testing.T) {
	ids := &idAllocator{}
	child := newLedger(1)
	parent := newLedger(2)

	h := child.own(ids, "payload", nil)
	require.NoError(t, child.transfer(h, parent))

	// Check on a transferred handle reports not-owner, not unknown-handle.
	require.ErrorIs(t, child.check(h), ErrNotOwner)
	require.False(t, parent.settled(), "parent now holds an entry for the transferred resource")
}

func TestLedger_CheckOnHeldResourceSucceeds(t *testing.T) {
	ids := &idAllocator{}
	l := newLedger(1)
	h := l.own(ids, "payload", nil)
	require.NoError(t, l.check(h))
}

func TestLedger_SweepOrderIsReverseOfAcquisition(t *testing.T) {
	ids := &idAllocator{}
	l := newLedger(1)

	var order []int
	l.own(ids, 1, func(any) { order = append(order, 1) })
	l.own(ids, 2, func(any) { order = append(order, 2) })
	l.own(ids, 3, func(any) { order = append(order, 3) })

	l.sweep()
	require.Equal(t, []int{3, 2, 1}, order)
}
