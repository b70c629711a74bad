package loom

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ygrebnov/loom/events"
)

func testOpts(opts ...Option) []Option {
	return append([]Option{WithDomains(2), WithSeed(1)}, opts...)
}

func TestRun_ResolvesRootResult(t *testing.T) {
	v, err := Run(context.Background(), func(t *Task) (any, error) {
		return 42, nil
	}, testOpts()...)
	require.NoError(t, err)
	require.Equal(t, 42, v)
}

func TestRun_PropagatesRootError(t *testing.T) {
	sentinel := errors.New("boom")
	_, err := Run(context.Background(), func(t *Task) (any, error) {
		return nil, sentinel
	}, testOpts()...)
	require.ErrorIs(t, err, sentinel)
}

func TestRun_CallAndAwaitAll(t *testing.T) {
	v, err := Run(context.Background(), func(t *Task) (any, error) {
		results, err := t.Parallel(
			func(t *Task) (any, error) { return 1, nil },
			func(t *Task) (any, error) { return 2, nil },
			func(t *Task) (any, error) { return 3, nil },
		)
		if err != nil {
			return nil, err
		}
		sum := 0
		for _, r := range results {
			sum += r.Value.(int)
		}
		return sum, nil
	}, testOpts()...)
	require.NoError(t, err)
	require.Equal(t, 6, v)
}

func TestRun_AwaitReportsChildFailure(t *testing.T) {
	childErr := errors.New("child failed")
	v, err := Run(context.Background(), func(t *Task) (any, error) {
		child := t.Call(func(t *Task) (any, error) { return nil, childErr })
		state, _, cerr := t.Await(child)
		if state != Failed {
			return nil, errors.New("expected Failed state")
		}
		if !errors.Is(cerr, childErr) {
			return nil, errors.New("expected child error to round-trip")
		}
		return "observed", nil
	}, testOpts()...)
	require.NoError(t, err)
	require.Equal(t, "observed", v)
}

func TestRun_CancelPropagatesToChild(t *testing.T) {
	started := make(chan struct{})
	v, err := Run(context.Background(), func(t *Task) (any, error) {
		child := t.Call(func(t *Task) (any, error) {
			close(started)
			for {
				t.Yield()
			}
		})
		<-started
		if err := t.Cancel(child); err != nil {
			return nil, err
		}
		state, _, _ := t.Await(child)
		return state, nil
	}, testOpts()...)
	require.NoError(t, err)
	require.Equal(t, Cancelled, v)
}

func TestRun_StillHasChildrenIsFatal(t *testing.T) {
	_, err := Run(context.Background(), func(t *Task) (any, error) {
		t.Call(func(t *Task) (any, error) { return nil, nil })
		return "root done without awaiting child", nil
	}, testOpts()...)
	require.True(t, IsFatal(err))
	require.ErrorIs(t, err, ErrStillHasChildren)
}

func TestRun_ResourceLeakIsFatalOnNormalTermination(t *testing.T) {
	_, err := Run(context.Background(), func(t *Task) (any, error) {
		t.Own("never disowned", func(any) {})
		return "done", nil
	}, testOpts()...)
	require.True(t, IsFatal(err))
	require.ErrorIs(t, err, ErrResourceLeak)
}

func TestRun_DisownPreventsResourceLeak(t *testing.T) {
	v, err := Run(context.Background(), func(t *Task) (any, error) {
		h := t.Own("value", func(any) {})
		if err := t.Disown(h); err != nil {
			return nil, err
		}
		return "done", nil
	}, testOpts()...)
	require.NoError(t, err)
	require.Equal(t, "done", v)
}

func TestRun_AwaitNotAChildIsFatal(t *testing.T) {
	_, err := Run(context.Background(), func(t *Task) (any, error) {
		unrelated := newPromise(999, 0, nil)
		t.Await(unrelated)
		return nil, nil
	}, testOpts()...)
	require.True(t, IsFatal(err))
	require.ErrorIs(t, err, ErrNotAChild)
}

func TestRun_ContextCancellationAbortsRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, func(t *Task) (any, error) {
		t.Yield()
		return "unreachable", nil
	}, testOpts()...)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRun_AwaitFirstCancelsRemainder(t *testing.T) {
	v, err := Run(context.Background(), func(t *Task) (any, error) {
		slow := t.Call(func(t *Task) (any, error) {
			for {
				t.Yield()
			}
		})
		fast := t.Call(func(t *Task) (any, error) { return "fast", nil })

		idx, state, value, err := t.AwaitFirst(fast, slow)
		if err != nil {
			return nil, err
		}
		if idx != 0 || state != Resolved || value != "fast" {
			return nil, errors.New("unexpected AwaitFirst result")
		}

		_, sstate, _ := t.Await(slow)
		return sstate, nil
	}, testOpts()...)
	require.NoError(t, err)
	require.Equal(t, Cancelled, v)
}

func TestRun_CancelOverridesAlreadyResolvedPromise(t *testing.T) {
	v, err := Run(context.Background(), func(t *Task) (any, error) {
		child := t.CallCC(func(t *Task) (any, error) { return "value", nil })
		t.Yield() // give the child a quantum to run to completion and settle Resolved
		if err := t.Cancel(child); err != nil {
			return nil, err
		}
		state, _, _ := t.Await(child)
		return state, nil
	}, testOpts()...)
	require.NoError(t, err)
	require.Equal(t, Cancelled, v, "cancelling an already-resolved promise must override its result")
}

func TestRun_MakeIDsArePerDomainNotGlobal(t *testing.T) {
	var rootID, childID events.SyscallID
	_, err := Run(context.Background(), func(t *Task) (any, error) {
		rootID = t.Make("root-label")
		child := t.Call(func(t *Task) (any, error) {
			return t.Make("child-label"), nil
		})
		_, v, cerr := t.Await(child)
		if cerr != nil {
			return nil, cerr
		}
		childID = v.(events.SyscallID)
		return nil, nil
	}, testOpts()...)
	require.NoError(t, err)
	require.Equal(t, rootID, childID, "the first Make on each domain should mint the same per-domain id")
}

func TestRun_HonorsDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := Run(ctx, func(t *Task) (any, error) {
		for {
			t.Yield()
		}
	}, testOpts()...)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
