package loom

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ygrebnov/loom/events"
)

func TestRun_MakeSuspendContinueRoundTrip(t *testing.T) {
	var provider *events.ManualProvider

	v, err := Run(context.Background(), func(t *Task) (any, error) {
		id := t.Make("external-event")
		go func() {
			time.Sleep(10 * time.Millisecond)
			provider.Fire(events.ContinueWith(id, func() (any, error) { return "delivered", nil }))
		}()
		return t.Suspend(id)
	}, WithDomains(1), WithEventsFactory(func(uint32) events.Provider {
		provider = events.NewManualProvider()
		return provider
	}))

	require.NoError(t, err)
	require.Equal(t, "delivered", v)
}
