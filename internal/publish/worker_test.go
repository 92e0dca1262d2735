package publish

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorker_RunsAndStops(t *testing.T) {
	var steps atomic.Int32
	w := NewWorker("test", 5*time.Millisecond, func(context.Context, time.Time) {
		steps.Add(1)
	}, nil, nil)

	w.Start(context.Background())
	assert.True(t, w.IsRunning())
	require.Eventually(t, func() bool { return steps.Load() >= 3 }, time.Second, time.Millisecond)

	assert.True(t, w.Stop(time.Second))
	assert.False(t, w.IsRunning())
}

func TestWorker_StopBeforeStart(t *testing.T) {
	w := NewWorker("idle", time.Second, func(context.Context, time.Time) {}, nil, nil)
	assert.True(t, w.Stop(time.Millisecond))
}

func TestWorker_DetachesAfterGrace(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	w := NewWorker("slow", time.Millisecond, func(ctx context.Context, _ time.Time) {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
	}, nil, nil)

	w.Start(context.Background())
	<-entered

	assert.False(t, w.Stop(10*time.Millisecond))
	assert.True(t, w.IsRunning(), "left running after grace")

	close(release)
	require.Eventually(t, func() bool { return !w.IsRunning() }, time.Second, time.Millisecond)
}

func TestWorker_RecoversPanics(t *testing.T) {
	var reported atomic.Int32
	var steps atomic.Int32
	w := NewWorker("panicky", time.Millisecond, func(context.Context, time.Time) {
		if steps.Add(1) == 1 {
			panic("boom")
		}
	}, func(err error) {
		assert.Contains(t, err.Error(), "boom")
		reported.Add(1)
	}, nil)

	w.Start(context.Background())
	require.Eventually(t, func() bool { return steps.Load() >= 3 }, time.Second, time.Millisecond)
	w.Stop(time.Second)
	assert.Equal(t, int32(1), reported.Load())
}
