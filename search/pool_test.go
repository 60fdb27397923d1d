package search

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_RunsAllTasksBeforeClose(t *testing.T) {
	p := NewPool(3, 4, nil)
	var n atomic.Int64
	for i := 0; i < 100; i++ {
		require.NoError(t, p.Submit(context.Background(), func() {
			n.Add(1)
		}))
	}
	p.Close()
	assert.Equal(t, int64(100), n.Load())
}

func TestPool_SubmitAfterClose(t *testing.T) {
	p := NewPool(1, 1, nil)
	p.Close()
	p.Close() // idempotent
	assert.ErrorIs(t, p.Submit(context.Background(), func() {}), ErrPoolClosed)
}

func TestPool_SurvivesPanics(t *testing.T) {
	p := NewPool(1, 1, nil)
	defer p.Close()

	require.NoError(t, p.Submit(context.Background(), func() { panic("boom") }))
	done := make(chan struct{})
	require.NoError(t, p.Submit(context.Background(), func() { close(done) }))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker died after a panicking task")
	}
}

func TestPool_SubmitBlocksWhenFullUntilContextDone(t *testing.T) {
	p := NewPool(1, 1, nil)
	release := make(chan struct{})
	started := make(chan struct{})
	defer func() {
		close(release)
		p.Close()
	}()

	require.NoError(t, p.Submit(context.Background(), func() {
		close(started)
		<-release
	}))
	<-started
	// The worker is busy; this fills the single queue slot.
	require.NoError(t, p.Submit(context.Background(), func() {}))
	assert.Equal(t, 1, p.QueueDepth())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := p.Submit(ctx, func() {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
