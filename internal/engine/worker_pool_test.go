package engine

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPool_RejectsWhenFull(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	var done atomic.Int32
	p := newWorkerPool(context.Background(), 1, 1, func(_ context.Context, n int) {
		started <- struct{}{}
		<-release
		done.Add(1)
	})

	require.True(t, p.Submit(1))
	<-started // worker holds item 1
	assert.Equal(t, 1, p.Busy())

	require.True(t, p.Submit(2)) // fills the queue
	assert.Equal(t, 1, p.QueueLen())
	assert.False(t, p.Submit(3))

	close(release)
	p.Drain()
	assert.Equal(t, int32(2), done.Load())
	assert.False(t, p.Submit(4), "submit after drain")
	p.Drain()
}

func TestWorkerPool_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := newWorkerPool(ctx, 2, 4, func(context.Context, int) {})
	cancel()

	stopped := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("workers did not stop")
	}
	assert.Equal(t, 4, p.QueueCap())
}
