package admission

import (
	"context"
	"sync"
	"testing"
	"time"

	"sigtrade/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesByTimestampOrder(t *testing.T) {
	var mu sync.Mutex
	var order []int64

	q := NewQueue(func(_ context.Context, sig *types.Signal) {
		mu.Lock()
		order = append(order, sig.ID)
		mu.Unlock()
	}, 1, 100)

	base := time.Now()
	// 乱序入队，出队应按时间戳排序。
	require.NoError(t, q.Enqueue(&types.Signal{ID: 3, CreatedAt: base.Add(3 * time.Second)}))
	require.NoError(t, q.Enqueue(&types.Signal{ID: 1, CreatedAt: base.Add(1 * time.Second)}))
	require.NoError(t, q.Enqueue(&types.Signal{ID: 2, CreatedAt: base.Add(2 * time.Second)}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = q.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 3
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	<-done

	assert.Equal(t, []int64{1, 2, 3}, order)
}

func TestQueueTimestampTieKeepsFIFO(t *testing.T) {
	var mu sync.Mutex
	var order []int64

	q := NewQueue(func(_ context.Context, sig *types.Signal) {
		mu.Lock()
		order = append(order, sig.ID)
		mu.Unlock()
	}, 1, 100)

	at := time.Now()
	require.NoError(t, q.Enqueue(&types.Signal{ID: 10, CreatedAt: at}))
	require.NoError(t, q.Enqueue(&types.Signal{ID: 11, CreatedAt: at}))
	require.NoError(t, q.Enqueue(&types.Signal{ID: 12, CreatedAt: at}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = q.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 3
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	<-done

	assert.Equal(t, []int64{10, 11, 12}, order)
}

func TestQueueRejectsAfterBoundedWait(t *testing.T) {
	q := NewQueue(func(context.Context, *types.Signal) {}, 1, 2)
	q.wait = 50 * time.Millisecond

	require.NoError(t, q.Enqueue(&types.Signal{ID: 1, CreatedAt: time.Now()}))
	require.NoError(t, q.Enqueue(&types.Signal{ID: 2, CreatedAt: time.Now()}))

	start := time.Now()
	err := q.Enqueue(&types.Signal{ID: 3, CreatedAt: time.Now()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "full")
	// 拒绝前先限时等待空位。
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Equal(t, 2, q.Size())
}

func TestQueueEnqueueWaitsForSpace(t *testing.T) {
	release := make(chan struct{})
	q := NewQueue(func(_ context.Context, sig *types.Signal) {
		<-release
	}, 1, 1)
	q.wait = 3 * time.Second

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = q.Run(ctx)
	}()

	// 第一条很快被派发给唯一的 worker 并阻塞在 handler 里。
	require.NoError(t, q.Enqueue(&types.Signal{ID: 1, CreatedAt: time.Now()}))
	require.Eventually(t, func() bool { return q.Size() == 0 }, time.Second, 5*time.Millisecond)
	// 第二条占住唯一的空位。
	require.NoError(t, q.Enqueue(&types.Signal{ID: 2, CreatedAt: time.Now()}))

	enqueued := make(chan error, 1)
	go func() {
		enqueued <- q.Enqueue(&types.Signal{ID: 3, CreatedAt: time.Now()})
	}()
	select {
	case err := <-enqueued:
		t.Fatalf("enqueue should block while queue is full, got %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	// worker 放行后空位释放，等待中的入队应当成功。
	close(release)
	select {
	case err := <-enqueued:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("enqueue never completed after space was freed")
	}

	cancel()
	<-done
}

func TestQueueWorkerPanicDoesNotKillPool(t *testing.T) {
	var mu sync.Mutex
	var handled []int64

	q := NewQueue(func(_ context.Context, sig *types.Signal) {
		if sig.ID == 1 {
			panic("boom")
		}
		mu.Lock()
		handled = append(handled, sig.ID)
		mu.Unlock()
	}, 2, 100)

	base := time.Now()
	require.NoError(t, q.Enqueue(&types.Signal{ID: 1, CreatedAt: base}))
	require.NoError(t, q.Enqueue(&types.Signal{ID: 2, CreatedAt: base.Add(time.Second)}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = q.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(handled) == 1
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	<-done

	assert.Equal(t, []int64{2}, handled)
}
