package admission

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"time"

	"sigtrade/internal/logger"
	"sigtrade/internal/types"

	"golang.org/x/sync/errgroup"
)

// Handler 消费被准入的信号。
type Handler func(ctx context.Context, sig *types.Signal)

// item 按时间戳排序，时间相同时按入队序号保证 FIFO。
type item struct {
	sig *types.Signal
	seq int64
}

type signalHeap []*item

func (h signalHeap) Len() int { return len(h) }

func (h signalHeap) Less(i, j int) bool {
	ti, tj := h[i].sig.CreatedAt, h[j].sig.CreatedAt
	if !ti.Equal(tj) {
		return ti.Before(tj)
	}
	return h[i].seq < h[j].seq
}

func (h signalHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *signalHeap) Push(x any) { *h = append(*h, x.(*item)) }

func (h *signalHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}

// Queue 信号准入队列：按信号时间戳出队，固定数量的 worker 并发处理。
// 队列满时入队方限时等待空位，超时拒绝，由 webhook 返回 503 让上游重发。
type Queue struct {
	handler Handler
	workers int
	maxSize int
	wait    time.Duration

	// slots 以容量信道约束堆的大小，入队占位、出队释放。
	slots chan struct{}

	mu      sync.Mutex
	cond    *sync.Cond
	heap    signalHeap
	nextSeq int64
	stopped bool
}

const defaultEnqueueWait = 5 * time.Second

// NewQueue 创建准入队列。workers/maxSize 非法时回退默认值。
func NewQueue(handler Handler, workers, maxSize int) *Queue {
	if workers <= 0 {
		workers = 5
	}
	if maxSize <= 0 {
		maxSize = 1000
	}
	q := &Queue{
		handler: handler,
		workers: workers,
		maxSize: maxSize,
		wait:    defaultEnqueueWait,
		slots:   make(chan struct{}, maxSize),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue 信号入队。队列满时限时等待，超时或已停止返回错误。
func (q *Queue) Enqueue(sig *types.Signal) error {
	if sig == nil {
		return fmt.Errorf("signal cannot be nil")
	}
	select {
	case q.slots <- struct{}{}:
	default:
		timer := time.NewTimer(q.wait)
		defer timer.Stop()
		select {
		case q.slots <- struct{}{}:
		case <-timer.C:
			return fmt.Errorf("admission queue full (%d) after %s wait", q.maxSize, q.wait)
		}
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		<-q.slots
		return fmt.Errorf("admission queue stopped")
	}
	q.nextSeq++
	heap.Push(&q.heap, &item{sig: sig, seq: q.nextSeq})
	q.cond.Signal()
	return nil
}

// Size 返回当前排队中的信号数。
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.heap)
}

// Run 启动分发协程与 worker 池，阻塞到 ctx 取消。
func (q *Queue) Run(ctx context.Context) error {
	work := make(chan *types.Signal)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(work)
		return q.dispatch(gctx, work)
	})
	for i := 0; i < q.workers; i++ {
		id := i + 1
		g.Go(func() error {
			for sig := range work {
				q.process(gctx, id, sig)
			}
			return nil
		})
	}

	// ctx 取消时唤醒阻塞在条件变量上的分发协程。
	go func() {
		<-gctx.Done()
		q.mu.Lock()
		q.stopped = true
		q.cond.Broadcast()
		q.mu.Unlock()
	}()

	return g.Wait()
}

func (q *Queue) dispatch(ctx context.Context, work chan<- *types.Signal) error {
	for {
		q.mu.Lock()
		for len(q.heap) == 0 && !q.stopped {
			q.cond.Wait()
		}
		if q.stopped && len(q.heap) == 0 {
			q.mu.Unlock()
			return ctx.Err()
		}
		it := heap.Pop(&q.heap).(*item)
		q.mu.Unlock()

		select {
		case work <- it.sig:
			// 交接给 worker 后才释放容量占位。
			<-q.slots
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (q *Queue) process(ctx context.Context, workerID int, sig *types.Signal) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("admission worker %d panic on signal %s %s: %v", workerID, sig.Symbol, sig.Side, r)
		}
	}()
	logger.Debugf("admission worker %d picked signal %s %s %s", workerID, sig.Symbol, sig.Side, sig.TimeCircle)
	q.handler(ctx, sig)
}
