package persist

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sigtrade/internal/logger"
	"sigtrade/internal/store/sqlite"
	"sigtrade/internal/types"
)

const (
	// 连续失败达到该次数后进入冷却，避免磁盘故障时空转刷日志。
	maxConsecutiveErrors = 3
	errorCooldown        = 60 * time.Second

	// 队列满时入队方最多等这么久，之后放弃并向调用方返回错误。
	defaultEnqueueWait = 5 * time.Second
)

type taskKind int

const (
	taskOrder taskKind = iota
	taskSignal
)

type writeTask struct {
	kind   taskKind
	order  *types.OrderRecord
	signal *types.Signal
}

// Writer 异步持久化队列。所有 sqlite 写入经由单个消费协程串行执行，
// 监控协程只做入队，不会被磁盘 IO 阻塞。
type Writer struct {
	store *sqlite.Store
	tasks chan writeTask
	grace time.Duration
	wait  time.Duration

	mu      sync.Mutex
	closed  bool
	dropped int64
}

// NewWriter 创建持久化队列。queueSize<=0 时使用 1000。
func NewWriter(store *sqlite.Store, queueSize int, grace time.Duration) *Writer {
	if queueSize <= 0 {
		queueSize = 1000
	}
	if grace <= 0 {
		grace = 30 * time.Second
	}
	return &Writer{
		store: store,
		tasks: make(chan writeTask, queueSize),
		grace: grace,
		wait:  defaultEnqueueWait,
	}
}

// SaveOrder 入队一份订单快照。队列满时限时等待，超时返回错误。
func (w *Writer) SaveOrder(rec *types.OrderRecord) error {
	if rec == nil {
		return nil
	}
	return w.enqueue(writeTask{kind: taskOrder, order: rec.Clone()})
}

// SaveSignal 入队一条信号。信号不可变，无需拷贝。
func (w *Writer) SaveSignal(sig *types.Signal) error {
	if sig == nil {
		return nil
	}
	return w.enqueue(writeTask{kind: taskSignal, signal: sig})
}

func (w *Writer) enqueue(task writeTask) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return fmt.Errorf("persist writer closed")
	}
	w.mu.Unlock()
	select {
	case w.tasks <- task:
		return nil
	default:
	}
	// 队列满：限时等待消费协程腾出空间。
	timer := time.NewTimer(w.wait)
	defer timer.Stop()
	select {
	case w.tasks <- task:
		return nil
	case <-timer.C:
		w.mu.Lock()
		w.dropped++
		n := w.dropped
		w.mu.Unlock()
		logger.Errorf("persist queue full after %s wait, task dropped (total dropped: %d)", w.wait, n)
		return fmt.Errorf("persist queue full after %s wait", w.wait)
	}
}

// Pending 返回当前排队中的任务数。
func (w *Writer) Pending() int { return len(w.tasks) }

// Dropped 返回累计丢弃的任务数。
func (w *Writer) Dropped() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dropped
}

// Run 消费队列直到 ctx 取消，取消后在宽限期内尽量清空剩余任务。
func (w *Writer) Run(ctx context.Context) error {
	consecutive := 0
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return ctx.Err()
		case task := <-w.tasks:
			if err := w.execute(context.Background(), task); err != nil {
				consecutive++
				logger.Errorf("persist write failed (%d consecutive): %v", consecutive, err)
				if consecutive >= maxConsecutiveErrors {
					logger.Warnf("persist writer cooling down %s after repeated failures", errorCooldown)
					if !sleepWithContext(ctx, errorCooldown) {
						w.drain()
						return ctx.Err()
					}
					consecutive = 0
				}
				continue
			}
			consecutive = 0
		}
	}
}

// drain 停机时尽量把剩余任务写完，超过宽限期直接放弃。
func (w *Writer) drain() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()

	deadline := time.Now().Add(w.grace)
	flushed := 0
	for {
		select {
		case task := <-w.tasks:
			if time.Now().After(deadline) {
				logger.Errorf("persist drain exceeded grace period, %d tasks abandoned", len(w.tasks)+1)
				return
			}
			if err := w.execute(context.Background(), task); err != nil {
				logger.Errorf("persist drain write failed: %v", err)
			}
			flushed++
		default:
			if flushed > 0 {
				logger.Infof("persist drain flushed %d pending tasks", flushed)
			}
			return
		}
	}
}

func (w *Writer) execute(ctx context.Context, task writeTask) error {
	switch task.kind {
	case taskOrder:
		return w.store.Orders.Save(ctx, task.order)
	case taskSignal:
		return w.store.Signals.Save(ctx, task.signal)
	}
	return nil
}

// sleepWithContext 可中断的 sleep，ctx 取消时返回 false。
func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
