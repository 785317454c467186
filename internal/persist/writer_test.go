package persist

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"sigtrade/internal/store/sqlite"
	"sigtrade/internal/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWriterUnderTest(t *testing.T, queueSize int) (*Writer, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "persist.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return NewWriter(store, queueSize, 5*time.Second), store
}

func TestWriterPersistsOrderAndSignal(t *testing.T) {
	w, store := newWriterUnderTest(t, 16)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()

	now := time.Now()
	rec := &types.OrderRecord{
		ID:         uuid.NewString(),
		Symbol:     "BTCUSDT",
		Side:       types.SideBuy,
		Price:      decimal.RequireFromString("50000"),
		Quantity:   decimal.RequireFromString("0.01"),
		Role:       types.OrderRoleOpen,
		Status:     types.OrderStatusSubmitted,
		CreateTime: now,
		UpdateTime: now,
	}
	require.NoError(t, w.SaveOrder(rec))
	require.NoError(t, w.SaveSignal(&types.Signal{
		Symbol:     "BTCUSDT",
		Side:       types.SideBuy,
		TimeCircle: "15m",
		Price:      decimal.RequireFromString("50000"),
		CreatedAt:  now,
	}))

	require.Eventually(t, func() bool {
		got, err := store.Orders.FindByID(context.Background(), rec.ID)
		return err == nil && got != nil
	}, 3*time.Second, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		sigs, err := store.Signals.ListRecent(context.Background(), 10)
		return err == nil && len(sigs) == 1
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	<-done
}

func TestWriterSnapshotIsolation(t *testing.T) {
	w, store := newWriterUnderTest(t, 16)

	now := time.Now()
	rec := &types.OrderRecord{
		ID:         uuid.NewString(),
		Symbol:     "ETHUSDT",
		Side:       types.SideSell,
		Price:      decimal.RequireFromString("3000"),
		Quantity:   decimal.RequireFromString("0.5"),
		Status:     types.OrderStatusSubmitted,
		Role:       types.OrderRoleOpen,
		CreateTime: now,
		UpdateTime: now,
	}
	require.NoError(t, w.SaveOrder(rec))
	// 入队之后的修改不应影响已入队的快照。
	rec.Status = types.OrderStatusFilled

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		got, err := store.Orders.FindByID(context.Background(), rec.ID)
		return err == nil && got != nil && got.Status == types.OrderStatusSubmitted
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	<-done
}

func TestWriterDropsAfterBoundedWait(t *testing.T) {
	w, _ := newWriterUnderTest(t, 1)
	w.wait = 30 * time.Millisecond

	now := time.Now()
	var failed int
	for i := 0; i < 3; i++ {
		err := w.SaveOrder(&types.OrderRecord{
			ID:         uuid.NewString(),
			Symbol:     "BTCUSDT",
			Status:     types.OrderStatusPending,
			CreateTime: now,
			UpdateTime: now,
		})
		if err != nil {
			failed++
		}
	}
	// 没有消费协程，第一条占满队列，其余等满限时后报错。
	assert.Equal(t, 2, failed)
	assert.Equal(t, int64(2), w.Dropped())
	assert.Equal(t, 1, w.Pending())
}

func TestWriterEnqueueWaitsForConsumer(t *testing.T) {
	w, store := newWriterUnderTest(t, 1)
	w.wait = 3 * time.Second

	now := time.Now()
	first := uuid.NewString()
	require.NoError(t, w.SaveOrder(&types.OrderRecord{
		ID:         first,
		Symbol:     "BTCUSDT",
		Status:     types.OrderStatusPending,
		CreateTime: now,
		UpdateTime: now,
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		time.Sleep(50 * time.Millisecond)
		_ = w.Run(ctx)
	}()

	// 队列已满，等消费协程启动腾出空间后入队成功。
	second := uuid.NewString()
	require.NoError(t, w.SaveOrder(&types.OrderRecord{
		ID:         second,
		Symbol:     "BTCUSDT",
		Status:     types.OrderStatusPending,
		CreateTime: now,
		UpdateTime: now,
	}))

	require.Eventually(t, func() bool {
		got, err := store.Orders.FindByID(context.Background(), second)
		return err == nil && got != nil
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	<-done
}

func TestWriterDrainsOnShutdown(t *testing.T) {
	w, store := newWriterUnderTest(t, 16)

	now := time.Now()
	ids := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		id := uuid.NewString()
		ids = append(ids, id)
		w.SaveOrder(&types.OrderRecord{
			ID:         id,
			Symbol:     "BTCUSDT",
			Status:     types.OrderStatusPending,
			CreateTime: now,
			UpdateTime: now,
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = w.Run(ctx)

	for _, id := range ids {
		got, err := store.Orders.FindByID(context.Background(), id)
		require.NoError(t, err)
		assert.NotNil(t, got, "order %s should be flushed during drain", id)
	}
}
