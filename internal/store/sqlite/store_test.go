package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"sigtrade/internal/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestOrder(symbol string) *types.OrderRecord {
	now := time.Now()
	return &types.OrderRecord{
		ID:              uuid.NewString(),
		ExchangeOrderID: uuid.NewString(),
		Symbol:          symbol,
		Side:            types.SideBuy,
		Price:           decimal.RequireFromString("42000.5"),
		Quantity:        decimal.RequireFromString("0.01"),
		Role:            types.OrderRoleOpen,
		Status:          types.OrderStatusSubmitted,
		Leverage:        10,
		RawPayload:      []byte(`{"orderId":1}`),
		CreateTime:      now,
		UpdateTime:      now,
	}
}

func TestOrderRepoSaveAndFind(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := newTestOrder("BTCUSDT")
	require.NoError(t, s.Orders.Save(ctx, rec))

	got, err := s.Orders.FindByID(ctx, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.Symbol, got.Symbol)
	assert.True(t, rec.Price.Equal(got.Price))
	assert.Equal(t, types.OrderStatusSubmitted, got.Status)
	assert.Nil(t, got.FilledTime)

	missing, err := s.Orders.FindByID(ctx, "no-such-order")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestOrderRepoSaveIsUpsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := newTestOrder("ETHUSDT")
	require.NoError(t, s.Orders.Save(ctx, rec))

	filledAt := time.Now()
	rec.Status = types.OrderStatusFilled
	rec.FilledQuantity = rec.Quantity
	rec.AvgPrice = decimal.RequireFromString("42001")
	rec.FilledTime = &filledAt
	require.NoError(t, s.Orders.Save(ctx, rec))

	got, err := s.Orders.FindByID(ctx, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, types.OrderStatusFilled, got.Status)
	assert.True(t, got.FilledQuantity.Equal(rec.Quantity))
	require.NotNil(t, got.FilledTime)

	recent, err := s.Orders.ListRecent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestOrderRepoListActive(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	active := newTestOrder("BTCUSDT")
	require.NoError(t, s.Orders.Save(ctx, active))

	done := newTestOrder("BTCUSDT")
	done.Status = types.OrderStatusFilled
	require.NoError(t, s.Orders.Save(ctx, done))

	cancelled := newTestOrder("ETHUSDT")
	cancelled.Status = types.OrderStatusCancelled
	require.NoError(t, s.Orders.Save(ctx, cancelled))

	partial := newTestOrder("ETHUSDT")
	partial.Status = types.OrderStatusPartiallyFilled
	require.NoError(t, s.Orders.Save(ctx, partial))

	got, err := s.Orders.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	ids := []string{got[0].ID, got[1].ID}
	assert.Contains(t, ids, active.ID)
	assert.Contains(t, ids, partial.ID)
}

func TestSignalRepoLatestPrior(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	mk := func(symbol, circle string, side types.Side, at time.Time) *types.Signal {
		sig := &types.Signal{
			Symbol:       symbol,
			Side:         side,
			TimeCircle:   circle,
			ContractType: types.ContractTypeCrypto,
			Price:        decimal.RequireFromString("100"),
			Valid:        true,
			CreatedAt:    at,
		}
		require.NoError(t, s.Signals.Save(ctx, sig))
		return sig
	}

	mk("BTCUSDT", "15m", types.SideBuy, base)
	prior := mk("BTCUSDT", "15m", types.SideSell, base.Add(5*time.Minute))
	mk("BTCUSDT", "1h", types.SideBuy, base.Add(6*time.Minute))
	mk("ETHUSDT", "15m", types.SideBuy, base.Add(7*time.Minute))
	current := mk("BTCUSDT", "15m", types.SideBuy, base.Add(10*time.Minute))

	got, err := s.Signals.LatestPrior(ctx, current)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, prior.ID, got.ID)
	assert.Equal(t, types.SideSell, got.Side)
}

func TestSignalRepoLatestPriorTieBreaksOnID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	at := time.Now().Truncate(time.Millisecond)

	mk := func(side types.Side) *types.Signal {
		sig := &types.Signal{
			Symbol:     "BTCUSDT",
			Side:       side,
			TimeCircle: "15m",
			Price:      decimal.RequireFromString("100"),
			Valid:      true,
			CreatedAt:  at,
		}
		require.NoError(t, s.Signals.Save(ctx, sig))
		return sig
	}

	mk(types.SideBuy)
	second := mk(types.SideSell)
	current := mk(types.SideBuy)

	// 时间完全相同时，以自增 ID 较大者为最近一条。
	got, err := s.Signals.LatestPrior(ctx, current)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, second.ID, got.ID)

	first := &types.Signal{Symbol: "BTCUSDT", TimeCircle: "15m", CreatedAt: at, ID: 1}
	got, err = s.Signals.LatestPrior(ctx, first)
	require.NoError(t, err)
	assert.Nil(t, got)
}
