package strategy

import (
	"context"
	"errors"
	"testing"
	"time"

	"sigtrade/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockFinder struct {
	mock.Mock
}

func (m *mockFinder) LatestPrior(ctx context.Context, sig *types.Signal) (*types.Signal, error) {
	args := m.Called(ctx, sig)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Signal), args.Error(1)
}

func newSignal(side types.Side) *types.Signal {
	return &types.Signal{
		ID:         2,
		Symbol:     "BTCUSDT",
		Side:       side,
		TimeCircle: "15m",
		CreatedAt:  time.Now(),
	}
}

func TestDedupAcceptsFirstSignal(t *testing.T) {
	finder := new(mockFinder)
	finder.On("LatestPrior", mock.Anything, mock.Anything).Return(nil, nil)

	ok, err := NewDedupStrategy(finder).Evaluate(context.Background(), newSignal(types.SideBuy))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDedupRejectsSameDirection(t *testing.T) {
	finder := new(mockFinder)
	finder.On("LatestPrior", mock.Anything, mock.Anything).
		Return(&types.Signal{ID: 1, Side: types.SideBuy, CreatedAt: time.Now().Add(-time.Minute)}, nil)

	ok, err := NewDedupStrategy(finder).Evaluate(context.Background(), newSignal(types.SideBuy))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDedupAcceptsOppositeDirection(t *testing.T) {
	finder := new(mockFinder)
	finder.On("LatestPrior", mock.Anything, mock.Anything).
		Return(&types.Signal{ID: 1, Side: types.SideSell, CreatedAt: time.Now().Add(-time.Minute)}, nil)

	ok, err := NewDedupStrategy(finder).Evaluate(context.Background(), newSignal(types.SideBuy))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDedupPropagatesLookupError(t *testing.T) {
	finder := new(mockFinder)
	finder.On("LatestPrior", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

	ok, err := NewDedupStrategy(finder).Evaluate(context.Background(), newSignal(types.SideBuy))
	require.Error(t, err)
	assert.False(t, ok)
}

func TestRegistryDispatch(t *testing.T) {
	finder := new(mockFinder)
	finder.On("LatestPrior", mock.Anything, mock.Anything).Return(nil, nil)

	reg := NewRegistry(1)
	require.NoError(t, reg.Register(1, NewDedupStrategy(finder)))
	require.Error(t, reg.Register(1, NewDedupStrategy(finder)))

	// 未注册的策略 ID 回退到默认策略。
	sig := newSignal(types.SideBuy)
	sig.StrategyID = 42
	ok, err := reg.Evaluate(context.Background(), sig)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []int{1}, reg.IDs())
}
