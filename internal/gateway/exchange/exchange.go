// Package exchange defines the narrow trading-client abstraction the core
// depends on. Concrete exchange backends (Binance futures, test doubles)
// implement TradingClient without leaking SDK types upward.
package exchange

import (
	"context"

	"github.com/shopspring/decimal"

	"sigtrade/internal/types"
)

// TradingClient 覆盖核心需要的全部交易所操作。
// 所有调用都是阻塞同步 I/O，带单次调用超时；只读查询内部做有限重试，
// 下单/撤单不在适配器内部重试。
type TradingClient interface {
	Name() string

	PlaceOrder(ctx context.Context, req OrderRequest) (*OrderInfo, error)

	PlaceStopLossOrder(ctx context.Context, req StopOrderRequest) (*OrderInfo, error)

	CancelOrder(ctx context.Context, symbol, exchangeOrderID string) error

	GetOrderStatus(ctx context.Context, symbol, exchangeOrderID string) (*OrderState, error)

	GetPosition(ctx context.Context, symbol string) (*types.Position, error)

	GetAccountEquity(ctx context.Context) (decimal.Decimal, error)
}

// OrderRequest 限价单请求（GTC）。
type OrderRequest struct {
	Symbol     string
	Side       types.Side
	Quantity   decimal.Decimal
	Price      decimal.Decimal
	ReduceOnly bool
	ClientID   string
}

// StopOrderRequest 条件止损单请求，触发价与限价可不同（滑点配置）。
type StopOrderRequest struct {
	Symbol       string
	Side         types.Side
	Quantity     decimal.Decimal
	TriggerPrice decimal.Decimal
	LimitPrice   decimal.Decimal
	ReduceOnly   bool
	ClientID     string
}

// OrderInfo 下单成功后的回执。
type OrderInfo struct {
	ExchangeOrderID string
	Status          types.OrderStatus
	RawPayload      []byte
}

// OrderState 查询订单状态的结果。
type OrderState struct {
	Status    types.OrderStatus
	FilledQty decimal.Decimal
	AvgPrice  decimal.Decimal
	Fee       decimal.Decimal
	UpdatedAt int64 // 交易所侧状态时间戳（毫秒），0 表示未知
}
